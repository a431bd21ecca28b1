package behavioral

// inlineSeccompPolicy is the fallback seccomp-BPF policy used when no
// external policy file is configured, matching the malware-sandbox Kafel
// policy shape from BehavioralAnalyzer.h: allow basic I/O/memory/process
// housekeeping, log network/process-creation/debugging/filesystem-mutation
// syscalls (these become the syscall-trace lines Tier 2 parses), return
// EPERM for privilege-escalation and mount-family syscalls, kill on a
// small deny list, and KILL by default.
const inlineSeccompPolicy = `
POLICY malware_sandbox {
  ALLOW { read, write, pread64, pwrite64, readv, writev, open, openat, openat2, close, close_range,
          stat, fstat, lstat, stat64, fstat64, lstat64, newfstatat, statx, lseek, dup, dup2, dup3, fcntl, ioctl }
  ALLOW { mmap, mmap2, munmap, mprotect, mremap, brk, madvise, mincore, msync }
  ALLOW { exit, exit_group, getpid, getppid, gettid, getuid, geteuid, getgid, getegid }
  ALLOW { rt_sigreturn, rt_sigprocmask, rt_sigaction, rt_sigsuspend }
  ALLOW { getcwd, chdir, getdents, getdents64 }
  ALLOW { clock_gettime, gettimeofday, time, nanosleep, clock_nanosleep }
  ALLOW { select, pselect6, poll, ppoll, epoll_create, epoll_create1, epoll_ctl, epoll_wait, epoll_pwait }
  ALLOW { access, faccessat, faccessat2, readlink, readlinkat }
  ALLOW { set_thread_area, get_thread_area, set_tid_address, arch_prctl }
  ALLOW { getrlimit, prlimit64, getrusage }
  ALLOW { futex, set_robust_list, get_robust_list }
  LOG { socket, connect, bind, listen, accept, accept4, sendto, recvfrom, sendmsg, recvmsg, shutdown, setsockopt }
  LOG { execve, execveat, fork, vfork, clone, clone3 }
  LOG { ptrace, process_vm_readv, process_vm_writev }
  LOG { unlink, unlinkat, rmdir, rename, renameat, mkdir, mkdirat, chmod, fchmod, chown, fchown, truncate, ftruncate }
  ERRNO(1) { setuid, setgid, setreuid, setregid, setresuid, setresgid, setfsuid, setfsgid, capset }
  ERRNO(1) { mount, umount, umount2, pivot_root, chroot, unshare, setns }
  KILL { reboot, kexec_load, init_module, delete_module, ioperm, iopl, syslog, quotactl }
  DEFAULT KILL
}
`

// syscallEvent is a parsed "[SYSCALL] name(args...)" line from the
// sandbox's stderr stream.
type syscallEvent struct {
	Name string
	Args []string
}
