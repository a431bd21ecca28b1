package behavioral

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"sentinel/internal/sentinelerr"
)

// syscallLineRe parses "[SYSCALL] name(args...)" lines emitted by the
// sandbox launcher's stderr stream.
var syscallLineRe = regexp.MustCompile(`^\[SYSCALL\]\s+(\w+)\((.*)\)\s*$`)

func parseSyscallEvent(line string) (syscallEvent, bool) {
	m := syscallLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return syscallEvent{}, false
	}
	var args []string
	if m[2] != "" {
		args = strings.Split(m[2], ",")
		for i := range args {
			args[i] = strings.TrimSpace(args[i])
		}
	}
	return syscallEvent{Name: m[1], Args: args}, true
}

// fileSyscalls / processSyscalls / networkSyscalls / memorySyscalls classify
// syscalls by name into four of the five categories calculateThreatScore
// scores; no traced syscall counts toward the system/registry category.
var (
	fileSyscalls    = syscallSet("open", "openat", "read", "write", "unlink", "unlinkat", "rename", "mkdir", "chmod", "chown", "truncate")
	processSyscalls = syscallSet("execve", "execveat", "fork", "vfork", "clone", "clone3", "ptrace")
	networkSyscalls = syscallSet("socket", "connect", "bind", "listen", "accept", "sendto", "recvfrom", "sendmsg", "recvmsg")
	memorySyscalls  = syscallSet("mmap", "mmap2", "mprotect", "mremap")
)

func syscallSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func updateMetricsFromSyscall(ev syscallEvent, m *Metrics) {
	switch {
	case fileSyscalls[ev.Name]:
		m.FileOperations++
		if strings.Contains(joinArgs(ev.Args), "/tmp/") {
			m.TempFileCreates++
		}
	case ev.Name == "execve" || ev.Name == "execveat" || ev.Name == "fork" || ev.Name == "vfork" || ev.Name == "clone" || ev.Name == "clone3":
		m.ProcessOperations++
	case ev.Name == "ptrace":
		m.SelfModificationAttempts++
		m.CodeInjectionAttempts++
	case networkSyscalls[ev.Name]:
		m.NetworkOperations++
		if ev.Name == "connect" || ev.Name == "sendto" {
			m.OutboundConnections++
		}
	case memorySyscalls[ev.Name]:
		m.MemoryOperations++
	}
}

func joinArgs(args []string) string { return strings.Join(args, ",") }

// analyzeSandbox writes data to a fresh temp directory, launches the
// configured sandbox binary against it under the seccomp policy, and
// derives Metrics from its stderr syscall trace. It is the "nsjail" path
// from BehavioralAnalyzer.h; binary/config selection happens in analyzer.go.
func analyzeSandbox(ctx context.Context, cfg Config, data []byte, filename string) (Metrics, error) {
	start := time.Now()

	dir, err := os.MkdirTemp("", "sentinel-sandbox-*")
	if err != nil {
		return Metrics{}, sentinelerr.Wrap(sentinelerr.Internal, "create sandbox temp directory", err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, sanitizeFilename(filename))
	if err := os.WriteFile(target, data, 0o700); err != nil {
		return Metrics{}, sentinelerr.Wrap(sentinelerr.Internal, "write sandboxed file", err)
	}

	policyPath := cfg.SandboxConfigPath
	if policyPath == "" {
		policyPath = filepath.Join(dir, "policy.kafel")
		if err := os.WriteFile(policyPath, []byte(inlineSeccompPolicy), 0o600); err != nil {
			return Metrics{}, sentinelerr.Wrap(sentinelerr.Internal, "write inline seccomp policy", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cfg.SandboxBinary,
		"--config", policyPath,
		"--chroot", dir,
		"--", target,
	)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Metrics{}, sentinelerr.Wrap(sentinelerr.Internal, "attach sandbox stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return Metrics{}, sentinelerr.Wrap(sentinelerr.Internal, "launch sandbox process", err)
	}

	var m Metrics
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if ev, ok := parseSyscallEvent(scanner.Text()); ok {
			updateMetricsFromSyscall(ev, &m)
		}
	}

	waitErr := cmd.Wait()
	m.ExecutionTime = time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		_ = cmd.Process.Kill()
		m.TimedOut = true
		return m, nil
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			m.ExitCode = exitErr.ExitCode()
		} else {
			return m, sentinelerr.Wrap(sentinelerr.Internal, "wait for sandbox completion", waitErr)
		}
	}

	m.ThreatScore = calculateThreatScore(m)
	m.SuspiciousBehaviors = generateSuspiciousBehaviors(m)
	return m, nil
}

var filenameSanitizer = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeFilename(name string) string {
	if name == "" {
		return "sample.bin"
	}
	return filenameSanitizer.ReplaceAllString(filepath.Base(name), "_")
}
