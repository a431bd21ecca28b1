package behavioral

import (
	"bytes"
	"time"
)

// analyzeMock derives BehavioralMetrics from static heuristics (keyword
// scanning plus a hidden-filename check) rather than real execution, for environments
// without a sandbox binary configured.
func analyzeMock(data []byte, filename string) Metrics {
	start := time.Now()
	var m Metrics

	analyzeFileBehaviorMock(data, filename, &m)
	analyzeProcessBehaviorMock(data, &m)
	analyzeNetworkBehaviorMock(data, &m)

	m.ThreatScore = calculateThreatScore(m)
	m.SuspiciousBehaviors = generateSuspiciousBehaviors(m)
	m.ExecutionTime = time.Since(start)
	return m
}

func analyzeFileBehaviorMock(data []byte, filename string, m *Metrics) {
	if bytes.Contains(data, []byte("CreateFile")) || bytes.Contains(data, []byte("fopen")) || bytes.Contains(data, []byte("/tmp/")) {
		m.FileOperations += 3
		m.TempFileCreates++
	}
	if len(filename) > 0 && filename[0] == '.' {
		m.HiddenFileCreates++
	}
	for _, ext := range []string{".exe", ".sh", ".bat", ".ps1"} {
		if bytes.Contains(data, []byte(ext)) {
			m.ExecutableDrops++
		}
	}
}

func analyzeProcessBehaviorMock(data []byte, m *Metrics) {
	for _, kw := range [][]byte{[]byte("CreateProcess"), []byte("fork("), []byte("exec(")} {
		if bytes.Contains(data, kw) {
			m.ProcessOperations += 2
		}
	}
	for _, kw := range [][]byte{[]byte("WriteProcessMemory"), []byte("ptrace"), []byte("CreateRemoteThread")} {
		if bytes.Contains(data, kw) {
			m.SelfModificationAttempts++
			m.CodeInjectionAttempts++
		}
	}
	for _, kw := range [][]byte{[]byte("crontab"), []byte("/etc/init.d"), []byte("HKEY_CURRENT_USER\\...\\Run"), []byte("RegCreateKey")} {
		if bytes.Contains(data, kw) {
			m.PersistenceMechanisms++
			if bytes.Contains(data, []byte("Reg")) {
				m.RegistryOperations++
			}
		}
	}
	for _, kw := range [][]byte{[]byte("setuid"), []byte("sudo "), []byte("UAC")} {
		if bytes.Contains(data, kw) {
			m.PrivilegeEscalationAttempts++
		}
	}
	for _, kw := range [][]byte{[]byte("VirtualAlloc"), []byte("mmap"), []byte("mprotect")} {
		if bytes.Contains(data, kw) {
			m.MemoryOperations++
		}
	}
}

func analyzeNetworkBehaviorMock(data []byte, m *Metrics) {
	for _, kw := range [][]byte{[]byte("socket("), []byte("connect("), []byte("http://"), []byte("https://")} {
		if bytes.Contains(data, kw) {
			m.NetworkOperations++
			m.OutboundConnections++
		}
	}
	if bytes.Contains(data, []byte("GET ")) || bytes.Contains(data, []byte("POST ")) {
		m.HTTPRequests++
	}
	if bytes.Contains(data, []byte("nslookup")) || bytes.Contains(data, []byte("getaddrinfo")) {
		m.DNSQueries++
	}
}
