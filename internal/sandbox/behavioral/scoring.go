package behavioral

import "fmt"

// calculateThreatScore buckets the 16 counters into spec.md §4.8's 5
// categories, each clamped to a 0-1 sub-score against a thresholded
// criterion, then combines them with the specified weights: filesystem
// 0.25, process 0.25, network 0.25, system/registry 0.15, memory 0.10.
func calculateThreatScore(m Metrics) float64 {
	fileScore := subscore(m.TempFileCreates+m.HiddenFileCreates+m.ExecutableDrops, 3)
	processScore := subscore(m.SelfModificationAttempts+m.PersistenceMechanisms, 2)
	networkScore := subscore(m.OutboundConnections+m.HTTPRequests+m.DNSQueries, 3)
	systemScore := subscore(m.RegistryOperations+m.ServiceModifications+m.PrivilegeEscalationAttempts, 2)
	memoryScore := subscore(m.MemoryOperations+m.CodeInjectionAttempts, 2)

	total := 0.25*fileScore + 0.25*processScore + 0.25*networkScore + 0.15*systemScore + 0.10*memoryScore
	if total > 1 {
		return 1
	}
	if total < 0 {
		return 0
	}
	return total
}

// subscore maps a raw counter onto [0,1] saturating at threshold.
func subscore(count uint32, threshold uint32) float64 {
	if threshold == 0 {
		return 0
	}
	v := float64(count) / float64(threshold)
	if v > 1 {
		return 1
	}
	return v
}

// generateSuspiciousBehaviors produces the same explainable strings the
// score above is derived from, plus advanced pattern matches.
func generateSuspiciousBehaviors(m Metrics) []string {
	var out []string
	if m.ExecutableDrops > 0 {
		out = append(out, fmt.Sprintf("dropped %d executable file(s)", m.ExecutableDrops))
	}
	if m.HiddenFileCreates > 0 {
		out = append(out, fmt.Sprintf("created %d hidden file(s)", m.HiddenFileCreates))
	}
	if m.SelfModificationAttempts > 0 {
		out = append(out, "attempted self-modification or code injection")
	}
	if m.PersistenceMechanisms > 0 {
		out = append(out, fmt.Sprintf("installed %d persistence mechanism(s)", m.PersistenceMechanisms))
	}
	if m.OutboundConnections > 2 {
		out = append(out, fmt.Sprintf("opened %d outbound connection(s)", m.OutboundConnections))
	}
	if m.PrivilegeEscalationAttempts > 0 {
		out = append(out, "attempted privilege escalation")
	}
	if m.CodeInjectionAttempts > 0 {
		out = append(out, "attempted code injection into another process")
	}

	if detectRansomwarePattern(m) {
		out = append(out, "matches ransomware behavioral pattern")
	}
	if detectKeyloggerPattern(m) {
		out = append(out, "matches keylogger behavioral pattern")
	}
	if detectRootkitPattern(m) {
		out = append(out, "matches rootkit behavioral pattern")
	}
	if detectCryptominerPattern(m) {
		out = append(out, "matches cryptominer behavioral pattern")
	}
	if detectProcessInjectorPattern(m) {
		out = append(out, "matches process-injector behavioral pattern")
	}
	return out
}

// detectRansomwarePattern: heavy file churn plus persistence (encrypts in
// place); network activity is not considered.
func detectRansomwarePattern(m Metrics) bool {
	return m.FileOperations > 5 && m.TempFileCreates > 2 && m.PersistenceMechanisms > 0
}

// detectKeyloggerPattern: persistence plus hidden-file activity with no
// executable drops of its own; registry activity is not considered.
func detectKeyloggerPattern(m Metrics) bool {
	return m.PersistenceMechanisms > 0 && m.HiddenFileCreates > 0 && m.ExecutableDrops == 0
}

// detectRootkitPattern: privilege escalation combined with persistence and
// self-modification.
func detectRootkitPattern(m Metrics) bool {
	return m.PrivilegeEscalationAttempts > 0 && m.PersistenceMechanisms > 0 && m.SelfModificationAttempts > 0
}

// detectCryptominerPattern: sustained network activity with heavy memory
// use and no file persistence.
func detectCryptominerPattern(m Metrics) bool {
	return m.NetworkOperations > 1 && m.MemoryOperations > 1 && m.PersistenceMechanisms == 0
}

// detectProcessInjectorPattern: code injection with process operations but
// no own executable drop.
func detectProcessInjectorPattern(m Metrics) bool {
	return m.CodeInjectionAttempts > 0 && m.ProcessOperations > 0 && m.ExecutableDrops == 0
}
