// Package report is Sentinel's ThreatReporter: it turns an orchestrator
// Result into a human-readable threat report for display in the browser
// UI, plus a one-line summary variant for notifications.
//
// Grounded on original_source/Services/Sentinel/Sandbox/ThreatReporter.cpp
// — section order, wording, and emoji/label tables are carried over
// directly; StringBuilder's append chain becomes strings.Builder.
package report

import (
	"fmt"
	"strings"
	"sync"

	"sentinel/internal/orchestrator"
	"sentinel/internal/policystore"
)

// Statistics tracks reports generated across calls.
type Statistics struct {
	TotalReports      uint64
	CleanReports      uint64
	SuspiciousReports uint64
	MaliciousReports  uint64
	CriticalReports   uint64
}

// Reporter formats orchestrator Results into reports.
type Reporter struct {
	mu    sync.Mutex
	stats Statistics
}

// New creates a Reporter.
func New() *Reporter {
	return &Reporter{}
}

// GetStatistics returns a snapshot of report counters.
func (r *Reporter) GetStatistics() Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ResetStatistics zeroes the report counters.
func (r *Reporter) ResetStatistics() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = Statistics{}
}

func (r *Reporter) recordStats(level policystore.ThreatLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.TotalReports++
	switch level {
	case policystore.ThreatSuspicious:
		r.stats.SuspiciousReports++
	case policystore.ThreatMalicious:
		r.stats.MaliciousReports++
	case policystore.ThreatCritical:
		r.stats.CriticalReports++
	default:
		r.stats.CleanReports++
	}
}

func severityEmoji(level policystore.ThreatLevel) string {
	switch level {
	case policystore.ThreatClean:
		return "\U0001F7E2" // 🟢
	case policystore.ThreatSuspicious:
		return "\U0001F7E1" // 🟡
	case policystore.ThreatMalicious:
		return "\U0001F7E0" // 🟠
	case policystore.ThreatCritical:
		return "\U0001F534" // 🔴
	default:
		return "⚪" // ⚪
	}
}

func severityLabel(level policystore.ThreatLevel) string {
	switch level {
	case policystore.ThreatClean:
		return "LOW"
	case policystore.ThreatSuspicious:
		return "MEDIUM"
	case policystore.ThreatMalicious:
		return "HIGH"
	case policystore.ThreatCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func confidenceLabel(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "High"
	case confidence >= 0.5:
		return "Medium"
	default:
		return "Low"
	}
}

func actionForThreatLevel(level policystore.ThreatLevel) string {
	switch level {
	case policystore.ThreatClean:
		return "✅ File appears safe. Proceed with caution." // ✅
	case policystore.ThreatSuspicious:
		return "⚠️ File exhibits suspicious patterns. Review carefully before opening." // ⚠️
	case policystore.ThreatMalicious:
		return "⛔ This file has been QUARANTINED and will not execute." // ⛔
	case policystore.ThreatCritical:
		return "\U0001F6A8 SEVERE THREAT. File blocked and quarantined. Report to security team." // 🚨
	default:
		return "File has been analyzed. Review results carefully."
	}
}

func reasonForThreatLevel(result orchestrator.Result) string {
	switch {
	case result.ThreatLevel >= policystore.ThreatMalicious:
		switch {
		case result.YaraScore > 0.5 && result.MLScore > 0.5:
			return "Multiple independent detection methods confirm malicious intent"
		case result.YaraScore > 0.7:
			return "Known malware signature detected"
		case result.MLScore > 0.7:
			return "Machine learning model indicates high probability of malware"
		case result.BehavioralScore > 0.7:
			return "Behavioral analysis detected malicious patterns"
		default:
			return "Composite threat score indicates malicious behavior"
		}
	case result.ThreatLevel == policystore.ThreatSuspicious:
		switch {
		case result.BehavioralScore > 0.5:
			return "Behavioral analysis detected suspicious patterns"
		case result.MLScore > 0.4:
			return "File characteristics match known suspicious patterns"
		default:
			return "Some indicators suggest potential risk"
		}
	default:
		return "No significant threat indicators detected"
	}
}

func formatDetectionSummary(result orchestrator.Result) string {
	var b strings.Builder
	b.WriteString("## Detection Summary\n")

	if result.YaraScore > 0.5 {
		b.WriteString("✓ YARA: Detected ")
		if len(result.TriggeredRules) > 0 {
			b.WriteString(result.TriggeredRules[0])
			b.WriteString(" signature")
		} else {
			b.WriteString("malicious signature")
		}
		b.WriteString("\n")
	} else {
		b.WriteString("✗ YARA: No signature match\n")
	}

	if result.MLScore > 0.5 {
		fmt.Fprintf(&b, "✓ Machine Learning: %d%% probability of malware\n", int(result.MLScore*100))
	} else {
		b.WriteString("✗ Machine Learning: Low threat probability\n")
	}

	if result.BehavioralScore > 0.5 {
		b.WriteString("✓ Behavioral Analysis: ")
		if len(result.DetectedBehaviors) > 0 {
			b.WriteString(result.DetectedBehaviors[0])
			b.WriteString(" detected")
		} else {
			b.WriteString("Suspicious patterns detected")
		}
		b.WriteString("\n")
	} else {
		b.WriteString("✗ Behavioral Analysis: No suspicious patterns\n")
	}

	return b.String()
}

func formatThreatBehaviors(result orchestrator.Result) string {
	if len(result.DetectedBehaviors) == 0 && result.FileOperations == 0 && result.NetworkOperations == 0 {
		return "No suspicious behaviors detected."
	}

	var b strings.Builder
	b.WriteString("## Threat Behaviors\n")

	for _, behavior := range result.DetectedBehaviors {
		fmt.Fprintf(&b, "• %s\n", behavior)
	}

	if result.FileOperations > 50 {
		fmt.Fprintf(&b, "• File Operations: %d file system operations detected\n", result.FileOperations)
	}
	if result.NetworkOperations > 0 {
		fmt.Fprintf(&b, "• Network: %d network operations attempted\n", result.NetworkOperations)
	}
	if result.ProcessOperations > 0 {
		fmt.Fprintf(&b, "• Process Control: %d process operations detected\n", result.ProcessOperations)
	}
	if result.MemoryOperations > 20 {
		fmt.Fprintf(&b, "• Memory Operations: %d memory allocations/modifications\n", result.MemoryOperations)
	}

	return b.String()
}

func formatRecommendation(result orchestrator.Result) string {
	var b strings.Builder
	b.WriteString("## Recommendation\n")
	b.WriteString(actionForThreatLevel(result.ThreatLevel))
	b.WriteString("\n\n")

	switch {
	case result.ThreatLevel >= policystore.ThreatMalicious:
		b.WriteString("→ Action: Delete this file immediately\n")
	case result.ThreatLevel == policystore.ThreatSuspicious:
		b.WriteString("→ Action: Review file origin and delete if suspicious\n")
	default:
		b.WriteString("→ Action: File appears safe but verify source before opening\n")
	}

	fmt.Fprintf(&b, "→ Why: %s\n", reasonForThreatLevel(result))
	b.WriteString("→ Learn More: https://sentinel.internal/docs/threat-detection\n")

	return b.String()
}

func formatTechnicalDetails(result orchestrator.Result, weights struct{ Yara, ML, Behavioral float64 }) string {
	var b strings.Builder
	b.WriteString("## Technical Details\n")
	fmt.Fprintf(&b, "YARA Score: %.2f (%.0f%% weight)\n", result.YaraScore, weights.Yara*100)
	fmt.Fprintf(&b, "ML Score: %.2f (%.0f%% weight)\n", result.MLScore, weights.ML*100)
	fmt.Fprintf(&b, "Behavioral Score: %.2f (%.0f%% weight)\n", result.BehavioralScore, weights.Behavioral*100)
	fmt.Fprintf(&b, "Composite: %.2f\n", result.CompositeScore)

	if result.ExecutionTime.Milliseconds() > 0 {
		fmt.Fprintf(&b, "Analysis Time: %dms\n", result.ExecutionTime.Milliseconds())
	}

	if len(result.TriggeredRules) > 0 {
		b.WriteString("\nTriggered Rules:\n")
		for _, rule := range result.TriggeredRules {
			fmt.Fprintf(&b, "  - %s\n", rule)
		}
	}

	return b.String()
}

// defaultWeightLabels mirrors VerdictEngine.h's 3-way weight table for
// display purposes only; it does not affect scoring.
var defaultWeightLabels = struct{ Yara, ML, Behavioral float64 }{0.40, 0.35, 0.25}

// FormatVerdict generates the full multi-section threat report.
func (r *Reporter) FormatVerdict(result orchestrator.Result, filename string) string {
	r.recordStats(result.ThreatLevel)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s THREAT DETECTED\n\n", severityEmoji(result.ThreatLevel), severityLabel(result.ThreatLevel))
	fmt.Fprintf(&b, "File: %s\n", filename)
	fmt.Fprintf(&b, "Threat Level: %s (Confidence: %s)\n", result.ThreatLevel.String(), confidenceLabel(result.Confidence))
	fmt.Fprintf(&b, "Composite Score: %.2f/1.0\n\n", result.CompositeScore)

	b.WriteString(formatDetectionSummary(result))
	b.WriteString("\n")
	b.WriteString(formatThreatBehaviors(result))
	b.WriteString("\n")
	b.WriteString(formatRecommendation(result))
	b.WriteString("\n")
	b.WriteString(formatTechnicalDetails(result, defaultWeightLabels))

	return b.String()
}

// FormatSummary generates a short notification-friendly report.
func (r *Reporter) FormatSummary(result orchestrator.Result, filename string) string {
	r.recordStats(result.ThreatLevel)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s THREAT: %s\n", severityEmoji(result.ThreatLevel), severityLabel(result.ThreatLevel), filename)
	b.WriteString(actionForThreatLevel(result.ThreatLevel))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Score: %.2f/1.0", result.CompositeScore)

	return b.String()
}
