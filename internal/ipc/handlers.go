package ipc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sentinel/internal/policystore"
	"sentinel/internal/sentinelerr"
)

// allowedScanPrefixes restricts scan_file to user-accessible locations,
// mirroring validate_scan_path's directory allow-list.
var allowedScanPrefixes = []string{"/home", "/tmp", "/var/tmp"}

// resolveScanPath canonicalizes path and enforces the allow-list,
// symlink-rejection, and regular-file checks SentinelServer::scan_file
// applies before ever opening a client-supplied path.
func resolveScanPath(path string) (string, error) {
	canonical, err := filepath.Abs(path)
	if err != nil {
		return "", sentinelerr.Wrap(sentinelerr.InvalidInput, "resolve file path", err)
	}
	canonical, err = filepath.EvalSymlinks(canonical)
	if err != nil {
		return "", sentinelerr.Wrap(sentinelerr.InvalidInput, "resolve file path", err)
	}

	allowed := false
	for _, prefix := range allowedScanPrefixes {
		if strings.HasPrefix(canonical, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", sentinelerr.New(sentinelerr.InvalidInput, "file path not in allowed directory")
	}

	info, err := os.Lstat(canonical)
	if err != nil {
		return "", sentinelerr.Wrap(sentinelerr.InvalidInput, "stat file path", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return "", sentinelerr.New(sentinelerr.InvalidInput, "cannot scan symlinks")
	}
	if !info.Mode().IsRegular() {
		return "", sentinelerr.New(sentinelerr.InvalidInput, "can only scan regular files")
	}
	return canonical, nil
}

const maxScanFileBytes = 200 * 1024 * 1024

func handleScanFile(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	var filePath string
	if !req.Field("file_path", &filePath) || filePath == "" {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'file_path' field")
	}
	if err := validateFilePath(filePath); err != nil {
		return err
	}
	if rt.orchestrator == nil {
		return sentinelerr.New(sentinelerr.Internal, "scanning is unavailable")
	}

	resolved, err := resolveScanPath(filePath)
	if err != nil {
		return err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "stat file", err)
	}
	if info.Size() > maxScanFileBytes {
		return sentinelerr.New(sentinelerr.InvalidInput, "file too large to scan")
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "read file", err)
	}

	return scanAndRespond(ctx, rt, content, filepath.Base(resolved), resp)
}

func handleScanContent(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	var encoded string
	if !req.Field("content", &encoded) || encoded == "" {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'content' field")
	}
	if rt.orchestrator == nil {
		return sentinelerr.New(sentinelerr.Internal, "scanning is unavailable")
	}

	content, err := decodeBase64Content(encoded)
	if err != nil {
		return err
	}

	var filename string
	req.Field("filename", &filename)
	if filename == "" {
		filename = "content"
	}

	return scanAndRespond(ctx, rt, content, filename, resp)
}

// scanAndRespond implements spec.md §2's data flow in full: it runs the
// sandbox tiers through the orchestrator, matches the file's threat
// metadata against PolicyStore so the matched policy's action governs
// enforcement, appends the threat event and action to history, and
// writes the {status, result} envelope scan_file/scan_content promise.
func scanAndRespond(ctx context.Context, rt *RequestRouter, content []byte, filename string, resp *Response) error {
	result, err := rt.orchestrator.AnalyzeFile(ctx, content, filename)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "analyze file", err)
	}

	hashBytes := sha256.Sum256(content)
	fileHash := hex.EncodeToString(hashBytes[:])

	metadata := policystore.ThreatMetadata{
		Filename: filename,
		FileHash: fileHash,
		FileSize: int64(len(content)),
		Severity: result.ThreatLevel.String(),
	}

	var matched *policystore.Policy
	if rt.store != nil {
		matched, err = rt.store.MatchPolicy(ctx, metadata)
		if err != nil {
			return sentinelerr.Wrap(sentinelerr.Internal, "match policy", err)
		}
	}

	var matchedRules []map[string]any
	for _, rule := range result.TriggeredRules {
		matchedRules = append(matchedRules, map[string]any{"rule_name": rule})
	}
	if matched != nil && matched.RuleName != "" {
		matchedRules = append(matchedRules, map[string]any{"rule_name": matched.RuleName})
	}
	threatDetected := result.IsSuspicious() || len(matchedRules) > 0

	actionTaken := string(policystore.ActionAllow)
	var policyID *int64
	if matched != nil {
		actionTaken = string(matched.Action)
		policyID = &matched.ID
	}

	if rt.store != nil {
		alertJSON, err := json.Marshal(map[string]any{
			"threat_level":        result.ThreatLevel.String(),
			"composite_score":     result.CompositeScore,
			"verdict_explanation": result.VerdictExplanation,
		})
		if err != nil {
			return sentinelerr.Wrap(sentinelerr.Internal, "encode alert json", err)
		}
		if err := rt.store.RecordThreat(ctx, metadata, actionTaken, policyID, string(alertJSON)); err != nil {
			return sentinelerr.Wrap(sentinelerr.Internal, "record threat", err)
		}
	}

	if !threatDetected {
		resp.Data["result"] = "clean"
		return nil
	}

	scanResult := map[string]any{
		"threat_detected":    true,
		"matched_rules":      matchedRules,
		"match_count":        len(matchedRules),
		"threat_level":       result.ThreatLevel.String(),
		"confidence":         result.Confidence,
		"composite_score":    result.CompositeScore,
		"detected_behaviors": result.DetectedBehaviors,
		"triggered_rules":    result.TriggeredRules,
		"execution_time_ms":  result.ExecutionTime.Milliseconds(),
		"from_cache":         result.FromCache,
	}
	if rt.reporter != nil {
		scanResult["summary"] = rt.reporter.FormatSummary(result, filename)
	}
	resp.Data["result"] = scanResult

	rt.publish("threat-detected", map[string]any{
		"filename":        filename,
		"threat_level":    result.ThreatLevel.String(),
		"composite_score": result.CompositeScore,
	})
	return nil
}

func handleHealth(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if rt.health == nil {
		return sentinelerr.New(sentinelerr.Internal, "health system unavailable")
	}
	report := rt.health.CheckAll(ctx)
	resp.Data["health"] = report
	return nil
}

func handleHealthLive(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if rt.health == nil {
		return sentinelerr.New(sentinelerr.Internal, "health system unavailable")
	}
	resp.Data["liveness"] = rt.health.CheckLiveness()
	return nil
}

func handleHealthReady(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if rt.health == nil {
		return sentinelerr.New(sentinelerr.Internal, "health system unavailable")
	}
	resp.Data["readiness"] = rt.health.CheckReadiness()
	return nil
}

func handleMetrics(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if rt.health == nil {
		return sentinelerr.New(sentinelerr.Internal, "health system unavailable")
	}
	resp.Data["metrics"] = rt.health.GetMetricsPrometheusFormat()
	return nil
}

func handleGetSystemStatus(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if rt.health != nil {
		resp.Data["health"] = rt.health.CheckAll(ctx)
	}
	if rt.degradation != nil {
		resp.Data["degradation"] = rt.degradation.GetHealthStatus()
	}
	if rt.store != nil {
		stats, err := rt.store.GetStats(ctx)
		if err == nil {
			resp.Data["policy_store"] = stats
		}
	}
	resp.Data["active_connections"] = rt.ActiveConnectionCount()
	return nil
}

func handleLoadStatistics(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if rt.orchestrator != nil {
		resp.Data["orchestrator"] = rt.orchestrator.GetStatistics()
	}
	if rt.reporter != nil {
		resp.Data["reports"] = rt.reporter.GetStatistics()
	}
	if rt.degradation != nil {
		resp.Data["degradation"] = rt.degradation.GetMetrics()
	}
	return nil
}

// handleGetConfig reports the orchestrator's live tunables, the subset of
// Sentinel's configuration validate_config_value's keys govern.
func handleGetConfig(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if rt.orchestrator == nil {
		return sentinelerr.New(sentinelerr.Internal, "orchestrator unavailable")
	}
	cfg := rt.orchestrator.GetConfig()
	resp.Data["enable_tier1_wasm"] = cfg.EnableTier1Wasm
	resp.Data["enable_tier2_native"] = cfg.EnableTier2Native
	resp.Data["scan_timeout_ms"] = cfg.Timeout.Milliseconds()
	resp.Data["max_scan_size"] = maxScanFileBytes
	resp.Data["tier1_conclusive_confidence"] = cfg.Tier1ConclusiveConfidence
	resp.Data["tier2_composite_threshold"] = cfg.Tier2CompositeThreshold
	return nil
}

// handleUpdateConfig validates and applies a single runtime-tunable
// config key/value pair, mirroring InputValidator::validate_config_value's
// key set. Unknown or structurally read-only keys (e.g. max_scan_size,
// fixed at startup) are rejected rather than silently accepted.
func handleUpdateConfig(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if rt.orchestrator == nil {
		return sentinelerr.New(sentinelerr.Internal, "orchestrator unavailable")
	}
	var key string
	if !req.Field("key", &key) || key == "" {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'key' field")
	}
	raw := req.RawField("value")
	if len(raw) == 0 {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'value' field")
	}
	if err := validateConfigValue(key, raw); err != nil {
		return err
	}

	cfg := rt.orchestrator.GetConfig()
	switch key {
	case "enable_tier1_wasm":
		if err := json.Unmarshal(raw, &cfg.EnableTier1Wasm); err != nil {
			return sentinelerr.Wrap(sentinelerr.InvalidInput, "decode enable_tier1_wasm", err)
		}
	case "enable_tier2_native":
		if err := json.Unmarshal(raw, &cfg.EnableTier2Native); err != nil {
			return sentinelerr.Wrap(sentinelerr.InvalidInput, "decode enable_tier2_native", err)
		}
	case "scan_timeout_ms":
		var ms int64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return sentinelerr.Wrap(sentinelerr.InvalidInput, "decode scan_timeout_ms", err)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	case "tier1_conclusive_confidence":
		if err := json.Unmarshal(raw, &cfg.Tier1ConclusiveConfidence); err != nil {
			return sentinelerr.Wrap(sentinelerr.InvalidInput, "decode tier1_conclusive_confidence", err)
		}
	case "tier2_composite_threshold":
		if err := json.Unmarshal(raw, &cfg.Tier2CompositeThreshold); err != nil {
			return sentinelerr.Wrap(sentinelerr.InvalidInput, "decode tier2_composite_threshold", err)
		}
	default:
		return sentinelerr.New(sentinelerr.InvalidInput, "unknown or read-only config key: "+key)
	}

	if !cfg.EnableTier1Wasm && !cfg.EnableTier2Native {
		return sentinelerr.New(sentinelerr.InvalidInput, "at least one sandbox tier must remain enabled")
	}

	rt.orchestrator.UpdateConfig(cfg)
	resp.Data["key"] = key
	return nil
}

func requirePolicyStore(rt *RequestRouter) error {
	if rt.store == nil {
		return sentinelerr.New(sentinelerr.Internal, "policy store unavailable")
	}
	return nil
}

func handleLoadPolicies(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	policies, err := rt.store.ListPolicies(ctx)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "list policies", err)
	}
	resp.Data["policies"] = policies
	return nil
}

func handleGetPolicy(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var id int64
	if !req.Field("id", &id) {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'id' field")
	}
	p, err := rt.store.GetPolicy(ctx, id)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.NotFound, "get policy", err)
	}
	resp.Data["policy"] = p
	return nil
}

func decodePolicy(req *Request) (policystore.Policy, error) {
	var w wirePolicy
	raw := req.RawField("policy")
	if raw == nil {
		return policystore.Policy{}, sentinelerr.New(sentinelerr.InvalidInput, "missing 'policy' field")
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return policystore.Policy{}, sentinelerr.Wrap(sentinelerr.InvalidInput, "decode policy", err)
	}
	p := w.toPolicy()
	if err := validateRuleName(p.RuleName); err != nil {
		return p, err
	}
	if err := validateURLPattern(p.URLPattern); err != nil {
		return p, err
	}
	if p.FileHash != "" {
		if err := validateSHA256(p.FileHash); err != nil {
			return p, err
		}
	}
	if err := validateMIMEType(p.MimeType); err != nil {
		return p, err
	}
	if err := validateAction(string(p.Action)); err != nil {
		return p, err
	}
	if err := validateMatchType(string(p.MatchType)); err != nil {
		return p, err
	}
	if p.ExpiresAt != nil {
		if err := validateExpiry(p.ExpiresAt.UnixMilli()); err != nil {
			return p, err
		}
	}
	return p, nil
}

func handleCreatePolicy(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	p, err := decodePolicy(req)
	if err != nil {
		return err
	}
	id, err := rt.store.CreatePolicy(ctx, p)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "create policy", err)
	}
	resp.Data["id"] = id
	rt.publish("policy-changed", map[string]any{"action": "created", "id": id})
	return nil
}

func handleUpdatePolicy(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var id int64
	if !req.Field("id", &id) {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'id' field")
	}
	p, err := decodePolicy(req)
	if err != nil {
		return err
	}
	if err := rt.store.UpdatePolicy(ctx, id, p); err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "update policy", err)
	}
	rt.publish("policy-changed", map[string]any{"action": "updated", "id": id})
	return nil
}

func handleDeletePolicy(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var id int64
	if !req.Field("id", &id) {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'id' field")
	}
	if err := rt.store.DeletePolicy(ctx, id); err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "delete policy", err)
	}
	rt.publish("policy-changed", map[string]any{"action": "deleted", "id": id})
	return nil
}

func handleLoadThreatHistory(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var opts policystore.ListThreatOptions
	var limit, offset int64
	if req.Field("limit", &limit) {
		opts.Limit = int(limit)
	}
	if req.Field("offset", &offset) {
		opts.Offset = int(offset)
	}
	var ruleName string
	if req.Field("rule_name", &ruleName) {
		opts.RuleName = ruleName
	}

	history, err := rt.store.GetThreatHistory(ctx, opts)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "load threat history", err)
	}
	resp.Data["history"] = history
	return nil
}

func handleGetTemplates(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	templates, err := rt.store.GetTemplates(ctx)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "get templates", err)
	}
	resp.Data["templates"] = templates
	return nil
}

func handleCreateFromTemplate(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var templateID int64
	if !req.Field("template_id", &templateID) {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'template_id' field")
	}
	vars := map[string]string{}
	req.Field("variables", &vars)

	ids, err := rt.store.CreateFromTemplate(ctx, templateID, vars)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "create from template", err)
	}
	resp.Data["ids"] = ids
	return nil
}

func handleApplyPolicyTemplate(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	var body string
	if !req.Field("body", &body) || body == "" {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'body' field")
	}
	vars := map[string]string{}
	req.Field("variables", &vars)

	policies, err := policystore.ApplyPolicyTemplate(body, vars)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.InvalidInput, "apply policy template", err)
	}
	resp.Data["policies"] = policies
	return nil
}

func handleExportPolicyTemplates(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	data, err := rt.store.ExportPolicyTemplates(ctx)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "export policy templates", err)
	}
	resp.Data["templates_json"] = json.RawMessage(data)
	return nil
}

func handleImportPolicyTemplates(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	raw := req.RawField("templates_json")
	if raw == nil {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'templates_json' field")
	}
	n, err := rt.store.ImportPolicyTemplates(ctx, raw)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "import policy templates", err)
	}
	resp.Data["imported"] = n
	return nil
}

func requireVault(rt *RequestRouter) error {
	if rt.vault == nil {
		return sentinelerr.New(sentinelerr.Internal, "quarantine vault unavailable")
	}
	return nil
}

// handleOpenQuarantineManager is the renderer-facing "are you ready"
// handshake: it just confirms the vault is reachable and returns a
// current listing, since the Go port has no separate manager object to
// "open" the way PolicyGraph's quarantine manager did.
func handleOpenQuarantineManager(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requireVault(rt); err != nil {
		return err
	}
	records, err := rt.vault.ListQuarantinedFiles(nil)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "list quarantined files", err)
	}
	resp.Data["quarantined_files"] = records
	return nil
}

func handleListQuarantine(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requireVault(rt); err != nil {
		return err
	}
	var level int64
	var threatLevel *int
	if req.Field("threat_level", &level) {
		l := int(level)
		threatLevel = &l
	}
	records, err := rt.vault.ListQuarantinedFiles(threatLevel)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "list quarantined files", err)
	}
	resp.Data["quarantined_files"] = records
	return nil
}

func handleRestoreQuarantine(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requireVault(rt); err != nil {
		return err
	}
	var id int64
	if !req.Field("id", &id) {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'id' field")
	}
	var dest string
	if !req.Field("destination", &dest) || dest == "" {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'destination' field")
	}
	if err := validateFilePath(dest); err != nil {
		return err
	}
	if err := rt.vault.RestoreFile(id, dest); err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "restore quarantined file", err)
	}
	rt.publish("quarantine-changed", map[string]any{"action": "restored", "id": id})
	return nil
}

func handleDeleteQuarantine(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requireVault(rt); err != nil {
		return err
	}
	var id int64
	if !req.Field("id", &id) {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'id' field")
	}
	if err := rt.vault.DeleteFile(id); err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "delete quarantined file", err)
	}
	rt.publish("quarantine-changed", map[string]any{"action": "deleted", "id": id})
	return nil
}

func handleUpsertNetworkBehaviorPolicy(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var w wireNetworkBehaviorPolicy
	raw := req.RawField("policy")
	if raw == nil {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'policy' field")
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return sentinelerr.Wrap(sentinelerr.InvalidInput, "decode network behavior policy", err)
	}
	if err := validateNonEmpty(w.Domain, "domain"); err != nil {
		return err
	}
	if err := rt.store.UpsertNetworkBehaviorPolicy(ctx, w.toPolicy()); err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "upsert network behavior policy", err)
	}
	return nil
}

func handleGetNetworkBehaviorPolicy(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var domain, threatType string
	req.Field("domain", &domain)
	req.Field("threat_type", &threatType)
	if domain == "" {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'domain' field")
	}
	p, err := rt.store.GetNetworkBehaviorPolicy(ctx, domain, threatType)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.NotFound, "get network behavior policy", err)
	}
	resp.Data["policy"] = p
	return nil
}

func handleDeleteNetworkBehaviorPolicy(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var domain, threatType string
	req.Field("domain", &domain)
	req.Field("threat_type", &threatType)
	if domain == "" {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'domain' field")
	}
	if err := rt.store.DeleteNetworkBehaviorPolicy(ctx, domain, threatType); err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "delete network behavior policy", err)
	}
	return nil
}

func handleRecordCredentialRelationship(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var w wireCredentialRelationship
	raw := req.RawField("relationship")
	if raw == nil {
		return sentinelerr.New(sentinelerr.InvalidInput, "missing 'relationship' field")
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return sentinelerr.Wrap(sentinelerr.InvalidInput, "decode credential relationship", err)
	}
	if err := validateSafeURLChars(w.PageOrigin, "page_origin"); err != nil {
		return err
	}
	if err := validateSafeURLChars(w.FormAction, "form_action"); err != nil {
		return err
	}
	id, err := rt.store.RecordCredentialRelationship(ctx, w.toRelationship())
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "record credential relationship", err)
	}
	resp.Data["id"] = id
	return nil
}

func handleListCredentialRelationships(ctx context.Context, rt *RequestRouter, clientID string, req *Request, resp *Response) error {
	if err := requirePolicyStore(rt); err != nil {
		return err
	}
	var pageOrigin string
	req.Field("page_origin", &pageOrigin)
	relationships, err := rt.store.ListCredentialRelationships(ctx, pageOrigin)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "list credential relationships", err)
	}
	resp.Data["relationships"] = relationships
	return nil
}
