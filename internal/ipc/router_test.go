package ipc

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentinel/internal/health"
	"sentinel/internal/orchestrator"
	"sentinel/internal/policystore"
	"sentinel/internal/sandbox/verdict"
)

const eicarTestString = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

func newTestRouter(t *testing.T) (*RequestRouter, *policystore.Store) {
	t.Helper()
	store, err := policystore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := health.New()
	orch := orchestrator.New(orchestrator.DefaultConfig(), store, nil, nil, verdict.New())
	rt := New(Deps{Store: store, Health: h, Orchestrator: orch})

	sockPath := filepath.Join(t.TempDir(), "sentinel.sock")
	require.NoError(t, rt.Listen(sockPath))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rt.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return rt, store
}

func dial(t *testing.T, rt *RequestRouter) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("unix", rt.listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func sendAndReceive(t *testing.T, conn net.Conn, reader *bufio.Reader, req map[string]any) map[string]any {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	b = append(b, '\n')
	_, err = conn.Write(b)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(line, &resp))
	return resp
}

func TestDispatch_UnknownActionReturnsError(t *testing.T) {
	rt, _ := newTestRouter(t)
	conn, reader := dial(t, rt)

	resp := sendAndReceive(t, conn, reader, map[string]any{"action": "not_a_real_action", "request_id": "1"})
	require.Equal(t, "error", resp["status"])
	require.Equal(t, "1", resp["request_id"])
}

func TestDispatch_MissingActionReturnsError(t *testing.T) {
	rt, _ := newTestRouter(t)
	conn, reader := dial(t, rt)

	resp := sendAndReceive(t, conn, reader, map[string]any{"request_id": "2"})
	require.Equal(t, "error", resp["status"])
}

func TestDispatch_HealthLiveAlwaysSucceeds(t *testing.T) {
	rt, _ := newTestRouter(t)
	conn, reader := dial(t, rt)

	resp := sendAndReceive(t, conn, reader, map[string]any{"action": "health_live", "request_id": "3"})
	require.Equal(t, "success", resp["status"])
	require.Contains(t, resp, "liveness")
}

func TestDispatch_CreateAndGetPolicyRoundTrips(t *testing.T) {
	rt, _ := newTestRouter(t)
	conn, reader := dial(t, rt)

	createResp := sendAndReceive(t, conn, reader, map[string]any{
		"action":     "createPolicy",
		"request_id": "4",
		"policy": map[string]any{
			"rule_name":  "block-test-malware",
			"url_pattern": "",
			"file_hash":   "",
			"mime_type":   "",
			"action":      "block",
			"match_type":  "download_origin_file_type",
		},
	})
	require.Equal(t, "success", createResp["status"], createResp["error"])
	id := createResp["id"]
	require.NotNil(t, id)

	getResp := sendAndReceive(t, conn, reader, map[string]any{
		"action":     "getPolicy",
		"request_id": "5",
		"id":         id,
	})
	require.Equal(t, "success", getResp["status"], getResp["error"])
	require.Contains(t, getResp, "policy")
}

func TestDispatch_CreatePolicyRejectsInvalidAction(t *testing.T) {
	rt, _ := newTestRouter(t)
	conn, reader := dial(t, rt)

	resp := sendAndReceive(t, conn, reader, map[string]any{
		"action":     "createPolicy",
		"request_id": "6",
		"policy": map[string]any{
			"rule_name":  "bad-policy",
			"action":     "delete_everything",
			"match_type": "download_origin_file_type",
		},
	})
	require.Equal(t, "error", resp["status"])
}

func TestDispatch_GetAndUpdateConfigRoundTrips(t *testing.T) {
	rt, _ := newTestRouter(t)
	conn, reader := dial(t, rt)

	getResp := sendAndReceive(t, conn, reader, map[string]any{"action": "getConfig", "request_id": "7"})
	require.Equal(t, "success", getResp["status"], getResp["error"])
	require.Contains(t, getResp, "enable_tier2_native")

	updateResp := sendAndReceive(t, conn, reader, map[string]any{
		"action":     "updateConfig",
		"request_id": "8",
		"key":        "enable_tier2_native",
		"value":      false,
	})
	require.Equal(t, "success", updateResp["status"], updateResp["error"])

	getResp2 := sendAndReceive(t, conn, reader, map[string]any{"action": "getConfig", "request_id": "9"})
	require.Equal(t, false, getResp2["enable_tier2_native"])
}

func TestDispatch_UpdateConfigRejectsUnknownKey(t *testing.T) {
	rt, _ := newTestRouter(t)
	conn, reader := dial(t, rt)

	resp := sendAndReceive(t, conn, reader, map[string]any{
		"action":     "updateConfig",
		"request_id": "10",
		"key":        "not_a_real_key",
		"value":      true,
	})
	require.Equal(t, "error", resp["status"])
}

// TestDispatch_ScanContentWithMatchingBlockPolicyReportsThreat pins the
// EICAR-plus-Block-policy fixture from spec.md §8 scenario 2: a policy
// keyed on the file's hash must drive threat_detected/matched_rules even
// when the heuristic Tier 1 scorer carries no EICAR signature of its own.
func TestDispatch_ScanContentWithMatchingBlockPolicyReportsThreat(t *testing.T) {
	rt, _ := newTestRouter(t)
	conn, reader := dial(t, rt)

	hash := sha256.Sum256([]byte(eicarTestString))
	hashHex := hex.EncodeToString(hash[:])

	createResp := sendAndReceive(t, conn, reader, map[string]any{
		"action":     "createPolicy",
		"request_id": "1",
		"policy": map[string]any{
			"rule_name":   "eicar-test-file",
			"url_pattern": "",
			"file_hash":   hashHex,
			"mime_type":   "",
			"action":      "block",
			"match_type":  "download_origin_file_type",
		},
	})
	require.Equal(t, "success", createResp["status"], createResp["error"])

	scanResp := sendAndReceive(t, conn, reader, map[string]any{
		"action":     "scan_content",
		"request_id": "2",
		"content":    base64.StdEncoding.EncodeToString([]byte(eicarTestString)),
		"filename":   "eicar.com",
	})
	require.Equal(t, "success", scanResp["status"], scanResp["error"])

	result, ok := scanResp["result"].(map[string]any)
	require.True(t, ok, "result should be an object, got %#v", scanResp["result"])
	require.Equal(t, true, result["threat_detected"])

	matchedRules, ok := result["matched_rules"].([]any)
	require.True(t, ok, "matched_rules should be an array, got %#v", result["matched_rules"])
	require.NotEmpty(t, matchedRules)

	matchCount, ok := result["match_count"].(float64)
	require.True(t, ok)
	require.GreaterOrEqual(t, matchCount, float64(1))

	found := false
	for _, r := range matchedRules {
		if m, ok := r.(map[string]any); ok && m["rule_name"] == "eicar-test-file" {
			found = true
		}
	}
	require.True(t, found, "expected matched policy rule name in matched_rules: %#v", matchedRules)

	historyResp := sendAndReceive(t, conn, reader, map[string]any{
		"action":     "loadThreatHistory",
		"request_id": "3",
	})
	require.Equal(t, "success", historyResp["status"], historyResp["error"])
	history, ok := historyResp["history"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, history)
}

func TestRateLimitedScan_DeniesAfterBurstExhausted(t *testing.T) {
	rt, _ := newTestRouter(t)

	for i := 0; i < 20; i++ {
		require.True(t, rt.limiter.AllowScan("client-a"))
	}
	require.False(t, rt.limiter.AllowScan("client-a"))
}

func TestAcquireScanSlot_EnforcesConcurrencyCeiling(t *testing.T) {
	rt, _ := newTestRouter(t)

	for i := 0; i < 5; i++ {
		require.True(t, rt.limiter.AcquireScanSlot("client-b"))
	}
	require.False(t, rt.limiter.AcquireScanSlot("client-b"))
	rt.limiter.ReleaseScanSlot("client-b")
	require.True(t, rt.limiter.AcquireScanSlot("client-b"))
}
