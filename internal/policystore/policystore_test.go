package policystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentinel/internal/quarantine"
	"sentinel/internal/sentinelerr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetPolicy(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreatePolicy(ctx, Policy{
		RuleName:  "block-known-malware",
		FileHash:  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Action:    ActionBlock,
		MatchType: MatchDownloadOriginFileType,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	p, err := s.GetPolicy(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "block-known-malware", p.RuleName)
	require.Equal(t, ActionBlock, p.Action)
	require.Zero(t, p.HitCount)
}

func TestCreatePolicy_RejectsInvalidHash(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreatePolicy(context.Background(), Policy{
		RuleName: "bad", FileHash: "not-hex", Action: ActionBlock, MatchType: MatchDownloadOriginFileType,
	})
	require.Error(t, err)
	require.Equal(t, sentinelerr.InvalidInput, sentinelerr.KindOf(err))
}

func TestMatchPolicy_PriorityHashBeforeURLBeforeRuleName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	hash := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	_, err := s.CreatePolicy(ctx, Policy{RuleName: "by-hash", FileHash: hash, Action: ActionBlock, MatchType: MatchDownloadOriginFileType})
	require.NoError(t, err)
	_, err = s.CreatePolicy(ctx, Policy{RuleName: "by-url", URLPattern: "https://evil.example/*", Action: ActionWarnUser, MatchType: MatchFormActionMismatch})
	require.NoError(t, err)
	_, err = s.CreatePolicy(ctx, Policy{RuleName: "by-rule-name", Action: ActionQuarantine, MatchType: MatchInsecureCredentialPost})
	require.NoError(t, err)

	// All three criteria present: hash wins.
	p, err := s.MatchPolicy(ctx, ThreatMetadata{FileHash: hash, URL: "https://evil.example/payload", RuleName: "by-rule-name"})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, "by-hash", p.RuleName)

	// No hash: URL wins over rule name.
	p, err = s.MatchPolicy(ctx, ThreatMetadata{URL: "https://evil.example/payload", RuleName: "by-rule-name"})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, "by-url", p.RuleName)

	// Only rule name.
	p, err = s.MatchPolicy(ctx, ThreatMetadata{RuleName: "by-rule-name"})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, "by-rule-name", p.RuleName)

	// Nothing matches.
	p, err = s.MatchPolicy(ctx, ThreatMetadata{URL: "https://clean.example/file", RuleName: "unknown-rule"})
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestMatchPolicy_CacheRevalidatesAfterDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	hash := "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
	id, err := s.CreatePolicy(ctx, Policy{RuleName: "temp", FileHash: hash, Action: ActionBlock, MatchType: MatchDownloadOriginFileType})
	require.NoError(t, err)

	p, err := s.MatchPolicy(ctx, ThreatMetadata{FileHash: hash})
	require.NoError(t, err)
	require.NotNil(t, p)

	require.NoError(t, s.DeletePolicy(ctx, id))

	p, err = s.MatchPolicy(ctx, ThreatMetadata{FileHash: hash})
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestMatchPolicy_HitCountIncrements(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	hash := "dddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd"
	id, err := s.CreatePolicy(ctx, Policy{RuleName: "counted", FileHash: hash, Action: ActionBlock, MatchType: MatchDownloadOriginFileType})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.MatchPolicy(ctx, ThreatMetadata{FileHash: hash})
		require.NoError(t, err)
	}

	p, err := s.GetPolicy(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(3), p.HitCount)
}

func TestSandboxVerdictCache_RoundTripAndInvalidate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	hash := "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	v, err := s.LookupSandboxVerdict(ctx, hash)
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, s.StoreSandboxVerdict(ctx, SandboxVerdict{
		FileHash: hash, ThreatLevel: ThreatMalicious, Confidence: 900, CompositeScore: 650,
		TriggeredRules: []string{"eicar_signature"},
	}))

	v, err = s.LookupSandboxVerdict(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, ThreatMalicious, v.ThreatLevel)
	require.Equal(t, []string{"eicar_signature"}, v.TriggeredRules)

	require.NoError(t, s.InvalidateVerdict(ctx, hash))
	v, err = s.LookupSandboxVerdict(ctx, hash)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestThreatHistory_RecordAndFilterByRuleName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordThreat(ctx, ThreatMetadata{URL: "https://evil.example/a", RuleName: "rule-a"}, "block", nil, `{}`))
	require.NoError(t, s.RecordThreat(ctx, ThreatMetadata{URL: "https://evil.example/b", RuleName: "rule-b"}, "quarantine", nil, `{}`))

	recs, err := s.GetThreatsByRule(ctx, "rule-a")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "https://evil.example/a", recs[0].URL)
}

func TestQuarantineRecordStore_Lifecycle(t *testing.T) {
	s := openTestStore(t)

	id, err := s.InsertQuarantineRecord(quarantine.Record{
		OriginalPath: "/tmp/evil.exe", QuarantinePath: "/var/quarantine/1.quar",
		QuarantineReason: "malicious", ThreatScore: 0.9, ThreatLevel: 2, SHA256Hash: "ffff",
	})
	require.NoError(t, err)

	r, err := s.GetQuarantineRecord(id)
	require.NoError(t, err)
	require.Equal(t, "/tmp/evil.exe", r.OriginalPath)

	found, ok, err := s.QuarantineRecordByHash("ffff")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, found.ID)

	require.NoError(t, s.DeleteQuarantineRecord(id))
	_, err = s.GetQuarantineRecord(id)
	require.Error(t, err)
	require.Equal(t, sentinelerr.NotFound, sentinelerr.KindOf(err))
}

func TestApplyPolicyTemplate_SubstitutesVariables(t *testing.T) {
	body := `{"policies":[{"ruleName":"block-${org}-leak","action":"block","match_pattern":{"url_pattern":"https://${domain}/*"}}]}`
	policies, err := ApplyPolicyTemplate(body, map[string]string{"org": "acme", "domain": "leaky.example"})
	require.NoError(t, err)
	require.Len(t, policies, 1)
	require.Equal(t, "block-acme-leak", policies[0].RuleName)
	require.Equal(t, "https://leaky.example/*", policies[0].URLPattern)
}

func TestCreateFromTemplate_InsertsPolicies(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	body := `{"policies":[{"ruleName":"${name}","action":"warn_user","match_pattern":{"url_pattern":"https://${domain}/*"}}]}`
	tid, err := s.CreateTemplate(ctx, PolicyTemplate{Name: "warn-domain", Body: body})
	require.NoError(t, err)

	ids, err := s.CreateFromTemplate(ctx, tid, map[string]string{"name": "warn-evil", "domain": "evil.example"})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	p, err := s.GetPolicy(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, "warn-evil", p.RuleName)
	require.Equal(t, ActionWarnUser, p.Action)
}

func TestNetworkBehaviorPolicy_UpsertUpdatesInPlace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNetworkBehaviorPolicy(ctx, NetworkBehaviorPolicy{
		Domain: "evil.example", ThreatType: "c2_beacon", Policy: "block", Confidence: 800,
	}))
	require.NoError(t, s.UpsertNetworkBehaviorPolicy(ctx, NetworkBehaviorPolicy{
		Domain: "evil.example", ThreatType: "c2_beacon", Policy: "block", Confidence: 950,
	}))

	p, err := s.GetNetworkBehaviorPolicy(ctx, "evil.example", "c2_beacon")
	require.NoError(t, err)
	require.Equal(t, 950, p.Confidence)
}

func TestCleanupExpiredPolicies_RemovesOnlyExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	past := s.nowFunc().Add(-time.Hour)

	_, err := s.CreatePolicy(ctx, Policy{RuleName: "expired", Action: ActionBlock, MatchType: MatchDownloadOriginFileType, ExpiresAt: &past})
	require.NoError(t, err)
	_, err = s.CreatePolicy(ctx, Policy{RuleName: "still-valid", Action: ActionBlock, MatchType: MatchDownloadOriginFileType})
	require.NoError(t, err)

	n, err := s.CleanupExpiredPolicies(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	policies, err := s.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	require.Equal(t, "still-valid", policies[0].RuleName)
}

func TestVerifyDatabaseIntegrity_ReportsHealthy(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.VerifyDatabaseIntegrity(context.Background()))
	require.True(t, s.IsDatabaseHealthy())
}
