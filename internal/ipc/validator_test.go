package ipc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateNonEmpty_RejectsEmptyString(t *testing.T) {
	require.Error(t, validateNonEmpty("", "rule_name"))
	require.NoError(t, validateNonEmpty("x", "rule_name"))
}

func TestValidateLength_EnforcesMinAndMax(t *testing.T) {
	require.Error(t, validateLength("a", 2, 10, "field"))
	require.Error(t, validateLength("aaaaaaaaaaa", 2, 10, "field"))
	require.NoError(t, validateLength("aaa", 2, 10, "field"))
}

func TestValidateNoControlChars_AllowsTabNewlineCarriageReturn(t *testing.T) {
	require.NoError(t, validateNoControlChars("line1\tline2\nline3\r", "field"))
	require.Error(t, validateNoControlChars("bad\x01char", "field"))
	require.Error(t, validateNoControlChars("del\x7f", "field"))
}

func TestValidateURLPattern_RejectsUnsafeCharsAndTooManyWildcards(t *testing.T) {
	require.NoError(t, validateURLPattern(""))
	require.NoError(t, validateURLPattern("https://example.com/*"))
	require.Error(t, validateURLPattern("https://example.com/<script>"))

	manyWildcards := ""
	for i := 0; i < 11; i++ {
		manyWildcards += "*"
	}
	require.Error(t, validateURLPattern(manyWildcards))
}

func TestValidateFilePath_RejectsNullBytesAndControlChars(t *testing.T) {
	require.NoError(t, validateFilePath("/tmp/file.txt"))
	require.Error(t, validateFilePath("/tmp/file\x00.txt"))
	require.Error(t, validateFilePath(""))
}

func TestValidateSHA256_RequiresExactLengthHex(t *testing.T) {
	require.NoError(t, validateSHA256(""))
	valid := ""
	for i := 0; i < 64; i++ {
		valid += "a"
	}
	require.NoError(t, validateSHA256(valid))
	require.Error(t, validateSHA256("not-a-hash"))
	require.Error(t, validateSHA256(valid[:63]))
}

func TestValidateTimestamp_RejectsNegativeAndFarFuture(t *testing.T) {
	require.Error(t, validateTimestamp(-1))
	require.NoError(t, validateTimestamp(0))

	const twoYearsMS = 2 * 365 * 24 * 60 * 60 * 1000
	require.Error(t, validateTimestamp(nowMillis()+twoYearsMS))
}

func TestValidateExpiry_NegativeOneMeansNeverExpires(t *testing.T) {
	require.NoError(t, validateExpiry(-1))
	require.Error(t, validateExpiry(nowMillis()-1000))

	const elevenYearsMS = 11 * 365 * 24 * 60 * 60 * 1000
	require.Error(t, validateExpiry(nowMillis()+elevenYearsMS))
}

func TestValidateAction_RejectsUnknownAction(t *testing.T) {
	require.NoError(t, validateAction("allow"))
	require.NoError(t, validateAction("block_autofill"))
	require.Error(t, validateAction("delete_everything"))
}

func TestValidateMatchType_RejectsUnknownType(t *testing.T) {
	require.NoError(t, validateMatchType("form_action_mismatch"))
	require.Error(t, validateMatchType("bogus"))
}

func TestValidateMIMEType_RequiresExactlyOneSlash(t *testing.T) {
	require.NoError(t, validateMIMEType(""))
	require.NoError(t, validateMIMEType("application/octet-stream"))
	require.Error(t, validateMIMEType("application"))
	require.Error(t, validateMIMEType("a/b/c"))
}

func TestValidateConfigValue_DispatchesOnKeyConvention(t *testing.T) {
	require.NoError(t, validateConfigValue("policy_cache_size", json.RawMessage(`500`)))
	require.Error(t, validateConfigValue("policy_cache_size", json.RawMessage(`-1`)))
	require.Error(t, validateConfigValue("policy_cache_size", json.RawMessage(`"not a number"`)))

	require.NoError(t, validateConfigValue("scan_timeout_ms", json.RawMessage(`5000`)))
	require.Error(t, validateConfigValue("scan_timeout_ms", json.RawMessage(`1`)))

	require.NoError(t, validateConfigValue("enable_tier2", json.RawMessage(`true`)))
	require.Error(t, validateConfigValue("enable_tier2", json.RawMessage(`"yes"`)))

	require.NoError(t, validateConfigValue("quarantine_dir", json.RawMessage(`"/tmp/quarantine"`)))
	require.NoError(t, validateConfigValue("unknown_future_key", json.RawMessage(`42`)))
}

func TestValidateQuarantineID_RequiresExactFormat(t *testing.T) {
	require.NoError(t, validateQuarantineID("20260731_120501_a1b2c3"))
	require.Error(t, validateQuarantineID("too_short"))
	require.Error(t, validateQuarantineID("2026073a_120501_a1b2c3"))
	require.Error(t, validateQuarantineID("20260731-120501_a1b2c3"))
}

func TestValidateRuleName_RejectsEmptyAndControlChars(t *testing.T) {
	require.NoError(t, validateRuleName("block-known-malware"))
	require.Error(t, validateRuleName(""))
	require.Error(t, validateRuleName("bad\x01name"))
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
