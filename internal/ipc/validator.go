// Package ipc is Sentinel's local-socket request surface: a newline-framed
// JSON protocol server, its field validation, and the action dispatch
// table that fans requests out to the rest of the service.
//
// Grounded on original_source/Services/Sentinel/InputValidator.{h,cpp} for
// field validation and SentinelServer.{h,cpp} for the request/response
// shape and dispatch.
package ipc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// validationError reports a single field failing validation. It is always
// wrapped as a *sentinelerr.Error with kind InvalidInput by callers so the
// router's error responses stay consistent with the rest of the service.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// validateNonEmpty rejects an empty string.
func validateNonEmpty(s, fieldName string) error {
	if s == "" {
		return invalid("field %q cannot be empty", fieldName)
	}
	return nil
}

// validateLength rejects a string shorter than min or longer than max
// bytes.
func validateLength(s string, min, max int, fieldName string) error {
	n := len(s)
	if n < min {
		return invalid("field %q is too short (min %d bytes, got %d bytes)", fieldName, min, n)
	}
	if n > max {
		return invalid("field %q is too long (max %d bytes, got %d bytes)", fieldName, max, n)
	}
	return nil
}

// validateASCIIOnly rejects any byte above 127.
func validateASCIIOnly(s, fieldName string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return invalid("field %q must contain only ASCII characters", fieldName)
		}
	}
	return nil
}

// validateNoControlChars rejects C0 control bytes other than tab, newline,
// and carriage return, plus DEL (127).
func validateNoControlChars(s, fieldName string) error {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch < 32 && ch != '\t' && ch != '\n' && ch != '\r') || ch == 127 {
			return invalid("field %q contains control characters", fieldName)
		}
	}
	return nil
}

// validatePrintableChars requires every byte to be ASCII 32-126.
func validatePrintableChars(s, fieldName string) error {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 32 || ch > 126 {
			return invalid("field %q must contain only printable characters", fieldName)
		}
	}
	return nil
}

// validatePositive requires value > 0.
func validatePositive(value int64, fieldName string) error {
	if value <= 0 {
		return invalid("field %q must be positive (got %d)", fieldName, value)
	}
	return nil
}

// validateNonNegative requires value >= 0.
func validateNonNegative(value int64, fieldName string) error {
	if value < 0 {
		return invalid("field %q must be non-negative (got %d)", fieldName, value)
	}
	return nil
}

// validateRange requires min <= value <= max.
func validateRange(value, min, max int64, fieldName string) error {
	if value < min || value > max {
		return invalid("field %q out of range (min %d, max %d, got %d)", fieldName, min, max, value)
	}
	return nil
}

func isAlphaNumeric(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// validateURLPattern checks a policy URL-matching pattern: length-bounded,
// restricted to a safe character set, with a wildcard ceiling to prevent a
// pathological glob from burning CPU in the matcher.
func validateURLPattern(pattern string) error {
	if err := validateLength(pattern, 0, 2048, "url_pattern"); err != nil {
		return err
	}
	if pattern == "" {
		return nil
	}

	wildcards := 0
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		safe := isAlphaNumeric(ch) ||
			ch == '/' || ch == '-' || ch == '_' ||
			ch == '.' || ch == '*' || ch == '%' || ch == ':'
		if !safe {
			return invalid("url pattern contains unsafe character: %q", string(ch))
		}
		if ch == '*' || ch == '%' {
			wildcards++
		}
	}
	if wildcards > 10 {
		return invalid("url pattern has too many wildcards (max 10)")
	}
	return nil
}

// validateFilePath checks a filesystem path string: length-bounded, no
// null bytes (path-truncation attack), no control characters. It does not
// resolve or canonicalize the path. scan_file additionally runs
// resolveScanPath (canonicalization plus a directory allow-list); the
// quarantine-restore handler writes to the validated destination as given.
func validateFilePath(path string) error {
	if err := validateLength(path, 1, 4096, "file_path"); err != nil {
		return err
	}
	if strings.IndexByte(path, 0) >= 0 {
		return invalid("file path contains null bytes")
	}
	return validateNoControlChars(path, "file_path")
}

// validateSafeURLChars checks a URL-shaped string against the RFC 3986
// unreserved-plus-generic-delimiter character set.
func validateSafeURLChars(url, fieldName string) error {
	if err := validateLength(url, 0, 2048, fieldName); err != nil {
		return err
	}
	for i := 0; i < len(url); i++ {
		ch := url[i]
		safe := isAlphaNumeric(ch) ||
			strings.IndexByte(":/?#[]@!$&'()*+,;=.-_~%", ch) >= 0
		if !safe {
			return invalid("field %q contains invalid URL characters", fieldName)
		}
	}
	return nil
}

// validateSHA256 validates a lowercase-or-mixed-case 64 character hex
// hash. An empty hash is accepted, meaning "no hash available".
func validateSHA256(hash string) error {
	return validateHexString(hash, 64, "sha256")
}

// validateHexString validates str is either empty or exactly
// expectedLength hex characters.
func validateHexString(str string, expectedLength int, fieldName string) error {
	if str == "" {
		return nil
	}
	if len(str) != expectedLength {
		return invalid("field %q has invalid length (expected %d hex chars, got %d)", fieldName, expectedLength, len(str))
	}
	for i := 0; i < len(str); i++ {
		if !isHexDigit(str[i]) {
			return invalid("field %q must contain only hex characters (0-9, a-f, A-F)", fieldName)
		}
	}
	return nil
}

// validateTimestamp requires a non-negative millisecond timestamp no more
// than one year in the future (to tolerate clock skew).
func validateTimestamp(timestampMS int64) error {
	if timestampMS < 0 {
		return invalid("timestamp cannot be negative")
	}
	const oneYearMS = 365 * 24 * 60 * 60 * 1000
	maxFuture := time.Now().UnixMilli() + oneYearMS
	if timestampMS > maxFuture {
		return invalid("timestamp is too far in the future (max 1 year from now)")
	}
	return nil
}

// validateExpiry requires a millisecond expiry timestamp in the future and
// no more than ten years out. -1 means "never expires".
func validateExpiry(expiresAtMS int64) error {
	if expiresAtMS == -1 {
		return nil
	}
	nowMS := time.Now().UnixMilli()
	if expiresAtMS <= nowMS {
		return invalid("expiry time must be in the future")
	}
	const tenYearsMS = 10 * 365 * 24 * 60 * 60 * 1000
	if expiresAtMS > nowMS+tenYearsMS {
		return invalid("expiry time is too far in the future (max 10 years)")
	}
	return nil
}

// validateTimestampRange requires minMS <= timestampMS <= maxMS.
func validateTimestampRange(timestampMS, minMS, maxMS int64, fieldName string) error {
	if timestampMS < minMS || timestampMS > maxMS {
		return invalid("field %q timestamp out of range", fieldName)
	}
	return nil
}

var validActions = map[string]bool{
	"allow": true, "block": true, "quarantine": true,
	"block_autofill": true, "warn_user": true,
}

// validateAction checks action against Sentinel's enforcement-action enum.
func validateAction(action string) error {
	if validActions[action] {
		return nil
	}
	return invalid("invalid action: %q (must be: allow, block, quarantine, block_autofill, or warn_user)", action)
}

var validMatchTypes = map[string]bool{
	"download_origin_file_type": true, "form_action_mismatch": true,
	"insecure_credential_post": true, "third_party_form_post": true,
}

// validateMatchType checks matchType against Sentinel's policy
// match-scenario enum.
func validateMatchType(matchType string) error {
	if validMatchTypes[matchType] {
		return nil
	}
	return invalid("invalid match type: %q (must be: download_origin_file_type, form_action_mismatch, insecure_credential_post, or third_party_form_post)", matchType)
}

// validateMIMEType requires an empty string or a "type/subtype" pair drawn
// from a restricted character set.
func validateMIMEType(mimeType string) error {
	if mimeType == "" {
		return nil
	}
	if err := validateLength(mimeType, 0, 255, "mime_type"); err != nil {
		return err
	}
	slashes := 0
	for i := 0; i < len(mimeType); i++ {
		ch := mimeType[i]
		valid := isAlphaNumeric(ch) || ch == '/' || ch == '-' || ch == '+' || ch == '.'
		if !valid {
			return invalid("mime type contains invalid characters")
		}
		if ch == '/' {
			slashes++
		}
	}
	if slashes != 1 {
		return invalid("mime type must be in format: type/subtype")
	}
	return nil
}

// validateConfigValue validates a single config key/value pair the way
// Sentinel's runtime config reload endpoint would, dispatching on key name
// or suffix convention (*_timeout, *_path, enable_*, ...).
func validateConfigValue(key string, value json.RawMessage) error {
	asInt := func() (int64, error) {
		var n json.Number
		if err := json.Unmarshal(value, &n); err != nil {
			return 0, invalid("field %q must be a number", key)
		}
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return 0, invalid("field %q must be an integer", key)
		}
		return i, nil
	}

	switch key {
	case "policy_cache_size":
		n, err := asInt()
		if err != nil {
			return err
		}
		return validateRange(n, 1, 100000, key)
	case "threat_retention_days":
		n, err := asInt()
		if err != nil {
			return err
		}
		return validateRange(n, 1, 3650, key)
	case "worker_threads":
		n, err := asInt()
		if err != nil {
			return err
		}
		return validateRange(n, 1, 64, key)
	case "max_scan_size", "max_file_size":
		n, err := asInt()
		if err != nil {
			return err
		}
		return validateRange(n, 1024, 10*1024*1024*1024, key)
	case "policies_per_minute":
		n, err := asInt()
		if err != nil {
			return err
		}
		return validateRange(n, 1, 1000, key)
	case "rate_window_seconds":
		n, err := asInt()
		if err != nil {
			return err
		}
		return validateRange(n, 1, 3600, key)
	}

	if strings.HasSuffix(key, "_timeout") || strings.HasSuffix(key, "_timeout_ms") {
		n, err := asInt()
		if err != nil {
			return err
		}
		return validateRange(n, 100, 300000, key)
	}

	if key == "enabled" || strings.HasPrefix(key, "enable_") {
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return invalid("boolean flag must be true or false")
		}
		return nil
	}

	if strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir") || strings.HasSuffix(key, "_directory") {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return invalid("path must be a string")
		}
		return validateFilePath(s)
	}

	// Unknown keys are allowed, for extensibility.
	return nil
}

// validateQuarantineID checks the YYYYMMDD_HHMMSS_XXXXXX (22 character)
// quarantine identifier format.
func validateQuarantineID(id string) error {
	if len(id) != 22 {
		return invalid("quarantine id must be 22 characters (format: YYYYMMDD_HHMMSS_XXXXXX)")
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		switch {
		case i < 8:
			if !isDigit(ch) {
				return invalid("quarantine id date portion must be digits")
			}
		case i == 8 || i == 15:
			if ch != '_' {
				return invalid("quarantine id must have underscores at positions 8 and 15")
			}
		case i >= 9 && i < 15:
			if !isDigit(ch) {
				return invalid("quarantine id time portion must be digits")
			}
		default:
			if !isHexDigit(ch) {
				return invalid("quarantine id random portion must be hex digits")
			}
		}
	}
	return nil
}

// validateRuleName checks a policy rule name: non-empty, length-bounded,
// no control characters.
func validateRuleName(name string) error {
	if err := validateNonEmpty(name, "rule_name"); err != nil {
		return err
	}
	if err := validateLength(name, 1, 256, "rule_name"); err != nil {
		return err
	}
	return validateNoControlChars(name, "rule_name")
}
