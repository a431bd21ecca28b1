package policystore

import (
	"regexp"
	"strings"

	"sentinel/internal/sentinelerr"
)

// Every CRUD entry point calls validatePolicy first. Rejected shapes never
// reach a query, so SQL-injection-looking payloads fail here rather than
// relying on a LIKE ESCAPE clause (see SPEC_FULL.md §9 on the Open
// Question about ESCAPE semantics).
var urlPatternCharset = regexp.MustCompile(`^[A-Za-z0-9/_.*%:-]*$`)
var hexHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

const (
	maxRuleNameLen   = 256
	maxURLPatternLen = 2048
	maxMimeTypeLen   = 256
	maxWildcards     = 10
)

func hasControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

func validateRuleName(name string) error {
	if name == "" {
		return sentinelerr.New(sentinelerr.InvalidInput, "rule_name must not be empty")
	}
	if len(name) > maxRuleNameLen {
		return sentinelerr.New(sentinelerr.InvalidInput, "rule_name exceeds 256 bytes")
	}
	if hasControlChars(name) {
		return sentinelerr.New(sentinelerr.InvalidInput, "rule_name contains control characters")
	}
	return nil
}

func validateURLPattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	if len(pattern) > maxURLPatternLen {
		return sentinelerr.New(sentinelerr.InvalidInput, "url_pattern exceeds 2048 bytes")
	}
	if !urlPatternCharset.MatchString(pattern) {
		return sentinelerr.New(sentinelerr.InvalidInput, "url_pattern contains disallowed characters")
	}
	if strings.Count(pattern, "*")+strings.Count(pattern, "%") > maxWildcards {
		return sentinelerr.New(sentinelerr.InvalidInput, "url_pattern has too many wildcards")
	}
	return nil
}

func validateFileHash(hash string) error {
	if hash == "" {
		return nil
	}
	if !hexHash.MatchString(hash) {
		return sentinelerr.New(sentinelerr.InvalidInput, "file_hash must be 64 lowercase hex characters")
	}
	return nil
}

func validateMimeType(mime string) error {
	if len(mime) > maxMimeTypeLen {
		return sentinelerr.New(sentinelerr.InvalidInput, "mime_type exceeds 256 bytes")
	}
	return nil
}

var validActions = map[Action]bool{
	ActionAllow: true, ActionBlock: true, ActionQuarantine: true,
	ActionBlockAutofill: true, ActionWarnUser: true,
}

var validMatchTypes = map[MatchType]bool{
	MatchDownloadOriginFileType: true, MatchFormActionMismatch: true,
	MatchInsecureCredentialPost: true, MatchThirdPartyFormPost: true,
}

func validatePolicy(p Policy) error {
	if err := validateRuleName(p.RuleName); err != nil {
		return err
	}
	if err := validateURLPattern(p.URLPattern); err != nil {
		return err
	}
	if err := validateFileHash(p.FileHash); err != nil {
		return err
	}
	if err := validateMimeType(p.MimeType); err != nil {
		return err
	}
	if !validActions[p.Action] {
		return sentinelerr.New(sentinelerr.InvalidInput, "unknown policy action")
	}
	if !validMatchTypes[p.MatchType] {
		return sentinelerr.New(sentinelerr.InvalidInput, "unknown policy match_type")
	}
	return nil
}
