package policy

import (
	"regexp"
	"strings"

	"github.com/ent0n29/callbridge/internal/protocol"
)

type redactionRule struct {
	pattern *regexp.Regexp
	marker  string
}

// Cards run before phones so a card number is not reported as a phone.
var redactionRules = []redactionRule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

var secretParamHints = []string{"token", "secret", "password", "api_key", "apikey", "auth"}

// RedactPII masks emails, card numbers and phone numbers in input.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, rule := range redactionRules {
		next := rule.pattern.ReplaceAllString(out, rule.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// RedactParams renders call parameters for logging: secrets are masked
// entirely and every other value has PII removed.
func RedactParams(params protocol.Params) map[string]string {
	out := make(map[string]string, len(params))
	for _, kv := range params {
		if _, seen := out[kv.Name]; seen {
			continue
		}
		if isSecretParam(kv.Name) {
			out[kv.Name] = maskSecret(kv.Value)
			continue
		}
		out[kv.Name], _ = RedactPII(kv.Value)
	}
	return out
}

func isSecretParam(name string) bool {
	n := strings.ToLower(name)
	for _, hint := range secretParamHints {
		if strings.Contains(n, hint) {
			return true
		}
	}
	return false
}

func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	return "[REDACTED]"
}
