package audit

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	tokenPattern = regexp.MustCompile(`\b(?:sk|pk|rk)-[A-Za-z0-9_\-]{16,}\b`)
)

type redaction struct {
	pattern *regexp.Regexp
	marker  string
}

// Cards go before phones so long digit runs are not reported as phone numbers.
var redactions = []redaction{
	{emailPattern, "[REDACTED_EMAIL]"},
	{tokenPattern, "[REDACTED_TOKEN]"},
	{cardPattern, "[REDACTED_CARD]"},
	{phonePattern, "[REDACTED_PHONE]"},
}

// RedactPII masks emails, API keys, card and phone numbers.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range redactions {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
