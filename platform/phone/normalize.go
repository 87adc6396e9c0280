// Package phone normalizes phone numbers for outbound message dispatch.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeE164 parses the input and returns it in E.164 form.
// Numbers without a country code are assumed to be Dutch. Unparseable
// input is returned trimmed so the dispatch layer can still log it.
func NormalizeE164(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(trimmed, "NL")
	if err != nil {
		return trimmed
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}
