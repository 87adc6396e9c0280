package domain

import (
	"strings"
)

// EscalationMarker is the literal token the completion provider is prompted to
// emit when it wants a human to take over. It is stripped at this boundary and
// never leaks into outbound text.
const EscalationMarker = "[ESCALATE]"

// MatchEscalationKeyword scans text for the first configured trigger phrase.
// Matching is case-insensitive on substrings.
func MatchEscalationKeyword(text string, keywords []string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}

// ParseEscalationMarker splits completion output into clean outbound text and
// an escalation flag.
func ParseEscalationMarker(text string) (clean string, escalationRequested bool) {
	if !strings.Contains(text, EscalationMarker) {
		return strings.TrimSpace(text), false
	}
	clean = strings.ReplaceAll(text, EscalationMarker, "")
	return strings.TrimSpace(clean), true
}

// schedulingCues are phrases that indicate the customer wants to plan a
// meeting. Dutch and English, matched case-insensitively.
var schedulingCues = []string{
	"afspraak",
	"inplannen",
	"langskomen",
	"appointment",
	"schedule",
	"book a",
	"meeting",
	"call me back",
	"when are you available",
	"wanneer kunnen jullie",
}

// DetectSchedulingIntent reports whether the message asks to plan a meeting.
func DetectSchedulingIntent(text string) bool {
	lowered := strings.ToLower(text)
	for _, cue := range schedulingCues {
		if strings.Contains(lowered, cue) {
			return true
		}
	}
	return false
}

// SentimentNegative is the externally computed sentiment label that can
// trigger an escalation when the sector opts in.
const SentimentNegative = "negative"
