package domain

import (
	"strings"
)

// Cue-word confidence levels for the lightweight in-process detector. The
// external classifier delivers richer analyses; these values keep cue-only
// runs well below auto-qualify thresholds.
const (
	cueConfidenceWeak   = 0.3
	cueConfidenceMedium = 0.5
)

var budgetCues = []string{"budget", "prijs", "kosten", "offerte", "wat kost", "price", "quote"}

var decisionMakerCues = []string{"ik beslis", "eigenaar", "directeur", "owner", "i decide"}
var authorityCues = []string{"namens", "ons bedrijf", "wij zoeken", "our company"}

var urgentNeedCues = []string{"kapot", "storing", "dringend", "spoed", "urgent", "broken"}
var needCues = []string{"probleem", "nodig", "zoeken naar", "problem", "looking for"}

var immediateCues = []string{"vandaag", "morgen", "deze week", "today", "asap", "this week"}
var soonCues = []string{"volgende week", "binnenkort", "next week", "soon"}

// DetectCues builds a conservative analysis from cue words in one message.
// It is the fallback scoring input when no external classification arrived.
func DetectCues(text string) Analysis {
	lowered := strings.ToLower(text)
	var a Analysis

	if containsAny(lowered, budgetCues) {
		a.Budget = BudgetSignal{Detected: true, Confidence: cueConfidenceMedium}
	}
	if containsAny(lowered, decisionMakerCues) {
		a.Authority = AuthoritySignal{Detected: true, IsDecisionMaker: true, Confidence: cueConfidenceMedium}
	} else if containsAny(lowered, authorityCues) {
		a.Authority = AuthoritySignal{Detected: true, Confidence: cueConfidenceWeak}
	}
	if containsAny(lowered, urgentNeedCues) {
		a.Need = NeedSignal{Detected: true, Urgency: UrgencyHigh, Confidence: cueConfidenceMedium}
	} else if containsAny(lowered, needCues) {
		a.Need = NeedSignal{Detected: true, Urgency: UrgencyMedium, Confidence: cueConfidenceWeak}
	}
	if containsAny(lowered, immediateCues) {
		a.Timeline = TimelineSignal{Detected: true, Timeframe: TimeframeImmediate, Confidence: cueConfidenceMedium}
	} else if containsAny(lowered, soonCues) {
		a.Timeline = TimelineSignal{Detected: true, Timeframe: TimeframeWithinTwoWeeks, Confidence: cueConfidenceWeak}
	}

	if a.HasSignal() {
		a.Reasoning = "cue-word detection"
	}
	return a
}

func containsAny(lowered string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(lowered, cue) {
			return true
		}
	}
	return false
}
