// Package domain holds the pure conversation-automation logic: the mode state
// machine, the working-hours gate and the text signal detectors. Nothing in
// this package touches I/O.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Mode is the automation mode of a conversation session.
type Mode string

const (
	// ModeAI means the conversation is handled fully automatically.
	ModeAI Mode = "ai"
	// ModeHuman means a human agent owns the conversation.
	ModeHuman Mode = "human"
	// ModeHybrid means replies are generated automatically but held for review.
	ModeHybrid Mode = "hybrid"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeAI, ModeHuman, ModeHybrid:
		return true
	}
	return false
}

// Trigger is a mode-change cause.
type Trigger string

const (
	TriggerEscalate      Trigger = "escalate"
	TriggerReturnToAI    Trigger = "return_to_ai"
	TriggerEnableReview  Trigger = "enable_review"
	TriggerDisableReview Trigger = "disable_review"
)

// transitions is the single source of truth for legal mode changes.
var transitions = map[Mode]map[Trigger]Mode{
	ModeAI: {
		TriggerEscalate:     ModeHuman,
		TriggerEnableReview: ModeHybrid,
	},
	ModeHybrid: {
		TriggerEscalate:      ModeHuman,
		TriggerDisableReview: ModeAI,
	},
	ModeHuman: {
		TriggerReturnToAI: ModeAI,
	},
}

// Transition returns the target mode for a trigger applied in the given mode.
// The second return value is false when the trigger is not legal from that mode.
func Transition(from Mode, trigger Trigger) (Mode, bool) {
	to, ok := transitions[from][trigger]
	return to, ok
}

// EscalationReason classifies why a conversation was handed to a human.
type EscalationReason string

const (
	ReasonKeyword     EscalationReason = "keyword"
	ReasonSentiment   EscalationReason = "sentiment"
	ReasonTimeout     EscalationReason = "timeout"
	ReasonLimit       EscalationReason = "limit"
	ReasonComplexity  EscalationReason = "complexity"
	ReasonManual      EscalationReason = "manual"
	ReasonAISuggested EscalationReason = "ai_suggested"
)

// Valid reports whether r is a known escalation reason.
func (r EscalationReason) Valid() bool {
	switch r {
	case ReasonKeyword, ReasonSentiment, ReasonTimeout, ReasonLimit,
		ReasonComplexity, ReasonManual, ReasonAISuggested:
		return true
	}
	return false
}

// Session is the per-conversation automation record.
type Session struct {
	ConversationID   string
	SectorID         uuid.UUID
	Mode             Mode
	AutoReplyCount   int
	LastAIResponseAt *time.Time
	EscalatedAt      *time.Time
	EscalationReason *EscalationReason
	DetectedIntent   *string
	LeadScore        *int
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
