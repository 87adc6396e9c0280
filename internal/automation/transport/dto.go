// Package transport defines the HTTP DTOs for the automation module.
package transport

import (
	"time"

	"converse_backend/internal/automation/domain"

	"github.com/google/uuid"
)

// InboundMessageRequest is the webhook payload for one customer message.
type InboundMessageRequest struct {
	ConversationID string    `json:"conversation_id" binding:"required"`
	SectorID       uuid.UUID `json:"sector_id" binding:"required"`
	Text           string    `json:"text" binding:"required"`
	Sentiment      string    `json:"sentiment" binding:"omitempty,oneof=positive neutral negative"`
	ReceivedAt     time.Time `json:"received_at" binding:"omitempty"`
}

// DecisionResponse reports the automation outcome for an inbound message.
type DecisionResponse struct {
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	ReplyText string `json:"reply_text,omitempty"`
}

// NewDecisionResponse maps a domain decision.
func NewDecisionResponse(d domain.Decision) DecisionResponse {
	return DecisionResponse{
		Outcome:   string(d.Outcome),
		Reason:    d.Reason,
		ReplyText: d.ReplyText,
	}
}

// SessionResponse exposes the automation state of a conversation.
type SessionResponse struct {
	ConversationID   string     `json:"conversation_id"`
	SectorID         uuid.UUID  `json:"sector_id"`
	Mode             string     `json:"mode"`
	AutoReplyCount   int        `json:"auto_reply_count"`
	LastAIResponseAt *time.Time `json:"last_ai_response_at,omitempty"`
	EscalatedAt      *time.Time `json:"escalated_at,omitempty"`
	EscalationReason *string    `json:"escalation_reason,omitempty"`
	DetectedIntent   *string    `json:"detected_intent,omitempty"`
	LeadScore        *int       `json:"lead_score,omitempty"`
}

// NewSessionResponse maps a domain session.
func NewSessionResponse(s *domain.Session) SessionResponse {
	resp := SessionResponse{
		ConversationID:   s.ConversationID,
		SectorID:         s.SectorID,
		Mode:             string(s.Mode),
		AutoReplyCount:   s.AutoReplyCount,
		LastAIResponseAt: s.LastAIResponseAt,
		EscalatedAt:      s.EscalatedAt,
		DetectedIntent:   s.DetectedIntent,
		LeadScore:        s.LeadScore,
	}
	if s.EscalationReason != nil {
		reason := string(*s.EscalationReason)
		resp.EscalationReason = &reason
	}
	return resp
}

// EscalateRequest triggers a manual hand-off.
type EscalateRequest struct {
	Reason string `json:"reason" binding:"omitempty,oneof=keyword sentiment timeout limit complexity manual ai_suggested"`
}

// ReviewModeRequest toggles hybrid (held-for-review) handling.
type ReviewModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
