// Package transport defines the HTTP DTOs for the leads module.
package transport

import (
	"time"

	"converse_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// SignalDTO mirrors one BANT dimension on the wire.
type SignalDTO struct {
	Detected        bool     `json:"detected"`
	Confidence      float64  `json:"confidence" binding:"omitempty"`
	ValueEstimate   float64  `json:"value_estimate,omitempty"`
	Role            string   `json:"role,omitempty"`
	IsDecisionMaker bool     `json:"is_decision_maker,omitempty"`
	PainPoints      []string `json:"pain_points,omitempty"`
	Urgency         string   `json:"urgency,omitempty" binding:"omitempty,oneof=high medium low"`
	Timeframe       string   `json:"timeframe,omitempty" binding:"omitempty,oneof=immediate within_two_weeks within_month indefinite"`
}

// QualifyRequest is a structured analysis from an external classifier.
type QualifyRequest struct {
	ConversationID    string    `json:"conversation_id" binding:"required"`
	SectorID          uuid.UUID `json:"sector_id" binding:"required"`
	Budget            SignalDTO `json:"budget"`
	Authority         SignalDTO `json:"authority"`
	Need              SignalDTO `json:"need"`
	Timeline          SignalDTO `json:"timeline"`
	OverallIntent     string    `json:"overall_intent,omitempty"`
	RecommendedAction string    `json:"recommended_action,omitempty"`
	SuggestedValue    float64   `json:"suggested_value,omitempty"`
	Reasoning         string    `json:"reasoning,omitempty"`
}

// ToAnalysis maps the request onto the scoring input.
func (r QualifyRequest) ToAnalysis() domain.Analysis {
	return domain.Analysis{
		Budget: domain.BudgetSignal{
			Detected:      r.Budget.Detected,
			ValueEstimate: r.Budget.ValueEstimate,
			Confidence:    r.Budget.Confidence,
		},
		Authority: domain.AuthoritySignal{
			Detected:        r.Authority.Detected,
			Role:            r.Authority.Role,
			IsDecisionMaker: r.Authority.IsDecisionMaker,
			Confidence:      r.Authority.Confidence,
		},
		Need: domain.NeedSignal{
			Detected:   r.Need.Detected,
			PainPoints: r.Need.PainPoints,
			Urgency:    domain.Urgency(r.Need.Urgency),
			Confidence: r.Need.Confidence,
		},
		Timeline: domain.TimelineSignal{
			Detected:   r.Timeline.Detected,
			Timeframe:  domain.Timeframe(r.Timeline.Timeframe),
			Confidence: r.Timeline.Confidence,
		},
		OverallIntent:     r.OverallIntent,
		RecommendedAction: r.RecommendedAction,
		SuggestedValue:    r.SuggestedValue,
		Reasoning:         r.Reasoning,
	}
}

// QualifyResponse reports one scoring run.
type QualifyResponse struct {
	LeadID         *uuid.UUID `json:"lead_id,omitempty"`
	PreviousScore  *int       `json:"previous_score,omitempty"`
	Score          int        `json:"score"`
	Status         string     `json:"status,omitempty"`
	LeadCreated    bool       `json:"lead_created"`
	NewlyQualified bool       `json:"newly_qualified"`
}

// LeadResponse exposes a stored lead.
type LeadResponse struct {
	ID             uuid.UUID              `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	SectorID       uuid.UUID              `json:"sector_id"`
	Score          int                    `json:"score"`
	Status         string                 `json:"status"`
	QualifiedAt    *time.Time             `json:"qualified_at,omitempty"`
	ValueEstimate  float64                `json:"value_estimate"`
	Budget         domain.BudgetSignal    `json:"budget"`
	Authority      domain.AuthoritySignal `json:"authority"`
	Need           domain.NeedSignal      `json:"need"`
	Timeline       domain.TimelineSignal  `json:"timeline"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// NewLeadResponse maps a domain lead.
func NewLeadResponse(l *domain.Lead) LeadResponse {
	return LeadResponse{
		ID:             l.ID,
		ConversationID: l.ConversationID,
		SectorID:       l.SectorID,
		Score:          l.Score,
		Status:         string(l.Status),
		QualifiedAt:    l.QualifiedAt,
		ValueEstimate:  l.ValueEstimate,
		Budget:         l.Budget,
		Authority:      l.Authority,
		Need:           l.Need,
		Timeline:       l.Timeline,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

// LogEntryResponse is one qualification audit row.
type LogEntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	LeadID        *uuid.UUID      `json:"lead_id,omitempty"`
	PreviousScore *int            `json:"previous_score,omitempty"`
	NewScore      int             `json:"new_score"`
	Analysis      domain.Analysis `json:"analysis"`
	CreatedAt     time.Time       `json:"created_at"`
}
