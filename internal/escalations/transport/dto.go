// Package transport defines the HTTP DTOs for the escalation queue.
package transport

import (
	"time"

	"converse_backend/internal/escalations/domain"
	"converse_backend/internal/escalations/repository"

	"github.com/google/uuid"
)

// TicketResponse is one queue entry. WaitSeconds is the live wait for
// pending tickets.
type TicketResponse struct {
	ID                uuid.UUID  `json:"id"`
	ConversationID    string     `json:"conversation_id"`
	SectorID          uuid.UUID  `json:"sector_id"`
	Reason            string     `json:"reason"`
	Priority          int        `json:"priority"`
	Status            string     `json:"status"`
	CustomerSentiment *string    `json:"customer_sentiment,omitempty"`
	LeadScore         *int       `json:"lead_score,omitempty"`
	AISummary         *string    `json:"ai_summary,omitempty"`
	DetectedIntent    *string    `json:"detected_intent,omitempty"`
	AssignedUser      *uuid.UUID `json:"assigned_user,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	AssignedAt        *time.Time `json:"assigned_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	WaitSeconds       float64    `json:"wait_seconds"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket, now time.Time) TicketResponse {
	resp := TicketResponse{
		ID:                t.ID,
		ConversationID:    t.ConversationID,
		SectorID:          t.SectorID,
		Reason:            t.Reason,
		Priority:          t.Priority,
		Status:            string(t.Status),
		CustomerSentiment: t.CustomerSentiment,
		LeadScore:         t.LeadScore,
		AISummary:         t.AISummary,
		DetectedIntent:    t.DetectedIntent,
		AssignedUser:      t.AssignedUser,
		CreatedAt:         t.CreatedAt,
		AssignedAt:        t.AssignedAt,
		ResolvedAt:        t.ResolvedAt,
	}
	switch t.Status {
	case domain.StatusPending:
		resp.WaitSeconds = now.Sub(t.CreatedAt).Seconds()
	case domain.StatusAssigned, domain.StatusResolved:
		if t.AssignedAt != nil {
			resp.WaitSeconds = t.AssignedAt.Sub(t.CreatedAt).Seconds()
		} else if t.ResolvedAt != nil {
			resp.WaitSeconds = t.ResolvedAt.Sub(t.CreatedAt).Seconds()
		}
	}
	return resp
}

// ListTicketsQuery filters the queue listing.
type ListTicketsQuery struct {
	SectorID *uuid.UUID `form:"sector_id"`
	Status   string     `form:"status" binding:"omitempty,oneof=pending assigned resolved"`
	Limit    int        `form:"limit" binding:"omitempty,min=1,max=500"`
}

// StatsResponse is the queue wait-time report.
type StatsResponse struct {
	PendingCount       int     `json:"pending_count"`
	LongestWaitSeconds float64 `json:"longest_wait_seconds"`
	AvgResolvedSeconds float64 `json:"avg_resolved_wait_seconds"`
}

// NewStatsResponse maps repository stats.
func NewStatsResponse(s *repository.QueueStats) StatsResponse {
	return StatsResponse{
		PendingCount:       s.PendingCount,
		LongestWaitSeconds: s.LongestWaitSeconds,
		AvgResolvedSeconds: s.AvgResolvedSeconds,
	}
}
