// Package adapters contains the thin translation layer between modules, so
// each module only depends on the port interfaces it defines itself.
package adapters

import (
	"context"

	automationservice "converse_backend/internal/automation/service"
	escalationservice "converse_backend/internal/escalations/service"

	"github.com/google/uuid"
)

// EscalationTicketOpener adapts the escalation queue to the automation
// module's TicketOpener port.
type EscalationTicketOpener struct {
	svc *escalationservice.Service
}

// NewEscalationTicketOpener creates the adapter.
func NewEscalationTicketOpener(svc *escalationservice.Service) *EscalationTicketOpener {
	return &EscalationTicketOpener{svc: svc}
}

// OpenTicket opens (or returns the existing) ticket for a conversation.
func (a *EscalationTicketOpener) OpenTicket(ctx context.Context, req automationservice.TicketRequest) (uuid.UUID, int, error) {
	ticket, err := a.svc.OpenTicket(ctx, escalationservice.OpenTicketParams{
		ConversationID: req.ConversationID,
		SectorID:       req.SectorID,
		Reason:         string(req.Reason),
		Sentiment:      req.Sentiment,
		LeadScore:      req.LeadScore,
		Summary:        req.Summary,
		DetectedIntent: req.DetectedIntent,
	})
	if err != nil {
		return uuid.Nil, 0, err
	}
	return ticket.ID, ticket.Priority, nil
}
