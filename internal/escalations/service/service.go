// Package service implements the escalation queue: ticket creation with the
// priority policy, the multi-agent accept race, resolution and reporting.
package service

import (
	"context"
	"fmt"
	"time"

	domainevents "converse_backend/internal/events"
	"converse_backend/internal/escalations/domain"
	"converse_backend/internal/escalations/repository"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"
	"converse_backend/platform/metrics"

	"github.com/google/uuid"
)

// TicketStore is the persistence surface of the queue.
type TicketStore interface {
	Open(ctx context.Context, t *domain.Ticket) (*domain.Ticket, bool, error)
	Get(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error)
	List(ctx context.Context, f repository.ListFilter) ([]domain.Ticket, error)
	Accept(ctx context.Context, ticketID, agentID uuid.UUID) (*domain.Ticket, error)
	Resolve(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, bool, error)
	Stats(ctx context.Context, sectorID *uuid.UUID) (*repository.QueueStats, error)
	CountPending(ctx context.Context) (int, error)
}

// OpenTicketParams describes a new escalation.
type OpenTicketParams struct {
	ConversationID string
	SectorID       uuid.UUID
	Reason         string
	Sentiment      string
	LeadScore      *int
	Summary        string
	DetectedIntent *string
}

// Service is the escalation queue.
type Service struct {
	store   TicketStore
	bus     events.Bus
	metrics *metrics.Metrics
	log     *logger.Logger
}

// New creates the queue service.
func New(store TicketStore, bus events.Bus, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, metrics: m, log: log}
}

// OpenTicket creates a pending ticket for a conversation, or returns the
// conversation's existing open ticket. Priority is fixed at creation time.
func (s *Service) OpenTicket(ctx context.Context, p OpenTicketParams) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		ID:             uuid.New(),
		ConversationID: p.ConversationID,
		SectorID:       p.SectorID,
		Reason:         p.Reason,
		Priority:       domain.ComputePriority(p.Reason, p.LeadScore),
		Status:         domain.StatusPending,
		LeadScore:      p.LeadScore,
		DetectedIntent: p.DetectedIntent,
	}
	if p.Sentiment != "" {
		ticket.CustomerSentiment = &p.Sentiment
	}
	if p.Summary != "" {
		ticket.AISummary = &p.Summary
	}

	stored, created, err := s.store.Open(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("escalation ticket opened",
			"ticket_id", stored.ID,
			"conversation_id", stored.ConversationID,
			"reason", stored.Reason,
			"priority", stored.Priority,
		)
		s.refreshPendingGauge(ctx)
	}
	return stored, nil
}

// Accept claims a pending ticket for an agent. A lost race surfaces as
// apperr.KindConflict so the caller can refresh the queue view.
func (s *Service) Accept(ctx context.Context, ticketID, agentID uuid.UUID) (*domain.Ticket, error) {
	ticket, err := s.store.Accept(ctx, ticketID, agentID)
	if err != nil {
		return nil, err
	}

	wait := time.Duration(0)
	if ticket.AssignedAt != nil {
		wait = ticket.AssignedAt.Sub(ticket.CreatedAt)
	}
	s.metrics.EscalationWait.Observe(wait.Seconds())
	s.refreshPendingGauge(ctx)

	s.bus.Publish(ctx, domainevents.TicketAssigned{
		BaseEvent:      events.NewBaseEvent(),
		TicketID:       ticket.ID,
		ConversationID: ticket.ConversationID,
		AgentID:        agentID,
		WaitSeconds:    wait.Seconds(),
	})
	return ticket, nil
}

// Resolve closes a ticket and hands the conversation back to automation via
// the ticket-resolved event. Resolving twice is a no-op.
func (s *Service) Resolve(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	ticket, changed, err := s.store.Resolve(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return ticket, nil
	}
	s.refreshPendingGauge(ctx)

	var agentID uuid.UUID
	if ticket.AssignedUser != nil {
		agentID = *ticket.AssignedUser
	}
	s.bus.Publish(ctx, domainevents.TicketResolved{
		BaseEvent:      events.NewBaseEvent(),
		TicketID:       ticket.ID,
		ConversationID: ticket.ConversationID,
		AgentID:        agentID,
	})
	return ticket, nil
}

// List returns tickets in queue order: priority descending, oldest first.
func (s *Service) List(ctx context.Context, f repository.ListFilter) ([]domain.Ticket, error) {
	tickets, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	domain.SortQueue(tickets)
	return tickets, nil
}

// Get returns one ticket.
func (s *Service) Get(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	return s.store.Get(ctx, ticketID)
}

// Stats returns the wait-time report for a sector, or all sectors when
// sectorID is nil.
func (s *Service) Stats(ctx context.Context, sectorID *uuid.UUID) (*repository.QueueStats, error) {
	return s.store.Stats(ctx, sectorID)
}

func (s *Service) refreshPendingGauge(ctx context.Context) {
	n, err := s.store.CountPending(ctx)
	if err != nil {
		s.log.Error("refresh pending ticket gauge", "error", fmt.Sprintf("%v", err))
		return
	}
	s.metrics.PendingTickets.Set(float64(n))
}
