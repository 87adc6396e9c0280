// Package repository persists escalation tickets. The pending→assigned claim
// is a single conditional UPDATE so exactly one agent wins an accept race.
package repository

import (
	"context"
	"errors"
	"fmt"

	"converse_backend/internal/escalations/domain"
	"converse_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores tickets in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a ticket repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const ticketColumns = `
	id, conversation_id, sector_id, reason, priority, status,
	customer_sentiment, lead_score, ai_summary, detected_intent,
	assigned_user, created_at, assigned_at, resolved_at`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID, &t.ConversationID, &t.SectorID, &t.Reason, &t.Priority, &t.Status,
		&t.CustomerSentiment, &t.LeadScore, &t.AISummary, &t.DetectedIntent,
		&t.AssignedUser, &t.CreatedAt, &t.AssignedAt, &t.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("escalation ticket not found")
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	return &t, nil
}

// Open creates a ticket for the conversation, or returns the existing open
// one. The partial unique index on open tickets makes this idempotent per
// conversation.
func (r *Repository) Open(ctx context.Context, t *domain.Ticket) (*domain.Ticket, bool, error) {
	insert := `
		INSERT INTO escalation_tickets
			(id, conversation_id, sector_id, reason, priority, status,
			 customer_sentiment, lead_score, ai_summary, detected_intent)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, $8, $9)
		ON CONFLICT (conversation_id) WHERE status <> 'resolved' DO NOTHING
		RETURNING ` + ticketColumns

	created, err := scanTicket(r.db.QueryRow(ctx, insert,
		t.ID, t.ConversationID, t.SectorID, t.Reason, t.Priority,
		t.CustomerSentiment, t.LeadScore, t.AISummary, t.DetectedIntent,
	))
	if err == nil {
		return created, true, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, fmt.Errorf("open ticket: %w", err)
	}

	existing, err := r.GetOpenByConversation(ctx, t.ConversationID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get returns one ticket by id.
func (r *Repository) Get(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM escalation_tickets WHERE id = $1`
	return scanTicket(r.db.QueryRow(ctx, query, ticketID))
}

// GetOpenByConversation returns the non-resolved ticket for a conversation.
func (r *Repository) GetOpenByConversation(ctx context.Context, conversationID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM escalation_tickets WHERE conversation_id = $1 AND status <> 'resolved'`
	return scanTicket(r.db.QueryRow(ctx, query, conversationID))
}

// ListFilter narrows ticket listings.
type ListFilter struct {
	SectorID *uuid.UUID
	Status   *domain.Status
	Limit    int
}

// List returns tickets ordered by priority descending, oldest first within a
// priority.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
		FROM escalation_tickets
		WHERE ($1::uuid IS NULL OR sector_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY priority DESC, created_at ASC
		LIMIT $3`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, query, f.SectorID, f.Status, limit)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// Accept claims a pending ticket for an agent. Exactly one concurrent accept
// succeeds; the rest get apperr.KindConflict.
func (r *Repository) Accept(ctx context.Context, ticketID, agentID uuid.UUID) (*domain.Ticket, error) {
	update := `
		UPDATE escalation_tickets
		SET status = 'assigned', assigned_user = $2, assigned_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + ticketColumns

	ticket, err := scanTicket(r.db.QueryRow(ctx, update, ticketID, agentID))
	if err == nil {
		return ticket, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, fmt.Errorf("accept ticket: %w", err)
	}

	// The conditional update matched nothing: either the ticket does not
	// exist or another agent already claimed it.
	if _, getErr := r.Get(ctx, ticketID); getErr != nil {
		return nil, getErr
	}
	return nil, apperr.Conflict("ticket already assigned")
}

// Resolve closes a ticket. Returns the ticket and whether this call changed
// its state; resolving an already resolved ticket is a no-op.
func (r *Repository) Resolve(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, bool, error) {
	update := `
		UPDATE escalation_tickets
		SET status = 'resolved', resolved_at = now()
		WHERE id = $1 AND status <> 'resolved'
		RETURNING ` + ticketColumns

	ticket, err := scanTicket(r.db.QueryRow(ctx, update, ticketID))
	if err == nil {
		return ticket, true, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, fmt.Errorf("resolve ticket: %w", err)
	}

	ticket, err = r.Get(ctx, ticketID)
	if err != nil {
		return nil, false, err
	}
	return ticket, false, nil
}

// QueueStats is the wait-time report for a sector's queue.
type QueueStats struct {
	PendingCount       int
	LongestWaitSeconds float64
	AvgResolvedSeconds float64
}

// Stats computes the queue report. Pending wait is measured against now;
// resolved wait is measured to assignment when an agent picked the ticket up,
// otherwise to resolution.
func (r *Repository) Stats(ctx context.Context, sectorID *uuid.UUID) (*QueueStats, error) {
	query := `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			COALESCE(max(extract(epoch FROM now() - created_at)) FILTER (WHERE status = 'pending'), 0),
			COALESCE(avg(extract(epoch FROM COALESCE(assigned_at, resolved_at) - created_at)) FILTER (WHERE status = 'resolved'), 0)
		FROM escalation_tickets
		WHERE ($1::uuid IS NULL OR sector_id = $1)`

	var stats QueueStats
	err := r.db.QueryRow(ctx, query, sectorID).Scan(
		&stats.PendingCount, &stats.LongestWaitSeconds, &stats.AvgResolvedSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &stats, nil
}

// CountPending returns the number of pending tickets across all sectors.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM escalation_tickets WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending tickets: %w", err)
	}
	return n, nil
}
