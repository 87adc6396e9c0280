// Package repository persists conversation sessions, their append-only event
// log and the durable record of automated replies.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"converse_backend/internal/automation/domain"
	"converse_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyEscalated signals that the session is already in human mode.
// Callers treat a repeated escalation as a no-op.
var ErrAlreadyEscalated = errors.New("session already escalated")

// ReplyKind distinguishes durable reply records.
type ReplyKind string

const (
	ReplyKindAI         ReplyKind = "ai"
	ReplyKindOutOfHours ReplyKind = "out_of_hours"
)

// Reply is one durably recorded outbound automated message.
type Reply struct {
	ID             uuid.UUID
	ConversationID string
	Kind           ReplyKind
	Body           string
	Tokens         int
	PendingReview  bool
	CreatedAt      time.Time
}

// Repository stores sessions in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a session repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `
	conversation_id, sector_id, mode, auto_reply_count, last_ai_response_at,
	escalated_at, escalation_reason, detected_intent, lead_score, version,
	created_at, updated_at`

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ConversationID, &s.SectorID, &s.Mode, &s.AutoReplyCount, &s.LastAIResponseAt,
		&s.EscalatedAt, &s.EscalationReason, &s.DetectedIntent, &s.LeadScore, &s.Version,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("conversation session not found")
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}

// Get returns the session for a conversation.
func (r *Repository) Get(ctx context.Context, conversationID string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM conversation_sessions WHERE conversation_id = $1`
	return scanSession(r.db.QueryRow(ctx, query, conversationID))
}

// GetOrCreate returns the session for a conversation, creating it in ai mode
// on first contact.
func (r *Repository) GetOrCreate(ctx context.Context, conversationID string, sectorID uuid.UUID) (*domain.Session, error) {
	insert := `
		INSERT INTO conversation_sessions (conversation_id, sector_id, mode, auto_reply_count, version)
		VALUES ($1, $2, 'ai', 0, 1)
		ON CONFLICT (conversation_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, insert, conversationID, sectorID); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return r.Get(ctx, conversationID)
}

// RecordReplyParams carries everything written by RecordAutomatedReply.
type RecordReplyParams struct {
	ConversationID  string
	ExpectedVersion int
	Body            string
	Tokens          int
	DetectedIntent  *string
	PendingReview   bool
}

// RecordAutomatedReply advances the auto-reply counter and records the reply
// in one transaction, guarded by the session version read before the
// completion call. A lost race returns apperr.KindConflict and writes nothing.
func (r *Repository) RecordAutomatedReply(ctx context.Context, p RecordReplyParams) (uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	update := `
		UPDATE conversation_sessions
		SET auto_reply_count = auto_reply_count + 1,
		    last_ai_response_at = now(),
		    detected_intent = COALESCE($3, detected_intent),
		    version = version + 1,
		    updated_at = now()
		WHERE conversation_id = $1 AND version = $2 AND mode <> 'human'`
	tag, err := tx.Exec(ctx, update, p.ConversationID, p.ExpectedVersion, p.DetectedIntent)
	if err != nil {
		return uuid.Nil, fmt.Errorf("advance reply counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return uuid.Nil, apperr.Conflict("session changed while the reply was generated")
	}

	replyID := uuid.New()
	insertReply := `
		INSERT INTO automated_replies (id, conversation_id, kind, body, tokens, pending_review)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insertReply, replyID, p.ConversationID, ReplyKindAI, p.Body, p.Tokens, p.PendingReview); err != nil {
		return uuid.Nil, fmt.Errorf("record reply: %w", err)
	}

	if err := appendSessionEvent(ctx, tx, p.ConversationID, "reply_recorded", string(ReplyKindAI)); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit reply: %w", err)
	}
	return replyID, nil
}

// RecordOutOfHoursReply records an out-of-hours reply without touching the
// session counters.
func (r *Repository) RecordOutOfHoursReply(ctx context.Context, conversationID, body string) (uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	replyID := uuid.New()
	insert := `
		INSERT INTO automated_replies (id, conversation_id, kind, body, tokens, pending_review)
		VALUES ($1, $2, $3, $4, 0, false)`
	if _, err := tx.Exec(ctx, insert, replyID, conversationID, ReplyKindOutOfHours, body); err != nil {
		return uuid.Nil, fmt.Errorf("record out-of-hours reply: %w", err)
	}
	if err := appendSessionEvent(ctx, tx, conversationID, "reply_recorded", string(ReplyKindOutOfHours)); err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit out-of-hours reply: %w", err)
	}
	return replyID, nil
}

// MarkEscalated moves the session to human mode with the version check.
// Returns ErrAlreadyEscalated when the session is already in human mode and
// apperr.KindConflict when another writer bumped the version first.
func (r *Repository) MarkEscalated(ctx context.Context, conversationID string, expectedVersion int, reason domain.EscalationReason) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	update := `
		UPDATE conversation_sessions
		SET mode = 'human',
		    escalated_at = now(),
		    escalation_reason = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE conversation_id = $1 AND version = $2 AND mode <> 'human'`
	tag, err := tx.Exec(ctx, update, conversationID, expectedVersion, reason)
	if err != nil {
		return fmt.Errorf("mark escalated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var mode domain.Mode
		err := tx.QueryRow(ctx, `SELECT mode FROM conversation_sessions WHERE conversation_id = $1`, conversationID).Scan(&mode)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("conversation session not found")
			}
			return fmt.Errorf("read session mode: %w", err)
		}
		if mode == domain.ModeHuman {
			return ErrAlreadyEscalated
		}
		return apperr.Conflict("session changed during escalation")
	}

	if err := appendSessionEvent(ctx, tx, conversationID, "escalated", string(reason)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReturnToAI hands the session back to automation, resetting the escalation
// state and the reply budget. A session not in human mode is left untouched.
func (r *Repository) ReturnToAI(ctx context.Context, conversationID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	update := `
		UPDATE conversation_sessions
		SET mode = 'ai',
		    escalated_at = NULL,
		    escalation_reason = NULL,
		    auto_reply_count = 0,
		    version = version + 1,
		    updated_at = now()
		WHERE conversation_id = $1 AND mode = 'human'`
	tag, err := tx.Exec(ctx, update, conversationID)
	if err != nil {
		return fmt.Errorf("return to ai: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if err := appendSessionEvent(ctx, tx, conversationID, "returned_to_ai", ""); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetMode applies a reviewed-mode toggle with the version check. The service
// validates the transition before calling this.
func (r *Repository) SetMode(ctx context.Context, conversationID string, expectedVersion int, mode domain.Mode) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	update := `
		UPDATE conversation_sessions
		SET mode = $3, version = version + 1, updated_at = now()
		WHERE conversation_id = $1 AND version = $2`
	tag, err := tx.Exec(ctx, update, conversationID, expectedVersion, mode)
	if err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("session changed during mode update")
	}
	if err := appendSessionEvent(ctx, tx, conversationID, "mode_changed", string(mode)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetLeadScore stores the latest qualification score snapshot on the session.
// No version check: the score is advisory and last-writer-wins is fine.
func (r *Repository) SetLeadScore(ctx context.Context, conversationID string, score int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE conversation_sessions SET lead_score = $2, updated_at = now() WHERE conversation_id = $1`,
		conversationID, score)
	if err != nil {
		return fmt.Errorf("set lead score: %w", err)
	}
	return nil
}

// GetReply returns one durable reply record, used by the dispatch worker.
func (r *Repository) GetReply(ctx context.Context, replyID uuid.UUID) (*Reply, error) {
	query := `
		SELECT id, conversation_id, kind, body, tokens, pending_review, created_at
		FROM automated_replies WHERE id = $1`
	var reply Reply
	err := r.db.QueryRow(ctx, query, replyID).Scan(
		&reply.ID, &reply.ConversationID, &reply.Kind, &reply.Body,
		&reply.Tokens, &reply.PendingReview, &reply.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("reply not found")
		}
		return nil, fmt.Errorf("query reply: %w", err)
	}
	return &reply, nil
}

func appendSessionEvent(ctx context.Context, tx pgx.Tx, conversationID, eventType, detail string) error {
	insert := `
		INSERT INTO session_events (id, conversation_id, event_type, detail)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, insert, uuid.New(), conversationID, eventType, detail); err != nil {
		return fmt.Errorf("append session event: %w", err)
	}
	return nil
}
