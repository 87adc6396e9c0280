// Package repository persists leads and the append-only qualification log.
// BANT snapshots are stored as jsonb alongside the scalar lead fields.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"converse_backend/internal/leads/domain"
	"converse_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores leads in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a lead repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByConversation returns the lead attached to a conversation.
func (r *Repository) GetByConversation(ctx context.Context, conversationID string) (*domain.Lead, error) {
	query := `
		SELECT id, conversation_id, sector_id, score, status, qualified_at, value_estimate,
		       budget_snapshot, authority_snapshot, need_snapshot, timeline_snapshot,
		       created_at, updated_at
		FROM leads WHERE conversation_id = $1`

	var lead domain.Lead
	var budget, authority, need, timeline []byte
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&lead.ID, &lead.ConversationID, &lead.SectorID, &lead.Score, &lead.Status,
		&lead.QualifiedAt, &lead.ValueEstimate,
		&budget, &authority, &need, &timeline,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, fmt.Errorf("query lead: %w", err)
	}

	for _, pair := range []struct {
		raw []byte
		dst interface{}
	}{
		{budget, &lead.Budget},
		{authority, &lead.Authority},
		{need, &lead.Need},
		{timeline, &lead.Timeline},
	} {
		if len(pair.raw) > 0 {
			if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
				return nil, fmt.Errorf("decode lead snapshot: %w", err)
			}
		}
	}
	return &lead, nil
}

// Create inserts a new lead.
func (r *Repository) Create(ctx context.Context, lead *domain.Lead) error {
	budget, authority, need, timeline, err := marshalSnapshots(lead)
	if err != nil {
		return err
	}

	insert := `
		INSERT INTO leads
			(id, conversation_id, sector_id, score, status, qualified_at, value_estimate,
			 budget_snapshot, authority_snapshot, need_snapshot, timeline_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.Exec(ctx, insert,
		lead.ID, lead.ConversationID, lead.SectorID, lead.Score, lead.Status,
		lead.QualifiedAt, lead.ValueEstimate, budget, authority, need, timeline,
	)
	if err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// Update writes the scoring result back to an existing lead.
func (r *Repository) Update(ctx context.Context, lead *domain.Lead) error {
	budget, authority, need, timeline, err := marshalSnapshots(lead)
	if err != nil {
		return err
	}

	update := `
		UPDATE leads
		SET score = $2, status = $3, qualified_at = $4, value_estimate = $5,
		    budget_snapshot = $6, authority_snapshot = $7, need_snapshot = $8,
		    timeline_snapshot = $9, updated_at = now()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, update,
		lead.ID, lead.Score, lead.Status, lead.QualifiedAt, lead.ValueEstimate,
		budget, authority, need, timeline,
	)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}

// AppendLog writes one qualification audit row.
func (r *Repository) AppendLog(ctx context.Context, log *domain.QualificationLog) error {
	analysis, err := json.Marshal(log.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	insert := `
		INSERT INTO qualification_log (id, conversation_id, lead_id, previous_score, new_score, analysis)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.Exec(ctx, insert,
		log.ID, log.ConversationID, log.LeadID, log.PreviousScore, log.NewScore, analysis,
	); err != nil {
		return fmt.Errorf("append qualification log: %w", err)
	}
	return nil
}

// ListLogs returns a conversation's qualification history, newest first.
func (r *Repository) ListLogs(ctx context.Context, conversationID string, limit int) ([]domain.QualificationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, conversation_id, lead_id, previous_score, new_score, analysis, created_at
		FROM qualification_log
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list qualification log: %w", err)
	}
	defer rows.Close()

	var logs []domain.QualificationLog
	for rows.Next() {
		var entry domain.QualificationLog
		var analysis []byte
		if err := rows.Scan(&entry.ID, &entry.ConversationID, &entry.LeadID,
			&entry.PreviousScore, &entry.NewScore, &analysis, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan qualification log: %w", err)
		}
		if len(analysis) > 0 {
			if err := json.Unmarshal(analysis, &entry.Analysis); err != nil {
				return nil, fmt.Errorf("decode qualification log analysis: %w", err)
			}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func marshalSnapshots(lead *domain.Lead) (budget, authority, need, timeline []byte, err error) {
	if budget, err = json.Marshal(lead.Budget); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode budget snapshot: %w", err)
	}
	if authority, err = json.Marshal(lead.Authority); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode authority snapshot: %w", err)
	}
	if need, err = json.Marshal(lead.Need); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode need snapshot: %w", err)
	}
	if timeline, err = json.Marshal(lead.Timeline); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode timeline snapshot: %w", err)
	}
	return budget, authority, need, timeline, nil
}
