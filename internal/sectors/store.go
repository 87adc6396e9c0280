package sectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"converse_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads sector configuration from PostgreSQL.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a sector configuration store.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetAutomationConfig returns the automation settings for a sector.
// Returns apperr.KindNotFound when the sector has no configuration row.
func (s *Store) GetAutomationConfig(ctx context.Context, sectorID uuid.UUID) (*AutomationConfig, error) {
	query := `
		SELECT sector_id, enabled, persona, max_auto_replies, reply_delay_seconds,
		       escalation_keywords, escalate_on_negative, working_days,
		       work_start, work_end, timezone, out_of_hours_message,
		       business_context, faq_context, catalog_context, notify_email
		FROM sector_automation_config
		WHERE sector_id = $1`

	var cfg AutomationConfig
	var delaySeconds int
	err := s.db.QueryRow(ctx, query, sectorID).Scan(
		&cfg.SectorID, &cfg.Enabled, &cfg.Persona, &cfg.MaxAutoReplies, &delaySeconds,
		&cfg.EscalationKeywords, &cfg.EscalateOnNegative, &cfg.WorkingDays,
		&cfg.WorkStart, &cfg.WorkEnd, &cfg.Timezone, &cfg.OutOfHoursMessage,
		&cfg.BusinessContext, &cfg.FAQContext, &cfg.CatalogContext, &cfg.NotifyEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("automation config not found for sector")
		}
		return nil, fmt.Errorf("query automation config: %w", err)
	}
	cfg.ReplyDelay = time.Duration(delaySeconds) * time.Second
	return &cfg, nil
}

// GetScoringConfig returns the BANT weights and thresholds for a sector.
func (s *Store) GetScoringConfig(ctx context.Context, sectorID uuid.UUID) (*ScoringConfig, error) {
	query := `
		SELECT sector_id, budget_weight, authority_weight, need_weight, timeline_weight,
		       auto_create_threshold, auto_qualify_threshold
		FROM sector_scoring_config
		WHERE sector_id = $1`

	var cfg ScoringConfig
	err := s.db.QueryRow(ctx, query, sectorID).Scan(
		&cfg.SectorID, &cfg.BudgetWeight, &cfg.AuthorityWeight, &cfg.NeedWeight,
		&cfg.TimelineWeight, &cfg.AutoCreateThreshold, &cfg.AutoQualifyThreshold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("scoring config not found for sector")
		}
		return nil, fmt.Errorf("query scoring config: %w", err)
	}
	return &cfg, nil
}

// GetBookingConfig returns slot-generation parameters for a sector.
func (s *Store) GetBookingConfig(ctx context.Context, sectorID uuid.UUID) (*BookingConfig, error) {
	query := `
		SELECT sector_id, slot_duration_minutes, buffer_before_minutes, buffer_after_minutes,
		       min_advance_hours, max_advance_days, offer_slot_count
		FROM sector_booking_config
		WHERE sector_id = $1`

	var cfg BookingConfig
	var durationMin, beforeMin, afterMin int
	err := s.db.QueryRow(ctx, query, sectorID).Scan(
		&cfg.SectorID, &durationMin, &beforeMin, &afterMin,
		&cfg.MinAdvanceHours, &cfg.MaxAdvanceDays, &cfg.OfferSlotCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("booking config not found for sector")
		}
		return nil, fmt.Errorf("query booking config: %w", err)
	}
	cfg.SlotDuration = time.Duration(durationMin) * time.Minute
	cfg.BufferBefore = time.Duration(beforeMin) * time.Minute
	cfg.BufferAfter = time.Duration(afterMin) * time.Minute
	return &cfg, nil
}

// ListAvailabilityWindows returns the weekly windows for a sector. When
// agentID is non-nil, agent-specific windows are included alongside the
// sector-wide ones.
func (s *Store) ListAvailabilityWindows(ctx context.Context, sectorID uuid.UUID, agentID *uuid.UUID) ([]AvailabilityWindow, error) {
	query := `
		SELECT id, sector_id, agent_id, weekday, start_minute, end_minute
		FROM availability_windows
		WHERE sector_id = $1 AND (agent_id IS NULL OR agent_id = $2)
		ORDER BY weekday, start_minute`

	rows, err := s.db.Query(ctx, query, sectorID, agentID)
	if err != nil {
		return nil, fmt.Errorf("query availability windows: %w", err)
	}
	defer rows.Close()

	var windows []AvailabilityWindow
	for rows.Next() {
		var w AvailabilityWindow
		if err := rows.Scan(&w.ID, &w.SectorID, &w.AgentID, &w.Weekday, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, fmt.Errorf("scan availability window: %w", err)
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}
