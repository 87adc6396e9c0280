// Package repository persists slot offers and bookings. Offer confirmation is
// guarded by a version check so a double confirm can never create two
// bookings.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"converse_backend/internal/bookings/domain"
	"converse_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores offers and bookings in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a bookings repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ReplaceOffer expires the conversation's current offer, if any, and stores
// the new one in the same transaction.
func (r *Repository) ReplaceOffer(ctx context.Context, offer *domain.Offer) error {
	slots, err := json.Marshal(offer.Slots)
	if err != nil {
		return fmt.Errorf("encode offer slots: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	expire := `
		UPDATE slot_offers SET status = 'expired', version = version + 1
		WHERE conversation_id = $1 AND status = 'offered'`
	if _, err := tx.Exec(ctx, expire, offer.ConversationID); err != nil {
		return fmt.Errorf("expire previous offer: %w", err)
	}

	insert := `
		INSERT INTO slot_offers (id, conversation_id, sector_id, slots, status, expires_at, version)
		VALUES ($1, $2, $3, $4, 'offered', $5, 1)`
	if _, err := tx.Exec(ctx, insert, offer.ID, offer.ConversationID, offer.SectorID, slots, offer.ExpiresAt); err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return tx.Commit(ctx)
}

const offerColumns = `id, conversation_id, sector_id, slots, status, expires_at, version, created_at`

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var o domain.Offer
	var slots []byte
	err := row.Scan(&o.ID, &o.ConversationID, &o.SectorID, &slots, &o.Status, &o.ExpiresAt, &o.Version, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no slot offer for conversation")
		}
		return nil, fmt.Errorf("scan offer: %w", err)
	}
	if len(slots) > 0 {
		if err := json.Unmarshal(slots, &o.Slots); err != nil {
			return nil, fmt.Errorf("decode offer slots: %w", err)
		}
	}
	return &o, nil
}

// GetActiveOffer returns the conversation's offer in the offered state.
func (r *Repository) GetActiveOffer(ctx context.Context, conversationID string) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM slot_offers WHERE conversation_id = $1 AND status = 'offered'`
	return scanOffer(r.db.QueryRow(ctx, query, conversationID))
}

// GetLatestOffer returns the conversation's most recent offer in any state.
func (r *Repository) GetLatestOffer(ctx context.Context, conversationID string) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM slot_offers
		WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT 1`
	return scanOffer(r.db.QueryRow(ctx, query, conversationID))
}

// MarkOfferExpired expires one offer regardless of its TTL.
func (r *Repository) MarkOfferExpired(ctx context.Context, offerID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE slot_offers SET status = 'expired', version = version + 1 WHERE id = $1 AND status = 'offered'`,
		offerID)
	if err != nil {
		return fmt.Errorf("mark offer expired: %w", err)
	}
	return nil
}

// ExpireStaleOffers sweeps offers past their TTL. Returns the number expired.
func (r *Repository) ExpireStaleOffers(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE slot_offers SET status = 'expired', version = version + 1
		 WHERE status = 'offered' AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale offers: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ConfirmOffer atomically flips the offer to confirmed and creates the
// booking. The version check plus the status condition guarantee a single
// booking per offer; the overlap check inside the transaction rejects a slot
// another conversation in the same sector booked meanwhile, with the slot
// widened by the sector's buffers so a confirmation can never land inside an
// existing booking's buffer.
func (r *Repository) ConfirmOffer(ctx context.Context, offer *domain.Offer, slot domain.Slot, bufferBefore, bufferAfter time.Duration) (*domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	confirm := `
		UPDATE slot_offers SET status = 'confirmed', version = version + 1
		WHERE id = $1 AND status = 'offered' AND version = $2`
	tag, err := tx.Exec(ctx, confirm, offer.ID, offer.Version)
	if err != nil {
		return nil, fmt.Errorf("confirm offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var status domain.OfferStatus
		if err := tx.QueryRow(ctx, `SELECT status FROM slot_offers WHERE id = $1`, offer.ID).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.NotFound("slot offer not found")
			}
			return nil, fmt.Errorf("read offer status: %w", err)
		}
		switch status {
		case domain.OfferStatusConfirmed:
			return nil, apperr.Conflict("offer already confirmed")
		case domain.OfferStatusExpired:
			return nil, apperr.Gone("offer expired")
		default:
			return nil, apperr.Conflict("offer changed concurrently")
		}
	}

	// An existing booking blocks [starts_at-before, ends_at+after); comparing
	// against the slot shifted by the opposite buffers is equivalent.
	var clash bool
	overlap := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE sector_id = $1
			  AND status IN ('scheduled', 'confirmed', 'rescheduled')
			  AND ($2::uuid IS NULL OR agent_id IS NULL OR agent_id = $2)
			  AND starts_at < $4 AND $3 < ends_at
		)`
	if err := tx.QueryRow(ctx, overlap,
		offer.SectorID, slot.AgentID, slot.Start.Add(-bufferAfter), slot.End.Add(bufferBefore),
	).Scan(&clash); err != nil {
		return nil, fmt.Errorf("check booking overlap: %w", err)
	}
	if clash {
		return nil, apperr.Conflict("slot no longer available")
	}

	booking := &domain.Booking{
		ID:             uuid.New(),
		ConversationID: offer.ConversationID,
		SectorID:       offer.SectorID,
		AgentID:        slot.AgentID,
		StartsAt:       slot.Start,
		EndsAt:         slot.End,
		Status:         domain.BookingStatusConfirmed,
	}
	insert := `
		INSERT INTO bookings (id, conversation_id, sector_id, agent_id, starts_at, ends_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insert,
		booking.ID, booking.ConversationID, booking.SectorID, booking.AgentID,
		booking.StartsAt, booking.EndsAt, booking.Status,
	); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit confirmation: %w", err)
	}
	return booking, nil
}

const bookingColumns = `id, conversation_id, sector_id, agent_id, starts_at, ends_at, status, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.ConversationID, &b.SectorID, &b.AgentID,
		&b.StartsAt, &b.EndsAt, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("booking not found")
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	return &b, nil
}

// GetBooking returns one booking.
func (r *Repository) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRow(ctx, query, bookingID))
}

// ListBookings returns a conversation's bookings, newest first.
func (r *Repository) ListBookings(ctx context.Context, conversationID string) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE conversation_id = $1 ORDER BY starts_at DESC`
	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ListActiveIntervals returns the active booking intervals for a sector,
// bounded to the enumeration horizon.
func (r *Repository) ListActiveIntervals(ctx context.Context, sectorID uuid.UUID, from, until time.Time) ([]domain.BookingInterval, error) {
	query := `
		SELECT starts_at, ends_at, agent_id FROM bookings
		WHERE sector_id = $1
		  AND status IN ('scheduled', 'confirmed', 'rescheduled')
		  AND ends_at > $2 AND starts_at < $3`
	rows, err := r.db.Query(ctx, query, sectorID, from, until)
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	defer rows.Close()

	var intervals []domain.BookingInterval
	for rows.Next() {
		var iv domain.BookingInterval
		if err := rows.Scan(&iv.Start, &iv.End, &iv.AgentID); err != nil {
			return nil, fmt.Errorf("scan booking interval: %w", err)
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// CancelBooking marks a booking cancelled. Cancelling twice is a no-op.
func (r *Repository) CancelBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	update := `
		UPDATE bookings SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status <> 'cancelled'
		RETURNING ` + bookingColumns
	booking, err := scanBooking(r.db.QueryRow(ctx, update, bookingID))
	if err == nil {
		return booking, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	return r.GetBooking(ctx, bookingID)
}

// RescheduleBooking moves an active booking to a new interval after checking
// the target, widened by the sector's buffers, against the sector's other
// active bookings.
func (r *Repository) RescheduleBooking(ctx context.Context, bookingID uuid.UUID, start, end time.Time, bufferBefore, bufferAfter time.Duration) (*domain.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	current, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, bookingID))
	if err != nil {
		return nil, err
	}
	if !current.Status.Active() {
		return nil, apperr.Conflict("booking is no longer active")
	}

	var clash bool
	overlap := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE id <> $1
			  AND sector_id = $2
			  AND status IN ('scheduled', 'confirmed', 'rescheduled')
			  AND ($3::uuid IS NULL OR agent_id IS NULL OR agent_id = $3)
			  AND starts_at < $5 AND $4 < ends_at
		)`
	if err := tx.QueryRow(ctx, overlap,
		bookingID, current.SectorID, current.AgentID, start.Add(-bufferAfter), end.Add(bufferBefore),
	).Scan(&clash); err != nil {
		return nil, fmt.Errorf("check reschedule overlap: %w", err)
	}
	if clash {
		return nil, apperr.Conflict("target interval is not available")
	}

	update := `
		UPDATE bookings SET starts_at = $2, ends_at = $3, status = 'rescheduled', updated_at = now()
		WHERE id = $1
		RETURNING ` + bookingColumns
	booking, err := scanBooking(tx.QueryRow(ctx, update, bookingID, start, end))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}
	return booking, nil
}
