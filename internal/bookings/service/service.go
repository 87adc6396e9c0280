// Package service implements the meeting slot allocator: offer generation
// from availability minus buffered bookings, TTL-guarded confirmation and the
// booking management surface.
package service

import (
	"context"
	"fmt"
	"time"

	"converse_backend/internal/bookings/domain"
	domainevents "converse_backend/internal/events"
	"converse_backend/internal/sectors"
	"converse_backend/platform/apperr"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence surface of the allocator.
type Store interface {
	ReplaceOffer(ctx context.Context, offer *domain.Offer) error
	GetActiveOffer(ctx context.Context, conversationID string) (*domain.Offer, error)
	GetLatestOffer(ctx context.Context, conversationID string) (*domain.Offer, error)
	MarkOfferExpired(ctx context.Context, offerID uuid.UUID) error
	ExpireStaleOffers(ctx context.Context, now time.Time) (int, error)
	ConfirmOffer(ctx context.Context, offer *domain.Offer, slot domain.Slot, bufferBefore, bufferAfter time.Duration) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	ListBookings(ctx context.Context, conversationID string) ([]domain.Booking, error)
	ListActiveIntervals(ctx context.Context, sectorID uuid.UUID, from, until time.Time) ([]domain.BookingInterval, error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	RescheduleBooking(ctx context.Context, bookingID uuid.UUID, start, end time.Time, bufferBefore, bufferAfter time.Duration) (*domain.Booking, error)
}

// ConfigStore reads the sector's booking parameters and availability.
type ConfigStore interface {
	GetAutomationConfig(ctx context.Context, sectorID uuid.UUID) (*sectors.AutomationConfig, error)
	GetBookingConfig(ctx context.Context, sectorID uuid.UUID) (*sectors.BookingConfig, error)
	ListAvailabilityWindows(ctx context.Context, sectorID uuid.UUID, agentID *uuid.UUID) ([]sectors.AvailabilityWindow, error)
}

// MessageSender delivers offer and confirmation texts to the conversation.
type MessageSender interface {
	Send(ctx context.Context, conversationID, text string) error
}

// Fallback parameters for sectors without a booking configuration row.
var defaultBookingConfig = sectors.BookingConfig{
	SlotDuration:    time.Hour,
	BufferBefore:    15 * time.Minute,
	BufferAfter:     15 * time.Minute,
	MinAdvanceHours: 24,
	MaxAdvanceDays:  14,
	OfferSlotCount:  5,
}

// Service is the slot allocator.
type Service struct {
	store   Store
	configs ConfigStore
	sender  MessageSender
	bus     events.Bus
	log     *logger.Logger
	now     func() time.Time
}

// New creates the allocator service.
func New(store Store, configs ConfigStore, sender MessageSender, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, configs: configs, sender: sender, bus: bus, log: log, now: time.Now}
}

// OfferSlots generates a fresh slot offer for a conversation, replacing any
// previous active offer.
func (s *Service) OfferSlots(ctx context.Context, conversationID string, sectorID uuid.UUID) (*domain.Offer, error) {
	cfg, err := s.bookingConfig(ctx, sectorID)
	if err != nil {
		return nil, err
	}

	loc := s.sectorLocation(ctx, sectorID)
	now := s.now()
	maxAdvance := time.Duration(cfg.MaxAdvanceDays) * 24 * time.Hour

	var (
		windows   []sectors.AvailabilityWindow
		intervals []domain.BookingInterval
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		windows, err = s.configs.ListAvailabilityWindows(gctx, sectorID, nil)
		return err
	})
	g.Go(func() error {
		var err error
		intervals, err = s.store.ListActiveIntervals(gctx, sectorID, now, now.Add(maxAdvance))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	candidates := domain.GenerateCandidates(domain.GenerateParams{
		Now:          now,
		Location:     loc,
		Windows:      toDomainWindows(windows),
		SlotDuration: cfg.SlotDuration,
		BufferBefore: cfg.BufferBefore,
		BufferAfter:  cfg.BufferAfter,
		MinAdvance:   time.Duration(cfg.MinAdvanceHours) * time.Hour,
		MaxAdvance:   maxAdvance,
		Count:        cfg.OfferSlotCount,
		Existing:     intervals,
	})
	if len(candidates) == 0 {
		return nil, apperr.NotFound("no open slots available")
	}

	offer := &domain.Offer{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SectorID:       sectorID,
		Slots:          candidates,
		Status:         domain.OfferStatusOffered,
		ExpiresAt:      now.Add(domain.OfferTTL),
		Version:        1,
	}
	if err := s.store.ReplaceOffer(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

// OfferSlotsText generates an offer and renders the numbered list for the
// automated reply. No availability renders as empty text, not an error.
func (s *Service) OfferSlotsText(ctx context.Context, conversationID string, sectorID uuid.UUID) (string, error) {
	offer, err := s.OfferSlots(ctx, conversationID, sectorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", nil
		}
		return "", err
	}
	return domain.FormatOffer(offer.Slots, s.sectorLocation(ctx, sectorID)), nil
}

// Confirm books the numbered slot from the conversation's active offer.
// slotIndex is 1-based, matching the numbers shown to the end user.
func (s *Service) Confirm(ctx context.Context, conversationID string, slotIndex int) (*domain.Booking, error) {
	offer, err := s.store.GetActiveOffer(ctx, conversationID)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		latest, latestErr := s.store.GetLatestOffer(ctx, conversationID)
		if latestErr == nil && latest.Status == domain.OfferStatusConfirmed {
			return nil, apperr.Conflict("offer already confirmed")
		}
		return nil, apperr.NotFound("no active slot offer")
	}

	now := s.now()
	if offer.Expired(now) {
		if err := s.store.MarkOfferExpired(ctx, offer.ID); err != nil {
			s.log.Error("mark offer expired", "offer_id", offer.ID.String(), "error", err.Error())
		}
		s.reofferAfterExpiry(ctx, conversationID, offer.SectorID)
		return nil, apperr.Gone("offer expired, new slots have been sent")
	}

	if slotIndex < 1 || slotIndex > len(offer.Slots) {
		return nil, apperr.BadRequest("invalid slot selection")
	}
	slot := offer.Slots[slotIndex-1]

	cfg, err := s.bookingConfig(ctx, offer.SectorID)
	if err != nil {
		return nil, err
	}
	booking, err := s.store.ConfirmOffer(ctx, offer, slot, cfg.BufferBefore, cfg.BufferAfter)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, domainevents.BookingConfirmed{
		BaseEvent:      events.NewBaseEvent(),
		BookingID:      booking.ID,
		ConversationID: conversationID,
		SectorID:       booking.SectorID,
		StartsAt:       booking.StartsAt,
		EndsAt:         booking.EndsAt,
	})

	loc := s.sectorLocation(ctx, booking.SectorID)
	confirmation := "Uw afspraak is bevestigd: " + domain.FormatSlot(slot, loc)
	if err := s.sender.Send(ctx, conversationID, confirmation); err != nil {
		s.log.DispatchError(conversationID, err)
	}
	return booking, nil
}

// ActiveOffer returns the conversation's confirmable offer.
func (s *Service) ActiveOffer(ctx context.Context, conversationID string) (*domain.Offer, error) {
	return s.store.GetActiveOffer(ctx, conversationID)
}

// ListBookings returns a conversation's bookings, newest first.
func (s *Service) ListBookings(ctx context.Context, conversationID string) ([]domain.Booking, error) {
	return s.store.ListBookings(ctx, conversationID)
}

// Cancel marks a booking cancelled.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	return s.store.CancelBooking(ctx, bookingID)
}

// Reschedule moves an active booking to a new start, keeping its duration.
func (s *Service) Reschedule(ctx context.Context, bookingID uuid.UUID, newStart time.Time) (*domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	duration := booking.EndsAt.Sub(booking.StartsAt)
	cfg, err := s.bookingConfig(ctx, booking.SectorID)
	if err != nil {
		return nil, err
	}
	return s.store.RescheduleBooking(ctx, bookingID, newStart, newStart.Add(duration), cfg.BufferBefore, cfg.BufferAfter)
}

// ExpireStaleOffers sweeps offers past their TTL. Called by the scheduler.
func (s *Service) ExpireStaleOffers(ctx context.Context) (int, error) {
	return s.store.ExpireStaleOffers(ctx, s.now())
}

func (s *Service) reofferAfterExpiry(ctx context.Context, conversationID string, sectorID uuid.UUID) {
	offer, err := s.OfferSlots(ctx, conversationID, sectorID)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			s.log.Error("regenerate offer after expiry", "conversation_id", conversationID, "error", err.Error())
		}
		return
	}
	text := domain.FormatOffer(offer.Slots, s.sectorLocation(ctx, sectorID))
	if err := s.sender.Send(ctx, conversationID, "Het aanbod was verlopen.\n\n"+text); err != nil {
		s.log.DispatchError(conversationID, err)
	}
}

// bookingConfig loads the sector's booking parameters, falling back to the
// defaults for sectors without a configuration row.
func (s *Service) bookingConfig(ctx context.Context, sectorID uuid.UUID) (*sectors.BookingConfig, error) {
	cfg, err := s.configs.GetBookingConfig(ctx, sectorID)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		fallback := defaultBookingConfig
		fallback.SectorID = sectorID
		return &fallback, nil
	}
	return cfg, nil
}

func (s *Service) sectorLocation(ctx context.Context, sectorID uuid.UUID) *time.Location {
	cfg, err := s.configs.GetAutomationConfig(ctx, sectorID)
	if err == nil && cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

func toDomainWindows(windows []sectors.AvailabilityWindow) []domain.Window {
	if len(windows) == 0 {
		return domain.DefaultWindows()
	}
	out := make([]domain.Window, 0, len(windows))
	for _, w := range windows {
		out = append(out, domain.Window{
			Weekday:     w.Weekday,
			StartMinute: w.StartMinute,
			EndMinute:   w.EndMinute,
			AgentID:     w.AgentID,
		})
	}
	return out
}
