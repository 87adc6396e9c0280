package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"converse_backend/internal/bookings/domain"
	domainevents "converse_backend/internal/events"
	"converse_backend/internal/sectors"
	"converse_backend/platform/apperr"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	offers   []*domain.Offer
	bookings []*domain.Booking
}

func (f *fakeStore) ReplaceOffer(_ context.Context, offer *domain.Offer) error {
	for _, o := range f.offers {
		if o.ConversationID == offer.ConversationID && o.Status == domain.OfferStatusOffered {
			o.Status = domain.OfferStatusExpired
		}
	}
	f.offers = append(f.offers, offer)
	return nil
}

func (f *fakeStore) GetActiveOffer(_ context.Context, conversationID string) (*domain.Offer, error) {
	for i := len(f.offers) - 1; i >= 0; i-- {
		o := f.offers[i]
		if o.ConversationID == conversationID && o.Status == domain.OfferStatusOffered {
			return o, nil
		}
	}
	return nil, apperr.NotFound("no active offer")
}

func (f *fakeStore) GetLatestOffer(_ context.Context, conversationID string) (*domain.Offer, error) {
	for i := len(f.offers) - 1; i >= 0; i-- {
		if f.offers[i].ConversationID == conversationID {
			return f.offers[i], nil
		}
	}
	return nil, apperr.NotFound("no offer")
}

func (f *fakeStore) MarkOfferExpired(_ context.Context, offerID uuid.UUID) error {
	for _, o := range f.offers {
		if o.ID == offerID {
			o.Status = domain.OfferStatusExpired
		}
	}
	return nil
}

func (f *fakeStore) ExpireStaleOffers(_ context.Context, now time.Time) (int, error) {
	n := 0
	for _, o := range f.offers {
		if o.Status == domain.OfferStatusOffered && o.Expired(now) {
			o.Status = domain.OfferStatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ConfirmOffer(_ context.Context, offer *domain.Offer, slot domain.Slot, bufferBefore, bufferAfter time.Duration) (*domain.Booking, error) {
	var stored *domain.Offer
	for _, o := range f.offers {
		if o.ID == offer.ID {
			stored = o
		}
	}
	if stored == nil || stored.Status == domain.OfferStatusExpired {
		return nil, apperr.Gone("offer expired")
	}
	if stored.Status == domain.OfferStatusConfirmed {
		return nil, apperr.Conflict("offer already confirmed")
	}
	for _, b := range f.bookings {
		if b.SectorID != offer.SectorID || !b.Status.Active() {
			continue
		}
		if slot.Start.Before(b.EndsAt.Add(bufferAfter)) && b.StartsAt.Add(-bufferBefore).Before(slot.End) {
			return nil, apperr.Conflict("slot no longer available")
		}
	}
	stored.Status = domain.OfferStatusConfirmed
	booking := &domain.Booking{
		ID:             uuid.New(),
		ConversationID: offer.ConversationID,
		SectorID:       offer.SectorID,
		AgentID:        slot.AgentID,
		StartsAt:       slot.Start,
		EndsAt:         slot.End,
		Status:         domain.BookingStatusConfirmed,
	}
	f.bookings = append(f.bookings, booking)
	return booking, nil
}

func (f *fakeStore) GetBooking(_ context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	for _, b := range f.bookings {
		if b.ID == bookingID {
			return b, nil
		}
	}
	return nil, apperr.NotFound("booking not found")
}

func (f *fakeStore) ListBookings(_ context.Context, conversationID string) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.ConversationID == conversationID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveIntervals(_ context.Context, sectorID uuid.UUID, from, until time.Time) ([]domain.BookingInterval, error) {
	var out []domain.BookingInterval
	for _, b := range f.bookings {
		if b.SectorID == sectorID && b.Status.Active() && b.StartsAt.Before(until) && from.Before(b.EndsAt) {
			out = append(out, domain.BookingInterval{Start: b.StartsAt, End: b.EndsAt, AgentID: b.AgentID})
		}
	}
	return out, nil
}

func (f *fakeStore) CancelBooking(_ context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	b, err := f.GetBooking(context.Background(), bookingID)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BookingStatusCancelled
	return b, nil
}

func (f *fakeStore) RescheduleBooking(_ context.Context, bookingID uuid.UUID, start, end time.Time, bufferBefore, bufferAfter time.Duration) (*domain.Booking, error) {
	b, err := f.GetBooking(context.Background(), bookingID)
	if err != nil {
		return nil, err
	}
	for _, other := range f.bookings {
		if other.ID == bookingID || other.SectorID != b.SectorID || !other.Status.Active() {
			continue
		}
		if start.Before(other.EndsAt.Add(bufferAfter)) && other.StartsAt.Add(-bufferBefore).Before(end) {
			return nil, apperr.Conflict("target interval is not available")
		}
	}
	b.StartsAt, b.EndsAt = start, end
	b.Status = domain.BookingStatusRescheduled
	return b, nil
}

type fakeConfigs struct {
	booking *sectors.BookingConfig
	windows []sectors.AvailabilityWindow
}

func (f *fakeConfigs) GetAutomationConfig(_ context.Context, sectorID uuid.UUID) (*sectors.AutomationConfig, error) {
	return &sectors.AutomationConfig{SectorID: sectorID, Timezone: "Europe/Amsterdam"}, nil
}

func (f *fakeConfigs) GetBookingConfig(_ context.Context, _ uuid.UUID) (*sectors.BookingConfig, error) {
	if f.booking == nil {
		return nil, apperr.NotFound("booking config not found")
	}
	return f.booking, nil
}

func (f *fakeConfigs) ListAvailabilityWindows(_ context.Context, _ uuid.UUID, _ *uuid.UUID) ([]sectors.AvailabilityWindow, error) {
	return f.windows, nil
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(_ context.Context, _, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

type fixture struct {
	svc    *Service
	store  *fakeStore
	cfg    *fakeConfigs
	sender *fakeSender
	bus    *recordingBus
	now    time.Time
	sector uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	f := &fixture{
		store:  &fakeStore{},
		sender: &fakeSender{},
		bus:    &recordingBus{},
		// Wednesday 4 March 2026, 10:00 local.
		now:    time.Date(2026, 3, 4, 10, 0, 0, 0, loc),
		sector: uuid.New(),
	}
	f.cfg = &fakeConfigs{booking: &sectors.BookingConfig{
		SectorID:        f.sector,
		SlotDuration:    time.Hour,
		BufferBefore:    15 * time.Minute,
		BufferAfter:     15 * time.Minute,
		MinAdvanceHours: 24,
		MaxAdvanceDays:  14,
		OfferSlotCount:  5,
	}}
	f.svc = New(f.store, f.cfg, f.sender, f.bus, logger.New("test"))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestOfferSlotsGeneratesBoundedOffer(t *testing.T) {
	f := newFixture(t)

	offer, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector)
	if err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}
	if len(offer.Slots) != 5 {
		t.Fatalf("slot count = %d, want 5", len(offer.Slots))
	}
	if !offer.ExpiresAt.Equal(f.now.Add(domain.OfferTTL)) {
		t.Fatalf("expires at %s, want now+%s", offer.ExpiresAt, domain.OfferTTL)
	}
	earliest := f.now.Add(24 * time.Hour)
	if offer.Slots[0].Start.Before(earliest) {
		t.Fatalf("first slot %s ignores the 24h advance", offer.Slots[0].Start)
	}

	second, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector)
	if err != nil {
		t.Fatalf("second OfferSlots: %v", err)
	}
	active, err := f.store.GetActiveOffer(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetActiveOffer: %v", err)
	}
	if active.ID != second.ID {
		t.Fatal("a new offer must replace the previous active one")
	}
}

func TestOfferSlotsFallsBackToDefaultsWithoutConfig(t *testing.T) {
	f := newFixture(t)
	f.cfg.booking = nil

	offer, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector)
	if err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}
	if len(offer.Slots) != 5 {
		t.Fatalf("slot count = %d, want 5 from defaults", len(offer.Slots))
	}
	if got := offer.Slots[0].End.Sub(offer.Slots[0].Start); got != time.Hour {
		t.Fatalf("slot duration = %s, want 1h from defaults", got)
	}
}

func TestConfirmBooksSelectedSlotAndNotifies(t *testing.T) {
	f := newFixture(t)

	offer, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector)
	if err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}

	booking, err := f.svc.Confirm(context.Background(), "conv-1", 2)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !booking.StartsAt.Equal(offer.Slots[1].Start) {
		t.Fatalf("booked %s, want slot 2 starting %s", booking.StartsAt, offer.Slots[1].Start)
	}
	if booking.Status != domain.BookingStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", booking.Status)
	}

	var confirmed int
	for _, e := range f.bus.published {
		if _, ok := e.(domainevents.BookingConfirmed); ok {
			confirmed++
		}
	}
	if confirmed != 1 {
		t.Fatalf("published %d BookingConfirmed events, want 1", confirmed)
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "bevestigd") {
		t.Fatalf("confirmation message not sent, got %v", f.sender.sent)
	}
}

func TestConfirmRejectsOutOfRangeSelection(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector); err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}

	for _, idx := range []int{0, 6, -1} {
		_, err := f.svc.Confirm(context.Background(), "conv-1", idx)
		if !apperr.Is(err, apperr.KindBadRequest) {
			t.Fatalf("Confirm(%d) = %v, want bad request", idx, err)
		}
	}
	if len(f.store.bookings) != 0 {
		t.Fatal("invalid selections must not create bookings")
	}
}

func TestConfirmExpiredOfferRegeneratesAndReturnsGone(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector)
	if err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}

	f.now = f.now.Add(domain.OfferTTL + time.Minute)

	_, err = f.svc.Confirm(context.Background(), "conv-1", 1)
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("Confirm on expired offer = %v, want gone", err)
	}

	active, err := f.store.GetActiveOffer(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("expected a regenerated offer: %v", err)
	}
	if active.ID == first.ID {
		t.Fatal("expired offer must be replaced, not reused")
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "Beschikbare momenten") {
		t.Fatalf("new slot list not sent, got %v", f.sender.sent)
	}
}

func TestConfirmAfterConfirmationReportsConflict(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector); err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}
	if _, err := f.svc.Confirm(context.Background(), "conv-1", 1); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}

	_, err := f.svc.Confirm(context.Background(), "conv-1", 1)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second Confirm = %v, want conflict", err)
	}
}

func TestConfirmedBookingBlocksLaterOffers(t *testing.T) {
	f := newFixture(t)
	offer, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector)
	if err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}
	booked := offer.Slots[0]
	if _, err := f.svc.Confirm(context.Background(), "conv-1", 1); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	next, err := f.svc.OfferSlots(context.Background(), "conv-2", f.sector)
	if err != nil {
		t.Fatalf("OfferSlots for second conversation: %v", err)
	}
	for _, s := range next.Slots {
		if s.Start.Equal(booked.Start) {
			t.Fatalf("slot %s is already booked and must not be re-offered", s.Start)
		}
	}
}

func TestConfirmIgnoresBookingsFromOtherSectors(t *testing.T) {
	f := newFixture(t)
	offer, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector)
	if err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}

	// A shared-resource booking in an unrelated sector covers the same time.
	f.store.bookings = append(f.store.bookings, &domain.Booking{
		ID:             uuid.New(),
		ConversationID: "conv-elsewhere",
		SectorID:       uuid.New(),
		StartsAt:       offer.Slots[0].Start,
		EndsAt:         offer.Slots[0].End,
		Status:         domain.BookingStatusConfirmed,
	})

	if _, err := f.svc.Confirm(context.Background(), "conv-1", 1); err != nil {
		t.Fatalf("Confirm blocked by another sector's booking: %v", err)
	}
}

func TestConfirmRejectsSlotInsideAnotherBookingsBuffer(t *testing.T) {
	f := newFixture(t)
	offer, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector)
	if err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}

	// Booked after offer generation, ending exactly where slot 1 starts. The
	// 15 minute buffer_after makes the slot unavailable even without a direct
	// overlap.
	f.store.bookings = append(f.store.bookings, &domain.Booking{
		ID:             uuid.New(),
		ConversationID: "conv-2",
		SectorID:       f.sector,
		StartsAt:       offer.Slots[0].Start.Add(-time.Hour),
		EndsAt:         offer.Slots[0].Start,
		Status:         domain.BookingStatusConfirmed,
	})

	_, err = f.svc.Confirm(context.Background(), "conv-1", 1)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("Confirm inside a booking's buffer = %v, want conflict", err)
	}
	if len(f.store.bookings) != 1 {
		t.Fatal("conflicting confirmation must not create a booking")
	}
}

func TestRescheduleKeepsDuration(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector); err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}
	booking, err := f.svc.Confirm(context.Background(), "conv-1", 1)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	newStart := booking.StartsAt.Add(48 * time.Hour)
	moved, err := f.svc.Reschedule(context.Background(), booking.ID, newStart)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if moved.EndsAt.Sub(moved.StartsAt) != time.Hour {
		t.Fatalf("duration changed to %s", moved.EndsAt.Sub(moved.StartsAt))
	}
	if moved.Status != domain.BookingStatusRescheduled {
		t.Fatalf("status = %s, want rescheduled", moved.Status)
	}
}

func TestExpireStaleOffersSweeps(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.OfferSlots(context.Background(), "conv-1", f.sector); err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}
	if _, err := f.svc.OfferSlots(context.Background(), "conv-2", f.sector); err != nil {
		t.Fatalf("OfferSlots: %v", err)
	}

	f.now = f.now.Add(domain.OfferTTL + time.Minute)
	n, err := f.svc.ExpireStaleOffers(context.Background())
	if err != nil {
		t.Fatalf("ExpireStaleOffers: %v", err)
	}
	if n != 2 {
		t.Fatalf("expired %d offers, want 2", n)
	}
}
