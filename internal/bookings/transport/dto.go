// Package transport defines the booking API request and response shapes.
package transport

import (
	"time"

	"converse_backend/internal/bookings/domain"

	"github.com/google/uuid"
)

// OfferSlotsRequest asks for a fresh slot offer on a conversation.
type OfferSlotsRequest struct {
	SectorID uuid.UUID `json:"sector_id" binding:"required"`
}

// ConfirmSlotRequest confirms one numbered slot from the active offer.
// SlotIndex matches the 1-based numbering shown to the end user.
type ConfirmSlotRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	SlotIndex      int    `json:"slot_index" binding:"required,min=1"`
}

// RescheduleRequest moves a booking to a new start time.
type RescheduleRequest struct {
	StartsAt time.Time `json:"starts_at" binding:"required"`
}

// SlotResponse is one offered interval.
type SlotResponse struct {
	Index    int        `json:"index"`
	StartsAt time.Time  `json:"starts_at"`
	EndsAt   time.Time  `json:"ends_at"`
	AgentID  *uuid.UUID `json:"agent_id,omitempty"`
}

// OfferResponse is a slot offer with its confirmation deadline.
type OfferResponse struct {
	OfferID   uuid.UUID      `json:"offer_id"`
	Status    string         `json:"status"`
	ExpiresAt time.Time      `json:"expires_at"`
	Slots     []SlotResponse `json:"slots"`
}

// NewOfferResponse converts a domain offer.
func NewOfferResponse(o *domain.Offer) OfferResponse {
	slots := make([]SlotResponse, 0, len(o.Slots))
	for i, s := range o.Slots {
		slots = append(slots, SlotResponse{Index: i + 1, StartsAt: s.Start, EndsAt: s.End, AgentID: s.AgentID})
	}
	return OfferResponse{
		OfferID:   o.ID,
		Status:    string(o.Status),
		ExpiresAt: o.ExpiresAt,
		Slots:     slots,
	}
}

// BookingResponse is one booking.
type BookingResponse struct {
	BookingID      uuid.UUID  `json:"booking_id"`
	ConversationID string     `json:"conversation_id"`
	SectorID       uuid.UUID  `json:"sector_id"`
	AgentID        *uuid.UUID `json:"agent_id,omitempty"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	Status         string     `json:"status"`
}

// NewBookingResponse converts a domain booking.
func NewBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		BookingID:      b.ID,
		ConversationID: b.ConversationID,
		SectorID:       b.SectorID,
		AgentID:        b.AgentID,
		StartsAt:       b.StartsAt,
		EndsAt:         b.EndsAt,
		Status:         string(b.Status),
	}
}
