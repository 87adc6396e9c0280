package domain

import (
	"time"

	"github.com/google/uuid"
)

// OfferStatus is the lifecycle state of a slot offer.
type OfferStatus string

const (
	OfferStatusOffered   OfferStatus = "offered"
	OfferStatusConfirmed OfferStatus = "confirmed"
	OfferStatusExpired   OfferStatus = "expired"
)

// Offer is one set of slots presented to a conversation. At most one offer
// per conversation is in the offered state.
type Offer struct {
	ID             uuid.UUID
	ConversationID string
	SectorID       uuid.UUID
	Slots          []Slot
	Status         OfferStatus
	ExpiresAt      time.Time
	Version        int
	CreatedAt      time.Time
}

// Expired reports whether the offer can no longer be confirmed.
func (o *Offer) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusScheduled   BookingStatus = "scheduled"
	BookingStatusConfirmed   BookingStatus = "confirmed"
	BookingStatusCancelled   BookingStatus = "cancelled"
	BookingStatusRescheduled BookingStatus = "rescheduled"
)

// Active reports whether the booking still blocks its interval.
func (s BookingStatus) Active() bool {
	return s == BookingStatusScheduled || s == BookingStatusConfirmed || s == BookingStatusRescheduled
}

// Booking is a confirmed meeting.
type Booking struct {
	ID             uuid.UUID
	ConversationID string
	SectorID       uuid.UUID
	AgentID        *uuid.UUID
	StartsAt       time.Time
	EndsAt         time.Time
	Status         BookingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
