// Package events defines the domain events published on the in-process bus.
package events

import (
	"time"

	"converse_backend/platform/events"

	"github.com/google/uuid"
)

// Event names.
const (
	EventInboundMessageReceived = "conversation.inbound_received"
	EventAutomatedReplySent     = "conversation.reply_sent"
	EventConversationEscalated  = "conversation.escalated"
	EventTicketAssigned         = "escalation.ticket_assigned"
	EventTicketResolved         = "escalation.ticket_resolved"
	EventLeadScored             = "lead.scored"
	EventLeadQualified          = "lead.qualified"
	EventBookingConfirmed       = "booking.confirmed"
)

// InboundMessageReceived is published after an inbound message has been
// recorded on a session, regardless of the automation decision.
type InboundMessageReceived struct {
	events.BaseEvent
	ConversationID string    `json:"conversation_id"`
	SectorID       uuid.UUID `json:"sector_id"`
	Text           string    `json:"text"`
	ReceivedAt     time.Time `json:"received_at"`
}

func (e InboundMessageReceived) EventName() string { return EventInboundMessageReceived }

// AutomatedReplySent is published after a reply was durably recorded and the
// session counter advanced.
type AutomatedReplySent struct {
	events.BaseEvent
	ConversationID string    `json:"conversation_id"`
	SectorID       uuid.UUID `json:"sector_id"`
	ReplyID        uuid.UUID `json:"reply_id"`
	Text           string    `json:"text"`
	ReplyCount     int       `json:"reply_count"`
}

func (e AutomatedReplySent) EventName() string { return EventAutomatedReplySent }

// ConversationEscalated is published after a session moved to human mode and
// an escalation ticket was opened.
type ConversationEscalated struct {
	events.BaseEvent
	ConversationID string    `json:"conversation_id"`
	SectorID       uuid.UUID `json:"sector_id"`
	TicketID       uuid.UUID `json:"ticket_id"`
	Reason         string    `json:"reason"`
	Priority       int       `json:"priority"`
}

func (e ConversationEscalated) EventName() string { return EventConversationEscalated }

// TicketAssigned is published when an agent wins the accept race on a ticket.
type TicketAssigned struct {
	events.BaseEvent
	TicketID       uuid.UUID `json:"ticket_id"`
	ConversationID string    `json:"conversation_id"`
	AgentID        uuid.UUID `json:"agent_id"`
	WaitSeconds    float64   `json:"wait_seconds"`
}

func (e TicketAssigned) EventName() string { return EventTicketAssigned }

// TicketResolved is published when a ticket is closed and the session handed
// back to automation.
type TicketResolved struct {
	events.BaseEvent
	TicketID       uuid.UUID `json:"ticket_id"`
	ConversationID string    `json:"conversation_id"`
	AgentID        uuid.UUID `json:"agent_id"`
}

func (e TicketResolved) EventName() string { return EventTicketResolved }

// LeadScored is published after every qualification run, whether or not a
// lead row was touched.
type LeadScored struct {
	events.BaseEvent
	ConversationID string     `json:"conversation_id"`
	LeadID         *uuid.UUID `json:"lead_id,omitempty"`
	PreviousScore  *int       `json:"previous_score,omitempty"`
	Score          int        `json:"score"`
}

func (e LeadScored) EventName() string { return EventLeadScored }

// LeadQualified is published when a lead crosses the qualification threshold.
type LeadQualified struct {
	events.BaseEvent
	LeadID         uuid.UUID `json:"lead_id"`
	ConversationID string    `json:"conversation_id"`
	Score          int       `json:"score"`
}

func (e LeadQualified) EventName() string { return EventLeadQualified }

// BookingConfirmed is published after a slot offer was converted into a booking.
type BookingConfirmed struct {
	events.BaseEvent
	BookingID      uuid.UUID `json:"booking_id"`
	ConversationID string    `json:"conversation_id"`
	SectorID       uuid.UUID `json:"sector_id"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
}

func (e BookingConfirmed) EventName() string { return EventBookingConfirmed }
