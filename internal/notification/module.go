// Package notification pushes queue and lead changes to connected agent
// dashboards over Server-Sent Events.
package notification

import (
	"context"
	"fmt"

	domainevents "converse_backend/internal/events"
	"converse_backend/internal/notification/sse"
	"converse_backend/platform/events"
	"converse_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module bundles the SSE stream and its event subscriptions.
type Module struct {
	stream *sse.Service
}

// NewModule creates the notification module and subscribes it to the bus.
func NewModule(bus events.Bus) *Module {
	m := &Module{stream: sse.New()}
	m.registerEventHandlers(bus)
	return m
}

// Name implements the HTTP module contract.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the dashboard stream. EventSource cannot set headers,
// so the auth middleware also accepts the token as a query parameter.
func (m *Module) RegisterRoutes(_, api *gin.RouterGroup) {
	api.GET("/events/stream", m.stream.Handler(httpkit.CurrentUserID))
}

// Close terminates all client connections.
func (m *Module) Close() {
	m.stream.Close()
}

func (m *Module) registerEventHandlers(bus events.Bus) {
	bus.Subscribe(domainevents.EventConversationEscalated, events.HandlerFunc(m.onEscalated))
	bus.Subscribe(domainevents.EventTicketAssigned, events.HandlerFunc(m.onTicketAssigned))
	bus.Subscribe(domainevents.EventTicketResolved, events.HandlerFunc(m.onTicketResolved))
	bus.Subscribe(domainevents.EventLeadScored, events.HandlerFunc(m.onLeadScored))
	bus.Subscribe(domainevents.EventBookingConfirmed, events.HandlerFunc(m.onBookingConfirmed))
}

func (m *Module) onEscalated(_ context.Context, event events.Event) error {
	e, ok := event.(domainevents.ConversationEscalated)
	if !ok {
		return nil
	}
	m.stream.Broadcast(sse.Event{
		Type:           sse.EventTicketOpened,
		ConversationID: e.ConversationID,
		TicketID:       e.TicketID,
		Message:        fmt.Sprintf("Gesprek overgedragen (%s)", e.Reason),
		Data:           gin.H{"priority": e.Priority, "reason": e.Reason},
	})
	return nil
}

func (m *Module) onTicketAssigned(_ context.Context, event events.Event) error {
	e, ok := event.(domainevents.TicketAssigned)
	if !ok {
		return nil
	}
	m.stream.Broadcast(sse.Event{
		Type:           sse.EventTicketAssigned,
		ConversationID: e.ConversationID,
		TicketID:       e.TicketID,
		Data:           gin.H{"agentId": e.AgentID, "waitSeconds": e.WaitSeconds},
	})
	return nil
}

func (m *Module) onTicketResolved(_ context.Context, event events.Event) error {
	e, ok := event.(domainevents.TicketResolved)
	if !ok {
		return nil
	}
	m.stream.Broadcast(sse.Event{
		Type:           sse.EventTicketResolved,
		ConversationID: e.ConversationID,
		TicketID:       e.TicketID,
	})
	return nil
}

func (m *Module) onLeadScored(_ context.Context, event events.Event) error {
	e, ok := event.(domainevents.LeadScored)
	if !ok {
		return nil
	}
	m.stream.Broadcast(sse.Event{
		Type:           sse.EventLeadScored,
		ConversationID: e.ConversationID,
		Data:           gin.H{"score": e.Score, "leadId": e.LeadID},
	})
	return nil
}

func (m *Module) onBookingConfirmed(_ context.Context, event events.Event) error {
	e, ok := event.(domainevents.BookingConfirmed)
	if !ok {
		return nil
	}
	m.stream.Broadcast(sse.Event{
		Type:           sse.EventBookingConfirmed,
		ConversationID: e.ConversationID,
		Data:           gin.H{"bookingId": e.BookingID, "startsAt": e.StartsAt},
	})
	return nil
}
