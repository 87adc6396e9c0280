// Package events defines the publish/subscribe contract the modules use to
// talk to each other without importing one another. Event payloads live with
// the publishing module; this package only carries the plumbing.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event published on a Bus.
type Event interface {
	// EventName identifies the event type; subscriptions match on it.
	EventName() string
	// OccurredAt is the publication timestamp.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all event payloads. Embed it and
// implement EventName to get a publishable event.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler receives published events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes events from publishers to subscribed handlers.
type Bus interface {
	// Publish delivers the event to every handler subscribed to its name.
	// Delivery is asynchronous; see the implementation for error handling.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event and waits for every handler.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under an event name, as returned by
	// Event.EventName.
	Subscribe(eventName string, handler Handler)
}
