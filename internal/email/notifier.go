package email

import (
	"context"
	"time"

	bookingdomain "converse_backend/internal/bookings/domain"
	domainevents "converse_backend/internal/events"
	"converse_backend/internal/sectors"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"
	"converse_backend/platform/validator"

	"github.com/google/uuid"
)

// ConfigStore reads the sector's notification address and timezone.
type ConfigStore interface {
	GetAutomationConfig(ctx context.Context, sectorID uuid.UUID) (*sectors.AutomationConfig, error)
}

// Notifier mails the sector's notification address when a conversation is
// escalated or a booking is confirmed. Sectors without an address are skipped.
type Notifier struct {
	sender   Sender
	configs  ConfigStore
	validate *validator.Validator
	log      *logger.Logger
}

// NewNotifier creates the notifier.
func NewNotifier(sender Sender, configs ConfigStore, log *logger.Logger) *Notifier {
	return &Notifier{sender: sender, configs: configs, validate: validator.New(), log: log}
}

// RegisterEventHandlers subscribes the notifier to the bus.
func (n *Notifier) RegisterEventHandlers(bus events.Bus) {
	bus.Subscribe(domainevents.EventConversationEscalated, events.HandlerFunc(n.onEscalated))
	bus.Subscribe(domainevents.EventBookingConfirmed, events.HandlerFunc(n.onBookingConfirmed))
}

func (n *Notifier) onEscalated(ctx context.Context, event events.Event) error {
	e, ok := event.(domainevents.ConversationEscalated)
	if !ok {
		return nil
	}

	to, _ := n.sectorNotify(ctx, e.SectorID)
	if to == "" {
		return nil
	}
	if err := n.sender.SendEscalationEmail(ctx, to, e.ConversationID, e.Reason, e.Priority); err != nil {
		n.log.Error("escalation email failed", "conversation_id", e.ConversationID, "error", err.Error())
		return err
	}
	return nil
}

func (n *Notifier) onBookingConfirmed(ctx context.Context, event events.Event) error {
	e, ok := event.(domainevents.BookingConfirmed)
	if !ok {
		return nil
	}

	to, loc := n.sectorNotify(ctx, e.SectorID)
	if to == "" {
		return nil
	}
	slotText := bookingdomain.FormatSlot(bookingdomain.Slot{Start: e.StartsAt, End: e.EndsAt}, loc)
	if err := n.sender.SendBookingConfirmedEmail(ctx, to, e.ConversationID, slotText); err != nil {
		n.log.Error("booking email failed", "conversation_id", e.ConversationID, "error", err.Error())
		return err
	}
	return nil
}

func (n *Notifier) sectorNotify(ctx context.Context, sectorID uuid.UUID) (string, *time.Location) {
	cfg, err := n.configs.GetAutomationConfig(ctx, sectorID)
	if err != nil {
		return "", time.UTC
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		if parsed, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = parsed
		}
	}
	if cfg.NotifyEmail == "" {
		return "", loc
	}
	if err := n.validate.Var(cfg.NotifyEmail, "email"); err != nil {
		n.log.Warn("invalid sector notify address, skipping notification", "sector_id", sectorID.String())
		return "", loc
	}
	return cfg.NotifyEmail, loc
}
