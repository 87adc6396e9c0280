// Package service implements the session state machine that decides, for
// every inbound message, whether the conversation gets an automated reply,
// is skipped, or is handed to a human.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"converse_backend/internal/automation/domain"
	"converse_backend/internal/automation/repository"
	domainevents "converse_backend/internal/events"
	"converse_backend/internal/sectors"
	"converse_backend/platform/ai/completion"
	"converse_backend/platform/apperr"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"
	"converse_backend/platform/metrics"

	"github.com/google/uuid"
)

// InboundMessage is one customer message entering the state machine. The
// sentiment label is computed upstream and passed through.
type InboundMessage struct {
	Text       string
	Sentiment  string
	ReceivedAt time.Time
}

// TicketRequest asks the escalation queue to open a ticket for a conversation.
type TicketRequest struct {
	ConversationID string
	SectorID       uuid.UUID
	Reason         domain.EscalationReason
	Sentiment      string
	LeadScore      *int
	Summary        string
	DetectedIntent *string
}

// TicketOpener is the escalation-queue write surface consumed by the state
// machine. OpenTicket must be idempotent per conversation: a second call while
// a non-resolved ticket exists returns the existing ticket.
type TicketOpener interface {
	OpenTicket(ctx context.Context, req TicketRequest) (ticketID uuid.UUID, priority int, err error)
}

// SlotOfferer produces a numbered, human-readable slot list for a
// conversation with detected scheduling intent.
type SlotOfferer interface {
	OfferSlotsText(ctx context.Context, conversationID string, sectorID uuid.UUID) (string, error)
}

// Dispatcher delivers recorded replies, optionally after a delay.
type Dispatcher interface {
	EnqueueReplyDispatch(ctx context.Context, replyID uuid.UUID, delay time.Duration) error
}

// SessionStore is the persistence surface of the state machine.
type SessionStore interface {
	Get(ctx context.Context, conversationID string) (*domain.Session, error)
	GetOrCreate(ctx context.Context, conversationID string, sectorID uuid.UUID) (*domain.Session, error)
	RecordAutomatedReply(ctx context.Context, p repository.RecordReplyParams) (uuid.UUID, error)
	RecordOutOfHoursReply(ctx context.Context, conversationID, body string) (uuid.UUID, error)
	MarkEscalated(ctx context.Context, conversationID string, expectedVersion int, reason domain.EscalationReason) error
	ReturnToAI(ctx context.Context, conversationID string) error
	SetMode(ctx context.Context, conversationID string, expectedVersion int, mode domain.Mode) error
	SetLeadScore(ctx context.Context, conversationID string, score int) error
}

// ConfigStore reads per-sector automation settings.
type ConfigStore interface {
	GetAutomationConfig(ctx context.Context, sectorID uuid.UUID) (*sectors.AutomationConfig, error)
}

// Service is the session state machine.
type Service struct {
	sessions          SessionStore
	configs           ConfigStore
	completion        completion.Client
	completionTimeout time.Duration
	tickets           TicketOpener
	slots             SlotOfferer
	dispatcher        Dispatcher
	bus               events.Bus
	metrics           *metrics.Metrics
	log               *logger.Logger
	now               func() time.Time
}

// New creates the state machine service.
func New(
	sessions SessionStore,
	configs ConfigStore,
	completionClient completion.Client,
	completionTimeout time.Duration,
	tickets TicketOpener,
	slots SlotOfferer,
	dispatcher Dispatcher,
	bus events.Bus,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		sessions:          sessions,
		configs:           configs,
		completion:        completionClient,
		completionTimeout: completionTimeout,
		tickets:           tickets,
		slots:             slots,
		dispatcher:        dispatcher,
		bus:               bus,
		metrics:           m,
		log:               log,
		now:               time.Now,
	}
}

// HandleInboundMessage runs the automation decision for one inbound message.
// Counters are only advanced after the reply is durably recorded; transient
// completion failures leave the session untouched and are retryable.
func (s *Service) HandleInboundMessage(ctx context.Context, conversationID string, sectorID uuid.UUID, msg InboundMessage) (domain.Decision, error) {
	log := s.log.WithConversation(conversationID)

	cfg, err := s.configs.GetAutomationConfig(ctx, sectorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			log.Info("automation skipped", "reason", "no_config", "sector_id", sectorID)
			return s.decided(conversationID, domain.Skip("no automation config")), nil
		}
		return domain.Decision{}, fmt.Errorf("load automation config: %w", err)
	}
	if !cfg.Enabled {
		log.Info("automation skipped", "reason", "disabled", "sector_id", sectorID)
		return s.decided(conversationID, domain.Skip("automation disabled")), nil
	}

	session, err := s.sessions.GetOrCreate(ctx, conversationID, sectorID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("load session: %w", err)
	}

	s.bus.Publish(ctx, domainevents.InboundMessageReceived{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: conversationID,
		SectorID:       sectorID,
		Text:           msg.Text,
		ReceivedAt:     msg.ReceivedAt,
	})

	if session.Mode == domain.ModeHuman {
		return s.decided(conversationID, domain.Skip("human controlled")), nil
	}

	schedule := domain.Schedule{
		Days:     cfg.WorkingDays,
		Start:    cfg.WorkStart,
		End:      cfg.WorkEnd,
		Timezone: cfg.Timezone,
	}
	if !domain.WithinWorkingHours(schedule, s.now()) {
		return s.replyOutOfHours(ctx, session, cfg)
	}

	if kw, hit := domain.MatchEscalationKeyword(msg.Text, cfg.EscalationKeywords); hit {
		log.Info("escalation keyword matched", "keyword", kw)
		return s.escalate(ctx, session, domain.ReasonKeyword, msg)
	}
	if cfg.EscalateOnNegative && msg.Sentiment == domain.SentimentNegative {
		return s.escalate(ctx, session, domain.ReasonSentiment, msg)
	}
	if session.AutoReplyCount >= cfg.MaxAutoReplies {
		return s.escalate(ctx, session, domain.ReasonLimit, msg)
	}

	preVersion := session.Version
	text, tokens, err := s.complete(ctx, cfg, msg)
	if err != nil {
		if kind := completion.FailureKind(err); kind != "" {
			s.metrics.CompletionFailures.WithLabelValues(kind).Inc()
			return domain.Decision{}, apperr.Wrap(apperr.KindUnavailable, "completion failed, retry the inbound event", err)
		}
		return domain.Decision{}, fmt.Errorf("completion call: %w", err)
	}

	clean, escalationRequested := domain.ParseEscalationMarker(text)
	if escalationRequested {
		return s.escalate(ctx, session, domain.ReasonAISuggested, msg)
	}

	var detectedIntent *string
	if domain.DetectSchedulingIntent(msg.Text) {
		intent := "scheduling"
		detectedIntent = &intent
		if offer, err := s.slots.OfferSlotsText(ctx, conversationID, sectorID); err != nil {
			log.Warn("slot offer failed", "error", err.Error())
		} else if offer != "" {
			clean = clean + "\n\n" + offer
		}
	}

	pendingReview := session.Mode == domain.ModeHybrid
	replyID, err := s.sessions.RecordAutomatedReply(ctx, repository.RecordReplyParams{
		ConversationID:  conversationID,
		ExpectedVersion: preVersion,
		Body:            clean,
		Tokens:          tokens,
		DetectedIntent:  detectedIntent,
		PendingReview:   pendingReview,
	})
	if err != nil {
		return domain.Decision{}, err
	}

	if !pendingReview {
		if err := s.dispatcher.EnqueueReplyDispatch(ctx, replyID, cfg.ReplyDelay); err != nil {
			log.DispatchError(conversationID, err)
		}
	}

	s.bus.Publish(ctx, domainevents.AutomatedReplySent{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: conversationID,
		SectorID:       sectorID,
		ReplyID:        replyID,
		Text:           clean,
		ReplyCount:     session.AutoReplyCount + 1,
	})

	return s.decided(conversationID, domain.Replied(clean)), nil
}

// Escalate hands a conversation to a human on explicit request, e.g. an agent
// pulling a conversation or an upstream classifier flagging complexity.
func (s *Service) Escalate(ctx context.Context, conversationID string, reason domain.EscalationReason) (domain.Decision, error) {
	if !reason.Valid() {
		return domain.Decision{}, apperr.Validation("unknown escalation reason")
	}
	session, err := s.sessions.Get(ctx, conversationID)
	if err != nil {
		return domain.Decision{}, err
	}
	if session.Mode == domain.ModeHuman {
		return domain.Escalated(reason), nil
	}
	return s.escalate(ctx, session, reason, InboundMessage{})
}

// ReturnToAI hands a conversation back to automation. Counters reset; the
// open ticket, if any, is resolved by the escalation module's own surface.
func (s *Service) ReturnToAI(ctx context.Context, conversationID string) error {
	return s.sessions.ReturnToAI(ctx, conversationID)
}

// SetReviewMode toggles hybrid (held-for-review) handling for a conversation.
func (s *Service) SetReviewMode(ctx context.Context, conversationID string, enabled bool) error {
	session, err := s.sessions.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	trigger := domain.TriggerEnableReview
	if !enabled {
		trigger = domain.TriggerDisableReview
	}
	target, ok := domain.Transition(session.Mode, trigger)
	if !ok {
		if (enabled && session.Mode == domain.ModeHybrid) || (!enabled && session.Mode == domain.ModeAI) {
			return nil
		}
		return apperr.Conflict(fmt.Sprintf("cannot toggle review while session is in %s mode", session.Mode))
	}
	return s.sessions.SetMode(ctx, conversationID, session.Version, target)
}

// GetSession returns the automation state of a conversation.
func (s *Service) GetSession(ctx context.Context, conversationID string) (*domain.Session, error) {
	return s.sessions.Get(ctx, conversationID)
}

// RegisterEventHandlers subscribes the state machine to queue and lead events.
func (s *Service) RegisterEventHandlers(bus events.Bus) {
	bus.Subscribe(domainevents.EventTicketResolved, events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		resolved, ok := e.(domainevents.TicketResolved)
		if !ok {
			return nil
		}
		return s.sessions.ReturnToAI(ctx, resolved.ConversationID)
	}))
	bus.Subscribe(domainevents.EventLeadScored, events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		scored, ok := e.(domainevents.LeadScored)
		if !ok {
			return nil
		}
		return s.sessions.SetLeadScore(ctx, scored.ConversationID, scored.Score)
	}))
}

func (s *Service) replyOutOfHours(ctx context.Context, session *domain.Session, cfg *sectors.AutomationConfig) (domain.Decision, error) {
	if strings.TrimSpace(cfg.OutOfHoursMessage) == "" {
		return s.decided(session.ConversationID, domain.Skip("out of hours")), nil
	}
	replyID, err := s.sessions.RecordOutOfHoursReply(ctx, session.ConversationID, cfg.OutOfHoursMessage)
	if err != nil {
		return domain.Decision{}, err
	}
	if err := s.dispatcher.EnqueueReplyDispatch(ctx, replyID, 0); err != nil {
		s.log.DispatchError(session.ConversationID, err)
	}
	return s.decided(session.ConversationID, domain.Replied(cfg.OutOfHoursMessage)), nil
}

func (s *Service) escalate(ctx context.Context, session *domain.Session, reason domain.EscalationReason, msg InboundMessage) (domain.Decision, error) {
	ticketID, priority, err := s.tickets.OpenTicket(ctx, TicketRequest{
		ConversationID: session.ConversationID,
		SectorID:       session.SectorID,
		Reason:         reason,
		Sentiment:      msg.Sentiment,
		LeadScore:      session.LeadScore,
		Summary:        summarize(msg.Text),
		DetectedIntent: session.DetectedIntent,
	})
	if err != nil {
		return domain.Decision{}, fmt.Errorf("open escalation ticket: %w", err)
	}

	err = s.sessions.MarkEscalated(ctx, session.ConversationID, session.Version, reason)
	switch {
	case err == nil:
		s.bus.Publish(ctx, domainevents.ConversationEscalated{
			BaseEvent:      events.NewBaseEvent(),
			ConversationID: session.ConversationID,
			SectorID:       session.SectorID,
			TicketID:       ticketID,
			Reason:         string(reason),
			Priority:       priority,
		})
	case errors.Is(err, repository.ErrAlreadyEscalated):
		// Second trigger in a race; the ticket insert was idempotent too.
	case apperr.Is(err, apperr.KindConflict):
		current, readErr := s.sessions.Get(ctx, session.ConversationID)
		if readErr != nil {
			return domain.Decision{}, readErr
		}
		if current.Mode != domain.ModeHuman {
			return domain.Decision{}, err
		}
	default:
		return domain.Decision{}, err
	}

	return s.decided(session.ConversationID, domain.Escalated(reason)), nil
}

func (s *Service) complete(ctx context.Context, cfg *sectors.AutomationConfig, msg InboundMessage) (string, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.completionTimeout)
	defer cancel()

	resp, err := s.completion.Complete(callCtx, completion.Request{
		SystemPrompt: buildSystemPrompt(cfg),
		Messages: []completion.Message{
			{Role: "user", Content: msg.Text},
		},
		MaxTokens:   600,
		Temperature: 0.4,
	})
	if err != nil {
		return "", 0, err
	}
	return resp.Text, resp.Tokens, nil
}

func buildSystemPrompt(cfg *sectors.AutomationConfig) string {
	var b strings.Builder
	b.WriteString(cfg.Persona)
	b.WriteString("\n\nAls je het gesprek niet zelf kunt afhandelen, sluit je antwoord af met ")
	b.WriteString(domain.EscalationMarker)
	b.WriteString(".")
	if cfg.BusinessContext != "" {
		b.WriteString("\n\nBedrijfsinformatie:\n")
		b.WriteString(cfg.BusinessContext)
	}
	if cfg.FAQContext != "" {
		b.WriteString("\n\nVeelgestelde vragen:\n")
		b.WriteString(cfg.FAQContext)
	}
	if cfg.CatalogContext != "" {
		b.WriteString("\n\nAanbod:\n")
		b.WriteString(cfg.CatalogContext)
	}
	return b.String()
}

func summarize(text string) string {
	const max = 280
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return text[:max]
}

func (s *Service) decided(conversationID string, d domain.Decision) domain.Decision {
	s.metrics.AutomationDecisions.WithLabelValues(string(d.Outcome)).Inc()
	s.log.AutomationDecision(conversationID, string(d.Outcome), d.Reason)
	return d
}
