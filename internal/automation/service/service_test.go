package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"converse_backend/internal/automation/domain"
	"converse_backend/internal/automation/repository"
	"converse_backend/internal/sectors"
	"converse_backend/platform/ai/completion"
	"converse_backend/platform/apperr"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"
	"converse_backend/platform/metrics"

	"github.com/google/uuid"
)

type fakeStore struct {
	sessions map[string]*domain.Session
	replies  []repository.RecordReplyParams
	oohSent  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*domain.Session)}
}

func (f *fakeStore) Get(_ context.Context, conversationID string) (*domain.Session, error) {
	s, ok := f.sessions[conversationID]
	if !ok {
		return nil, apperr.NotFound("conversation session not found")
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) GetOrCreate(ctx context.Context, conversationID string, sectorID uuid.UUID) (*domain.Session, error) {
	if _, ok := f.sessions[conversationID]; !ok {
		f.sessions[conversationID] = &domain.Session{
			ConversationID: conversationID,
			SectorID:       sectorID,
			Mode:           domain.ModeAI,
			Version:        1,
		}
	}
	return f.Get(ctx, conversationID)
}

func (f *fakeStore) RecordAutomatedReply(_ context.Context, p repository.RecordReplyParams) (uuid.UUID, error) {
	s, ok := f.sessions[p.ConversationID]
	if !ok {
		return uuid.Nil, apperr.NotFound("conversation session not found")
	}
	if s.Version != p.ExpectedVersion || s.Mode == domain.ModeHuman {
		return uuid.Nil, apperr.Conflict("session changed while the reply was generated")
	}
	s.AutoReplyCount++
	s.Version++
	if p.DetectedIntent != nil {
		s.DetectedIntent = p.DetectedIntent
	}
	f.replies = append(f.replies, p)
	return uuid.New(), nil
}

func (f *fakeStore) RecordOutOfHoursReply(_ context.Context, conversationID, body string) (uuid.UUID, error) {
	f.oohSent = append(f.oohSent, body)
	return uuid.New(), nil
}

func (f *fakeStore) MarkEscalated(_ context.Context, conversationID string, expectedVersion int, reason domain.EscalationReason) error {
	s, ok := f.sessions[conversationID]
	if !ok {
		return apperr.NotFound("conversation session not found")
	}
	if s.Mode == domain.ModeHuman {
		return repository.ErrAlreadyEscalated
	}
	if s.Version != expectedVersion {
		return apperr.Conflict("session changed during escalation")
	}
	now := time.Now()
	s.Mode = domain.ModeHuman
	s.EscalatedAt = &now
	s.EscalationReason = &reason
	s.Version++
	return nil
}

func (f *fakeStore) ReturnToAI(_ context.Context, conversationID string) error {
	s, ok := f.sessions[conversationID]
	if !ok || s.Mode != domain.ModeHuman {
		return nil
	}
	s.Mode = domain.ModeAI
	s.EscalatedAt = nil
	s.EscalationReason = nil
	s.AutoReplyCount = 0
	s.Version++
	return nil
}

func (f *fakeStore) SetMode(_ context.Context, conversationID string, expectedVersion int, mode domain.Mode) error {
	s, ok := f.sessions[conversationID]
	if !ok {
		return apperr.NotFound("conversation session not found")
	}
	if s.Version != expectedVersion {
		return apperr.Conflict("session changed during mode update")
	}
	s.Mode = mode
	s.Version++
	return nil
}

func (f *fakeStore) SetLeadScore(_ context.Context, conversationID string, score int) error {
	if s, ok := f.sessions[conversationID]; ok {
		s.LeadScore = &score
	}
	return nil
}

type fakeConfigs struct {
	cfg *sectors.AutomationConfig
	err error
}

func (f *fakeConfigs) GetAutomationConfig(context.Context, uuid.UUID) (*sectors.AutomationConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.cfg
	return &copied, nil
}

type fakeTickets struct {
	open map[string]uuid.UUID
}

func (f *fakeTickets) OpenTicket(_ context.Context, req TicketRequest) (uuid.UUID, int, error) {
	if f.open == nil {
		f.open = make(map[string]uuid.UUID)
	}
	if id, ok := f.open[req.ConversationID]; ok {
		return id, 0, nil
	}
	id := uuid.New()
	f.open[req.ConversationID] = id
	return id, 2, nil
}

type fakeCompletion struct {
	fn func(completion.Request) (*completion.Response, error)
}

func (f *fakeCompletion) Complete(_ context.Context, req completion.Request) (*completion.Response, error) {
	return f.fn(req)
}

type fakeSlots struct {
	text string
	err  error
}

func (f *fakeSlots) OfferSlotsText(context.Context, string, uuid.UUID) (string, error) {
	return f.text, f.err
}

type fakeDispatcher struct {
	delays []time.Duration
}

func (f *fakeDispatcher) EnqueueReplyDispatch(_ context.Context, _ uuid.UUID, delay time.Duration) error {
	f.delays = append(f.delays, delay)
	return nil
}

func testConfig() *sectors.AutomationConfig {
	return &sectors.AutomationConfig{
		SectorID:           uuid.New(),
		Enabled:            true,
		Persona:            "Je bent de assistent van een installatiebedrijf.",
		MaxAutoReplies:     3,
		EscalationKeywords: []string{"klacht", "annuleren"},
		EscalateOnNegative: true,
		WorkingDays:        []int{1, 2, 3, 4, 5},
		WorkStart:          "08:00",
		WorkEnd:            "18:00",
		Timezone:           "Europe/Amsterdam",
		OutOfHoursMessage:  "We zijn nu gesloten en reageren de volgende werkdag.",
	}
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	tickets  *fakeTickets
	dispatch *fakeDispatcher
	slots    *fakeSlots
	cfg      *sectors.AutomationConfig
}

func newFixture(t *testing.T, complete func(completion.Request) (*completion.Response, error)) *fixture {
	t.Helper()
	log := logger.New("development")
	store := newFakeStore()
	tickets := &fakeTickets{}
	dispatch := &fakeDispatcher{}
	slots := &fakeSlots{}
	cfg := testConfig()

	svc := New(
		store,
		&fakeConfigs{cfg: cfg},
		&fakeCompletion{fn: complete},
		5*time.Second,
		tickets,
		slots,
		dispatch,
		events.NewInMemoryBus(log),
		metrics.New(),
		log,
	)
	// Wednesday 10:00 local time, inside the default schedule.
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, loc) }

	return &fixture{svc: svc, store: store, tickets: tickets, dispatch: dispatch, slots: slots, cfg: cfg}
}

func okCompletion(text string) func(completion.Request) (*completion.Response, error) {
	return func(completion.Request) (*completion.Response, error) {
		return &completion.Response{Text: text, Tokens: 42}, nil
	}
}

func TestHandleInboundMessageReplies(t *testing.T) {
	f := newFixture(t, okCompletion("Bedankt voor uw bericht, dat regelen we."))
	sectorID := f.cfg.SectorID

	decision, err := f.svc.HandleInboundMessage(context.Background(), "conv-1", sectorID, InboundMessage{Text: "Wat kost een laadpaal?"})
	if err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if decision.Outcome != domain.OutcomeReplied {
		t.Fatalf("outcome = %s, want replied", decision.Outcome)
	}
	if decision.ReplyText != "Bedankt voor uw bericht, dat regelen we." {
		t.Fatalf("unexpected reply text %q", decision.ReplyText)
	}
	session := f.store.sessions["conv-1"]
	if session.AutoReplyCount != 1 {
		t.Fatalf("auto_reply_count = %d, want 1", session.AutoReplyCount)
	}
	if len(f.dispatch.delays) != 1 {
		t.Fatalf("expected one dispatch enqueue, got %d", len(f.dispatch.delays))
	}
}

func TestReplyBudgetEscalatesOnNextMessage(t *testing.T) {
	f := newFixture(t, okCompletion("ok"))
	sectorID := f.cfg.SectorID
	ctx := context.Background()

	for i := 0; i < f.cfg.MaxAutoReplies; i++ {
		decision, err := f.svc.HandleInboundMessage(ctx, "conv-1", sectorID, InboundMessage{Text: fmt.Sprintf("vraag %d", i)})
		if err != nil {
			t.Fatalf("reply %d: %v", i, err)
		}
		if decision.Outcome != domain.OutcomeReplied {
			t.Fatalf("reply %d: outcome = %s, want replied", i, decision.Outcome)
		}
	}

	decision, err := f.svc.HandleInboundMessage(ctx, "conv-1", sectorID, InboundMessage{Text: "nog een vraag"})
	if err != nil {
		t.Fatalf("post-budget message: %v", err)
	}
	if decision.Outcome != domain.OutcomeEscalated || decision.Reason != string(domain.ReasonLimit) {
		t.Fatalf("decision = %+v, want escalated/limit", decision)
	}
	if len(f.tickets.open) != 1 {
		t.Fatalf("expected exactly one open ticket, got %d", len(f.tickets.open))
	}
	if f.store.sessions["conv-1"].Mode != domain.ModeHuman {
		t.Fatal("session should be in human mode after escalation")
	}
}

func TestKeywordEscalationIsIdempotent(t *testing.T) {
	f := newFixture(t, okCompletion("ok"))
	sectorID := f.cfg.SectorID
	ctx := context.Background()

	first, err := f.svc.HandleInboundMessage(ctx, "conv-1", sectorID, InboundMessage{Text: "ik wil mijn bestelling annuleren"})
	if err != nil {
		t.Fatalf("first escalation: %v", err)
	}
	if first.Outcome != domain.OutcomeEscalated || first.Reason != string(domain.ReasonKeyword) {
		t.Fatalf("first decision = %+v, want escalated/keyword", first)
	}

	second, err := f.svc.HandleInboundMessage(ctx, "conv-1", sectorID, InboundMessage{Text: "annuleren graag"})
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if second.Outcome != domain.OutcomeSkipped {
		t.Fatalf("second decision = %+v, want skipped while human controlled", second)
	}
	if len(f.tickets.open) != 1 {
		t.Fatalf("expected one ticket after double trigger, got %d", len(f.tickets.open))
	}
}

func TestNegativeSentimentEscalates(t *testing.T) {
	f := newFixture(t, okCompletion("ok"))

	decision, err := f.svc.HandleInboundMessage(context.Background(), "conv-1", f.cfg.SectorID,
		InboundMessage{Text: "dit duurt veel te lang", Sentiment: domain.SentimentNegative})
	if err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if decision.Outcome != domain.OutcomeEscalated || decision.Reason != string(domain.ReasonSentiment) {
		t.Fatalf("decision = %+v, want escalated/sentiment", decision)
	}
}

func TestCompletionFailureLeavesCounterUntouched(t *testing.T) {
	f := newFixture(t, func(completion.Request) (*completion.Response, error) {
		return nil, completion.ErrRateLimited
	})

	_, err := f.svc.HandleInboundMessage(context.Background(), "conv-1", f.cfg.SectorID, InboundMessage{Text: "hallo"})
	if err == nil {
		t.Fatal("expected an error from a rate-limited completion")
	}
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("error kind = %v, want unavailable (retryable)", apperr.GetKind(err))
	}
	if !errors.Is(err, completion.ErrRateLimited) {
		t.Fatal("typed completion failure should be preserved in the chain")
	}
	if got := f.store.sessions["conv-1"].AutoReplyCount; got != 0 {
		t.Fatalf("auto_reply_count = %d, want 0 after failed completion", got)
	}
	if len(f.dispatch.delays) != 0 {
		t.Fatal("nothing should be dispatched after a failed completion")
	}
}

func TestEscalationMarkerNeverLeaks(t *testing.T) {
	f := newFixture(t, okCompletion("Ik verbind u door. "+domain.EscalationMarker))

	decision, err := f.svc.HandleInboundMessage(context.Background(), "conv-1", f.cfg.SectorID, InboundMessage{Text: "iets ingewikkelds"})
	if err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if decision.Outcome != domain.OutcomeEscalated || decision.Reason != string(domain.ReasonAISuggested) {
		t.Fatalf("decision = %+v, want escalated/ai_suggested", decision)
	}
	if got := f.store.sessions["conv-1"].AutoReplyCount; got != 0 {
		t.Fatalf("auto_reply_count = %d, want 0 on marker escalation", got)
	}
	if len(f.store.replies) != 0 {
		t.Fatal("no reply should be recorded on marker escalation")
	}
}

func TestOutOfHoursReplyDoesNotAdvanceCounter(t *testing.T) {
	f := newFixture(t, okCompletion("ok"))
	loc, _ := time.LoadLocation("Europe/Amsterdam")
	f.svc.now = func() time.Time { return time.Date(2026, 3, 7, 10, 0, 0, 0, loc) } // Saturday

	decision, err := f.svc.HandleInboundMessage(context.Background(), "conv-1", f.cfg.SectorID, InboundMessage{Text: "hallo"})
	if err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if decision.Outcome != domain.OutcomeReplied || decision.ReplyText != f.cfg.OutOfHoursMessage {
		t.Fatalf("decision = %+v, want out-of-hours reply", decision)
	}
	if got := f.store.sessions["conv-1"].AutoReplyCount; got != 0 {
		t.Fatalf("auto_reply_count = %d, want 0 for out-of-hours reply", got)
	}
	if len(f.store.oohSent) != 1 {
		t.Fatalf("expected one out-of-hours record, got %d", len(f.store.oohSent))
	}
}

func TestSchedulingIntentAppendsSlotOffer(t *testing.T) {
	f := newFixture(t, okCompletion("Dat kan zeker."))
	f.slots.text = "1. ma 9 mrt 10:00\n2. ma 9 mrt 14:00"

	decision, err := f.svc.HandleInboundMessage(context.Background(), "conv-1", f.cfg.SectorID,
		InboundMessage{Text: "Kunnen we een afspraak maken?"})
	if err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if decision.Outcome != domain.OutcomeReplied {
		t.Fatalf("outcome = %s, want replied", decision.Outcome)
	}
	if !strings.Contains(decision.ReplyText, "1. ma 9 mrt 10:00") {
		t.Fatalf("reply should contain the numbered slot list, got %q", decision.ReplyText)
	}
	session := f.store.sessions["conv-1"]
	if session.DetectedIntent == nil || *session.DetectedIntent != "scheduling" {
		t.Fatal("detected_intent should be set to scheduling")
	}
}

func TestDisabledConfigSkipsSilently(t *testing.T) {
	f := newFixture(t, okCompletion("ok"))
	f.cfg.Enabled = false

	decision, err := f.svc.HandleInboundMessage(context.Background(), "conv-1", f.cfg.SectorID, InboundMessage{Text: "hallo"})
	if err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if decision.Outcome != domain.OutcomeSkipped {
		t.Fatalf("outcome = %s, want skipped", decision.Outcome)
	}
	if len(f.store.sessions) != 0 {
		t.Fatal("no session should be created when automation is disabled")
	}
}

func TestMissingConfigSkipsSilently(t *testing.T) {
	f := newFixture(t, okCompletion("ok"))
	f.svc.configs = &fakeConfigs{err: apperr.NotFound("automation config not found for sector")}

	decision, err := f.svc.HandleInboundMessage(context.Background(), "conv-1", f.cfg.SectorID, InboundMessage{Text: "hallo"})
	if err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if decision.Outcome != domain.OutcomeSkipped {
		t.Fatalf("outcome = %s, want skipped", decision.Outcome)
	}
	if len(f.tickets.open) != 0 {
		t.Fatal("missing config must never escalate")
	}
}

func TestHybridModeHoldsReplyForReview(t *testing.T) {
	f := newFixture(t, okCompletion("Concept antwoord."))
	ctx := context.Background()
	sectorID := f.cfg.SectorID

	if _, err := f.svc.HandleInboundMessage(ctx, "conv-1", sectorID, InboundMessage{Text: "eerste vraag"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := f.svc.SetReviewMode(ctx, "conv-1", true); err != nil {
		t.Fatalf("SetReviewMode: %v", err)
	}
	dispatched := len(f.dispatch.delays)

	decision, err := f.svc.HandleInboundMessage(ctx, "conv-1", sectorID, InboundMessage{Text: "tweede vraag"})
	if err != nil {
		t.Fatalf("HandleInboundMessage: %v", err)
	}
	if decision.Outcome != domain.OutcomeReplied {
		t.Fatalf("outcome = %s, want replied", decision.Outcome)
	}
	if len(f.dispatch.delays) != dispatched {
		t.Fatal("hybrid replies must not be dispatched automatically")
	}
	last := f.store.replies[len(f.store.replies)-1]
	if !last.PendingReview {
		t.Fatal("hybrid reply should be recorded as pending review")
	}
}

func TestReturnToAIResetsBudget(t *testing.T) {
	f := newFixture(t, okCompletion("ok"))
	ctx := context.Background()

	if _, err := f.svc.HandleInboundMessage(ctx, "conv-1", f.cfg.SectorID, InboundMessage{Text: "klacht!"}); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if err := f.svc.ReturnToAI(ctx, "conv-1"); err != nil {
		t.Fatalf("ReturnToAI: %v", err)
	}
	session := f.store.sessions["conv-1"]
	if session.Mode != domain.ModeAI || session.AutoReplyCount != 0 || session.EscalatedAt != nil {
		t.Fatalf("session not reset: %+v", session)
	}
}
