package service

import (
	"context"
	"testing"

	"converse_backend/internal/leads/domain"
	"converse_backend/internal/sectors"
	"converse_backend/platform/apperr"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeadStore struct {
	leads map[string]*domain.Lead
	logs  []domain.QualificationLog
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{leads: make(map[string]*domain.Lead)}
}

func (f *fakeLeadStore) GetByConversation(_ context.Context, conversationID string) (*domain.Lead, error) {
	lead, ok := f.leads[conversationID]
	if !ok {
		return nil, apperr.NotFound("lead not found")
	}
	copied := *lead
	return &copied, nil
}

func (f *fakeLeadStore) Create(_ context.Context, lead *domain.Lead) error {
	copied := *lead
	f.leads[lead.ConversationID] = &copied
	return nil
}

func (f *fakeLeadStore) Update(_ context.Context, lead *domain.Lead) error {
	if _, ok := f.leads[lead.ConversationID]; !ok {
		return apperr.NotFound("lead not found")
	}
	copied := *lead
	f.leads[lead.ConversationID] = &copied
	return nil
}

func (f *fakeLeadStore) AppendLog(_ context.Context, log *domain.QualificationLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeLeadStore) ListLogs(_ context.Context, conversationID string, _ int) ([]domain.QualificationLog, error) {
	var out []domain.QualificationLog
	for _, l := range f.logs {
		if l.ConversationID == conversationID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeScoringConfigs struct{}

func (fakeScoringConfigs) GetScoringConfig(context.Context, uuid.UUID) (*sectors.ScoringConfig, error) {
	return &sectors.ScoringConfig{
		BudgetWeight:         25,
		AuthorityWeight:      25,
		NeedWeight:           30,
		TimelineWeight:       20,
		AutoCreateThreshold:  30,
		AutoQualifyThreshold: 70,
	}, nil
}

// syncBus delivers nothing; leads tests assert on store state.
type syncBus struct{}

func (syncBus) Publish(context.Context, events.Event)           {}
func (syncBus) PublishSync(context.Context, events.Event) error { return nil }
func (syncBus) Subscribe(string, events.Handler)                {}

func newScorer() (*Service, *fakeLeadStore) {
	store := newFakeLeadStore()
	svc := New(store, fakeScoringConfigs{}, syncBus{}, logger.New("development"))
	return svc, store
}

func strongAnalysis() domain.Analysis {
	return domain.Analysis{
		Budget:         domain.BudgetSignal{Detected: true, Confidence: 0.8},
		Authority:      domain.AuthoritySignal{Detected: true, IsDecisionMaker: true, Confidence: 0.9},
		Need:           domain.NeedSignal{Detected: true, Urgency: domain.UrgencyHigh, Confidence: 0.9},
		Timeline:       domain.TimelineSignal{Detected: true, Timeframe: domain.TimeframeImmediate, Confidence: 0.8},
		SuggestedValue: 4200,
	}
}

func TestStrongAnalysisCreatesQualifiedLead(t *testing.T) {
	svc, store := newScorer()

	result, err := svc.QualifyFromAnalysis(context.Background(), "conv-1", uuid.New(), strongAnalysis())
	if err != nil {
		t.Fatalf("QualifyFromAnalysis: %v", err)
	}
	if result.Score != 86 {
		t.Fatalf("score = %d, want 86", result.Score)
	}
	if !result.LeadCreated || result.Status != domain.StatusQualified {
		t.Fatalf("result = %+v, want created qualified lead", result)
	}

	lead := store.leads["conv-1"]
	if lead == nil {
		t.Fatal("lead not stored")
	}
	if lead.QualifiedAt == nil {
		t.Fatal("qualified_at should be set on creation at or above the qualify threshold")
	}
	if lead.ValueEstimate != 4200 {
		t.Fatalf("value estimate = %.0f, want 4200", lead.ValueEstimate)
	}
	if len(store.logs) != 1 {
		t.Fatalf("log rows = %d, want 1", len(store.logs))
	}
}

func TestLowScoreWritesLogWithoutLead(t *testing.T) {
	svc, store := newScorer()

	analysis := domain.Analysis{
		Need: domain.NeedSignal{Detected: true, Urgency: domain.UrgencyLow, Confidence: 0.5},
	}
	result, err := svc.QualifyFromAnalysis(context.Background(), "conv-1", uuid.New(), analysis)
	if err != nil {
		t.Fatalf("QualifyFromAnalysis: %v", err)
	}
	if result.Score != 6 {
		t.Fatalf("score = %d, want 6", result.Score)
	}
	if result.LeadID != nil {
		t.Fatal("no lead should be created below the create threshold")
	}
	if len(store.leads) != 0 {
		t.Fatal("lead table should be empty")
	}
	if len(store.logs) != 1 {
		t.Fatalf("log rows = %d, want 1", len(store.logs))
	}
	if store.logs[0].LeadID != nil {
		t.Fatal("log row should carry a null lead id")
	}
	if store.logs[0].NewScore != 6 {
		t.Fatalf("logged score = %d, want 6", store.logs[0].NewScore)
	}
}

func TestQualifiedAtIsNeverClearedByScoring(t *testing.T) {
	svc, store := newScorer()
	ctx := context.Background()

	if _, err := svc.QualifyFromAnalysis(ctx, "conv-1", uuid.New(), strongAnalysis()); err != nil {
		t.Fatalf("initial qualification: %v", err)
	}
	qualifiedAt := store.leads["conv-1"].QualifiedAt
	if qualifiedAt == nil {
		t.Fatal("setup: lead should be qualified")
	}

	weak := domain.Analysis{
		Need: domain.NeedSignal{Detected: true, Urgency: domain.UrgencyMedium, Confidence: 0.6},
	}
	result, err := svc.QualifyFromAnalysis(ctx, "conv-1", uuid.New(), weak)
	if err != nil {
		t.Fatalf("follow-up scoring: %v", err)
	}

	lead := store.leads["conv-1"]
	if lead.QualifiedAt == nil || !lead.QualifiedAt.Equal(*qualifiedAt) {
		t.Fatal("qualified_at must survive a lower follow-up score")
	}
	if lead.Score != result.Score {
		t.Fatalf("score should update unconditionally, got %d want %d", lead.Score, result.Score)
	}
	if result.PreviousScore == nil || *result.PreviousScore != 86 {
		t.Fatalf("previous score = %v, want 86", result.PreviousScore)
	}
}

func TestValueEstimateOnlyRatchetsUp(t *testing.T) {
	svc, store := newScorer()
	ctx := context.Background()

	if _, err := svc.QualifyFromAnalysis(ctx, "conv-1", uuid.New(), strongAnalysis()); err != nil {
		t.Fatalf("initial qualification: %v", err)
	}

	lower := strongAnalysis()
	lower.SuggestedValue = 1000
	if _, err := svc.QualifyFromAnalysis(ctx, "conv-1", uuid.New(), lower); err != nil {
		t.Fatalf("lower value run: %v", err)
	}
	if got := store.leads["conv-1"].ValueEstimate; got != 4200 {
		t.Fatalf("value estimate = %.0f, want 4200 after lower suggestion", got)
	}

	higher := strongAnalysis()
	higher.SuggestedValue = 9000
	if _, err := svc.QualifyFromAnalysis(ctx, "conv-1", uuid.New(), higher); err != nil {
		t.Fatalf("higher value run: %v", err)
	}
	if got := store.leads["conv-1"].ValueEstimate; got != 9000 {
		t.Fatalf("value estimate = %.0f, want 9000 after higher suggestion", got)
	}
}

func TestZeroConfidenceFallbackStillLogs(t *testing.T) {
	svc, store := newScorer()

	result, err := svc.QualifyFromAnalysis(context.Background(), "conv-1", uuid.New(), domain.Analysis{})
	if err != nil {
		t.Fatalf("QualifyFromAnalysis: %v", err)
	}
	if result.Score != 0 {
		t.Fatalf("score = %d, want 0", result.Score)
	}
	if len(store.logs) != 1 {
		t.Fatal("even an empty analysis must be logged")
	}
}

func TestContactedStatusBand(t *testing.T) {
	svc, store := newScorer()

	// 25*1.0 + 30*0.8 = 49, exactly the contacted cut-off (0.7 * 70).
	analysis := domain.Analysis{
		Budget: domain.BudgetSignal{Detected: true, Confidence: 1.0},
		Need:   domain.NeedSignal{Detected: true, Urgency: domain.UrgencyHigh, Confidence: 0.8},
	}
	result, err := svc.QualifyFromAnalysis(context.Background(), "conv-1", uuid.New(), analysis)
	if err != nil {
		t.Fatalf("QualifyFromAnalysis: %v", err)
	}
	if result.Score != 49 {
		t.Fatalf("score = %d, want 49", result.Score)
	}
	if result.Status != domain.StatusContacted {
		t.Fatalf("status = %s, want contacted", result.Status)
	}
	if store.leads["conv-1"].QualifiedAt != nil {
		t.Fatal("contacted lead must not carry qualified_at")
	}
}
