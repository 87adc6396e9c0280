// Package service runs qualification: score an analysis, apply the lead
// lifecycle policy and append the audit log.
package service

import (
	"context"
	"time"

	domainevents "converse_backend/internal/events"
	"converse_backend/internal/leads/domain"
	"converse_backend/internal/sectors"
	"converse_backend/platform/apperr"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"

	"github.com/google/uuid"
)

// Default weights and thresholds used when a sector carries no scoring
// configuration, so a run is never dropped for lack of config.
var (
	defaultWeights    = domain.Weights{Budget: 25, Authority: 25, Need: 30, Timeline: 20}
	defaultThresholds = domain.Thresholds{AutoCreate: 30, AutoQualify: 70}
)

// LeadStore is the persistence surface of the scorer.
type LeadStore interface {
	GetByConversation(ctx context.Context, conversationID string) (*domain.Lead, error)
	Create(ctx context.Context, lead *domain.Lead) error
	Update(ctx context.Context, lead *domain.Lead) error
	AppendLog(ctx context.Context, log *domain.QualificationLog) error
	ListLogs(ctx context.Context, conversationID string, limit int) ([]domain.QualificationLog, error)
}

// ConfigStore reads per-sector scoring weights and thresholds.
type ConfigStore interface {
	GetScoringConfig(ctx context.Context, sectorID uuid.UUID) (*sectors.ScoringConfig, error)
}

// Result reports one qualification run.
type Result struct {
	LeadID         *uuid.UUID
	PreviousScore  *int
	Score          int
	Status         domain.Status
	LeadCreated    bool
	NewlyQualified bool
}

// Service is the lead qualification scorer.
type Service struct {
	store   LeadStore
	configs ConfigStore
	bus     events.Bus
	log     *logger.Logger
	now     func() time.Time
}

// New creates the scorer service.
func New(store LeadStore, configs ConfigStore, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, configs: configs, bus: bus, log: log, now: time.Now}
}

// QualifyFromAnalysis scores one analysis and applies the lifecycle policy.
// Every run appends a qualification log row, lead or no lead.
func (s *Service) QualifyFromAnalysis(ctx context.Context, conversationID string, sectorID uuid.UUID, analysis domain.Analysis) (*Result, error) {
	weights, thresholds := s.scoringConfig(ctx, sectorID)
	analysis = analysis.Sanitized()
	score := domain.Score(analysis, weights)

	existing, err := s.store.GetByConversation(ctx, conversationID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	result := &Result{Score: score}
	switch {
	case existing == nil && score < thresholds.AutoCreate:
		// Below the creation threshold: audit only.

	case existing == nil:
		lead := &domain.Lead{
			ID:             uuid.New(),
			ConversationID: conversationID,
			SectorID:       sectorID,
			Score:          score,
			Status:         domain.StatusForScore(score, thresholds),
			ValueEstimate:  analysis.SuggestedValue,
			Budget:         analysis.Budget,
			Authority:      analysis.Authority,
			Need:           analysis.Need,
			Timeline:       analysis.Timeline,
		}
		if lead.Status == domain.StatusQualified {
			now := s.now()
			lead.QualifiedAt = &now
			result.NewlyQualified = true
		}
		if err := s.store.Create(ctx, lead); err != nil {
			return nil, err
		}
		result.LeadID = &lead.ID
		result.Status = lead.Status
		result.LeadCreated = true

	default:
		prev := existing.Score
		result.PreviousScore = &prev

		existing.Score = score
		existing.Budget = analysis.Budget
		existing.Authority = analysis.Authority
		existing.Need = analysis.Need
		existing.Timeline = analysis.Timeline
		// qualified_at is set exactly once and never cleared by scoring.
		if existing.QualifiedAt == nil && score >= thresholds.AutoQualify {
			now := s.now()
			existing.QualifiedAt = &now
			existing.Status = domain.StatusQualified
			result.NewlyQualified = true
		}
		// Value estimate only ratchets upward.
		if analysis.SuggestedValue > existing.ValueEstimate {
			existing.ValueEstimate = analysis.SuggestedValue
		}
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, err
		}
		result.LeadID = &existing.ID
		result.Status = existing.Status
	}

	if err := s.store.AppendLog(ctx, &domain.QualificationLog{
		ID:             uuid.New(),
		ConversationID: conversationID,
		LeadID:         result.LeadID,
		PreviousScore:  result.PreviousScore,
		NewScore:       score,
		Analysis:       analysis,
	}); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, domainevents.LeadScored{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: conversationID,
		LeadID:         result.LeadID,
		PreviousScore:  result.PreviousScore,
		Score:          score,
	})
	if result.NewlyQualified && result.LeadID != nil {
		s.bus.Publish(ctx, domainevents.LeadQualified{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         *result.LeadID,
			ConversationID: conversationID,
			Score:          score,
		})
	}

	return result, nil
}

// GetLead returns the lead attached to a conversation.
func (s *Service) GetLead(ctx context.Context, conversationID string) (*domain.Lead, error) {
	return s.store.GetByConversation(ctx, conversationID)
}

// History returns a conversation's qualification log, newest first.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]domain.QualificationLog, error) {
	return s.store.ListLogs(ctx, conversationID, limit)
}

// RegisterEventHandlers runs cue-word scoring in the background for every
// inbound message that carries any BANT signal.
func (s *Service) RegisterEventHandlers(bus events.Bus) {
	bus.Subscribe(domainevents.EventInboundMessageReceived, events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		inbound, ok := e.(domainevents.InboundMessageReceived)
		if !ok {
			return nil
		}
		analysis := domain.DetectCues(inbound.Text)
		if !analysis.HasSignal() {
			return nil
		}
		_, err := s.QualifyFromAnalysis(ctx, inbound.ConversationID, inbound.SectorID, analysis)
		return err
	}))
}

func (s *Service) scoringConfig(ctx context.Context, sectorID uuid.UUID) (domain.Weights, domain.Thresholds) {
	cfg, err := s.configs.GetScoringConfig(ctx, sectorID)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			s.log.Error("load scoring config", "sector_id", sectorID.String(), "error", err.Error())
		}
		return defaultWeights, defaultThresholds
	}
	return domain.Weights{
			Budget:    cfg.BudgetWeight,
			Authority: cfg.AuthorityWeight,
			Need:      cfg.NeedWeight,
			Timeline:  cfg.TimelineWeight,
		}, domain.Thresholds{
			AutoCreate:  cfg.AutoCreateThreshold,
			AutoQualify: cfg.AutoQualifyThreshold,
		}
}
