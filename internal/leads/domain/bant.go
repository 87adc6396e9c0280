// Package domain implements the BANT qualification scorer and the lead
// lifecycle policy. Everything here is deterministic and side-effect free.
package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Urgency grades the need dimension.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Timeframe grades the timeline dimension.
type Timeframe string

const (
	TimeframeImmediate      Timeframe = "immediate"
	TimeframeWithinTwoWeeks Timeframe = "within_two_weeks"
	TimeframeWithinMonth    Timeframe = "within_month"
	TimeframeIndefinite     Timeframe = "indefinite"
)

// BudgetSignal is the budget dimension of an analysis.
type BudgetSignal struct {
	Detected      bool    `json:"detected"`
	ValueEstimate float64 `json:"value_estimate,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// AuthoritySignal is the authority dimension.
type AuthoritySignal struct {
	Detected        bool    `json:"detected"`
	Role            string  `json:"role,omitempty"`
	IsDecisionMaker bool    `json:"is_decision_maker"`
	Confidence      float64 `json:"confidence"`
}

// NeedSignal is the need dimension.
type NeedSignal struct {
	Detected   bool     `json:"detected"`
	PainPoints []string `json:"pain_points,omitempty"`
	Urgency    Urgency  `json:"urgency,omitempty"`
	Confidence float64  `json:"confidence"`
}

// TimelineSignal is the timeline dimension.
type TimelineSignal struct {
	Detected   bool      `json:"detected"`
	Timeframe  Timeframe `json:"timeframe,omitempty"`
	Confidence float64   `json:"confidence"`
}

// Analysis is one qualification run's structured input.
type Analysis struct {
	Budget            BudgetSignal    `json:"budget"`
	Authority         AuthoritySignal `json:"authority"`
	Need              NeedSignal      `json:"need"`
	Timeline          TimelineSignal  `json:"timeline"`
	OverallIntent     string          `json:"overall_intent,omitempty"`
	RecommendedAction string          `json:"recommended_action,omitempty"`
	SuggestedValue    float64         `json:"suggested_value,omitempty"`
	Reasoning         string          `json:"reasoning,omitempty"`
}

// HasSignal reports whether any dimension was detected.
func (a Analysis) HasSignal() bool {
	return a.Budget.Detected || a.Authority.Detected || a.Need.Detected || a.Timeline.Detected
}

// Sanitized clamps all confidences into [0,1].
func (a Analysis) Sanitized() Analysis {
	a.Budget.Confidence = clampFloat(a.Budget.Confidence, 0, 1)
	a.Authority.Confidence = clampFloat(a.Authority.Confidence, 0, 1)
	a.Need.Confidence = clampFloat(a.Need.Confidence, 0, 1)
	a.Timeline.Confidence = clampFloat(a.Timeline.Confidence, 0, 1)
	if a.SuggestedValue < 0 {
		a.SuggestedValue = 0
	}
	return a
}

// Weights are the per-sector dimension weights, summing to at most 100.
type Weights struct {
	Budget    int
	Authority int
	Need      int
	Timeline  int
}

// Authority and grade multipliers.
const (
	nonDecisionMakerFactor = 0.6

	urgencyHighFactor   = 1.0
	urgencyMediumFactor = 0.7
	urgencyLowFactor    = 0.4

	timeframeImmediateFactor  = 1.0
	timeframeTwoWeeksFactor   = 0.8
	timeframeMonthFactor      = 0.5
	timeframeIndefiniteFactor = 0.2
)

// Score computes the 0-100 qualification score. Each dimension contributes
// only when detected; the result is monotonic non-decreasing in every
// confidence value.
func Score(a Analysis, w Weights) int {
	a = a.Sanitized()

	var total float64
	if a.Budget.Detected {
		total += float64(w.Budget) * a.Budget.Confidence
	}
	if a.Authority.Detected {
		factor := nonDecisionMakerFactor
		if a.Authority.IsDecisionMaker {
			factor = 1.0
		}
		total += float64(w.Authority) * a.Authority.Confidence * factor
	}
	if a.Need.Detected {
		total += float64(w.Need) * a.Need.Confidence * urgencyFactor(a.Need.Urgency)
	}
	if a.Timeline.Detected {
		total += float64(w.Timeline) * a.Timeline.Confidence * timeframeFactor(a.Timeline.Timeframe)
	}

	return int(math.Round(clampFloat(total, 0, 100)))
}

func urgencyFactor(u Urgency) float64 {
	switch u {
	case UrgencyHigh:
		return urgencyHighFactor
	case UrgencyMedium:
		return urgencyMediumFactor
	default:
		return urgencyLowFactor
	}
}

func timeframeFactor(t Timeframe) float64 {
	switch t {
	case TimeframeImmediate:
		return timeframeImmediateFactor
	case TimeframeWithinTwoWeeks:
		return timeframeTwoWeeksFactor
	case TimeframeWithinMonth:
		return timeframeMonthFactor
	default:
		return timeframeIndefiniteFactor
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Status is the lead lifecycle state.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
)

// Thresholds are the per-sector lead creation and qualification cut-offs.
// AutoQualify is always >= AutoCreate.
type Thresholds struct {
	AutoCreate  int
	AutoQualify int
}

// contactedFraction of the qualify threshold marks a lead worth contacting.
const contactedFraction = 0.7

// StatusForScore maps a score to the initial status of a newly created lead.
func StatusForScore(score int, t Thresholds) Status {
	switch {
	case score >= t.AutoQualify:
		return StatusQualified
	case float64(score) >= contactedFraction*float64(t.AutoQualify):
		return StatusContacted
	default:
		return StatusNew
	}
}

// Lead is the upsert target of scoring runs.
type Lead struct {
	ID             uuid.UUID
	ConversationID string
	SectorID       uuid.UUID
	Score          int
	Status         Status
	QualifiedAt    *time.Time
	ValueEstimate  float64
	Budget         BudgetSignal
	Authority      AuthoritySignal
	Need           NeedSignal
	Timeline       TimelineSignal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QualificationLog is one append-only audit row per scoring run.
type QualificationLog struct {
	ID             uuid.UUID
	ConversationID string
	LeadID         *uuid.UUID
	PreviousScore  *int
	NewScore       int
	Analysis       Analysis
	CreatedAt      time.Time
}
