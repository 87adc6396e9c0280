// Package sectors holds per-sector configuration consumed by the automation
// core: automation behavior, scoring weights and thresholds, and booking
// availability. The store is read-only to the rest of the system; rows are
// seeded by migration and managed outside this service.
package sectors

import (
	"time"

	"github.com/google/uuid"
)

// AutomationConfig controls how the session state machine handles a sector's
// conversations.
type AutomationConfig struct {
	SectorID           uuid.UUID
	Enabled            bool
	Persona            string
	MaxAutoReplies     int
	ReplyDelay         time.Duration
	EscalationKeywords []string
	EscalateOnNegative bool
	WorkingDays        []int // ISO weekday numbers, 1 = Monday
	WorkStart          string
	WorkEnd            string
	Timezone           string
	OutOfHoursMessage  string
	BusinessContext    string
	FAQContext         string
	CatalogContext     string
	NotifyEmail        string
}

// ScoringConfig carries the BANT weights and lead thresholds for a sector.
// Weights sum to at most 100; AutoQualifyThreshold >= AutoCreateThreshold.
type ScoringConfig struct {
	SectorID             uuid.UUID
	BudgetWeight         int
	AuthorityWeight      int
	NeedWeight           int
	TimelineWeight       int
	AutoCreateThreshold  int
	AutoQualifyThreshold int
}

// BookingConfig carries slot-generation parameters for a sector.
type BookingConfig struct {
	SectorID        uuid.UUID
	SlotDuration    time.Duration
	BufferBefore    time.Duration
	BufferAfter     time.Duration
	MinAdvanceHours int
	MaxAdvanceDays  int
	OfferSlotCount  int
}

// AvailabilityWindow is one weekly recurring bookable window. AgentID is nil
// for sector-wide windows.
type AvailabilityWindow struct {
	ID          uuid.UUID
	SectorID    uuid.UUID
	AgentID     *uuid.UUID
	Weekday     int // ISO weekday number, 1 = Monday
	StartMinute int // minutes from midnight, sector-local
	EndMinute   int
}
