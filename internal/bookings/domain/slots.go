// Package domain holds the pure slot-allocation logic: candidate enumeration
// from weekly windows minus buffered existing bookings, and the offer
// formatting shown to end users.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OfferTTL is how long a slot offer stays confirmable.
const OfferTTL = 30 * time.Minute

// Window is one weekly recurring bookable window. AgentID is nil for
// sector-wide windows. Minutes are local wall-clock offsets from midnight.
type Window struct {
	Weekday     int // ISO weekday number, 1 = Monday
	StartMinute int
	EndMinute   int
	AgentID     *uuid.UUID
}

// DefaultWindows is the business-hours template used when a sector has no
// configured availability: Monday to Friday, 09:00 to 17:00.
func DefaultWindows() []Window {
	windows := make([]Window, 0, 5)
	for day := 1; day <= 5; day++ {
		windows = append(windows, Window{Weekday: day, StartMinute: 9 * 60, EndMinute: 17 * 60})
	}
	return windows
}

// Slot is one candidate bookable interval.
type Slot struct {
	Start   time.Time  `json:"start"`
	End     time.Time  `json:"end"`
	AgentID *uuid.UUID `json:"agent_id,omitempty"`
}

// BookingInterval is an existing active booking that blocks candidates.
type BookingInterval struct {
	Start   time.Time
	End     time.Time
	AgentID *uuid.UUID
}

// GenerateParams bounds one enumeration run.
type GenerateParams struct {
	Now          time.Time
	Location     *time.Location
	Windows      []Window
	SlotDuration time.Duration
	BufferBefore time.Duration
	BufferAfter  time.Duration
	MinAdvance   time.Duration
	MaxAdvance   time.Duration
	Count        int
	Existing     []BookingInterval
}

func (p GenerateParams) validate() bool {
	return p.SlotDuration > 0 && p.Count > 0 && len(p.Windows) > 0 && p.Location != nil
}

// GenerateCandidates enumerates up to Count open slots in chronological
// order, starting at Now+MinAdvance and bounded by Now+MaxAdvance. A
// candidate is dropped when its interval intersects an existing booking
// expanded by the buffers for the same agent.
func GenerateCandidates(p GenerateParams) []Slot {
	if !p.validate() {
		return nil
	}

	earliest := p.Now.Add(p.MinAdvance)
	latest := p.Now.Add(p.MaxAdvance)

	var slots []Slot
	day := time.Date(p.Now.In(p.Location).Year(), p.Now.In(p.Location).Month(), p.Now.In(p.Location).Day(), 0, 0, 0, 0, p.Location)
	for !day.After(latest) && len(slots) < p.Count {
		isoDay := int(day.Weekday())
		if isoDay == 0 {
			isoDay = 7
		}
		for _, w := range p.Windows {
			if w.Weekday != isoDay {
				continue
			}
			for startMin := w.StartMinute; startMin+int(p.SlotDuration.Minutes()) <= w.EndMinute; startMin += int(p.SlotDuration.Minutes()) {
				start := day.Add(time.Duration(startMin) * time.Minute)
				end := start.Add(p.SlotDuration)
				if start.Before(earliest) || end.After(latest) {
					continue
				}
				if p.blocked(start, end, w.AgentID) {
					continue
				}
				slots = append(slots, Slot{Start: start, End: end, AgentID: w.AgentID})
				if len(slots) >= p.Count {
					return slots
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots
}

func (p GenerateParams) blocked(start, end time.Time, agentID *uuid.UUID) bool {
	for _, b := range p.Existing {
		if !sameAgent(agentID, b.AgentID) {
			continue
		}
		blockedStart := b.Start.Add(-p.BufferBefore)
		blockedEnd := b.End.Add(p.BufferAfter)
		if start.Before(blockedEnd) && blockedStart.Before(end) {
			return true
		}
	}
	return false
}

// sameAgent treats a nil agent as the shared sector resource, which conflicts
// with every booking.
func sameAgent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return true
	}
	return *a == *b
}

var dutchDays = []string{"zo", "ma", "di", "wo", "do", "vr", "za"}
var dutchMonths = []string{"", "jan", "feb", "mrt", "apr", "mei", "jun", "jul", "aug", "sep", "okt", "nov", "dec"}

// FormatSlot renders one slot as a short human-readable line.
func FormatSlot(s Slot, loc *time.Location) string {
	start := s.Start.In(loc)
	end := s.End.In(loc)
	return fmt.Sprintf("%s %d %s %02d:%02d-%02d:%02d",
		dutchDays[int(start.Weekday())], start.Day(), dutchMonths[int(start.Month())],
		start.Hour(), start.Minute(), end.Hour(), end.Minute())
}

// FormatOffer renders the numbered slot list sent to the end user. The
// numbers are the 1-based indexes accepted by confirmation.
func FormatOffer(slots []Slot, loc *time.Location) string {
	if len(slots) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Beschikbare momenten (antwoord met het nummer):\n")
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, FormatSlot(s, loc))
	}
	return strings.TrimRight(b.String(), "\n")
}
