package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func amsterdam(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func baseParams(t *testing.T) GenerateParams {
	loc := amsterdam(t)
	return GenerateParams{
		// Monday 2 March 2026, 08:00 local.
		Now:          time.Date(2026, 3, 2, 8, 0, 0, 0, loc),
		Location:     loc,
		Windows:      DefaultWindows(),
		SlotDuration: time.Hour,
		BufferBefore: 15 * time.Minute,
		BufferAfter:  15 * time.Minute,
		MinAdvance:   24 * time.Hour,
		MaxAdvance:   14 * 24 * time.Hour,
		Count:        5,
	}
}

func TestGenerateCandidatesRespectsMinAdvanceAndCount(t *testing.T) {
	p := baseParams(t)
	slots := GenerateCandidates(p)

	if len(slots) != 5 {
		t.Fatalf("candidate count = %d, want 5", len(slots))
	}
	earliest := p.Now.Add(p.MinAdvance)
	for i, s := range slots {
		if s.Start.Before(earliest) {
			t.Fatalf("slot %d starts %s, before min advance %s", i, s.Start, earliest)
		}
		if i > 0 && s.Start.Before(slots[i-1].Start) {
			t.Fatal("slots must be chronological")
		}
	}
	// First candidate is Tuesday 09:00: Monday is inside the 24h advance.
	loc := amsterdam(t)
	want := time.Date(2026, 3, 3, 9, 0, 0, 0, loc)
	if !slots[0].Start.Equal(want) {
		t.Fatalf("first slot = %s, want %s", slots[0].Start, want)
	}
}

func TestGenerateCandidatesExcludesBufferedOverlaps(t *testing.T) {
	p := baseParams(t)
	loc := amsterdam(t)
	agent := uuid.New()
	for i := range p.Windows {
		p.Windows[i].AgentID = &agent
	}
	// Existing booking Tuesday 10:00-11:00. With 15 minute buffers it blocks
	// the 09:00 candidate (ends 10:00, inside 09:45-11:15) and the 11:00 one.
	p.Existing = []BookingInterval{{
		Start:   time.Date(2026, 3, 3, 10, 0, 0, 0, loc),
		End:     time.Date(2026, 3, 3, 11, 0, 0, 0, loc),
		AgentID: &agent,
	}}

	slots := GenerateCandidates(p)
	blockedFrom := time.Date(2026, 3, 3, 9, 45, 0, 0, loc)
	blockedUntil := time.Date(2026, 3, 3, 11, 15, 0, 0, loc)
	for _, s := range slots {
		if s.Start.Before(blockedUntil) && blockedFrom.Before(s.End) {
			t.Fatalf("slot %s-%s overlaps the buffered booking", s.Start, s.End)
		}
	}
	want := time.Date(2026, 3, 3, 12, 0, 0, 0, loc)
	if !slots[0].Start.Equal(want) {
		t.Fatalf("first slot = %s, want %s after the blocked window", slots[0].Start, want)
	}
}

func TestGenerateCandidatesOtherAgentDoesNotBlock(t *testing.T) {
	p := baseParams(t)
	loc := amsterdam(t)
	agent := uuid.New()
	other := uuid.New()
	for i := range p.Windows {
		p.Windows[i].AgentID = &agent
	}
	p.Existing = []BookingInterval{{
		Start:   time.Date(2026, 3, 3, 9, 0, 0, 0, loc),
		End:     time.Date(2026, 3, 3, 10, 0, 0, 0, loc),
		AgentID: &other,
	}}

	slots := GenerateCandidates(p)
	want := time.Date(2026, 3, 3, 9, 0, 0, 0, loc)
	if !slots[0].Start.Equal(want) {
		t.Fatalf("first slot = %s, want %s despite other agent's booking", slots[0].Start, want)
	}
}

func TestGenerateCandidatesSectorWideBookingBlocksAll(t *testing.T) {
	p := baseParams(t)
	loc := amsterdam(t)
	// Windows without agent binding; the existing booking has no agent either.
	p.Existing = []BookingInterval{{
		Start: time.Date(2026, 3, 3, 9, 0, 0, 0, loc),
		End:   time.Date(2026, 3, 3, 10, 0, 0, 0, loc),
	}}

	slots := GenerateCandidates(p)
	for _, s := range slots {
		if s.Start.Equal(time.Date(2026, 3, 3, 9, 0, 0, 0, loc)) {
			t.Fatal("sector-wide booking should block the 09:00 candidate")
		}
	}
}

func TestGenerateCandidatesHonorsMaxAdvance(t *testing.T) {
	p := baseParams(t)
	p.MaxAdvance = 48 * time.Hour
	p.Count = 100

	slots := GenerateCandidates(p)
	if len(slots) == 0 {
		t.Fatal("expected candidates within two days")
	}
	latest := p.Now.Add(p.MaxAdvance)
	for _, s := range slots {
		if s.End.After(latest) {
			t.Fatalf("slot ending %s exceeds max advance %s", s.End, latest)
		}
	}
}

func TestFormatOffer(t *testing.T) {
	loc := amsterdam(t)
	slots := []Slot{
		{Start: time.Date(2026, 3, 3, 9, 0, 0, 0, loc), End: time.Date(2026, 3, 3, 10, 0, 0, 0, loc)},
		{Start: time.Date(2026, 3, 3, 12, 0, 0, 0, loc), End: time.Date(2026, 3, 3, 13, 0, 0, 0, loc)},
	}
	text := FormatOffer(slots, loc)
	if !strings.Contains(text, "1. di 3 mrt 09:00-10:00") {
		t.Fatalf("missing first numbered line, got:\n%s", text)
	}
	if !strings.Contains(text, "2. di 3 mrt 12:00-13:00") {
		t.Fatalf("missing second numbered line, got:\n%s", text)
	}
	if FormatOffer(nil, loc) != "" {
		t.Fatal("empty slot set should render empty")
	}
}
