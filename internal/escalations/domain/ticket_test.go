package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func intPtr(v int) *int { return &v }

func TestComputePriority(t *testing.T) {
	cases := []struct {
		reason    string
		leadScore *int
		want      int
	}{
		{"manual", nil, 0},
		{"timeout", nil, 0},
		{"ai_suggested", nil, 0},
		{"sentiment", nil, 1},
		{"complexity", nil, 1},
		{"keyword", nil, 2},
		{"limit", nil, 2},
		{"manual", intPtr(80), 1},
		{"manual", intPtr(79), 0},
		{"sentiment", intPtr(85), 2},
		{"keyword", intPtr(90), 3},
		// The cap keeps a hot lead with a severe reason at 3.
		{"limit", intPtr(100), 3},
	}
	for _, tc := range cases {
		if got := ComputePriority(tc.reason, tc.leadScore); got != tc.want {
			t.Fatalf("ComputePriority(%q, %v) = %d, want %d", tc.reason, tc.leadScore, got, tc.want)
		}
	}
}

func TestSortQueueOrdering(t *testing.T) {
	base := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	mk := func(name string, priority int, offset time.Duration) Ticket {
		return Ticket{
			ID:             uuid.New(),
			ConversationID: name,
			Priority:       priority,
			Status:         StatusPending,
			CreatedAt:      base.Add(offset),
		}
	}
	t1 := mk("t1", 0, 0)
	t2 := mk("t2", 2, time.Minute)
	t3 := mk("t3", 1, 2*time.Minute)
	t4 := mk("t4", 2, 3*time.Minute)

	tickets := []Ticket{t1, t2, t3, t4}
	SortQueue(tickets)

	want := []string{"t2", "t4", "t3", "t1"}
	for i, name := range want {
		if tickets[i].ConversationID != name {
			t.Fatalf("position %d = %s, want %s", i, tickets[i].ConversationID, name)
		}
	}
}
