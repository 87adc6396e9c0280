// Package domain holds the escalation queue's pure logic: the priority
// policy and the queue ordering contract.
package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAssigned Status = "assigned"
	StatusResolved Status = "resolved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusResolved:
		return true
	}
	return false
}

// Ticket is one escalated conversation waiting for, or claimed by, an agent.
type Ticket struct {
	ID                uuid.UUID
	ConversationID    string
	SectorID          uuid.UUID
	Reason            string
	Priority          int
	Status            Status
	CustomerSentiment *string
	LeadScore         *int
	AISummary         *string
	DetectedIntent    *string
	AssignedUser      *uuid.UUID
	CreatedAt         time.Time
	AssignedAt        *time.Time
	ResolvedAt        *time.Time
}

// Priority policy constants. The numeric bands are a designed policy, kept as
// constants so product can retune them without touching the queue.
const (
	priorityBase     = 0
	bumpModerate     = 1 // sentiment, complexity
	bumpSevere       = 2 // keyword, limit
	bumpHotLead      = 1
	hotLeadThreshold = 80
	priorityCap      = 3
)

// ComputePriority assigns a creation-time priority from the escalation reason
// and the lead score snapshot.
func ComputePriority(reason string, leadScore *int) int {
	p := priorityBase
	switch reason {
	case "sentiment", "complexity":
		p += bumpModerate
	case "keyword", "limit":
		p += bumpSevere
	}
	if leadScore != nil && *leadScore >= hotLeadThreshold {
		p += bumpHotLead
	}
	if p > priorityCap {
		p = priorityCap
	}
	return p
}

// SortQueue orders tickets by priority descending, then created_at ascending.
// This is the externally observable ordering contract for every listing.
func SortQueue(tickets []Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].Priority != tickets[j].Priority {
			return tickets[i].Priority > tickets[j].Priority
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
}
