package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusEscalated  TicketStatus = "ESCALATED"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether the status is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusEscalated, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the status ends the ticket lifecycle.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// NonTerminalStatuses lists every status the SLA monitor scans.
var NonTerminalStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusEscalated}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Valid reports whether the priority is known.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Escalate returns the priority one level up; CRITICAL stays put.
func (p TicketPriority) Escalate() TicketPriority {
	switch p {
	case TicketPriorityLow:
		return TicketPriorityMedium
	case TicketPriorityMedium:
		return TicketPriorityHigh
	case TicketPriorityHigh, TicketPriorityCritical:
		return TicketPriorityCritical
	}
	return p
}

// TicketCategory classifies the kind of request.
type TicketCategory string

const (
	CategoryFunctionalSupport TicketCategory = "FUNCTIONAL_SUPPORT"
	CategoryIncident          TicketCategory = "INCIDENT"
	CategoryAlarm             TicketCategory = "ALARM"
)

// Valid reports whether the category is known.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryFunctionalSupport, CategoryIncident, CategoryAlarm:
		return true
	}
	return false
}

// Confidentiality restricts who may see ticket contents.
type Confidentiality string

const (
	ConfidentialityPublic       Confidentiality = "PUBLIC"
	ConfidentialityInternal     Confidentiality = "INTERNAL"
	ConfidentialityConfidential Confidentiality = "CONFIDENTIAL"
)

// Ticket is the aggregate for support requests. It is mutated only through
// the ticket service; every mutation appends history.
type Ticket struct {
	ID              string
	Number          string
	CreatorID       string
	AssigneeID      *string
	Title           string
	Description     string
	Category        TicketCategory
	Priority        TicketPriority
	Status          TicketStatus
	Confidentiality Confidentiality
	SLADeadline     time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time

	// SLA monitor markers; written with compare-and-set semantics so a
	// breach escalates and warns exactly once.
	EscalatedBySLA bool
	SLAWarningSent bool
	EscalatedAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FormatTicketNumber renders the human-readable ticket number for a
// sequence value, TKT-000001 style.
func FormatTicketNumber(seq int64) string {
	return fmt.Sprintf("TKT-%06d", seq)
}

// SLADeadlineFor computes the deadline for a ticket created now, given the
// configured hours-per-priority table.
func SLADeadlineFor(now time.Time, priority TicketPriority, hours map[TicketPriority]int) time.Time {
	h, ok := hours[priority]
	if !ok {
		h = hours[TicketPriorityMedium]
	}
	return now.Add(time.Duration(h) * time.Hour)
}
