package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen               TicketStatus = "OPEN"
	TicketStatusInProgress         TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingOnRequester TicketStatus = "WAITING_ON_REQUESTER"
	TicketStatusResolved           TicketStatus = "RESOLVED"
	TicketStatusClosed             TicketStatus = "CLOSED"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingOnRequester,
		TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the status ends the SLA lifecycle.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether the priority is supported.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests, carrying its SLA clock.
type Ticket struct {
	ID              string
	OrganizationID  string
	RequesterID     string
	AssigneeID      *string
	TeamID          *string
	CategoryID      *string
	Title           string
	Status          TicketStatus
	Priority        TicketPriority
	EscalationLevel *int

	FirstResponseAt      *time.Time
	FirstResponseDue     *time.Time
	ResolveDue           *time.Time
	ResolvedAt           *time.Time
	ClosedAt             *time.Time
	SLAPausedAt          *time.Time
	SLAResumedAt         *time.Time
	SLAPauseTotalSeconds int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal reports whether the ticket is done, by status or by a populated terminal timestamp.
func (t *Ticket) IsTerminal() bool {
	return t.Status.Terminal() || t.ResolvedAt != nil || t.ClosedAt != nil
}

// IsWaiting reports whether the SLA clock is stopped on the requester.
func (t *Ticket) IsWaiting() bool {
	return t.Status == TicketStatusWaitingOnRequester
}

// ActorID returns the assignee when present, otherwise the requester.
func (t *Ticket) ActorID() string {
	if t.AssigneeID != nil && *t.AssigneeID != "" {
		return *t.AssigneeID
	}
	return t.RequesterID
}
