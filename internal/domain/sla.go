package domain

import "time"

// SLAPolicy defines response and resolution budgets for a priority, optionally scoped to a category.
// A nil CategoryID is the organization default for that priority.
type SLAPolicy struct {
	ID                 string
	OrganizationID     string
	Priority           TicketPriority
	CategoryID         *string
	FirstResponseHours *int
	ResolveHours       *int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Category groups tickets within an organization.
type Category struct {
	ID             string
	OrganizationID string
	Name           string
	CreatedAt      time.Time
}

// EscalationLevel maps one step of an escalation chain to a team.
type EscalationLevel struct {
	Level  int
	TeamID string
}

// DueDates holds the deadlines derived from a policy.
type DueDates struct {
	FirstResponseDue *time.Time
	ResolveDue       *time.Time
}
