package domain

import "time"

// Team is an escalation target inside an organization.
type Team struct {
	ID             string
	OrganizationID string
	Name           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
