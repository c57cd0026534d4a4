package dto

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// PreviewRequest payload. OrganizationID defaults to the caller's.
type PreviewRequest struct {
	OrganizationID string                `json:"organization_id"`
	Priority       domain.TicketPriority `json:"priority"`
	Category       string                `json:"category"`
}

// PreviewResponse lists the deadlines a new ticket would get.
type PreviewResponse struct {
	PolicyID         *string    `json:"policy_id"`
	FirstResponseDue *time.Time `json:"first_response_due"`
	ResolveDue       *time.Time `json:"resolve_due"`
}

// SLAStatusResponse is the classifier output for one ticket.
type SLAStatusResponse struct {
	TicketID         string              `json:"ticket_id"`
	Status           domain.TicketStatus `json:"status"`
	State            string              `json:"state"`
	Label            string              `json:"label"`
	Milestone        string              `json:"milestone,omitempty"`
	NextDue          *time.Time          `json:"next_due"`
	RemainingSeconds int64               `json:"remaining_seconds"`
	Paused           bool                `json:"paused"`
	FirstResponseDue *time.Time          `json:"first_response_due"`
	ResolveDue       *time.Time          `json:"resolve_due"`
	EvaluatedAt      time.Time           `json:"evaluated_at"`
}

// DashboardResponse aggregates SLA health across open tickets.
type DashboardResponse struct {
	OrganizationID string `json:"organization_id"`
	Open           int    `json:"open"`
	Breached       int    `json:"breached"`
	Healthy        int    `json:"healthy"`
}
