package dto

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// PolicyRequest payload for creating or replacing a policy.
type PolicyRequest struct {
	Priority           domain.TicketPriority `json:"priority"`
	CategoryID         *string               `json:"category_id"`
	FirstResponseHours *int                  `json:"first_response_hours"`
	ResolveHours       *int                  `json:"resolve_hours"`
}

// PolicyResponse representation.
type PolicyResponse struct {
	ID                 string                `json:"id"`
	OrganizationID     string                `json:"organization_id"`
	Priority           domain.TicketPriority `json:"priority"`
	CategoryID         *string               `json:"category_id"`
	FirstResponseHours *int                  `json:"first_response_hours"`
	ResolveHours       *int                  `json:"resolve_hours"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// NameRequest payload for teams and categories.
type NameRequest struct {
	Name string `json:"name"`
}

// TeamActiveRequest payload.
type TeamActiveRequest struct {
	Active bool `json:"active"`
}

// TeamResponse representation.
type TeamResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// CategoryResponse representation.
type CategoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewPolicyResponse maps a domain policy.
func NewPolicyResponse(p *domain.SLAPolicy) PolicyResponse {
	return PolicyResponse{
		ID:                 p.ID,
		OrganizationID:     p.OrganizationID,
		Priority:           p.Priority,
		CategoryID:         p.CategoryID,
		FirstResponseHours: p.FirstResponseHours,
		ResolveHours:       p.ResolveHours,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}
