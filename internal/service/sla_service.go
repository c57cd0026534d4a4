package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/sla"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// SLAService answers read-only SLA questions: previews, per-ticket status and
// organization dashboards.
type SLAService struct {
	tickets  repository.TicketRepository
	policies *sla.PolicyResolver
	clock    clock.Clock
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	TicketRepo repository.TicketRepository
	Policies   *sla.PolicyResolver
	Clock      clock.Clock
}

// SLAPreview is the deadline set a new ticket would receive.
type SLAPreview struct {
	Policy           *domain.SLAPolicy
	FirstResponseDue *time.Time
	ResolveDue       *time.Time
}

// TicketSLAStatus pairs a ticket with its classifier output.
type TicketSLAStatus struct {
	Ticket *domain.Ticket
	Status sla.Status
	At     time.Time
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	c := deps.Clock
	if c == nil {
		c = clock.Real()
	}
	return &SLAService{tickets: deps.TicketRepo, policies: deps.Policies, clock: c}
}

// Preview resolves the policy for the inputs and returns the deadlines a
// ticket created now would get. Nothing is persisted.
func (s *SLAService) Preview(ctx context.Context, organizationID string, priority domain.TicketPriority, categoryName string) (*SLAPreview, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, util.NewValidationError("organization_id is required", map[string]any{"field": "organization_id"})
	}
	if !priority.Valid() {
		return nil, util.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	policy, err := s.policies.Resolve(ctx, organizationID, priority, categoryName)
	if err != nil {
		return nil, err
	}
	due := sla.ComputeDueDates(policy, s.clock.Now())
	return &SLAPreview{Policy: policy, FirstResponseDue: due.FirstResponseDue, ResolveDue: due.ResolveDue}, nil
}

// GetStatus classifies one ticket visible to principal.
func (s *SLAService) GetStatus(ctx context.Context, principal domain.Principal, ticketID string) (*TicketSLAStatus, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, ticketID)
	}
	if !canView(principal, ticket) {
		return nil, util.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	now := s.clock.Now()
	return &TicketSLAStatus{Ticket: ticket, Status: sla.Classify(ticket, now), At: now}, nil
}

// Dashboard counts breached and healthy open tickets for an organization.
func (s *SLAService) Dashboard(ctx context.Context, organizationID string) (sla.Summary, error) {
	tickets, err := s.tickets.ListOpenByOrganization(ctx, organizationID)
	if err != nil {
		return sla.Summary{}, err
	}
	return sla.Summarize(tickets, s.clock.Now()), nil
}
