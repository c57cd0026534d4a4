package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// PolicyService administers SLA policies.
type PolicyService struct {
	policies   repository.PolicyRepository
	categories repository.CategoryRepository
	logger     *zap.Logger
}

// PolicyDependencies bundles collaborators for the policy service.
type PolicyDependencies struct {
	PolicyRepo   repository.PolicyRepository
	CategoryRepo repository.CategoryRepository
	Logger       *zap.Logger
}

// PolicyInput is the writable part of a policy.
type PolicyInput struct {
	Priority           domain.TicketPriority
	CategoryID         *string
	FirstResponseHours *int
	ResolveHours       *int
}

// NewPolicyService constructs the service.
func NewPolicyService(deps PolicyDependencies) *PolicyService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{policies: deps.PolicyRepo, categories: deps.CategoryRepo, logger: logger}
}

// List returns the organization's policies.
func (s *PolicyService) List(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error) {
	return s.policies.ListByOrganization(ctx, organizationID)
}

// Create stores a new policy. A second policy for the same organization,
// priority and category is a conflict.
func (s *PolicyService) Create(ctx context.Context, organizationID string, input PolicyInput) (*domain.SLAPolicy, error) {
	if err := s.validate(ctx, organizationID, input); err != nil {
		return nil, err
	}
	policy := &domain.SLAPolicy{
		OrganizationID:     organizationID,
		Priority:           input.Priority,
		CategoryID:         input.CategoryID,
		FirstResponseHours: input.FirstResponseHours,
		ResolveHours:       input.ResolveHours,
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, conflictOr(err)
	}
	s.logger.Info("sla policy created",
		zap.String("policy_id", policy.ID),
		zap.String("organization_id", organizationID),
		zap.String("priority", string(policy.Priority)),
	)
	return policy, nil
}

// Update replaces the writable fields of a policy.
func (s *PolicyService) Update(ctx context.Context, organizationID, id string, input PolicyInput) (*domain.SLAPolicy, error) {
	policy, err := s.get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, organizationID, input); err != nil {
		return nil, err
	}
	policy.Priority = input.Priority
	policy.CategoryID = input.CategoryID
	policy.FirstResponseHours = input.FirstResponseHours
	policy.ResolveHours = input.ResolveHours
	if err := s.policies.Update(ctx, policy); err != nil {
		return nil, conflictOr(err)
	}
	return policy, nil
}

// Delete removes a policy. Deadlines already committed to tickets are kept.
func (s *PolicyService) Delete(ctx context.Context, organizationID, id string) error {
	if _, err := s.get(ctx, organizationID, id); err != nil {
		return err
	}
	if err := s.policies.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("sla policy", map[string]any{"id": id})
		}
		return err
	}
	return nil
}

func (s *PolicyService) get(ctx context.Context, organizationID, id string) (*domain.SLAPolicy, error) {
	policy, err := s.policies.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && policy.OrganizationID != organizationID) {
		return nil, util.NewNotFound("sla policy", map[string]any{"id": id})
	}
	return policy, err
}

func (s *PolicyService) validate(ctx context.Context, organizationID string, input PolicyInput) error {
	if strings.TrimSpace(organizationID) == "" {
		return util.NewValidationError("organization is required", nil)
	}
	if !input.Priority.Valid() {
		return util.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}
	if input.FirstResponseHours == nil && input.ResolveHours == nil {
		return util.NewValidationError("at least one of first_response_hours or resolve_hours is required", nil)
	}
	for field, hours := range map[string]*int{
		"first_response_hours": input.FirstResponseHours,
		"resolve_hours":        input.ResolveHours,
	} {
		if hours != nil && *hours <= 0 {
			return util.NewValidationError("hours must be positive", map[string]any{"field": field})
		}
	}
	if input.CategoryID == nil {
		return nil
	}
	category, err := s.categories.GetByID(ctx, *input.CategoryID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && category.OrganizationID != organizationID) {
		return util.NewValidationError("unknown category", map[string]any{"category_id": *input.CategoryID})
	}
	return err
}

func conflictOr(err error) error {
	if util.IsUniqueViolation(err) {
		return util.NewConflict("a policy for this priority and category already exists", nil)
	}
	return err
}
