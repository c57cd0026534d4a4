package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// OrgService administers the organization data SLA resolution reads:
// escalation teams and ticket categories.
type OrgService struct {
	teams      repository.TeamRepository
	categories repository.CategoryRepository
}

// OrgDependencies bundles repositories for the org service.
type OrgDependencies struct {
	TeamRepo     repository.TeamRepository
	CategoryRepo repository.CategoryRepository
}

// NewOrgService creates the service.
func NewOrgService(deps OrgDependencies) *OrgService {
	return &OrgService{teams: deps.TeamRepo, categories: deps.CategoryRepo}
}

func requireAdmin(actor domain.Principal) error {
	if !actor.HasRole(domain.StaffRoleAdmin) {
		return util.NewForbidden("admin role required")
	}
	return nil
}

// CreateTeam creates an active team.
func (s *OrgService) CreateTeam(ctx context.Context, actor domain.Principal, name string) (*domain.Team, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	team := &domain.Team{
		OrganizationID: actor.OrganizationID,
		Name:           name,
		IsActive:       true,
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, util.MapError(err)
	}
	return team, nil
}

// ListTeams lists the organization's teams, active ones first.
func (s *OrgService) ListTeams(ctx context.Context, actor domain.Principal) ([]domain.Team, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.teams.ListByOrganization(ctx, actor.OrganizationID)
}

// SetTeamActive toggles a team. Escalation skips inactive teams.
func (s *OrgService) SetTeamActive(ctx context.Context, actor domain.Principal, id string, active bool) (*domain.Team, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	team, err := s.teams.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && team.OrganizationID != actor.OrganizationID) {
		return nil, util.NewNotFound("team", map[string]any{"team_id": id})
	}
	if err != nil {
		return nil, err
	}
	team.IsActive = active
	if err := s.teams.Update(ctx, team); err != nil {
		return nil, util.MapError(err)
	}
	return team, nil
}

// CreateCategory adds a category. Names are unique per organization
// regardless of case.
func (s *OrgService) CreateCategory(ctx context.Context, actor domain.Principal, name string) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	category := &domain.Category{OrganizationID: actor.OrganizationID, Name: name}
	if err := s.categories.Create(ctx, category); err != nil {
		if util.IsUniqueViolation(err) {
			return nil, util.NewConflict("category already exists", map[string]any{"name": name})
		}
		return nil, err
	}
	return category, nil
}

// ListCategories lists the organization's categories.
func (s *OrgService) ListCategories(ctx context.Context, actor domain.Principal) ([]domain.Category, error) {
	if !actor.IsStaff() {
		return nil, util.NewForbidden("staff required")
	}
	return s.categories.ListByOrganization(ctx, actor.OrganizationID)
}
