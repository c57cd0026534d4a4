package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/service"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// AdminHandler exposes policy, team and category administration.
type AdminHandler struct {
	policies *service.PolicyService
	org      *service.OrgService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(policies *service.PolicyService, org *service.OrgService) *AdminHandler {
	return &AdminHandler{policies: policies, org: org}
}

// ListPolicies GET /admin/sla-policies.
func (h *AdminHandler) ListPolicies(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	policies, err := h.policies.List(c.UserContext(), principal.OrganizationID)
	if err != nil {
		return err
	}
	items := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, dto.NewPolicyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreatePolicy POST /admin/sla-policies.
func (h *AdminHandler) CreatePolicy(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	input, err := parsePolicy(c)
	if err != nil {
		return err
	}
	policy, err := h.policies.Create(c.UserContext(), principal.OrganizationID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// UpdatePolicy PUT /admin/sla-policies/:id.
func (h *AdminHandler) UpdatePolicy(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	input, err := parsePolicy(c)
	if err != nil {
		return err
	}
	policy, err := h.policies.Update(c.UserContext(), principal.OrganizationID, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// DeletePolicy DELETE /admin/sla-policies/:id.
func (h *AdminHandler) DeletePolicy(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.policies.Delete(c.UserContext(), principal.OrganizationID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListTeams GET /admin/teams.
func (h *AdminHandler) ListTeams(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	teams, err := h.org.ListTeams(c.UserContext(), *principal)
	if err != nil {
		return err
	}
	items := make([]dto.TeamResponse, 0, len(teams))
	for _, t := range teams {
		items = append(items, dto.TeamResponse{ID: t.ID, Name: t.Name, IsActive: t.IsActive})
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateTeam POST /admin/teams.
func (h *AdminHandler) CreateTeam(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.NameRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	team, err := h.org.CreateTeam(c.UserContext(), *principal, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TeamResponse{ID: team.ID, Name: team.Name, IsActive: team.IsActive}})
}

// SetTeamActive PUT /admin/teams/:id/active.
func (h *AdminHandler) SetTeamActive(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TeamActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	team, err := h.org.SetTeamActive(c.UserContext(), *principal, c.Params("id"), req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TeamResponse{ID: team.ID, Name: team.Name, IsActive: team.IsActive}})
}

// ListCategories GET /admin/categories.
func (h *AdminHandler) ListCategories(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	categories, err := h.org.ListCategories(c.UserContext(), *principal)
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for _, cat := range categories {
		items = append(items, dto.CategoryResponse{ID: cat.ID, Name: cat.Name})
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateCategory POST /admin/categories.
func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.NameRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	category, err := h.org.CreateCategory(c.UserContext(), *principal, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CategoryResponse{ID: category.ID, Name: category.Name}})
}

func parsePolicy(c *fiber.Ctx) (service.PolicyInput, error) {
	var req dto.PolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return service.PolicyInput{}, util.NewValidationError("invalid payload", nil)
	}
	return service.PolicyInput{
		Priority:           req.Priority,
		CategoryID:         req.CategoryID,
		FirstResponseHours: req.FirstResponseHours,
		ResolveHours:       req.ResolveHours,
	}, nil
}
