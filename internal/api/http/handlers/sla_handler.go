package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/service"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// SLAHandler serves deadline previews and the health dashboard.
type SLAHandler struct {
	service *service.SLAService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(slaService *service.SLAService) *SLAHandler {
	return &SLAHandler{service: slaService}
}

// Preview POST /sla/preview.
func (h *SLAHandler) Preview(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	orgID, err := scopedOrganization(principal.OrganizationID, req.OrganizationID)
	if err != nil {
		return err
	}
	preview, err := h.service.Preview(c.UserContext(), orgID, req.Priority, req.Category)
	if err != nil {
		return err
	}
	resp := dto.PreviewResponse{
		FirstResponseDue: preview.FirstResponseDue,
		ResolveDue:       preview.ResolveDue,
	}
	if preview.Policy != nil {
		resp.PolicyID = &preview.Policy.ID
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Dashboard GET /sla/dashboard.
func (h *SLAHandler) Dashboard(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	orgID, err := scopedOrganization(principal.OrganizationID, c.Query("organization_id"))
	if err != nil {
		return err
	}
	summary, err := h.service.Dashboard(c.UserContext(), orgID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DashboardResponse{
		OrganizationID: orgID,
		Open:           summary.Open,
		Breached:       summary.Breached,
		Healthy:        summary.Healthy,
	}})
}

// scopedOrganization defaults to the caller's organization and rejects any other.
func scopedOrganization(own, requested string) (string, error) {
	if requested == "" || requested == own {
		return own, nil
	}
	return "", util.NewForbidden("organization outside caller scope")
}
