package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/service"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// StaffTicketsHandler exposes staff ticket operations.
type StaffTicketsHandler struct {
	tickets    *service.TicketService
	escalation *service.EscalationService
	assignment *service.AssignmentService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(tickets *service.TicketService, escalation *service.EscalationService, assignment *service.AssignmentService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: tickets, escalation: escalation, assignment: assignment}
}

// ChangeStatus POST /staff/tickets/:id/status.
func (h *StaffTicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	result, err := h.tickets.ChangeStatus(c.UserContext(), *principal, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	scheduled := 0
	for _, sub := range result.Scheduled {
		if sub.Err == nil && sub.Enqueued {
			scheduled++
		}
	}
	return c.JSON(fiber.Map{"data": dto.ChangeStatusResponse{
		Ticket:         dto.NewTicketResponse(result.Ticket),
		OldStatus:      result.OldStatus,
		DeadlinesMoved: result.DeadlinesMoved,
		JobsScheduled:  scheduled,
	}})
}

// AddReply POST /staff/tickets/:id/replies.
func (h *StaffTicketsHandler) AddReply(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	msg, ticket, err := h.tickets.AddStaffReply(c.UserContext(), *principal, c.Params("id"), req.Body, req.MessageType)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"message": dto.NewTicketMessageResponse(msg),
		"ticket":  dto.NewTicketResponse(ticket),
	}})
}

// Escalate POST /staff/tickets/:id/escalate.
func (h *StaffTicketsHandler) Escalate(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return util.NewValidationError("invalid payload", nil)
		}
	}
	result, err := h.escalation.Escalate(c.UserContext(), *principal, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EscalationResponse{
		Escalated:      result.Escalated,
		Reason:         result.Reason,
		Level:          result.Level,
		TeamID:         result.TeamID,
		PreviousTeamID: result.PreviousTeamID,
		NotificationID: result.NotificationID,
	}})
}

// Assign POST /staff/tickets/:id/assign.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.assignment.Assign(c.UserContext(), *principal, c.Params("id"), service.AssignInput{
		AssigneeID: req.AssigneeID,
		TeamID:     req.TeamID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// SelfAssign POST /staff/tickets/:id/self-assign.
func (h *StaffTicketsHandler) SelfAssign(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.assignment.SelfAssign(c.UserContext(), *principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
