package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/auth"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/service"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// TicketsHandler manages end-user ticket endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
	sla     *service.SLAService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, slaService *service.SLAService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, sla: slaService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), *principal, service.TicketCreateInput{
		Title:      req.Title,
		Priority:   req.Priority,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), *principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), *principal, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetThread GET /tickets/:id/thread.
func (h *TicketsHandler) GetThread(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	thread, err := h.tickets.GetThread(c.UserContext(), *principal, c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.ThreadResponse{
		Messages: make([]dto.TicketMessageResponse, 0, len(thread.Messages)),
		Audit:    make([]dto.AuditEventResponse, 0, len(thread.Audit)),
	}
	for i := range thread.Messages {
		resp.Messages = append(resp.Messages, dto.NewTicketMessageResponse(&thread.Messages[i]))
	}
	for _, e := range thread.Audit {
		resp.Audit = append(resp.Audit, dto.AuditEventResponse{
			ID:        e.ID,
			ActorID:   e.ActorID,
			Action:    string(e.Action),
			Data:      e.Data,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetSLA GET /tickets/:id/sla.
func (h *TicketsHandler) GetSLA(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	st, err := h.sla.GetStatus(c.UserContext(), *principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaStatusResponse(st)})
}

func slaStatusResponse(st *service.TicketSLAStatus) dto.SLAStatusResponse {
	return dto.SLAStatusResponse{
		TicketID:         st.Ticket.ID,
		Status:           st.Ticket.Status,
		State:            string(st.Status.State),
		Label:            st.Status.Label,
		Milestone:        string(st.Status.Milestone),
		NextDue:          st.Status.NextDue,
		RemainingSeconds: int64(st.Status.Remaining.Seconds()),
		Paused:           st.Ticket.IsWaiting(),
		FirstResponseDue: st.Ticket.FirstResponseDue,
		ResolveDue:       st.Ticket.ResolveDue,
		EvaluatedAt:      st.At,
	}
}

func requirePrincipal(c *fiber.Ctx) (*domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, util.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListQuery {
	q := service.TicketListQuery{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			q.Statuses = append(q.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			q.Priorities = append(q.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if teamID := c.Query("team_id"); teamID != "" {
		q.TeamID = &teamID
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if page < 1 {
		page = 1
	}
	q.Offset = (page - 1) * pageSize
	q.Limit = pageSize
	return q
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}
