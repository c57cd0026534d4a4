package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/dto"
	"github.com/spec-kit/sla-service/internal/service"
)

// NotificationsHandler serves the caller's in-app inbox.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notifications}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListForRecipient(c.UserContext(), principal.SubjectID, parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	out := make([]dto.NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, dto.NotificationResponse{
			ID:        n.ID,
			Channel:   string(n.Channel),
			Subject:   n.Subject,
			Body:      n.Body,
			Data:      n.Data,
			Status:    string(n.Status),
			CreatedAt: n.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}
