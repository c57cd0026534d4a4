package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
)

// ReminderHandler notifies a recipient ahead of an SLA deadline.
type ReminderHandler struct {
	tickets  TicketReader
	notifier Notifier
	logger   *zap.Logger
}

// ReminderDependencies bundles collaborators for the reminder handler.
type ReminderDependencies struct {
	// Tickets is optional. When set, reminders for finished tickets or moved deadlines are dropped.
	Tickets  TicketReader
	Notifier Notifier
	Logger   *zap.Logger
}

// NewReminderHandler constructs the handler.
func NewReminderHandler(deps ReminderDependencies) *ReminderHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderHandler{tickets: deps.Tickets, notifier: deps.Notifier, logger: logger}
}

// ReminderKey is the notification idempotency key for a reminder.
func ReminderKey(ticketID string, reminderFor domain.JobType) string {
	return fmt.Sprintf("reminder:%s:%s", ticketID, reminderFor)
}

// Handle sends the reminder carried by job.
func (h *ReminderHandler) Handle(ctx context.Context, job domain.Job) (Result, error) {
	if job.Type != domain.JobTypeReminder {
		return skipped(ReasonNotReminder), nil
	}
	if job.Reminder == nil || job.Reminder.RecipientID == "" {
		return skipped(ReasonNoRecipient), nil
	}
	detail := job.Reminder

	title := ""
	if h.tickets != nil {
		ticket, err := loadTicket(ctx, h.tickets, job.TicketID)
		if err != nil {
			return Result{}, err
		}
		if ticket == nil {
			return skipped(ReasonTicketNotFound), nil
		}
		if ticket.IsTerminal() {
			return skipped(ReasonTicketTerminal), nil
		}
		if detail.ReminderFor == domain.JobTypeFirstResponse && ticket.FirstResponseAt != nil {
			return skipped(ReasonFirstResponseRecorded), nil
		}
		if active := activeDeadline(ticket, detail.ReminderFor); active != nil {
			if due, err := domain.ParseDue(job.DueAt); err == nil && !domain.NormalizeDeadline(*active).Equal(due) {
				return skipped(ReasonDueRescheduled), nil
			}
		}
		title = ticket.Title
	}

	key := ReminderKey(job.TicketID, detail.ReminderFor)
	body := fmt.Sprintf("The %s deadline is due at %s.", milestoneName(detail.ReminderFor), job.DueAt)
	if title != "" {
		body = fmt.Sprintf("The %s deadline for ticket %q is due at %s.", milestoneName(detail.ReminderFor), title, job.DueAt)
	}
	notification, err := h.notifier.Send(ctx, domain.Notification{
		Channel:     domain.ChannelInApp,
		RecipientID: detail.RecipientID,
		Subject:     fmt.Sprintf("SLA reminder: %s", milestoneName(detail.ReminderFor)),
		Body:        body,
		Data: map[string]any{
			"ticketId":    job.TicketID,
			"reminderFor": string(detail.ReminderFor),
			"dueAt":       job.DueAt,
			"reason":      detail.Reason,
		},
		IdempotencyKey: &key,
	})
	if err != nil {
		return Result{}, fmt.Errorf("send reminder: %w", err)
	}

	h.logger.Info("sla reminder sent",
		zap.String("ticket_id", job.TicketID),
		zap.String("reminder_for", string(detail.ReminderFor)),
		zap.String("notification_id", notification.ID),
	)
	return Result{NotificationID: notification.ID}, nil
}
