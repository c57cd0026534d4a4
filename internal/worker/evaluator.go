// Package worker consumes fired SLA jobs. Every job is re-checked against the
// ticket's current state, so redelivered and superseded jobs end as skips.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/dedup"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
)

// Skip reasons reported by the handlers.
const (
	ReasonTicketNotFound        = "ticket not found"
	ReasonInvalidDueDate        = "invalid due date"
	ReasonTicketTerminal        = "ticket closed/resolved"
	ReasonWaitingOnRequester    = "waiting on requester"
	ReasonNoActiveDueDate       = "no active due date"
	ReasonDueRescheduled        = "due rescheduled"
	ReasonDueNotReached         = "due date not reached"
	ReasonFirstResponseRecorded = "first response already recorded"
	ReasonAlreadyResolved       = "already resolved"
	ReasonBreachAlreadyRecorded = "breach already recorded"
	ReasonNotReminder           = "not a reminder job"
	ReasonNoRecipient           = "no recipient"
	ReasonUnsupportedJobType    = "unsupported job type"
)

// Result is the outcome of handling one job. A skip is a normal outcome, not an error.
type Result struct {
	Skipped        bool
	Reason         string
	AuditID        string
	NotificationID string
}

func skipped(reason string) Result {
	return Result{Skipped: true, Reason: reason}
}

// TicketReader loads current ticket state.
type TicketReader interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
}

// AuditSink records audit events.
type AuditSink interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
}

// Notifier delivers notifications, honoring idempotency keys.
type Notifier interface {
	Send(ctx context.Context, msg domain.Notification) (*domain.Notification, error)
}

// BreachEvaluator decides whether a fired deadline job is a genuine breach.
type BreachEvaluator struct {
	tickets    TicketReader
	audit      AuditSink
	notifier   Notifier
	claims     dedup.Store
	claimTTL   time.Duration
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// EvaluatorDependencies bundles collaborators for the evaluator.
type EvaluatorDependencies struct {
	Tickets  TicketReader
	Audit    AuditSink
	Notifier Notifier
	// Claims records breaches already handled so redelivery cannot record a second audit event.
	Claims   dedup.Store
	ClaimTTL time.Duration
	// Dispatcher receives an sla_breached event per recorded breach; optional.
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewBreachEvaluator constructs the evaluator.
func NewBreachEvaluator(deps EvaluatorDependencies) *BreachEvaluator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.ClaimTTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &BreachEvaluator{
		tickets:    deps.Tickets,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		claims:     deps.Claims,
		claimTTL:   ttl,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// Handle evaluates job against the ticket as it is now. It returns an error
// only when a collaborator fails, in which case the job should be retried.
func (e *BreachEvaluator) Handle(ctx context.Context, job domain.Job, now time.Time) (Result, error) {
	ticket, err := loadTicket(ctx, e.tickets, job.TicketID)
	if err != nil {
		return Result{}, err
	}
	if ticket == nil {
		return skipped(ReasonTicketNotFound), nil
	}

	due, err := domain.ParseDue(job.DueAt)
	if err != nil {
		return skipped(ReasonInvalidDueDate), nil
	}
	if ticket.IsTerminal() {
		return skipped(ReasonTicketTerminal), nil
	}
	if ticket.IsWaiting() {
		return skipped(ReasonWaitingOnRequester), nil
	}

	active := activeDeadline(ticket, job.Type)
	if active == nil {
		return skipped(ReasonNoActiveDueDate), nil
	}
	if !domain.NormalizeDeadline(*active).Equal(due) {
		return skipped(ReasonDueRescheduled), nil
	}
	if due.After(now) {
		return skipped(ReasonDueNotReached), nil
	}

	switch job.Type {
	case domain.JobTypeFirstResponse:
		if ticket.FirstResponseAt != nil {
			return skipped(ReasonFirstResponseRecorded), nil
		}
	case domain.JobTypeResolve:
		if ticket.ResolvedAt != nil {
			return skipped(ReasonAlreadyResolved), nil
		}
	}

	return e.recordBreach(ctx, ticket, job, due, now)
}

// recordBreach writes the audit event, notifies and publishes sla_breached.
// A redelivery finding the claim held resumes the breach if its notification
// had not gone out yet; otherwise the breach is already complete.
func (e *BreachEvaluator) recordBreach(ctx context.Context, ticket *domain.Ticket, job domain.Job, due, now time.Time) (Result, error) {
	dueISO := domain.FormatDue(due)
	auditID := uuid.NewString()
	duplicate := false

	if e.claims != nil {
		claimed, holder, err := e.claims.Claim(ctx, breachKey(ticket.ID, job.Type, dueISO), auditID, e.claimTTL)
		if err != nil {
			return Result{}, fmt.Errorf("claim breach: %w", err)
		}
		if !claimed {
			duplicate = true
			auditID = holder
		}
	}

	if !duplicate {
		event := &domain.AuditEvent{
			ID:       auditID,
			TicketID: ticket.ID,
			ActorID:  ticket.ActorID(),
			Action:   domain.AuditActionSLABreached,
			Data: map[string]any{
				"jobType":  string(job.Type),
				"dueAt":    dueISO,
				"priority": string(ticket.Priority),
			},
		}
		if err := e.audit.Create(ctx, event); err != nil {
			if e.claims != nil {
				_ = e.claims.Release(ctx, breachKey(ticket.ID, job.Type, dueISO))
			}
			return Result{}, fmt.Errorf("record breach audit: %w", err)
		}
		auditID = event.ID
	}

	key := breachKey(ticket.ID, job.Type, dueISO)
	notification, err := e.notifier.Send(ctx, domain.Notification{
		Channel:     domain.ChannelInApp,
		RecipientID: ticket.RequesterID,
		Subject:     fmt.Sprintf("SLA breached: %s", milestoneName(job.Type)),
		Body: fmt.Sprintf("The %s deadline for ticket %q passed at %s.",
			milestoneName(job.Type), ticket.Title, dueISO),
		Data: map[string]any{
			"ticketId": ticket.ID,
			"jobType":  string(job.Type),
			"dueAt":    dueISO,
			"auditId":  auditID,
		},
		IdempotencyKey: &key,
	})
	if err != nil {
		return Result{}, fmt.Errorf("send breach notification: %w", err)
	}

	if duplicate && notification.Status == domain.NotificationDeduped {
		return Result{Skipped: true, Reason: ReasonBreachAlreadyRecorded, AuditID: auditID, NotificationID: notification.ID}, nil
	}

	e.metrics.RecordBreach(string(job.Type), string(ticket.Priority))
	e.logger.Info("sla breach recorded",
		zap.String("ticket_id", ticket.ID),
		zap.String("job_type", string(job.Type)),
		zap.String("due_at", dueISO),
		zap.String("audit_id", auditID),
		zap.Bool("resumed", duplicate),
	)
	e.publishBreach(ctx, ticket, job, dueISO, auditID, now)

	return Result{AuditID: auditID, NotificationID: notification.ID}, nil
}

func (e *BreachEvaluator) publishBreach(ctx context.Context, ticket *domain.Ticket, job domain.Job, dueISO, auditID string, now time.Time) {
	if e.dispatcher == nil {
		return
	}
	err := e.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSLABreached,
		TicketID:  ticket.ID,
		Actor:     events.Actor{Type: domain.SubjectTypeSystem},
		Timestamp: now.UTC(),
		Payload: events.SLABreachedPayload{
			OrganizationID: ticket.OrganizationID,
			JobType:        job.Type,
			DueAt:          dueISO,
			Priority:       ticket.Priority,
			CategoryID:     ticket.CategoryID,
			AuditID:        auditID,
		},
	})
	if err != nil {
		e.logger.Warn("sla breach event handlers failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func loadTicket(ctx context.Context, tickets TicketReader, id string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", id, err)
	}
	return ticket, nil
}

func activeDeadline(t *domain.Ticket, jobType domain.JobType) *time.Time {
	switch jobType {
	case domain.JobTypeFirstResponse:
		return t.FirstResponseDue
	case domain.JobTypeResolve:
		return t.ResolveDue
	}
	return nil
}

func breachKey(ticketID string, jobType domain.JobType, due string) string {
	return fmt.Sprintf("breach:%s:%s:%s", ticketID, jobType, due)
}

func milestoneName(t domain.JobType) string {
	if t == domain.JobTypeFirstResponse {
		return "first response"
	}
	return "resolution"
}
