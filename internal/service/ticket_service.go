package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/scheduler"
	"github.com/spec-kit/sla-service/internal/sla"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// JobScheduler submits the deferred SLA jobs of a ticket. Failures are
// reported per submission and never returned.
type JobScheduler interface {
	ScheduleAll(ctx context.Context, t *domain.Ticket) []scheduler.Submission
}

// TicketService coordinates ticket workflows that move the SLA clock.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	categories repository.CategoryRepository
	audit      repository.AuditRepository
	tx         repository.Transactor
	policies   *sla.PolicyResolver
	scheduler  JobScheduler
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.TicketMessageRepository
	CategoryRepo repository.CategoryRepository
	AuditRepo    repository.AuditRepository
	Transactor   repository.Transactor
	Policies     *sla.PolicyResolver
	Scheduler    JobScheduler
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title      string
	Priority   domain.TicketPriority
	CategoryID *string
}

// TicketStatusResult is the outcome of a status change.
type TicketStatusResult struct {
	Ticket         *domain.Ticket
	OldStatus      domain.TicketStatus
	DeadlinesMoved bool
	Scheduled      []scheduler.Submission
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	c := deps.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tx := deps.Transactor
	if tx == nil {
		tx = repository.NoopTransactor{}
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		categories: deps.CategoryRepo,
		audit:      deps.AuditRepo,
		tx:         tx,
		policies:   deps.Policies,
		scheduler:  deps.Scheduler,
		dispatcher: deps.Dispatcher,
		clock:      c,
		logger:     logger,
	}
}

// CreateTicket opens a ticket for requester, commits its SLA deadlines and
// schedules the breach and reminder jobs. Scheduling is best effort.
func (s *TicketService) CreateTicket(ctx context.Context, requester domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, util.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, util.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	category, err := s.lookupCategory(ctx, requester.OrganizationID, input.CategoryID)
	if err != nil {
		return nil, err
	}
	categoryName := ""
	var categoryID *string
	if category != nil {
		categoryName = category.Name
		categoryID = &category.ID
	}

	policy, err := s.policies.Resolve(ctx, requester.OrganizationID, priority, categoryName)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	due := sla.ComputeDueDates(policy, now)

	ticket := &domain.Ticket{
		OrganizationID:   requester.OrganizationID,
		RequesterID:      requester.SubjectID,
		CategoryID:       categoryID,
		Title:            title,
		Status:           domain.TicketStatusOpen,
		Priority:         priority,
		FirstResponseDue: due.FirstResponseDue,
		ResolveDue:       due.ResolveDue,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.schedule(ctx, ticket)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(requester),
		Payload: events.TicketCreatedPayload{
			OrganizationID:   ticket.OrganizationID,
			CategoryID:       ticket.CategoryID,
			Priority:         ticket.Priority,
			Title:            ticket.Title,
			FirstResponseDue: ticket.FirstResponseDue,
			ResolveDue:       ticket.ResolveDue,
		},
	})
	return ticket, nil
}

// GetTicket loads a ticket visible to principal. Requesters see only their
// own tickets and staff only their organization's.
func (s *TicketService) GetTicket(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, ticketID)
	}
	if !canView(principal, ticket) {
		return nil, util.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return ticket, nil
}

// TicketListQuery narrows a ticket listing.
type TicketListQuery struct {
	TeamID     *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// ListTickets returns the tickets principal may see, newest first. Requesters
// are limited to their own tickets.
func (s *TicketService) ListTickets(ctx context.Context, principal domain.Principal, q TicketListQuery) ([]domain.Ticket, error) {
	for _, st := range q.Statuses {
		if !st.Valid() {
			return nil, util.NewValidationError("invalid status", map[string]any{"status": st})
		}
	}
	for _, pr := range q.Priorities {
		if !pr.Valid() {
			return nil, util.NewValidationError("invalid priority", map[string]any{"priority": pr})
		}
	}
	orgID := principal.OrganizationID
	filter := repository.TicketFilter{
		OrganizationID: &orgID,
		TeamID:         q.TeamID,
		Statuses:       q.Statuses,
		Priorities:     q.Priorities,
		Limit:          q.Limit,
		Offset:         q.Offset,
	}
	if !principal.IsStaff() {
		requester := principal.SubjectID
		filter.RequesterID = &requester
	}
	return s.tickets.ListWithFilter(ctx, filter)
}

// TicketThread is a ticket's conversation plus, for staff, its audit trail.
type TicketThread struct {
	Messages []domain.TicketMessage
	Audit    []domain.AuditEvent
}

// GetThread loads the messages and audit events of a ticket. Requesters do
// not see internal notes or audit events.
func (s *TicketService) GetThread(ctx context.Context, principal domain.Principal, ticketID string) (*TicketThread, error) {
	ticket, err := s.GetTicket(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	thread := &TicketThread{Messages: make([]domain.TicketMessage, 0, len(msgs)), Audit: []domain.AuditEvent{}}
	for _, m := range msgs {
		if m.VisibleTo(principal) {
			thread.Messages = append(thread.Messages, m)
		}
	}
	if principal.IsStaff() {
		audit, err := s.audit.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		thread.Audit = audit
	}
	return thread, nil
}

// ChangeStatus moves a ticket along the lifecycle graph. The row is locked
// while the pause ledger is updated; moved deadlines are rescheduled after
// commit.
func (s *TicketService) ChangeStatus(ctx context.Context, staff domain.Principal, ticketID string, target domain.TicketStatus) (*TicketStatusResult, error) {
	if !target.Valid() {
		return nil, util.NewValidationError("invalid status", map[string]any{"status": target})
	}
	result := &TicketStatusResult{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return notFoundOr(err, ticketID)
		}
		if ticket.OrganizationID != staff.OrganizationID {
			return util.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		if !isValidTransition(ticket.Status, target) {
			return util.NewConflict("invalid status transition", map[string]any{
				"from": ticket.Status,
				"to":   target,
			})
		}

		now := s.clock.Now()
		update := sla.DeriveTransitionUpdates(ticket, target, now)
		update.Apply(ticket)
		result.OldStatus = ticket.Status
		result.DeadlinesMoved = update.DeadlinesShifted()

		ticket.Status = target
		switch target {
		case domain.TicketStatusResolved:
			ticket.ResolvedAt = &now
		case domain.TicketStatusClosed:
			ticket.ClosedAt = &now
			if ticket.ResolvedAt == nil {
				ticket.ResolvedAt = &now
			}
		default:
			ticket.ResolvedAt = nil
			ticket.ClosedAt = nil
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		result.Ticket = ticket
		return s.audit.Create(ctx, &domain.AuditEvent{
			TicketID: ticket.ID,
			ActorID:  staff.SubjectID,
			Action:   domain.AuditActionStatusChanged,
			Data: map[string]any{
				"from":                 string(result.OldStatus),
				"to":                   string(target),
				"deadlinesMoved":       result.DeadlinesMoved,
				"slaPauseTotalSeconds": ticket.SLAPauseTotalSeconds,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if result.DeadlinesMoved && !result.Ticket.IsTerminal() {
		result.Scheduled = s.schedule(ctx, result.Ticket)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: result.Ticket.ID,
		Actor:    actorOf(staff),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:      result.OldStatus,
			NewStatus:      target,
			DeadlinesMoved: result.DeadlinesMoved,
			PauseTotalSec:  result.Ticket.SLAPauseTotalSeconds,
		},
	})
	return result, nil
}

// AddStaffReply stores a staff message. The first public reply records the
// ticket's first response; later replies never overwrite it.
func (s *TicketService) AddStaffReply(ctx context.Context, staff domain.Principal, ticketID, body string, messageType domain.TicketMessageType) (*domain.TicketMessage, *domain.Ticket, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil, util.NewValidationError("body is required", map[string]any{"field": "body"})
	}
	if messageType == "" {
		messageType = domain.MessageTypePublicReply
	}
	if !messageType.Valid() {
		return nil, nil, util.NewValidationError("invalid message type", map[string]any{"message_type": messageType})
	}

	var (
		msg           *domain.TicketMessage
		ticket        *domain.Ticket
		firstResponse bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return notFoundOr(err, ticketID)
		}
		if ticket.OrganizationID != staff.OrganizationID {
			return util.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		msg = &domain.TicketMessage{
			TicketID:    ticket.ID,
			AuthorType:  domain.AuthorTypeStaff,
			AuthorID:    staff.SubjectID,
			MessageType: messageType,
			Body:        body,
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			return err
		}
		if !msg.IsFirstResponse() || ticket.FirstResponseAt != nil {
			return nil
		}
		now := s.clock.Now()
		ticket.FirstResponseAt = &now
		firstResponse = true
		return s.tickets.Update(ctx, ticket)
	})
	if err != nil {
		return nil, nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    actorOf(staff),
		Payload: events.TicketMessageAddedPayload{
			MessageID:     msg.ID,
			MessageType:   msg.MessageType,
			AuthorType:    msg.AuthorType,
			FirstResponse: firstResponse,
			BodyPreview:   stringPreview(msg.Body, 120),
		},
	})
	return msg, ticket, nil
}

func (s *TicketService) lookupCategory(ctx context.Context, organizationID string, categoryID *string) (*domain.Category, error) {
	if categoryID == nil || strings.TrimSpace(*categoryID) == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(*categoryID); err != nil {
		return nil, nil
	}
	category, err := s.categories.GetByID(ctx, *categoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if category.OrganizationID != organizationID {
		return nil, nil
	}
	return category, nil
}

func (s *TicketService) schedule(ctx context.Context, ticket *domain.Ticket) []scheduler.Submission {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.ScheduleAll(ctx, ticket)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, s.clock, event)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, c clock.Clock, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.Now()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}

func canView(p domain.Principal, t *domain.Ticket) bool {
	if p.OrganizationID != t.OrganizationID {
		return false
	}
	return p.IsStaff() || p.SubjectID == t.RequesterID
}

func notFoundOr(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return util.NewNotFound("ticket", map[string]any{"id": id})
	}
	return err
}

func actorOf(p domain.Principal) events.Actor {
	return events.Actor{Type: p.Subject, ID: p.SubjectID}
}

func systemActor() events.Actor {
	return events.Actor{Type: domain.SubjectTypeSystem}
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:               {domain.TicketStatusInProgress, domain.TicketStatusWaitingOnRequester, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress:         {domain.TicketStatusWaitingOnRequester, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusWaitingOnRequester: {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:           {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:             {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
