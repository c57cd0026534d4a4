package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/sla"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// Notifier delivers a notification, honoring its idempotency key.
type Notifier interface {
	Send(ctx context.Context, msg domain.Notification) (*domain.Notification, error)
}

// Escalation outcomes reported when no level was applied.
const (
	EscalationChainExhausted = "escalation chain exhausted"
	EscalationTicketTerminal = "ticket already resolved or closed"
)

// EscalationResult is the outcome of one escalation attempt.
type EscalationResult struct {
	Escalated      bool
	Reason         string
	Level          int
	TeamID         string
	PreviousTeamID *string
	NotificationID string
}

// EscalationService moves tickets up their escalation chain.
type EscalationService struct {
	tickets    repository.TicketRepository
	teams      repository.TeamRepository
	audit      repository.AuditRepository
	tx         repository.Transactor
	resolver   *sla.EscalationResolver
	notifier   Notifier
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *observability.Metrics
	onBreach   bool
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	TicketRepo repository.TicketRepository
	TeamRepo   repository.TeamRepository
	AuditRepo  repository.AuditRepository
	Transactor repository.Transactor
	Resolver   *sla.EscalationResolver
	Notifier   Notifier
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	// EscalateOnBreach subscribes the service to recorded breaches.
	EscalateOnBreach bool
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
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
	return &EscalationService{
		tickets:    deps.TicketRepo,
		teams:      deps.TeamRepo,
		audit:      deps.AuditRepo,
		tx:         tx,
		resolver:   deps.Resolver,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		clock:      c,
		logger:     logger,
		metrics:    deps.Metrics,
		onBreach:   deps.EscalateOnBreach,
	}
}

// RegisterHandlers subscribes to breach events when escalation on breach is enabled.
func (s *EscalationService) RegisterHandlers() {
	if s.dispatcher == nil || !s.onBreach {
		return
	}
	s.dispatcher.Subscribe(events.EventSLABreached, s.handleBreach)
}

func (s *EscalationService) handleBreach(ctx context.Context, event events.Event) error {
	reason := "sla breached"
	if payload, ok := event.Payload.(events.SLABreachedPayload); ok {
		reason = fmt.Sprintf("%s deadline %s breached", payload.JobType, payload.DueAt)
	}
	_, err := s.escalate(ctx, event.TicketID, "", systemActor(), reason)
	return err
}

// Escalate moves a ticket one level up its chain on behalf of a staff member.
func (s *EscalationService) Escalate(ctx context.Context, staff domain.Principal, ticketID, reason string) (*EscalationResult, error) {
	if reason == "" {
		reason = "manual escalation"
	}
	return s.escalate(ctx, ticketID, staff.OrganizationID, actorOf(staff), reason)
}

// escalate applies the next level with an active team inside one
// transaction, then notifies. organizationID scopes the lookup when set.
func (s *EscalationService) escalate(ctx context.Context, ticketID, organizationID string, actor events.Actor, reason string) (*EscalationResult, error) {
	result := &EscalationResult{Reason: reason}
	var ticket *domain.Ticket
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = s.tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return notFoundOr(err, ticketID)
		}
		if organizationID != "" && ticket.OrganizationID != organizationID {
			return util.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		if ticket.IsTerminal() {
			result.Reason = EscalationTicketTerminal
			return nil
		}

		levels, err := s.resolver.FetchLevels(ctx, ticket.OrganizationID, ticket.Priority, ticket.CategoryID)
		if err != nil {
			return err
		}
		level, ok, err := s.nextActiveLevel(ctx, levels, ticket.EscalationLevel)
		if err != nil {
			return err
		}
		if !ok {
			result.Reason = EscalationChainExhausted
			return nil
		}

		result.PreviousTeamID = ticket.TeamID
		teamID, lvl := level.TeamID, level.Level
		ticket.TeamID = &teamID
		ticket.EscalationLevel = &lvl
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		data := map[string]any{
			"level":  lvl,
			"teamId": teamID,
			"reason": reason,
		}
		if result.PreviousTeamID != nil {
			data["previousTeamId"] = *result.PreviousTeamID
		}
		if err := s.audit.Create(ctx, &domain.AuditEvent{
			TicketID: ticket.ID,
			ActorID:  auditActor(actor, ticket),
			Action:   domain.AuditActionSLAEscalated,
			Data:     data,
		}); err != nil {
			return err
		}
		result.Escalated = true
		result.Level = lvl
		result.TeamID = teamID
		return nil
	})
	if err != nil {
		s.metrics.RecordEscalation("error")
		return nil, err
	}
	if !result.Escalated {
		s.metrics.RecordEscalation("skipped")
		s.logger.Info("sla escalation skipped",
			zap.String("ticket_id", ticketID),
			zap.String("reason", result.Reason),
		)
		return result, nil
	}

	s.metrics.RecordEscalation("escalated")
	s.logger.Info("sla ticket escalated",
		zap.String("ticket_id", ticket.ID),
		zap.Int("level", result.Level),
		zap.String("team_id", result.TeamID),
	)

	if s.notifier != nil {
		key := escalationKey(ticket.ID, result.Level)
		n, err := s.notifier.Send(ctx, domain.Notification{
			Channel:        domain.ChannelInApp,
			RecipientID:    ticket.ActorID(),
			Subject:        fmt.Sprintf("Ticket escalated to level %d", result.Level),
			Body:           fmt.Sprintf("Ticket %q was escalated to level %d: %s.", ticket.Title, result.Level, reason),
			Data:           map[string]any{"ticketId": ticket.ID, "level": result.Level, "teamId": result.TeamID},
			IdempotencyKey: &key,
		})
		if err != nil {
			s.logger.Warn("escalation notification failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		} else {
			result.NotificationID = n.ID
		}
	}

	publish(ctx, s.dispatcher, s.logger, s.clock, events.Event{
		Type:     events.EventSLAEscalated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.SLAEscalatedPayload{
			Level:      result.Level,
			TeamID:     result.TeamID,
			PreviousID: result.PreviousTeamID,
			Reason:     reason,
		},
	})
	return result, nil
}

// nextActiveLevel walks the chain above current, skipping levels whose team
// is missing or inactive.
func (s *EscalationService) nextActiveLevel(ctx context.Context, levels []domain.EscalationLevel, current *int) (domain.EscalationLevel, bool, error) {
	for {
		level, ok := sla.NextLevel(levels, current)
		if !ok {
			return domain.EscalationLevel{}, false, nil
		}
		if s.teams == nil {
			return level, true, nil
		}
		team, err := s.teams.GetByID(ctx, level.TeamID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return domain.EscalationLevel{}, false, err
		case team.IsActive:
			return level, true, nil
		}
		s.logger.Debug("skipping escalation level without active team",
			zap.Int("level", level.Level),
			zap.String("team_id", level.TeamID),
		)
		skipped := level.Level
		current = &skipped
	}
}

func escalationKey(ticketID string, level int) string {
	return fmt.Sprintf("escalation:%s:%d", ticketID, level)
}

func auditActor(actor events.Actor, t *domain.Ticket) string {
	if actor.ID != "" {
		return actor.ID
	}
	return t.ActorID()
}
