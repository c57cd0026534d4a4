package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/clock"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/repository"
	util "github.com/spec-kit/sla-service/pkg/util"
)

// AssignmentService handles ticket assignment operations. The assignee is
// the actor breach audits are attributed to and the recipient of reminders.
type AssignmentService struct {
	tickets    repository.TicketRepository
	teams      repository.TeamRepository
	audit      repository.AuditRepository
	tx         repository.Transactor
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	TeamRepo   repository.TeamRepository
	AuditRepo  repository.AuditRepository
	Transactor repository.Transactor
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// AssignInput selects the new owner. Empty fields are left unchanged.
type AssignInput struct {
	AssigneeID string
	TeamID     string
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
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
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		teams:      deps.TeamRepo,
		audit:      deps.AuditRepo,
		tx:         tx,
		dispatcher: deps.Dispatcher,
		clock:      c,
		logger:     logger,
	}
}

// SelfAssign makes the calling staff member the assignee.
func (s *AssignmentService) SelfAssign(ctx context.Context, staff domain.Principal, ticketID string) (*domain.Ticket, error) {
	if !staff.IsStaff() {
		return nil, util.NewForbidden("staff required")
	}
	return s.assign(ctx, staff, ticketID, AssignInput{AssigneeID: staff.SubjectID})
}

// Assign hands a ticket to another staff member or team (TEAM_LEAD/ADMIN).
func (s *AssignmentService) Assign(ctx context.Context, staff domain.Principal, ticketID string, input AssignInput) (*domain.Ticket, error) {
	if !staff.HasRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin) {
		return nil, util.NewForbidden("insufficient role for assignment")
	}
	input.AssigneeID = strings.TrimSpace(input.AssigneeID)
	input.TeamID = strings.TrimSpace(input.TeamID)
	if input.AssigneeID == "" && input.TeamID == "" {
		return nil, util.NewValidationError("assignee_id or team_id is required", nil)
	}
	return s.assign(ctx, staff, ticketID, input)
}

func (s *AssignmentService) assign(ctx context.Context, staff domain.Principal, ticketID string, input AssignInput) (*domain.Ticket, error) {
	if input.TeamID != "" {
		team, err := s.teams.GetByID(ctx, input.TeamID)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && team.OrganizationID != staff.OrganizationID) {
			return nil, util.NewNotFound("team", map[string]any{"team_id": input.TeamID})
		}
		if err != nil {
			return nil, err
		}
		if !team.IsActive {
			return nil, util.NewConflict("team inactive", map[string]any{"team_id": input.TeamID})
		}
	}

	var (
		ticket  *domain.Ticket
		changes map[string]any
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
		if ticket.IsTerminal() {
			return util.NewConflict("ticket already resolved or closed", map[string]any{"status": ticket.Status})
		}
		changes = map[string]any{}
		if input.TeamID != "" {
			changes["previousTeamId"] = derefOr(ticket.TeamID)
			changes["teamId"] = input.TeamID
			teamID := input.TeamID
			ticket.TeamID = &teamID
			if input.AssigneeID == "" {
				ticket.AssigneeID = nil
			}
		}
		if input.AssigneeID != "" {
			changes["previousAssigneeId"] = derefOr(ticket.AssigneeID)
			changes["assigneeId"] = input.AssigneeID
			assignee := input.AssigneeID
			ticket.AssigneeID = &assignee
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return s.audit.Create(ctx, &domain.AuditEvent{
			TicketID: ticket.ID,
			ActorID:  staff.SubjectID,
			Action:   domain.AuditActionAssigned,
			Data:     changes,
		})
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, s.logger, s.clock, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    actorOf(staff),
		Payload: events.TicketAssignedPayload{
			AssigneeID: ticket.AssigneeID,
			TeamID:     ticket.TeamID,
		},
	})
	return ticket, nil
}

func derefOr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
