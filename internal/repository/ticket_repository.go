package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	OrganizationID *string
	RequesterID    *string
	TeamID         *string
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	ListOpenByOrganization(ctx context.Context, organizationID string) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, organization_id, requester_id, assignee_id, team_id, category_id,
               title, status, priority, escalation_level,
               first_response_at, first_response_due, resolve_due, resolved_at, closed_at,
               sla_paused_at, sla_resumed_at, sla_pause_total_seconds, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (organization_id, requester_id, assignee_id, team_id, category_id, title, status, priority,
            first_response_due, resolve_due)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return dbFor(ctx, r.pool).QueryRow(ctx, query,
		ticket.OrganizationID,
		ticket.RequesterID,
		ticket.AssigneeID,
		ticket.TeamID,
		ticket.CategoryID,
		ticket.Title,
		ticket.Status,
		ticket.Priority,
		ticket.FirstResponseDue,
		ticket.ResolveDue,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assignee_id=$1, team_id=$2, category_id=$3, title=$4, status=$5, priority=$6,
            escalation_level=$7, first_response_at=$8, first_response_due=$9, resolve_due=$10,
            resolved_at=$11, closed_at=$12, sla_paused_at=$13, sla_resumed_at=$14,
            sla_pause_total_seconds=$15, updated_at=NOW()
        WHERE id=$16
        RETURNING updated_at`
	err := dbFor(ctx, r.pool).QueryRow(ctx, query,
		ticket.AssigneeID,
		ticket.TeamID,
		ticket.CategoryID,
		ticket.Title,
		ticket.Status,
		ticket.Priority,
		ticket.EscalationLevel,
		ticket.FirstResponseAt,
		ticket.FirstResponseDue,
		ticket.ResolveDue,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.SLAPausedAt,
		ticket.SLAResumedAt,
		ticket.SLAPauseTotalSeconds,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(dbFor(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return scanTicket(dbFor(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *ticketRepository) ListOpenByOrganization(ctx context.Context, organizationID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets
        WHERE organization_id=$1 AND status NOT IN ('RESOLVED','CLOSED')
          AND resolved_at IS NULL AND closed_at IS NULL`
	rows, err := dbFor(ctx, r.pool).Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		clauses = append(clauses, fmt.Sprintf("organization_id=$%d", len(args)))
	}
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.TeamID != nil {
		args = append(args, *filter.TeamID)
		clauses = append(clauses, fmt.Sprintf("team_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	limitPos := len(args)
	args = append(args, filter.Offset)
	offsetPos := len(args)

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		ticketColumns, strings.Join(clauses, " AND "), limitPos, offsetPos)

	rows, err := dbFor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

func collectTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OrganizationID,
		&ticket.RequesterID,
		&ticket.AssigneeID,
		&ticket.TeamID,
		&ticket.CategoryID,
		&ticket.Title,
		&ticket.Status,
		&ticket.Priority,
		&ticket.EscalationLevel,
		&ticket.FirstResponseAt,
		&ticket.FirstResponseDue,
		&ticket.ResolveDue,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.SLAPausedAt,
		&ticket.SLAResumedAt,
		&ticket.SLAPauseTotalSeconds,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	normalizeTicketTimes(&ticket)
	return &ticket, nil
}

// normalizeTicketTimes brings scanned deadlines to the precision jobs carry.
// Postgres keeps microseconds, which would defeat exact staleness comparison.
func normalizeTicketTimes(t *domain.Ticket) {
	for _, p := range []**time.Time{&t.FirstResponseDue, &t.ResolveDue} {
		if *p != nil {
			v := domain.NormalizeDeadline(**p)
			*p = &v
		}
	}
}
