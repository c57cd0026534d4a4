package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// TicketMessageRepository stores the ticket conversation. Staff public
// replies written here are what stamp a ticket's first response.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

// Column order matches domain.TicketMessage for RowToStructByPos.
const messageColumns = `id, ticket_id, author_type, author_id, message_type, body, created_at`

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, author_type, author_id, message_type, body)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return dbFor(ctx, r.pool).QueryRow(ctx, query,
		msg.TicketID, msg.AuthorType, msg.AuthorID, msg.MessageType, msg.Body,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	rows, err := dbFor(ctx, r.pool).Query(ctx,
		`SELECT `+messageColumns+` FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, id`, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.TicketMessage])
}
