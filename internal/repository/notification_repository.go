package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// NotificationRepository persists delivered notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository constructs repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id, channel, recipient_id, subject, body, data, idempotency_key, status, created_at`

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (id, channel, recipient_id, subject, body, data, idempotency_key, status)
        VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()),$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	return dbFor(ctx, r.pool).QueryRow(ctx, query,
		n.ID,
		n.Channel,
		n.RecipientID,
		n.Subject,
		n.Body,
		data,
		n.IdempotencyKey,
		n.Status,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE idempotency_key=$1`
	var n domain.Notification
	if err := dbFor(ctx, r.pool).QueryRow(ctx, query, key).Scan(
		&n.ID, &n.Channel, &n.RecipientID, &n.Subject, &n.Body, &n.Data, &n.IdempotencyKey, &n.Status, &n.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + `
        FROM notifications WHERE recipient_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := dbFor(ctx, r.pool).Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Channel, &n.RecipientID, &n.Subject, &n.Body, &n.Data, &n.IdempotencyKey, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
