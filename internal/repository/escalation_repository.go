package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// EscalationRepository reads escalation chains. It satisfies sla.EscalationStore.
type EscalationRepository interface {
	ListLevels(ctx context.Context, organizationID string, priority domain.TicketPriority, categoryID *string) ([]domain.EscalationLevel, error)
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository constructs repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

// ListLevels matches the category exactly, so a nil categoryID selects only the
// organization-wide chain.
func (r *escalationRepository) ListLevels(ctx context.Context, organizationID string, priority domain.TicketPriority, categoryID *string) ([]domain.EscalationLevel, error) {
	const query = `
        SELECT level, team_id
        FROM escalation_levels
        WHERE organization_id=$1 AND priority=$2 AND category_id IS NOT DISTINCT FROM $3::uuid
        ORDER BY level ASC`
	rows, err := dbFor(ctx, r.pool).Query(ctx, query, organizationID, priority, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EscalationLevel
	for rows.Next() {
		var level domain.EscalationLevel
		if err := rows.Scan(&level.Level, &level.TeamID); err != nil {
			return nil, err
		}
		result = append(result, level)
	}
	return result, rows.Err()
}
