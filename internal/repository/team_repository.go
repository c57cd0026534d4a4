package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// TeamRepository manages the teams escalation levels point at.
type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	Update(ctx context.Context, team *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	// ListByOrganization includes inactive teams so they can be re-enabled.
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.Team, error)
}

type teamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository constructs repository.
func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &teamRepository{pool: pool}
}

// Column order matches domain.Team for RowToStructByPos.
const teamColumns = `id, organization_id, name, is_active, created_at, updated_at`

func (r *teamRepository) Create(ctx context.Context, team *domain.Team) error {
	const query = `
        INSERT INTO teams (organization_id, name, is_active)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return dbFor(ctx, r.pool).QueryRow(ctx, query, team.OrganizationID, team.Name, team.IsActive).
		Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
}

func (r *teamRepository) Update(ctx context.Context, team *domain.Team) error {
	const query = `
        UPDATE teams SET name=$1, is_active=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	return dbFor(ctx, r.pool).QueryRow(ctx, query, team.Name, team.IsActive, team.ID).Scan(&team.UpdatedAt)
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	rows, err := dbFor(ctx, r.pool).Query(ctx, `SELECT `+teamColumns+` FROM teams WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	return pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[domain.Team])
}

func (r *teamRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.Team, error) {
	rows, err := dbFor(ctx, r.pool).Query(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE organization_id=$1 ORDER BY is_active DESC, name`, organizationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.Team])
}
