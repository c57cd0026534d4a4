package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// PolicyRepository persists SLA policies. It satisfies sla.PolicyStore.
type PolicyRepository interface {
	Create(ctx context.Context, policy *domain.SLAPolicy) error
	Update(ctx context.Context, policy *domain.SLAPolicy) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.SLAPolicy, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error)
	FindByCategoryName(ctx context.Context, organizationID string, priority domain.TicketPriority, categoryName string) (*domain.SLAPolicy, error)
	FindDefault(ctx context.Context, organizationID string, priority domain.TicketPriority) (*domain.SLAPolicy, error)
}

type policyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository constructs repository.
func NewPolicyRepository(pool *pgxpool.Pool) PolicyRepository {
	return &policyRepository{pool: pool}
}

const policyColumns = `p.id, p.organization_id, p.priority, p.category_id, p.first_response_hours, p.resolve_hours, p.created_at, p.updated_at`

func (r *policyRepository) Create(ctx context.Context, policy *domain.SLAPolicy) error {
	const query = `
        INSERT INTO sla_policies (organization_id, priority, category_id, first_response_hours, resolve_hours)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return dbFor(ctx, r.pool).QueryRow(ctx, query,
		policy.OrganizationID,
		policy.Priority,
		policy.CategoryID,
		policy.FirstResponseHours,
		policy.ResolveHours,
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
}

func (r *policyRepository) Update(ctx context.Context, policy *domain.SLAPolicy) error {
	const query = `
        UPDATE sla_policies SET priority=$1, category_id=$2, first_response_hours=$3, resolve_hours=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return dbFor(ctx, r.pool).QueryRow(ctx, query,
		policy.Priority,
		policy.CategoryID,
		policy.FirstResponseHours,
		policy.ResolveHours,
		policy.ID,
	).Scan(&policy.UpdatedAt)
}

func (r *policyRepository) Delete(ctx context.Context, id string) error {
	cmd, err := dbFor(ctx, r.pool).Exec(ctx, `DELETE FROM sla_policies WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *policyRepository) GetByID(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies p WHERE p.id=$1`
	return scanPolicy(dbFor(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *policyRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.SLAPolicy, error) {
	query := `SELECT ` + policyColumns + `
        FROM sla_policies p WHERE p.organization_id=$1
        ORDER BY p.priority, p.category_id NULLS FIRST`
	rows, err := dbFor(ctx, r.pool).Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAPolicy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *policy)
	}
	return result, rows.Err()
}

func (r *policyRepository) FindByCategoryName(ctx context.Context, organizationID string, priority domain.TicketPriority, categoryName string) (*domain.SLAPolicy, error) {
	query := `SELECT ` + policyColumns + `
        FROM sla_policies p
        JOIN categories c ON c.id = p.category_id
        WHERE p.organization_id=$1 AND p.priority=$2 AND LOWER(c.name)=LOWER($3)
        LIMIT 1`
	return scanPolicy(dbFor(ctx, r.pool).QueryRow(ctx, query, organizationID, priority, categoryName))
}

func (r *policyRepository) FindDefault(ctx context.Context, organizationID string, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	query := `SELECT ` + policyColumns + `
        FROM sla_policies p
        WHERE p.organization_id=$1 AND p.priority=$2 AND p.category_id IS NULL`
	return scanPolicy(dbFor(ctx, r.pool).QueryRow(ctx, query, organizationID, priority))
}

func scanPolicy(row pgx.Row) (*domain.SLAPolicy, error) {
	var policy domain.SLAPolicy
	if err := row.Scan(
		&policy.ID,
		&policy.OrganizationID,
		&policy.Priority,
		&policy.CategoryID,
		&policy.FirstResponseHours,
		&policy.ResolveHours,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}
