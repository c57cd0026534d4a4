package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-service/internal/domain"
)

// CategoryRepository reads ticket categories.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.Category, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository constructs repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (organization_id, name)
        VALUES ($1,$2)
        RETURNING id, created_at`
	return dbFor(ctx, r.pool).QueryRow(ctx, query, category.OrganizationID, category.Name).
		Scan(&category.ID, &category.CreatedAt)
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	const query = `SELECT id, organization_id, name, created_at FROM categories WHERE id=$1`
	var category domain.Category
	if err := dbFor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.OrganizationID,
		&category.Name,
		&category.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.Category, error) {
	const query = `
        SELECT id, organization_id, name, created_at
        FROM categories WHERE organization_id=$1 ORDER BY name`
	rows, err := dbFor(ctx, r.pool).Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.OrganizationID, &category.Name, &category.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}
