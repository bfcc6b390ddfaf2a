package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// CategoryRepository resolves the category fields the lifecycle depends on.
// Category CRUD lives with the taxonomy owner.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository builds the repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	const query = `
        SELECT id, name, department, resolution_time_hours
        FROM categories WHERE id=$1`
	var cat domain.Category
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&cat.ID,
		&cat.Name,
		&cat.Department,
		&cat.ResolutionTimeHours,
	); err != nil {
		return nil, err
	}
	return &cat, nil
}
