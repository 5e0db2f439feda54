package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspecta-backend/internal/models"
)

type DomainRepo struct {
	pool *pgxpool.Pool
}

func NewDomainRepo(pool *pgxpool.Pool) *DomainRepo {
	return &DomainRepo{pool: pool}
}

func (r *DomainRepo) List(ctx context.Context) ([]*models.Domain, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, code, name, created_at FROM domains ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	domains := make([]*models.Domain, 0)
	for rows.Next() {
		d := &models.Domain{}
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (r *DomainRepo) GetByCode(ctx context.Context, code string) (*models.Domain, error) {
	d := &models.Domain{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, code, name, created_at FROM domains WHERE code = $1", code,
	).Scan(&d.ID, &d.Code, &d.Name, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Ensure returns the domain with the given code, creating it when missing.
func (r *DomainRepo) Ensure(ctx context.Context, code, name string) (*models.Domain, error) {
	d := &models.Domain{}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO domains (id, code, name) VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		RETURNING id, code, name, created_at`,
		uuid.New(), code, name,
	).Scan(&d.ID, &d.Code, &d.Name, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}
