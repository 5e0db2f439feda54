package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspecta-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, domain_id, username, email, full_name, password_hash, role, is_active, created_at, last_login_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.DomainID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, domain_id, username, email, full_name, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING created_at`

	user.ID = uuid.New()
	user.IsActive = true

	return r.pool.QueryRow(ctx, query,
		user.ID, user.DomainID, user.Username, user.Email, user.FullName, user.PasswordHash, user.Role,
	).Scan(&user.CreatedAt)
}

func (r *UserRepo) GetByUsername(ctx context.Context, domainID uuid.UUID, username string) (*models.User, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE domain_id = $1 AND username = $2", domainID, username)
	return scanUser(row)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (r *UserRepo) ListByDomain(ctx context.Context, domainID uuid.UUID, role string) ([]*models.User, error) {
	var w whereClause
	w.add("domain_id = ?", domainID)
	if role != "" {
		w.add("role = ?", role)
	}

	rows, err := r.pool.Query(ctx, "SELECT "+userColumns+" FROM users "+w.String()+" ORDER BY full_name, username", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) Update(ctx context.Context, user *models.User) error {
	return requireAffected(r.pool.Exec(ctx,
		"UPDATE users SET full_name = $1, email = $2, role = $3, is_active = $4 WHERE id = $5 AND domain_id = $6",
		user.FullName, user.Email, user.Role, user.IsActive, user.ID, user.DomainID,
	))
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return requireAffected(r.pool.Exec(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, userID))
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE users SET last_login_at = $1 WHERE id = $2", time.Now(), userID)
	return err
}

func (r *UserRepo) Deactivate(ctx context.Context, domainID, userID uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx,
		"UPDATE users SET is_active = FALSE WHERE id = $1 AND domain_id = $2", userID, domainID))
}
