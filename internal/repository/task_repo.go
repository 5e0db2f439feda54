package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspecta-backend/internal/models"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, domain_id, title, description, object_id, operator_id, created_by, status, priority,
	starts_at, duration_minutes, recurrence, recurrence_until, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID, &t.DomainID, &t.Title, &t.Description, &t.ObjectID, &t.OperatorID, &t.CreatedBy,
		&t.Status, &t.Priority, &t.StartsAt, &t.DurationMinutes, &t.Recurrence, &t.RecurrenceUntil,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	t.ID = uuid.New()
	query := `
		INSERT INTO tasks (id, domain_id, title, description, object_id, operator_id, created_by, status, priority,
			starts_at, duration_minutes, recurrence, recurrence_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		t.ID, t.DomainID, t.Title, t.Description, t.ObjectID, t.OperatorID, t.CreatedBy, t.Status, t.Priority,
		t.StartsAt, t.DurationMinutes, t.Recurrence, t.RecurrenceUntil,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND domain_id = $2", id, domainID)
	return scanTask(row)
}

func (r *TaskRepo) List(ctx context.Context, domainID uuid.UUID, f models.TaskFilter) ([]*models.Task, int, error) {
	var w whereClause
	w.add("domain_id = ?", domainID)
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.OperatorID != nil {
		w.add("operator_id = ?", *f.OperatorID)
	}
	if f.ObjectID != nil {
		w.add("object_id = ?", *f.ObjectID)
	}
	if f.From != nil {
		w.add("(recurrence_until IS NULL OR recurrence_until >= ?)", *f.From)
	}
	if f.To != nil {
		w.add("starts_at < ?", *f.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tasks "+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := clampLimit(f.Limit, 50, 200)
	query := fmt.Sprintf("SELECT %s FROM tasks %s ORDER BY starts_at DESC LIMIT %s OFFSET $%d",
		taskColumns, w.String(), w.next(), len(w.args)+2)
	args := append(w.args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	return tasks, total, rows.Err()
}

func (r *TaskRepo) Update(ctx context.Context, t *models.Task) error {
	return requireAffected(r.pool.Exec(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, object_id = $3, operator_id = $4, status = $5, priority = $6,
			starts_at = $7, duration_minutes = $8, recurrence = $9, recurrence_until = $10, updated_at = NOW()
		WHERE id = $11 AND domain_id = $12`,
		t.Title, t.Description, t.ObjectID, t.OperatorID, t.Status, t.Priority,
		t.StartsAt, t.DurationMinutes, t.Recurrence, t.RecurrenceUntil, t.ID, t.DomainID,
	))
}

func (r *TaskRepo) SetStatus(ctx context.Context, domainID, id uuid.UUID, status string) error {
	return requireAffected(r.pool.Exec(ctx,
		"UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2 AND domain_id = $3", status, id, domainID))
}
