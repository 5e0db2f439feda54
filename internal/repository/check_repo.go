package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspecta-backend/internal/models"
)

// Checks already started stay with their operator when the task goes away.
const cancelPendingForTaskSQL = "UPDATE checks SET status = 'cancelled' WHERE task_id = $1 AND status = 'pending'"

// markOverdueSQL returns no row when the check finished or was already
// notified after it was listed.
const markOverdueSQL = `
	UPDATE checks
	SET overdue_notified_at = $1,
		status = CASE WHEN status = 'pending' THEN 'missed' ELSE status END
	WHERE id = $2
		AND status IN ('pending', 'in_progress')
		AND overdue_notified_at IS NULL
	RETURNING status`

type CheckRepo struct {
	pool *pgxpool.Pool
}

func NewCheckRepo(pool *pgxpool.Pool) *CheckRepo {
	return &CheckRepo{pool: pool}
}

const checkSelect = `
	SELECT c.id, c.domain_id, c.task_id, t.title, c.object_id, o.name, c.operator_id, c.scheduled_for,
		c.status, c.started_at, c.completed_at, c.notes, c.overdue_notified_at, c.created_at
	FROM checks c
	JOIN tasks t ON t.id = c.task_id
	JOIN facility_objects o ON o.id = c.object_id`

func scanCheck(row interface{ Scan(...interface{}) error }) (*models.Check, error) {
	c := &models.Check{}
	err := row.Scan(
		&c.ID, &c.DomainID, &c.TaskID, &c.TaskTitle, &c.ObjectID, &c.ObjectName, &c.OperatorID, &c.ScheduledFor,
		&c.Status, &c.StartedAt, &c.CompletedAt, &c.Notes, &c.OverdueNotifiedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// InsertOccurrences creates one pending check per occurrence. Existing
// (task, scheduled_for) pairs are left alone, so repeated calls are safe.
func (r *CheckRepo) InsertOccurrences(ctx context.Context, task *models.Task, occurrences []time.Time) (int, error) {
	if len(occurrences) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO checks (id, domain_id, task_id, object_id, operator_id, scheduled_for, status)
		SELECT gen_random_uuid(), $1, $2, $3, $4, occ, 'pending'
		FROM UNNEST($5::timestamptz[]) AS occ
		ON CONFLICT (task_id, scheduled_for) DO NOTHING`,
		task.DomainID, task.ID, task.ObjectID, task.OperatorID, occurrences,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// SyncPendingAssignment copies the task's operator and object onto its
// future pending checks.
func (r *CheckRepo) SyncPendingAssignment(ctx context.Context, task *models.Task, from time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE checks SET operator_id = $1, object_id = $2
		WHERE task_id = $3 AND status = 'pending' AND scheduled_for >= $4`,
		task.OperatorID, task.ObjectID, task.ID, from,
	)
	return err
}

// CancelStalePending cancels future pending checks of a task whose
// scheduled time is not among keep.
func (r *CheckRepo) CancelStalePending(ctx context.Context, taskID uuid.UUID, from time.Time, keep []time.Time) (int, error) {
	if keep == nil {
		keep = []time.Time{}
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE checks SET status = 'cancelled'
		WHERE task_id = $1 AND status = 'pending' AND scheduled_for >= $2
		  AND NOT (scheduled_for = ANY($3::timestamptz[]))`,
		taskID, from, keep,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *CheckRepo) CancelPendingForTask(ctx context.Context, taskID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, cancelPendingForTaskSQL, taskID)
	return err
}

func (r *CheckRepo) GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Check, error) {
	c, err := scanCheck(r.pool.QueryRow(ctx, checkSelect+" WHERE c.id = $1 AND c.domain_id = $2", id, domainID))
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT cr.check_id, cr.parameter_id, p.name, cr.value, cr.compliant, cr.recorded_at
		FROM check_results cr
		JOIN inspection_parameters p ON p.id = cr.parameter_id
		WHERE cr.check_id = $1
		ORDER BY p.code`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Results = make([]models.CheckResult, 0)
	for rows.Next() {
		var res models.CheckResult
		if err := rows.Scan(&res.CheckID, &res.ParameterID, &res.ParameterName, &res.Value, &res.Compliant, &res.RecordedAt); err != nil {
			return nil, err
		}
		c.Results = append(c.Results, res)
	}
	return c, rows.Err()
}

func (r *CheckRepo) List(ctx context.Context, domainID uuid.UUID, f models.CheckFilter) ([]*models.Check, error) {
	var w whereClause
	w.add("c.domain_id = ?", domainID)
	if f.Status != "" {
		w.add("c.status = ?", f.Status)
	}
	if f.OperatorID != nil {
		w.add("c.operator_id = ?", *f.OperatorID)
	}
	if f.TaskID != nil {
		w.add("c.task_id = ?", *f.TaskID)
	}
	if f.From != nil {
		w.add("c.scheduled_for >= ?", *f.From)
	}
	if f.To != nil {
		w.add("c.scheduled_for < ?", *f.To)
	}

	limit := clampLimit(f.Limit, 200, 5000)
	query := fmt.Sprintf("%s %s ORDER BY c.scheduled_for ASC LIMIT %s OFFSET $%d",
		checkSelect, w.String(), w.next(), len(w.args)+2)
	args := append(w.args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checks := make([]*models.Check, 0)
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

// Transition moves a check from one of the allowed statuses to next. It
// returns ErrNoRows when the check is not in an allowed status.
func (r *CheckRepo) Transition(ctx context.Context, domainID, id uuid.UUID, from []string, next string) error {
	return requireAffected(r.pool.Exec(ctx, `
		UPDATE checks
		SET status = $1,
			started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END
		WHERE id = $2 AND domain_id = $3 AND status = ANY($4::text[])`,
		next, id, domainID, from,
	))
}

// Complete stores results and marks the check completed in one transaction.
func (r *CheckRepo) Complete(ctx context.Context, domainID, id uuid.UUID, results []models.CheckResult, notes string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = requireAffected(tx.Exec(ctx, `
		UPDATE checks
		SET status = 'completed', completed_at = NOW(), notes = $1,
			started_at = COALESCE(started_at, NOW())
		WHERE id = $2 AND domain_id = $3 AND status IN ('pending', 'in_progress')`,
		notes, id, domainID,
	))
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(`
			INSERT INTO check_results (check_id, parameter_id, value, compliant)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (check_id, parameter_id) DO UPDATE
			SET value = EXCLUDED.value, compliant = EXCLUDED.compliant, recorded_at = NOW()`,
			id, res.ParameterID, res.Value, res.Compliant,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListOverdue returns open checks scheduled before cutoff that have not
// had an overdue notification yet.
func (r *CheckRepo) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*models.Check, error) {
	rows, err := r.pool.Query(ctx, checkSelect+`
		WHERE c.status IN ('pending', 'in_progress')
		  AND c.scheduled_for < $1
		  AND c.overdue_notified_at IS NULL
		ORDER BY c.scheduled_for
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checks := make([]*models.Check, 0)
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

// MarkOverdue flags the check as notified and moves pending checks to
// missed. In-progress checks keep their status.
func (r *CheckRepo) MarkOverdue(ctx context.Context, id uuid.UUID, at time.Time) (string, error) {
	var status string
	err := r.pool.QueryRow(ctx, markOverdueSQL, at, id).Scan(&status)
	return status, err
}
