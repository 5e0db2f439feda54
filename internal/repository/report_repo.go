package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspecta-backend/internal/models"
)

// ReportRepo runs the aggregate queries behind reports. Every query is
// bounded to checks scheduled in [from, to).
type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

func (r *ReportRepo) countBy(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func (r *ReportRepo) ChecksByStatus(ctx context.Context, domainID uuid.UUID, from, to time.Time) (map[string]int, error) {
	return r.countBy(ctx, `
		SELECT status, COUNT(*) FROM checks
		WHERE domain_id = $1 AND scheduled_for >= $2 AND scheduled_for < $3
		GROUP BY status`, domainID, from, to)
}

func (r *ReportRepo) NonComplianceBySeverity(ctx context.Context, domainID uuid.UUID, from, to time.Time) (map[string]int, error) {
	return r.countBy(ctx, `
		SELECT n.severity, COUNT(*) FROM non_compliance_cases n
		JOIN checks c ON c.id = n.check_id
		WHERE n.domain_id = $1 AND c.scheduled_for >= $2 AND c.scheduled_for < $3
		GROUP BY n.severity`, domainID, from, to)
}

func (r *ReportRepo) NonComplianceByStatus(ctx context.Context, domainID uuid.UUID, from, to time.Time) (map[string]int, error) {
	return r.countBy(ctx, `
		SELECT n.status, COUNT(*) FROM non_compliance_cases n
		JOIN checks c ON c.id = n.check_id
		WHERE n.domain_id = $1 AND c.scheduled_for >= $2 AND c.scheduled_for < $3
		GROUP BY n.status`, domainID, from, to)
}

func (r *ReportRepo) OperatorStats(ctx context.Context, domainID uuid.UUID, from, to time.Time) ([]models.OperatorStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, COALESCE(NULLIF(u.full_name, ''), u.username),
			COUNT(c.id) FILTER (WHERE c.status <> 'cancelled'),
			COUNT(c.id) FILTER (WHERE c.status = 'completed')
		FROM checks c
		JOIN users u ON u.id = c.operator_id
		WHERE c.domain_id = $1 AND c.scheduled_for >= $2 AND c.scheduled_for < $3
		GROUP BY u.id, u.full_name, u.username
		ORDER BY 2`, domainID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]models.OperatorStats, 0)
	for rows.Next() {
		var s models.OperatorStats
		if err := rows.Scan(&s.OperatorID, &s.FullName, &s.Assigned, &s.Completed); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ExportRow is one line of the checks export.
type ExportRow struct {
	CheckID        uuid.UUID
	ScheduledFor   time.Time
	TaskTitle      string
	ObjectName     string
	Operator       string
	Status         string
	CompletedAt    *time.Time
	NonCompliances int
	OpenCases      int
}

func (r *ReportRepo) ExportRows(ctx context.Context, domainID uuid.UUID, from, to time.Time) ([]ExportRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.scheduled_for, t.title, o.name, COALESCE(NULLIF(u.full_name, ''), u.username),
			c.status, c.completed_at,
			COUNT(n.id),
			COUNT(n.id) FILTER (WHERE n.status IN ('open', 'in_progress'))
		FROM checks c
		JOIN tasks t ON t.id = c.task_id
		JOIN facility_objects o ON o.id = c.object_id
		JOIN users u ON u.id = c.operator_id
		LEFT JOIN non_compliance_cases n ON n.check_id = c.id
		WHERE c.domain_id = $1 AND c.scheduled_for >= $2 AND c.scheduled_for < $3
		GROUP BY c.id, t.title, o.name, u.full_name, u.username
		ORDER BY c.scheduled_for`, domainID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ExportRow, 0)
	for rows.Next() {
		var row ExportRow
		if err := rows.Scan(&row.CheckID, &row.ScheduledFor, &row.TaskTitle, &row.ObjectName, &row.Operator,
			&row.Status, &row.CompletedAt, &row.NonCompliances, &row.OpenCases); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
