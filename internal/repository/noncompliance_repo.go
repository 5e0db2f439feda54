package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspecta-backend/internal/models"
)

type NonComplianceRepo struct {
	pool *pgxpool.Pool
}

func NewNonComplianceRepo(pool *pgxpool.Pool) *NonComplianceRepo {
	return &NonComplianceRepo{pool: pool}
}

const caseColumns = `id, domain_id, check_id, parameter_id, parameter_name, description, severity, status,
	created_by, detected_at, resolved_at, resolution_notes`

func scanCase(row interface{ Scan(...interface{}) error }) (*models.NonComplianceCase, error) {
	c := &models.NonComplianceCase{}
	err := row.Scan(
		&c.ID, &c.DomainID, &c.CheckID, &c.ParameterID, &c.ParameterName, &c.Description, &c.Severity, &c.Status,
		&c.CreatedBy, &c.DetectedAt, &c.ResolvedAt, &c.ResolutionNotes,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *NonComplianceRepo) Create(ctx context.Context, c *models.NonComplianceCase) error {
	c.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO non_compliance_cases (id, domain_id, check_id, parameter_id, parameter_name, description, severity, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING detected_at`,
		c.ID, c.DomainID, c.CheckID, c.ParameterID, c.ParameterName, c.Description, c.Severity, c.Status, c.CreatedBy,
	).Scan(&c.DetectedAt)
}

func (r *NonComplianceRepo) GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.NonComplianceCase, error) {
	return scanCase(r.pool.QueryRow(ctx,
		"SELECT "+caseColumns+" FROM non_compliance_cases WHERE id = $1 AND domain_id = $2", id, domainID))
}

func (r *NonComplianceRepo) List(ctx context.Context, domainID uuid.UUID, f models.NonComplianceFilter) ([]*models.NonComplianceCase, int, error) {
	var w whereClause
	w.add("domain_id = ?", domainID)
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Severity != "" {
		w.add("severity = ?", f.Severity)
	}
	if f.CheckID != nil {
		w.add("check_id = ?", *f.CheckID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM non_compliance_cases "+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := clampLimit(f.Limit, 50, 500)
	query := fmt.Sprintf("SELECT %s FROM non_compliance_cases %s ORDER BY detected_at DESC LIMIT %s OFFSET $%d",
		caseColumns, w.String(), w.next(), len(w.args)+2)
	args := append(w.args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	cases := make([]*models.NonComplianceCase, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		cases = append(cases, c)
	}
	return cases, total, rows.Err()
}

// ListByCheck returns a check's cases oldest first, which is the order
// the sync matcher consumes them in.
func (r *NonComplianceRepo) ListByCheck(ctx context.Context, domainID, checkID uuid.UUID) ([]*models.NonComplianceCase, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+caseColumns+" FROM non_compliance_cases WHERE domain_id = $1 AND check_id = $2 ORDER BY detected_at, id",
		domainID, checkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := make([]*models.NonComplianceCase, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (r *NonComplianceRepo) Update(ctx context.Context, c *models.NonComplianceCase) error {
	return requireAffected(r.pool.Exec(ctx, `
		UPDATE non_compliance_cases
		SET parameter_id = $1, parameter_name = $2, description = $3, severity = $4, status = $5,
			resolved_at = $6, resolution_notes = $7
		WHERE id = $8 AND domain_id = $9`,
		c.ParameterID, c.ParameterName, c.Description, c.Severity, c.Status,
		c.ResolvedAt, c.ResolutionNotes, c.ID, c.DomainID,
	))
}

func (r *NonComplianceRepo) Delete(ctx context.Context, domainID, id uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx, "DELETE FROM non_compliance_cases WHERE id = $1 AND domain_id = $2", id, domainID))
}

// ApplySync creates and resolves cases from a sync plan atomically. The
// created cases are written back into the plan's actions.
func (r *NonComplianceRepo) ApplySync(ctx context.Context, domainID, checkID, userID uuid.UUID, plan *models.SyncPlan) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := range plan.Create {
		action := &plan.Create[i]
		c := &models.NonComplianceCase{
			ID:            uuid.New(),
			DomainID:      domainID,
			CheckID:       checkID,
			ParameterID:   action.Parameter.ParameterID,
			ParameterName: action.Parameter.Name,
			Description:   fmt.Sprintf("Measured value %q is out of compliance", action.Parameter.Value),
			Severity:      models.SeverityMedium,
			Status:        models.CaseOpen,
			CreatedBy:     userID,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO non_compliance_cases (id, domain_id, check_id, parameter_id, parameter_name, description, severity, status, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING detected_at`,
			c.ID, c.DomainID, c.CheckID, c.ParameterID, c.ParameterName, c.Description, c.Severity, c.Status, c.CreatedBy,
		).Scan(&c.DetectedAt)
		if err != nil {
			return fmt.Errorf("create case for %q: %w", c.ParameterName, err)
		}
		action.Case = c
	}

	for i := range plan.Resolve {
		action := &plan.Resolve[i]
		err := tx.QueryRow(ctx, `
			UPDATE non_compliance_cases
			SET status = 'resolved', resolved_at = NOW(),
				resolution_notes = CASE WHEN resolution_notes = '' THEN 'Resolved by parameter sync' ELSE resolution_notes END
			WHERE id = $1 AND domain_id = $2 AND status IN ('open', 'in_progress')
			RETURNING status, resolved_at, resolution_notes`,
			action.Case.ID, domainID,
		).Scan(&action.Case.Status, &action.Case.ResolvedAt, &action.Case.ResolutionNotes)
		if err != nil {
			return fmt.Errorf("resolve case %s: %w", action.Case.ID, err)
		}
	}

	return tx.Commit(ctx)
}
