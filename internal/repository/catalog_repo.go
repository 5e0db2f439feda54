package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspecta-backend/internal/models"
)

// CatalogRepo stores object types, facility objects and the inspection
// parameters defined per object type.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// ──── Object types ────

func (r *CatalogRepo) ListObjectTypes(ctx context.Context, domainID uuid.UUID) ([]*models.ObjectType, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, domain_id, name, description, created_at FROM object_types WHERE domain_id = $1 ORDER BY name", domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make([]*models.ObjectType, 0)
	for rows.Next() {
		t := &models.ObjectType{}
		if err := rows.Scan(&t.ID, &t.DomainID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *CatalogRepo) GetObjectType(ctx context.Context, domainID, id uuid.UUID) (*models.ObjectType, error) {
	t := &models.ObjectType{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, domain_id, name, description, created_at FROM object_types WHERE id = $1 AND domain_id = $2", id, domainID,
	).Scan(&t.ID, &t.DomainID, &t.Name, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *CatalogRepo) CreateObjectType(ctx context.Context, t *models.ObjectType) error {
	t.ID = uuid.New()
	return r.pool.QueryRow(ctx,
		"INSERT INTO object_types (id, domain_id, name, description) VALUES ($1, $2, $3, $4) RETURNING created_at",
		t.ID, t.DomainID, t.Name, t.Description,
	).Scan(&t.CreatedAt)
}

func (r *CatalogRepo) UpdateObjectType(ctx context.Context, t *models.ObjectType) error {
	return requireAffected(r.pool.Exec(ctx,
		"UPDATE object_types SET name = $1, description = $2 WHERE id = $3 AND domain_id = $4",
		t.Name, t.Description, t.ID, t.DomainID,
	))
}

func (r *CatalogRepo) DeleteObjectType(ctx context.Context, domainID, id uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx, "DELETE FROM object_types WHERE id = $1 AND domain_id = $2", id, domainID))
}

// ──── Facility objects ────

func (r *CatalogRepo) ListObjects(ctx context.Context, domainID uuid.UUID, objectTypeID *uuid.UUID) ([]*models.FacilityObject, error) {
	var w whereClause
	w.add("domain_id = ?", domainID)
	if objectTypeID != nil {
		w.add("object_type_id = ?", *objectTypeID)
	}

	rows, err := r.pool.Query(ctx,
		"SELECT id, domain_id, object_type_id, name, address, created_at FROM facility_objects "+w.String()+" ORDER BY name",
		w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	objects := make([]*models.FacilityObject, 0)
	for rows.Next() {
		o := &models.FacilityObject{}
		if err := rows.Scan(&o.ID, &o.DomainID, &o.ObjectTypeID, &o.Name, &o.Address, &o.CreatedAt); err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, rows.Err()
}

func (r *CatalogRepo) GetObject(ctx context.Context, domainID, id uuid.UUID) (*models.FacilityObject, error) {
	o := &models.FacilityObject{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, domain_id, object_type_id, name, address, created_at FROM facility_objects WHERE id = $1 AND domain_id = $2",
		id, domainID,
	).Scan(&o.ID, &o.DomainID, &o.ObjectTypeID, &o.Name, &o.Address, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *CatalogRepo) CreateObject(ctx context.Context, o *models.FacilityObject) error {
	o.ID = uuid.New()
	return r.pool.QueryRow(ctx,
		"INSERT INTO facility_objects (id, domain_id, object_type_id, name, address) VALUES ($1, $2, $3, $4, $5) RETURNING created_at",
		o.ID, o.DomainID, o.ObjectTypeID, o.Name, o.Address,
	).Scan(&o.CreatedAt)
}

func (r *CatalogRepo) UpdateObject(ctx context.Context, o *models.FacilityObject) error {
	return requireAffected(r.pool.Exec(ctx,
		"UPDATE facility_objects SET object_type_id = $1, name = $2, address = $3 WHERE id = $4 AND domain_id = $5",
		o.ObjectTypeID, o.Name, o.Address, o.ID, o.DomainID,
	))
}

func (r *CatalogRepo) DeleteObject(ctx context.Context, domainID, id uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx, "DELETE FROM facility_objects WHERE id = $1 AND domain_id = $2", id, domainID))
}

// ──── Inspection parameters ────

const parameterColumns = `id, domain_id, object_type_id, code, name, unit, expected_value, min_value, max_value, is_active, created_at`

func scanParameter(row interface{ Scan(...interface{}) error }) (*models.InspectionParameter, error) {
	p := &models.InspectionParameter{}
	err := row.Scan(
		&p.ID, &p.DomainID, &p.ObjectTypeID, &p.Code, &p.Name, &p.Unit,
		&p.ExpectedValue, &p.MinValue, &p.MaxValue, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *CatalogRepo) ListParameters(ctx context.Context, domainID uuid.UUID, objectTypeID *uuid.UUID) ([]*models.InspectionParameter, error) {
	var w whereClause
	w.add("domain_id = ?", domainID)
	if objectTypeID != nil {
		w.add("object_type_id = ?", *objectTypeID)
	}

	rows, err := r.pool.Query(ctx,
		"SELECT "+parameterColumns+" FROM inspection_parameters "+w.String()+" ORDER BY code", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	params := make([]*models.InspectionParameter, 0)
	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

func (r *CatalogRepo) GetParameter(ctx context.Context, domainID, id uuid.UUID) (*models.InspectionParameter, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+parameterColumns+" FROM inspection_parameters WHERE id = $1 AND domain_id = $2", id, domainID)
	return scanParameter(row)
}

// GetParametersByIDs returns the parameters found, keyed by id. Unknown ids
// are simply absent from the map.
func (r *CatalogRepo) GetParametersByIDs(ctx context.Context, domainID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*models.InspectionParameter, error) {
	result := make(map[uuid.UUID]*models.InspectionParameter, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx,
		"SELECT "+parameterColumns+" FROM inspection_parameters WHERE domain_id = $1 AND id = ANY($2::uuid[])",
		domainID, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (r *CatalogRepo) CreateParameter(ctx context.Context, p *models.InspectionParameter) error {
	p.ID = uuid.New()
	p.IsActive = true
	return r.pool.QueryRow(ctx, `
		INSERT INTO inspection_parameters (id, domain_id, object_type_id, code, name, unit, expected_value, min_value, max_value, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		p.ID, p.DomainID, p.ObjectTypeID, p.Code, p.Name, p.Unit, p.ExpectedValue, p.MinValue, p.MaxValue, p.IsActive,
	).Scan(&p.CreatedAt)
}

func (r *CatalogRepo) UpdateParameter(ctx context.Context, p *models.InspectionParameter) error {
	return requireAffected(r.pool.Exec(ctx, `
		UPDATE inspection_parameters
		SET object_type_id = $1, code = $2, name = $3, unit = $4, expected_value = $5,
			min_value = $6, max_value = $7, is_active = $8
		WHERE id = $9 AND domain_id = $10`,
		p.ObjectTypeID, p.Code, p.Name, p.Unit, p.ExpectedValue, p.MinValue, p.MaxValue, p.IsActive, p.ID, p.DomainID,
	))
}

func (r *CatalogRepo) DeleteParameter(ctx context.Context, domainID, id uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx, "DELETE FROM inspection_parameters WHERE id = $1 AND domain_id = $2", id, domainID))
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
