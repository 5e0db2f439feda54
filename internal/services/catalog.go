package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"inspecta-backend/internal/models"
)

type catalogStore interface {
	ListObjectTypes(ctx context.Context, domainID uuid.UUID) ([]*models.ObjectType, error)
	GetObjectType(ctx context.Context, domainID, id uuid.UUID) (*models.ObjectType, error)
	CreateObjectType(ctx context.Context, t *models.ObjectType) error
	UpdateObjectType(ctx context.Context, t *models.ObjectType) error
	DeleteObjectType(ctx context.Context, domainID, id uuid.UUID) error

	ListObjects(ctx context.Context, domainID uuid.UUID, objectTypeID *uuid.UUID) ([]*models.FacilityObject, error)
	GetObject(ctx context.Context, domainID, id uuid.UUID) (*models.FacilityObject, error)
	CreateObject(ctx context.Context, o *models.FacilityObject) error
	UpdateObject(ctx context.Context, o *models.FacilityObject) error
	DeleteObject(ctx context.Context, domainID, id uuid.UUID) error

	ListParameters(ctx context.Context, domainID uuid.UUID, objectTypeID *uuid.UUID) ([]*models.InspectionParameter, error)
	GetParameter(ctx context.Context, domainID, id uuid.UUID) (*models.InspectionParameter, error)
	CreateParameter(ctx context.Context, p *models.InspectionParameter) error
	UpdateParameter(ctx context.Context, p *models.InspectionParameter) error
	DeleteParameter(ctx context.Context, domainID, id uuid.UUID) error
}

// CatalogService manages object types, facility objects and inspection
// parameters of a domain.
type CatalogService struct {
	store catalogStore
}

func NewCatalogService(store catalogStore) *CatalogService {
	return &CatalogService{store: store}
}

// ──── Object types ────

func (s *CatalogService) ListObjectTypes(ctx context.Context, domainID uuid.UUID) ([]*models.ObjectType, error) {
	return s.store.ListObjectTypes(ctx, domainID)
}

func (s *CatalogService) GetObjectType(ctx context.Context, domainID, id uuid.UUID) (*models.ObjectType, error) {
	t, err := s.store.GetObjectType(ctx, domainID, id)
	if err != nil {
		return nil, notFound(err, "Object type not found")
	}
	return t, nil
}

func (s *CatalogService) SaveObjectType(ctx context.Context, t *models.ObjectType) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Description = strings.TrimSpace(t.Description)
	if t.Name == "" {
		return &ValidationError{Fields: map[string]string{"name": "Name is required"}}
	}

	var err error
	if t.ID == uuid.Nil {
		err = s.store.CreateObjectType(ctx, t)
	} else {
		err = s.store.UpdateObjectType(ctx, t)
	}
	return storeError(err, "An object type with this name already exists", "Object type not found")
}

func (s *CatalogService) DeleteObjectType(ctx context.Context, domainID, id uuid.UUID) error {
	return storeError(s.store.DeleteObjectType(ctx, domainID, id), "", "Object type not found")
}

// ──── Facility objects ────

func (s *CatalogService) ListObjects(ctx context.Context, domainID uuid.UUID, objectTypeID *uuid.UUID) ([]*models.FacilityObject, error) {
	return s.store.ListObjects(ctx, domainID, objectTypeID)
}

func (s *CatalogService) GetObject(ctx context.Context, domainID, id uuid.UUID) (*models.FacilityObject, error) {
	o, err := s.store.GetObject(ctx, domainID, id)
	if err != nil {
		return nil, notFound(err, "Object not found")
	}
	return o, nil
}

func (s *CatalogService) SaveObject(ctx context.Context, o *models.FacilityObject) error {
	o.Name = strings.TrimSpace(o.Name)
	o.Address = strings.TrimSpace(o.Address)

	fieldErrors := make(map[string]string)
	if o.Name == "" {
		fieldErrors["name"] = "Name is required"
	}
	if o.ObjectTypeID == uuid.Nil {
		fieldErrors["object_type_id"] = "Object type is required"
	} else if _, err := s.store.GetObjectType(ctx, o.DomainID, o.ObjectTypeID); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		fieldErrors["object_type_id"] = "Object type not found"
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}

	var err error
	if o.ID == uuid.Nil {
		err = s.store.CreateObject(ctx, o)
	} else {
		err = s.store.UpdateObject(ctx, o)
	}
	return storeError(err, "An object with this name already exists", "Object not found")
}

func (s *CatalogService) DeleteObject(ctx context.Context, domainID, id uuid.UUID) error {
	return storeError(s.store.DeleteObject(ctx, domainID, id), "", "Object not found")
}

// ──── Inspection parameters ────

func (s *CatalogService) ListParameters(ctx context.Context, domainID uuid.UUID, objectTypeID *uuid.UUID) ([]*models.InspectionParameter, error) {
	return s.store.ListParameters(ctx, domainID, objectTypeID)
}

func (s *CatalogService) GetParameter(ctx context.Context, domainID, id uuid.UUID) (*models.InspectionParameter, error) {
	p, err := s.store.GetParameter(ctx, domainID, id)
	if err != nil {
		return nil, notFound(err, "Parameter not found")
	}
	return p, nil
}

// ValidateParameter checks a parameter's own fields. The object type is
// verified separately against the store.
func ValidateParameter(p *models.InspectionParameter) map[string]string {
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
	p.Unit = strings.TrimSpace(p.Unit)
	p.ExpectedValue = strings.TrimSpace(p.ExpectedValue)

	fieldErrors := make(map[string]string)
	if p.Name == "" {
		fieldErrors["name"] = "Name is required"
	}
	if p.Code == "" {
		fieldErrors["code"] = "Code is required"
	}
	if p.MinValue != nil && p.MaxValue != nil && *p.MinValue > *p.MaxValue {
		fieldErrors["min_value"] = "Minimum must not exceed maximum"
	}
	if p.ObjectTypeID == uuid.Nil {
		fieldErrors["object_type_id"] = "Object type is required"
	}
	return fieldErrors
}

func (s *CatalogService) SaveParameter(ctx context.Context, p *models.InspectionParameter) error {
	fieldErrors := ValidateParameter(p)
	if _, ok := fieldErrors["object_type_id"]; !ok {
		if _, err := s.store.GetObjectType(ctx, p.DomainID, p.ObjectTypeID); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			fieldErrors["object_type_id"] = "Object type not found"
		}
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}

	var err error
	if p.ID == uuid.Nil {
		err = s.store.CreateParameter(ctx, p)
	} else {
		err = s.store.UpdateParameter(ctx, p)
	}
	return storeError(err, "A parameter with this code already exists for the object type", "Parameter not found")
}

func (s *CatalogService) DeleteParameter(ctx context.Context, domainID, id uuid.UUID) error {
	return storeError(s.store.DeleteParameter(ctx, domainID, id), "", "Parameter not found")
}
