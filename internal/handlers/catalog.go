package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type catalogService interface {
	ListObjectTypes(ctx context.Context, domainID uuid.UUID) ([]*models.ObjectType, error)
	GetObjectType(ctx context.Context, domainID, id uuid.UUID) (*models.ObjectType, error)
	SaveObjectType(ctx context.Context, t *models.ObjectType) error
	DeleteObjectType(ctx context.Context, domainID, id uuid.UUID) error

	ListObjects(ctx context.Context, domainID uuid.UUID, objectTypeID *uuid.UUID) ([]*models.FacilityObject, error)
	GetObject(ctx context.Context, domainID, id uuid.UUID) (*models.FacilityObject, error)
	SaveObject(ctx context.Context, o *models.FacilityObject) error
	DeleteObject(ctx context.Context, domainID, id uuid.UUID) error

	ListParameters(ctx context.Context, domainID uuid.UUID, objectTypeID *uuid.UUID) ([]*models.InspectionParameter, error)
	GetParameter(ctx context.Context, domainID, id uuid.UUID) (*models.InspectionParameter, error)
	SaveParameter(ctx context.Context, p *models.InspectionParameter) error
	DeleteParameter(ctx context.Context, domainID, id uuid.UUID) error
}

// CatalogHandler serves object types, facility objects and inspection
// parameters. Reads are open to every role; writes are guarded in the
// router.
type CatalogHandler struct {
	catalog catalogService
}

func NewCatalogHandler(catalog catalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ──── Object types ────

func (h *CatalogHandler) ListObjectTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.catalog.ListObjectTypes(r.Context(), middleware.GetIdentity(r.Context()).DomainID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object_types": types})
}

func (h *CatalogHandler) GetObjectType(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "object type")
	if !ok {
		return
	}
	t, err := h.catalog.GetObjectType(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *CatalogHandler) CreateObjectType(w http.ResponseWriter, r *http.Request) {
	h.saveObjectType(w, r, uuid.Nil, http.StatusCreated)
}

func (h *CatalogHandler) UpdateObjectType(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "object type")
	if !ok {
		return
	}
	h.saveObjectType(w, r, id, http.StatusOK)
}

func (h *CatalogHandler) saveObjectType(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	var t models.ObjectType
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	t.ID = id
	t.DomainID = middleware.GetIdentity(r.Context()).DomainID

	if err := h.catalog.SaveObjectType(r.Context(), &t); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, status, t)
}

func (h *CatalogHandler) DeleteObjectType(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "object type")
	if !ok {
		return
	}
	if err := h.catalog.DeleteObjectType(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Object type deleted"})
}

// ──── Facility objects ────

func (h *CatalogHandler) ListObjects(w http.ResponseWriter, r *http.Request) {
	q := newQueryFilters(r)
	typeID := q.uuid("object_type_id")
	if err := q.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	objects, err := h.catalog.ListObjects(r.Context(), middleware.GetIdentity(r.Context()).DomainID, typeID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"objects": objects})
}

func (h *CatalogHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "object")
	if !ok {
		return
	}
	o, err := h.catalog.GetObject(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *CatalogHandler) CreateObject(w http.ResponseWriter, r *http.Request) {
	h.saveObject(w, r, uuid.Nil, http.StatusCreated)
}

func (h *CatalogHandler) UpdateObject(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "object")
	if !ok {
		return
	}
	h.saveObject(w, r, id, http.StatusOK)
}

func (h *CatalogHandler) saveObject(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	var o models.FacilityObject
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	o.ID = id
	o.DomainID = middleware.GetIdentity(r.Context()).DomainID

	if err := h.catalog.SaveObject(r.Context(), &o); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, status, o)
}

func (h *CatalogHandler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "object")
	if !ok {
		return
	}
	if err := h.catalog.DeleteObject(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Object deleted"})
}

// ──── Inspection parameters ────

func (h *CatalogHandler) ListParameters(w http.ResponseWriter, r *http.Request) {
	q := newQueryFilters(r)
	typeID := q.uuid("object_type_id")
	if err := q.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	params, err := h.catalog.ListParameters(r.Context(), middleware.GetIdentity(r.Context()).DomainID, typeID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"parameters": params})
}

func (h *CatalogHandler) GetParameter(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "parameter")
	if !ok {
		return
	}
	p, err := h.catalog.GetParameter(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) CreateParameter(w http.ResponseWriter, r *http.Request) {
	h.saveParameter(w, r, uuid.Nil, http.StatusCreated)
}

func (h *CatalogHandler) UpdateParameter(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "parameter")
	if !ok {
		return
	}
	h.saveParameter(w, r, id, http.StatusOK)
}

func (h *CatalogHandler) saveParameter(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	p := models.InspectionParameter{IsActive: true}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	p.ID = id
	p.DomainID = middleware.GetIdentity(r.Context()).DomainID

	if err := h.catalog.SaveParameter(r.Context(), &p); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, status, p)
}

func (h *CatalogHandler) DeleteParameter(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "parameter")
	if !ok {
		return
	}
	if err := h.catalog.DeleteParameter(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Parameter deleted"})
}
