package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type nonComplianceService interface {
	List(ctx context.Context, domainID uuid.UUID, f models.NonComplianceFilter) ([]*models.NonComplianceCase, int, error)
	Get(ctx context.Context, domainID, id uuid.UUID) (*models.NonComplianceCase, error)
	Create(ctx context.Context, caller middleware.Identity, req models.NonComplianceRequest) (*models.NonComplianceCase, error)
	Update(ctx context.Context, caller middleware.Identity, id uuid.UUID, req models.NonComplianceRequest) (*models.NonComplianceCase, error)
	Delete(ctx context.Context, domainID, id uuid.UUID) error
}

type NonComplianceHandler struct {
	cases nonComplianceService
}

func NewNonComplianceHandler(cases nonComplianceService) *NonComplianceHandler {
	return &NonComplianceHandler{cases: cases}
}

func (h *NonComplianceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryFilters(r)
	f := models.NonComplianceFilter{
		Status:   r.URL.Query().Get("status"),
		Severity: r.URL.Query().Get("severity"),
		CheckID:  q.uuid("check_id"),
		Limit:    q.int("limit"),
		Offset:   q.int("offset"),
	}
	if err := q.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	cases, total, err := h.cases.List(r.Context(), middleware.GetIdentity(r.Context()).DomainID, f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"non_compliances": cases,
		"total":           total,
	})
}

func (h *NonComplianceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "non-compliance")
	if !ok {
		return
	}
	c, err := h.cases.Get(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *NonComplianceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.NonComplianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c, err := h.cases.Create(r.Context(), middleware.GetIdentity(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *NonComplianceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "non-compliance")
	if !ok {
		return
	}

	var req models.NonComplianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c, err := h.cases.Update(r.Context(), middleware.GetIdentity(r.Context()), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *NonComplianceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "non-compliance")
	if !ok {
		return
	}
	if err := h.cases.Delete(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Non-compliance deleted"})
}
