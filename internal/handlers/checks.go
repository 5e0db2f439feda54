package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type checkService interface {
	List(ctx context.Context, caller middleware.Identity, f models.CheckFilter) ([]*models.Check, error)
	Get(ctx context.Context, caller middleware.Identity, id uuid.UUID) (*models.Check, error)
	Start(ctx context.Context, caller middleware.Identity, id uuid.UUID) (*models.Check, error)
	Complete(ctx context.Context, caller middleware.Identity, id uuid.UUID, req models.CompleteCheckRequest) (*models.Check, error)
}

type caseSyncService interface {
	Sync(ctx context.Context, caller middleware.Identity, checkID uuid.UUID, req models.SyncRequest) (*models.SyncPlan, error)
}

type CheckHandler struct {
	checks checkService
	syncer caseSyncService
}

func NewCheckHandler(checks checkService, syncer caseSyncService) *CheckHandler {
	return &CheckHandler{checks: checks, syncer: syncer}
}

func (h *CheckHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryFilters(r)
	f := models.CheckFilter{
		Status:     r.URL.Query().Get("status"),
		OperatorID: q.uuid("operator_id"),
		TaskID:     q.uuid("task_id"),
		From:       q.time("from"),
		To:         q.time("to"),
		Limit:      q.int("limit"),
		Offset:     q.int("offset"),
	}
	if err := q.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	checks, err := h.checks.List(r.Context(), middleware.GetIdentity(r.Context()), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"checks": checks})
}

func (h *CheckHandler) Get(w http.ResponseWriter, r *http.Request) {
	checkID, ok := urlID(w, r, "id", "check")
	if !ok {
		return
	}
	check, err := h.checks.Get(r.Context(), middleware.GetIdentity(r.Context()), checkID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *CheckHandler) Start(w http.ResponseWriter, r *http.Request) {
	checkID, ok := urlID(w, r, "id", "check")
	if !ok {
		return
	}
	check, err := h.checks.Start(r.Context(), middleware.GetIdentity(r.Context()), checkID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *CheckHandler) Complete(w http.ResponseWriter, r *http.Request) {
	checkID, ok := urlID(w, r, "id", "check")
	if !ok {
		return
	}

	var req models.CompleteCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	check, err := h.checks.Complete(r.Context(), middleware.GetIdentity(r.Context()), checkID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// SyncNonCompliances reconciles the caller's local parameters with the
// check's cases. dry_run may come in the body or the query string.
func (h *CheckHandler) SyncNonCompliances(w http.ResponseWriter, r *http.Request) {
	checkID, ok := urlID(w, r, "id", "check")
	if !ok {
		return
	}

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if r.URL.Query().Get("dry_run") == "true" {
		req.DryRun = true
	}

	plan, err := h.syncer.Sync(r.Context(), middleware.GetIdentity(r.Context()), checkID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
