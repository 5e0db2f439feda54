package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type jobService interface {
	Get(ctx context.Context, domainID, id uuid.UUID) (*models.Job, error)
	Cancel(ctx context.Context, domainID, userID, id uuid.UUID) error
}

type JobHandler struct {
	jobs jobService
}

func NewJobHandler(jobs jobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID, ok := urlID(w, r, "id", "job")
	if !ok {
		return
	}

	job, err := h.jobs.Get(r.Context(), middleware.GetIdentity(r.Context()).DomainID, jobID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID, ok := urlID(w, r, "id", "job")
	if !ok {
		return
	}

	id := middleware.GetIdentity(r.Context())
	if err := h.jobs.Cancel(r.Context(), id.DomainID, id.UserID, jobID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
}
