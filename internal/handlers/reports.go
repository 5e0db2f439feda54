package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type reportService interface {
	Summary(ctx context.Context, domainID uuid.UUID, from, to time.Time) (*models.ReportSummary, error)
	RequestExport(ctx context.Context, caller middleware.Identity, req models.ExportRequest) (*models.Job, error)
	ExportFile(ctx context.Context, domainID, jobID uuid.UUID) (string, error)
}

type ReportHandler struct {
	reports reportService
}

func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := newQueryFilters(r)
	from, to := q.time("from"), q.time("to")
	if err := q.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	var fromT, toT time.Time
	if from != nil {
		fromT = *from
	}
	if to != nil {
		toT = *to
	}

	summary, err := h.reports.Summary(r.Context(), middleware.GetIdentity(r.Context()).DomainID, fromT, toT)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ReportHandler) RequestExport(w http.ResponseWriter, r *http.Request) {
	var req models.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	job, err := h.reports.RequestExport(r.Context(), middleware.GetIdentity(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": job.ID, "status": job.Status})
}

func (h *ReportHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	jobID, ok := urlID(w, r, "job_id", "job")
	if !ok {
		return
	}

	path, err := h.reports.ExportFile(r.Context(), middleware.GetIdentity(r.Context()).DomainID, jobID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="inspections-%s.csv"`, jobID))
	http.ServeFile(w, r, path)
}
