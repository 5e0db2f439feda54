package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
	"inspecta-backend/internal/repository"
)

const maxReportWindow = 366 * 24 * time.Hour

type reportStore interface {
	ChecksByStatus(ctx context.Context, domainID uuid.UUID, from, to time.Time) (map[string]int, error)
	NonComplianceBySeverity(ctx context.Context, domainID uuid.UUID, from, to time.Time) (map[string]int, error)
	NonComplianceByStatus(ctx context.Context, domainID uuid.UUID, from, to time.Time) (map[string]int, error)
	OperatorStats(ctx context.Context, domainID uuid.UUID, from, to time.Time) ([]models.OperatorStats, error)
	ExportRows(ctx context.Context, domainID uuid.UUID, from, to time.Time) ([]repository.ExportRow, error)
}

type ReportService struct {
	reports reportStore
	jobs    Enqueuer
	jobRepo jobStore
	logger  *zap.Logger
}

func NewReportService(reports reportStore, jobs Enqueuer, jobRepo jobStore, logger *zap.Logger) *ReportService {
	return &ReportService{reports: reports, jobs: jobs, jobRepo: jobRepo, logger: logger}
}

func validateWindow(from, to time.Time) error {
	fieldErrors := make(map[string]string)
	if from.IsZero() {
		fieldErrors["from"] = "Start is required"
	}
	if to.IsZero() {
		fieldErrors["to"] = "End is required"
	}
	if len(fieldErrors) == 0 {
		if !from.Before(to) {
			fieldErrors["to"] = "End must be after the start"
		} else if to.Sub(from) > maxReportWindow {
			fieldErrors["to"] = "Report window is limited to one year"
		}
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

// Summary aggregates the domain's activity in [from, to). The underlying
// queries run concurrently.
func (s *ReportService) Summary(ctx context.Context, domainID uuid.UUID, from, to time.Time) (*models.ReportSummary, error) {
	if err := validateWindow(from, to); err != nil {
		return nil, err
	}

	summary := &models.ReportSummary{From: from, To: to}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.reports.ChecksByStatus(gctx, domainID, from, to)
		summary.ChecksByStatus = m
		return err
	})
	g.Go(func() error {
		m, err := s.reports.NonComplianceBySeverity(gctx, domainID, from, to)
		summary.NonComplianceBySeverity = m
		return err
	})
	g.Go(func() error {
		m, err := s.reports.NonComplianceByStatus(gctx, domainID, from, to)
		summary.NonComplianceByStatus = m
		return err
	})
	g.Go(func() error {
		ops, err := s.reports.OperatorStats(gctx, domainID, from, to)
		summary.Operators = ops
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	for _, n := range summary.ChecksByStatus {
		summary.TotalChecks += n
	}
	summary.CompletionRate = completionRate(summary.ChecksByStatus)
	if summary.Operators == nil {
		summary.Operators = make([]models.OperatorStats, 0)
	}
	return summary, nil
}

// completionRate is completed checks over checks that were not cancelled.
func completionRate(byStatus map[string]int) float64 {
	total := 0
	for status, n := range byStatus {
		if status != models.CheckCancelled {
			total += n
		}
	}
	if total == 0 {
		return 0
	}
	return float64(byStatus[models.CheckCompleted]) / float64(total)
}

// RequestExport queues a CSV export of the window.
func (s *ReportService) RequestExport(ctx context.Context, caller middleware.Identity, req models.ExportRequest) (*models.Job, error) {
	if err := validateWindow(req.From, req.To); err != nil {
		return nil, err
	}

	config, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	job := &models.Job{
		DomainID:    caller.DomainID,
		UserID:      caller.UserID,
		Type:        models.JobReportExport,
		ReferenceID: caller.DomainID,
		ConfigJSON:  config,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ExportFile returns the stored file of a finished export job.
func (s *ReportService) ExportFile(ctx context.Context, domainID, jobID uuid.UUID) (string, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return "", notFound(err, "Export not found")
	}
	if job.DomainID != domainID || job.Type != models.JobReportExport {
		return "", &NotFoundError{Message: "Export not found"}
	}
	if job.Status != models.JobCompleted || job.ResultPath == nil {
		return "", &ConflictError{Message: fmt.Sprintf("Export is %s", job.Status)}
	}
	return *job.ResultPath, nil
}

// WriteExport writes the export rows of the job's window as CSV.
func (s *ReportService) WriteExport(ctx context.Context, job *models.Job, w io.Writer) error {
	var req models.ExportRequest
	if err := json.Unmarshal(job.ConfigJSON, &req); err != nil {
		return fmt.Errorf("invalid export config: %w", err)
	}

	rows, err := s.reports.ExportRows(ctx, job.DomainID, req.From, req.To)
	if err != nil {
		return fmt.Errorf("failed to load export rows: %w", err)
	}
	return WriteExportCSV(w, rows)
}

var exportHeader = []string{
	"check_id", "scheduled_for", "task", "object", "operator", "status", "completed_at",
	"non_compliances", "open_cases",
}

func WriteExportCSV(w io.Writer, rows []repository.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	for _, row := range rows {
		completed := ""
		if row.CompletedAt != nil {
			completed = row.CompletedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			row.CheckID.String(),
			row.ScheduledFor.UTC().Format(time.RFC3339),
			row.TaskTitle,
			row.ObjectName,
			row.Operator,
			row.Status,
			completed,
			strconv.Itoa(row.NonCompliances),
			strconv.Itoa(row.OpenCases),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
