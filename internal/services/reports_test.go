package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspecta-backend/internal/models"
	"inspecta-backend/internal/repository"
)

func TestCompletionRate(t *testing.T) {
	assert.Zero(t, completionRate(nil))
	assert.Zero(t, completionRate(map[string]int{models.CheckCancelled: 4}))
	assert.InDelta(t, 0.75, completionRate(map[string]int{
		models.CheckCompleted: 3,
		models.CheckMissed:    1,
		models.CheckCancelled: 10,
	}), 1e-9)
}

func TestWriteExportCSV(t *testing.T) {
	completed := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	rows := []repository.ExportRow{
		{
			CheckID:        uuid.MustParse("7b0c2f0e-7d0a-4f57-9d0c-1f5c3a2b9e11"),
			ScheduledFor:   time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
			TaskTitle:      "Boiler, weekly",
			ObjectName:     "Boiler room",
			Operator:       "Ivan Ivanov",
			Status:         models.CheckCompleted,
			CompletedAt:    &completed,
			NonCompliances: 2,
			OpenCases:      1,
		},
		{
			CheckID:      uuid.MustParse("0f4e9a51-2c1b-4d8e-8a77-5b0f6c3d2e10"),
			ScheduledFor: time.Date(2026, 4, 3, 9, 0, 0, 0, time.UTC),
			TaskTitle:    "Fire exits",
			Status:       models.CheckMissed,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteExportCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, []string{
		"7b0c2f0e-7d0a-4f57-9d0c-1f5c3a2b9e11", "2026-04-02T09:00:00Z", "Boiler, weekly", "Boiler room",
		"Ivan Ivanov", "completed", "2026-04-02T10:30:00Z", "2", "1",
	}, records[1])
	assert.Equal(t, "", records[2][6])
}

type memJobs struct {
	byID map[uuid.UUID]*models.Job
}

func (m *memJobs) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	m.byID[j.ID] = j
	return nil
}

func (m *memJobs) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if j, ok := m.byID[id]; ok {
		return j, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memJobs) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if j, ok := m.byID[id]; ok {
		j.Status = status
		return nil
	}
	return pgx.ErrNoRows
}

func (m *memJobs) Cancel(ctx context.Context, id, userID uuid.UUID) error {
	j, ok := m.byID[id]
	if !ok || j.UserID != userID || j.Status != models.JobPending {
		return pgx.ErrNoRows
	}
	j.Status = models.JobCancelled
	return nil
}

func TestReportService_RequestExport(t *testing.T) {
	queue := &recordingQueue{}
	svc := NewReportService(nil, queue, &memJobs{byID: map[uuid.UUID]*models.Job{}}, testLogger)
	admin := &models.User{ID: uuid.New(), DomainID: uuid.New(), Role: models.RoleAdmin}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job, err := svc.RequestExport(context.Background(), callerFor(admin), models.ExportRequest{From: from, To: from.AddDate(0, 3, 0)})
	require.NoError(t, err)
	assert.Equal(t, models.JobReportExport, job.Type)

	var cfg models.ExportRequest
	require.NoError(t, json.Unmarshal(job.ConfigJSON, &cfg))
	assert.True(t, cfg.From.Equal(from))

	_, err = svc.RequestExport(context.Background(), callerFor(admin), models.ExportRequest{From: from, To: from.AddDate(2, 0, 0)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "to")

	_, err = svc.RequestExport(context.Background(), callerFor(admin), models.ExportRequest{})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "from")
}

func TestReportService_ExportFile(t *testing.T) {
	domainID := uuid.New()
	path := "/data/exports/report.csv"
	pending := &models.Job{ID: uuid.New(), DomainID: domainID, Type: models.JobReportExport, Status: models.JobPending}
	done := &models.Job{ID: uuid.New(), DomainID: domainID, Type: models.JobReportExport, Status: models.JobCompleted, ResultPath: &path}
	other := &models.Job{ID: uuid.New(), DomainID: domainID, Type: models.JobCheckGeneration, Status: models.JobCompleted}

	jobs := &memJobs{byID: map[uuid.UUID]*models.Job{pending.ID: pending, done.ID: done, other.ID: other}}
	svc := NewReportService(nil, &recordingQueue{}, jobs, testLogger)

	got, err := svc.ExportFile(context.Background(), domainID, done.ID)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = svc.ExportFile(context.Background(), domainID, pending.ID)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	var nf *NotFoundError
	_, err = svc.ExportFile(context.Background(), domainID, other.ID)
	require.ErrorAs(t, err, &nf)
	_, err = svc.ExportFile(context.Background(), uuid.New(), done.ID)
	require.ErrorAs(t, err, &nf)
}

func TestJobQueue_Cancel(t *testing.T) {
	domainID := uuid.New()
	owner := uuid.New()
	pending := &models.Job{ID: uuid.New(), DomainID: domainID, UserID: owner, Status: models.JobPending}
	running := &models.Job{ID: uuid.New(), DomainID: domainID, UserID: owner, Status: models.JobProcessing}
	q := NewJobQueue(&memJobs{byID: map[uuid.UUID]*models.Job{pending.ID: pending, running.ID: running}}, nil, testLogger)

	var forbidden *ForbiddenError
	require.ErrorAs(t, q.Cancel(context.Background(), domainID, uuid.New(), pending.ID), &forbidden)

	var conflict *ConflictError
	require.ErrorAs(t, q.Cancel(context.Background(), domainID, owner, running.ID), &conflict)

	var nf *NotFoundError
	require.ErrorAs(t, q.Cancel(context.Background(), uuid.New(), owner, pending.ID), &nf)

	require.NoError(t, q.Cancel(context.Background(), domainID, owner, pending.ID))
	assert.Equal(t, models.JobCancelled, pending.Status)
}

func TestJobQueue_EnqueueWithoutRedisFailsJob(t *testing.T) {
	jobs := &memJobs{byID: map[uuid.UUID]*models.Job{}}
	q := NewJobQueue(jobs, nil, testLogger)

	job := &models.Job{DomainID: uuid.New(), Type: models.JobCheckGeneration, Status: models.JobPending}
	require.Error(t, q.Enqueue(context.Background(), job))
	assert.Equal(t, models.JobFailed, jobs.byID[job.ID].Status)
	assert.JSONEq(t, "{}", string(job.ConfigJSON))
}
