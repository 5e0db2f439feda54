package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspecta-backend/internal/models"
)

type memTaskStore struct {
	byID map[uuid.UUID]*models.Task
}

func (m *memTaskStore) Create(ctx context.Context, t *models.Task) error {
	t.ID = uuid.New()
	m.byID[t.ID] = t
	return nil
}

func (m *memTaskStore) GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Task, error) {
	t, ok := m.byID[id]
	if !ok || t.DomainID != domainID {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *memTaskStore) List(ctx context.Context, domainID uuid.UUID, f models.TaskFilter) ([]*models.Task, int, error) {
	return nil, 0, nil
}

func (m *memTaskStore) Update(ctx context.Context, t *models.Task) error {
	if _, ok := m.byID[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.byID[t.ID] = t
	return nil
}

func (m *memTaskStore) SetStatus(ctx context.Context, domainID, id uuid.UUID, status string) error {
	t, ok := m.byID[id]
	if !ok || t.DomainID != domainID {
		return pgx.ErrNoRows
	}
	t.Status = status
	return nil
}

type recordingSchedule struct {
	inserted      []time.Time
	kept          []time.Time
	syncedFrom    time.Time
	cancelledTask []uuid.UUID
}

func (r *recordingSchedule) InsertOccurrences(ctx context.Context, task *models.Task, occurrences []time.Time) (int, error) {
	r.inserted = occurrences
	return len(occurrences), nil
}

func (r *recordingSchedule) SyncPendingAssignment(ctx context.Context, task *models.Task, from time.Time) error {
	r.syncedFrom = from
	return nil
}

func (r *recordingSchedule) CancelStalePending(ctx context.Context, taskID uuid.UUID, from time.Time, keep []time.Time) (int, error) {
	r.kept = keep
	return 2, nil
}

func (r *recordingSchedule) CancelPendingForTask(ctx context.Context, taskID uuid.UUID) error {
	r.cancelledTask = append(r.cancelledTask, taskID)
	return nil
}

type memObjects struct {
	byID map[uuid.UUID]*models.FacilityObject
}

func (m *memObjects) GetObject(ctx context.Context, domainID, id uuid.UUID) (*models.FacilityObject, error) {
	if o, ok := m.byID[id]; ok && o.DomainID == domainID {
		return o, nil
	}
	return nil, pgx.ErrNoRows
}

type recordingMailer struct {
	assigned []string
	overdue  []string
}

func (r *recordingMailer) SendAssignmentEmail(to, fullName string, task *models.Task) error {
	r.assigned = append(r.assigned, to)
	return nil
}

func (r *recordingMailer) SendOverdueEmail(to, fullName string, check *models.Check) error {
	r.overdue = append(r.overdue, to)
	return nil
}

type taskFixture struct {
	svc      *TaskService
	tasks    *memTaskStore
	schedule *recordingSchedule
	queue    *recordingQueue
	mailer   *recordingMailer
	admin    *models.User
	operator *models.User
	object   *models.FacilityObject
	users    *memUsers
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	domainID := uuid.New()
	admin := &models.User{ID: uuid.New(), DomainID: domainID, Username: "admin", Role: models.RoleAdmin, IsActive: true}
	operator := &models.User{ID: uuid.New(), DomainID: domainID, Username: "ivanov", Email: "ivanov@example.com", Role: models.RoleOperator, IsActive: true}
	object := &models.FacilityObject{ID: uuid.New(), DomainID: domainID, Name: "Boiler room"}

	f := &taskFixture{
		tasks:    &memTaskStore{byID: make(map[uuid.UUID]*models.Task)},
		schedule: &recordingSchedule{},
		queue:    &recordingQueue{},
		mailer:   &recordingMailer{},
		admin:    admin,
		operator: operator,
		object:   object,
		users:    newMemUsers(admin, operator),
	}
	f.svc = NewTaskService(f.tasks, f.schedule, &memObjects{byID: map[uuid.UUID]*models.FacilityObject{object.ID: object}},
		f.users, f.queue, f.mailer, testLogger, 30)
	return f
}

func (f *taskFixture) request() models.TaskRequest {
	return models.TaskRequest{
		Title:      "  Weekly boiler check ",
		ObjectID:   f.object.ID,
		OperatorID: f.operator.ID,
		StartsAt:   time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
		Recurrence: models.RecurrenceWeekly,
	}
}

func TestTaskService_Create(t *testing.T) {
	f := newTaskFixture(t)

	task, err := f.svc.Create(context.Background(), callerFor(f.admin), f.request())
	require.NoError(t, err)
	assert.Equal(t, "Weekly boiler check", task.Title)
	assert.Equal(t, models.TaskPlanned, task.Status)
	assert.Equal(t, models.PriorityNormal, task.Priority)
	assert.Equal(t, f.admin.ID, task.CreatedBy)

	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, models.JobCheckGeneration, f.queue.jobs[0].Type)
	assert.Equal(t, task.ID, f.queue.jobs[0].ReferenceID)
	assert.Equal(t, []string{"ivanov@example.com"}, f.mailer.assigned)
}

func TestTaskService_CreateValidation(t *testing.T) {
	f := newTaskFixture(t)
	inactive := &models.User{ID: uuid.New(), DomainID: f.admin.DomainID, Role: models.RoleOperator}
	f.users.byID[inactive.ID] = inactive

	tests := []struct {
		name   string
		mutate func(r *models.TaskRequest)
		field  string
	}{
		{"missing title", func(r *models.TaskRequest) { r.Title = "  " }, "title"},
		{"missing start", func(r *models.TaskRequest) { r.StartsAt = time.Time{} }, "starts_at"},
		{"bad recurrence", func(r *models.TaskRequest) { r.Recurrence = "yearly" }, "recurrence"},
		{"until before start", func(r *models.TaskRequest) {
			until := r.StartsAt.Add(-time.Hour)
			r.RecurrenceUntil = &until
		}, "recurrence_until"},
		{"bad priority", func(r *models.TaskRequest) { r.Priority = "urgent" }, "priority"},
		{"admin as assignee", func(r *models.TaskRequest) { r.OperatorID = f.admin.ID }, "operator_id"},
		{"inactive assignee", func(r *models.TaskRequest) { r.OperatorID = inactive.ID }, "operator_id"},
		{"unknown object", func(r *models.TaskRequest) { r.ObjectID = uuid.New() }, "object_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request()
			tt.mutate(&req)
			_, err := f.svc.Create(context.Background(), callerFor(f.admin), req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
	assert.Empty(t, f.queue.jobs)
}

func TestTaskService_UpdateNotifiesOnlyOnReassignment(t *testing.T) {
	f := newTaskFixture(t)
	task, err := f.svc.Create(context.Background(), callerFor(f.admin), f.request())
	require.NoError(t, err)

	req := f.request()
	req.Title = "Renamed"
	_, err = f.svc.Update(context.Background(), callerFor(f.admin), task.ID, req)
	require.NoError(t, err)
	assert.Len(t, f.mailer.assigned, 1)
	assert.Len(t, f.queue.jobs, 2)

	other := &models.User{ID: uuid.New(), DomainID: f.admin.DomainID, Email: "petrov@example.com", Role: models.RoleSupervisor, IsActive: true}
	f.users.byID[other.ID] = other
	req.OperatorID = other.ID
	_, err = f.svc.Update(context.Background(), callerFor(f.admin), task.ID, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"ivanov@example.com", "petrov@example.com"}, f.mailer.assigned)
}

func TestTaskService_Cancel(t *testing.T) {
	f := newTaskFixture(t)
	task, err := f.svc.Create(context.Background(), callerFor(f.admin), f.request())
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(context.Background(), f.admin.DomainID, task.ID))
	assert.Equal(t, []uuid.UUID{task.ID}, f.schedule.cancelledTask)

	_, err = f.svc.Update(context.Background(), callerFor(f.admin), task.ID, f.request())
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	err = f.svc.Cancel(context.Background(), f.admin.DomainID, uuid.New())
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestTaskService_GenerateChecks(t *testing.T) {
	f := newTaskFixture(t)
	task, err := f.svc.Create(context.Background(), callerFor(f.admin), f.request())
	require.NoError(t, err)

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	res, err := f.svc.GenerateChecks(context.Background(), f.admin.DomainID, task.ID)
	require.NoError(t, err)

	// Weekly from Monday 4 May: the 11th through 8 June fit in 30 days.
	want := []time.Time{
		time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 18, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 25, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, f.schedule.inserted)
	assert.Equal(t, want, f.schedule.kept)
	assert.Equal(t, now, f.schedule.syncedFrom)
	assert.Equal(t, GenerationResult{Created: 5, Cancelled: 2}, res)
}

func TestTaskService_GenerateChecksForCancelledTask(t *testing.T) {
	f := newTaskFixture(t)
	task, err := f.svc.Create(context.Background(), callerFor(f.admin), f.request())
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(context.Background(), f.admin.DomainID, task.ID))

	res, err := f.svc.GenerateChecks(context.Background(), f.admin.DomainID, task.ID)
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Nil(t, f.schedule.inserted)
	assert.Len(t, f.schedule.cancelledTask, 2)
}
