package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type taskStore interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, domainID uuid.UUID, f models.TaskFilter) ([]*models.Task, int, error)
	Update(ctx context.Context, t *models.Task) error
	SetStatus(ctx context.Context, domainID, id uuid.UUID, status string) error
}

type scheduleStore interface {
	InsertOccurrences(ctx context.Context, task *models.Task, occurrences []time.Time) (int, error)
	SyncPendingAssignment(ctx context.Context, task *models.Task, from time.Time) error
	CancelStalePending(ctx context.Context, taskID uuid.UUID, from time.Time, keep []time.Time) (int, error)
	CancelPendingForTask(ctx context.Context, taskID uuid.UUID) error
}

type objectLookup interface {
	GetObject(ctx context.Context, domainID, id uuid.UUID) (*models.FacilityObject, error)
}

type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type assignmentNotifier interface {
	SendAssignmentEmail(to, fullName string, task *models.Task) error
}

type TaskService struct {
	tasks       taskStore
	checks      scheduleStore
	objects     objectLookup
	users       userLookup
	jobs        Enqueuer
	notifier    assignmentNotifier
	logger      *zap.Logger
	horizonDays int
	now         func() time.Time
}

func NewTaskService(
	tasks taskStore,
	checks scheduleStore,
	objects objectLookup,
	users userLookup,
	jobs Enqueuer,
	notifier assignmentNotifier,
	logger *zap.Logger,
	horizonDays int,
) *TaskService {
	return &TaskService{
		tasks:       tasks,
		checks:      checks,
		objects:     objects,
		users:       users,
		jobs:        jobs,
		notifier:    notifier,
		logger:      logger,
		horizonDays: horizonDays,
		now:         time.Now,
	}
}

func (s *TaskService) List(ctx context.Context, domainID uuid.UUID, f models.TaskFilter) ([]*models.Task, int, error) {
	if f.Status != "" && !isValidTaskStatus(f.Status) {
		return nil, 0, &ValidationError{Fields: map[string]string{"status": "Unknown task status"}}
	}
	return s.tasks.List(ctx, domainID, f)
}

func (s *TaskService) Get(ctx context.Context, domainID, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, domainID, id)
	if err != nil {
		return nil, notFound(err, "Task not found")
	}
	return task, nil
}

func (s *TaskService) Create(ctx context.Context, caller middleware.Identity, req models.TaskRequest) (*models.Task, error) {
	normalizeTaskRequest(&req)
	if req.Status == "" {
		req.Status = models.TaskPlanned
	}

	operator, err := s.validate(ctx, caller.DomainID, req)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		DomainID:        caller.DomainID,
		CreatedBy:       caller.UserID,
		Title:           req.Title,
		Description:     req.Description,
		ObjectID:        req.ObjectID,
		OperatorID:      req.OperatorID,
		Status:          req.Status,
		Priority:        req.Priority,
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
		Recurrence:      req.Recurrence,
		RecurrenceUntil: req.RecurrenceUntil,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, storeError(err, "Task already exists", "Task not found")
	}

	s.scheduleGeneration(ctx, caller, task)
	s.notifyAssignment(operator, task)
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, caller middleware.Identity, id uuid.UUID, req models.TaskRequest) (*models.Task, error) {
	task, err := s.Get(ctx, caller.DomainID, id)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskCancelled {
		return nil, &ConflictError{Message: "Cancelled tasks cannot be edited"}
	}

	normalizeTaskRequest(&req)
	if req.Status == "" {
		req.Status = task.Status
	}

	operator, err := s.validate(ctx, caller.DomainID, req)
	if err != nil {
		return nil, err
	}

	operatorChanged := task.OperatorID != req.OperatorID

	task.Title = req.Title
	task.Description = req.Description
	task.ObjectID = req.ObjectID
	task.OperatorID = req.OperatorID
	task.Status = req.Status
	task.Priority = req.Priority
	task.StartsAt = req.StartsAt
	task.DurationMinutes = req.DurationMinutes
	task.Recurrence = req.Recurrence
	task.RecurrenceUntil = req.RecurrenceUntil

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, storeError(err, "Task already exists", "Task not found")
	}

	s.scheduleGeneration(ctx, caller, task)
	if operatorChanged {
		s.notifyAssignment(operator, task)
	}
	return task, nil
}

// Cancel marks the task cancelled and cancels its pending checks.
func (s *TaskService) Cancel(ctx context.Context, domainID, id uuid.UUID) error {
	if err := s.tasks.SetStatus(ctx, domainID, id, models.TaskCancelled); err != nil {
		return notFound(err, "Task not found")
	}
	if err := s.checks.CancelPendingForTask(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel checks: %w", err)
	}
	return nil
}

// GenerationResult reports what a check-generation run changed.
type GenerationResult struct {
	Created   int `json:"created"`
	Cancelled int `json:"cancelled"`
}

// GenerateChecks materialises the task's occurrences inside the scheduling
// horizon as pending checks. Running it again is harmless: existing
// occurrences are kept and pending checks that no longer match the
// schedule are cancelled.
func (s *TaskService) GenerateChecks(ctx context.Context, domainID, taskID uuid.UUID) (GenerationResult, error) {
	var res GenerationResult

	task, err := s.tasks.GetByID(ctx, domainID, taskID)
	if err != nil {
		return res, fmt.Errorf("failed to load task: %w", err)
	}

	if task.Status == models.TaskCancelled || task.Status == models.TaskCompleted {
		return res, s.checks.CancelPendingForTask(ctx, task.ID)
	}

	now := s.now().UTC()
	horizon := now.AddDate(0, 0, s.horizonDays)
	occurrences := ExpandOccurrences(task.StartsAt, task.Recurrence, task.RecurrenceUntil, now, horizon, maxOccurrences)

	if err := s.checks.SyncPendingAssignment(ctx, task, now); err != nil {
		return res, fmt.Errorf("failed to sync assignment: %w", err)
	}

	res.Created, err = s.checks.InsertOccurrences(ctx, task, occurrences)
	if err != nil {
		return res, fmt.Errorf("failed to insert checks: %w", err)
	}

	res.Cancelled, err = s.checks.CancelStalePending(ctx, task.ID, now, occurrences)
	if err != nil {
		return res, fmt.Errorf("failed to cancel stale checks: %w", err)
	}

	s.logger.Debug("checks generated",
		zap.String("task_id", task.ID.String()),
		zap.Int("created", res.Created),
		zap.Int("cancelled", res.Cancelled),
	)
	return res, nil
}

func (s *TaskService) validate(ctx context.Context, domainID uuid.UUID, req models.TaskRequest) (*models.User, error) {
	fieldErrors := make(map[string]string)

	if req.Title == "" {
		fieldErrors["title"] = "Title is required"
	}
	if req.StartsAt.IsZero() {
		fieldErrors["starts_at"] = "Start time is required"
	}
	if !isValidRecurrence(req.Recurrence) {
		fieldErrors["recurrence"] = "Recurrence must be none, daily, weekly or monthly"
	}
	if req.RecurrenceUntil != nil && !req.StartsAt.IsZero() && req.RecurrenceUntil.Before(req.StartsAt) {
		fieldErrors["recurrence_until"] = "Recurrence end must not be before the start"
	}
	if !isValidTaskStatus(req.Status) {
		fieldErrors["status"] = "Unknown task status"
	}
	if !isValidPriority(req.Priority) {
		fieldErrors["priority"] = "Priority must be low, normal or high"
	}
	if req.DurationMinutes < 0 {
		fieldErrors["duration_minutes"] = "Duration must not be negative"
	}

	var operator *models.User
	if req.OperatorID == uuid.Nil {
		fieldErrors["operator_id"] = "Operator is required"
	} else {
		user, err := s.users.GetByID(ctx, req.OperatorID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			fieldErrors["operator_id"] = "Operator not found"
		case err != nil:
			return nil, err
		case user.DomainID != domainID || !user.IsActive:
			fieldErrors["operator_id"] = "Operator not found"
		case user.Role != models.RoleOperator && user.Role != models.RoleSupervisor:
			fieldErrors["operator_id"] = "Assignee must be an operator or supervisor"
		default:
			operator = user
		}
	}

	if req.ObjectID == uuid.Nil {
		fieldErrors["object_id"] = "Object is required"
	} else if _, err := s.objects.GetObject(ctx, domainID, req.ObjectID); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		fieldErrors["object_id"] = "Object not found"
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}
	return operator, nil
}

func (s *TaskService) scheduleGeneration(ctx context.Context, caller middleware.Identity, task *models.Task) {
	job := &models.Job{
		DomainID:    task.DomainID,
		UserID:      caller.UserID,
		Type:        models.JobCheckGeneration,
		ReferenceID: task.ID,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.logger.Error("failed to schedule check generation", zap.String("task_id", task.ID.String()), zap.Error(err))
	}
}

func (s *TaskService) notifyAssignment(operator *models.User, task *models.Task) {
	if s.notifier == nil || operator == nil || operator.Email == "" {
		return
	}
	if err := s.notifier.SendAssignmentEmail(operator.Email, operator.FullName, task); err != nil {
		s.logger.Warn("failed to send assignment email", zap.String("task_id", task.ID.String()), zap.Error(err))
	}
}

func normalizeTaskRequest(req *models.TaskRequest) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Recurrence == "" {
		req.Recurrence = models.RecurrenceNone
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
}

func isValidTaskStatus(status string) bool {
	switch status {
	case models.TaskPlanned, models.TaskActive, models.TaskCompleted, models.TaskCancelled:
		return true
	}
	return false
}

func isValidPriority(p string) bool {
	switch p {
	case models.PriorityLow, models.PriorityNormal, models.PriorityHigh:
		return true
	}
	return false
}
