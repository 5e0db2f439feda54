package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"inspecta-backend/internal/models"
)

// QueueName is the Redis list a job type is pushed to.
func QueueName(jobType string) string {
	return "queue:" + jobType
}

type jobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Cancel(ctx context.Context, id, userID uuid.UUID) error
}

// Enqueuer persists and queues background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type JobQueue struct {
	jobs   jobStore
	redis  *redis.Client
	logger *zap.Logger
}

func NewJobQueue(jobs jobStore, redisClient *redis.Client, logger *zap.Logger) *JobQueue {
	return &JobQueue{jobs: jobs, redis: redisClient, logger: logger}
}

// Enqueue stores the job row and pushes it onto its queue. A job that could
// not be queued is marked failed.
func (q *JobQueue) Enqueue(ctx context.Context, job *models.Job) error {
	if job.ConfigJSON == nil {
		job.ConfigJSON = json.RawMessage("{}")
	}
	if err := q.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if q.redis == nil {
		_ = q.jobs.UpdateStatus(ctx, job.ID, models.JobFailed)
		return fmt.Errorf("job queue is unavailable")
	}

	if err := q.redis.LPush(ctx, QueueName(job.Type), string(jobBytes)).Err(); err != nil {
		q.logger.Error("failed to enqueue job", zap.String("job_id", job.ID.String()), zap.String("type", job.Type), zap.Error(err))
		_ = q.jobs.UpdateStatus(ctx, job.ID, models.JobFailed)
		return fmt.Errorf("failed to enqueue %s job: %w", job.Type, err)
	}
	return nil
}

// Get returns a job owned by the domain.
func (q *JobQueue) Get(ctx context.Context, domainID, id uuid.UUID) (*models.Job, error) {
	job, err := q.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Job not found")
	}
	if job.DomainID != domainID {
		return nil, &NotFoundError{Message: "Job not found"}
	}
	return job, nil
}

// Cancel marks a pending job cancelled. Workers skip cancelled jobs when
// they pop them.
func (q *JobQueue) Cancel(ctx context.Context, domainID, userID, id uuid.UUID) error {
	job, err := q.Get(ctx, domainID, id)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		return &ForbiddenError{Message: "You can only cancel your own jobs"}
	}
	if job.Status != models.JobPending {
		return &ConflictError{Message: "Only pending jobs can be cancelled"}
	}
	if err := q.jobs.Cancel(ctx, id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &ConflictError{Message: "Only pending jobs can be cancelled"}
		}
		return err
	}
	return nil
}
