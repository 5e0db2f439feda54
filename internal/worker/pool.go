package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"inspecta-backend/internal/models"
	"inspecta-backend/internal/services"
)

const (
	maxAttempts = 3
	lockTTL     = 10 * time.Minute
	popTimeout  = 30 * time.Second
)

type jobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
	SetResultPath(ctx context.Context, id uuid.UUID, path string) error
}

type checkGenerator interface {
	GenerateChecks(ctx context.Context, domainID, taskID uuid.UUID) (services.GenerationResult, error)
}

type exportWriter interface {
	WriteExport(ctx context.Context, job *models.Job, w io.Writer) error
}

type documentProcessor interface {
	ProcessDocument(ctx context.Context, instructionID uuid.UUID) error
}

type Pool struct {
	redis        *redis.Client
	jobs         jobStore
	tasks        checkGenerator
	reports      exportWriter
	instructions documentProcessor
	publisher    services.Publisher
	storagePath  string
	workerCount  int
	logger       *zap.Logger

	// requeue pushes a failed job back after its backoff.
	requeue func(job *models.Job, backoff time.Duration)
	push    func(ctx context.Context, queue, payload string) error

	delayedMu sync.Mutex
	delayed   map[uuid.UUID]*delayedJob

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// delayedJob is a retry waiting out its backoff.
type delayedJob struct {
	timer   *time.Timer
	queue   string
	payload string
}

func NewPool(
	redisClient *redis.Client,
	jobs jobStore,
	tasks checkGenerator,
	reports exportWriter,
	instructions documentProcessor,
	publisher services.Publisher,
	storagePath string,
	workerCount int,
	logger *zap.Logger,
) *Pool {
	p := &Pool{
		redis:        redisClient,
		jobs:         jobs,
		tasks:        tasks,
		reports:      reports,
		instructions: instructions,
		publisher:    publisher,
		storagePath:  storagePath,
		workerCount:  workerCount,
		logger:       logger,
		delayed:      make(map[uuid.UUID]*delayedJob),
		stopChan:     make(chan struct{}),
	}
	p.requeue = p.requeueLater
	p.push = p.lpush
	return p
}

func queues() []string {
	return []string{
		services.QueueName(models.JobCheckGeneration),
		services.QueueName(models.JobReportExport),
		services.QueueName(models.JobInstructionExtraction),
	}
}

func (p *Pool) Start() {
	qs := queues()
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, qs)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workerCount))
}

// Stop signals the workers and waits for in-flight jobs. A worker blocked
// in BLPOP notices at the end of its pop timeout. Retries still waiting
// out their backoff are pushed back immediately so they survive a restart.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
	p.flushDelayed()
}

func (p *Pool) worker(id int, qs []string) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker", id))

	for {
		select {
		case <-p.stopChan:
			log.Debug("worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, popTimeout, qs...).Result()
		if err != nil {
			if err != redis.Nil {
				log.Warn("queue pop failed", zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error("failed to parse job", zap.String("queue", result[0]), zap.Error(err))
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil || !locked {
			continue
		}

		p.Process(ctx, &job)

		p.redis.Del(ctx, lockKey)
	}
}

// Process runs one popped job to a terminal state or schedules its retry.
func (p *Pool) Process(ctx context.Context, job *models.Job) {
	log := p.logger.With(zap.String("job_id", job.ID.String()), zap.String("type", job.Type))

	current, err := p.jobs.GetByID(ctx, job.ID)
	if err != nil {
		log.Warn("job row missing, dropping", zap.Error(err))
		return
	}
	if current.Status == models.JobCancelled {
		log.Info("skipping cancelled job")
		return
	}

	log.Info("processing job", zap.Int("attempt", job.RetryCount+1))
	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobProcessing); err != nil {
		log.Warn("failed to mark job processing", zap.Error(err))
	}

	resultID, resultType, err := p.execute(ctx, job)
	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job, resultID, resultType)
}

func (p *Pool) execute(ctx context.Context, job *models.Job) (uuid.UUID, string, error) {
	switch job.Type {
	case models.JobCheckGeneration:
		res, err := p.tasks.GenerateChecks(ctx, job.DomainID, job.ReferenceID)
		if err != nil {
			return uuid.Nil, "", err
		}
		p.logger.Debug("checks generated",
			zap.String("task_id", job.ReferenceID.String()),
			zap.Int("created", res.Created),
			zap.Int("cancelled", res.Cancelled),
		)
		return job.ReferenceID, "task", nil
	case models.JobReportExport:
		if err := p.export(ctx, job); err != nil {
			return uuid.Nil, "", err
		}
		return job.ID, "report_export", nil
	case models.JobInstructionExtraction:
		if err := p.instructions.ProcessDocument(ctx, job.ReferenceID); err != nil {
			return uuid.Nil, "", err
		}
		return job.ReferenceID, "instruction", nil
	default:
		return uuid.Nil, "", fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// export writes the CSV next to other exports of the domain. The file only
// appears under its final name once fully written.
func (p *Pool) export(ctx context.Context, job *models.Job) error {
	dir := filepath.Join(p.storagePath, "exports", job.DomainID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	err = p.reports.WriteExport(ctx, job, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	path := filepath.Join(dir, job.ID.String()+".csv")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store export: %w", err)
	}
	return p.jobs.SetResultPath(ctx, job.ID, path)
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, resultID uuid.UUID, resultType string) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobCompleted); err != nil {
		p.logger.Error("failed to mark job completed", zap.String("job_id", job.ID.String()), zap.Error(err))
	}

	p.publisher.PublishUser(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   resultID,
			ResultType: resultType,
		},
	})

	p.logger.Info("job completed", zap.String("job_id", job.ID.String()), zap.String("type", job.Type))
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()
	log := p.logger.With(zap.String("job_id", job.ID.String()), zap.String("type", job.Type), zap.Int("attempt", job.RetryCount))

	if job.RetryCount < maxAttempts {
		log.Warn("job failed, retrying", zap.Error(err))
		if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobPending); err != nil {
			log.Error("failed to mark job pending", zap.Error(err))
		}
		if err := p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount); err != nil {
			log.Error("failed to record job error", zap.Error(err))
		}
		p.requeue(job, Backoff(job.RetryCount))
		return
	}

	log.Error("job failed permanently", zap.Error(err))
	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobFailed); err != nil {
		log.Error("failed to mark job failed", zap.Error(err))
	}
	if err := p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount); err != nil {
		log.Error("failed to record job error", zap.Error(err))
	}

	p.publisher.PublishUser(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}

// Backoff is 2^attempt seconds.
func Backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func (p *Pool) requeueLater(job *models.Job, backoff time.Duration) {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		p.logger.Error("failed to encode job for retry", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	d := &delayedJob{queue: services.QueueName(job.Type), payload: string(jobBytes)}
	id := job.ID

	p.delayedMu.Lock()
	defer p.delayedMu.Unlock()
	p.delayed[id] = d
	d.timer = time.AfterFunc(backoff, func() {
		p.delayedMu.Lock()
		if p.delayed[id] != d {
			p.delayedMu.Unlock()
			return
		}
		delete(p.delayed, id)
		p.delayedMu.Unlock()
		p.pushDelayed(id, d)
	})
}

// flushDelayed pushes every retry whose timer has not fired yet.
func (p *Pool) flushDelayed() {
	p.delayedMu.Lock()
	pending := make(map[uuid.UUID]*delayedJob, len(p.delayed))
	for id, d := range p.delayed {
		if d.timer.Stop() {
			pending[id] = d
		}
		delete(p.delayed, id)
	}
	p.delayedMu.Unlock()

	for id, d := range pending {
		p.pushDelayed(id, d)
	}
	if len(pending) > 0 {
		p.logger.Info("requeued delayed retries on shutdown", zap.Int("jobs", len(pending)))
	}
}

func (p *Pool) pushDelayed(id uuid.UUID, d *delayedJob) {
	if err := p.push(context.Background(), d.queue, d.payload); err != nil {
		p.logger.Error("failed to requeue job", zap.String("job_id", id.String()), zap.Error(err))
	}
}

func (p *Pool) lpush(ctx context.Context, queue, payload string) error {
	return p.redis.LPush(ctx, queue, payload).Err()
}
