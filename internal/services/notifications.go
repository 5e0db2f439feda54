package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"inspecta-backend/internal/models"
)

const (
	overduePollInterval = 1 * time.Hour
	overdueBatchSize    = 500
)

type overdueStore interface {
	ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]*models.Check, error)
	MarkOverdue(ctx context.Context, id uuid.UUID, at time.Time) (string, error)
}

type overdueNotifier interface {
	SendOverdueEmail(to, fullName string, check *models.Check) error
}

// OverdueScheduler sweeps for checks past their scheduled time plus a grace
// period. Pending ones become missed; the operator is told once per check.
type OverdueScheduler struct {
	checks    overdueStore
	users     userLookup
	email     overdueNotifier
	publisher Publisher
	grace     time.Duration
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
}

func NewOverdueScheduler(checks overdueStore, users userLookup, email overdueNotifier, publisher Publisher, grace time.Duration, logger *zap.Logger) *OverdueScheduler {
	return &OverdueScheduler{
		checks:    checks,
		users:     users,
		email:     email,
		publisher: publisher,
		grace:     grace,
		interval:  overduePollInterval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

func (s *OverdueScheduler) Start() {
	if s.checks == nil {
		return
	}
	go s.loop()
	s.logger.Info("overdue scheduler started", zap.Duration("interval", s.interval), zap.Duration("grace", s.grace))
}

func (s *OverdueScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *OverdueScheduler) loop() {
	// Run on startup as well as by interval.
	s.run()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.run()
		}
	}
}

func (s *OverdueScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := s.Sweep(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("overdue sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("overdue sweep finished", zap.Int("checks", n))
	}
}

// Sweep handles every overdue check not yet notified and returns how many
// it processed.
func (s *OverdueScheduler) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.grace)
	processed := 0

	for {
		checks, err := s.checks.ListOverdue(ctx, cutoff, overdueBatchSize)
		if err != nil {
			return processed, err
		}

		settled := 0
		for _, check := range checks {
			status, err := s.checks.MarkOverdue(ctx, check.ID, now)
			if errors.Is(err, pgx.ErrNoRows) {
				// Finished or already notified since it was listed.
				settled++
				continue
			}
			if err != nil {
				s.logger.Error("failed to mark check overdue", zap.String("check_id", check.ID.String()), zap.Error(err))
				continue
			}
			check.Status = status
			settled++
			processed++
			s.notify(ctx, check)
		}

		if len(checks) < overdueBatchSize || settled == 0 {
			return processed, nil
		}
	}
}

func (s *OverdueScheduler) notify(ctx context.Context, check *models.Check) {
	if s.publisher != nil {
		s.publisher.PublishUser(ctx, check.OperatorID, models.WSMessage{
			Type: "check_overdue",
			Payload: models.CheckOverdueEvent{
				CheckID:      check.ID,
				TaskTitle:    check.TaskTitle,
				ScheduledFor: check.ScheduledFor,
				Status:       check.Status,
			},
		})
	}

	if s.email == nil || s.users == nil {
		return
	}
	operator, err := s.users.GetByID(ctx, check.OperatorID)
	if err != nil {
		s.logger.Warn("overdue: failed to load operator", zap.String("check_id", check.ID.String()), zap.Error(err))
		return
	}
	if operator.Email == "" {
		return
	}
	if err := s.email.SendOverdueEmail(operator.Email, operator.FullName, check); err != nil {
		s.logger.Warn("overdue: failed to send email", zap.String("to", operator.Email), zap.Error(err))
	}
}
