package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type checkStore interface {
	GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Check, error)
	List(ctx context.Context, domainID uuid.UUID, f models.CheckFilter) ([]*models.Check, error)
	Transition(ctx context.Context, domainID, id uuid.UUID, from []string, next string) error
	Complete(ctx context.Context, domainID, id uuid.UUID, results []models.CheckResult, notes string) error
}

type parameterLookup interface {
	GetParametersByIDs(ctx context.Context, domainID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*models.InspectionParameter, error)
}

type caseSyncer interface {
	Sync(ctx context.Context, caller middleware.Identity, checkID uuid.UUID, req models.SyncRequest) (*models.SyncPlan, error)
}

type CheckService struct {
	checks     checkStore
	parameters parameterLookup
	syncer     caseSyncer
	logger     *zap.Logger
}

func NewCheckService(checks checkStore, parameters parameterLookup, syncer caseSyncer, logger *zap.Logger) *CheckService {
	return &CheckService{checks: checks, parameters: parameters, syncer: syncer, logger: logger}
}

func isValidCheckStatus(status string) bool {
	switch status {
	case models.CheckPending, models.CheckInProgress, models.CheckCompleted, models.CheckMissed, models.CheckCancelled:
		return true
	}
	return false
}

// List applies the operator restriction: operators only see their own
// checks whatever filter they send.
func (s *CheckService) List(ctx context.Context, caller middleware.Identity, f models.CheckFilter) ([]*models.Check, error) {
	if f.Status != "" && !isValidCheckStatus(f.Status) {
		return nil, &ValidationError{Fields: map[string]string{"status": "Unknown check status"}}
	}
	if caller.Role == models.RoleOperator {
		self := caller.UserID
		f.OperatorID = &self
	}
	return s.checks.List(ctx, caller.DomainID, f)
}

func (s *CheckService) Get(ctx context.Context, caller middleware.Identity, id uuid.UUID) (*models.Check, error) {
	check, err := s.checks.GetByID(ctx, caller.DomainID, id)
	if err != nil {
		return nil, notFound(err, "Check not found")
	}
	if !canActOnCheck(caller, check) {
		return nil, &ForbiddenError{Message: "Check is assigned to another operator"}
	}
	return check, nil
}

func (s *CheckService) Start(ctx context.Context, caller middleware.Identity, id uuid.UUID) (*models.Check, error) {
	check, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	err = s.checks.Transition(ctx, caller.DomainID, id, []string{models.CheckPending}, models.CheckInProgress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ConflictError{Message: fmt.Sprintf("Check cannot be started from status %s", check.Status)}
		}
		return nil, err
	}

	return s.Get(ctx, caller, id)
}

// Complete records the results of a check and reconciles its
// non-compliance cases with them.
func (s *CheckService) Complete(ctx context.Context, caller middleware.Identity, id uuid.UUID, req models.CompleteCheckRequest) (*models.Check, error) {
	check, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if check.Status != models.CheckPending && check.Status != models.CheckInProgress {
		return nil, &ConflictError{Message: fmt.Sprintf("Check cannot be completed from status %s", check.Status)}
	}

	fieldErrors := make(map[string]string)
	ids := make([]uuid.UUID, 0, len(req.Results))
	seen := make(map[uuid.UUID]bool)
	for i, res := range req.Results {
		key := fmt.Sprintf("results[%d].parameter_id", i)
		switch {
		case res.ParameterID == uuid.Nil:
			fieldErrors[key] = "Parameter is required"
		case seen[res.ParameterID]:
			fieldErrors[key] = "Duplicate parameter"
		default:
			seen[res.ParameterID] = true
			ids = append(ids, res.ParameterID)
		}
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	params, err := s.parameters.GetParametersByIDs(ctx, caller.DomainID, ids)
	if err != nil {
		return nil, err
	}

	results := make([]models.CheckResult, 0, len(req.Results))
	local := make([]models.LocalParameter, 0, len(req.Results))
	for i, res := range req.Results {
		param, ok := params[res.ParameterID]
		if !ok {
			fieldErrors[fmt.Sprintf("results[%d].parameter_id", i)] = "Parameter not found"
			continue
		}

		compliant := EvaluateCompliance(param, res.Value)
		if res.Compliant != nil {
			compliant = *res.Compliant
		}

		value := strings.TrimSpace(res.Value)
		results = append(results, models.CheckResult{
			CheckID:       id,
			ParameterID:   param.ID,
			ParameterName: param.Name,
			Value:         value,
			Compliant:     compliant,
		})

		paramID := param.ID
		local = append(local, models.LocalParameter{
			ParameterID: &paramID,
			Name:        param.Name,
			Value:       value,
			Compliant:   compliant,
		})
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	if err := s.checks.Complete(ctx, caller.DomainID, id, results, strings.TrimSpace(req.Notes)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ConflictError{Message: "Check was changed by someone else"}
		}
		return nil, fmt.Errorf("failed to complete check: %w", err)
	}

	if s.syncer != nil && len(local) > 0 {
		if _, err := s.syncer.Sync(ctx, caller, id, models.SyncRequest{Parameters: local}); err != nil {
			s.logger.Error("non-compliance sync after completion failed", zap.String("check_id", id.String()), zap.Error(err))
		}
	}

	return s.Get(ctx, caller, id)
}

// EvaluateCompliance decides whether a recorded value satisfies the
// parameter. Numeric values are checked against the min/max bounds;
// anything else is compared with the expected value, ignoring case and
// surrounding space. A parameter with no constraints accepts any value.
func EvaluateCompliance(p *models.InspectionParameter, value string) bool {
	value = strings.TrimSpace(value)
	hasBounds := p.MinValue != nil || p.MaxValue != nil
	expected := strings.TrimSpace(p.ExpectedValue)

	if num, ok := parseNumber(value); ok {
		if hasBounds {
			if p.MinValue != nil && num < *p.MinValue {
				return false
			}
			if p.MaxValue != nil && num > *p.MaxValue {
				return false
			}
			return true
		}
		if exp, ok := parseNumber(expected); ok {
			return math.Abs(num-exp) < 1e-9
		}
	}

	if expected != "" {
		return strings.EqualFold(value, expected)
	}
	return !hasBounds
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
