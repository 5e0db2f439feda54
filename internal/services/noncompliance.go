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

type caseStore interface {
	Create(ctx context.Context, c *models.NonComplianceCase) error
	GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.NonComplianceCase, error)
	List(ctx context.Context, domainID uuid.UUID, f models.NonComplianceFilter) ([]*models.NonComplianceCase, int, error)
	ListByCheck(ctx context.Context, domainID, checkID uuid.UUID) ([]*models.NonComplianceCase, error)
	Update(ctx context.Context, c *models.NonComplianceCase) error
	Delete(ctx context.Context, domainID, id uuid.UUID) error
	ApplySync(ctx context.Context, domainID, checkID, userID uuid.UUID, plan *models.SyncPlan) error
}

type checkLookup interface {
	GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Check, error)
}

type NonComplianceService struct {
	cases     caseStore
	checks    checkLookup
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewNonComplianceService(cases caseStore, checks checkLookup, publisher Publisher, logger *zap.Logger) *NonComplianceService {
	return &NonComplianceService{
		cases:     cases,
		checks:    checks,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

var caseRank = map[string]int{
	models.CaseOpen:       0,
	models.CaseInProgress: 1,
	models.CaseResolved:   2,
	models.CaseClosed:     3,
}

// canMoveCase reports whether a case may go from one status to another.
// Statuses only move forward; staying put is allowed.
func canMoveCase(from, to string) bool {
	fr, ok := caseRank[from]
	if !ok {
		return false
	}
	tr, ok := caseRank[to]
	if !ok {
		return false
	}
	return tr >= fr
}

func isValidSeverity(s string) bool {
	switch s {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		return true
	}
	return false
}

func (s *NonComplianceService) List(ctx context.Context, domainID uuid.UUID, f models.NonComplianceFilter) ([]*models.NonComplianceCase, int, error) {
	fieldErrors := make(map[string]string)
	if f.Status != "" {
		if _, ok := caseRank[f.Status]; !ok {
			fieldErrors["status"] = "Unknown status"
		}
	}
	if f.Severity != "" && !isValidSeverity(f.Severity) {
		fieldErrors["severity"] = "Unknown severity"
	}
	if len(fieldErrors) > 0 {
		return nil, 0, &ValidationError{Fields: fieldErrors}
	}
	return s.cases.List(ctx, domainID, f)
}

func (s *NonComplianceService) Get(ctx context.Context, domainID, id uuid.UUID) (*models.NonComplianceCase, error) {
	c, err := s.cases.GetByID(ctx, domainID, id)
	if err != nil {
		return nil, notFound(err, "Non-compliance case not found")
	}
	return c, nil
}

func (s *NonComplianceService) Create(ctx context.Context, caller middleware.Identity, req models.NonComplianceRequest) (*models.NonComplianceCase, error) {
	req.ParameterName = strings.TrimSpace(req.ParameterName)
	req.Description = strings.TrimSpace(req.Description)
	if req.Severity == "" {
		req.Severity = models.SeverityMedium
	}

	fieldErrors := make(map[string]string)
	if req.CheckID == uuid.Nil {
		fieldErrors["check_id"] = "Check is required"
	}
	if req.ParameterName == "" {
		fieldErrors["parameter_name"] = "Parameter name is required"
	}
	if !isValidSeverity(req.Severity) {
		fieldErrors["severity"] = "Severity must be low, medium, high or critical"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	check, err := s.checks.GetByID(ctx, caller.DomainID, req.CheckID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ValidationError{Fields: map[string]string{"check_id": "Check not found"}}
		}
		return nil, err
	}
	if !canActOnCheck(caller, check) {
		return nil, &ForbiddenError{Message: "Check is assigned to another operator"}
	}

	c := &models.NonComplianceCase{
		DomainID:      caller.DomainID,
		CheckID:       req.CheckID,
		ParameterID:   req.ParameterID,
		ParameterName: req.ParameterName,
		Description:   req.Description,
		Severity:      req.Severity,
		Status:        models.CaseOpen,
		CreatedBy:     caller.UserID,
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, storeError(err, "Case already exists", "Check not found")
	}
	return c, nil
}

// Update edits a case. Status changes must move forward; reaching resolved
// or closed stamps resolved_at.
func (s *NonComplianceService) Update(ctx context.Context, caller middleware.Identity, id uuid.UUID, req models.NonComplianceRequest) (*models.NonComplianceCase, error) {
	c, err := s.Get(ctx, caller.DomainID, id)
	if err != nil {
		return nil, err
	}
	if caller.Role == models.RoleOperator {
		check, err := s.checks.GetByID(ctx, caller.DomainID, c.CheckID)
		if err != nil {
			return nil, notFound(err, "Check not found")
		}
		if !canActOnCheck(caller, check) {
			return nil, &ForbiddenError{Message: "Check is assigned to another operator"}
		}
	}

	fieldErrors := make(map[string]string)
	if name := strings.TrimSpace(req.ParameterName); name != "" {
		c.ParameterName = name
	}
	if req.ParameterID != nil {
		c.ParameterID = req.ParameterID
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		c.Description = desc
	}
	if req.Severity != "" {
		if !isValidSeverity(req.Severity) {
			fieldErrors["severity"] = "Severity must be low, medium, high or critical"
		}
		c.Severity = req.Severity
	}
	if req.ResolutionNotes != "" {
		c.ResolutionNotes = strings.TrimSpace(req.ResolutionNotes)
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	if req.Status != "" && req.Status != c.Status {
		if _, ok := caseRank[req.Status]; !ok {
			return nil, &ValidationError{Fields: map[string]string{"status": "Unknown status"}}
		}
		if !canMoveCase(c.Status, req.Status) {
			return nil, &ConflictError{Message: fmt.Sprintf("Cannot move case from %s to %s", c.Status, req.Status)}
		}
		c.Status = req.Status
		if (c.Status == models.CaseResolved || c.Status == models.CaseClosed) && c.ResolvedAt == nil {
			now := s.now().UTC()
			c.ResolvedAt = &now
		}
	}

	if err := s.cases.Update(ctx, c); err != nil {
		return nil, notFound(err, "Non-compliance case not found")
	}
	return c, nil
}

func (s *NonComplianceService) Delete(ctx context.Context, domainID, id uuid.UUID) error {
	if err := s.cases.Delete(ctx, domainID, id); err != nil {
		return notFound(err, "Non-compliance case not found")
	}
	return nil
}

// Sync reconciles local parameters against the check's cases. A dry run
// only returns the plan.
func (s *NonComplianceService) Sync(ctx context.Context, caller middleware.Identity, checkID uuid.UUID, req models.SyncRequest) (*models.SyncPlan, error) {
	check, err := s.checks.GetByID(ctx, caller.DomainID, checkID)
	if err != nil {
		return nil, notFound(err, "Check not found")
	}
	if !canActOnCheck(caller, check) {
		return nil, &ForbiddenError{Message: "Check is assigned to another operator"}
	}

	fieldErrors := make(map[string]string)
	for i, p := range req.Parameters {
		if p.ParameterID == nil && NormalizeName(p.Name) == "" {
			fieldErrors[fmt.Sprintf("parameters[%d].name", i)] = "Name or parameter_id is required"
		}
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	cases, err := s.cases.ListByCheck(ctx, caller.DomainID, checkID)
	if err != nil {
		return nil, err
	}

	plan := BuildSyncPlan(req.Parameters, cases)
	if req.DryRun {
		return plan, nil
	}
	if len(plan.Create) == 0 && len(plan.Resolve) == 0 {
		plan.Applied = true
		return plan, nil
	}

	if err := s.cases.ApplySync(ctx, caller.DomainID, checkID, caller.UserID, plan); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ConflictError{Message: "Cases changed during sync, please retry"}
		}
		return nil, fmt.Errorf("failed to apply sync plan: %w", err)
	}
	plan.Applied = true

	s.logger.Info("non-compliance sync applied",
		zap.String("check_id", checkID.String()),
		zap.Int("created", len(plan.Create)),
		zap.Int("resolved", len(plan.Resolve)),
	)

	if s.publisher != nil {
		s.publisher.PublishDomain(ctx, caller.DomainID, models.WSMessage{
			Type: "noncompliance_synced",
			Payload: models.SyncEvent{
				CheckID:  checkID,
				Created:  len(plan.Create),
				Resolved: len(plan.Resolve),
			},
		})
	}
	return plan, nil
}

// canActOnCheck lets operators touch only their own checks.
func canActOnCheck(caller middleware.Identity, check *models.Check) bool {
	if caller.Role == models.RoleOperator {
		return check.OperatorID == caller.UserID
	}
	return true
}
