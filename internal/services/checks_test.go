package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

func TestEvaluateCompliance(t *testing.T) {
	bounded := &models.InspectionParameter{MinValue: floatPtr(2), MaxValue: floatPtr(6)}
	minOnly := &models.InspectionParameter{MinValue: floatPtr(0)}
	expected := &models.InspectionParameter{ExpectedValue: "Closed"}
	numericExpected := &models.InspectionParameter{ExpectedValue: "1"}
	free := &models.InspectionParameter{}

	tests := []struct {
		name  string
		param *models.InspectionParameter
		value string
		want  bool
	}{
		{"within bounds", bounded, "4.5", true},
		{"on lower bound", bounded, "2", true},
		{"above max", bounded, "6.1", false},
		{"comma decimal", bounded, "3,5", true},
		{"non numeric against bounds", bounded, "ok", false},
		{"min only", minOnly, "-1", false},
		{"expected matches ignoring case", expected, "  closed ", true},
		{"expected mismatch", expected, "open", false},
		{"numeric expected", numericExpected, "1.0", true},
		{"unconstrained", free, "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCompliance(tt.param, tt.value))
		})
	}
}

type checkFixture struct {
	svc      *CheckService
	checks   *memChecks
	cases    *memCases
	operator *models.User
	check    *models.Check
	pressure *models.InspectionParameter
	door     *models.InspectionParameter
}

func newCheckFixture(t *testing.T) *checkFixture {
	t.Helper()
	domainID := uuid.New()
	operator := &models.User{ID: uuid.New(), DomainID: domainID, Username: "ivanov", Role: models.RoleOperator}
	check := &models.Check{
		ID:           uuid.New(),
		DomainID:     domainID,
		TaskID:       uuid.New(),
		OperatorID:   operator.ID,
		ScheduledFor: time.Now().Add(-time.Hour),
		Status:       models.CheckPending,
	}
	pressure := &models.InspectionParameter{ID: uuid.New(), DomainID: domainID, Name: "Pressure", MinValue: floatPtr(2), MaxValue: floatPtr(6)}
	door := &models.InspectionParameter{ID: uuid.New(), DomainID: domainID, Name: "Door", ExpectedValue: "closed"}

	checks := newMemChecks(check)
	cases := newMemCases()
	params := &memParameters{byID: map[uuid.UUID]*models.InspectionParameter{pressure.ID: pressure, door.ID: door}}
	nc := NewNonComplianceService(cases, checks, &recordingPublisher{}, testLogger)

	return &checkFixture{
		svc:      NewCheckService(checks, params, nc, testLogger),
		checks:   checks,
		cases:    cases,
		operator: operator,
		check:    check,
		pressure: pressure,
		door:     door,
	}
}

func TestCheckService_StartAndComplete(t *testing.T) {
	f := newCheckFixture(t)
	caller := callerFor(f.operator)

	started, err := f.svc.Start(context.Background(), caller, f.check.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInProgress, started.Status)

	_, err = f.svc.Start(context.Background(), caller, f.check.ID)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	override := true
	done, err := f.svc.Complete(context.Background(), caller, f.check.ID, models.CompleteCheckRequest{
		Results: []models.ResultInput{
			{ParameterID: f.pressure.ID, Value: "9"},
			{ParameterID: f.door.ID, Value: "open", Compliant: &override},
		},
		Notes: " all good ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CheckCompleted, done.Status)
	assert.Equal(t, "all good", done.Notes)

	results := f.checks.completed[f.check.ID]
	require.Len(t, results, 2)
	assert.False(t, results[0].Compliant)
	assert.True(t, results[1].Compliant)

	// The failing pressure reading opened a case through the sync.
	cases := f.cases.byCheck[f.check.ID]
	require.Len(t, cases, 1)
	assert.Equal(t, "Pressure", cases[0].ParameterName)
	assert.Equal(t, models.SeverityMedium, cases[0].Severity)

	_, err = f.svc.Complete(context.Background(), caller, f.check.ID, models.CompleteCheckRequest{})
	require.ErrorAs(t, err, &conflict)
}

func TestCheckService_OperatorRestriction(t *testing.T) {
	f := newCheckFixture(t)
	other := &models.User{ID: uuid.New(), DomainID: f.check.DomainID, Role: models.RoleOperator}

	_, err := f.svc.Start(context.Background(), callerFor(other), f.check.ID)
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	supervisor := &models.User{ID: uuid.New(), DomainID: f.check.DomainID, Role: models.RoleSupervisor}
	_, err = f.svc.Start(context.Background(), callerFor(supervisor), f.check.ID)
	assert.NoError(t, err)
}

func TestCheckService_CompleteValidation(t *testing.T) {
	f := newCheckFixture(t)
	caller := callerFor(f.operator)

	_, err := f.svc.Complete(context.Background(), caller, f.check.ID, models.CompleteCheckRequest{
		Results: []models.ResultInput{
			{ParameterID: f.pressure.ID, Value: "3"},
			{ParameterID: f.pressure.ID, Value: "4"},
			{ParameterID: uuid.New(), Value: "x"},
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "results[1].parameter_id")
	assert.Equal(t, models.CheckPending, f.checks.byID[f.check.ID].Status)
}

func TestCheckService_ListScopesOperators(t *testing.T) {
	f := newCheckFixture(t)
	someone := uuid.New()

	_, err := f.svc.List(context.Background(), callerFor(f.operator), models.CheckFilter{OperatorID: &someone})
	require.NoError(t, err)
	require.Len(t, f.checks.listFilters, 1)
	assert.Equal(t, f.operator.ID, *f.checks.listFilters[0].OperatorID)

	_, err = f.svc.List(context.Background(), middleware.Identity{DomainID: f.check.DomainID, Role: models.RoleOperator}, models.CheckFilter{Status: "done"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
