package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspecta-backend/internal/models"
)

func TestGroupByDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, loc)
	to := time.Date(2026, 3, 4, 0, 0, 0, 0, loc)

	// 20:00 UTC on the 1st is already the 2nd in Almaty.
	late := &models.Check{ID: uuid.New(), ScheduledFor: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC), Status: models.CheckPending}
	early := &models.Check{ID: uuid.New(), ScheduledFor: time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), Status: models.CheckCompleted}
	outside := &models.Check{ID: uuid.New(), ScheduledFor: time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), Status: models.CheckPending}

	days := GroupByDay([]*models.Check{late, early, outside}, from, to, loc)
	require.Len(t, days, 3)
	assert.Equal(t, "2026-03-01", days[0].Date)
	assert.Equal(t, "2026-03-03", days[2].Date)

	assert.Equal(t, []*models.Check{early}, days[0].Checks)
	assert.Equal(t, map[string]int{models.CheckCompleted: 1}, days[0].Counts)
	assert.Equal(t, []*models.Check{late}, days[1].Checks)
	assert.Empty(t, days[2].Checks)
	assert.NotNil(t, days[2].Counts)
}

func TestCalendarService_Build(t *testing.T) {
	operator := &models.User{ID: uuid.New(), DomainID: uuid.New(), Role: models.RoleOperator}
	checks := newMemChecks()
	svc := NewCalendarService(checks)

	days, err := svc.Build(context.Background(), callerFor(operator), CalendarQuery{From: "2026-02-01", To: "2026-03-01", TZ: "Europe/Berlin"})
	require.NoError(t, err)
	assert.Len(t, days, 28)

	require.Len(t, checks.listFilters, 1)
	f := checks.listFilters[0]
	assert.Equal(t, operator.ID, *f.OperatorID)
	assert.Equal(t, 5000, f.Limit)
	assert.Equal(t, "Europe/Berlin", f.From.Location().String())
}

func TestCalendarService_BuildValidation(t *testing.T) {
	supervisor := &models.User{ID: uuid.New(), DomainID: uuid.New(), Role: models.RoleSupervisor}
	svc := NewCalendarService(newMemChecks())

	tests := []struct {
		name  string
		query CalendarQuery
		field string
	}{
		{"bad from", CalendarQuery{From: "01.02.2026", To: "2026-02-10"}, "from"},
		{"missing to", CalendarQuery{From: "2026-02-01"}, "to"},
		{"unknown zone", CalendarQuery{From: "2026-02-01", To: "2026-02-10", TZ: "Mars/Olympus"}, "tz"},
		{"reversed", CalendarQuery{From: "2026-02-10", To: "2026-02-01"}, "to"},
		{"too long", CalendarQuery{From: "2026-01-01", To: "2026-06-01"}, "to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Build(context.Background(), callerFor(supervisor), tt.query)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}
