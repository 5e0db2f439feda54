package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

const (
	maxCalendarDays = 92
	dateLayout      = "2006-01-02"
)

type checkLister interface {
	List(ctx context.Context, domainID uuid.UUID, f models.CheckFilter) ([]*models.Check, error)
}

type CalendarQuery struct {
	From       string
	To         string
	TZ         string
	OperatorID *uuid.UUID
}

type CalendarService struct {
	checks checkLister
}

func NewCalendarService(checks checkLister) *CalendarService {
	return &CalendarService{checks: checks}
}

// Build returns one entry per date in [from, to), in the requested time
// zone, with the checks scheduled on that date.
func (s *CalendarService) Build(ctx context.Context, caller middleware.Identity, q CalendarQuery) ([]models.CalendarDay, error) {
	fieldErrors := make(map[string]string)

	tz := q.TZ
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		fieldErrors["tz"] = "Unknown time zone"
		loc = time.UTC
	}

	from, err := time.ParseInLocation(dateLayout, q.From, loc)
	if err != nil {
		fieldErrors["from"] = "Expected a date as YYYY-MM-DD"
	}
	to, err := time.ParseInLocation(dateLayout, q.To, loc)
	if err != nil {
		fieldErrors["to"] = "Expected a date as YYYY-MM-DD"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	if !from.Before(to) {
		return nil, &ValidationError{Fields: map[string]string{"to": "End date must be after the start date"}}
	}
	if to.After(from.AddDate(0, 0, maxCalendarDays)) {
		return nil, &ValidationError{Fields: map[string]string{"to": "Calendar window is limited to 92 days"}}
	}

	f := models.CheckFilter{From: &from, To: &to, OperatorID: q.OperatorID, Limit: 5000}
	if caller.Role == models.RoleOperator {
		self := caller.UserID
		f.OperatorID = &self
	}

	checks, err := s.checks.List(ctx, caller.DomainID, f)
	if err != nil {
		return nil, err
	}
	return GroupByDay(checks, from, to, loc), nil
}

// GroupByDay buckets checks by their local scheduled date. Every date in
// [from, to) is present even when it has no checks.
func GroupByDay(checks []*models.Check, from, to time.Time, loc *time.Location) []models.CalendarDay {
	days := make([]models.CalendarDay, 0)
	index := make(map[string]int)

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	for d := start; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		index[key] = len(days)
		days = append(days, models.CalendarDay{
			Date:   key,
			Checks: make([]*models.Check, 0),
			Counts: make(map[string]int),
		})
	}

	for _, c := range checks {
		key := c.ScheduledFor.In(loc).Format(dateLayout)
		i, ok := index[key]
		if !ok {
			continue
		}
		days[i].Checks = append(days[i].Checks, c)
		days[i].Counts[c.Status]++
	}
	return days
}
