package services

import (
	"time"

	"inspecta-backend/internal/models"
)

// maxOccurrences caps a single expansion so a misconfigured daily task
// cannot flood the checks table.
const maxOccurrences = 1000

// ExpandOccurrences lists the occurrences of a recurring schedule that fall
// in [from, to). Occurrences after until are dropped. At most limit values
// are returned; limit <= 0 means no cap beyond the window.
//
// Monthly schedules are anchored on the day of month of starts. In shorter
// months the day is clamped to the month's last day, and the next month
// returns to the anchor day.
func ExpandOccurrences(starts time.Time, recurrence string, until *time.Time, from, to time.Time, limit int) []time.Time {
	if !from.Before(to) {
		return nil
	}

	occurrences := make([]time.Time, 0)
	accept := func(occ time.Time) bool {
		if until != nil && occ.After(*until) {
			return false
		}
		if !occ.Before(to) {
			return false
		}
		if !occ.Before(from) {
			occurrences = append(occurrences, occ)
		}
		return limit <= 0 || len(occurrences) < limit
	}

	switch recurrence {
	case models.RecurrenceNone, "":
		accept(starts)

	case models.RecurrenceDaily, models.RecurrenceWeekly:
		step := 1
		if recurrence == models.RecurrenceWeekly {
			step = 7
		}
		k := 0
		if from.After(starts) {
			// Jump close to the window; wall-clock stepping below keeps DST
			// transitions on the same local time.
			k = int(from.Sub(starts)/(time.Duration(step)*24*time.Hour)) - 1
			if k < 0 {
				k = 0
			}
		}
		for ; ; k++ {
			if !accept(starts.AddDate(0, 0, k*step)) {
				break
			}
		}

	case models.RecurrenceMonthly:
		k := 0
		if from.After(starts) {
			k = monthsBetween(starts, from) - 1
			if k < 0 {
				k = 0
			}
		}
		for ; ; k++ {
			if !accept(addMonthsClamped(starts, k)) {
				break
			}
		}
	}

	return occurrences
}

// addMonthsClamped adds n calendar months to t, clamping the day to the
// last day of the target month.
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	lastDay := time.Date(year, month+time.Month(n)+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month+time.Month(n), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func isValidRecurrence(r string) bool {
	switch r {
	case models.RecurrenceNone, models.RecurrenceDaily, models.RecurrenceWeekly, models.RecurrenceMonthly:
		return true
	}
	return false
}
