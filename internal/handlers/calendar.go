package handlers

import (
	"context"
	"net/http"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
	"inspecta-backend/internal/services"
)

type calendarService interface {
	Build(ctx context.Context, caller middleware.Identity, q services.CalendarQuery) ([]models.CalendarDay, error)
}

type CalendarHandler struct {
	calendar calendarService
}

func NewCalendarHandler(calendar calendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := newQueryFilters(r)
	query := services.CalendarQuery{
		From:       r.URL.Query().Get("from"),
		To:         r.URL.Query().Get("to"),
		TZ:         r.URL.Query().Get("tz"),
		OperatorID: q.uuid("operator_id"),
	}
	if err := q.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	days, err := h.calendar.Build(r.Context(), middleware.GetIdentity(r.Context()), query)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"days": days})
}
