package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
	"inspecta-backend/internal/services"
)

// ─── Helpers shared by handler tests ───

func withIdentity(req *http.Request, id middleware.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func operatorIdentity() middleware.Identity {
	return middleware.Identity{
		UserID:    uuid.New(),
		DomainID:  uuid.New(),
		Domain:    "north",
		Username:  "ivanov",
		Role:      models.RoleOperator,
		SessionID: uuid.NewString(),
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

// ─── Error mapping ───

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"title": "Title is required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "busy"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "gone"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "no"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "no"}, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-1")
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			apiErr := decodeError(t, rr)
			if apiErr.Code != tc.code {
				t.Errorf("expected code %q, got %q", tc.code, apiErr.Code)
			}
			if apiErr.RequestID != "req-1" {
				t.Errorf("expected request id to be echoed, got %q", apiErr.RequestID)
			}
		})
	}
}

func TestHandleServiceError_ValidationFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	handleServiceError(rr, req, &services.ValidationError{Fields: map[string]string{"to": "End must be after the start"}})

	apiErr := decodeError(t, rr)
	if apiErr.Fields["to"] != "End must be after the start" {
		t.Errorf("expected field error for 'to', got %v", apiErr.Fields)
	}
}

func TestQueryFilters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?operator_id=nope&from=2026-05-01&to=2026-05-02T10:00:00Z&limit=-3&offset=7", nil)
	q := newQueryFilters(req)

	if q.uuid("operator_id") != nil {
		t.Errorf("expected nil for an invalid uuid")
	}
	from := q.time("from")
	if from == nil || from.Day() != 1 || from.Hour() != 0 {
		t.Errorf("expected a date-only value to parse as midnight, got %v", from)
	}
	if to := q.time("to"); to == nil || to.Hour() != 10 {
		t.Errorf("expected RFC 3339 value to parse, got %v", to)
	}
	q.int("limit")
	if got := q.int("offset"); got != 7 {
		t.Errorf("expected offset 7, got %d", got)
	}
	if q.uuid("task_id") != nil {
		t.Errorf("expected nil for a missing parameter")
	}

	var verr *services.ValidationError
	if !errors.As(q.err(), &verr) {
		t.Fatalf("expected a validation error")
	}
	if _, ok := verr.Fields["operator_id"]; !ok {
		t.Errorf("expected operator_id field error")
	}
	if _, ok := verr.Fields["limit"]; !ok {
		t.Errorf("expected limit field error")
	}
	if len(verr.Fields) != 2 {
		t.Errorf("expected exactly 2 field errors, got %v", verr.Fields)
	}
}
