package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
	"inspecta-backend/internal/services"
)

type stubCheckService struct {
	filter   models.CheckFilter
	complete models.CompleteCheckRequest
	err      error
}

func (s *stubCheckService) List(ctx context.Context, caller middleware.Identity, f models.CheckFilter) ([]*models.Check, error) {
	s.filter = f
	return []*models.Check{}, s.err
}

func (s *stubCheckService) Get(ctx context.Context, caller middleware.Identity, id uuid.UUID) (*models.Check, error) {
	return &models.Check{ID: id}, s.err
}

func (s *stubCheckService) Start(ctx context.Context, caller middleware.Identity, id uuid.UUID) (*models.Check, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Check{ID: id, Status: models.CheckInProgress}, nil
}

func (s *stubCheckService) Complete(ctx context.Context, caller middleware.Identity, id uuid.UUID, req models.CompleteCheckRequest) (*models.Check, error) {
	s.complete = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Check{ID: id, Status: models.CheckCompleted}, nil
}

type stubSyncer struct {
	checkID uuid.UUID
	req     models.SyncRequest
}

func (s *stubSyncer) Sync(ctx context.Context, caller middleware.Identity, checkID uuid.UUID, req models.SyncRequest) (*models.SyncPlan, error) {
	s.checkID = checkID
	s.req = req
	return &models.SyncPlan{Applied: !req.DryRun}, nil
}

func TestCheckHandler_ListFilters(t *testing.T) {
	svc := &stubCheckService{}
	h := NewCheckHandler(svc, &stubSyncer{})
	taskID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checks?status=pending&task_id="+taskID.String()+"&from=2026-05-01&to=2026-05-08", nil)
	rr := httptest.NewRecorder()
	h.List(rr, withIdentity(req, operatorIdentity()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.filter.Status != "pending" {
		t.Errorf("expected status filter, got %q", svc.filter.Status)
	}
	if svc.filter.TaskID == nil || *svc.filter.TaskID != taskID {
		t.Errorf("expected task filter %s, got %v", taskID, svc.filter.TaskID)
	}
	if svc.filter.From == nil || svc.filter.To == nil {
		t.Errorf("expected both window bounds to be set")
	}
}

func TestCheckHandler_ListRejectsBadFilter(t *testing.T) {
	h := NewCheckHandler(&stubCheckService{}, &stubSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checks?from=yesterday", nil)
	rr := httptest.NewRecorder()
	h.List(rr, withIdentity(req, operatorIdentity()))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if _, ok := decodeError(t, rr).Fields["from"]; !ok {
		t.Errorf("expected a field error for 'from'")
	}
}

func TestCheckHandler_StartConflict(t *testing.T) {
	h := NewCheckHandler(&stubCheckService{err: &services.ConflictError{Message: "Check cannot be started from status completed"}}, &stubSyncer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks/x/start", nil)
	req = withURLParam(withIdentity(req, operatorIdentity()), "id", uuid.NewString())
	rr := httptest.NewRecorder()
	h.Start(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestCheckHandler_Complete(t *testing.T) {
	svc := &stubCheckService{}
	h := NewCheckHandler(svc, &stubSyncer{})
	paramID := uuid.New()

	body := `{"results":[{"parameter_id":"` + paramID.String() + `","value":"4.2"}],"notes":"ok"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks/x/complete", strings.NewReader(body))
	req = withURLParam(withIdentity(req, operatorIdentity()), "id", uuid.NewString())
	rr := httptest.NewRecorder()
	h.Complete(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(svc.complete.Results) != 1 || svc.complete.Results[0].ParameterID != paramID {
		t.Errorf("unexpected results %+v", svc.complete.Results)
	}
	if svc.complete.Results[0].Compliant != nil {
		t.Errorf("expected compliant to stay unset when omitted")
	}
}

func TestCheckHandler_InvalidID(t *testing.T) {
	h := NewCheckHandler(&stubCheckService{}, &stubSyncer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checks/abc", nil)
	req = withURLParam(withIdentity(req, operatorIdentity()), "id", "abc")
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCheckHandler_SyncDryRunFromQuery(t *testing.T) {
	syncer := &stubSyncer{}
	h := NewCheckHandler(&stubCheckService{}, syncer)
	checkID := uuid.New()

	body := `{"parameters":[{"name":"Water pressure","value":"1.2","compliant":false}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks/x/non-compliances/sync?dry_run=true", strings.NewReader(body))
	req = withURLParam(withIdentity(req, operatorIdentity()), "id", checkID.String())
	rr := httptest.NewRecorder()
	h.SyncNonCompliances(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if syncer.checkID != checkID || !syncer.req.DryRun {
		t.Errorf("expected a dry run for %s, got %s dry=%v", checkID, syncer.checkID, syncer.req.DryRun)
	}
	if len(syncer.req.Parameters) != 1 || syncer.req.Parameters[0].Name != "Water pressure" {
		t.Errorf("unexpected parameters %+v", syncer.req.Parameters)
	}

	var plan models.SyncPlan
	if err := json.NewDecoder(rr.Body).Decode(&plan); err != nil {
		t.Fatalf("failed to decode plan: %v", err)
	}
	if plan.Applied {
		t.Errorf("dry run must not report the plan as applied")
	}
}
