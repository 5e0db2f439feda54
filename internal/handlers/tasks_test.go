package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type stubTaskService struct {
	filter models.TaskFilter
	task   *models.Task
}

func (s *stubTaskService) List(ctx context.Context, domainID uuid.UUID, f models.TaskFilter) ([]*models.Task, int, error) {
	s.filter = f
	return []*models.Task{}, 0, nil
}

func (s *stubTaskService) Get(ctx context.Context, domainID, id uuid.UUID) (*models.Task, error) {
	return s.task, nil
}

func (s *stubTaskService) Create(ctx context.Context, caller middleware.Identity, req models.TaskRequest) (*models.Task, error) {
	return &models.Task{ID: uuid.New(), Title: req.Title}, nil
}

func (s *stubTaskService) Update(ctx context.Context, caller middleware.Identity, id uuid.UUID, req models.TaskRequest) (*models.Task, error) {
	return &models.Task{ID: id, Title: req.Title}, nil
}

func (s *stubTaskService) Cancel(ctx context.Context, domainID, id uuid.UUID) error {
	return nil
}

func TestTaskHandler_OperatorSeesOwnTasks(t *testing.T) {
	svc := &stubTaskService{}
	h := NewTaskHandler(svc)
	id := operatorIdentity()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?operator_id="+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	h.List(rr, withIdentity(req, id))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.filter.OperatorID == nil || *svc.filter.OperatorID != id.UserID {
		t.Errorf("expected operator filter to be forced to the caller")
	}
}

func TestTaskHandler_GetForeignTask(t *testing.T) {
	svc := &stubTaskService{task: &models.Task{ID: uuid.New(), OperatorID: uuid.New()}}
	h := NewTaskHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/x", nil)
	req = withURLParam(withIdentity(req, operatorIdentity()), "id", svc.task.ID.String())
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	supervisor := operatorIdentity()
	supervisor.Role = models.RoleSupervisor
	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks/x", nil)
	req = withURLParam(withIdentity(req, supervisor), "id", svc.task.ID.String())
	rr = httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for a supervisor, got %d", rr.Code)
	}
}
