package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type taskService interface {
	List(ctx context.Context, domainID uuid.UUID, f models.TaskFilter) ([]*models.Task, int, error)
	Get(ctx context.Context, domainID, id uuid.UUID) (*models.Task, error)
	Create(ctx context.Context, caller middleware.Identity, req models.TaskRequest) (*models.Task, error)
	Update(ctx context.Context, caller middleware.Identity, id uuid.UUID, req models.TaskRequest) (*models.Task, error)
	Cancel(ctx context.Context, domainID, id uuid.UUID) error
}

type TaskHandler struct {
	tasks taskService
}

func NewTaskHandler(tasks taskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryFilters(r)
	f := models.TaskFilter{
		Status:     r.URL.Query().Get("status"),
		OperatorID: q.uuid("operator_id"),
		ObjectID:   q.uuid("object_id"),
		From:       q.time("from"),
		To:         q.time("to"),
		Limit:      q.int("limit"),
		Offset:     q.int("offset"),
	}
	if err := q.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	id := middleware.GetIdentity(r.Context())
	if id.Role == models.RoleOperator {
		self := id.UserID
		f.OperatorID = &self
	}

	tasks, total, err := h.tasks.List(r.Context(), id.DomainID, f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks":  tasks,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := urlID(w, r, "id", "task")
	if !ok {
		return
	}

	id := middleware.GetIdentity(r.Context())
	task, err := h.tasks.Get(r.Context(), id.DomainID, taskID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if id.Role == models.RoleOperator && task.OperatorID != id.UserID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Task is assigned to another operator", r))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	task, err := h.tasks.Create(r.Context(), middleware.GetIdentity(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID, ok := urlID(w, r, "id", "task")
	if !ok {
		return
	}

	var req models.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	task, err := h.tasks.Update(r.Context(), middleware.GetIdentity(r.Context()), taskID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID, ok := urlID(w, r, "id", "task")
	if !ok {
		return
	}

	if err := h.tasks.Cancel(r.Context(), middleware.GetIdentity(r.Context()).DomainID, taskID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task cancelled"})
}
