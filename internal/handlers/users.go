package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type userService interface {
	List(ctx context.Context, domainID uuid.UUID, role string) ([]*models.User, error)
	Create(ctx context.Context, domainID uuid.UUID, req models.CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, domainID, userID uuid.UUID, req models.UpdateUserRequest) (*models.User, error)
	Deactivate(ctx context.Context, domainID, actorID, userID uuid.UUID) error
}

type UserHandler struct {
	users userService
}

func NewUserHandler(users userService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	users, err := h.users.List(r.Context(), id.DomainID, r.URL.Query().Get("role"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	user, err := h.users.Create(r.Context(), middleware.GetIdentity(r.Context()).DomainID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(w, r, "id", "user")
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	user, err := h.users.Update(r.Context(), middleware.GetIdentity(r.Context()).DomainID, userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(w, r, "id", "user")
	if !ok {
		return
	}

	id := middleware.GetIdentity(r.Context())
	if err := h.users.Deactivate(r.Context(), id.DomainID, id.UserID, userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deactivated"})
}
