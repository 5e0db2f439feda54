package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type chatService interface {
	List(ctx context.Context, caller middleware.Identity, room string, before *time.Time, limit int) ([]*models.ChatMessage, error)
	Post(ctx context.Context, caller middleware.Identity, room, body string) (*models.ChatMessage, error)
}

type ChatHandler struct {
	chat chatService
}

func NewChatHandler(chat chatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryFilters(r)
	before := q.time("before")
	limit := q.int("limit")
	if err := q.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	room := chi.URLParam(r, "room")
	messages, err := h.chat.List(r.Context(), middleware.GetIdentity(r.Context()), room, before, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"room": room, "messages": messages})
}

func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req models.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	msg, err := h.chat.Post(r.Context(), middleware.GetIdentity(r.Context()), chi.URLParam(r, "room"), req.Body)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
