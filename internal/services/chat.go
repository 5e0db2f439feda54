package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

const (
	maxMessageRunes     = 4000
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	taskRoomPrefix      = "task:"
)

type chatStore interface {
	Create(ctx context.Context, m *models.ChatMessage) error
	ListByRoom(ctx context.Context, domainID uuid.UUID, room string, before *time.Time, limit int) ([]*models.ChatMessage, error)
}

type taskLookup interface {
	GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Task, error)
}

type ChatService struct {
	messages  chatStore
	tasks     taskLookup
	publisher Publisher
}

func NewChatService(messages chatStore, tasks taskLookup, publisher Publisher) *ChatService {
	return &ChatService{messages: messages, tasks: tasks, publisher: publisher}
}

// parseRoom splits a room name into its kind. It returns the task id for
// task rooms.
func parseRoom(room string) (uuid.UUID, bool) {
	if room == models.ChatRoomGeneral {
		return uuid.Nil, true
	}
	if !strings.HasPrefix(room, taskRoomPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(room, taskRoomPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *ChatService) checkRoom(ctx context.Context, domainID uuid.UUID, room string) error {
	taskID, ok := parseRoom(room)
	if !ok {
		return &ValidationError{Fields: map[string]string{"room": "Room must be general or task:<id>"}}
	}
	if taskID == uuid.Nil {
		return nil
	}
	if _, err := s.tasks.GetByID(ctx, domainID, taskID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Task not found"}
		}
		return err
	}
	return nil
}

func clampMessageLimit(limit int) int {
	if limit <= 0 {
		return defaultMessageLimit
	}
	if limit > maxMessageLimit {
		return maxMessageLimit
	}
	return limit
}

// List returns messages newest first.
func (s *ChatService) List(ctx context.Context, caller middleware.Identity, room string, before *time.Time, limit int) ([]*models.ChatMessage, error) {
	if err := s.checkRoom(ctx, caller.DomainID, room); err != nil {
		return nil, err
	}
	return s.messages.ListByRoom(ctx, caller.DomainID, room, before, clampMessageLimit(limit))
}

func (s *ChatService) Post(ctx context.Context, caller middleware.Identity, room, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, &ValidationError{Fields: map[string]string{"body": "Message is required"}}
	}
	if utf8.RuneCountInString(body) > maxMessageRunes {
		return nil, &ValidationError{Fields: map[string]string{"body": "Message must be at most 4000 characters"}}
	}
	if err := s.checkRoom(ctx, caller.DomainID, room); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		DomainID: caller.DomainID,
		Room:     room,
		SenderID: caller.UserID,
		Body:     body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PublishDomain(ctx, caller.DomainID, models.WSMessage{Type: "chat_message", Payload: msg})
	}
	return msg, nil
}
