package models

import (
	"time"

	"github.com/google/uuid"
)

const ChatRoomGeneral = "general"

type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	DomainID   uuid.UUID `json:"domain_id"`
	Room       string    `json:"room"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

type PostMessageRequest struct {
	Body string `json:"body"`
}
