package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	InstructionReady      = "ready"
	InstructionProcessing = "processing"
	InstructionFailed     = "failed"
)

type InstructionCategory struct {
	ID        uuid.UUID `json:"id"`
	DomainID  uuid.UUID `json:"domain_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Instruction struct {
	ID            uuid.UUID  `json:"id"`
	DomainID      uuid.UUID  `json:"domain_id"`
	CategoryID    *uuid.UUID `json:"category_id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	FilePath      *string    `json:"-"`
	HasDocument   bool       `json:"has_document"`
	ExtractedText *string    `json:"extracted_text,omitempty"`
	Status        string     `json:"status"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type InstructionRequest struct {
	CategoryID *uuid.UUID `json:"category_id"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
}
