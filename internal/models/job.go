package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobCheckGeneration       = "check-generation"
	JobReportExport          = "report-export"
	JobInstructionExtraction = "instruction-extraction"

	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
	JobCancelled  = "cancelled"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	DomainID     uuid.UUID       `json:"domain_id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`
	ReferenceID  uuid.UUID       `json:"reference_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	ResultPath   *string         `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type CompletedEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	ResultID   uuid.UUID `json:"result_id"`
	ResultType string    `json:"result_type"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

type CheckOverdueEvent struct {
	CheckID      uuid.UUID `json:"check_id"`
	TaskTitle    string    `json:"task_title"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Status       string    `json:"status"`
}

type SyncEvent struct {
	CheckID  uuid.UUID `json:"check_id"`
	Created  int       `json:"created"`
	Resolved int       `json:"resolved"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
