package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaskPlanned   = "planned"
	TaskActive    = "active"
	TaskCompleted = "completed"
	TaskCancelled = "cancelled"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"

	RecurrenceNone    = "none"
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"

	CheckPending    = "pending"
	CheckInProgress = "in_progress"
	CheckCompleted  = "completed"
	CheckMissed     = "missed"
	CheckCancelled  = "cancelled"
)

type Task struct {
	ID              uuid.UUID  `json:"id"`
	DomainID        uuid.UUID  `json:"domain_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ObjectID        uuid.UUID  `json:"object_id"`
	OperatorID      uuid.UUID  `json:"operator_id"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	StartsAt        time.Time  `json:"starts_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Recurrence      string     `json:"recurrence"`
	RecurrenceUntil *time.Time `json:"recurrence_until"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type TaskRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ObjectID        uuid.UUID  `json:"object_id"`
	OperatorID      uuid.UUID  `json:"operator_id"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	StartsAt        time.Time  `json:"starts_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Recurrence      string     `json:"recurrence"`
	RecurrenceUntil *time.Time `json:"recurrence_until"`
}

type TaskFilter struct {
	Status     string
	OperatorID *uuid.UUID
	ObjectID   *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Check is one scheduled occurrence of a task.
type Check struct {
	ID                uuid.UUID     `json:"id"`
	DomainID          uuid.UUID     `json:"domain_id"`
	TaskID            uuid.UUID     `json:"task_id"`
	TaskTitle         string        `json:"task_title"`
	ObjectID          uuid.UUID     `json:"object_id"`
	ObjectName        string        `json:"object_name"`
	OperatorID        uuid.UUID     `json:"operator_id"`
	ScheduledFor      time.Time     `json:"scheduled_for"`
	Status            string        `json:"status"`
	StartedAt         *time.Time    `json:"started_at"`
	CompletedAt       *time.Time    `json:"completed_at"`
	Notes             string        `json:"notes"`
	OverdueNotifiedAt *time.Time    `json:"-"`
	CreatedAt         time.Time     `json:"created_at"`
	Results           []CheckResult `json:"results,omitempty"`
}

type CheckResult struct {
	CheckID       uuid.UUID `json:"check_id"`
	ParameterID   uuid.UUID `json:"parameter_id"`
	ParameterName string    `json:"parameter_name"`
	Value         string    `json:"value"`
	Compliant     bool      `json:"compliant"`
	RecordedAt    time.Time `json:"recorded_at"`
}

type CheckFilter struct {
	Status     string
	OperatorID *uuid.UUID
	TaskID     *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type ResultInput struct {
	ParameterID uuid.UUID `json:"parameter_id"`
	Value       string    `json:"value"`
	Compliant   *bool     `json:"compliant"`
}

type CompleteCheckRequest struct {
	Results []ResultInput `json:"results"`
	Notes   string        `json:"notes"`
}
