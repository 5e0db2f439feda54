package models

import (
	"time"

	"github.com/google/uuid"
)

type OperatorStats struct {
	OperatorID uuid.UUID `json:"operator_id"`
	FullName   string    `json:"full_name"`
	Assigned   int       `json:"assigned"`
	Completed  int       `json:"completed"`
}

type ReportSummary struct {
	From                    time.Time       `json:"from"`
	To                      time.Time       `json:"to"`
	ChecksByStatus          map[string]int  `json:"checks_by_status"`
	TotalChecks             int             `json:"total_checks"`
	CompletionRate          float64         `json:"completion_rate"`
	NonComplianceBySeverity map[string]int  `json:"non_compliance_by_severity"`
	NonComplianceByStatus   map[string]int  `json:"non_compliance_by_status"`
	Operators               []OperatorStats `json:"operators"`
}

type ExportRequest struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type CalendarDay struct {
	Date   string         `json:"date"`
	Checks []*Check       `json:"checks"`
	Counts map[string]int `json:"counts"`
}
