package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"

	CaseOpen       = "open"
	CaseInProgress = "in_progress"
	CaseResolved   = "resolved"
	CaseClosed     = "closed"
)

type NonComplianceCase struct {
	ID              uuid.UUID  `json:"id"`
	DomainID        uuid.UUID  `json:"domain_id"`
	CheckID         uuid.UUID  `json:"check_id"`
	ParameterID     *uuid.UUID `json:"parameter_id"`
	ParameterName   string     `json:"parameter_name"`
	Description     string     `json:"description"`
	Severity        string     `json:"severity"`
	Status          string     `json:"status"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	DetectedAt      time.Time  `json:"detected_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolutionNotes string     `json:"resolution_notes"`
}

func (c *NonComplianceCase) IsActive() bool {
	return c.Status == CaseOpen || c.Status == CaseInProgress
}

type NonComplianceFilter struct {
	Status   string
	Severity string
	CheckID  *uuid.UUID
	Limit    int
	Offset   int
}

type NonComplianceRequest struct {
	CheckID         uuid.UUID  `json:"check_id"`
	ParameterID     *uuid.UUID `json:"parameter_id"`
	ParameterName   string     `json:"parameter_name"`
	Description     string     `json:"description"`
	Severity        string     `json:"severity"`
	Status          string     `json:"status"`
	ResolutionNotes string     `json:"resolution_notes"`
}

// LocalParameter is an inspection parameter as held by the client when it
// asks the server to reconcile non-compliance cases.
type LocalParameter struct {
	ParameterID *uuid.UUID `json:"parameter_id,omitempty" yaml:"parameter_id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Value       string     `json:"value" yaml:"value"`
	Compliant   bool       `json:"compliant" yaml:"compliant"`
}

type SyncRequest struct {
	Parameters []LocalParameter `json:"parameters"`
	DryRun     bool             `json:"dry_run"`
}

type SyncAction struct {
	Parameter LocalParameter     `json:"parameter"`
	Case      *NonComplianceCase `json:"case,omitempty"`
	MatchedBy string             `json:"matched_by,omitempty"`
}

type SyncPlan struct {
	Create    []SyncAction         `json:"create"`
	Resolve   []SyncAction         `json:"resolve"`
	Unchanged []SyncAction         `json:"unchanged"`
	Orphans   []*NonComplianceCase `json:"orphans"`
	Applied   bool                 `json:"applied"`
}
