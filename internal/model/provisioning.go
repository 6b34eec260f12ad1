package model

import (
	"time"
)

// ProvisioningStage names a step of the project creation pipeline.
type ProvisioningStage string

const (
	StagePrerequisites ProvisioningStage = "prerequisites"
	StageOwner         ProvisioningStage = "owner"
	StageCompetitors   ProvisioningStage = "competitors"
	StageProject       ProvisioningStage = "project"
	StageProduct       ProvisioningStage = "product"
	StageReport        ProvisioningStage = "report"
	StageSchedule      ProvisioningStage = "schedule"
	StageFinalize      ProvisioningStage = "finalize"
)

// SoftFailure records an optional stage that failed without aborting creation.
type SoftFailure struct {
	Stage ProvisioningStage `json:"stage"`
	Error string            `json:"error"`
}

// ProjectRef identifies the created project.
type ProjectRef struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	OwnerID       string   `json:"owner_id"`
	CompetitorIDs []string `json:"competitor_ids"`
}

// ProductOutcome is the result of the optional product stage.
type ProductOutcome struct {
	Attempted bool   `json:"attempted"`
	Created   bool   `json:"created"`
	ProductID string `json:"product_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ReportOutcome is the result of initial report generation.
type ReportOutcome struct {
	Attempted bool   `json:"attempted"`
	Generated bool   `json:"generated"`
	ReportID  string `json:"report_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts"`
}

// ScheduleOutcome is the result of recurring schedule registration.
type ScheduleOutcome struct {
	Attempted  bool       `json:"attempted"`
	Scheduled  bool       `json:"scheduled"`
	ScheduleID string     `json:"schedule_id,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ProvisioningResult aggregates every stage of a committed project creation.
type ProvisioningResult struct {
	CorrelationID      string          `json:"correlation_id"`
	Project            ProjectRef      `json:"project"`
	ProjectCreated     bool            `json:"project_created"`
	Product            ProductOutcome  `json:"product"`
	Report             ReportOutcome   `json:"report"`
	Schedule           ScheduleOutcome `json:"schedule"`
	AIAvailable        bool            `json:"ai_available"`
	AINotice           string          `json:"ai_notice,omitempty"`
	DataQualityConcern bool            `json:"data_quality_concern,omitempty"`
	SoftFailures       []SoftFailure   `json:"soft_failures,omitempty"`
	Duration           time.Duration   `json:"duration"`
}

// ProductCreated reports whether the optional product record exists.
func (r *ProvisioningResult) ProductCreated() bool {
	return r.Product.Created
}

// FullySucceeded reports whether no optional stage failed.
func (r *ProvisioningResult) FullySucceeded() bool {
	return r.ProjectCreated && len(r.SoftFailures) == 0
}

// AssignmentPreview describes which competitors a project would receive.
type AssignmentPreview struct {
	Total           int      `json:"total"`
	Names           []string `json:"names,omitempty"`
	MatchedHints    bool     `json:"matched_hints"`
	IncompleteCount int      `json:"incomplete_count"`
}
