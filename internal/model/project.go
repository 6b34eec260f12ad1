package model

import (
	"time"
)

// Owner is the account that owns created projects.
type Owner struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Competitor is an entry of the shared competitor pool.
type Competitor struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Website     string `json:"website,omitempty" yaml:"website,omitempty"`
	Industry    string `json:"industry,omitempty" yaml:"industry,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Complete reports whether the competitor has enough data for a report.
func (c Competitor) Complete() bool {
	return c.Name != "" && c.Website != "" && c.Description != ""
}

// NewProject is the input to project creation.
type NewProject struct {
	Name          string
	OwnerID       string
	CompetitorIDs []string
	Metadata      map[string]string
}

// Project is a persisted competitive-analysis project.
type Project struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	OwnerID       string            `json:"owner_id"`
	CompetitorIDs []string          `json:"competitor_ids"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewProduct is the input to product creation.
type NewProduct struct {
	ProjectID           string
	Name                string
	URL                 string
	Industry            string
	Positioning         string
	CustomerDescription string
	ProblemStatement    string
}

// Product is the user's own product tracked alongside competitors.
type Product struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportConfig controls report generation.
type ReportConfig struct {
	Template         string   `json:"template,omitempty"`
	FocusAreas       []string `json:"focus_areas,omitempty"`
	Cadence          Cadence  `json:"cadence,omitempty"`
	AllowPartialData bool     `json:"allow_partial_data"`
	ForceGeneration  bool     `json:"force_generation"`
}

// Report is a generated competitive-analysis report.
type Report struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Content    string    `json:"content"`
	Partial    bool      `json:"partial"`
	AIAssisted bool      `json:"ai_assisted"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScheduleInfo describes a registered recurring report schedule.
type ScheduleInfo struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Cadence   Cadence   `json:"cadence"`
	NextRunAt time.Time `json:"next_run_at"`
}
