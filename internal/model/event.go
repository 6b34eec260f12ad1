package model

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	EventTurnProcessed        EventType = "turn_processed"
	EventTurnTimeout          EventType = "turn_timeout"
	EventRecovery             EventType = "recovery"
	EventProjectCreated       EventType = "project_created"
	EventProvisioningAborted  EventType = "provisioning_aborted"
	EventDataQualityConcern   EventType = "data_quality_concern"
	EventProductCreated       EventType = "product_created"
	EventProductFailed        EventType = "product_failed"
	EventEnrichmentRequested  EventType = "enrichment_requested"
	EventReportGenerated      EventType = "report_generated"
	EventReportFailed         EventType = "report_failed"
	EventScheduleRegistered   EventType = "schedule_registered"
	EventScheduleFailed       EventType = "schedule_failed"
	EventProvisioningFinished EventType = "provisioning_finished"
)

// SessionEvent represents an event in a session or its provisioning run.
type SessionEvent struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id"`
	TenantID      string         `json:"tenant_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Type          EventType      `json:"type"`
	Reason        string         `json:"reason"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Sequence      uint64         `json:"sequence,omitempty"`
}

// ListEventsResponse is the response for listing session events.
type ListEventsResponse struct {
	Events       []SessionEvent `json:"events"`
	HasMore      bool           `json:"has_more"`
	LastSequence uint64         `json:"last_sequence"`
}

// EnrichmentRequest asks the enrichment workers to scrape a newly created product.
type EnrichmentRequest struct {
	CorrelationID string    `json:"correlation_id"`
	ProjectID     string    `json:"project_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	ProductURL    string    `json:"product_url"`
	RequestedAt   time.Time `json:"requested_at"`
}
