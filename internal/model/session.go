// Package model defines data structures for the project onboarding service.
package model

import (
	"time"
)

// Step is a named state of the onboarding conversation.
type Step string

const (
	StepUninitialized Step = "uninitialized"
	StepCollecting    Step = "collecting"
	StepConfirming    Step = "confirming"
	StepComplete      Step = "complete"
	StepResumeChoice  Step = "resume_choice"

	// Legacy linear flow, one field group per turn.
	StepLegacyProductInfo         Step = "legacy_product_info"
	StepLegacyProductConfirm      Step = "legacy_product_confirm"
	StepLegacyCustomerDescription Step = "legacy_customer_description"
	StepLegacyAnalysisConfirm     Step = "legacy_analysis_confirm"
	StepLegacyReportGeneration    Step = "legacy_report_generation"
	StepLegacyDeliveryChoice      Step = "legacy_delivery_choice"
)

var legacySteps = map[Step]bool{
	StepLegacyProductInfo:         true,
	StepLegacyProductConfirm:      true,
	StepLegacyCustomerDescription: true,
	StepLegacyAnalysisConfirm:     true,
	StepLegacyReportGeneration:    true,
	StepLegacyDeliveryChoice:      true,
}

var comprehensiveSteps = map[Step]bool{
	StepUninitialized: true,
	StepCollecting:    true,
	StepConfirming:    true,
	StepComplete:      true,
	StepResumeChoice:  true,
}

// IsLegacy reports whether the step belongs to the legacy linear flow.
func (s Step) IsLegacy() bool {
	return legacySteps[s]
}

// Known reports whether the step is part of either flow.
func (s Step) Known() bool {
	return s == "" || legacySteps[s] || comprehensiveSteps[s]
}

// FlowMode identifies which state machine drives a session.
type FlowMode string

const (
	FlowComprehensive FlowMode = "comprehensive"
	FlowLegacy        FlowMode = "legacy"
)

// InputKind hints to clients what kind of reply the assistant expects next.
type InputKind string

const (
	InputFreeText     InputKind = "free_text"
	InputConfirmation InputKind = "confirmation"
	InputChoice       InputKind = "choice"
	InputNone         InputKind = "none"
)

// CollectedData is the session's accumulator. The legacy-only fields are only
// ever set by the legacy flow.
type CollectedData struct {
	Record     RequirementsRecord `json:"record"`
	Confidence FieldConfidence    `json:"confidence,omitempty"`

	ProductConfirmed  *bool  `json:"product_confirmed,omitempty"`
	AnalysisConfirmed *bool  `json:"analysis_confirmed,omitempty"`
	DeliveryChoice    string `json:"delivery_choice,omitempty"`
}

// HasLegacyFields reports whether any legacy-only field is present.
func (c CollectedData) HasLegacyFields() bool {
	return c.ProductConfirmed != nil || c.AnalysisConfirmed != nil || c.DeliveryChoice != ""
}

// Merge folds an extraction into the accumulator using the record merge rule.
func (c *CollectedData) Merge(rec RequirementsRecord, conf FieldConfidence) {
	c.Record = c.Record.Merge(rec)
	c.Confidence = c.Confidence.Merge(rec, conf)
}

// Session is a single onboarding conversation. It serializes to the
// persisted snapshot and carries no other in-process state.
type Session struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`

	Step          Step          `json:"step,omitempty"`
	FlowMode      FlowMode      `json:"flow_mode,omitempty"`
	CollectedData CollectedData `json:"collected_data"`
	ProjectID     string        `json:"project_id,omitempty"`
	Messages      []Message     `json:"messages"`

	// AwaitingField is set when the last prompt asked for exactly one field.
	AwaitingField     Field `json:"awaiting_field,omitempty"`
	MigrationOffered  bool  `json:"migration_offered,omitempty"`
	ProvisionFailures int   `json:"provision_failures,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentStep returns the step, treating an unset step as uninitialized.
func (s *Session) CurrentStep() Step {
	if s.Step == "" {
		return StepUninitialized
	}
	return s.Step
}

// AppendMessage adds an entry to the message log.
func (s *Session) AppendMessage(role Role, content string, now time.Time) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Step:      s.CurrentStep(),
		Timestamp: now,
	})
	s.UpdatedAt = now
}

// Clone returns a deep copy so a turn can be abandoned without touching the original.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.CollectedData.Record = s.CollectedData.Record.Clone()
	if s.CollectedData.Confidence != nil {
		c.CollectedData.Confidence = make(FieldConfidence, len(s.CollectedData.Confidence))
		for k, v := range s.CollectedData.Confidence {
			c.CollectedData.Confidence[k] = v
		}
	}
	if s.CollectedData.ProductConfirmed != nil {
		v := *s.CollectedData.ProductConfirmed
		c.CollectedData.ProductConfirmed = &v
	}
	if s.CollectedData.AnalysisConfirmed != nil {
		v := *s.CollectedData.AnalysisConfirmed
		c.CollectedData.AnalysisConfirmed = &v
	}
	return &c
}

// CreateSessionRequest is the request to start a session. Flow defaults to comprehensive.
type CreateSessionRequest struct {
	Flow FlowMode `json:"flow,omitempty"`
}

// CreateSessionResponse is the response to creating a session.
type CreateSessionResponse struct {
	Session       *Session `json:"session"`
	AssistantText string   `json:"assistant_text"`
}
