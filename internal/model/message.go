package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of a session's message log.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Step      Step      `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// SubmitMessageRequest is the request to submit a user turn.
type SubmitMessageRequest struct {
	Content string `json:"content"`
}

// SubmitMessageResponse is the response after a turn was processed.
type SubmitMessageResponse struct {
	AssistantText     string              `json:"assistant_text"`
	NextStep          Step                `json:"next_step"`
	ExpectedInputKind InputKind           `json:"expected_input_kind"`
	ProjectID         string              `json:"project_id,omitempty"`
	Provisioning      *ProvisioningResult `json:"provisioning,omitempty"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
