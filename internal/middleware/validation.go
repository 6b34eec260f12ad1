package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

// MaxMessageLength bounds one user turn in bytes.
const MaxMessageLength = 20000

// ValidateMessageContent validates message content. Empty content is
// allowed; it re-issues the current prompt.
func ValidateMessageContent(content string) error {
	if len(content) > MaxMessageLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateSessionID validates a session ID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid session ID format")
	}
	return nil
}

// ValidateFlowMode validates the requested flow of a new session.
func ValidateFlowMode(flow model.FlowMode) error {
	switch flow {
	case "", model.FlowComprehensive, model.FlowLegacy:
		return nil
	}
	return errors.New(`flow must be "comprehensive" or "legacy"`)
}
