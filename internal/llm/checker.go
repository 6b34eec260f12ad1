package llm

import (
	"context"

	"github.com/capitalize-ai/project-onboarding/internal/probe"
)

// ConnectionChecker tests whether the configured provider answers.
type ConnectionChecker struct {
	client Client
	model  string
}

// NewConnectionChecker creates a checker for client. A nil client always
// reports unavailable.
func NewConnectionChecker(client Client, model string) *ConnectionChecker {
	return &ConnectionChecker{client: client, model: model}
}

// TestConnection sends a one-token completion.
func (c *ConnectionChecker) TestConnection(ctx context.Context) probe.ConnectionResult {
	if c.client == nil {
		return probe.ConnectionResult{ErrorDetail: "no llm provider configured"}
	}

	_, err := c.client.Complete(ctx, &CompletionRequest{
		Model:     c.model,
		MaxTokens: 1,
		Prompt:    "ping",
	})
	if err != nil {
		return probe.ConnectionResult{ErrorDetail: err.Error()}
	}
	return probe.ConnectionResult{OK: true}
}
