// Package llm provides the model clients used to write report narratives.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CompletionRequest is a single-prompt completion.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	Latency    time.Duration
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

const defaultMaxTokens = 1024

// ErrCredentials matches provider errors caused by rejected or expired credentials.
var ErrCredentials = errors.New("credentials expired or invalid")

// ProviderError is a failed provider call with its HTTP status, when known.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return fmt.Sprintf("%s: %d: %v: %v", e.Provider, e.StatusCode, ErrCredentials, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCredentials) match auth failures.
func (e *ProviderError) Is(target error) bool {
	return target == ErrCredentials &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// DefaultModel returns the model used for report narratives.
func DefaultModel(provider Provider) string {
	if provider == ProviderOpenAI {
		return "gpt-4o-mini"
	}
	return "claude-3-5-haiku-20241022"
}

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic, "":
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

func maxTokens(req *CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}
