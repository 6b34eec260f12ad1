package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/project-onboarding/internal/probe"
)

type stubClient struct {
	err  error
	last *CompletionRequest
}

func (s *stubClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &CompletionResponse{Content: "pong", Model: req.Model}, nil
}

func (s *stubClient) Name() string { return "stub" }

func TestConnectionChecker(t *testing.T) {
	ok := &stubClient{}
	res := NewConnectionChecker(ok, "stub-1").TestConnection(context.Background())
	assert.True(t, res.OK)
	assert.Equal(t, 1, ok.last.MaxTokens)

	failing := &stubClient{err: errors.New("401 Unauthorized: token expired")}
	res = NewConnectionChecker(failing, "stub-1").TestConnection(context.Background())
	assert.False(t, res.OK)
	assert.Contains(t, res.ErrorDetail, "expired")

	res = NewConnectionChecker(nil, "").TestConnection(context.Background())
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.ErrorDetail)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(ProviderAnthropic, "")
	assert.Error(t, err)
	_, err = NewClient(ProviderOpenAI, "")
	assert.Error(t, err)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(Provider("bard"), "key")
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestProviderError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		credentials bool
	}{
		{name: "unauthorized", status: 401, credentials: true},
		{name: "forbidden", status: 403, credentials: true},
		{name: "overloaded", status: 529},
		{name: "network", status: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cause := errors.New("boom")
			err := error(&ProviderError{Provider: "anthropic", StatusCode: tt.status, Err: cause})

			assert.ErrorIs(t, err, cause)
			assert.Equal(t, tt.credentials, errors.Is(err, ErrCredentials))
			assert.Equal(t, tt.credentials, probe.IsExpiredCredentials(err.Error()))
		})
	}
}
