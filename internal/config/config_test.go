package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.TurnTimeout)
	assert.Equal(t, 90*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, 3, cfg.ReportMaxRetries)
	assert.False(t, cfg.NATSEnabled)
	assert.Equal(t, []string{"https://*", "http://*"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TURN_TIMEOUT", "2s")
	t.Setenv("PIPELINE_TIMEOUT", "bogus")
	t.Setenv("REPORT_MAX_RETRIES", "5")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Load()

	assert.Equal(t, 2*time.Second, cfg.TurnTimeout)
	assert.Equal(t, 90*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, 5, cfg.ReportMaxRetries)
	assert.True(t, cfg.NATSEnabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "sk-test", cfg.LLMAPIKey())
}
