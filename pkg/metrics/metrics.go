// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnsTotal tracks conversation turns by the step they ended in.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_turns_total",
			Help: "Total conversation turns processed",
		},
		[]string{"flow", "step"},
	)

	// TurnDuration tracks engine time per turn.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onboarding_turn_duration_seconds",
			Help:    "Conversation turn processing time",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		},
		[]string{"flow"},
	)

	// TurnTimeouts tracks turns that hit the turn timeout.
	TurnTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "onboarding_turn_timeouts_total",
			Help: "Conversation turns that exceeded the turn timeout",
		},
	)

	// ExtractionConfidence tracks per-field extraction confidence.
	ExtractionConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onboarding_extraction_confidence",
			Help:    "Confidence score of extracted fields",
			Buckets: []float64{30, 50, 60, 70, 80, 90, 95, 100},
		},
		[]string{"field"},
	)

	// RecoveriesTotal tracks recovery messages by category.
	RecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_recoveries_total",
			Help: "Recovery prompts issued by failure category",
		},
		[]string{"category"},
	)

	// ProvisioningStages tracks provisioning stage outcomes.
	ProvisioningStages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_stage_total",
			Help: "Provisioning stage outcomes",
		},
		[]string{"stage", "outcome"},
	)

	// ProvisioningDuration tracks the full provisioning pipeline.
	ProvisioningDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provisioning_duration_seconds",
			Help:    "Provisioning pipeline duration",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 90},
		},
		[]string{"status"},
	)

	// ReportAttempts tracks report generation attempts per provisioning.
	ReportAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "report_generation_attempts",
			Help:    "Attempts needed for the initial report",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// LLMRequestDuration tracks LLM completion duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ProbeChecks tracks dependency status checks by result.
	ProbeChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probe_checks_total",
			Help: "External dependency status checks",
		},
		[]string{"result"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// NATSStreamMessages tracks messages in NATS stream.
	NATSStreamMessages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_messages",
			Help: "Number of messages in NATS stream",
		},
		[]string{"stream"},
	)

	// SessionsTotal tracks onboarding sessions created.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_sessions_total",
			Help: "Total onboarding sessions created",
		},
		[]string{"tenant_id"},
	)

	// MessagesTotal tracks total messages exchanged.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages exchanged",
		},
		[]string{"tenant_id", "role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records metrics for a processed conversation turn.
func RecordTurn(flow, step string, duration float64) {
	TurnsTotal.WithLabelValues(flow, step).Inc()
	TurnDuration.WithLabelValues(flow).Observe(duration)
}

// RecordStage records the outcome of one provisioning stage.
func RecordStage(stage, outcome string) {
	ProvisioningStages.WithLabelValues(stage, outcome).Inc()
}

// RecordLLM records metrics for an LLM completion.
func RecordLLM(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
