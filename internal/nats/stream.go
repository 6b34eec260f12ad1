package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
)

const (
	// StreamName is the name of the onboarding stream.
	StreamName = "ONBOARDING"

	// SubjectPrefix is the prefix for all onboarding subjects.
	SubjectPrefix = "onb"

	// EnrichmentPrefix is the prefix for product enrichment requests.
	EnrichmentPrefix = "enrich"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the onboarding stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>", EnrichmentPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Onboarding session events and enrichment requests",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for a session event.
func EventSubject(tenantID, sessionID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, token(tenantID), token(sessionID), eventType)
}

// SessionFilter returns the filter subject for all events of a session.
func SessionFilter(tenantID, sessionID string) string {
	return fmt.Sprintf("%s.%s.%s.event.>", SubjectPrefix, token(tenantID), token(sessionID))
}

// EnrichmentSubject returns the subject for a product enrichment request.
func EnrichmentSubject(projectID string) string {
	return fmt.Sprintf("%s.product.%s", EnrichmentPrefix, token(projectID))
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// PublishEvent publishes a session event to JetStream.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error) {
	subject := EventSubject(event.TenantID, event.SessionID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// RequestEnrichment publishes a product enrichment request.
func (m *StreamManager) RequestEnrichment(ctx context.Context, req model.EnrichmentRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal enrichment request: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, EnrichmentSubject(req.ProjectID), data); err != nil {
		return fmt.Errorf("failed to publish enrichment request: %w", err)
	}
	return nil
}

// GetEvents retrieves the events of a session starting after a sequence.
func (m *StreamManager) GetEvents(ctx context.Context, tenantID, sessionID string, afterSequence uint64, limit int) ([]model.SessionEvent, uint64, bool, error) {
	js := m.client.JetStream()

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject:     SessionFilter(tenantID, sessionID),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: time.Minute,
	}

	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}
	defer func() {
		info := consumer.CachedInfo()
		if info != nil {
			_ = js.DeleteConsumer(context.WithoutCancel(ctx), StreamName, info.Name)
		}
	}()

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch events: %w", err)
	}

	var events []model.SessionEvent
	var lastSequence uint64

	for msg := range batch.Messages() {
		var event model.SessionEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}

		if meta, err := msg.Metadata(); err == nil {
			event.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}

		events = append(events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	return events, lastSequence, len(events) == limit, nil
}

// RecordStreamSize refreshes the stream size gauge.
func (m *StreamManager) RecordStreamSize(ctx context.Context) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to load stream: %w", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stream info: %w", err)
	}
	metrics.NATSStreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
	return nil
}
