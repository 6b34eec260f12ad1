package provision

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

// Publisher delivers provisioning events and enrichment requests.
type Publisher interface {
	PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error)
	RequestEnrichment(ctx context.Context, req model.EnrichmentRequest) error
}

// NopPublisher drops everything. It is used when NATS is disabled.
type NopPublisher struct{}

// PublishEvent implements Publisher.
func (NopPublisher) PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error) {
	return 0, nil
}

// RequestEnrichment implements Publisher.
func (NopPublisher) RequestEnrichment(ctx context.Context, req model.EnrichmentRequest) error {
	return nil
}

const publishTimeout = 2 * time.Second

// emit publishes one provisioning event. Publication failures are logged and
// never change the pipeline outcome.
func (p *Provisioner) emit(ctx context.Context, req Request, typ model.EventType, reason string, meta map[string]any) {
	event := &model.SessionEvent{
		ID:            uuid.Must(uuid.NewV7()).String(),
		SessionID:     req.SessionID,
		TenantID:      req.TenantID,
		CorrelationID: req.CorrelationID,
		Type:          typ,
		Reason:        reason,
		Metadata:      meta,
		CreatedAt:     p.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if _, err := p.pub.PublishEvent(ctx, event); err != nil {
		p.log.Warn("failed to publish provisioning event",
			zap.String("correlation_id", req.CorrelationID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}
