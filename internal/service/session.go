// Package service wires the conversation engine to storage, provisioning and
// the session event stream.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/conversation"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/provision"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
)

// DefaultPipelineTimeout bounds one provisioning run.
const DefaultPipelineTimeout = 90 * time.Second

var (
	// ErrSessionNotFound is returned for unknown sessions and sessions of another tenant.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEventsUnavailable is returned when no event stream is configured.
	ErrEventsUnavailable = errors.New("session events unavailable")
)

// SessionStore persists session snapshots.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*model.Session, error)
	SaveSession(ctx context.Context, s *model.Session) error
}

// Provisioner creates projects from confirmed records.
type Provisioner interface {
	Provision(ctx context.Context, req provision.Request) (*model.ProvisioningResult, error)
}

// EventLog publishes and replays session events.
type EventLog interface {
	PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error)
	GetEvents(ctx context.Context, tenantID, sessionID string, afterSequence uint64, limit int) ([]model.SessionEvent, uint64, bool, error)
}

// Config holds session service settings.
type Config struct {
	PipelineTimeout time.Duration
}

// SessionService handles onboarding sessions.
type SessionService struct {
	store       SessionStore
	engine      *conversation.Engine
	provisioner Provisioner
	events      EventLog
	cfg         Config
	logger      *logger.Logger

	locks *keyedMutex
	now   func() time.Time
}

// NewSessionService creates a session service. events may be nil.
func NewSessionService(
	store SessionStore,
	engine *conversation.Engine,
	provisioner Provisioner,
	events EventLog,
	cfg Config,
	log *logger.Logger,
) *SessionService {
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = DefaultPipelineTimeout
	}
	return &SessionService{
		store:       store,
		engine:      engine,
		provisioner: provisioner,
		events:      events,
		cfg:         cfg,
		logger:      log,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// Create starts a new session and returns it with the opening prompt.
func (s *SessionService) Create(ctx context.Context, tenantID, userID string, flow model.FlowMode) (*model.CreateSessionResponse, error) {
	if flow != model.FlowLegacy {
		flow = model.FlowComprehensive
	}
	sess := s.newSession(uuid.Must(uuid.NewV7()).String(), tenantID, userID)
	sess.FlowMode = flow

	welcome := s.engine.Welcome(sess)
	sess.AppendMessage(model.RoleAssistant, welcome, s.now())

	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	metrics.SessionsTotal.WithLabelValues(tenantID).Inc()

	s.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("tenant_id", tenantID),
		zap.String("flow", string(flow)),
	)
	return &model.CreateSessionResponse{Session: sess, AssistantText: welcome}, nil
}

// Get retrieves a session snapshot.
func (s *SessionService) Get(ctx context.Context, tenantID, sessionID string) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil || sess.TenantID != tenantID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Events replays the events of a session from the event stream.
func (s *SessionService) Events(ctx context.Context, tenantID, sessionID string, afterSequence uint64, limit int) (*model.ListEventsResponse, error) {
	if _, err := s.Get(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, ErrEventsUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	events, lastSeq, hasMore, err := s.events.GetEvents(ctx, tenantID, sessionID, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return &model.ListEventsResponse{
		Events:       events,
		HasMore:      hasMore,
		LastSequence: lastSeq,
	}, nil
}

func (s *SessionService) newSession(id, tenantID, userID string) *model.Session {
	now := s.now()
	return &model.Session{
		ID:        id,
		TenantID:  tenantID,
		UserID:    userID,
		Step:      model.StepUninitialized,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// publish records a session event. Failures are logged and never fail the turn.
func (s *SessionService) publish(ctx context.Context, sess *model.Session, correlationID string, typ model.EventType, reason string, meta map[string]any) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	_, err := s.events.PublishEvent(ctx, &model.SessionEvent{
		ID:            uuid.Must(uuid.NewV7()).String(),
		SessionID:     sess.ID,
		TenantID:      sess.TenantID,
		CorrelationID: correlationID,
		Type:          typ,
		Reason:        reason,
		Metadata:      meta,
		CreatedAt:     s.now(),
	})
	if err != nil {
		s.logger.Warn("failed to publish session event",
			zap.String("session_id", sess.ID),
			zap.String("event_type", string(typ)),
			zap.Error(err),
		)
	}
}
