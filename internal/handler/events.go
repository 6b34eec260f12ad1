package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/middleware"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/service"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
)

// EventStreamConfig holds event stream timings.
type EventStreamConfig struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// EventHandler streams session events over SSE.
type EventHandler struct {
	service *service.SessionService
	cfg     EventStreamConfig
	logger  *logger.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(svc *service.SessionService, cfg EventStreamConfig, log *logger.Logger) *EventHandler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	return &EventHandler{
		service: svc,
		cfg:     cfg,
		logger:  log,
	}
}

// ReplayCompleteEvent marks the end of the replay of stored events.
type ReplayCompleteEvent struct {
	LastSequence uint64 `json:"last_sequence"`
	EventCount   int    `json:"event_count"`
}

// Stream handles GET /api/v1/sessions/{id}/events
// Supports ?after_sequence=N for resuming from a specific point.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	sessionID := chi.URLParam(r, "id")

	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.service.Get(ctx, tenantID, sessionID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	var afterSequence uint64
	if seqStr := r.URL.Query().Get("after_sequence"); seqStr != "" {
		if seq, err := strconv.ParseUint(seqStr, 10, 64); err == nil {
			afterSequence = seq
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	log := h.logger.ForSession(sessionID, middleware.GetCorrelationID(ctx))
	_ = sendSSEEvent(w, flusher, "connected", map[string]string{
		"session_id": sessionID,
	})

	lastSequence, replayed, err := h.drain(ctx, w, flusher, tenantID, sessionID, afterSequence)
	if err != nil {
		h.sendStreamError(w, flusher, log, err)
		return
	}
	_ = sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		LastSequence: lastSequence,
		EventCount:   replayed,
	})
	log.Info("event replay complete",
		zap.Int("events_replayed", replayed),
		zap.Uint64("last_sequence", lastSequence),
	)

	poll := time.NewTicker(h.cfg.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(h.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("SSE client disconnected")
			return
		case <-poll.C:
			seq, _, err := h.drain(ctx, w, flusher, tenantID, sessionID, lastSequence)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				h.sendStreamError(w, flusher, log, err)
				return
			}
			lastSequence = max(lastSequence, seq)
		case <-heartbeat.C:
			_ = sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

// drain sends every stored event after afterSequence, in batches.
func (h *EventHandler) drain(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, tenantID, sessionID string, afterSequence uint64) (uint64, int, error) {
	last, sent := afterSequence, 0
	for {
		resp, err := h.service.Events(ctx, tenantID, sessionID, last, 50)
		if err != nil {
			return last, sent, err
		}
		for _, e := range resp.Events {
			if ctx.Err() != nil {
				return last, sent, ctx.Err()
			}
			_ = sendSSEEvent(w, flusher, "event", e)
			last = e.Sequence
			sent++
		}
		if !resp.HasMore || len(resp.Events) == 0 {
			return last, sent, nil
		}
	}
}

func (h *EventHandler) sendStreamError(w http.ResponseWriter, flusher http.Flusher, log *logger.Logger, err error) {
	code, message := "replay_error", "Failed to replay events"
	if errors.Is(err, service.ErrEventsUnavailable) {
		code, message = "events_unavailable", "Session events are not enabled on this server"
	} else {
		log.Error("failed to replay events", zap.Error(err))
	}
	_ = sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
		Code:    code,
		Message: message,
	})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
