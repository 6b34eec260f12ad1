package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/project-onboarding/internal/conversation"
	"github.com/capitalize-ai/project-onboarding/internal/middleware"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/provision"
	"github.com/capitalize-ai/project-onboarding/internal/service"
	"github.com/capitalize-ai/project-onboarding/internal/store"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
)

const (
	jwtSecret = "handler-test-secret"
	narrative = "Hi, I'm jane@acme.com. Please send weekly reports. Call the project Acme Competitive Watch. " +
		"Our product is called Acme Analytics and our website is https://www.acmeanalytics.com. " +
		"We are in the SaaS industry. We position ourselves as the fastest analytics platform for small teams. " +
		"Our target customers are small and medium e-commerce businesses that need quick insights. " +
		"The problem we solve is that small teams spend hours building dashboards manually."
)

type stubProvisioner struct{}

func (stubProvisioner) Provision(context.Context, provision.Request) (*model.ProvisioningResult, error) {
	return nil, errors.New("provisioning disabled in tests")
}

type memoryEvents struct {
	mu     sync.Mutex
	events []model.SessionEvent
}

func (m *memoryEvents) PublishEvent(_ context.Context, e *model.SessionEvent) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Sequence = uint64(len(m.events) + 1)
	m.events = append(m.events, *e)
	return e.Sequence, nil
}

func (m *memoryEvents) GetEvents(_ context.Context, tenantID, sessionID string, after uint64, limit int) ([]model.SessionEvent, uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SessionEvent
	for _, e := range m.events {
		if e.TenantID == tenantID && e.SessionID == sessionID && e.Sequence > after {
			out = append(out, e)
		}
	}
	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	last := after
	if len(out) > 0 {
		last = out[len(out)-1].Sequence
	}
	return out, last, hasMore, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

type testServer struct {
	handler http.Handler
	store   *store.SQLiteStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewNop()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "onboarding.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	engine := conversation.New(conversation.Config{}, nil, log)
	svc := service.NewSessionService(st, engine, stubProvisioner{}, &memoryEvents{}, service.Config{}, log)

	h := NewRouter(RouterConfig{
		JWTSecret:         jwtSecret,
		AllowedOrigins:    []string{"https://app.example.com"},
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
	},
		NewHealthHandler(st, nil, nil),
		NewSessionHandler(svc, log),
		NewEventHandler(svc, EventStreamConfig{PollInterval: 20 * time.Millisecond, HeartbeatInterval: time.Hour}, log),
		log,
	)
	return &testServer{handler: h, store: st}
}

func token(t *testing.T, tenantID string) string {
	t.Helper()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: tenantID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, ctx context.Context, method, path, tenantID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(ctx)
	if tenantID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, tenantID))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createSession(t *testing.T, tenantID string) string {
	t.Helper()
	rec := s.do(t, context.Background(), http.MethodPost, "/api/v1/sessions", tenantID, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp model.CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Session.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, context.Background(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, context.Background(), http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)
}

func TestReady_StorageDown(t *testing.T) {
	h := NewHealthHandler(failingPinger{}, nil, nil)
	rec := httptest.NewRecorder()

	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "storage unavailable")
}

func TestSessions_RequireAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, context.Background(), http.MethodPost, "/api/v1/sessions", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessions_CreateAndGet(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "tenant-1")

	rec := s.do(t, context.Background(), http.MethodGet, "/api/v1/sessions/"+id, "tenant-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, model.StepUninitialized, sess.CurrentStep())
	require.Len(t, sess.Messages, 1)

	rec = s.do(t, context.Background(), http.MethodGet, "/api/v1/sessions/"+id, "tenant-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_CreateValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, context.Background(), http.MethodPost, "/api/v1/sessions", "tenant-1", map[string]string{"flow": "wizard"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, context.Background(), http.MethodPost, "/api/v1/sessions", "tenant-1", map[string]string{"flow": "legacy"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "start with your product")
}

func TestSessions_SubmitMessage(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "tenant-1")

	rec := s.do(t, context.Background(), http.MethodPost, "/api/v1/sessions/"+id+"/messages", "tenant-1",
		model.SubmitMessageRequest{Content: narrative})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp model.SubmitMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.StepConfirming, resp.NextStep)
	assert.Equal(t, model.InputConfirmation, resp.ExpectedInputKind)
	assert.Contains(t, resp.AssistantText, "Here's your project summary")

	saved, err := s.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.com", saved.CollectedData.Record.Email)
}

func TestSessions_SubmitMessageValidation(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "tenant-1")

	rec := s.do(t, context.Background(), http.MethodPost, "/api/v1/sessions/not-a-uuid/messages", "tenant-1",
		model.SubmitMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+token(t, "tenant-1"))
	raw := httptest.NewRecorder()
	s.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	rec = s.do(t, context.Background(), http.MethodPost, "/api/v1/sessions/"+id+"/messages", "tenant-2",
		model.SubmitMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents_ReplaysSessionEvents(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "tenant-1")
	for _, text := range []string{"jane@acme.com", "weekly"} {
		rec := s.do(t, context.Background(), http.MethodPost, "/api/v1/sessions/"+id+"/messages", "tenant-1",
			model.SubmitMessageRequest{Content: text})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	rec := s.do(t, ctx, http.MethodGet, "/api/v1/sessions/"+id+"/events", "tenant-1", nil)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: connected")
	assert.Equal(t, 2, strings.Count(body, "event: event\n"))
	assert.Contains(t, body, `"type":"turn_processed"`)
	assert.Contains(t, body, "event: replay_complete")
	assert.Contains(t, body, `"event_count":2`)
}

func TestEvents_ResumeAfterSequence(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t, "tenant-1")
	for _, text := range []string{"jane@acme.com", "weekly"} {
		rec := s.do(t, context.Background(), http.MethodPost, "/api/v1/sessions/"+id+"/messages", "tenant-1",
			model.SubmitMessageRequest{Content: text})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rec := s.do(t, ctx, http.MethodGet, "/api/v1/sessions/"+id+"/events?after_sequence=1", "tenant-1", nil)

	assert.Equal(t, 1, strings.Count(rec.Body.String(), "event: event\n"))
}

func TestEvents_UnknownSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, context.Background(), http.MethodGet, "/api/v1/sessions/0192b8a4-7a9e-7cc1-a1a5-6a3d4e0c9b11/events", "tenant-1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReady_EventStreamDown(t *testing.T) {
	s := newTestServer(t)
	h := NewHealthHandler(s.store, failingPinger{}, nil)
	rec := httptest.NewRecorder()

	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "event stream unavailable")
}

func TestErrorBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, context.Background(), http.MethodGet, "/api/v1/sessions/not-a-uuid", "tenant-1", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body model.ErrorEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_request", body.Code)
	assert.Equal(t, "invalid session ID format", body.Message)
}
