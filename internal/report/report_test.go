package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/project-onboarding/internal/llm"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/probe"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
)

type fakeStorage struct {
	pingErr   error
	project   *model.Project
	pool      []model.Competitor
	reports   []*model.Report
	schedules []*model.ScheduleInfo
}

func (f *fakeStorage) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStorage) GetProject(ctx context.Context, id string) (*model.Project, error) {
	if f.project == nil || f.project.ID != id {
		return nil, nil
	}
	return f.project, nil
}

func (f *fakeStorage) ListCompetitors(ctx context.Context) ([]model.Competitor, error) {
	return f.pool, nil
}

func (f *fakeStorage) SaveReport(ctx context.Context, r *model.Report) error {
	r.ID = "rep-1"
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeStorage) SaveSchedule(ctx context.Context, s *model.ScheduleInfo) error {
	s.ID = "sch-1"
	f.schedules = append(f.schedules, s)
	return nil
}

type fakeLLM struct {
	err   error
	calls int
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: "## Summary\nAcme leads on speed.", Model: req.Model, TokensIn: 10, TokensOut: 5}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

type staticStatus bool

func (s staticStatus) Status(ctx context.Context) probe.Status {
	return probe.Status{Available: bool(s)}
}

func newStorage() *fakeStorage {
	return &fakeStorage{
		project: &model.Project{
			ID:            "p-1",
			Name:          "Acme Competitive Watch",
			CompetitorIDs: []string{"c-1", "c-2"},
			Metadata:      map[string]string{"product_name": "Acme Analytics", "product_url": "https://acme.com"},
		},
		pool: []model.Competitor{
			{ID: "c-1", Name: "Looker", Website: "https://looker.com", Description: "BI platform"},
			{ID: "c-2", Name: "Mixpanel", Website: "https://mixpanel.com", Description: "Product analytics"},
			{ID: "c-3", Name: "Unrelated"},
		},
	}
}

func TestGenerateInitialReport_DataOnly(t *testing.T) {
	st := newStorage()
	svc := NewService(st, nil, "", nil, logger.NewNop())

	id, err := svc.GenerateInitialReport(context.Background(), "p-1", model.ReportConfig{})
	require.NoError(t, err)
	assert.Equal(t, "rep-1", id)

	require.Len(t, st.reports, 1)
	r := st.reports[0]
	assert.False(t, r.AIAssisted)
	assert.False(t, r.Partial)
	assert.Contains(t, r.Content, "# Acme Competitive Watch")
	assert.Contains(t, r.Content, "### Looker")
	assert.Contains(t, r.Content, "### Mixpanel")
	assert.NotContains(t, r.Content, "Unrelated")
}

func TestGenerateInitialReport_WithNarrative(t *testing.T) {
	st := newStorage()
	client := &fakeLLM{}
	svc := NewService(st, client, "fake-1", staticStatus(true), logger.NewNop())

	_, err := svc.GenerateInitialReport(context.Background(), "p-1", model.ReportConfig{FocusAreas: []string{"pricing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	assert.True(t, st.reports[0].AIAssisted)
	assert.Contains(t, st.reports[0].Content, "Acme leads on speed.")
}

func TestGenerateInitialReport_SkipsNarrativeWhenUnavailable(t *testing.T) {
	st := newStorage()
	client := &fakeLLM{}
	svc := NewService(st, client, "fake-1", staticStatus(false), logger.NewNop())

	_, err := svc.GenerateInitialReport(context.Background(), "p-1", model.ReportConfig{})
	require.NoError(t, err)
	assert.Zero(t, client.calls)
	assert.False(t, st.reports[0].AIAssisted)
}

func TestGenerateInitialReport_NarrativeFailure(t *testing.T) {
	st := newStorage()
	client := &fakeLLM{err: errors.New("overloaded")}
	svc := NewService(st, client, "fake-1", staticStatus(true), logger.NewNop())

	_, err := svc.GenerateInitialReport(context.Background(), "p-1", model.ReportConfig{})
	require.Error(t, err)
	assert.Empty(t, st.reports)

	id, err := svc.GenerateInitialReport(context.Background(), "p-1", model.ReportConfig{ForceGeneration: true})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, st.reports, 1)
	assert.True(t, st.reports[0].Partial)
	assert.False(t, st.reports[0].AIAssisted)
}

func TestGenerateInitialReport_IncompleteData(t *testing.T) {
	st := newStorage()
	st.pool[1].Description = ""
	svc := NewService(st, nil, "", nil, logger.NewNop())

	_, err := svc.GenerateInitialReport(context.Background(), "p-1", model.ReportConfig{})
	require.ErrorIs(t, err, ErrIncompleteData)

	_, err = svc.GenerateInitialReport(context.Background(), "p-1", model.ReportConfig{AllowPartialData: true})
	require.NoError(t, err)
	assert.True(t, st.reports[0].Partial)
	assert.Contains(t, st.reports[0].Content, "Profile incomplete")
}

func TestGenerateInitialReport_Errors(t *testing.T) {
	st := newStorage()
	svc := NewService(st, nil, "", nil, logger.NewNop())

	_, err := svc.GenerateInitialReport(context.Background(), "missing", model.ReportConfig{})
	assert.ErrorIs(t, err, ErrProjectNotFound)

	st.project.CompetitorIDs = []string{"gone"}
	_, err = svc.GenerateInitialReport(context.Background(), "p-1", model.ReportConfig{})
	assert.ErrorIs(t, err, ErrNoCompetitors)
}

func TestScheduleRecurringReports(t *testing.T) {
	st := newStorage()
	svc := NewService(st, nil, "", nil, logger.NewNop())
	now := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	sched, err := svc.ScheduleRecurringReports(context.Background(), "p-1", model.CadenceWeekly, model.ReportConfig{})
	require.NoError(t, err)
	assert.Equal(t, "sch-1", sched.ID)
	assert.Equal(t, now.AddDate(0, 0, 7), sched.NextRunAt)

	_, err = svc.ScheduleRecurringReports(context.Background(), "p-1", model.Cadence("fortnightly"), model.ReportConfig{})
	assert.ErrorIs(t, err, ErrUnknownCadence)
	assert.Len(t, st.schedules, 1)
}

func TestReady(t *testing.T) {
	st := newStorage()
	svc := NewService(st, nil, "", nil, logger.NewNop())
	assert.NoError(t, svc.Ready(context.Background()))

	st.pingErr = errors.New("down")
	assert.Error(t, svc.Ready(context.Background()))
}
