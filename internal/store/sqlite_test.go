package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "onboarding.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedPool(t *testing.T, s *SQLiteStore) {
	t.Helper()
	_, err := Seed(context.Background(), s, "")
	require.NoError(t, err)
}

func TestOwners(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner, err := s.FindOwner(ctx, "jane@acme.com")
	require.NoError(t, err)
	assert.Nil(t, owner)

	created, err := s.CreateOwner(ctx, "jane@acme.com")
	require.NoError(t, err)

	found, err := s.FindOwner(ctx, "JANE@acme.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	_, err = s.CreateOwner(ctx, "jane@acme.com")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestCreateProject_LinksCompetitors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPool(t, s)

	owner, err := s.CreateOwner(ctx, "jane@acme.com")
	require.NoError(t, err)

	project, err := s.CreateProject(ctx, model.NewProject{
		Name:          "Acme Competitive Watch",
		OwnerID:       owner.ID,
		CompetitorIDs: []string{"cmp-mixpanel", "cmp-looker", "cmp-looker"},
		Metadata:      map[string]string{"industry": "SaaS"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cmp-looker", "cmp-mixpanel"}, project.CompetitorIDs)

	loaded, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, project.CompetitorIDs, loaded.CompetitorIDs)
	assert.Equal(t, "SaaS", loaded.Metadata["industry"])
}

func TestCreateProject_RollsBackOnUnknownCompetitor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPool(t, s)

	owner, err := s.CreateOwner(ctx, "jane@acme.com")
	require.NoError(t, err)

	_, err = s.CreateProject(ctx, model.NewProject{
		Name:          "Broken",
		OwnerID:       owner.ID,
		CompetitorIDs: []string{"cmp-looker", "cmp-does-not-exist"},
	})
	require.ErrorIs(t, err, ErrAssociationMismatch)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&count))
	assert.Zero(t, count)
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM project_competitors`).Scan(&count))
	assert.Zero(t, count)
}

func TestCreateProject_UnknownOwnerRejected(t *testing.T) {
	s := newTestStore(t)
	seedPool(t, s)

	_, err := s.CreateProject(context.Background(), model.NewProject{
		Name:          "Orphan",
		OwnerID:       "missing",
		CompetitorIDs: []string{"cmp-looker"},
	})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestCreateProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPool(t, s)

	owner, err := s.CreateOwner(ctx, "jane@acme.com")
	require.NoError(t, err)
	project, err := s.CreateProject(ctx, model.NewProject{Name: "P", OwnerID: owner.ID, CompetitorIDs: []string{"cmp-looker"}})
	require.NoError(t, err)

	product, err := s.CreateProduct(ctx, model.NewProduct{ProjectID: project.ID, Name: "Acme Analytics", URL: "https://acme.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)

	_, err = s.CreateProduct(ctx, model.NewProduct{ProjectID: project.ID, Name: "", URL: "https://acme.com"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestReportsAndSchedules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPool(t, s)

	owner, err := s.CreateOwner(ctx, "jane@acme.com")
	require.NoError(t, err)
	project, err := s.CreateProject(ctx, model.NewProject{Name: "P", OwnerID: owner.ID, CompetitorIDs: []string{"cmp-looker"}})
	require.NoError(t, err)

	report := &model.Report{ProjectID: project.ID, Content: "# Report", Partial: true}
	require.NoError(t, s.SaveReport(ctx, report))
	reports, err := s.ListReports(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Partial)
	assert.False(t, reports[0].AIAssisted)

	next := time.Now().Add(7 * 24 * time.Hour)
	require.NoError(t, s.SaveSchedule(ctx, &model.ScheduleInfo{ProjectID: project.ID, Cadence: model.CadenceWeekly, NextRunAt: next}))
	require.NoError(t, s.SaveSchedule(ctx, &model.ScheduleInfo{ProjectID: project.ID, Cadence: model.CadenceMonthly, NextRunAt: next}))

	sched, err := s.GetSchedule(ctx, project.ID)
	require.NoError(t, err)
	require.NotNil(t, sched)
	assert.Equal(t, model.CadenceMonthly, sched.Cadence)
	assert.Equal(t, next.UnixMilli(), sched.NextRunAt.UnixMilli())
}

func TestSessions_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	missing, err := s.GetSession(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Now().UTC().Truncate(time.Millisecond)
	confirmed := true
	session := &model.Session{
		ID:       "s-1",
		TenantID: "t-1",
		Step:     model.StepLegacyProductConfirm,
		FlowMode: model.FlowLegacy,
		CollectedData: model.CollectedData{
			Record:           model.RequirementsRecord{ProductName: "Acme", CompetitorHints: []string{"Looker"}},
			Confidence:       model.FieldConfidence{model.FieldProductName: 85},
			ProductConfirmed: &confirmed,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	session.AppendMessage(model.RoleUser, "Acme", now)
	require.NoError(t, s.SaveSession(ctx, session))

	session.ProjectID = "p-1"
	require.NoError(t, s.SaveSession(ctx, session))

	loaded, err := s.GetSession(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, session.Step, loaded.Step)
	assert.Equal(t, "p-1", loaded.ProjectID)
	assert.Equal(t, session.CollectedData.Record, loaded.CollectedData.Record)
	assert.Equal(t, 85, loaded.CollectedData.Confidence[model.FieldProductName])
	require.NotNil(t, loaded.CollectedData.ProductConfirmed)
	assert.True(t, *loaded.CollectedData.ProductConfirmed)
	assert.Len(t, loaded.Messages, 1)
}

func TestPing_ClosedDatabaseUnavailable(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	err := s.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
competitors:
  - id: cmp-a
    name: Alpha
    website: https://alpha.io
    description: Alpha does analytics
  - id: cmp-b
    name: Beta
`), 0o600))

	pool, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.True(t, pool[0].Complete())
	assert.False(t, pool[1].Complete())

	require.NoError(t, os.WriteFile(path, []byte("competitors:\n  - id: x\n"), 0o600))
	_, err = LoadSeedFile(path)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify("op", errors.New("database is locked (5) (SQLITE_BUSY)")), ErrUnavailable)
	assert.ErrorIs(t, classify("op", errors.New("constraint failed: UNIQUE constraint failed: owners.email (2067)")), ErrRejected)
	assert.ErrorIs(t, classify("op", context.DeadlineExceeded), ErrUnavailable)
	assert.Nil(t, classify("op", nil))
}
