package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/probe"
	"github.com/capitalize-ai/project-onboarding/internal/retry"
	"github.com/capitalize-ai/project-onboarding/internal/store"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
)

type fakeStore struct {
	pingErr    error
	owners     map[string]*model.Owner
	pool       []model.Competitor
	projectErr error
	productErr error

	createOwnerCalls int
	projects         []model.NewProject
	products         []model.NewProduct
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) FindOwner(ctx context.Context, email string) (*model.Owner, error) {
	return f.owners[email], nil
}

func (f *fakeStore) CreateOwner(ctx context.Context, email string) (*model.Owner, error) {
	f.createOwnerCalls++
	o := &model.Owner{ID: "owner-new", Email: email}
	if f.owners == nil {
		f.owners = make(map[string]*model.Owner)
	}
	f.owners[email] = o
	return o, nil
}

func (f *fakeStore) ListCompetitors(ctx context.Context) ([]model.Competitor, error) {
	return f.pool, nil
}

func (f *fakeStore) CreateProject(ctx context.Context, p model.NewProject) (*model.Project, error) {
	f.projects = append(f.projects, p)
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	return &model.Project{ID: "proj-1", Name: p.Name, OwnerID: p.OwnerID, CompetitorIDs: p.CompetitorIDs, Metadata: p.Metadata}, nil
}

func (f *fakeStore) CreateProduct(ctx context.Context, p model.NewProduct) (*model.Product, error) {
	f.products = append(f.products, p)
	if f.productErr != nil {
		return nil, f.productErr
	}
	return &model.Product{ID: "prod-1", ProjectID: p.ProjectID, Name: p.Name, URL: p.URL}, nil
}

type fakeReporter struct {
	readyErr    error
	reportErr   error
	schedErr    error
	schedPanic  bool
	reportCalls []model.ReportConfig
}

func (f *fakeReporter) Ready(ctx context.Context) error { return f.readyErr }

func (f *fakeReporter) GenerateInitialReport(ctx context.Context, projectID string, cfg model.ReportConfig) (string, error) {
	f.reportCalls = append(f.reportCalls, cfg)
	if f.reportErr != nil {
		return "", f.reportErr
	}
	return "rep-1", nil
}

func (f *fakeReporter) ScheduleRecurringReports(ctx context.Context, projectID string, cadence model.Cadence, cfg model.ReportConfig) (*model.ScheduleInfo, error) {
	if f.schedPanic {
		panic("scheduler exploded")
	}
	if f.schedErr != nil {
		return nil, f.schedErr
	}
	return &model.ScheduleInfo{ID: "sch-1", ProjectID: projectID, Cadence: cadence, NextRunAt: time.Now().AddDate(0, 0, 7)}, nil
}

type fakePublisher struct {
	mu          sync.Mutex
	events      []model.EventType
	enrichments []model.EnrichmentRequest
}

func (f *fakePublisher) PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event.Type)
	return uint64(len(f.events)), nil
}

func (f *fakePublisher) RequestEnrichment(ctx context.Context, req model.EnrichmentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrichments = append(f.enrichments, req)
	return nil
}

func (f *fakePublisher) types() []model.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.EventType(nil), f.events...)
}

type staticStatus probe.Status

func (s staticStatus) Status(ctx context.Context) probe.Status { return probe.Status(s) }

func readyRecord() model.RequirementsRecord {
	return model.RequirementsRecord{
		Email:               "Jane@Acme.com",
		Cadence:             "weekly",
		ProjectName:         "Acme Competitive Watch",
		ProductName:         "Acme Analytics",
		ProductURL:          "https://www.acmeanalytics.com",
		Industry:            "SaaS",
		Positioning:         "the fastest analytics platform for small teams",
		CustomerDescription: "small and medium e-commerce businesses that need quick insights",
		ProblemStatement:    "small teams spend hours building dashboards manually",
	}
}

func defaultPool() []model.Competitor {
	return []model.Competitor{
		{ID: "c-looker", Name: "Looker", Website: "https://looker.com", Description: "BI"},
		{ID: "c-mixpanel", Name: "Mixpanel", Website: "https://mixpanel.com", Description: "Product analytics"},
		{ID: "c-amplitude", Name: "Amplitude", Website: "https://amplitude.com", Description: "Digital analytics"},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReportRetry = retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return cfg
}

type fixture struct {
	store    *fakeStore
	reporter *fakeReporter
	pub      *fakePublisher
	p        *Provisioner
}

func newFixture(status StatusSource) *fixture {
	f := &fixture{
		store:    &fakeStore{pool: defaultPool()},
		reporter: &fakeReporter{},
		pub:      &fakePublisher{},
	}
	f.p = New(f.store, f.reporter, status, f.pub, testConfig(), logger.NewNop())
	return f
}

func request(rec model.RequirementsRecord) Request {
	return Request{SessionID: "s-1", TenantID: "t-1", CorrelationID: "corr-1", Record: rec}
}

func TestProvision_FullSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(staticStatus(probe.Status{Available: true}))
	res, err := f.p.Provision(context.Background(), request(readyRecord()))
	require.NoError(t, err)
	f.p.Wait()

	assert.True(t, res.ProjectCreated)
	assert.True(t, res.FullySucceeded())
	assert.Equal(t, "corr-1", res.CorrelationID)
	assert.Equal(t, "proj-1", res.Project.ID)
	assert.Equal(t, []string{"c-looker", "c-mixpanel", "c-amplitude"}, res.Project.CompetitorIDs)
	assert.True(t, res.ProductCreated())
	assert.Equal(t, "prod-1", res.Product.ProductID)
	assert.True(t, res.Report.Generated)
	assert.Equal(t, 1, res.Report.Attempts)
	assert.True(t, res.Schedule.Scheduled)
	require.NotNil(t, res.Schedule.NextRunAt)
	assert.True(t, res.AIAvailable)
	assert.Empty(t, res.AINotice)

	assert.Equal(t, 1, f.store.createOwnerCalls)
	assert.Equal(t, "jane@acme.com", f.store.owners["jane@acme.com"].Email)
	assert.Equal(t, "Acme Analytics", f.store.projects[0].Metadata["product_name"])
	assert.NotContains(t, f.store.projects[0].Metadata, "project_name")

	require.Len(t, f.pub.enrichments, 1)
	assert.Equal(t, "https://www.acmeanalytics.com", f.pub.enrichments[0].ProductURL)

	events := f.pub.types()
	assert.Contains(t, events, model.EventProjectCreated)
	assert.Contains(t, events, model.EventProductCreated)
	assert.Contains(t, events, model.EventEnrichmentRequested)
	assert.Contains(t, events, model.EventReportGenerated)
	assert.Contains(t, events, model.EventScheduleRegistered)
	assert.Contains(t, events, model.EventProvisioningFinished)
}

func TestProvision_ExistingOwnerReused(t *testing.T) {
	f := newFixture(nil)
	f.store.owners = map[string]*model.Owner{"jane@acme.com": {ID: "owner-1", Email: "jane@acme.com"}}

	res, err := f.p.Provision(context.Background(), request(readyRecord()))
	require.NoError(t, err)
	f.p.Wait()

	assert.Zero(t, f.store.createOwnerCalls)
	assert.Equal(t, "owner-1", res.Project.OwnerID)
}

func TestProvision_EmptyPoolAborts(t *testing.T) {
	f := newFixture(nil)
	f.store.pool = nil

	res, err := f.p.Provision(context.Background(), request(readyRecord()))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrEmptyCompetitorPool)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, string(model.StageCompetitors), stageErr.Stage)
	assert.Empty(t, f.store.projects)
	assert.Contains(t, f.pub.types(), model.EventProvisioningAborted)
}

func TestProvision_PrerequisiteFailure(t *testing.T) {
	f := newFixture(nil)
	f.reporter.readyErr = errors.New("report queue offline")

	_, err := f.p.Provision(context.Background(), request(readyRecord()))

	var pre *PrerequisiteError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "report service", pre.Check)
	assert.Zero(t, f.store.createOwnerCalls)
	assert.Empty(t, f.store.projects)
}

func TestProvision_AssociationMismatch(t *testing.T) {
	f := newFixture(nil)
	f.store.projectErr = fmt.Errorf("create project: %w", store.ErrAssociationMismatch)

	_, err := f.p.Provision(context.Background(), request(readyRecord()))

	var integrity *TransactionIntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "Acme Competitive Watch", integrity.ProjectName)
	assert.ErrorIs(t, err, store.ErrAssociationMismatch)
	assert.Empty(t, f.store.products)
	assert.Empty(t, f.reporter.reportCalls)
}

func TestProvision_ReportExhaustsRetries(t *testing.T) {
	f := newFixture(nil)
	f.reporter.reportErr = errors.New("llm overloaded")

	res, err := f.p.Provision(context.Background(), request(readyRecord()))
	require.NoError(t, err)
	f.p.Wait()

	assert.True(t, res.ProjectCreated)
	assert.False(t, res.Report.Generated)
	assert.Equal(t, 3, res.Report.Attempts)
	assert.Contains(t, res.Report.Error, "llm overloaded")
	assert.False(t, res.FullySucceeded())
	assert.True(t, res.Schedule.Scheduled)

	require.Len(t, f.reporter.reportCalls, 3)
	assert.False(t, f.reporter.reportCalls[0].AllowPartialData)
	assert.True(t, f.reporter.reportCalls[1].AllowPartialData)
	assert.True(t, f.reporter.reportCalls[2].ForceGeneration)

	require.Len(t, res.SoftFailures, 1)
	assert.Equal(t, model.StageReport, res.SoftFailures[0].Stage)
	assert.Contains(t, f.pub.types(), model.EventReportFailed)
}

func TestProvision_ProductFailureIsSoft(t *testing.T) {
	f := newFixture(nil)
	f.store.productErr = fmt.Errorf("insert product: %w", store.ErrRejected)

	res, err := f.p.Provision(context.Background(), request(readyRecord()))
	require.NoError(t, err)
	f.p.Wait()

	assert.True(t, res.Product.Attempted)
	assert.False(t, res.ProductCreated())
	assert.NotEmpty(t, res.Product.Error)
	assert.True(t, res.Report.Generated)
	assert.Empty(t, f.pub.enrichments)
	assert.Equal(t, model.StageProduct, res.SoftFailures[0].Stage)
}

func TestProvision_SchedulePanicRecovered(t *testing.T) {
	f := newFixture(nil)
	f.reporter.schedPanic = true

	res, err := f.p.Provision(context.Background(), request(readyRecord()))
	require.NoError(t, err)
	f.p.Wait()

	assert.True(t, res.Schedule.Attempted)
	assert.False(t, res.Schedule.Scheduled)
	assert.Contains(t, res.Schedule.Error, "panicked")
}

func TestProvision_HintsNarrowCompetitors(t *testing.T) {
	f := newFixture(nil)
	rec := readyRecord()
	rec.CompetitorHints = []string{"looker", "Unknown Co"}

	res, err := f.p.Provision(context.Background(), request(rec))
	require.NoError(t, err)
	f.p.Wait()

	assert.Equal(t, []string{"c-looker"}, res.Project.CompetitorIDs)
}

func TestProvision_DataQualityConcern(t *testing.T) {
	f := newFixture(nil)
	f.store.pool = []model.Competitor{
		{ID: "a", Name: "Alpha"},
		{ID: "b", Name: "Beta"},
		{ID: "c", Name: "Gamma", Website: "https://gamma.io", Description: "Gamma"},
	}

	res, err := f.p.Provision(context.Background(), request(readyRecord()))
	require.NoError(t, err)
	f.p.Wait()

	assert.True(t, res.DataQualityConcern)
	assert.Contains(t, f.pub.types(), model.EventDataQualityConcern)
}

func TestProvision_AINoticeWhenUnavailable(t *testing.T) {
	f := newFixture(staticStatus(probe.Status{Available: false, CredentialsExpired: true}))

	res, err := f.p.Provision(context.Background(), request(readyRecord()))
	require.NoError(t, err)
	f.p.Wait()

	assert.False(t, res.AIAvailable)
	assert.Contains(t, res.AINotice, "credentials")
	assert.True(t, res.Report.Generated)
}

func TestProvision_RejectsIncompleteRecord(t *testing.T) {
	f := newFixture(nil)
	rec := readyRecord()
	rec.ProblemStatement = ""

	_, err := f.p.Provision(context.Background(), request(rec))
	assert.ErrorIs(t, err, ErrRecordNotReady)
	assert.Zero(t, f.store.createOwnerCalls)
}

func TestPreviewAssignment(t *testing.T) {
	f := newFixture(nil)
	f.store.pool = append(defaultPool(), model.Competitor{ID: "c-x", Name: "Xeno"})

	preview, err := f.p.PreviewAssignment(context.Background(), model.RequirementsRecord{CompetitorHints: []string{"Mixpanel", "Xeno"}})
	require.NoError(t, err)
	assert.Equal(t, 2, preview.Total)
	assert.True(t, preview.MatchedHints)
	assert.Equal(t, []string{"Mixpanel", "Xeno"}, preview.Names)
	assert.Equal(t, 1, preview.IncompleteCount)

	preview, err = f.p.PreviewAssignment(context.Background(), model.RequirementsRecord{})
	require.NoError(t, err)
	assert.Equal(t, 4, preview.Total)
	assert.False(t, preview.MatchedHints)
}
