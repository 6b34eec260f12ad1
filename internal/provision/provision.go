// Package provision turns a confirmed requirements record into a persisted
// project with its optional product, initial report and recurring schedule.
//
// The prerequisite, owner, competitor and project stages either all succeed
// or abort the run without leaving records behind. Once the project is
// committed the remaining stages are best effort: their failures are
// recorded as soft failures on the result and the run always returns one.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/probe"
	"github.com/capitalize-ai/project-onboarding/internal/retry"
	"github.com/capitalize-ai/project-onboarding/internal/store"
	"github.com/capitalize-ai/project-onboarding/internal/validate"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
	"github.com/capitalize-ai/project-onboarding/pkg/tracing"
)

// Storage is the persistence the provisioner needs.
type Storage interface {
	Ping(ctx context.Context) error
	FindOwner(ctx context.Context, email string) (*model.Owner, error)
	CreateOwner(ctx context.Context, email string) (*model.Owner, error)
	ListCompetitors(ctx context.Context) ([]model.Competitor, error)
	CreateProject(ctx context.Context, p model.NewProject) (*model.Project, error)
	CreateProduct(ctx context.Context, p model.NewProduct) (*model.Product, error)
}

// Reporter generates and schedules reports.
type Reporter interface {
	Ready(ctx context.Context) error
	GenerateInitialReport(ctx context.Context, projectID string, cfg model.ReportConfig) (string, error)
	ScheduleRecurringReports(ctx context.Context, projectID string, cadence model.Cadence, cfg model.ReportConfig) (*model.ScheduleInfo, error)
}

// StatusSource reports AI availability for messaging.
type StatusSource interface {
	Status(ctx context.Context) probe.Status
}

// Config holds provisioner settings.
type Config struct {
	ReportRetry       retry.Policy
	EnrichmentTimeout time.Duration
	MaxCompetitors    int
}

// DefaultConfig returns the default provisioner settings.
func DefaultConfig() Config {
	return Config{
		ReportRetry:       retry.DefaultPolicy(),
		EnrichmentTimeout: 10 * time.Second,
		MaxCompetitors:    10,
	}
}

// Request is one provisioning run.
type Request struct {
	SessionID     string
	TenantID      string
	CorrelationID string
	Record        model.RequirementsRecord
}

// Provisioner runs the project creation pipeline.
type Provisioner struct {
	store   Storage
	reports Reporter
	status  StatusSource
	pub     Publisher
	cfg     Config
	log     *logger.Logger
	tracer  trace.Tracer
	now     func() time.Time

	background sync.WaitGroup
}

// New creates a provisioner. status and pub may be nil.
func New(st Storage, reports Reporter, status StatusSource, pub Publisher, cfg Config, log *logger.Logger) *Provisioner {
	if pub == nil {
		pub = NopPublisher{}
	}
	if cfg.MaxCompetitors <= 0 {
		cfg.MaxCompetitors = DefaultConfig().MaxCompetitors
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = DefaultConfig().EnrichmentTimeout
	}
	return &Provisioner{
		store:   st,
		reports: reports,
		status:  status,
		pub:     pub,
		cfg:     cfg,
		log:     log,
		tracer:  tracing.Tracer("provision"),
		now:     time.Now,
	}
}

// Wait blocks until background enrichment requests have finished.
func (p *Provisioner) Wait() {
	p.background.Wait()
}

// Provision runs the pipeline for req. It returns an error only when an
// abort-class stage failed, in which case nothing was persisted.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*model.ProvisioningResult, error) {
	start := p.now()
	log := p.log.ForSession(req.SessionID, req.CorrelationID)

	ctx, span := p.tracer.Start(ctx, "provision", trace.WithAttributes(
		attribute.String("correlation_id", req.CorrelationID),
		attribute.String("session_id", req.SessionID),
	))
	defer span.End()

	rec := req.Record
	if v := validate.Validate(rec); !v.Ready() {
		return nil, p.abort(ctx, req, log, "validate", fmt.Errorf("%w: %d%% complete, %d errors", ErrRecordNotReady, v.Completeness, len(v.Errors)))
	}

	res := &model.ProvisioningResult{CorrelationID: req.CorrelationID}
	if p.status != nil {
		st := p.status.Status(ctx)
		res.AIAvailable = st.Available
		res.AINotice = st.Notice()
	}

	if err := p.stage(ctx, model.StagePrerequisites, func(ctx context.Context) error {
		return p.checkPrerequisites(ctx)
	}); err != nil {
		return nil, p.abort(ctx, req, log, model.StagePrerequisites, err)
	}

	var owner *model.Owner
	if err := p.stage(ctx, model.StageOwner, func(ctx context.Context) error {
		var err error
		owner, err = p.resolveOwner(ctx, rec.Email)
		return err
	}); err != nil {
		return nil, p.abort(ctx, req, log, model.StageOwner, err)
	}

	var competitors []model.Competitor
	if err := p.stage(ctx, model.StageCompetitors, func(ctx context.Context) error {
		pool, err := p.store.ListCompetitors(ctx)
		if err != nil {
			return fmt.Errorf("list competitors: %w", err)
		}
		if len(pool) == 0 {
			return ErrEmptyCompetitorPool
		}
		competitors, _ = resolveCompetitors(pool, rec.CompetitorHints, p.cfg.MaxCompetitors)
		return nil
	}); err != nil {
		return nil, p.abort(ctx, req, log, model.StageCompetitors, err)
	}

	if incomplete := countIncomplete(competitors); incomplete*2 > len(competitors) {
		res.DataQualityConcern = true
		log.Warn("most assigned competitors have incomplete data",
			zap.Int("incomplete", incomplete),
			zap.Int("total", len(competitors)),
		)
		p.emit(ctx, req, model.EventDataQualityConcern, "most assigned competitors have incomplete data", map[string]any{
			"incomplete": incomplete,
			"total":      len(competitors),
		})
	}

	var project *model.Project
	if err := p.stage(ctx, model.StageProject, func(ctx context.Context) error {
		var err error
		project, err = p.store.CreateProject(ctx, model.NewProject{
			Name:          rec.ProjectName,
			OwnerID:       owner.ID,
			CompetitorIDs: competitorIDs(competitors),
			Metadata:      projectMetadata(rec),
		})
		if errors.Is(err, store.ErrAssociationMismatch) {
			return &TransactionIntegrityError{ProjectName: rec.ProjectName, Err: err}
		}
		return err
	}); err != nil {
		return nil, p.abort(ctx, req, log, model.StageProject, err)
	}

	res.ProjectCreated = true
	res.Project = model.ProjectRef{
		ID:            project.ID,
		Name:          project.Name,
		OwnerID:       project.OwnerID,
		CompetitorIDs: project.CompetitorIDs,
	}
	log = log.With(zap.String("project_id", project.ID))
	log.Info("project created", zap.Int("competitors", len(project.CompetitorIDs)))
	p.emit(ctx, req, model.EventProjectCreated, "project committed", map[string]any{
		"project_id":  project.ID,
		"competitors": len(project.CompetitorIDs),
	})

	p.runProduct(ctx, req, log, project, res)
	p.runReport(ctx, req, log, project, res)
	p.runSchedule(ctx, req, log, project, res)

	res.Duration = p.now().Sub(start)
	status := "success"
	if !res.FullySucceeded() {
		status = "partial"
	}
	metrics.ProvisioningDuration.WithLabelValues(status).Observe(res.Duration.Seconds())
	metrics.RecordStage(string(model.StageFinalize), status)
	span.SetAttributes(attribute.String("project_id", project.ID), attribute.String("status", status))

	log.Info("provisioning finished",
		zap.String("status", status),
		zap.Bool("product_created", res.Product.Created),
		zap.Bool("report_generated", res.Report.Generated),
		zap.Int("report_attempts", res.Report.Attempts),
		zap.Bool("scheduled", res.Schedule.Scheduled),
		zap.Int("soft_failures", len(res.SoftFailures)),
		zap.Duration("duration", res.Duration),
	)
	p.emit(ctx, req, model.EventProvisioningFinished, status, map[string]any{
		"project_id":    project.ID,
		"soft_failures": len(res.SoftFailures),
	})
	return res, nil
}

// stage runs fn inside a span and records its outcome.
func (p *Provisioner) stage(ctx context.Context, stage model.ProvisioningStage, fn func(ctx context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "provision."+string(stage))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordStage(string(stage), "failed")
		return err
	}
	metrics.RecordStage(string(stage), "ok")
	return nil
}

// softStage runs an optional stage and converts panics into errors.
func (p *Provisioner) softStage(ctx context.Context, stage model.ProvisioningStage, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s stage panicked: %v", stage, r)
			metrics.RecordStage(string(stage), "panic")
		}
	}()
	return p.stage(ctx, stage, fn)
}

func (p *Provisioner) abort(ctx context.Context, req Request, log *logger.Logger, stage model.ProvisioningStage, err error) error {
	log.Error("provisioning aborted",
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	p.emit(ctx, req, model.EventProvisioningAborted, err.Error(), map[string]any{"stage": string(stage)})

	var pre *PrerequisiteError
	var integrity *TransactionIntegrityError
	if errors.As(err, &pre) || errors.As(err, &integrity) {
		return err
	}
	return &StageError{Stage: string(stage), Err: err}
}

func (p *Provisioner) checkPrerequisites(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.store.Ping(gctx); err != nil {
			return &PrerequisiteError{Check: "storage", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		if err := p.reports.Ready(gctx); err != nil {
			return &PrerequisiteError{Check: "report service", Err: err}
		}
		return nil
	})
	return g.Wait()
}

func (p *Provisioner) resolveOwner(ctx context.Context, email string) (*model.Owner, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	owner, err := p.store.FindOwner(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find owner: %w", err)
	}
	if owner != nil {
		return owner, nil
	}
	owner, err = p.store.CreateOwner(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("create owner: %w", err)
	}
	return owner, nil
}

func (p *Provisioner) runProduct(ctx context.Context, req Request, log *logger.Logger, project *model.Project, res *model.ProvisioningResult) {
	rec := req.Record
	if rec.ProductName == "" || rec.ProductURL == "" {
		return
	}
	res.Product.Attempted = true

	var product *model.Product
	err := p.softStage(ctx, model.StageProduct, func(ctx context.Context) error {
		var err error
		product, err = p.store.CreateProduct(ctx, model.NewProduct{
			ProjectID:           project.ID,
			Name:                rec.ProductName,
			URL:                 rec.ProductURL,
			Industry:            rec.Industry,
			Positioning:         rec.Positioning,
			CustomerDescription: rec.CustomerDescription,
			ProblemStatement:    rec.ProblemStatement,
		})
		return err
	})
	if err != nil {
		res.Product.Error = err.Error()
		res.SoftFailures = append(res.SoftFailures, model.SoftFailure{Stage: model.StageProduct, Error: err.Error()})
		log.Warn("product creation failed", zap.Error(err))
		p.emit(ctx, req, model.EventProductFailed, err.Error(), nil)
		return
	}

	res.Product.Created = true
	res.Product.ProductID = product.ID
	p.emit(ctx, req, model.EventProductCreated, "product created", map[string]any{"product_id": product.ID})
	p.requestEnrichment(ctx, req, log, project, product)
}

// requestEnrichment fires the enrichment trigger without waiting for it.
func (p *Provisioner) requestEnrichment(ctx context.Context, req Request, log *logger.Logger, project *model.Project, product *model.Product) {
	enrich := model.EnrichmentRequest{
		CorrelationID: req.CorrelationID,
		ProjectID:     project.ID,
		ProductID:     product.ID,
		ProductName:   product.Name,
		ProductURL:    product.URL,
		RequestedAt:   p.now().UTC(),
	}

	p.background.Add(1)
	go func() {
		defer p.background.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.EnrichmentTimeout)
		defer cancel()
		if err := p.pub.RequestEnrichment(ctx, enrich); err != nil {
			log.Warn("enrichment request failed", zap.Error(err))
			return
		}
		p.emit(ctx, req, model.EventEnrichmentRequested, "enrichment requested", map[string]any{"product_id": product.ID})
	}()
}

func (p *Provisioner) runReport(ctx context.Context, req Request, log *logger.Logger, project *model.Project, res *model.ProvisioningResult) {
	res.Report.Attempted = true
	base := reportConfig(req.Record)

	policy := p.cfg.ReportRetry
	policy.OnRetry = func(a retry.Attempt, delay time.Duration, err error) {
		log.Warn("initial report failed, retrying with relaxed requirements",
			zap.Int("next_attempt", a.Number),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	var reportID string
	attempts := 0
	err := p.softStage(ctx, model.StageReport, func(ctx context.Context) error {
		var err error
		attempts, err = retry.Do(ctx, policy, func(ctx context.Context, a retry.Attempt) error {
			cfg := base
			if a.Escalated {
				cfg.AllowPartialData = true
				cfg.ForceGeneration = true
			}
			id, err := p.reports.GenerateInitialReport(ctx, project.ID, cfg)
			if err != nil {
				return err
			}
			reportID = id
			return nil
		})
		return err
	})

	res.Report.Attempts = attempts
	metrics.ReportAttempts.Observe(float64(attempts))
	if err != nil {
		res.Report.Error = err.Error()
		res.SoftFailures = append(res.SoftFailures, model.SoftFailure{Stage: model.StageReport, Error: err.Error()})
		log.Warn("initial report failed", zap.Int("attempts", attempts), zap.Error(err))
		p.emit(ctx, req, model.EventReportFailed, err.Error(), map[string]any{"attempts": attempts})
		return
	}

	res.Report.Generated = true
	res.Report.ReportID = reportID
	p.emit(ctx, req, model.EventReportGenerated, "initial report generated", map[string]any{
		"report_id": reportID,
		"attempts":  attempts,
	})
}

func (p *Provisioner) runSchedule(ctx context.Context, req Request, log *logger.Logger, project *model.Project, res *model.ProvisioningResult) {
	cadence, ok := model.ParseCadence(req.Record.Cadence)
	if !ok {
		return
	}
	res.Schedule.Attempted = true

	var sched *model.ScheduleInfo
	err := p.softStage(ctx, model.StageSchedule, func(ctx context.Context) error {
		var err error
		sched, err = p.reports.ScheduleRecurringReports(ctx, project.ID, cadence, reportConfig(req.Record))
		return err
	})
	if err != nil {
		res.Schedule.Error = err.Error()
		res.SoftFailures = append(res.SoftFailures, model.SoftFailure{Stage: model.StageSchedule, Error: err.Error()})
		log.Warn("schedule registration failed", zap.Error(err))
		p.emit(ctx, req, model.EventScheduleFailed, err.Error(), nil)
		return
	}

	next := sched.NextRunAt
	res.Schedule.Scheduled = true
	res.Schedule.ScheduleID = sched.ID
	res.Schedule.NextRunAt = &next
	p.emit(ctx, req, model.EventScheduleRegistered, "recurring reports scheduled", map[string]any{
		"cadence":     string(cadence),
		"next_run_at": next,
	})
}

func reportConfig(rec model.RequirementsRecord) model.ReportConfig {
	cadence, _ := model.ParseCadence(rec.Cadence)
	return model.ReportConfig{
		Template:   rec.ReportTemplate,
		FocusAreas: rec.FocusAreas,
		Cadence:    cadence,
	}
}

func projectMetadata(rec model.RequirementsRecord) map[string]string {
	meta := make(map[string]string)
	for _, f := range model.AllFields() {
		if f == model.FieldProjectName {
			continue
		}
		if v := rec.Get(f); v != "" {
			meta[string(f)] = v
		}
	}
	return meta
}
