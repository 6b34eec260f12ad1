// Package report generates competitive-analysis reports and registers their
// recurring schedules.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/llm"
	"github.com/capitalize-ai/project-onboarding/internal/model"
	"github.com/capitalize-ai/project-onboarding/internal/probe"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
)

var (
	// ErrProjectNotFound is returned for unknown project ids.
	ErrProjectNotFound = errors.New("project not found")
	// ErrNoCompetitors is returned when the project has no competitors to analyse.
	ErrNoCompetitors = errors.New("project has no competitors")
	// ErrIncompleteData is returned when competitor records lack data and partial reports are not allowed.
	ErrIncompleteData = errors.New("competitor data incomplete")
	// ErrUnknownCadence is returned for cadences outside the vocabulary.
	ErrUnknownCadence = errors.New("unknown cadence")
)

// Storage is the persistence the report service needs.
type Storage interface {
	Ping(ctx context.Context) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListCompetitors(ctx context.Context) ([]model.Competitor, error)
	SaveReport(ctx context.Context, r *model.Report) error
	SaveSchedule(ctx context.Context, s *model.ScheduleInfo) error
}

// StatusSource reports whether AI narratives can be requested.
type StatusSource interface {
	Status(ctx context.Context) probe.Status
}

// Service generates reports.
type Service struct {
	store  Storage
	client llm.Client
	model  string
	status StatusSource
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a report service. client and status may be nil, in
// which case reports are built from stored data only.
func NewService(store Storage, client llm.Client, modelName string, status StatusSource, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		client: client,
		model:  modelName,
		status: status,
		log:    log,
		now:    time.Now,
	}
}

// Ready reports whether the service can accept work.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("report storage: %w", err)
	}
	return nil
}

// GenerateInitialReport builds and stores the first report of a project and
// returns its id.
func (s *Service) GenerateInitialReport(ctx context.Context, projectID string, cfg model.ReportConfig) (string, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return "", fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	pool, err := s.store.ListCompetitors(ctx)
	if err != nil {
		return "", fmt.Errorf("load competitors: %w", err)
	}
	competitors := selectCompetitors(pool, project.CompetitorIDs)
	if len(competitors) == 0 {
		return "", ErrNoCompetitors
	}

	incomplete := 0
	for _, c := range competitors {
		if !c.Complete() {
			incomplete++
		}
	}
	if incomplete > 0 && !cfg.AllowPartialData {
		return "", fmt.Errorf("%w: %d of %d competitors lack website or description", ErrIncompleteData, incomplete, len(competitors))
	}

	report := &model.Report{
		ProjectID: projectID,
		Content:   renderDataReport(project, competitors, cfg),
		Partial:   incomplete > 0,
	}

	if s.aiAvailable(ctx) {
		narrative, err := s.narrative(ctx, project, competitors, cfg)
		switch {
		case err == nil:
			report.Content = narrative + "\n\n" + report.Content
			report.AIAssisted = true
		case cfg.ForceGeneration:
			s.log.Warn("ai narrative failed, storing data-only report",
				zap.String("project_id", projectID),
				zap.Error(err),
			)
			report.Partial = true
		default:
			return "", fmt.Errorf("generate narrative: %w", err)
		}
	}

	if err := s.store.SaveReport(ctx, report); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	s.log.Info("report generated",
		zap.String("project_id", projectID),
		zap.String("report_id", report.ID),
		zap.Bool("partial", report.Partial),
		zap.Bool("ai_assisted", report.AIAssisted),
	)
	return report.ID, nil
}

// ScheduleRecurringReports registers the recurring schedule of a project.
func (s *Service) ScheduleRecurringReports(ctx context.Context, projectID string, cadence model.Cadence, cfg model.ReportConfig) (*model.ScheduleInfo, error) {
	if _, ok := model.ParseCadence(string(cadence)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCadence, cadence)
	}

	sched := &model.ScheduleInfo{
		ProjectID: projectID,
		Cadence:   cadence,
		NextRunAt: cadence.NextRun(s.now().UTC()),
	}
	if err := s.store.SaveSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}

	s.log.Info("report schedule registered",
		zap.String("project_id", projectID),
		zap.String("cadence", string(cadence)),
		zap.Time("next_run_at", sched.NextRunAt),
		zap.String("template", cfg.Template),
	)
	return sched, nil
}

func (s *Service) aiAvailable(ctx context.Context) bool {
	if s.client == nil || s.status == nil {
		return false
	}
	return s.status.Status(ctx).Available
}

func (s *Service) narrative(ctx context.Context, project *model.Project, competitors []model.Competitor, cfg model.ReportConfig) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", project.Name)
	for _, k := range sortedKeys(project.Metadata) {
		fmt.Fprintf(&b, "%s: %s\n", k, project.Metadata[k])
	}
	if len(cfg.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Focus areas: %s\n", strings.Join(cfg.FocusAreas, ", "))
	}
	b.WriteString("\nCompetitors:\n")
	for _, c := range competitors {
		fmt.Fprintf(&b, "- %s (%s): %s\n", c.Name, c.Website, c.Description)
	}

	start := s.now()
	resp, err := s.client.Complete(ctx, &llm.CompletionRequest{
		Model:     s.model,
		System:    "You are a competitive-intelligence analyst. Write a concise executive summary comparing the product with each competitor. Use markdown.",
		MaxTokens: 1200,
		Prompt:    b.String(),
	})
	elapsed := s.now().Sub(start).Seconds()
	if err != nil {
		metrics.RecordLLM(s.model, "error", elapsed, 0, 0)
		return "", err
	}
	metrics.RecordLLM(resp.Model, "success", elapsed, resp.TokensIn, resp.TokensOut)
	return strings.TrimSpace(resp.Content), nil
}

// renderDataReport builds the report body from stored data alone.
func renderDataReport(project *model.Project, competitors []model.Competitor, cfg model.ReportConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", project.Name)
	if p := project.Metadata["product_name"]; p != "" {
		fmt.Fprintf(&b, "Product: %s", p)
		if u := project.Metadata["product_url"]; u != "" {
			fmt.Fprintf(&b, " (%s)", u)
		}
		b.WriteString("\n")
	}
	if ind := project.Metadata["industry"]; ind != "" {
		fmt.Fprintf(&b, "Industry: %s\n", ind)
	}
	if len(cfg.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Focus areas: %s\n", strings.Join(cfg.FocusAreas, ", "))
	}

	b.WriteString("\n## Competitors\n\n")
	for _, c := range competitors {
		fmt.Fprintf(&b, "### %s\n", c.Name)
		if c.Website != "" {
			fmt.Fprintf(&b, "- Website: %s\n", c.Website)
		}
		if c.Industry != "" {
			fmt.Fprintf(&b, "- Industry: %s\n", c.Industry)
		}
		if c.Description != "" {
			fmt.Fprintf(&b, "- %s\n", c.Description)
		}
		if !c.Complete() {
			b.WriteString("- _Profile incomplete; details will be filled in by enrichment._\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func selectCompetitors(pool []model.Competitor, ids []string) []model.Competitor {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Competitor
	for _, c := range pool {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
