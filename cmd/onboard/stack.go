package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/config"
	"github.com/capitalize-ai/project-onboarding/internal/conversation"
	"github.com/capitalize-ai/project-onboarding/internal/llm"
	"github.com/capitalize-ai/project-onboarding/internal/probe"
	"github.com/capitalize-ai/project-onboarding/internal/provision"
	"github.com/capitalize-ai/project-onboarding/internal/report"
	"github.com/capitalize-ai/project-onboarding/internal/retry"
	"github.com/capitalize-ai/project-onboarding/internal/service"
	"github.com/capitalize-ai/project-onboarding/internal/store"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
)

// stack is the in-process service graph used by the CLI. Events are not
// published; there is no NATS in local mode.
type stack struct {
	store       *store.SQLiteStore
	provisioner *provision.Provisioner
	sessions    *service.SessionService
}

func newLogger(verbose bool) *logger.Logger {
	if !verbose {
		return logger.NewNop()
	}
	log, err := logger.NewConsole("debug")
	if err != nil {
		return logger.NewNop()
	}
	return log
}

func openStack(ctx context.Context, cfg *config.Config, dbPath string, log *logger.Logger) (*stack, error) {
	st, err := store.NewSQLite(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := store.Seed(ctx, st, cfg.SeedFile); err != nil {
		st.Close()
		return nil, err
	}

	provider := llm.Provider(cfg.LLMProvider)
	modelName := cfg.LLMModel
	if modelName == "" {
		modelName = llm.DefaultModel(provider)
	}
	var client llm.Client
	if key := cfg.LLMAPIKey(); key != "" {
		if client, err = llm.NewClient(provider, key); err != nil {
			log.Warn("failed to create LLM client", zap.Error(err))
			client = nil
		}
	}
	aiStatus := probe.New(llm.NewConnectionChecker(client, modelName), probe.Config{
		CacheTTL: cfg.ProbeCacheTTL,
		Timeout:  cfg.ProbeTimeout,
	}, log)

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.ReportMaxRetries
	policy.BaseDelay = cfg.ReportRetryBaseDelay
	policy.MaxDelay = cfg.ReportRetryMaxDelay
	provisioner := provision.New(st, report.NewService(st, client, modelName, aiStatus, log), aiStatus, nil, provision.Config{
		ReportRetry:       policy,
		EnrichmentTimeout: cfg.EnrichmentTimeout,
		MaxCompetitors:    cfg.MaxCompetitors,
	}, log)

	engine := conversation.New(conversation.Config{TurnTimeout: cfg.TurnTimeout}, provisioner, log)
	return &stack{
		store:       st,
		provisioner: provisioner,
		sessions: service.NewSessionService(st, engine, provisioner, nil, service.Config{
			PipelineTimeout: cfg.PipelineTimeout,
		}, log),
	}, nil
}

func (s *stack) Close() error {
	s.provisioner.Wait()
	return s.store.Close()
}
