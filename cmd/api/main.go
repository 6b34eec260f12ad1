// Package main is the entry point for the onboarding API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/capitalize-ai/project-onboarding/internal/config"
	"github.com/capitalize-ai/project-onboarding/internal/conversation"
	"github.com/capitalize-ai/project-onboarding/internal/handler"
	"github.com/capitalize-ai/project-onboarding/internal/llm"
	natsclient "github.com/capitalize-ai/project-onboarding/internal/nats"
	"github.com/capitalize-ai/project-onboarding/internal/probe"
	"github.com/capitalize-ai/project-onboarding/internal/provision"
	"github.com/capitalize-ai/project-onboarding/internal/report"
	"github.com/capitalize-ai/project-onboarding/internal/retry"
	"github.com/capitalize-ai/project-onboarding/internal/service"
	"github.com/capitalize-ai/project-onboarding/internal/store"
	"github.com/capitalize-ai/project-onboarding/pkg/logger"
	"github.com/capitalize-ai/project-onboarding/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting onboarding API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "project-onboarding", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	st, err := store.NewSQLite(cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	n, err := store.Seed(ctx, st, cfg.SeedFile)
	if err != nil {
		return err
	}
	log.Info("competitor catalog seeded", zap.Int("competitors", n), zap.String("file", cfg.SeedFile))

	// Events are optional. Without NATS, provisioning events are dropped
	// and the events endpoint reports them as unavailable.
	var (
		publisher  provision.Publisher
		eventLog   service.EventLog
		eventsPing handler.Pinger
	)
	if cfg.NATSEnabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer natsClient.Close()

		streams := natsclient.NewStreamManager(natsClient)
		if err := streams.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure stream: %w", err)
		}
		publisher, eventLog, eventsPing = streams, streams, natsClient
		go recordStreamSize(ctx, streams, log)
	}

	provider := llm.Provider(cfg.LLMProvider)
	modelName := cfg.LLMModel
	if modelName == "" {
		modelName = llm.DefaultModel(provider)
	}
	var llmClient llm.Client
	if key := cfg.LLMAPIKey(); key != "" {
		llmClient, err = llm.NewClient(provider, key)
		if err != nil {
			log.Warn("failed to create LLM client, AI narratives disabled", zap.Error(err))
			llmClient = nil
		}
	} else {
		log.Warn("no LLM API key configured, AI narratives disabled", zap.String("provider", cfg.LLMProvider))
	}

	aiStatus := probe.New(llm.NewConnectionChecker(llmClient, modelName), probe.Config{
		CacheTTL: cfg.ProbeCacheTTL,
		Timeout:  cfg.ProbeTimeout,
	}, log)
	// warm the cache so the first confirmation does not wait on it
	go aiStatus.Refresh(ctx)

	reports := report.NewService(st, llmClient, modelName, aiStatus, log)

	retryPolicy := retry.DefaultPolicy()
	retryPolicy.MaxRetries = cfg.ReportMaxRetries
	retryPolicy.BaseDelay = cfg.ReportRetryBaseDelay
	retryPolicy.MaxDelay = cfg.ReportRetryMaxDelay
	provisioner := provision.New(st, reports, aiStatus, publisher, provision.Config{
		ReportRetry:       retryPolicy,
		EnrichmentTimeout: cfg.EnrichmentTimeout,
		MaxCompetitors:    cfg.MaxCompetitors,
	}, log)
	defer provisioner.Wait()

	engine := conversation.New(conversation.Config{TurnTimeout: cfg.TurnTimeout}, provisioner, log)
	sessions := service.NewSessionService(st, engine, provisioner, eventLog, service.Config{
		PipelineTimeout: cfg.PipelineTimeout,
	}, log)

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	},
		handler.NewHealthHandler(st, eventsPing, aiStatus),
		handler.NewSessionHandler(sessions, log),
		handler.NewEventHandler(sessions, handler.EventStreamConfig{}, log),
		log,
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

func recordStreamSize(ctx context.Context, streams *natsclient.StreamManager, log *logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := streams.RecordStreamSize(ctx); err != nil {
				log.Debug("failed to record stream size", zap.Error(err))
			}
		}
	}
}
