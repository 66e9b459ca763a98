package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/queryforge/queryforge/internal/api"
	"github.com/queryforge/queryforge/internal/auth"
	"github.com/queryforge/queryforge/internal/config"
	historypostgres "github.com/queryforge/queryforge/internal/history/postgres"
	"github.com/queryforge/queryforge/internal/llm"
	"github.com/queryforge/queryforge/internal/observability"
	"github.com/queryforge/queryforge/internal/pipeline"
	"github.com/queryforge/queryforge/internal/schema"
	schemaduckdb "github.com/queryforge/queryforge/internal/schema/duckdb"
	schemapostgres "github.com/queryforge/queryforge/internal/schema/postgres"
	s3store "github.com/queryforge/queryforge/internal/storage/s3"
	warehouseduckdb "github.com/queryforge/queryforge/internal/warehouse/duckdb"
)

func main() {
	cfg, err := config.LoadFromEnv("queryforge-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	objectStore, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	engine, err := warehouseduckdb.Open(context.Background(), objectStore)
	if err != nil {
		logger.Error("failed to open warehouse engine", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	var introspector schema.Introspector
	switch cfg.SchemaSource.Driver {
	case "postgres":
		pgIntrospector, err := schemapostgres.Open(context.Background(), schemapostgres.Config{
			DSN:             cfg.SchemaSource.DSN,
			SearchSchema:    cfg.SchemaSource.SearchSchema,
			MaxOpenConns:    cfg.SchemaSource.MaxOpenConns,
			MaxIdleConns:    cfg.SchemaSource.MaxIdleConns,
			ConnMaxIdleTime: cfg.SchemaSource.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.SchemaSource.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open schema source", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = pgIntrospector.Close() }()
		introspector = pgIntrospector
	default:
		introspector = schemaduckdb.New(engine.DB())
	}

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize llm client", slog.Any("error", err))
		os.Exit(1)
	}

	var recorder pipeline.RunSink
	var runs api.RunLookup
	if cfg.History.Enabled {
		historyStore, err := historypostgres.Open(context.Background(), historypostgres.Config{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history store", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyStore.Close() }()
		recorder = historyStore
		runs = historyStore
	}

	loop := pipeline.NewLoop(client, engine, pipeline.Options{
		MaxCorrectionAttempts: cfg.Pipeline.MaxCorrectionAttempts,
		Logger:                logger,
		Recorder:              recorder,
	})

	deps := api.Dependencies{
		Logger:          logger,
		Answerer:        loop,
		Introspector:    introspector,
		Runs:            runs,
		Warehouse:       engine,
		ExecuteRowLimit: cfg.Pipeline.ExecuteRowLimit,
		Readiness: api.CombineReadinessChecks(
			engine.HealthCheck,
			api.CheckSchemaSource(cfg),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
