package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"caidasapi/internal/config"
	"caidasapi/internal/database"
	"caidasapi/internal/imagehost"
	"caidasapi/internal/observability"
	"caidasapi/internal/services"
)

// app is the set of services built once at startup and shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	store   database.Store
	host    imagehost.Host

	credentials *services.Credentials
	events      *services.Events
	pipeline    *services.Pipeline
	status      *services.Status
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.InitLogger(cfg.Log.Dev, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	store, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
	}

	host, err := imagehost.New(cfg.ImageHost, cfg.GetBaseURL(), logger)
	if err != nil {
		store.Close(ctx)
		logger.Sync()
		return nil, fmt.Errorf("creating %s image host: %w", cfg.ImageHost.Provider, err)
	}

	metrics := observability.NewMetrics()
	events := services.NewEvents(store, logger)

	logger.Info("services ready",
		zap.String("env", cfg.Server.Env),
		zap.String("database", cfg.Database.Driver),
		zap.String("image_host", cfg.ImageHost.Provider),
	)

	return &app{
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		store:       store,
		host:        host,
		credentials: services.NewCredentials(store, logger),
		events:      events,
		status:      services.NewStatus(store, logger),
		pipeline: services.NewPipeline(store, events, host, metrics, logger, services.PipelineOptions{
			UploadTimeout: cfg.ImageHost.UploadTimeout,
			ProbeTimeout:  cfg.ImageHost.ProbeTimeout,
		}),
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
