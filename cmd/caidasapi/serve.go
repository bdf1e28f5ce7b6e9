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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"caidasapi/internal/handlers"
	"caidasapi/internal/imagehost"
	"caidasapi/internal/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	cfg := a.cfg
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("creating upload directory %s: %w", cfg.Uploads.Dir, err)
	}

	cookieSecret := cfg.Server.CookieSecret
	if cookieSecret == "" {
		// Only reachable outside production; sessions do not survive a restart.
		cookieSecret, err = services.GenerateSecureToken(32)
		if err != nil {
			return err
		}
		a.logger.Warn("no cookie secret configured, using a random one")
	}

	routerOpts := handlers.RouterOptions{
		CookieSecret: cookieSecret,
		SecureCookie: cfg.Server.SecureCookie,
		RequireLogin: cfg.Server.RequireLogin,
		Metrics:      a.metrics,
	}
	if local, ok := a.host.(*imagehost.Local); ok {
		routerOpts.MediaDir = local.Dir()
		routerOpts.MediaPrefix = imagehost.MediaPrefix
	}

	h := handlers.New(handlers.Deps{
		Credentials: a.credentials,
		Events:      a.events,
		Pipeline:    a.pipeline,
		Status:      a.status,
		Logger:      a.logger,
		UploadDir:   cfg.Uploads.Dir,
		MaxUploadMB: cfg.Uploads.MaxUploadMB,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(h, routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("base_url", cfg.GetBaseURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}
