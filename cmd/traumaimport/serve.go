package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/traumaregistry/intake/internal/core"
	"github.com/traumaregistry/intake/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the import API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"db_max_conns", cfg.Database.MaxConns,
		"geocode_enabled", cfg.Geocode.Enabled,
		"rate_limit_rpm", cfg.Server.RequestsPerMinute,
	)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	// One run at a time: units share the database tables.
	service, err := core.NewService(a.orch, core.NewImportLimiter(1, cfg.Import.MaxWaitTime))
	if err != nil {
		return err
	}

	server := web.NewServer(service, web.Options{
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		MaxFileSize:       cfg.Import.MaxFileSize,
		Sheet:             cfg.Import.Sheet,
		APIKeys:           cfg.Server.APIKeys,
		Metrics:           a.recorder.Handler(),
		Ready:             a.db.PingContext,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Refuse new imports and wait for the active one (with timeout)
		status := service.LimiterStatus()
		slog.Info("waiting for imports to complete", "active", status.Active)
		if err := service.WaitForImports(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		} else {
			slog.Info("all imports completed")
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	slog.Info("server stopped")
	return nil
}
