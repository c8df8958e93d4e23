package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/traumaregistry/intake/internal/config"
	"github.com/traumaregistry/intake/internal/core"
	_ "github.com/traumaregistry/intake/internal/core/tables" // Register all import units
	"github.com/traumaregistry/intake/internal/database"
	"github.com/traumaregistry/intake/internal/geocode"
	"github.com/traumaregistry/intake/internal/logging"
	"github.com/traumaregistry/intake/internal/metrics"
	"github.com/traumaregistry/intake/internal/normalize"
	"github.com/traumaregistry/intake/internal/telemetry"
)

// app holds the components shared by the import and serve commands.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	recorder *metrics.Recorder
	orch     *core.Orchestrator

	shutdownTracing telemetry.ShutdownFunc
}

// loadConfig loads the environment and configuration and sets up logging.
func loadConfig() (*config.Config, error) {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	core.MaxFileSize = cfg.Import.MaxFileSize
	core.ImportTimeout = cfg.Import.Timeout
	return cfg, nil
}

// newApp connects to the database and builds the orchestrator.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, recorder: metrics.NewRecorder(), shutdownTracing: shutdown}

	if a.db, err = openDatabase(ctx, cfg.Database); err != nil {
		a.Close(ctx)
		return nil, err
	}

	vocab, err := normalize.DefaultVocabulary()
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}

	env := core.Env{Vocabulary: vocab, CityPrefix: cfg.Geocode.CityPrefix}
	if cfg.Geocode.Enabled {
		geo, err := newGeocoder(cfg.Geocode, a.recorder)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		env.Geocoder = geo
	} else {
		slog.Info("geocoding disabled, coordinates will not be updated")
	}

	a.orch, err = core.NewOrchestrator(a.db, cfg.Database.Dialect(), env, core.WithRecorder(a.recorder))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	slog.Info("import units registered", "count", core.TableCount())
	return a, nil
}

// Close releases the database and flushes pending spans.
func (a *app) Close(ctx context.Context) {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("close database", "error", err)
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			slog.Warn("shutdown tracing", "error", err)
		}
	}
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Dialect:         cfg.Dialect(),
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxConns,
		MaxIdleConns:    cfg.MaxConns,
		ConnMaxLifetime: cfg.MaxConnLifetime,
		ConnMaxIdleTime: cfg.MaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil && u.Path != "" {
		slog.Info("connected to database", "dialect", cfg.Dialect(), "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database", "dialect", cfg.Dialect())
	}
	return db, nil
}

func newGeocoder(cfg config.GeocodeConfig, observer geocode.Observer) (*geocode.Service, error) {
	var resolver *geocode.Resolver
	if !cfg.CacheOnly {
		client := geocode.NewClient(geocode.ClientConfig{
			BaseURL: cfg.BaseURL,
			Key:     cfg.APIKey,
			City:    cfg.City,
			Timeout: cfg.Timeout,
		})
		resolver = geocode.NewResolver(client, cfg.CityPrefix, cfg.Retry, cfg.Delay)
	}

	return geocode.NewService(geocode.Config{
		CachePath:  cfg.CacheFile,
		FlushEvery: cfg.FlushEvery,
		Delay:      cfg.Delay,
		CacheOnly:  cfg.CacheOnly,
	}, resolver, observer)
}
