// Package app assembles the engine from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"offeragg/internal/aggregate"
	"offeragg/internal/config"
	"offeragg/internal/logger"
	"offeragg/internal/metrics"
	"offeragg/internal/provider/cache"
	"offeragg/internal/registry"
)

// App is a ready-to-use engine plus the resources it owns.
type App struct {
	Config   config.Config
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	Registry *registry.Registry
	Engine   *aggregate.Engine

	store cache.Store
}

// New opens the cache store and builds the registry and engine. A nil reg
// disables metrics. The caller must Close the App.
func New(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*App, error) {
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	return NewWithLogger(ctx, cfg, reg, log)
}

// NewWithLogger is New with an explicit logger.
func NewWithLogger(ctx context.Context, cfg config.Config, reg prometheus.Registerer, log *slog.Logger) (*App, error) {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	var store cache.Store
	if cfg.Cache.TTLSeconds > 0 {
		s, err := cache.Open(ctx, cache.Options{
			Backend:     cfg.Cache.Backend,
			Dir:         cfg.Cache.Dir,
			RedisURL:    cfg.Cache.RedisURL,
			DatabaseURL: cfg.Cache.DatabaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		store = s
		log.Info("cache ready", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL())
	}

	r, err := registry.Build(cfg, registry.Deps{Store: store, Logger: log, Metrics: m})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	if len(r.IDs()) == 0 {
		log.Warn("no provider has credentials; every search will be empty")
	}

	e := aggregate.New(r.Providers(),
		aggregate.WithWorkers(cfg.Workers),
		aggregate.WithLogger(log),
		aggregate.WithMetrics(m),
	)
	return &App{Config: cfg, Log: log, Metrics: m, Registry: r, Engine: e, store: store}, nil
}

// Close releases the cache store.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
