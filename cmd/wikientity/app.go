package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"wikientity/pkg/config"
	"wikientity/pkg/entity"
	"wikientity/pkg/logging"
	"wikientity/pkg/services"
	"wikientity/pkg/version"
	"wikientity/pkg/wikidata"
)

// app holds the wired services of one CLI invocation.
type app struct {
	cfg      *config.Config
	svc      *services.Services
	catalog  *wikidata.Client
	registry *entity.Registry
	cleanup  []func()
}

func newApp(configPath string, noCache bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	a.cleanup = append(a.cleanup, cleanupLogs)

	slog.Info("wikientity started", "version", version.Version, "sparql_endpoint", cfg.Wikidata.SPARQLEndpoint)

	svc, err := services.New(cfg, slog.Default(), noCache)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.svc = svc
	a.cleanup = append(a.cleanup, svc.Close)
	a.catalog = svc.Catalog

	a.registry = entity.NewRegistry(a.catalog, entity.WithLogger(slog.Default()))
	entity.SetDefault(a.registry)

	return a, nil
}

// writeMetrics dumps the request counters in Prometheus text format.
func (a *app) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, a.svc.Metrics); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// Close releases the cache database and the log file, in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}
