// Package services wires the configured transport, response cache, metrics and catalog.
// The CLI and the process-wide default registry share it so both honour the same config.
package services

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"wikientity/pkg/cache"
	"wikientity/pkg/config"
	"wikientity/pkg/db"
	"wikientity/pkg/request"
	"wikientity/pkg/tracker"
	"wikientity/pkg/wikidata"
)

// Services holds the wired upstream stack.
type Services struct {
	Config  *config.Config
	DB      *db.DB // nil when the response cache is off
	Tracker *tracker.Tracker
	Metrics *prometheus.Registry
	Catalog *wikidata.Client

	cleanup []func()
}

// New wires the stack from cfg. With noCache set, or the cache disabled in cfg,
// responses are not persisted.
func New(cfg *config.Config, logger *slog.Logger, noCache bool) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{Config: cfg}

	var c cache.Cacher = cache.NoCache{}
	if cfg.Cache.Enabled && !noCache {
		d, err := db.Init(cfg.Cache.Path())
		if err != nil {
			return nil, fmt.Errorf("failed to open response cache: %w", err)
		}
		s.DB = d
		s.cleanup = append(s.cleanup, func() { d.Close() })
		c = cache.NewSQLiteCache(d)
	}

	s.Tracker = tracker.New()
	s.Metrics = prometheus.NewRegistry()
	if err := s.Tracker.Register(s.Metrics); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	rc := request.New(c, s.Tracker,
		request.WithLogger(logger),
		request.WithHTTPClient(&http.Client{Timeout: cfg.Request.Timeout.Std()}),
		request.WithUserAgent(cfg.Wikidata.UserAgent),
		request.WithMinInterval(cfg.Request.MinInterval.Std()),
		request.WithBackoff(request.Backoff{
			Initial:     cfg.Request.Backoff.Initial.Std(),
			Increment:   cfg.Request.Backoff.Increment.Std(),
			MaxAttempts: cfg.Request.Backoff.MaxAttempts,
		}),
	)

	s.Catalog = wikidata.NewClient(rc, logger)
	s.Catalog.SPARQLEndpoint = cfg.Wikidata.SPARQLEndpoint
	s.Catalog.BaseURI = cfg.Wikidata.BaseURI
	s.Catalog.APIEndpoint = cfg.Wikidata.APIEndpoint
	s.Catalog.Language = cfg.Wikidata.Language
	s.Catalog.Tracker = s.Tracker
	if cfg.Wikidata.UserAgent != "" {
		s.Catalog.UserAgent = cfg.Wikidata.UserAgent
	}
	return s, nil
}

// Close releases the cache database.
func (s *Services) Close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = nil
}
