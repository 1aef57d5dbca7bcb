package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikientity/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		noCache bool
		wantDB  bool
	}{
		{name: "cache enabled", enabled: true, wantDB: true},
		{name: "no-cache flag", enabled: true, noCache: true},
		{name: "cache disabled", enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Wikidata.SPARQLEndpoint = "http://127.0.0.1:9/sparql"
			cfg.Wikidata.Language = "de"
			cfg.Wikidata.UserAgent = "test-agent/1.0"
			cfg.Cache.Enabled = tt.enabled
			cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")

			s, err := New(cfg, nil, tt.noCache)
			require.NoError(t, err)
			defer s.Close()

			assert.Equal(t, tt.wantDB, s.DB != nil)
			assert.Equal(t, "http://127.0.0.1:9/sparql", s.Catalog.SPARQLEndpoint)
			assert.Equal(t, "de", s.Catalog.Language)
			assert.Equal(t, "test-agent/1.0", s.Catalog.UserAgent)
			assert.Same(t, s.Tracker, s.Catalog.Tracker)

			_, err = s.Metrics.Gather()
			require.NoError(t, err)
		})
	}
}

func TestNew_CacheUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	cfg := config.DefaultConfig()
	cfg.Cache.Dir = filepath.Join(blocker, "cache")

	// Make the cache directory impossible to create.
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := New(cfg, nil, false)
	assert.Error(t, err)
}

