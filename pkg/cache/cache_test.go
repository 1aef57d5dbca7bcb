package cache

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikientity/pkg/db"
)

func TestSQLiteCache(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "cache_test.db"))
	require.NoError(t, err)
	defer d.Close()

	c := NewSQLiteCache(d)
	ctx := context.Background()

	val, hit := c.GetCache(ctx, "missing")
	assert.False(t, hit)
	assert.Nil(t, val)

	body := []byte(`{"results":{"bindings":[{"label":{"type":"literal","value":"Paris"}}]}}`)
	require.NoError(t, c.SetCache(ctx, "k1", body))

	got, hit := c.GetCache(ctx, "k1")
	require.True(t, hit)
	assert.Equal(t, body, got)

	// Stored compressed
	var raw []byte
	require.NoError(t, d.QueryRow("SELECT value FROM cache WHERE key = ?", "k1").Scan(&raw))
	assert.Equal(t, byte(0x1f), raw[0])
	assert.Equal(t, byte(0x8b), raw[1])

	// Overwrite
	require.NoError(t, c.SetCache(ctx, "k1", []byte("v2")))
	got, _ = c.GetCache(ctx, "k1")
	assert.Equal(t, "v2", string(got))
}

func TestSQLiteCache_UncompressedLegacyValue(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec("INSERT INTO cache (key, value) VALUES (?, ?)", "plain", []byte("raw"))
	require.NoError(t, err)

	got, hit := NewSQLiteCache(d).GetCache(context.Background(), "plain")
	require.True(t, hit)
	assert.Equal(t, "raw", string(got))
}

func TestKey(t *testing.T) {
	const sparql = "https://query.wikidata.org/sparql"
	query := func(q string) url.Values {
		return url.Values{"format": {"json"}, "query": {q}}
	}

	a := Key(sparql, query(`SELECT ?label WHERE { wd:Q90 rdfs:label ?label . }`))

	tests := []struct {
		name     string
		endpoint string
		params   url.Values
		same     bool
	}{
		{
			name:     "param order and trailing slash",
			endpoint: sparql + "/",
			params:   url.Values{"query": {`SELECT ?label WHERE { wd:Q90 rdfs:label ?label . }`}, "format": {"json"}},
			same:     true,
		},
		{
			name:     "different entity",
			endpoint: sparql,
			params:   query(`SELECT ?label WHERE { wd:Q64 rdfs:label ?label . }`),
		},
		{
			name:     "different endpoint",
			endpoint: "https://example.org/sparql",
			params:   query(`SELECT ?label WHERE { wd:Q90 rdfs:label ?label . }`),
		},
		{
			name:     "reformatted query",
			endpoint: sparql,
			params:   query("SELECT ?label WHERE {\n  wd:Q90 rdfs:label ?label .\n}"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.endpoint, tt.params)
			if tt.same {
				assert.Equal(t, a, got)
			} else {
				assert.NotEqual(t, a, got)
			}
		})
	}

	assert.True(t, strings.HasPrefix(a, "wd_"))
	assert.Len(t, a, len("wd_")+64)
}

func TestKey_LiteralWhitespaceIsSignificant(t *testing.T) {
	byLabel := func(label string) string {
		return Key("https://query.wikidata.org/sparql", url.Values{
			"format": {"json"},
			"query":  {`SELECT ?item WHERE { ?item rdfs:label "` + label + `"@en . }`},
		})
	}
	assert.NotEqual(t, byLabel("New  York"), byLabel("New York"))
	assert.Equal(t, byLabel("New York"), byLabel("New York"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, hit := c.GetCache(ctx, "k")
	assert.False(t, hit)

	buf := []byte("value")
	require.NoError(t, c.SetCache(ctx, "k", buf))
	buf[0] = 'X' // caller mutation must not leak into the cache

	got, hit := c.GetCache(ctx, "k")
	assert.True(t, hit)
	assert.Equal(t, "value", string(got))
	assert.Equal(t, 1, c.Len())
}
