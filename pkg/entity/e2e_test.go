package entity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikientity/pkg/cache"
	"wikientity/pkg/config"
	"wikientity/pkg/entity"
	"wikientity/pkg/request"
	"wikientity/pkg/tracker"
	"wikientity/pkg/wikidata"
)

type stubEndpoint struct {
	sparql  int32
	handler func(query string) string
}

func (s *stubEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/sparql":
		atomic.AddInt32(&s.sparql, 1)
		_, _ = w.Write([]byte(s.handler(r.URL.Query().Get("query"))))
	case strings.HasPrefix(r.URL.Path, "/wiki/Special:EntityData/"):
		_, _ = w.Write([]byte(`{"entities":{"Q90":{"id":"Q90","claims":{"P17":[{}],"P31":[{},{}]}}}}`))
	default:
		http.NotFound(w, r)
	}
}

func newStubRegistry(t *testing.T, handler func(query string) string) (*entity.Registry, *stubEndpoint) {
	t.Helper()
	stub := &stubEndpoint{handler: handler}
	svr := httptest.NewServer(stub)
	t.Cleanup(svr.Close)

	c := wikidata.NewClient(request.New(cache.NewMemoryCache(), tracker.New(), request.WithMinInterval(0)), nil)
	c.SPARQLEndpoint = svr.URL + "/sparql"
	c.BaseURI = svr.URL
	return entity.NewRegistry(c), stub
}

const empty = `{"head":{"vars":[]},"results":{"bindings":[]}}`

func TestEndToEnd_Label(t *testing.T) {
	reg, stub := newStubRegistry(t, func(q string) string {
		if strings.Contains(q, "wd:Q90 rdfs:label") {
			return `{"head":{"vars":["label"]},"results":{"bindings":[{"label":{"type":"literal","xml:lang":"en","value":"Paris"}}]}}`
		}
		return empty
	})

	e, err := reg.Get("http://www.wikidata.org/entity/Q90")
	require.NoError(t, err)
	assert.Same(t, e, reg.MustGet("q90"))

	label, ok, err := e.Label(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Paris", label)

	_, _, _ = e.Label(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.sparql))
}

func TestEndToEnd_FromLabelFallback(t *testing.T) {
	reg, _ := newStubRegistry(t, func(q string) string {
		if strings.Contains(q, `"Paris"@en`) {
			return `{"head":{"vars":["item"]},"results":{"bindings":[{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q90"}}]}}`
		}
		return empty
	})

	got, err := reg.FromLabel(context.Background(), "paris")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entity.Identifier("Q90"), got[0].ID())
}

func TestEndToEnd_NeighboursAndAttributes(t *testing.T) {
	reg, stub := newStubRegistry(t, func(q string) string {
		if strings.Contains(q, "wd:Q90 ?property ?object") {
			return `{"head":{"vars":["property","object","instance_of"]},"results":{"bindings":[
				{"property":{"type":"uri","value":"http://www.wikidata.org/prop/direct/P17"},
				 "object":{"type":"uri","value":"http://www.wikidata.org/entity/Q142"},
				 "instance_of":{"type":"uri","value":"http://www.wikidata.org/entity/Q6256"}},
				{"property":{"type":"uri","value":"http://www.wikidata.org/prop/direct/P1082"},
				 "object":{"type":"literal","value":"2145906"},
				 "instance_of":{"type":"uri","value":"http://www.wikidata.org/entity/Q6256"}}
			]}}`
		}
		return empty
	})
	ctx := context.Background()
	paris := reg.MustGet("Q90")

	fwd, err := paris.ForwardNeighbours(ctx)
	require.NoError(t, err)
	require.Len(t, fwd, 1)
	assert.Equal(t, "<Entity(Property): P17>", fwd[0].Property.String())

	classes, err := reg.MustGet("Q142").InstanceOf(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*entity.Entity{reg.MustGet("Q6256")}, classes)
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.sparql))

	n, err := paris.Attributes().Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDefault_UsesConfigEnvironment(t *testing.T) {
	stub := &stubEndpoint{handler: func(q string) string {
		if strings.Contains(q, "wd:Q90 rdfs:label") {
			return `{"head":{"vars":["label"]},"results":{"bindings":[{"label":{"type":"literal","xml:lang":"en","value":"Paris"}}]}}`
		}
		return empty
	}}
	svr := httptest.NewServer(stub)
	t.Cleanup(svr.Close)

	cacheDir := filepath.Join(t.TempDir(), "cache")
	t.Setenv(config.EnvSPARQLEndpoint, svr.URL+"/sparql")
	t.Setenv(config.EnvWikidataURI, svr.URL)
	t.Setenv(config.EnvCacheDir, cacheDir)

	entity.SetDefault(nil)
	t.Cleanup(func() { entity.SetDefault(nil) })

	c, ok := entity.Default().Catalog().(*wikidata.Client)
	require.True(t, ok)
	assert.Equal(t, svr.URL+"/sparql", c.SPARQLEndpoint)
	assert.Equal(t, svr.URL, c.BaseURI)

	label, _, err := entity.Default().MustGet("Q90").Label(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Paris", label)

	_, err = os.Stat(filepath.Join(cacheDir, "responses.db"))
	require.NoError(t, err)

	// A fresh default registry answers from the on-disk cache.
	entity.SetDefault(nil)
	fresh := entity.Default().MustGet("Q90")
	label, _, err = fresh.Label(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Paris", label)
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.sparql))
}
