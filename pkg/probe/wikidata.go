package probe

import (
	"context"
	"fmt"

	"github.com/antonholmquist/jason"

	"wikientity/pkg/db"
	"wikientity/pkg/wikidata"
)

// Upstream is the part of the catalog the probes exercise.
type Upstream interface {
	QuerySPARQL(ctx context.Context, query string) ([]wikidata.Row, error)
	EntityData(ctx context.Context, id string) (*jason.Object, error)
	Search(ctx context.Context, term string, maxResults int) ([]wikidata.SearchResult, error)
}

// pingQuery binds one constant row on any SPARQL 1.1 endpoint.
const pingQuery = `SELECT ?ok WHERE { BIND(1 AS ?ok) }`

// Wikidata returns the probes for the three upstream endpoints and, when cachePath is set,
// the response cache. Only the SPARQL endpoint is critical; the entity fields depend on it alone.
func Wikidata(up Upstream, cachePath string) []Probe {
	probes := []Probe{
		{
			Name:     "sparql endpoint",
			Critical: true,
			Check: func(ctx context.Context) error {
				rows, err := up.QuerySPARQL(ctx, pingQuery)
				if err != nil {
					return err
				}
				if len(rows) != 1 {
					return fmt.Errorf("expected 1 row, got %d", len(rows))
				}
				return nil
			},
		},
		{
			Name: "entity data",
			Check: func(ctx context.Context) error {
				_, err := up.EntityData(ctx, "Q1")
				return err
			},
		},
		{
			Name: "search api",
			Check: func(ctx context.Context) error {
				_, err := up.Search(ctx, "universe", 1)
				return err
			},
		},
	}

	if cachePath != "" {
		probes = append(probes, Probe{
			Name: "response cache",
			Check: func(ctx context.Context) error {
				d, err := db.Init(cachePath)
				if err != nil {
					return err
				}
				defer d.Close()
				_, err = d.CacheEntries()
				return err
			},
		})
	}
	return probes
}
