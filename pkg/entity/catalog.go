package entity

import (
	"context"

	"github.com/antonholmquist/jason"

	"wikientity/pkg/wikidata"
)

// Catalog answers the queries an Entity needs. *wikidata.Client implements it.
type Catalog interface {
	EntitiesByLabel(ctx context.Context, label string) ([]string, error)
	InstanceOf(ctx context.Context, id string) ([]string, error)
	SubclassOf(ctx context.Context, id string) ([]string, error)
	Label(ctx context.Context, id string) (string, bool, error)
	Descriptions(ctx context.Context, id string) ([]string, error)
	Images(ctx context.Context, id string) ([]string, error)
	Neighbours(ctx context.Context, id string, dir wikidata.Direction) ([]wikidata.NeighbourRow, error)
	EntityData(ctx context.Context, id string) (*jason.Object, error)
	Labels(ctx context.Context, ids []string) (map[string]string, error)
	Search(ctx context.Context, term string, maxResults int) ([]wikidata.SearchResult, error)
}

var _ Catalog = (*wikidata.Client)(nil)
