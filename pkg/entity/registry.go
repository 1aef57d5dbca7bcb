package entity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"wikientity/pkg/config"
	"wikientity/pkg/services"
)

// Registry owns every Entity it hands out. Equivalent inputs always yield the same *Entity,
// so relations discovered through one holder are visible to all of them.
type Registry struct {
	catalog Catalog
	logger  *slog.Logger

	mu       sync.Mutex
	entities map[Identifier]*Entity

	// One in-flight resolution per (identifier, field).
	group singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry backed by cat.
func NewRegistry(cat Catalog, opts ...Option) *Registry {
	r := &Registry{
		catalog:  cat,
		logger:   slog.Default(),
		entities: make(map[Identifier]*Entity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
	defaultClose    func()
)

// Default returns the process-wide registry. On first use it is built from the configuration
// environment (SPARQL_ENDPOINT, WIKIDATA_URI, WIKIDATA_CACHE_DIR, ...) with the on-disk response
// cache. If the cache cannot be opened it falls back to uncached requests.
// It lives for the whole process.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRegistry == nil {
		svc := defaultServices()
		defaultRegistry = NewRegistry(svc.Catalog)
		defaultClose = svc.Close
	}
	return defaultRegistry
}

func defaultServices() *services.Services {
	logger := slog.Default()
	cfg, err := config.Load("")
	if err != nil {
		logger.Warn("Invalid configuration environment, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	svc, err := services.New(cfg, logger, false)
	if err == nil {
		return svc
	}
	logger.Warn("Response cache unavailable, requests are not cached", "path", cfg.Cache.Path(), "error", err)
	svc, err = services.New(cfg, logger, true)
	if err != nil {
		// Only the cache can fail to open.
		panic(err)
	}
	return svc
}

// SetDefault replaces the process-wide registry. Resources held by a registry that
// Default built are released.
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClose != nil && defaultRegistry != r {
		defaultClose()
		defaultClose = nil
	}
	defaultRegistry = r
}

// Catalog returns the catalog the registry resolves fields with.
func (r *Registry) Catalog() Catalog {
	return r.catalog
}

// Get returns the entity for an id or URI, creating it on first sight.
// Invalid input returns ErrInvalidIdentifier and leaves the registry untouched.
func (r *Registry) Get(idOrURI string) (*Entity, error) {
	id, err := ParseIdentifier(idOrURI)
	if err != nil {
		return nil, err
	}
	return r.get(id), nil
}

// MustGet is like Get but panics on invalid input.
func (r *Registry) MustGet(idOrURI string) *Entity {
	e, err := r.Get(idOrURI)
	if err != nil {
		panic(err)
	}
	return e
}

func (r *Registry) get(id Identifier) *Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entities[id]; ok {
		return e
	}
	e := newEntity(r, id)
	r.entities[id] = e
	return e
}

// Lookup returns a registered entity without creating one.
func (r *Registry) Lookup(idOrURI string) (*Entity, bool) {
	id, err := ParseIdentifier(idOrURI)
	if err != nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	return e, ok
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entities)
}

// resolveAll registers every valid id or URI in refs, skipping the rest.
func (r *Registry) resolveAll(refs []string) []*Entity {
	out := make([]*Entity, 0, len(refs))
	for _, ref := range refs {
		e, err := r.Get(ref)
		if err != nil {
			r.logger.Debug("Skipping non-entity value", "value", ref)
			continue
		}
		out = append(out, e)
	}
	return out
}

// FromLabel returns the entities whose label in the catalog language is exactly label.
// When nothing matches, the lookup is retried once with the case of the first character flipped.
func (r *Registry) FromLabel(ctx context.Context, label string) ([]*Entity, error) {
	variants := []string{label}
	if flipped := flipFirst(label); flipped != label {
		variants = append(variants, flipped)
	}

	for _, v := range variants {
		refs, err := r.catalog.EntitiesByLabel(ctx, v)
		if err != nil {
			return nil, err
		}
		if found := r.resolveAll(refs); len(found) > 0 {
			return found, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (case-flipped variant tried too)", ErrNoMatch, label)
}

func flipFirst(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	flipped := unicode.ToUpper(first)
	if unicode.IsUpper(first) {
		flipped = unicode.ToLower(first)
	}
	return string(flipped) + s[size:]
}

// Search runs a free-text search and registers the hits.
func (r *Registry) Search(ctx context.Context, term string, maxResults int) ([]*Entity, error) {
	hits, err := r.catalog.Search(ctx, term, maxResults)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return r.resolveAll(ids), nil
}

// ApplyInstanceOf appends each update's class to its subject's instanceOf, creating the list
// when unset. Classes already present are not added twice.
func (r *Registry) ApplyInstanceOf(updates []InstanceOfUpdate) {
	for _, u := range updates {
		u.Subject.addInstanceOf(u.Class)
	}
}

// PrefetchLabels fills the label of every entity in ents that has none yet with one batched
// lookup. Entities the catalog has no label for stay unset.
func (r *Registry) PrefetchLabels(ctx context.Context, ents []*Entity) error {
	seen := make(map[Identifier]bool, len(ents))
	var ids []string
	for _, e := range ents {
		if seen[e.id] || e.labelResolved() {
			continue
		}
		seen[e.id] = true
		ids = append(ids, string(e.id))
	}
	if len(ids) == 0 {
		return nil
	}

	labels, err := r.catalog.Labels(ctx, ids)
	if err != nil {
		return err
	}
	for id, label := range labels {
		if e, ok := r.Lookup(id); ok {
			e.setLabel(label)
		}
	}
	return nil
}
