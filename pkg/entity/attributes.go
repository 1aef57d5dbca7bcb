package entity

import (
	"context"
	"sort"
	"sync"

	"github.com/antonholmquist/jason"
)

// Attributes is a read-only view over the entity document served by Special:EntityData.
// The document is fetched once, on the first call of any accessor. A failed fetch leaves
// the view unloaded and the next call fetches again.
type Attributes struct {
	id      Identifier
	catalog Catalog

	mu     sync.Mutex
	loaded bool
	doc    *jason.Object
}

func newAttributes(id Identifier, cat Catalog) *Attributes {
	return &Attributes{id: id, catalog: cat}
}

// Loaded reports whether the document has been fetched.
func (a *Attributes) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded
}

// Load fetches the document unless it is already loaded.
func (a *Attributes) Load(ctx context.Context) error {
	_, err := a.document(ctx)
	return err
}

func (a *Attributes) document(ctx context.Context) (*jason.Object, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return a.doc, nil
	}
	doc, err := a.catalog.EntityData(ctx, string(a.id))
	if err != nil {
		return nil, err
	}
	a.doc, a.loaded = doc, true
	return doc, nil
}

// Get returns the top-level document member key, such as "claims" or "labels".
func (a *Attributes) Get(ctx context.Context, key string) (*jason.Value, bool, error) {
	doc, err := a.document(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := doc.Map()[key]
	return v, ok, nil
}

// Keys returns the top-level member names of the document, sorted.
func (a *Attributes) Keys(ctx context.Context) ([]string, error) {
	doc, err := a.document(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(doc.Map()), nil
}

// Items returns the top-level members of the document.
func (a *Attributes) Items(ctx context.Context) (map[string]*jason.Value, error) {
	doc, err := a.document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Map(), nil
}

// Values returns the top-level members of the document in key order.
func (a *Attributes) Values(ctx context.Context) ([]*jason.Value, error) {
	doc, err := a.document(ctx)
	if err != nil {
		return nil, err
	}
	m := doc.Map()
	out := make([]*jason.Value, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out, nil
}

func (a *Attributes) claims(ctx context.Context) (map[string]*jason.Value, error) {
	doc, err := a.document(ctx)
	if err != nil {
		return nil, err
	}
	c, err := doc.GetObject("claims")
	if err != nil {
		// Documents without claims behave as empty.
		return map[string]*jason.Value{}, nil
	}
	return c.Map(), nil
}

// PropertyIDs returns the ids of the properties the entity has claims for, sorted.
func (a *Attributes) PropertyIDs(ctx context.Context) ([]string, error) {
	c, err := a.claims(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(c), nil
}

// Len returns the number of properties the entity has claims for.
func (a *Attributes) Len(ctx context.Context) (int, error) {
	c, err := a.claims(ctx)
	if err != nil {
		return 0, err
	}
	return len(c), nil
}

// Claims returns the claims for property pid. A property without claims yields nil.
func (a *Attributes) Claims(ctx context.Context, pid string) ([]*jason.Object, error) {
	c, err := a.claims(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := c[pid]
	if !ok {
		return nil, nil
	}
	return v.ObjectArray()
}

// Range calls fn for every property in id order until fn returns false.
func (a *Attributes) Range(ctx context.Context, fn func(pid string, claims []*jason.Object) bool) error {
	c, err := a.claims(ctx)
	if err != nil {
		return err
	}
	for _, pid := range sortedKeys(c) {
		claims, err := c[pid].ObjectArray()
		if err != nil {
			continue
		}
		if !fn(pid, claims) {
			return nil
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
