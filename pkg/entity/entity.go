package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"wikientity/pkg/wikidata"
)

// field is a lazily resolved value with an explicit set state.
type field[T any] struct {
	value T
	set   bool
}

// Entity is a Wikidata item or property. Fields are fetched on first access and kept
// for the lifetime of the registry. A failed fetch leaves the field unset.
type Entity struct {
	id         Identifier
	isProperty bool
	reg        *Registry
	attrs      *Attributes

	mu          sync.Mutex
	label       field[string]
	description field[[]string]
	image       field[[]string]
	instanceOf  field[[]*Entity]
	subclassOf  field[[]*Entity]
	forward     field[[]Neighbour]
	backward    field[[]Neighbour]
}

func newEntity(reg *Registry, id Identifier) *Entity {
	e := &Entity{
		id:         id,
		isProperty: id.IsProperty(),
		reg:        reg,
	}
	e.attrs = newAttributes(id, reg.catalog)
	return e
}

// ID returns the entity identifier.
func (e *Entity) ID() Identifier { return e.id }

// IsProperty reports whether the entity is a property.
func (e *Entity) IsProperty() bool { return e.isProperty }

// Attributes returns the lazy view over the entity document.
func (e *Entity) Attributes() *Attributes { return e.attrs }

func (e *Entity) String() string {
	if e.isProperty {
		return fmt.Sprintf("<Entity(Property): %s>", e.id)
	}
	return fmt.Sprintf("<Entity: %s>", e.id)
}

// MarshalJSON encodes the id and, when already resolved, the label. It never queries.
func (e *Entity) MarshalJSON() ([]byte, error) {
	e.mu.Lock()
	label := e.label
	e.mu.Unlock()

	out := struct {
		ID    Identifier `json:"id"`
		Label *string    `json:"label,omitempty"`
	}{ID: e.id}
	if label.set {
		out.Label = &label.value
	}
	return json.Marshal(out)
}

// resolve returns f once set, otherwise runs load through the registry's single-flight group.
// store runs under e.mu and decides whether the loaded value sets the field.
func resolve[T any](ctx context.Context, e *Entity, name string, f *field[T], load func(context.Context) (T, error), store func(f *field[T], v T)) (T, bool, error) {
	e.mu.Lock()
	if f.set {
		v := f.value
		e.mu.Unlock()
		return v, true, nil
	}
	e.mu.Unlock()

	_, err, _ := e.reg.group.Do(string(e.id)+"/"+name, func() (any, error) {
		e.mu.Lock()
		done := f.set
		e.mu.Unlock()
		if done {
			return nil, nil
		}

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		store(f, v)
		e.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		var zero T
		e.reg.logger.Debug("Field resolution failed", "entity", e.id, "field", name, "error", err)
		return zero, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return f.value, f.set, nil
}

// storeAlways sets the field even when the result is empty.
func storeAlways[T any](f *field[T], v T) {
	f.value, f.set = v, true
}

// storeNonEmpty leaves the field unset for an empty result so the next access asks again.
func storeNonEmpty[T any](f *field[[]T], v []T) {
	if len(v) > 0 {
		f.value, f.set = v, true
	}
}

// Label returns the label in the catalog language. ok is false when the entity has none;
// the field then stays unset and the next call asks again.
func (e *Entity) Label(ctx context.Context) (label string, ok bool, err error) {
	return resolve(ctx, e, "label", &e.label,
		func(ctx context.Context) (string, error) {
			l, found, err := e.reg.catalog.Label(ctx, string(e.id))
			if err != nil || !found {
				return "", err
			}
			return l, nil
		},
		func(f *field[string], v string) {
			if v != "" && !f.set {
				f.value, f.set = v, true
			}
		})
}

// CachedLabel returns the label if it has been resolved, without querying.
func (e *Entity) CachedLabel() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.label.value, e.label.set
}

func (e *Entity) labelResolved() bool {
	_, ok := e.CachedLabel()
	return ok
}

func (e *Entity) setLabel(label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.label.set && label != "" {
		e.label = field[string]{value: label, set: true}
	}
}

// Description returns every description in the catalog language.
func (e *Entity) Description(ctx context.Context) ([]string, error) {
	v, _, err := resolve(ctx, e, "description", &e.description,
		func(ctx context.Context) ([]string, error) {
			return e.reg.catalog.Descriptions(ctx, string(e.id))
		},
		storeNonEmpty[string])
	return v, err
}

// Image returns the image file URLs of the entity.
func (e *Entity) Image(ctx context.Context) ([]string, error) {
	v, _, err := resolve(ctx, e, "image", &e.image,
		func(ctx context.Context) ([]string, error) {
			return e.reg.catalog.Images(ctx, string(e.id))
		},
		storeNonEmpty[string])
	return v, err
}

// InstanceOf returns the classes the entity is an instance of. Classes learned earlier from
// a neighbour query satisfy the field without a query of its own.
func (e *Entity) InstanceOf(ctx context.Context) ([]*Entity, error) {
	v, _, err := resolve(ctx, e, "instance_of", &e.instanceOf,
		func(ctx context.Context) ([]*Entity, error) {
			refs, err := e.reg.catalog.InstanceOf(ctx, string(e.id))
			if err != nil {
				return nil, err
			}
			return e.reg.resolveAll(refs), nil
		},
		func(f *field[[]*Entity], v []*Entity) {
			if !f.set {
				f.value, f.set = []*Entity{}, true
			}
			for _, c := range v {
				f.value = appendUnique(f.value, c)
			}
		})
	return cloneSlice(v), err
}

// SubclassOf returns the classes the entity is a subclass of.
func (e *Entity) SubclassOf(ctx context.Context) ([]*Entity, error) {
	v, _, err := resolve(ctx, e, "subclass_of", &e.subclassOf,
		func(ctx context.Context) ([]*Entity, error) {
			refs, err := e.reg.catalog.SubclassOf(ctx, string(e.id))
			if err != nil {
				return nil, err
			}
			return e.reg.resolveAll(refs), nil
		},
		storeAlways[[]*Entity])
	return cloneSlice(v), err
}

func (e *Entity) addInstanceOf(class *Entity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.instanceOf.set {
		e.instanceOf = field[[]*Entity]{value: []*Entity{}, set: true}
	}
	e.instanceOf.value = appendUnique(e.instanceOf.value, class)
}

func (e *Entity) neighbours(ctx context.Context, dir wikidata.Direction, f *field[[]Neighbour]) ([]Neighbour, error) {
	v, _, err := resolve(ctx, e, "neighbours/"+dir.String(), f,
		func(ctx context.Context) ([]Neighbour, error) {
			rows, err := e.reg.catalog.Neighbours(ctx, string(e.id), dir)
			if err != nil {
				return nil, err
			}
			pairs, updates := ResolveNeighbours(e.reg, rows)
			e.reg.ApplyInstanceOf(updates)
			return pairs, nil
		},
		storeAlways[[]Neighbour])
	return cloneSlice(v), err
}

// ForwardNeighbours returns the (property, object) pairs of statements about the entity.
func (e *Entity) ForwardNeighbours(ctx context.Context) ([]Neighbour, error) {
	return e.neighbours(ctx, wikidata.Forward, &e.forward)
}

// BackwardNeighbours returns the (property, subject) pairs of statements pointing at the entity.
func (e *Entity) BackwardNeighbours(ctx context.Context) ([]Neighbour, error) {
	return e.neighbours(ctx, wikidata.Backward, &e.backward)
}

// OneHopNeighbours returns forward then backward neighbours. A pair present in both
// directions appears twice.
func (e *Entity) OneHopNeighbours(ctx context.Context) ([]Neighbour, error) {
	fwd, err := e.ForwardNeighbours(ctx)
	if err != nil {
		return nil, err
	}
	bwd, err := e.BackwardNeighbours(ctx)
	if err != nil {
		return nil, err
	}
	return append(fwd, bwd...), nil
}

func appendUnique(list []*Entity, e *Entity) []*Entity {
	for _, x := range list {
		if x == e {
			return list
		}
	}
	return append(list, e)
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
