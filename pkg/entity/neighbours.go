package entity

import "wikientity/pkg/wikidata"

// Neighbour is one edge of a one-hop query: the property and the entity at its other end.
type Neighbour struct {
	Property *Entity
	Object   *Entity
}

// InstanceOfUpdate records that Subject was seen as an instance of Class.
type InstanceOfUpdate struct {
	Subject *Entity
	Class   *Entity
}

// ResolveNeighbours registers the entities named by rows and returns the deduplicated
// (property, object) pairs in first-seen order together with the classes learned for the objects.
// Rows whose property or object is not an entity (literals, blank nodes) are skipped.
// It changes no entity field; apply the updates with Registry.ApplyInstanceOf.
func ResolveNeighbours(reg *Registry, rows []wikidata.NeighbourRow) ([]Neighbour, []InstanceOfUpdate) {
	pairs := make([]Neighbour, 0, len(rows))
	seen := make(map[Neighbour]bool, len(rows))
	var updates []InstanceOfUpdate

	for _, row := range rows {
		prop, err := reg.Get(row.Property)
		if err != nil {
			continue
		}
		obj, err := reg.Get(row.Object)
		if err != nil {
			continue
		}

		if row.InstanceOf != "" {
			if class, err := reg.Get(row.InstanceOf); err == nil {
				updates = append(updates, InstanceOfUpdate{Subject: obj, Class: class})
			}
		}

		n := Neighbour{Property: prop, Object: obj}
		if seen[n] {
			continue
		}
		seen[n] = true
		pairs = append(pairs, n)
	}
	return pairs, updates
}
