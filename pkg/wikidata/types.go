package wikidata

import "github.com/knakk/rdf"

// Row is one SPARQL solution keyed by variable name.
type Row map[string]rdf.Term

// Value returns the lexical value bound to name.
func (r Row) Value(name string) (string, bool) {
	t, ok := r[name]
	if !ok || t == nil {
		return "", false
	}
	return t.String(), true
}

// Direction selects which edges a neighbour query walks.
type Direction int

const (
	// Forward follows statements where the entity is the subject.
	Forward Direction = iota
	// Backward follows statements where the entity is the object.
	Backward
	// Both is the union of Forward and Backward.
	Both
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Both:
		return "both"
	}
	return "unknown"
}

func (d Direction) tag() string {
	switch d {
	case Backward:
		return tagBackwardNeighbours
	case Both:
		return tagOneHopNeighbours
	}
	return tagForwardNeighbours
}

// ParseDirection maps "forward", "backward" and "both" to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "forward":
		return Forward, true
	case "backward":
		return Backward, true
	case "both", "one-hop":
		return Both, true
	}
	return Forward, false
}

// NeighbourRow is one (property, object, instance_of) triple of a neighbour query.
// Property and Object are full IRIs. InstanceOf is empty when the row does not bind it.
type NeighbourRow struct {
	Property   string
	Object     string
	InstanceOf string
}

// SearchResult is one hit of the search API.
type SearchResult struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	ConceptURI  string `json:"concepturi,omitempty"`
}
