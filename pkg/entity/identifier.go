package entity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/knakk/rdf"
)

// EntityNamespace is the IRI prefix of Wikidata entities.
const EntityNamespace = "http://www.wikidata.org/entity/"

var identifierRe = regexp.MustCompile(`^[PQ][0-9]+$`)

// Identifier is a normalized Wikidata id such as Q90 or P31.
type Identifier string

// ParseIdentifier normalizes an id or a URI. A URI must be a well-formed IRI and yields its
// last path segment as is; anything else is uppercased. The result must look like Q123 or P123.
func ParseIdentifier(s string) (Identifier, error) {
	var id string
	if strings.Contains(s, "http") {
		if _, err := rdf.NewIRI(s); err != nil {
			return "", fmt.Errorf("%w: %q is not an IRI: %v", ErrInvalidIdentifier, s, err)
		}
		id = s[strings.LastIndex(s, "/")+1:]
	} else {
		id = strings.ToUpper(s)
	}
	if !identifierRe.MatchString(id) {
		return "", fmt.Errorf("%w: can not extract an id from %q", ErrInvalidIdentifier, s)
	}
	return Identifier(id), nil
}

// IsProperty reports whether the identifier names a property.
func (id Identifier) IsProperty() bool {
	return strings.HasPrefix(string(id), "P")
}

// IRI returns the concept IRI of the identifier.
func (id Identifier) IRI() rdf.IRI {
	iri, err := rdf.NewIRI(EntityNamespace + string(id))
	if err != nil {
		// Unreachable for a parsed identifier.
		panic(err)
	}
	return iri
}

func (id Identifier) String() string {
	return string(id)
}
