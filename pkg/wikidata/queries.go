package wikidata

import (
	"strings"

	"github.com/knakk/sparql"
)

// Query bank tags.
const (
	tagEntityByLabel      = "entity-by-label"
	tagInstanceOf         = "instance-of"
	tagSubclassOf         = "subclass-of"
	tagLabel              = "label"
	tagDescription        = "description"
	tagImage              = "image"
	tagForwardNeighbours  = "forward-neighbours"
	tagBackwardNeighbours = "backward-neighbours"
	tagOneHopNeighbours   = "one-hop-neighbours"
)

// Every template binds a fixed set of variables; parsing relies on it.
const queries = `
# tag: entity-by-label
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
SELECT ?item WHERE {
    ?item rdfs:label "{{.Label}}"@{{.Lang}} .
}

# tag: instance-of
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
SELECT DISTINCT ?instance_of WHERE {
    wd:{{.ID}} wdt:P31 ?instance_of
}

# tag: subclass-of
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
SELECT DISTINCT ?subclass_of WHERE {
    wd:{{.ID}} wdt:P279 ?subclass_of
}

# tag: label
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX wd: <http://www.wikidata.org/entity/>
SELECT DISTINCT ?label WHERE {
    wd:{{.ID}} rdfs:label ?label .
    FILTER (langMatches( lang(?label), "{{.Lang}}" ) )
}

# tag: description
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX schema: <http://schema.org/>
SELECT ?description WHERE {
    wd:{{.ID}} schema:description ?description .
    FILTER ( lang(?description) = "{{.Lang}}" )
}

# tag: image
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
SELECT ?image WHERE {
    wd:{{.ID}} wdt:P18 ?image
}

# tag: forward-neighbours
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
SELECT DISTINCT ?property ?object ?instance_of WHERE {
    wd:{{.ID}} ?property ?object .
    ?object wdt:P31 ?instance_of
}

# tag: backward-neighbours
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
SELECT DISTINCT ?property ?object ?instance_of WHERE {
    ?object ?property wd:{{.ID}} .
    ?object wdt:P31 ?instance_of
}

# tag: one-hop-neighbours
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
SELECT DISTINCT ?property ?object ?instance_of WHERE {
    {
        ?object ?property wd:{{.ID}} .
        ?object wdt:P31 ?instance_of
    } UNION {
        wd:{{.ID}} ?property ?object .
        ?object wdt:P31 ?instance_of
    }
}
`

var queryBank = sparql.LoadBank(strings.NewReader(queries))

type entityParams struct {
	ID   string
	Lang string
}

type labelParams struct {
	Label string
	Lang  string
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
)

// escapeLiteral makes s safe inside a double-quoted SPARQL string literal.
func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
