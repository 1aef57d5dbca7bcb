package wikidata

import (
	"errors"
	"fmt"
)

var (
	// ErrParse indicates the response body is not JSON or lacks the expected shape.
	ErrParse = errors.New("wikidata parse error")
	// ErrMissingBinding indicates a result row lacks a variable its query always binds.
	ErrMissingBinding = fmt.Errorf("%w: missing binding", ErrParse)
	// ErrInvalidQuery indicates the query template could not be rendered.
	ErrInvalidQuery = errors.New("wikidata invalid query")
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("wikidata entity not found")
	// ErrUpstreamStatus indicates the API answered with an error status.
	ErrUpstreamStatus = errors.New("wikidata upstream error status")
	// ErrSearchFailed indicates the search API did not report success.
	ErrSearchFailed = errors.New("wikidata search failed")
)
