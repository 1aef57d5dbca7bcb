package entity

import "errors"

var (
	// ErrInvalidIdentifier is returned when an input does not normalize to a P or Q identifier.
	ErrInvalidIdentifier = errors.New("invalid entity identifier")
	// ErrNoMatch is returned when no entity carries the requested label in either case variant.
	ErrNoMatch = errors.New("no entity matches label")
)
