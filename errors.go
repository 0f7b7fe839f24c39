package godex

import "errors"

var (
	// ErrNotFound is returned when a slug is not in the store.
	ErrNotFound = errors.New("godex: pokemon not found")

	// ErrNoEvolution is returned when an entity was stored without
	// evolution data.
	ErrNoEvolution = errors.New("godex: no evolution data")

	// ErrIndexEmpty is returned when the index page yields no entities.
	ErrIndexEmpty = errors.New("godex: index page has no entries")

	// ErrUnexpectedPage is returned when a URL routes to the wrong page kind.
	ErrUnexpectedPage = errors.New("godex: unexpected page kind")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("godex: invalid configuration")
)
