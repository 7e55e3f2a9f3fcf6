package storage

import "errors"

var (
	// ErrDuplicateKey is returned when an entry for the same (kind, key, tx)
	// or flow sample was already recorded. Callers replaying events treat it
	// as success.
	ErrDuplicateKey = errors.New("storage: already recorded")

	// ErrInvalidInput is returned for entries missing an id, key or kind.
	ErrInvalidInput = errors.New("storage: invalid input")
)
