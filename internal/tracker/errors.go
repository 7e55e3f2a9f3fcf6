package tracker

import "errors"

// Tracker errors
var (
	// ErrInvalidKeyFormat is returned when a key fails kind-specific validation.
	ErrInvalidKeyFormat = errors.New("invalid key format")

	// ErrEntityNotFound is returned when a queried entity is not tracked.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrUpstreamUnavailable is returned when the upstream feed cannot serve a fetch
	// or is not connected.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInternalCompute is returned when metric computation fails on malformed history.
	ErrInternalCompute = errors.New("internal compute error")

	// ErrSubscriptionWithdrawn is returned when every subscriber left before
	// the entity finished initializing.
	ErrSubscriptionWithdrawn = errors.New("subscription withdrawn before initialization completed")
)
