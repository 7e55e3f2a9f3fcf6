package tracker

import (
	"context"
	"time"

	"sei-tracker/internal/domain"
)

// Adapter is the capability set one entity kind supplies to the generic engine.
// S is the snapshot type, R the history record type and M the metrics type.
type Adapter[S, R, M any] interface {
	// Kind identifies the entity kind.
	Kind() domain.Kind

	// ValidateKey returns an error wrapping ErrInvalidKeyFormat for malformed keys.
	ValidateKey(key string) error

	// FetchSnapshot loads the current view of an entity. prev is the last good
	// snapshot, nil on creation, so adapters can carry forward throttled state.
	FetchSnapshot(ctx context.Context, key string, prev *S) (S, error)

	// Backfill seeds history once when an entity is created. Records are oldest first.
	Backfill(ctx context.Context, key string, snapshot S) ([]R, error)

	// ComputeMetrics derives metrics from history (oldest first) and snapshot.
	ComputeMetrics(history []R, snapshot S, now time.Time) M

	// ExtractKeys returns the keys of this kind touched by an event.
	ExtractKeys(ev domain.RawEvent) []string

	// RecordFromEvent derives the history record appended for key.
	RecordFromEvent(key string, ev domain.RawEvent, now time.Time) R
}

// Broadcaster delivers an event to a single subscriber connection.
// Implementations must not block on slow connections.
type Broadcaster interface {
	Deliver(connID, event string, payload any) error
}

// Gate reports whether the upstream feed is ready to serve subscriptions.
type Gate interface {
	Connected() bool
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(connID, event string, payload any) error

// Deliver calls f.
func (f BroadcasterFunc) Deliver(connID, event string, payload any) error {
	return f(connID, event, payload)
}
