package storage

import (
	"context"

	"sei-tracker/internal/domain"
)

// EventJournal provides access to event_journal storage.
// The journal is write-side only; tracker state is never restored from it.
type EventJournal interface {
	// Insert adds a new entry. Returns ErrDuplicateKey if (kind, entity_key, tx_hash) exists.
	Insert(ctx context.Context, e *domain.JournalEntry) error

	// Recent retrieves up to q.Limit entries matching q, ordered by timestamp DESC.
	Recent(ctx context.Context, q JournalQuery) ([]*domain.JournalEntry, error)

	// CountByKind returns the number of entries per entity kind.
	CountByKind(ctx context.Context) (map[domain.Kind]int64, error)
}

// JournalQuery filters journal reads. Empty fields match everything.
type JournalQuery struct {
	Kind      domain.Kind
	EntityKey string
	Limit     int
}

// FlowStore provides access to flow_samples storage.
type FlowStore interface {
	// InsertBulk adds multiple samples. Fails entire batch on duplicate (symbol, timestamp_ms, tx_hash).
	InsertBulk(ctx context.Context, samples []*domain.FlowSample) error

	// GetByTimeRange retrieves samples for a symbol within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.FlowSample, error)
}

// DefaultJournalLimit is used when a JournalQuery has no positive limit.
const DefaultJournalLimit = 50
