package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/storage"
)

// EventJournal is an in-memory implementation of storage.EventJournal.
type EventJournal struct {
	mu      sync.RWMutex
	data    map[string]*domain.JournalEntry // keyed by composite key
	ids     map[string]struct{}
	maxSize int
	order   []string
}

// NewEventJournal creates a new in-memory journal. maxSize bounds retained
// entries, evicting the oldest insert first; zero means unbounded.
func NewEventJournal(maxSize int) *EventJournal {
	return &EventJournal{
		data:    make(map[string]*domain.JournalEntry),
		ids:     make(map[string]struct{}),
		maxSize: maxSize,
	}
}

func journalKey(kind domain.Kind, entityKey, txHash string) string {
	return fmt.Sprintf("%s|%s|%s", kind, entityKey, txHash)
}

// Insert adds a new entry. Returns ErrDuplicateKey if exists.
func (j *EventJournal) Insert(_ context.Context, e *domain.JournalEntry) error {
	if e == nil || e.ID == "" || e.EntityKey == "" || !e.Kind.IsValid() {
		return storage.ErrInvalidInput
	}

	key := journalKey(e.Kind, e.EntityKey, e.TxHash)

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := j.ids[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	entry := *e
	entry.Payload = append([]byte(nil), e.Payload...)
	j.data[key] = &entry
	j.ids[e.ID] = struct{}{}
	j.order = append(j.order, key)

	if j.maxSize > 0 && len(j.order) > j.maxSize {
		oldest := j.order[0]
		j.order = j.order[1:]
		if old, ok := j.data[oldest]; ok {
			delete(j.ids, old.ID)
			delete(j.data, oldest)
		}
	}
	return nil
}

// Recent retrieves matching entries ordered by timestamp DESC.
func (j *EventJournal) Recent(_ context.Context, q storage.JournalQuery) ([]*domain.JournalEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = storage.DefaultJournalLimit
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.JournalEntry
	for _, e := range j.data {
		if q.Kind != "" && e.Kind != q.Kind {
			continue
		}
		if q.EntityKey != "" && e.EntityKey != q.EntityKey {
			continue
		}
		entry := *e
		result = append(result, &entry)
	}

	sort.Slice(result, func(a, b int) bool {
		if result[a].Timestamp != result[b].Timestamp {
			return result[a].Timestamp > result[b].Timestamp
		}
		return result[a].BlockHeight > result[b].BlockHeight
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountByKind returns the number of entries per kind.
func (j *EventJournal) CountByKind(_ context.Context) (map[domain.Kind]int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	counts := make(map[domain.Kind]int64)
	for _, e := range j.data {
		counts[e.Kind]++
	}
	return counts, nil
}

var _ storage.EventJournal = (*EventJournal)(nil)
