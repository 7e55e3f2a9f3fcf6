package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/storage"
)

// FlowStore is an in-memory implementation of storage.FlowStore.
type FlowStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FlowSample
}

// NewFlowStore creates a new in-memory flow store.
func NewFlowStore() *FlowStore {
	return &FlowStore{
		data: make(map[string]*domain.FlowSample),
	}
}

func flowKey(symbol string, timestampMs int64, txHash string) string {
	return fmt.Sprintf("%s|%d|%s", symbol, timestampMs, txHash)
}

// InsertBulk adds multiple samples atomically. Fails entire batch on any duplicate.
func (s *FlowStore) InsertBulk(_ context.Context, samples []*domain.FlowSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(samples))
	for _, fs := range samples {
		if fs == nil || fs.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := flowKey(fs.Symbol, fs.TimestampMs, fs.TxHash)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, fs := range samples {
		sample := *fs
		s.data[flowKey(fs.Symbol, fs.TimestampMs, fs.TxHash)] = &sample
	}
	return nil
}

// GetByTimeRange retrieves samples for a symbol within [start, end] (inclusive).
func (s *FlowStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.FlowSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FlowSample
	for _, fs := range s.data {
		if fs.Symbol == symbol && fs.TimestampMs >= start && fs.TimestampMs <= end {
			sample := *fs
			result = append(result, &sample)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].TxHash < result[j].TxHash
	})
	return result, nil
}

var _ storage.FlowStore = (*FlowStore)(nil)
