package clickhouse

import (
	"context"
	"fmt"
	"time"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/observability"
	"sei-tracker/internal/storage"
)

// FlowStore implements storage.FlowStore using ClickHouse.
type FlowStore struct {
	conn *Conn
}

// NewFlowStore creates a new FlowStore.
func NewFlowStore(conn *Conn) *FlowStore {
	return &FlowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FlowStore = (*FlowStore)(nil)

type flowKey struct {
	symbol      string
	timestampMs int64
	txHash      string
}

// InsertBulk adds multiple samples. Fails entire batch on duplicate (symbol, timestamp_ms, tx_hash).
func (s *FlowStore) InsertBulk(ctx context.Context, samples []*domain.FlowSample) (err error) {
	if len(samples) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "flow_insert", time.Since(start).Seconds(), err) }()

	// Check for intra-batch duplicates
	seen := make(map[flowKey]struct{}, len(samples))
	for _, fs := range samples {
		if fs == nil || fs.Symbol == "" || fs.TimestampMs < 0 {
			return storage.ErrInvalidInput
		}
		k := flowKey{fs.Symbol, fs.TimestampMs, fs.TxHash}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, so check existing rows first
	for _, fs := range samples {
		exists, err := s.exists(ctx, fs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO flow_samples (
			symbol, timestamp_ms, tx_hash, inflow, outflow
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, fs := range samples {
		err = batch.Append(fs.Symbol, uint64(fs.TimestampMs), fs.TxHash, fs.Inflow, fs.Outflow)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves samples for a symbol within [start, end] (inclusive).
func (s *FlowStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) (_ []*domain.FlowSample, err error) {
	began := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "flow_range", time.Since(began).Seconds(), err) }()

	if start < 0 {
		start = 0
	}
	if end < start {
		return nil, nil
	}

	query := `
		SELECT symbol, timestamp_ms, tx_hash, inflow, outflow
		FROM flow_samples
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, tx_hash ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanFlowSamples(rows)
}

func (s *FlowStore) exists(ctx context.Context, fs *domain.FlowSample) (bool, error) {
	query := `
		SELECT count(*) FROM flow_samples
		WHERE symbol = ? AND timestamp_ms = ? AND tx_hash = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, fs.Symbol, uint64(fs.TimestampMs), fs.TxHash).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanFlowSamples(rows chRows) ([]*domain.FlowSample, error) {
	var samples []*domain.FlowSample

	for rows.Next() {
		var fs domain.FlowSample
		var timestampMs uint64

		if err := rows.Scan(&fs.Symbol, &timestampMs, &fs.TxHash, &fs.Inflow, &fs.Outflow); err != nil {
			return nil, fmt.Errorf("scan flow sample: %w", err)
		}
		fs.TimestampMs = int64(timestampMs)
		samples = append(samples, &fs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow samples: %w", err)
	}
	return samples, nil
}
