package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/observability"
	"sei-tracker/internal/storage"
)

// EventJournal implements storage.EventJournal using PostgreSQL.
type EventJournal struct {
	pool *Pool
}

// NewEventJournal creates a new EventJournal.
func NewEventJournal(pool *Pool) *EventJournal {
	return &EventJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.EventJournal = (*EventJournal)(nil)

// Insert adds a new entry. Returns ErrDuplicateKey if (kind, entity_key, tx_hash) or id exists.
func (j *EventJournal) Insert(ctx context.Context, e *domain.JournalEntry) (err error) {
	if e == nil || e.ID == "" || e.EntityKey == "" || !e.Kind.IsValid() {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "journal_insert", time.Since(start).Seconds(), err) }()

	payload := e.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	createdAt := e.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO event_journal (
			id, kind, entity_key, tx_hash, block_height, timestamp, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = j.pool.Exec(ctx, query,
		e.ID,
		string(e.Kind),
		e.EntityKey,
		e.TxHash,
		e.BlockHeight,
		e.Timestamp,
		payload,
		createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent retrieves up to q.Limit entries matching q, ordered by timestamp DESC.
func (j *EventJournal) Recent(ctx context.Context, q storage.JournalQuery) (_ []*domain.JournalEntry, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "journal_recent", time.Since(start).Seconds(), err) }()

	limit := q.Limit
	if limit <= 0 {
		limit = storage.DefaultJournalLimit
	}

	query := `
		SELECT id::text, kind, entity_key, tx_hash, block_height, timestamp, payload, created_at
		FROM event_journal
		WHERE ($1 = '' OR kind = $1) AND ($2 = '' OR entity_key = $2)
		ORDER BY timestamp DESC, block_height DESC
		LIMIT $3
	`

	rows, err := j.pool.Query(ctx, query, string(q.Kind), q.EntityKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent journal entries: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

// CountByKind returns the number of entries per entity kind.
func (j *EventJournal) CountByKind(ctx context.Context) (_ map[domain.Kind]int64, err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "journal_count", time.Since(start).Seconds(), err) }()

	rows, err := j.pool.Query(ctx, `SELECT kind, count(*) FROM event_journal GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count journal entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Kind]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan journal count: %w", err)
		}
		counts[domain.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal counts: %w", err)
	}
	return counts, nil
}

// scanJournalEntries scans multiple rows into a slice of JournalEntry.
func scanJournalEntries(rows pgx.Rows) ([]*domain.JournalEntry, error) {
	var entries []*domain.JournalEntry

	for rows.Next() {
		var e domain.JournalEntry
		var kind string

		err := rows.Scan(
			&e.ID,
			&kind,
			&e.EntityKey,
			&e.TxHash,
			&e.BlockHeight,
			&e.Timestamp,
			&e.Payload,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Kind = domain.Kind(kind)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}

	return entries, nil
}
