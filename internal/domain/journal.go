package domain

// JournalEntry records an upstream event that matched a tracked entity.
// Corresponds to event_journal table in PostgreSQL.
type JournalEntry struct {
	ID          string // UUID
	Kind        Kind
	EntityKey   string
	TxHash      string
	BlockHeight int64
	Timestamp   int64  // event time (Unix ms)
	Payload     []byte // raw event JSON
	CreatedAt   int64  // record creation timestamp (ms)
}

// FlowSample is an archived coin flow record.
// Corresponds to flow_samples table in ClickHouse.
type FlowSample struct {
	Symbol      string
	TimestampMs int64
	Inflow      float64
	Outflow     float64
	TxHash      string
}
