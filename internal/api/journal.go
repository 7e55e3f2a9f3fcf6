package api

import (
	"encoding/json"

	"sei-tracker/internal/domain"
)

// journalEvent is the wire form of a journal entry.
type journalEvent struct {
	ID          string          `json:"id"`
	Kind        domain.Kind     `json:"kind"`
	Key         string          `json:"key"`
	TxHash      string          `json:"txHash"`
	BlockHeight int64           `json:"blockHeight"`
	Timestamp   int64           `json:"timestamp"`
	Event       json.RawMessage `json:"event,omitempty"`
}

func newJournalEvent(e *domain.JournalEntry) journalEvent {
	ev := journalEvent{
		ID:          e.ID,
		Kind:        e.Kind,
		Key:         e.EntityKey,
		TxHash:      e.TxHash,
		BlockHeight: e.BlockHeight,
		Timestamp:   e.Timestamp,
	}
	if json.Valid(e.Payload) {
		ev.Event = e.Payload
	}
	return ev
}
