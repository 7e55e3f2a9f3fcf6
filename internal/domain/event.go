package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawEvent is a transaction-like event emitted system-wide by the upstream feed.
type RawEvent struct {
	Hash        string    `json:"hash"`
	BlockHeight int64     `json:"blockHeight"`
	Timestamp   int64     `json:"timestamp,omitempty"` // Unix ms; zero means arrival time
	Data        EventData `json:"data"`
}

// EventData carries the kind-specific fields of a RawEvent.
// Amount and Price accept JSON strings or numbers.
type EventData struct {
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	Denom   string          `json:"denom,omitempty"`
	TokenID string          `json:"tokenId,omitempty"`
	Type    string          `json:"type,omitempty"`
	Price   decimal.Decimal `json:"price"`
}

// Event type constants
const (
	EventTypeTransfer = "transfer"
	EventTypeMint     = "mint"
	EventTypeSend     = "send"
	EventTypeReceive  = "receive"
)

// OccurredAt returns the event time in Unix ms, falling back to now.
func (e RawEvent) OccurredAt(now time.Time) int64 {
	if e.Timestamp > 0 {
		return e.Timestamp
	}
	return now.UnixMilli()
}

// Addresses returns the distinct non-empty from/to addresses of the event.
func (e RawEvent) Addresses() []string {
	var out []string
	if e.Data.From != "" {
		out = append(out, e.Data.From)
	}
	if e.Data.To != "" && e.Data.To != e.Data.From {
		out = append(out, e.Data.To)
	}
	return out
}

// Update is the payload pushed to subscribers after a matching event.
type Update[S, M any] struct {
	Key             string   `json:"key"`
	NewEvent        RawEvent `json:"newEvent"`
	UpdatedSnapshot S        `json:"updatedSnapshot"`
	UpdatedMetrics  M        `json:"updatedMetrics"`
	Timestamp       int64    `json:"timestamp"`
}

// Initial is the payload delivered on a successful subscribe.
type Initial[S, R, M any] struct {
	Key      string `json:"key"`
	Snapshot S      `json:"snapshot"`
	Metrics  M      `json:"metrics"`
	History  []R    `json:"history"`
}
