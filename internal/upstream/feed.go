// Package upstream defines the chain data collaborators the tracker depends on
// and provides the JSON-RPC indexer client and the event relay client.
package upstream

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"sei-tracker/internal/domain"
)

// ErrNotFound is returned when the upstream has no record of an entity.
var ErrNotFound = errors.New("upstream: not found")

// SnapshotSource answers point-in-time queries about chain entities.
type SnapshotSource interface {
	// WalletBalance returns the native balance and token positions of an address.
	WalletBalance(ctx context.Context, address string) (WalletBalance, error)

	// WalletTransactions returns up to limit recent transactions, oldest first.
	WalletTransactions(ctx context.Context, address string, limit int) ([]domain.WalletTx, error)

	// TokenInfo returns token metadata and market data for a symbol.
	TokenInfo(ctx context.Context, symbol string) (domain.TokenInfo, error)

	// TokenHolders returns up to limit holders. An empty result is valid.
	TokenHolders(ctx context.Context, symbol string, limit int) ([]domain.Holder, error)

	// TokenFlows returns hourly flow buckets covering the last hours, oldest first.
	TokenFlows(ctx context.Context, symbol string, hours int) ([]domain.FlowRecord, error)

	// NFTInfo returns metadata and marketplace data for a token.
	NFTInfo(ctx context.Context, tokenID string) (NFTDetails, error)

	// NFTTransactions returns the mint and transfer chain of a token, oldest first.
	NFTTransactions(ctx context.Context, tokenID string) ([]domain.NFTMovement, error)
}

// EventSource streams transaction events emitted system-wide.
type EventSource interface {
	// Start connects the source. Events flow until Close.
	Start(ctx context.Context) error

	// Events returns the event stream. The channel is closed when the source stops.
	Events() <-chan domain.RawEvent

	// Connected reports whether the source is currently receiving.
	Connected() bool

	// Close stops the source.
	Close() error
}

// WalletBalance is the balance view of an address.
type WalletBalance struct {
	Balance  decimal.Decimal  `json:"balance"`
	Denom    string           `json:"denom"`
	Holdings []domain.Holding `json:"holdings"`
}

// NFTDetails combines token metadata and marketplace data.
type NFTDetails struct {
	Info   domain.NFTInfo   `json:"info"`
	Market domain.NFTMarket `json:"market"`
}
