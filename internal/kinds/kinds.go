// Package kinds provides the wallet, coin and NFT adapters for the generic
// tracker engine and assembles one tracker per kind.
package kinds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/tracker"
	"sei-tracker/internal/upstream"
)

// Tracker aliases for the three kinds.
type (
	WalletTracker = tracker.Tracker[domain.WalletSnapshot, domain.WalletTx, domain.WalletMetrics]
	CoinTracker   = tracker.Tracker[domain.CoinSnapshot, domain.FlowRecord, domain.CoinMetrics]
	NFTTracker    = tracker.Tracker[domain.NFTSnapshot, domain.NFTMovement, domain.NFTMetrics]
)

// Config holds per-kind history caps and backfill sizes.
type Config struct {
	WalletHistory     int
	FlowHistory       int
	MovementHistory   int
	WalletBackfill    int
	FlowBackfillHours int
	HolderLimit       int
	WhaleRefresh      time.Duration
}

// DefaultConfig returns the default per-kind configuration.
func DefaultConfig() Config {
	return Config{
		WalletHistory:     500,
		FlowHistory:       168,
		MovementHistory:   1000,
		WalletBackfill:    50,
		FlowBackfillHours: 24,
		HolderLimit:       100,
		WhaleRefresh:      15 * time.Minute,
	}
}

// Trackers groups the tracker of every kind.
type Trackers struct {
	Wallet *WalletTracker
	Coin   *CoinTracker
	NFT    *NFTTracker
}

// NewTrackers builds the three trackers over one snapshot source. opts is
// shared; HistoryCap is taken from cfg per kind.
func NewTrackers(src upstream.SnapshotSource, cfg Config, opts tracker.Options) *Trackers {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	walletOpts := opts
	walletOpts.HistoryCap = cfg.WalletHistory
	coinOpts := opts
	coinOpts.HistoryCap = cfg.FlowHistory
	nftOpts := opts
	nftOpts.HistoryCap = cfg.MovementHistory

	return &Trackers{
		Wallet: tracker.New[domain.WalletSnapshot, domain.WalletTx, domain.WalletMetrics](NewWallet(src, cfg.WalletBackfill, clock), walletOpts),
		Coin:   tracker.New[domain.CoinSnapshot, domain.FlowRecord, domain.CoinMetrics](NewCoin(src, cfg, clock), coinOpts),
		NFT:    tracker.New[domain.NFTSnapshot, domain.NFTMovement, domain.NFTMetrics](NewNFT(src, clock), nftOpts),
	}
}

// Stats returns registry counts for every kind in dispatch order.
func (t *Trackers) Stats() []tracker.Stats {
	return []tracker.Stats{t.Wallet.Stats(), t.Coin.Stats(), t.NFT.Stats()}
}

// ValidateKey validates key against the rules of kind.
func (t *Trackers) ValidateKey(kind domain.Kind, key string) error {
	switch kind {
	case domain.KindWallet:
		return t.Wallet.ValidateKey(key)
	case domain.KindCoin:
		return t.Coin.ValidateKey(key)
	case domain.KindNFT:
		return t.NFT.ValidateKey(key)
	}
	return fmt.Errorf("%w: unknown kind %q", tracker.ErrInvalidKeyFormat, kind)
}

// Subscribe subscribes connID to key on the tracker of kind and returns the
// kind's initial payload.
func (t *Trackers) Subscribe(ctx context.Context, kind domain.Kind, key, connID string) (any, error) {
	switch kind {
	case domain.KindWallet:
		return t.Wallet.Subscribe(ctx, key, connID)
	case domain.KindCoin:
		return t.Coin.Subscribe(ctx, key, connID)
	case domain.KindNFT:
		return t.NFT.Subscribe(ctx, key, connID)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", tracker.ErrInvalidKeyFormat, kind)
}

// Unsubscribe removes connID from key on the tracker of kind.
func (t *Trackers) Unsubscribe(kind domain.Kind, key, connID string) bool {
	switch kind {
	case domain.KindWallet:
		return t.Wallet.Unsubscribe(key, connID)
	case domain.KindCoin:
		return t.Coin.Unsubscribe(key, connID)
	case domain.KindNFT:
		return t.NFT.Unsubscribe(key, connID)
	}
	return false
}

// notFound maps upstream misses into the tracker taxonomy.
func notFound(kind domain.Kind, key string, err error) error {
	if errors.Is(err, upstream.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", tracker.ErrEntityNotFound, kind, key)
	}
	return err
}

func invalidKey(kind domain.Kind, key, reason string) error {
	return fmt.Errorf("%w: %s %q: %s", tracker.ErrInvalidKeyFormat, kind, key, reason)
}
