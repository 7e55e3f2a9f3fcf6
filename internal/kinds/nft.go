package kinds

import (
	"context"
	"time"
	"unicode/utf8"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/metrics"
	"sei-tracker/internal/tracker"
	"sei-tracker/internal/upstream"
)

// MaxNFTKeySize bounds NFT token ids.
const MaxNFTKeySize = 100

// NFT adapts NFTs to the tracker engine.
type NFT struct {
	source upstream.SnapshotSource
	clock  func() time.Time
}

var _ tracker.Adapter[domain.NFTSnapshot, domain.NFTMovement, domain.NFTMetrics] = (*NFT)(nil)

// NewNFT creates an NFT adapter.
func NewNFT(src upstream.SnapshotSource, clock func() time.Time) *NFT {
	if clock == nil {
		clock = time.Now
	}
	return &NFT{source: src, clock: clock}
}

func (n *NFT) Kind() domain.Kind { return domain.KindNFT }

// ValidateKey accepts 1-100 characters, counted as runes.
func (n *NFT) ValidateKey(key string) error {
	if size := utf8.RuneCountInString(key); size == 0 || size > MaxNFTKeySize {
		return invalidKey(domain.KindNFT, key, "token id must be 1-100 characters")
	}
	return nil
}

func (n *NFT) FetchSnapshot(ctx context.Context, key string, _ *domain.NFTSnapshot) (domain.NFTSnapshot, error) {
	d, err := n.source.NFTInfo(ctx, key)
	if err != nil {
		return domain.NFTSnapshot{}, notFound(domain.KindNFT, key, err)
	}
	if d.Info.TokenID == "" {
		d.Info.TokenID = key
	}
	return domain.NFTSnapshot{
		NFTInfo:     d.Info,
		Market:      d.Market,
		LastUpdated: n.clock().UnixMilli(),
	}, nil
}

func (n *NFT) Backfill(ctx context.Context, key string, _ domain.NFTSnapshot) ([]domain.NFTMovement, error) {
	return n.source.NFTTransactions(ctx, key)
}

func (n *NFT) ComputeMetrics(history []domain.NFTMovement, snap domain.NFTSnapshot, now time.Time) domain.NFTMetrics {
	return metrics.NFT(history, snap, now)
}

func (n *NFT) ExtractKeys(ev domain.RawEvent) []string {
	if ev.Data.TokenID == "" || n.ValidateKey(ev.Data.TokenID) != nil {
		return nil
	}
	return []string{ev.Data.TokenID}
}

func (n *NFT) RecordFromEvent(_ string, ev domain.RawEvent, now time.Time) domain.NFTMovement {
	moveType := ev.Data.Type
	if moveType == "" {
		moveType = domain.EventTypeTransfer
	}
	return domain.NFTMovement{
		Type:        moveType,
		From:        ev.Data.From,
		To:          ev.Data.To,
		Price:       ev.Data.Price.InexactFloat64(),
		TxHash:      ev.Hash,
		BlockHeight: ev.BlockHeight,
		Timestamp:   ev.OccurredAt(now),
	}
}
