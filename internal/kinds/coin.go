package kinds

import (
	"context"
	"time"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/metrics"
	"sei-tracker/internal/tracker"
	"sei-tracker/internal/upstream"
)

// WhaleSynthesizer generates a plausible whale set for sources without a holder index.
type WhaleSynthesizer interface {
	Whales(totalSupply float64) []domain.Whale
}

// Coin adapts memecoins to the tracker engine.
type Coin struct {
	source       upstream.SnapshotSource
	synth        WhaleSynthesizer
	flowHours    int
	holderLimit  int
	whaleRefresh time.Duration
	clock        func() time.Time
}

var _ tracker.Adapter[domain.CoinSnapshot, domain.FlowRecord, domain.CoinMetrics] = (*Coin)(nil)

// NewCoin creates a coin adapter. When src also implements WhaleSynthesizer it
// is used to fill the whale set whenever the holder feed comes back empty.
func NewCoin(src upstream.SnapshotSource, cfg Config, clock func() time.Time) *Coin {
	if clock == nil {
		clock = time.Now
	}
	synth, _ := src.(WhaleSynthesizer)
	return &Coin{
		source:       src,
		synth:        synth,
		flowHours:    cfg.FlowBackfillHours,
		holderLimit:  cfg.HolderLimit,
		whaleRefresh: cfg.WhaleRefresh,
		clock:        clock,
	}
}

func (c *Coin) Kind() domain.Kind { return domain.KindCoin }

// ValidateKey accepts 2-10 uppercase letters or digits.
func (c *Coin) ValidateKey(key string) error {
	if len(key) < 2 || len(key) > 10 {
		return invalidKey(domain.KindCoin, key, "symbol must be 2-10 characters")
	}
	for _, r := range key {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return invalidKey(domain.KindCoin, key, "symbol must be uppercase alphanumeric")
		}
	}
	return nil
}

// FetchSnapshot refreshes token info on every call. The whale set is carried
// over from prev until the refresh interval has elapsed.
func (c *Coin) FetchSnapshot(ctx context.Context, key string, prev *domain.CoinSnapshot) (domain.CoinSnapshot, error) {
	info, err := c.source.TokenInfo(ctx, key)
	if err != nil {
		return domain.CoinSnapshot{}, notFound(domain.KindCoin, key, err)
	}
	if info.Symbol == "" {
		info.Symbol = key
	}

	now := c.clock()
	snap := domain.CoinSnapshot{TokenInfo: info, LastUpdated: now.UnixMilli()}

	if prev != nil && prev.WhalesRefreshedAt > 0 &&
		now.UnixMilli()-prev.WhalesRefreshedAt < c.whaleRefresh.Milliseconds() {
		snap.Whales = prev.Whales
		snap.WhalesRefreshedAt = prev.WhalesRefreshedAt
		return snap, nil
	}

	holders, err := c.source.TokenHolders(ctx, key, c.holderLimit)
	if err != nil {
		return domain.CoinSnapshot{}, notFound(domain.KindCoin, key, err)
	}
	supply := info.TotalSupply.InexactFloat64()
	snap.Whales = metrics.SelectWhales(holders, supply)
	if len(holders) == 0 && c.synth != nil {
		snap.Whales = c.synth.Whales(supply)
	}
	snap.WhalesRefreshedAt = now.UnixMilli()
	return snap, nil
}

func (c *Coin) Backfill(ctx context.Context, key string, _ domain.CoinSnapshot) ([]domain.FlowRecord, error) {
	if c.flowHours <= 0 {
		return nil, nil
	}
	return c.source.TokenFlows(ctx, key, c.flowHours)
}

func (c *Coin) ComputeMetrics(history []domain.FlowRecord, snap domain.CoinSnapshot, now time.Time) domain.CoinMetrics {
	return metrics.Coin(history, snap, now)
}

func (c *Coin) ExtractKeys(ev domain.RawEvent) []string {
	if c.ValidateKey(ev.Data.Denom) != nil {
		return nil
	}
	return []string{ev.Data.Denom}
}

func (c *Coin) RecordFromEvent(_ string, ev domain.RawEvent, now time.Time) domain.FlowRecord {
	inflow, outflow := metrics.FlowFromTransfer(ev.Data.From, ev.Data.To, ev.Data.Amount.InexactFloat64())
	return domain.NewFlowRecord(ev.OccurredAt(now), inflow, outflow, ev.Hash)
}
