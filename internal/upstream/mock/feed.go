// Package mock provides a self-contained synthetic chain: snapshot queries
// answered from seeded random data and a periodic stream of transfer events.
package mock

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/observability"
	"sei-tracker/internal/upstream"
)

// Default demo entities emitted by the event stream.
var (
	DefaultCoins   = []string{"PEPE", "DOGE", "SHIB", "FLOKI", "BONK"}
	DefaultNFTs    = []string{"nft001", "nft002", "nft003", "nft004", "nft005", "nft006", "nft007", "nft008", "nft009", "nft010"}
	DefaultWallets = []string{
		"sei1wallet1abcdefghijklmnopqrstuvwxyz123456789",
		"sei1wallet2abcdefghijklmnopqrstuvwxyz123456789",
		"sei1wallet3abcdefghijklmnopqrstuvwxyz123456789",
	}
)

// Config configures the mock feed.
type Config struct {
	// Seed makes generated data reproducible.
	Seed uint64
	// EventInterval is the delay between generated events. Zero disables the stream.
	EventInterval time.Duration
	// Coins, NFTs and Wallets are the demo entities events refer to.
	Coins   []string
	NFTs    []string
	Wallets []string
	// Buffer is the event channel capacity.
	Buffer int
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default mock configuration.
func DefaultConfig() Config {
	return Config{
		Seed:          42,
		EventInterval: 2 * time.Second,
		Coins:         DefaultCoins,
		NFTs:          DefaultNFTs,
		Wallets:       DefaultWallets,
		Buffer:        256,
	}
}

// Feed implements upstream.SnapshotSource and upstream.EventSource.
type Feed struct {
	config Config
	logger zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand

	height    atomic.Int64
	connected atomic.Bool
	started   atomic.Bool
	closed    atomic.Bool

	// sendMu is held for reading by Emit while it may send on events, and
	// for writing by Close while it closes events.
	sendMu sync.RWMutex
	events chan domain.RawEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

var (
	_ upstream.SnapshotSource = (*Feed)(nil)
	_ upstream.EventSource    = (*Feed)(nil)
)

// New creates a mock feed.
func New(cfg Config, logger *zerolog.Logger) *Feed {
	def := DefaultConfig()
	if len(cfg.Coins) == 0 {
		cfg.Coins = def.Coins
	}
	if len(cfg.NFTs) == 0 {
		cfg.NFTs = def.NFTs
	}
	if len(cfg.Wallets) == 0 {
		cfg.Wallets = def.Wallets
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = def.Buffer
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}

	f := &Feed{
		config: cfg,
		logger: l.With().Str("component", "mock_feed").Logger(),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5e1)),
		events: make(chan domain.RawEvent, cfg.Buffer),
		done:   make(chan struct{}),
	}
	f.height.Store(1_000_000)
	return f
}

// Start marks the feed connected and starts the event generator.
func (f *Feed) Start(ctx context.Context) error {
	if f.closed.Load() {
		return errors.New("mock feed closed")
	}
	if f.started.Swap(true) {
		return nil
	}
	f.connected.Store(true)
	observability.SetUpstreamConnected(true)
	f.logger.Info().Dur("interval", f.config.EventInterval).Msg("mock feed connected")

	if f.config.EventInterval > 0 {
		f.wg.Add(1)
		go f.generate(ctx)
	}
	return nil
}

// Events implements upstream.EventSource.
func (f *Feed) Events() <-chan domain.RawEvent {
	return f.events
}

// Connected implements upstream.EventSource.
func (f *Feed) Connected() bool {
	return f.connected.Load()
}

// Close stops the generator and closes the event stream.
func (f *Feed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	close(f.done)
	f.wg.Wait()
	f.connected.Store(false)
	observability.SetUpstreamConnected(false)

	f.sendMu.Lock()
	close(f.events)
	f.sendMu.Unlock()
	return nil
}

// Emit pushes an event onto the stream, blocking until it is accepted or the feed closes.
func (f *Feed) Emit(ev domain.RawEvent) bool {
	f.sendMu.RLock()
	defer f.sendMu.RUnlock()

	if f.closed.Load() {
		return false
	}
	select {
	case f.events <- ev:
		return true
	case <-f.done:
		return false
	}
}

func (f *Feed) generate(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.EventInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ev := f.NextEvent()
			select {
			case f.events <- ev:
			case <-f.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// NextEvent generates one random transfer touching a demo wallet, coin or NFT.
func (f *Feed) NextEvent() domain.RawEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.config.Clock()
	ev := domain.RawEvent{
		Hash:        f.hashLocked(),
		BlockHeight: f.height.Add(1),
		Timestamp:   now.UnixMilli(),
	}

	wallet := f.config.Wallets[f.rng.IntN(len(f.config.Wallets))]
	counterparty := f.addressLocked()

	switch f.rng.IntN(3) {
	case 0:
		ev.Data = domain.EventData{
			From:   wallet,
			To:     counterparty,
			Amount: f.decimalLocked(1, 500),
			Denom:  "usei",
			Type:   domain.EventTypeTransfer,
		}
		if f.rng.IntN(2) == 0 {
			ev.Data.From, ev.Data.To = counterparty, wallet
		}
	case 1:
		ev.Data = domain.EventData{
			From:   counterparty,
			To:     wallet,
			Amount: f.decimalLocked(100, 50_000),
			Denom:  f.config.Coins[f.rng.IntN(len(f.config.Coins))],
			Type:   domain.EventTypeTransfer,
		}
		switch f.rng.IntN(3) {
		case 0:
			ev.Data.From = ""
		case 1:
			ev.Data.To = ""
		}
	default:
		ev.Data = domain.EventData{
			From:    counterparty,
			To:      wallet,
			TokenID: f.config.NFTs[f.rng.IntN(len(f.config.NFTs))],
			Type:    domain.EventTypeTransfer,
			Price:   f.decimalLocked(50, 1050),
		}
	}
	return ev
}

// WalletBalance implements upstream.SnapshotSource.
func (f *Feed) WalletBalance(ctx context.Context, address string) (upstream.WalletBalance, error) {
	if err := ctx.Err(); err != nil {
		return upstream.WalletBalance{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	bal := upstream.WalletBalance{
		Balance: f.decimalLocked(0, 1000),
		Denom:   "usei",
	}
	for _, sym := range f.config.Coins {
		if f.rng.IntN(2) == 0 {
			bal.Holdings = append(bal.Holdings, domain.Holding{Amount: f.decimalLocked(1, 100_000), Denom: sym})
		}
	}
	return bal, nil
}

// WalletTransactions implements upstream.SnapshotSource.
func (f *Feed) WalletTransactions(ctx context.Context, address string, limit int) ([]domain.WalletTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.config.Clock().UnixMilli()
	day := (24 * time.Hour).Milliseconds()
	txs := make([]domain.WalletTx, 0, limit)
	for i := 0; i < limit; i++ {
		tx := domain.WalletTx{
			Hash:        f.hashLocked(),
			From:        address,
			To:          f.addressLocked(),
			Amount:      f.floatLocked(0, 100),
			Denom:       "usei",
			Type:        domain.EventTypeSend,
			BlockHeight: f.height.Load() - int64(f.rng.IntN(10_000)),
			Timestamp:   now - f.rng.Int64N(day),
		}
		if f.rng.IntN(2) == 0 {
			tx.From, tx.To = tx.To, address
			tx.Type = domain.EventTypeReceive
		}
		txs = append(txs, tx)
	}
	slices.SortFunc(txs, func(a, b domain.WalletTx) int { return cmp.Compare(a.Timestamp, b.Timestamp) })
	return txs, nil
}

// TokenInfo implements upstream.SnapshotSource.
func (f *Feed) TokenInfo(ctx context.Context, symbol string) (domain.TokenInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.TokenInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	supply := f.decimalLocked(1e8, 1e10).Round(0)
	return domain.TokenInfo{
		Symbol:            symbol,
		Name:              symbol + " Token",
		Denom:             "factory/" + strings.ToLower(symbol),
		Decimals:          6,
		Price:             f.decimalLocked(0.001, 0.011),
		MarketCap:         f.decimalLocked(100_000, 1_100_000),
		Volume24h:         f.decimalLocked(50_000, 550_000),
		PriceChange24h:    f.floatLocked(-20, 20),
		PriceChange7d:     f.floatLocked(-50, 50),
		TotalSupply:       supply,
		CirculatingSupply: supply.Mul(decimal.NewFromFloat(0.8)).Round(0),
	}, nil
}

// TokenHolders implements upstream.SnapshotSource. The mock has no holder
// index, so the whale set is synthesized by the coin adapter.
func (f *Feed) TokenHolders(ctx context.Context, _ string, _ int) ([]domain.Holder, error) {
	return nil, ctx.Err()
}

// TokenFlows implements upstream.SnapshotSource.
func (f *Feed) TokenFlows(ctx context.Context, _ string, hours int) ([]domain.FlowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.config.Clock().Truncate(time.Hour)
	flows := make([]domain.FlowRecord, 0, hours)
	for i := hours - 1; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * time.Hour).UnixMilli()
		flows = append(flows, domain.NewFlowRecord(ts, f.floatLocked(1000, 11_000), f.floatLocked(500, 8500), ""))
	}
	return flows, nil
}

// NFTInfo implements upstream.SnapshotSource.
func (f *Feed) NFTInfo(ctx context.Context, tokenID string) (upstream.NFTDetails, error) {
	if err := ctx.Err(); err != nil {
		return upstream.NFTDetails{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.config.Clock()
	year := (365 * 24 * time.Hour).Milliseconds()
	floor := f.floatLocked(50, 550)
	return upstream.NFTDetails{
		Info: domain.NFTInfo{
			TokenID:    tokenID,
			Name:       "NFT #" + tokenID,
			Collection: "Sei Collection",
			Image:      fmt.Sprintf("https://nft.example/%s.png", tokenID),
			Attributes: []domain.NFTAttribute{
				{Trait: "Rarity", Value: "Common"},
				{Trait: "Type", Value: "Mock"},
			},
			Owner:    f.addressLocked(),
			MintDate: now.UnixMilli() - f.rng.Int64N(year),
		},
		Market: domain.NFTMarket{
			CurrentPrice:  f.floatLocked(100, 1100),
			FloorPrice:    floor,
			LastSalePrice: floor + f.floatLocked(0, 500),
			Offers:        f.rng.IntN(20),
			Views:         f.rng.IntN(5000),
		},
	}, nil
}

// NFTTransactions implements upstream.SnapshotSource: a mint within the
// last year followed by 2-9 transfers at most 30 days apart.
func (f *Feed) NFTTransactions(ctx context.Context, _ string) ([]domain.NFTMovement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.config.Clock().UnixMilli()
	year := (365 * 24 * time.Hour).Milliseconds()
	month := (30 * 24 * time.Hour).Milliseconds()

	ts := now - f.rng.Int64N(year)
	owner := f.addressLocked()
	moves := []domain.NFTMovement{{
		Type:        domain.EventTypeMint,
		To:          owner,
		TxHash:      f.hashLocked(),
		BlockHeight: f.height.Load() - 50_000,
		Timestamp:   ts,
	}}

	n := 2 + f.rng.IntN(8)
	for i := 0; i < n; i++ {
		ts += 1 + f.rng.Int64N(month)
		if ts > now {
			break
		}
		next := f.addressLocked()
		moves = append(moves, domain.NFTMovement{
			Type:        domain.EventTypeTransfer,
			From:        owner,
			To:          next,
			Price:       f.floatLocked(50, 1050),
			TxHash:      f.hashLocked(),
			BlockHeight: f.height.Load() - 50_000 + int64(i+1)*100,
			Timestamp:   ts,
		})
		owner = next
	}
	return moves, nil
}

// Whales synthesizes 3-7 whales holding 1-6% of supply each.
func (f *Feed) Whales(totalSupply float64) []domain.Whale {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.config.Clock().UnixMilli()
	n := 3 + f.rng.IntN(5)
	whales := make([]domain.Whale, 0, n)
	for i := 0; i < n; i++ {
		pct := f.floatLocked(1, 6)
		whales = append(whales, domain.Whale{
			Address:      f.addressLocked(),
			Balance:      totalSupply * pct / 100,
			Percentage:   pct,
			LastActivity: now - f.rng.Int64N((24 * time.Hour).Milliseconds()),
		})
	}
	return whales
}

func (f *Feed) hashLocked() string {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = byte(f.rng.IntN(256))
	}
	return base58.Encode(buf)
}

// addressLocked returns a synthetic bech32-shaped address: "sei1" plus 42
// lowercase alphanumerics.
func (f *Feed) addressLocked() string {
	var sb strings.Builder
	sb.WriteString("sei1")
	for sb.Len() < 46 {
		sb.WriteString(strings.ToLower(f.hashLocked()))
	}
	return sb.String()[:46]
}

func (f *Feed) floatLocked(lo, hi float64) float64 {
	return lo + f.rng.Float64()*(hi-lo)
}

func (f *Feed) decimalLocked(lo, hi float64) decimal.Decimal {
	return decimal.NewFromFloat(f.floatLocked(lo, hi)).Round(6)
}
