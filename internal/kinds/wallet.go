package kinds

import (
	"context"
	"strings"
	"time"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/metrics"
	"sei-tracker/internal/tracker"
	"sei-tracker/internal/upstream"
)

// Wallet address format.
const (
	WalletPrefix  = "sei1"
	WalletKeySize = 46
)

// Wallet adapts wallets to the tracker engine.
type Wallet struct {
	source   upstream.SnapshotSource
	backfill int
	clock    func() time.Time
}

var _ tracker.Adapter[domain.WalletSnapshot, domain.WalletTx, domain.WalletMetrics] = (*Wallet)(nil)

// NewWallet creates a wallet adapter that backfills the last backfill transactions.
func NewWallet(src upstream.SnapshotSource, backfill int, clock func() time.Time) *Wallet {
	if clock == nil {
		clock = time.Now
	}
	return &Wallet{source: src, backfill: backfill, clock: clock}
}

func (w *Wallet) Kind() domain.Kind { return domain.KindWallet }

// ValidateKey accepts "sei1" followed by lowercase alphanumerics, 46 characters in total.
func (w *Wallet) ValidateKey(key string) error {
	if !strings.HasPrefix(key, WalletPrefix) {
		return invalidKey(domain.KindWallet, key, "missing "+WalletPrefix+" prefix")
	}
	if len(key) != WalletKeySize {
		return invalidKey(domain.KindWallet, key, "wrong length")
	}
	for _, r := range key[len(WalletPrefix):] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return invalidKey(domain.KindWallet, key, "invalid character")
		}
	}
	return nil
}

func (w *Wallet) FetchSnapshot(ctx context.Context, key string, _ *domain.WalletSnapshot) (domain.WalletSnapshot, error) {
	bal, err := w.source.WalletBalance(ctx, key)
	if err != nil {
		return domain.WalletSnapshot{}, notFound(domain.KindWallet, key, err)
	}
	holdings := make(map[string]domain.Holding, len(bal.Holdings))
	for _, h := range bal.Holdings {
		holdings[h.Denom] = h
	}
	return domain.WalletSnapshot{
		Address:       key,
		Balance:       bal.Balance,
		Denom:         bal.Denom,
		TokenHoldings: holdings,
		LastUpdated:   w.clock().UnixMilli(),
	}, nil
}

func (w *Wallet) Backfill(ctx context.Context, key string, _ domain.WalletSnapshot) ([]domain.WalletTx, error) {
	if w.backfill <= 0 {
		return nil, nil
	}
	return w.source.WalletTransactions(ctx, key, w.backfill)
}

func (w *Wallet) ComputeMetrics(history []domain.WalletTx, _ domain.WalletSnapshot, now time.Time) domain.WalletMetrics {
	return metrics.Wallet(history, now)
}

// ExtractKeys returns the valid sender and recipient addresses.
func (w *Wallet) ExtractKeys(ev domain.RawEvent) []string {
	var keys []string
	for _, addr := range ev.Addresses() {
		if w.ValidateKey(addr) == nil {
			keys = append(keys, addr)
		}
	}
	return keys
}

// RecordFromEvent keeps the event type when present, otherwise labels the
// transaction by direction relative to key.
func (w *Wallet) RecordFromEvent(key string, ev domain.RawEvent, now time.Time) domain.WalletTx {
	txType := ev.Data.Type
	if txType == "" {
		txType = domain.EventTypeReceive
		if ev.Data.From == key {
			txType = domain.EventTypeSend
		}
	}
	return domain.WalletTx{
		Hash:        ev.Hash,
		From:        ev.Data.From,
		To:          ev.Data.To,
		Amount:      ev.Data.Amount.InexactFloat64(),
		Denom:       ev.Data.Denom,
		Type:        txType,
		BlockHeight: ev.BlockHeight,
		Timestamp:   ev.OccurredAt(now),
	}
}
