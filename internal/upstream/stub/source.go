// Package stub provides in-memory upstream collaborators for tests.
package stub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/upstream"
)

// Source implements upstream.SnapshotSource from in-memory maps.
// Unknown wallets, tokens and NFTs return upstream.ErrNotFound.
type Source struct {
	mu           sync.RWMutex
	Balances     map[string]upstream.WalletBalance
	Transactions map[string][]domain.WalletTx
	Tokens       map[string]domain.TokenInfo
	Holders      map[string][]domain.Holder
	Flows        map[string][]domain.FlowRecord
	NFTs         map[string]upstream.NFTDetails
	NFTMovements map[string][]domain.NFTMovement
	holderCalls  atomic.Int32
	Err          error // returned by every call when set
}

// NewSource creates a new stub snapshot source.
func NewSource() *Source {
	return &Source{
		Balances:     make(map[string]upstream.WalletBalance),
		Transactions: make(map[string][]domain.WalletTx),
		Tokens:       make(map[string]domain.TokenInfo),
		Holders:      make(map[string][]domain.Holder),
		Flows:        make(map[string][]domain.FlowRecord),
		NFTs:         make(map[string]upstream.NFTDetails),
		NFTMovements: make(map[string][]domain.NFTMovement),
	}
}

func notFound(what, key string) error {
	return fmt.Errorf("%w: %s %s", upstream.ErrNotFound, what, key)
}

// WalletBalance implements upstream.SnapshotSource.
func (s *Source) WalletBalance(_ context.Context, address string) (upstream.WalletBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return upstream.WalletBalance{}, s.Err
	}
	b, ok := s.Balances[address]
	if !ok {
		return upstream.WalletBalance{}, notFound("wallet", address)
	}
	return b, nil
}

// WalletTransactions implements upstream.SnapshotSource. The newest limit transactions are returned.
func (s *Source) WalletTransactions(_ context.Context, address string, limit int) ([]domain.WalletTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	txs := s.Transactions[address]
	if limit > 0 && limit < len(txs) {
		txs = txs[len(txs)-limit:]
	}
	return append([]domain.WalletTx(nil), txs...), nil
}

// TokenInfo implements upstream.SnapshotSource.
func (s *Source) TokenInfo(_ context.Context, symbol string) (domain.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return domain.TokenInfo{}, s.Err
	}
	info, ok := s.Tokens[symbol]
	if !ok {
		return domain.TokenInfo{}, notFound("token", symbol)
	}
	return info, nil
}

// TokenHolders implements upstream.SnapshotSource.
func (s *Source) TokenHolders(_ context.Context, symbol string, limit int) ([]domain.Holder, error) {
	s.holderCalls.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	holders := s.Holders[symbol]
	if limit > 0 && limit < len(holders) {
		holders = holders[:limit]
	}
	return append([]domain.Holder(nil), holders...), nil
}

// HolderCalls returns how many times TokenHolders was called.
func (s *Source) HolderCalls() int {
	return int(s.holderCalls.Load())
}

// TokenFlows implements upstream.SnapshotSource.
func (s *Source) TokenFlows(_ context.Context, symbol string, hours int) ([]domain.FlowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	flows := s.Flows[symbol]
	if hours > 0 && hours < len(flows) {
		flows = flows[len(flows)-hours:]
	}
	return append([]domain.FlowRecord(nil), flows...), nil
}

// NFTInfo implements upstream.SnapshotSource.
func (s *Source) NFTInfo(_ context.Context, tokenID string) (upstream.NFTDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return upstream.NFTDetails{}, s.Err
	}
	d, ok := s.NFTs[tokenID]
	if !ok {
		return upstream.NFTDetails{}, notFound("nft", tokenID)
	}
	return d, nil
}

// NFTTransactions implements upstream.SnapshotSource.
func (s *Source) NFTTransactions(_ context.Context, tokenID string) ([]domain.NFTMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]domain.NFTMovement(nil), s.NFTMovements[tokenID]...), nil
}

// SetErr makes every subsequent call fail with err. Nil clears it.
func (s *Source) SetErr(err error) {
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

// AddWallet adds a wallet balance and its transactions to the stub store.
func (s *Source) AddWallet(address string, bal upstream.WalletBalance, txs ...domain.WalletTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Balances[address] = bal
	s.Transactions[address] = txs
}

// AddToken adds token info, holders and flow buckets to the stub store.
func (s *Source) AddToken(info domain.TokenInfo, holders []domain.Holder, flows []domain.FlowRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tokens[info.Symbol] = info
	s.Holders[info.Symbol] = holders
	s.Flows[info.Symbol] = flows
}

// AddNFT adds NFT details and movements to the stub store.
func (s *Source) AddNFT(details upstream.NFTDetails, moves ...domain.NFTMovement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFTs[details.Info.TokenID] = details
	s.NFTMovements[details.Info.TokenID] = moves
}
