package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sei-tracker/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// codeNotFound is the indexer's JSON-RPC error code for unknown entities.
const codeNotFound = -32004

// RPCClient implements SnapshotSource against a JSON-RPC 2.0 indexer endpoint.
type RPCClient struct {
	endpoint   string
	client     *http.Client
	maxRetries uint64
	retryDelay time.Duration
	maxDelay   time.Duration
	requestID  atomic.Uint64
}

// ClientOption configures RPCClient.
type ClientOption func(*RPCClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transport failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *RPCClient) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = uint64(n)
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RPCClient) {
		c.client = client
	}
}

// NewRPCClient creates a new indexer client.
func NewRPCClient(endpoint string, opts ...ClientOption) *RPCClient {
	c := &RPCClient{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call. Transport failures, 429 and 5xx responses
// are retried; RPC-level errors are returned as is.
func (c *RPCClient) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxInterval = c.maxDelay
	b.MaxElapsedTime = 0

	var raw json.RawMessage
	err = backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("rate limited (429)")
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			return backoff.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
		if rpcResp.Error != nil {
			if rpcResp.Error.Code == codeNotFound {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, rpcResp.Error.Message))
			}
			return backoff.Permanent(rpcResp.Error)
		}
		raw = rpcResp.Result
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	if result != nil && len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("%s: unmarshal result: %w", method, err)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", method, ErrNotFound)
}

// WalletBalance implements SnapshotSource.
func (c *RPCClient) WalletBalance(ctx context.Context, address string) (WalletBalance, error) {
	var out WalletBalance
	err := c.call(ctx, "wallet_getBalance", []any{address}, &out)
	return out, err
}

// WalletTransactions implements SnapshotSource.
func (c *RPCClient) WalletTransactions(ctx context.Context, address string, limit int) ([]domain.WalletTx, error) {
	var out []domain.WalletTx
	if err := c.call(ctx, "wallet_getTransactions", []any{address, map[string]int{"limit": limit}}, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// TokenInfo implements SnapshotSource.
func (c *RPCClient) TokenInfo(ctx context.Context, symbol string) (domain.TokenInfo, error) {
	var out domain.TokenInfo
	err := c.call(ctx, "token_getInfo", []any{symbol}, &out)
	return out, err
}

// TokenHolders implements SnapshotSource.
func (c *RPCClient) TokenHolders(ctx context.Context, symbol string, limit int) ([]domain.Holder, error) {
	var out []domain.Holder
	if err := c.call(ctx, "token_getHolders", []any{symbol, map[string]int{"limit": limit}}, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// TokenFlows implements SnapshotSource.
func (c *RPCClient) TokenFlows(ctx context.Context, symbol string, hours int) ([]domain.FlowRecord, error) {
	var out []domain.FlowRecord
	if err := c.call(ctx, "token_getFlows", []any{symbol, map[string]int{"hours": hours}}, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// NFTInfo implements SnapshotSource.
func (c *RPCClient) NFTInfo(ctx context.Context, tokenID string) (NFTDetails, error) {
	var out NFTDetails
	err := c.call(ctx, "nft_getInfo", []any{tokenID}, &out)
	return out, err
}

// NFTTransactions implements SnapshotSource.
func (c *RPCClient) NFTTransactions(ctx context.Context, tokenID string) ([]domain.NFTMovement, error) {
	var out []domain.NFTMovement
	if err := c.call(ctx, "nft_getTransactions", []any{tokenID}, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}
