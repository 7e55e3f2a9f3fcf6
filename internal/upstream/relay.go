package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/observability"
)

// RelayConfig configures the event relay client.
type RelayConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// MaxReconnectAttempts bounds consecutive failed reconnects. Zero retries forever.
	MaxReconnectAttempts uint64
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the event channel capacity.
	Buffer int
}

// DefaultRelayConfig returns default relay configuration.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		ReconnectDelay:       1 * time.Second,
		MaxReconnectDelay:    30 * time.Second,
		MaxReconnectAttempts: 5,
		PingInterval:         30 * time.Second,
		ReadTimeout:          60 * time.Second,
		WriteTimeout:         10 * time.Second,
		Buffer:               1024,
	}
}

// RelayClient implements EventSource over a WebSocket relay that pushes one
// JSON-encoded RawEvent per text frame.
type RelayClient struct {
	endpoint string
	config   RelayConfig
	logger   zerolog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected atomic.Bool
	closed    atomic.Bool

	events chan domain.RawEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewRelayClient creates a relay client. Call Start to connect.
func NewRelayClient(endpoint string, config *RelayConfig, logger *zerolog.Logger) *RelayClient {
	cfg := DefaultRelayConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &RelayClient{
		endpoint: endpoint,
		config:   cfg,
		logger:   l.With().Str("component", "relay").Logger(),
		events:   make(chan domain.RawEvent, cfg.Buffer),
		done:     make(chan struct{}),
	}
}

// Start dials the relay and starts the read and ping loops.
func (c *RelayClient) Start(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New("relay client closed")
	}
	if err := c.connect(ctx); err != nil {
		return err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()
	return nil
}

// Events implements EventSource.
func (c *RelayClient) Events() <-chan domain.RawEvent {
	return c.events
}

// Connected implements EventSource.
func (c *RelayClient) Connected() bool {
	return c.connected.Load()
}

func (c *RelayClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("relay dial: %w", err)
	}

	c.connMu.Lock()
	if c.closed.Load() {
		c.connMu.Unlock()
		conn.Close()
		return backoff.Permanent(errors.New("relay client closed"))
	}
	c.conn = conn
	c.connMu.Unlock()
	c.setConnected(true)
	c.logger.Info().Str("endpoint", c.endpoint).Msg("relay connected")
	return nil
}

func (c *RelayClient) setConnected(v bool) {
	c.connected.Store(v)
	observability.SetUpstreamConnected(v)
}

// Close closes the relay connection and stops the loops.
func (c *RelayClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	c.setConnected(false)
	return nil
}

// readLoop decodes frames into events and reconnects on read errors. The
// events channel is closed when the loop exits.
func (c *RelayClient) readLoop() {
	defer c.wg.Done()
	defer close(c.events)

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.setConnected(false)
			c.logger.Warn().Err(err).Msg("relay read failed, reconnecting")
			if err := c.reconnect(); err != nil {
				if !c.closed.Load() {
					c.logger.Error().Err(err).Msg("relay reconnect gave up")
				}
				return
			}
			continue
		}

		var ev domain.RawEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			c.logger.Warn().Err(err).Msg("malformed relay frame")
			continue
		}
		if ev.Hash == "" {
			continue
		}

		// Block until the consumer catches up; events are never dropped here.
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// reconnect redials with exponential backoff until success, Close, or the attempt limit.
func (c *RelayClient) reconnect() error {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.ReconnectDelay
	b.MaxInterval = c.config.MaxReconnectDelay
	b.MaxElapsedTime = 0
	var policy backoff.BackOff = b
	if c.config.MaxReconnectAttempts > 0 {
		policy = backoff.WithMaxRetries(b, c.config.MaxReconnectAttempts-1)
	}

	// Wait once before the first attempt.
	select {
	case <-time.After(c.config.ReconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	return backoff.RetryNotify(func() error {
		observability.RecordRelayReconnect()
		dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
		defer dialCancel()
		return c.connect(dialCtx)
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		c.logger.Warn().Err(err).Dur("next", next).Msg("relay reconnect failed")
	})
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *RelayClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A failed ping surfaces as a read error.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
