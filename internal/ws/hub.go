// Package ws serves the subscriber-facing WebSocket channel.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sei-tracker/internal/observability"
	"sei-tracker/internal/tracker"
)

// DefaultSendBuffer is the per-client outbound queue length.
const DefaultSendBuffer = 256

// HubOptions contains configuration for creating a Hub.
type HubOptions struct {
	SendBuffer int
	Clock      func() time.Time
	Logger     *zerolog.Logger
}

// Hub is the registry of live connections. It implements tracker.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	sendBuffer int
	clock      func() time.Time
	logger     zerolog.Logger
}

var _ tracker.Broadcaster = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub(opts HubOptions) *Hub {
	buffer := opts.SendBuffer
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Hub{
		clients:    make(map[string]*Client),
		sendBuffer: buffer,
		clock:      clock,
		logger:     logger.With().Str("component", "ws").Logger(),
	}
}

// Deliver queues one message for connID without blocking.
// A full buffer drops the message and returns ErrClientBufferFull.
func (h *Hub) Deliver(connID, event string, payload any) (err error) {
	defer func() { observability.RecordDelivery(event, err) }()

	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return ErrClientNotFound
	}

	msg, err := json.Marshal(Envelope{Type: event, Data: payload, Timestamp: h.clock().UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	if err := c.trySend(msg); err != nil {
		if errors.Is(err, ErrClientBufferFull) {
			h.logger.Warn().Str("conn", connID).Str("event", event).Msg("send buffer full, dropping message")
		}
		return err
	}
	return nil
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Has reports whether connID is live.
func (h *Hub) Has(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetConnections(n)
}

func (h *Hub) remove(c *Client) bool {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
	}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetConnections(n)
	return ok
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}
