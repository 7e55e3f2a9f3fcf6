package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sei-tracker/internal/domain"
)

// Connection timing.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

// Client is one subscriber connection.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	logger zerolog.Logger

	// ctx is cancelled when the connection closes; in-flight commands use it.
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
	cleanup   func(*Client)

	// Commands for the same entity run in arrival order, one at a time.
	queueMu sync.Mutex
	queues  map[entityRef]*commandQueue
}

// entityRef names one tracked entity.
type entityRef struct {
	kind domain.Kind
	key  string
}

type commandQueue struct {
	pending []func()
}

func newClient(id string, conn *websocket.Conn, buffer int, logger zerolog.Logger, cleanup func(*Client)) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, buffer),
		logger:  logger.With().Str("conn", id).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		cleanup: cleanup,
		queues:  make(map[entityRef]*commandQueue),
	}
}

// enqueue runs fn after every earlier command for ref has finished. It never
// blocks the caller.
func (c *Client) enqueue(ref entityRef, fn func()) {
	c.queueMu.Lock()
	q, running := c.queues[ref]
	if !running {
		q = &commandQueue{}
		c.queues[ref] = q
	}
	q.pending = append(q.pending, fn)
	c.queueMu.Unlock()

	if !running {
		go c.drain(ref, q)
	}
}

func (c *Client) drain(ref entityRef, q *commandQueue) {
	for {
		c.queueMu.Lock()
		if len(q.pending) == 0 {
			delete(c.queues, ref)
			c.queueMu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		c.queueMu.Unlock()

		fn()
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// trySend queues msg without blocking.
func (c *Client) trySend(msg []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrClientBufferFull
	}
}

// writePump pumps queued messages to the socket and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads inbound messages until the socket fails or closes.
func (c *Client) readPump(handle func(*Client, []byte)) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(c, msg)
	}
}

// close marks the client done and runs the cleanup callback once.
// writePump sends the close frame and releases the socket.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		if c.cleanup != nil {
			c.cleanup(c)
		}
	})
}
