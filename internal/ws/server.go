package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/observability"
)

// Subscriptions is the tracker surface driven by socket commands.
type Subscriptions interface {
	Subscribe(ctx context.Context, kind domain.Kind, key, connID string) (any, error)
	Unsubscribe(kind domain.Kind, key, connID string) bool
}

// ConnectionRemover detaches a closed connection from every kind.
type ConnectionRemover interface {
	RemoveConnection(connID string) int
}

// ServerOptions contains configuration for creating a Server.
type ServerOptions struct {
	Hub           *Hub
	Subscriptions Subscriptions
	Remover       ConnectionRemover
	CheckOrigin   func(r *http.Request) bool
	Logger        *zerolog.Logger
}

// Server upgrades HTTP requests and runs the command protocol on each socket.
type Server struct {
	hub      *Hub
	subs     Subscriptions
	remover  ConnectionRemover
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewServer creates a new Server.
func NewServer(opts ServerOptions) *Server {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Server{
		hub:     opts.Hub,
		subs:    opts.Subscriptions,
		remover: opts.Remover,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

// ServeHTTP upgrades the connection and starts its pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := newClient(uuid.NewString(), conn, s.hub.sendBuffer, s.logger, s.disconnect)
	s.hub.add(c)
	s.logger.Info().Str("conn", c.id).Str("remote", r.RemoteAddr).Msg("client connected")

	_ = s.hub.Deliver(c.id, MsgConnected, ConnectedData{ConnectionID: c.id})

	go c.writePump()
	go c.readPump(s.handleMessage)
}

// disconnect is the client cleanup callback: implicit unsubscribe from everything.
func (s *Server) disconnect(c *Client) {
	if !s.hub.remove(c) {
		return
	}
	removed := 0
	if s.remover != nil {
		removed = s.remover.RemoveConnection(c.id)
	}
	s.logger.Info().Str("conn", c.id).Int("subscriptions", removed).Msg("client disconnected")
}

func (s *Server) handleMessage(c *Client, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		observability.RecordCommand("invalid")
		s.reply(c, MsgTrackingError, TrackingStatus{Error: "invalid message"})
		return
	}
	observability.RecordCommand(cmd.Type)

	switch cmd.Type {
	case CmdTrackWallet:
		var d TrackWalletData
		if !s.decode(c, cmd, domain.KindWallet, &d) {
			return
		}
		s.schedule(c, domain.KindWallet, d.Address, s.track)

	case CmdTrackMemecoin:
		var d TrackMemecoinData
		if !s.decode(c, cmd, domain.KindCoin, &d) {
			return
		}
		s.schedule(c, domain.KindCoin, d.Symbol, s.track)

	case CmdTrackNFT:
		var d TrackNFTData
		if !s.decode(c, cmd, domain.KindNFT, &d) {
			return
		}
		s.schedule(c, domain.KindNFT, d.TokenID, s.track)

	case CmdStopTracking:
		var d StopTrackingData
		if !s.decode(c, cmd, "", &d) {
			return
		}
		if !d.Type.IsValid() {
			s.reply(c, MsgTrackingError, TrackingStatus{Type: d.Type, Identifier: d.Identifier, Error: "unknown entity type"})
			return
		}
		s.schedule(c, d.Type, d.Identifier, s.stop)

	case CmdDisconnect:
		c.close()

	default:
		s.reply(c, MsgTrackingError, TrackingStatus{Error: "unknown message type: " + cmd.Type})
	}
}

func (s *Server) decode(c *Client, cmd Command, kind domain.Kind, v any) bool {
	if len(cmd.Data) == 0 {
		s.reply(c, MsgTrackingError, TrackingStatus{Type: kind, Error: "missing data"})
		return false
	}
	if err := json.Unmarshal(cmd.Data, v); err != nil {
		s.reply(c, MsgTrackingError, TrackingStatus{Type: kind, Error: "invalid data: " + err.Error()})
		return false
	}
	return true
}

// schedule runs a command off the read loop, after any earlier command for
// the same entity on this client.
func (s *Server) schedule(c *Client, kind domain.Kind, key string, cmd func(*Client, domain.Kind, string)) {
	c.enqueue(entityRef{kind: kind, key: key}, func() { cmd(c, kind, key) })
}

// track subscribes the client and sends the initial data followed by tracking_started.
func (s *Server) track(c *Client, kind domain.Kind, key string) {
	initial, err := s.subs.Subscribe(c.ctx, kind, key, c.id)
	if err != nil {
		c.logger.Warn().Err(err).Str("kind", kind.String()).Str("key", key).Msg("track failed")
		s.reply(c, MsgTrackingError, TrackingStatus{Type: kind, Identifier: key, Error: err.Error()})
		return
	}

	// The socket may have closed while the entity was being created.
	if !s.hub.Has(c.id) {
		s.subs.Unsubscribe(kind, key, c.id)
		return
	}

	s.reply(c, kind.DataEvent(), initial)
	s.reply(c, MsgTrackingStarted, TrackingStatus{Type: kind, Identifier: key})
}

func (s *Server) stop(c *Client, kind domain.Kind, key string) {
	s.subs.Unsubscribe(kind, key, c.id)
	s.reply(c, MsgTrackingStopped, TrackingStatus{Type: kind, Identifier: key})
}

func (s *Server) reply(c *Client, event string, payload any) {
	if err := s.hub.Deliver(c.id, event, payload); err != nil {
		c.logger.Debug().Err(err).Str("event", event).Msg("reply dropped")
	}
}
