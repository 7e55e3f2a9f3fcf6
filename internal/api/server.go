// Package api serves the REST read surface over tracked entities plus the
// health, status and metrics endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"sei-tracker/internal/kinds"
	"sei-tracker/internal/observability"
	"sei-tracker/internal/router"
	"sei-tracker/internal/storage"
	"sei-tracker/internal/tracker"
)

// StreamStats reports router statistics.
type StreamStats interface {
	Stats() router.Stats
}

// ConnectionCounter reports the number of live subscriber connections.
type ConnectionCounter interface {
	Count() int
}

// Options contains configuration for creating a Server.
type Options struct {
	Trackers    *kinds.Trackers
	Stream      StreamStats       // optional
	Connections ConnectionCounter // optional
	Feed        tracker.Gate      // optional
	Journal     storage.EventJournal
	Flows       storage.FlowStore
	WebSocket   http.Handler // mounted at /ws when set
	Clock       func() time.Time
	Logger      *zerolog.Logger
}

// Server holds the read surface dependencies.
type Server struct {
	trackers    *kinds.Trackers
	stream      StreamStats
	connections ConnectionCounter
	feed        tracker.Gate
	journal     storage.EventJournal
	flows       storage.FlowStore
	ws          http.Handler
	clock       func() time.Time
	logger      zerolog.Logger
	started     time.Time
}

// New creates a new Server.
func New(opts Options) *Server {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Server{
		trackers:    opts.Trackers,
		stream:      opts.Stream,
		connections: opts.Connections,
		feed:        opts.Feed,
		journal:     opts.Journal,
		flows:       opts.Flows,
		ws:          opts.WebSocket,
		clock:       clock,
		logger:      logger.With().Str("component", "api").Logger(),
		started:     clock(),
	}
}

// Handler returns the HTTP handler with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/wallet/{address}", s.handleWallet)
	mux.HandleFunc("GET /api/wallet/{address}/transactions", s.handleWalletTransactions)
	mux.HandleFunc("GET /api/wallet/{address}/analytics", s.handleWalletAnalytics)

	mux.HandleFunc("GET /api/memecoin/{symbol}", s.handleCoin)
	mux.HandleFunc("GET /api/memecoin/{symbol}/flows", s.handleCoinFlows)
	mux.HandleFunc("GET /api/memecoin/{symbol}/analytics", s.handleCoinAnalytics)
	mux.HandleFunc("GET /api/memecoin/{symbol}/whales", s.handleCoinWhales)
	mux.HandleFunc("GET /api/memecoin/{symbol}/archive", s.handleCoinArchive)

	mux.HandleFunc("GET /api/nft/{tokenId}", s.handleNFT)
	mux.HandleFunc("GET /api/nft/{tokenId}/movements", s.handleNFTMovements)
	mux.HandleFunc("GET /api/nft/{tokenId}/analytics", s.handleNFTAnalytics)

	mux.HandleFunc("GET /api/analytics", s.handleOverview)
	mux.HandleFunc("GET /api/analytics/events", s.handleEvents)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", observability.Handler())

	if s.ws != nil {
		mux.Handle("/ws", s.ws)
	}

	return s.recoverMiddleware(mux)
}

// recoverMiddleware turns handler panics into 500 responses.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic recovered")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
