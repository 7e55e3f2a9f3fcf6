// Package main runs the tracker server in one process:
// - Upstream feed (mock or RPC indexer + relay stream)
// - Event router (serial dispatch to wallet, memecoin and NFT trackers)
// - Subscriber WebSocket channel and REST read surface
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"sei-tracker/internal/api"
	"sei-tracker/internal/config"
	"sei-tracker/internal/kinds"
	"sei-tracker/internal/router"
	"sei-tracker/internal/storage"
	chstore "sei-tracker/internal/storage/clickhouse"
	"sei-tracker/internal/storage/memory"
	"sei-tracker/internal/storage/migrations"
	pgstore "sei-tracker/internal/storage/postgres"
	"sei-tracker/internal/tracker"
	"sei-tracker/internal/upstream"
	"sei-tracker/internal/upstream/mock"
	"sei-tracker/internal/ws"
)

// Server holds all components of the tracker service.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Upstream
	snapshots upstream.SnapshotSource
	events    upstream.EventSource

	// Components
	trackers   *kinds.Trackers
	router     *router.Router
	hub        *ws.Hub
	httpServer *http.Server
}

// allStores holds the write-side stores.
type allStores struct {
	journal storage.EventJournal
	flows   storage.FlowStore
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "YAML configuration file")
	envFile := flag.String("env-file", ".env", "Environment file loaded before the configuration")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	upstreamMode := flag.String("upstream", "", "Upstream mode: mock or relay (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")

	flag.Parse()

	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := config.LoadDotEnv(*envFile); err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *upstreamMode != "" {
		cfg.Upstream.Mode = *upstreamMode
	}
	if *useMemory {
		cfg.Storage.Backend = config.StorageMemory
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		bootLogger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := newLogger(cfg.Log)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create stores")
	}
	defer cleanup()

	server := newServer(cfg, stores, logger)

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("Forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(cfg.Server.ShutdownTimeout):
			logger.Error().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Server error")
	}

	logger.Info().Msg("Shutdown complete")
}

// newLogger builds the process logger from cfg.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// createStores creates the journal and flow archive.
func createStores(ctx context.Context, cfg config.StorageConfig) (*allStores, func(), error) {
	if cfg.Backend == config.StorageMemory {
		stores := &allStores{
			journal: memory.NewEventJournal(cfg.JournalSize),
			flows:   memory.NewFlowStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		journal: pgstore.NewEventJournal(pool),
		flows:   chstore.NewFlowStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// newServer wires the upstream feed, trackers, router and HTTP surfaces.
func newServer(cfg *config.Config, stores *allStores, logger zerolog.Logger) *Server {
	s := &Server{cfg: cfg, logger: logger}

	switch cfg.Upstream.Mode {
	case config.UpstreamRelay:
		s.snapshots = upstream.NewRPCClient(cfg.Upstream.RPCURL, upstream.WithTimeout(cfg.Upstream.Timeout))

		relayCfg := upstream.DefaultRelayConfig()
		relayCfg.ReconnectDelay = cfg.Upstream.ReconnectDelay
		relayCfg.MaxReconnectAttempts = uint64(cfg.Upstream.ReconnectAttempts)
		s.events = upstream.NewRelayClient(cfg.Upstream.RelayURL, &relayCfg, &logger)

	default:
		mockCfg := mock.DefaultConfig()
		mockCfg.Seed = cfg.Upstream.MockSeed
		mockCfg.EventInterval = cfg.Upstream.MockEventInterval
		feed := mock.New(mockCfg, &logger)
		s.snapshots = feed
		s.events = feed
	}

	s.hub = ws.NewHub(ws.HubOptions{SendBuffer: cfg.WS.SendBuffer, Logger: &logger})

	retry := tracker.DefaultRetryPolicy()
	retry.MaxRetries = uint64(cfg.Tracker.FetchRetries)
	retry.Timeout = cfg.Tracker.FetchTimeout

	s.trackers = kinds.NewTrackers(s.snapshots, kinds.Config{
		WalletHistory:     cfg.Tracker.WalletHistory,
		FlowHistory:       cfg.Tracker.FlowHistory,
		MovementHistory:   cfg.Tracker.MovementHistory,
		WalletBackfill:    cfg.Tracker.WalletBackfill,
		FlowBackfillHours: cfg.Tracker.FlowBackfillHours,
		HolderLimit:       cfg.Tracker.HolderLimit,
		WhaleRefresh:      cfg.Tracker.WhaleRefresh,
	}, tracker.Options{
		Broadcaster: s.hub,
		Gate:        s.events,
		Retry:       retry,
		Logger:      &logger,
	})

	s.router = router.New(router.Options{
		Source:      s.events,
		Dispatchers: []router.Dispatcher{s.trackers.Wallet, s.trackers.Coin, s.trackers.NFT},
		Journal:     stores.journal,
		Flows:       stores.flows,
		Logger:      &logger,
	})

	wsServer := ws.NewServer(ws.ServerOptions{
		Hub:           s.hub,
		Subscriptions: s.trackers,
		Remover:       s.router,
		CheckOrigin:   originChecker(cfg.Server.CORSOrigin),
		Logger:        &logger,
	})

	apiServer := api.New(api.Options{
		Trackers:    s.trackers,
		Stream:      s.router,
		Connections: s.hub,
		Feed:        s.events,
		Journal:     stores.journal,
		Flows:       stores.flows,
		WebSocket:   wsServer,
		Logger:      &logger,
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// originChecker allows every origin for "*" and otherwise an exact match
// against the comma-separated list.
func originChecker(allowed string) func(r *http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	origins := strings.Split(allowed, ",")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if strings.TrimSpace(o) == origin {
				return true
			}
		}
		return false
	}
}

// Run starts the upstream feed, the router and the HTTP server.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().
		Str("upstream", s.cfg.Upstream.Mode).
		Str("storage", s.cfg.Storage.Backend).
		Str("addr", s.httpServer.Addr).
		Msg("Starting tracker server")

	if err := s.events.Start(ctx); err != nil {
		return fmt.Errorf("start upstream: %w", err)
	}

	// Create error channel for goroutines
	errCh := make(chan error, 2)

	go func() {
		err := s.router.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("router: %w", err)
		}
	}()

	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Wait for context cancellation or error
	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
	}

	s.shutdown()
	return runErr
}

// shutdown stops accepting requests, disconnects subscribers and closes the feed.
func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("HTTP shutdown")
	}
	s.hub.CloseAll()
	if err := s.events.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Upstream close")
	}
}
