package api

import (
	"net/http"
	"time"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/metrics"
	"sei-tracker/internal/router"
	"sei-tracker/internal/storage"
	"sei-tracker/internal/tracker"
)

// entityResponse is the body of the per-entity GET routes.
type entityResponse[S, M any] struct {
	Key         string    `json:"key"`
	Snapshot    S         `json:"snapshot"`
	Metrics     M         `json:"metrics"`
	Subscribers int       `json:"subscribers"`
	CreatedAt   time.Time `json:"createdAt"`
	LastRefresh time.Time `json:"lastRefresh"`
}

func lookup[S, R, M any](t *tracker.Tracker[S, R, M], key string) (tracker.View[S, R, M], error) {
	if err := t.ValidateKey(key); err != nil {
		return tracker.View[S, R, M]{}, err
	}
	return t.View(key)
}

func entity[S, R, M any](v tracker.View[S, R, M]) entityResponse[S, M] {
	return entityResponse[S, M]{
		Key:         v.Key,
		Snapshot:    v.Snapshot,
		Metrics:     v.Metrics,
		Subscribers: v.Subscribers,
		CreatedAt:   v.CreatedAt,
		LastRefresh: v.LastRefresh,
	}
}

// serveEntity writes the snapshot and metrics of key.
func serveEntity[S, R, M any](w http.ResponseWriter, t *tracker.Tracker[S, R, M], key string) {
	v, err := lookup(t, key)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity(v))
}

// serveHistory writes a windowed, paginated page of key's history.
func serveHistory[S any, R domain.Timestamped, M any](w http.ResponseWriter, r *http.Request, t *tracker.Tracker[S, R, M], key string, def domain.Timeframe, now time.Time) {
	tf, err := parseTimeframe(r, def)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := lookup(t, key)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, windowed(key, v.History, tf, p, now))
}

// Wallet routes

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	serveEntity(w, s.trackers.Wallet, r.PathValue("address"))
}

func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	serveHistory(w, r, s.trackers.Wallet, r.PathValue("address"), domain.TimeframeAll, s.clock())
}

func (s *Server) handleWalletAnalytics(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("address")
	v, err := lookup(s.trackers.Wallet, key)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":       key,
		"analytics": v.Metrics,
	})
}

// Memecoin routes

func (s *Server) handleCoin(w http.ResponseWriter, r *http.Request) {
	serveEntity(w, s.trackers.Coin, r.PathValue("symbol"))
}

func (s *Server) handleCoinFlows(w http.ResponseWriter, r *http.Request) {
	serveHistory(w, r, s.trackers.Coin, r.PathValue("symbol"), domain.Timeframe24h, s.clock())
}

type coinAnalyticsResponse struct {
	Key                string                `json:"key"`
	Flow               domain.FlowSummary    `json:"flow"`
	Whales             domain.WhaleAnalytics `json:"whales"`
	WhaleConcentration float64               `json:"whaleConcentration"`
}

func (s *Server) handleCoinAnalytics(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("symbol")
	tf, err := parseTimeframe(r, domain.Timeframe24h)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := lookup(s.trackers.Coin, key)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coinAnalyticsResponse{
		Key:                key,
		Flow:               metrics.SummarizeFlows(v.History, tf, s.clock()),
		Whales:             v.Metrics.Whales,
		WhaleConcentration: v.Metrics.WhaleConcentration,
	})
}

func (s *Server) handleCoinWhales(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("symbol")
	v, err := lookup(s.trackers.Coin, key)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	whales := v.Snapshot.Whales
	if whales == nil {
		whales = []domain.Whale{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":         key,
		"whales":      whales,
		"refreshedAt": v.Snapshot.WhalesRefreshedAt,
	})
}

// handleCoinArchive reads archived flow samples. The symbol does not need to be tracked.
func (s *Server) handleCoinArchive(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("symbol")
	if err := s.trackers.Coin.ValidateKey(key); err != nil {
		writeTrackerError(w, err)
		return
	}
	tf, err := parseTimeframe(r, domain.Timeframe24h)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.flows == nil {
		writeError(w, http.StatusServiceUnavailable, "flow archive not configured")
		return
	}

	now := s.clock().UnixMilli()
	start := int64(0)
	if d := tf.Duration(); d > 0 {
		start = now - d.Milliseconds()
	}
	samples, err := s.flows.GetByTimeRange(r.Context(), key, start, now)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", key).Msg("archive query failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if samples == nil {
		samples = []*domain.FlowSample{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":       key,
		"timeframe": tf,
		"samples":   samples,
	})
}

// NFT routes

func (s *Server) handleNFT(w http.ResponseWriter, r *http.Request) {
	serveEntity(w, s.trackers.NFT, r.PathValue("tokenId"))
}

func (s *Server) handleNFTMovements(w http.ResponseWriter, r *http.Request) {
	serveHistory(w, r, s.trackers.NFT, r.PathValue("tokenId"), domain.TimeframeAll, s.clock())
}

type nftAnalyticsResponse struct {
	Key         string                    `json:"key"`
	Performance domain.NFTPerformance     `json:"performance"`
	Movements   domain.MovementAnalytics  `json:"movements"`
	Ownership   domain.OwnershipAnalytics `json:"ownership"`
}

func (s *Server) handleNFTAnalytics(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("tokenId")
	tf, err := parseTimeframe(r, domain.TimeframeAll)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := lookup(s.trackers.NFT, key)
	if err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nftAnalyticsResponse{
		Key:         key,
		Performance: v.Metrics.Performance,
		Movements:   metrics.Movements(v.History, tf, s.clock()),
		Ownership:   v.Metrics.Ownership,
	})
}

// Platform routes

type overviewResponse struct {
	Kinds             []tracker.Stats       `json:"kinds"`
	Stream            *router.Stats         `json:"stream,omitempty"`
	Connections       int                   `json:"connections"`
	UpstreamConnected bool                  `json:"upstreamConnected"`
	Journal           map[domain.Kind]int64 `json:"journal,omitempty"`
	Timestamp         int64                 `json:"timestamp"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	resp := overviewResponse{
		Kinds:             s.trackers.Stats(),
		UpstreamConnected: s.upstreamConnected(),
		Timestamp:         s.clock().UnixMilli(),
	}
	if s.stream != nil {
		st := s.stream.Stats()
		resp.Stream = &st
	}
	if s.connections != nil {
		resp.Connections = s.connections.Count()
	}
	if s.journal != nil {
		counts, err := s.journal.CountByKind(r.Context())
		if err != nil {
			s.logger.Warn().Err(err).Msg("journal count failed")
		} else {
			resp.Journal = counts
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "event journal not configured")
		return
	}

	q := storage.JournalQuery{EntityKey: r.URL.Query().Get("key")}
	if v := r.URL.Query().Get("kind"); v != "" {
		kind, ok := domain.ParseKind(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown kind: "+v)
			return
		}
		q.Kind = kind
	}
	p, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q.Limit = p.limit

	entries, err := s.journal.Recent(r.Context(), q)
	if err != nil {
		s.logger.Error().Err(err).Msg("journal query failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	events := make([]journalEvent, 0, len(entries))
	for _, e := range entries {
		events = append(events, newJournalEvent(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) upstreamConnected() bool {
	return s.feed == nil || s.feed.Connected()
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status            string    `json:"status"`
	Uptime            string    `json:"uptime"`
	Started           time.Time `json:"started"`
	UpstreamConnected bool      `json:"upstream_connected"`
	Connections       int       `json:"connections"`
	TrackedEntities   int       `json:"tracked_entities"`
	Subscriptions     int       `json:"subscriptions"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:            "running",
		Uptime:            s.clock().Sub(s.started).String(),
		Started:           s.started,
		UpstreamConnected: s.upstreamConnected(),
	}
	if !resp.UpstreamConnected {
		resp.Status = "degraded"
	}
	if s.connections != nil {
		resp.Connections = s.connections.Count()
	}
	for _, st := range s.trackers.Stats() {
		resp.TrackedEntities += st.Entities
		resp.Subscriptions += st.Subscriptions
	}
	writeJSON(w, http.StatusOK, resp)
}
