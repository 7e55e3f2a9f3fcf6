// Package router consumes the upstream event stream and dispatches each event
// to the trackers of every entity kind.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/metrics"
	"sei-tracker/internal/observability"
	"sei-tracker/internal/storage"
	"sei-tracker/internal/tracker"
	"sei-tracker/internal/upstream"
)

// ErrStreamClosed is returned by Run when the event source closes its stream.
var ErrStreamClosed = errors.New("router: event stream closed")

// Dispatcher is the per-kind view of a tracker the router drives.
type Dispatcher interface {
	Kind() domain.Kind
	Dispatch(ctx context.Context, ev domain.RawEvent) []string
	RemoveConnection(connID string) int
	Stats() tracker.Stats
}

// Options contains configuration for creating a Router.
type Options struct {
	Source      upstream.EventSource
	Dispatchers []Dispatcher
	Journal     storage.EventJournal // optional
	Flows       storage.FlowStore    // optional
	Clock       func() time.Time
	Logger      *zerolog.Logger
}

// Stats describes the event stream as seen by the router.
type Stats struct {
	EventsProcessed int64           `json:"eventsProcessed"`
	EventsMatched   int64           `json:"eventsMatched"`
	JournalErrors   int64           `json:"journalErrors"`
	UniqueAddresses uint64          `json:"uniqueAddresses"`
	UniqueDenoms    uint64          `json:"uniqueDenoms"`
	LastBlockHeight int64           `json:"lastBlockHeight"`
	LastEventAt     int64           `json:"lastEventAt,omitempty"`
	Kinds           []tracker.Stats `json:"kinds"`
}

// Router is the single consumer of the upstream event stream.
// Events are dispatched one at a time, in arrival order.
type Router struct {
	source      upstream.EventSource
	dispatchers []Dispatcher
	journal     storage.EventJournal
	flows       storage.FlowStore
	clock       func() time.Time
	logger      zerolog.Logger

	// dispatchMu serializes Handle so no two events interleave.
	dispatchMu sync.Mutex

	mu              sync.Mutex
	processed       int64
	matched         int64
	journalErrors   int64
	lastBlockHeight int64
	lastEventAt     int64
	addresses       *hyperloglog.Sketch
	denoms          *hyperloglog.Sketch
}

// New creates a new Router.
func New(opts Options) *Router {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Router{
		source:      opts.Source,
		dispatchers: opts.Dispatchers,
		journal:     opts.Journal,
		flows:       opts.Flows,
		clock:       clock,
		logger:      logger.With().Str("component", "router").Logger(),
		addresses:   hyperloglog.New14(),
		denoms:      hyperloglog.New14(),
	}
}

// Run consumes events until ctx is cancelled or the stream closes.
// It blocks until then.
func (r *Router) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("router: no event source")
	}
	events := r.source.Events()

	r.logger.Info().Int("kinds", len(r.dispatchers)).Msg("router started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("router stopping")
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				r.logger.Warn().Msg("event stream closed")
				return ErrStreamClosed
			}
			r.Handle(ctx, ev)
		}
	}
}

// Handle dispatches one event to every kind and returns the number of
// tracked entities it touched.
func (r *Router) Handle(ctx context.Context, ev domain.RawEvent) int {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	start := time.Now()
	total := 0
	var hits []match

	for _, d := range r.dispatchers {
		keys := d.Dispatch(ctx, ev)
		observability.RecordMatches(d.Kind().String(), len(keys))
		if len(keys) > 0 {
			total += len(keys)
			hits = append(hits, match{kind: d.Kind(), keys: keys})
		}
	}

	r.observe(ev, total)
	observability.RecordEvent(ev.BlockHeight, time.Since(start).Seconds())

	if len(hits) > 0 {
		r.record(ctx, ev, hits)
	}
	return total
}

func (r *Router) observe(ev domain.RawEvent, matched int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processed++
	if matched > 0 {
		r.matched++
	}
	if ev.BlockHeight > r.lastBlockHeight {
		r.lastBlockHeight = ev.BlockHeight
	}
	r.lastEventAt = ev.OccurredAt(r.clock())
	for _, addr := range ev.Addresses() {
		r.addresses.Insert([]byte(addr))
	}
	if ev.Data.Denom != "" {
		r.denoms.Insert([]byte(ev.Data.Denom))
	}
}

// match is the set of tracked keys of one kind an event touched.
type match struct {
	kind domain.Kind
	keys []string
}

// record journals the event once per matched (kind, key) and archives coin flow.
// Failures are logged and counted; they never affect dispatch.
func (r *Router) record(ctx context.Context, ev domain.RawEvent, hits []match) {
	if r.journal == nil && r.flows == nil {
		return
	}

	now := r.clock()
	ts := ev.OccurredAt(now)

	if r.journal != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			r.journalFailed(err, ev.Hash)
			return
		}
		for _, hit := range hits {
			for _, key := range hit.keys {
				entry := &domain.JournalEntry{
					ID:          uuid.NewString(),
					Kind:        hit.kind,
					EntityKey:   key,
					TxHash:      ev.Hash,
					BlockHeight: ev.BlockHeight,
					Timestamp:   ts,
					Payload:     payload,
					CreatedAt:   now.UnixMilli(),
				}
				if err := r.journal.Insert(ctx, entry); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
					r.journalFailed(err, ev.Hash)
				}
			}
		}
	}

	coinHit := slices.ContainsFunc(hits, func(m match) bool { return m.kind == domain.KindCoin })
	if r.flows != nil && coinHit {
		inflow, outflow := metrics.FlowFromTransfer(ev.Data.From, ev.Data.To, ev.Data.Amount.InexactFloat64())
		sample := &domain.FlowSample{
			Symbol:      ev.Data.Denom,
			TimestampMs: ts,
			Inflow:      inflow,
			Outflow:     outflow,
			TxHash:      ev.Hash,
		}
		if err := r.flows.InsertBulk(ctx, []*domain.FlowSample{sample}); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			r.journalFailed(err, ev.Hash)
		}
	}
}

func (r *Router) journalFailed(err error, hash string) {
	r.mu.Lock()
	r.journalErrors++
	r.mu.Unlock()
	r.logger.Error().Err(err).Str("hash", hash).Msg("failed to record event")
}

// RemoveConnection detaches connID from every kind and returns the number of
// subscriptions removed.
func (r *Router) RemoveConnection(connID string) int {
	removed := 0
	for _, d := range r.dispatchers {
		removed += d.RemoveConnection(connID)
	}
	return removed
}

// Kinds returns the registry counts of every kind.
func (r *Router) Kinds() []tracker.Stats {
	out := make([]tracker.Stats, 0, len(r.dispatchers))
	for _, d := range r.dispatchers {
		out = append(out, d.Stats())
	}
	return out
}

// Stats returns a snapshot of stream statistics.
func (r *Router) Stats() Stats {
	kinds := r.Kinds()

	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		EventsProcessed: r.processed,
		EventsMatched:   r.matched,
		JournalErrors:   r.journalErrors,
		UniqueAddresses: r.addresses.Estimate(),
		UniqueDenoms:    r.denoms.Estimate(),
		LastBlockHeight: r.lastBlockHeight,
		LastEventAt:     r.lastEventAt,
		Kinds:           kinds,
	}
}
