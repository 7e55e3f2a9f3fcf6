// Package tracker implements the generic entity-tracking and fan-out engine.
//
// One Tracker instance serves one entity kind. It owns the registry of tracked
// entities, seeds each entity's history once on creation, refreshes snapshot
// and metrics on every matching upstream event, and pushes the result to all
// subscribers of that entity.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/observability"
)

// Options configures a Tracker.
type Options struct {
	// HistoryCap bounds each entity's history buffer.
	HistoryCap int
	// Broadcaster delivers updates to subscriber connections.
	Broadcaster Broadcaster
	// Gate refuses subscriptions while the upstream is disconnected. Optional.
	Gate Gate
	// Retry bounds upstream fetches. Zero value uses DefaultRetryPolicy.
	Retry RetryPolicy
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Logger for tracker events. Nil disables logging.
	Logger *zerolog.Logger
}

// Stats summarizes a tracker's registry.
type Stats struct {
	Kind          domain.Kind `json:"kind"`
	Entities      int         `json:"entities"`
	Subscriptions int         `json:"subscriptions"`
}

// Tracker is the registry and update engine for one entity kind.
type Tracker[S, R, M any] struct {
	adapter     Adapter[S, R, M]
	kind        domain.Kind
	historyCap  int
	broadcaster Broadcaster
	gate        Gate
	retry       RetryPolicy
	clock       func() time.Time
	logger      zerolog.Logger

	mu       sync.Mutex
	entities map[string]*entity[S, R, M]
}

// New creates a Tracker for the adapter's kind.
func New[S, R, M any](adapter Adapter[S, R, M], opts Options) *Tracker[S, R, M] {
	if opts.HistoryCap < 1 {
		opts.HistoryCap = 100
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = BroadcasterFunc(func(string, string, any) error { return nil })
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	kind := adapter.Kind()
	return &Tracker[S, R, M]{
		adapter:     adapter,
		kind:        kind,
		historyCap:  opts.HistoryCap,
		broadcaster: opts.Broadcaster,
		gate:        opts.Gate,
		retry:       opts.Retry,
		clock:       opts.Clock,
		logger:      logger.With().Str("component", "tracker").Str("kind", kind.String()).Logger(),
		entities:    make(map[string]*entity[S, R, M]),
	}
}

// Kind returns the entity kind served by this tracker.
func (t *Tracker[S, R, M]) Kind() domain.Kind {
	return t.kind
}

// ValidateKey checks a key against the kind's format rules.
func (t *Tracker[S, R, M]) ValidateKey(key string) error {
	return t.adapter.ValidateKey(key)
}

// Subscribe registers connID as interested in key and returns the entity's
// current snapshot, metrics, and history.
//
// The first subscriber creates the entity: the snapshot is fetched and history
// backfilled without holding the registry lock, so other entities keep
// updating meanwhile. Concurrent subscribers to an entity under creation wait
// for it and share its outcome. A failed creation leaves nothing behind.
func (t *Tracker[S, R, M]) Subscribe(ctx context.Context, key, connID string) (domain.Initial[S, R, M], error) {
	var out domain.Initial[S, R, M]
	kind := t.kind.String()

	if err := t.adapter.ValidateKey(key); err != nil {
		observability.RecordSubscribe(kind, "invalid")
		return out, err
	}
	if t.gate != nil && !t.gate.Connected() {
		observability.RecordSubscribe(kind, "unavailable")
		return out, fmt.Errorf("%w: feed not connected", ErrUpstreamUnavailable)
	}

	t.mu.Lock()
	e, exists := t.entities[key]
	if !exists {
		e = newEntity[S, R, M](key, t.historyCap, t.clock())
		t.entities[key] = e
	}
	e.subscribers.Add(connID)
	t.publishGaugesLocked()
	t.mu.Unlock()

	if !exists {
		t.initialize(ctx, e)
	} else {
		select {
		case <-e.ready:
		case <-ctx.Done():
			t.Unsubscribe(key, connID)
			return out, ctx.Err()
		}
	}

	if e.initErr != nil {
		observability.RecordSubscribe(kind, "failed")
		return out, e.initErr
	}

	t.mu.Lock()
	current := t.entities[key] == e && e.subscribers.Contains(connID)
	t.mu.Unlock()
	if !current {
		observability.RecordSubscribe(kind, "withdrawn")
		return out, ErrSubscriptionWithdrawn
	}

	v := e.view()
	out.Key = key
	out.Snapshot = v.Snapshot
	out.Metrics = v.Metrics
	out.History = v.History
	observability.RecordSubscribe(kind, "ok")
	t.logger.Info().Str("key", key).Str("conn", connID).Bool("created", !exists).Msg("subscribed")
	return out, nil
}

// initialize fetches the snapshot, backfills history, and computes metrics
// for a new entity, then releases any waiters.
func (t *Tracker[S, R, M]) initialize(ctx context.Context, e *entity[S, R, M]) {
	// Waiters share this creation, so it must outlive the creator's context.
	ctx = context.WithoutCancel(ctx)

	err := t.populate(ctx, e)
	if err == nil {
		t.mu.Lock()
		if t.entities[e.key] != e {
			err = ErrSubscriptionWithdrawn
		}
		t.mu.Unlock()
	}

	if err != nil {
		t.mu.Lock()
		if t.entities[e.key] == e {
			delete(t.entities, e.key)
			t.publishGaugesLocked()
		}
		t.mu.Unlock()
		t.logger.Warn().Err(err).Str("key", e.key).Msg("entity initialization failed")
	}

	e.initErr = err
	close(e.ready)
}

func (t *Tracker[S, R, M]) populate(ctx context.Context, e *entity[S, R, M]) error {
	var snapshot S
	err := t.withRetry(ctx, "snapshot", e.key, func(ctx context.Context) error {
		s, err := t.adapter.FetchSnapshot(ctx, e.key, nil)
		if err != nil {
			return err
		}
		snapshot = s
		return nil
	})
	if err != nil {
		return err
	}

	var records []R
	err = t.withRetry(ctx, "backfill", e.key, func(ctx context.Context) error {
		rs, err := t.adapter.Backfill(ctx, e.key, snapshot)
		if err != nil {
			return err
		}
		records = rs
		return nil
	})
	if err != nil {
		return err
	}

	now := t.clock()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history.AppendAll(records)
	metrics, err := t.compute(e.history.Items(), snapshot, now)
	if err != nil {
		observability.RecordComputeError(t.kind.String())
		return err
	}
	e.snapshot = snapshot
	e.metrics = metrics
	e.lastRefresh = now
	return nil
}

// Unsubscribe removes connID from key's subscribers. The entity is evicted
// as soon as no subscribers remain. Calling it again is a no-op.
func (t *Tracker[S, R, M]) Unsubscribe(key, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entities[key]
	if !ok || !e.subscribers.Contains(connID) {
		return false
	}
	t.detachLocked(e, connID)
	t.publishGaugesLocked()
	return true
}

// RemoveConnection unsubscribes connID from every entity it follows and
// returns how many subscriptions were removed.
func (t *Tracker[S, R, M]) RemoveConnection(connID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for _, e := range t.entities {
		if e.subscribers.Contains(connID) {
			t.detachLocked(e, connID)
			removed++
		}
	}
	if removed > 0 {
		t.publishGaugesLocked()
	}
	return removed
}

// detachLocked removes a subscriber and evicts the entity when it was the last.
// Caller must hold t.mu.
func (t *Tracker[S, R, M]) detachLocked(e *entity[S, R, M], connID string) {
	e.subscribers.Remove(connID)
	if e.subscribers.Cardinality() > 0 {
		t.logger.Debug().Str("key", e.key).Str("conn", connID).Msg("subscriber removed")
		return
	}
	delete(t.entities, e.key)
	observability.RecordEviction(t.kind.String())
	t.logger.Info().Str("key", e.key).Msg("stopped tracking")
}

// Dispatch applies an upstream event to every tracked entity of this kind it
// touches and returns the keys of the matched entities. Untracked keys are ignored.
// Callers must not invoke Dispatch concurrently for the same tracker.
func (t *Tracker[S, R, M]) Dispatch(ctx context.Context, ev domain.RawEvent) []string {
	var matched []string
	seen := make(map[string]struct{})
	for _, key := range t.adapter.ExtractKeys(ev) {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		t.mu.Lock()
		e := t.entities[key]
		t.mu.Unlock()
		if e == nil || !e.isReady() {
			continue
		}

		matched = append(matched, key)
		t.refresh(ctx, e, ev)
	}
	return matched
}

// refresh runs one live update cycle: append, re-fetch, recompute, broadcast.
// A failed fetch or computation keeps the last good snapshot and metrics and
// skips the broadcast; sibling entities are unaffected.
func (t *Tracker[S, R, M]) refresh(ctx context.Context, e *entity[S, R, M], ev domain.RawEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := t.clock()
	kind := t.kind.String()
	log := t.logger.With().Str("key", e.key).Str("hash", ev.Hash).Logger()

	record, err := t.derive(e.key, ev, now)
	if err != nil {
		observability.RecordComputeError(kind)
		log.Error().Err(err).Msg("derive history record")
		return
	}
	e.history.Append(record)

	prev := e.snapshot
	var snapshot S
	err = t.withRetry(ctx, "refresh", e.key, func(ctx context.Context) error {
		s, err := t.adapter.FetchSnapshot(ctx, e.key, &prev)
		if err != nil {
			return err
		}
		snapshot = s
		return nil
	})
	if err != nil {
		observability.RecordRefreshError(kind)
		log.Warn().Err(err).Msg("refresh snapshot, keeping last good")
		return
	}

	metrics, err := t.compute(e.history.Items(), snapshot, now)
	if err != nil {
		observability.RecordComputeError(kind)
		log.Error().Err(err).Msg("compute metrics, skipping broadcast")
		return
	}

	e.snapshot = snapshot
	e.metrics = metrics
	e.lastRefresh = now

	update := domain.Update[S, M]{
		Key:             e.key,
		NewEvent:        ev,
		UpdatedSnapshot: snapshot,
		UpdatedMetrics:  metrics,
		Timestamp:       now.UnixMilli(),
	}
	event := t.kind.UpdateEvent()
	for _, connID := range e.subscribers.ToSlice() {
		if err := t.broadcaster.Deliver(connID, event, update); err != nil {
			log.Debug().Err(err).Str("conn", connID).Msg("delivery failed")
		}
	}
	observability.RecordBroadcast(kind)
}

// compute runs the adapter's metric computation, converting panics into ErrInternalCompute.
func (t *Tracker[S, R, M]) compute(history []R, snapshot S, now time.Time) (metrics M, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInternalCompute, r)
		}
	}()
	return t.adapter.ComputeMetrics(history, snapshot, now), nil
}

// derive runs the adapter's record extraction, converting panics into ErrInternalCompute.
func (t *Tracker[S, R, M]) derive(key string, ev domain.RawEvent, now time.Time) (record R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInternalCompute, r)
		}
	}()
	return t.adapter.RecordFromEvent(key, ev, now), nil
}

// View returns a copy of a tracked entity.
func (t *Tracker[S, R, M]) View(key string) (View[S, R, M], error) {
	t.mu.Lock()
	e := t.entities[key]
	t.mu.Unlock()
	if e == nil || !e.isReady() {
		return View[S, R, M]{}, fmt.Errorf("%w: %s %s", ErrEntityNotFound, t.kind, key)
	}
	return e.view(), nil
}

// Tracked reports whether key is registered, including entities still initializing.
func (t *Tracker[S, R, M]) Tracked(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entities[key]
	return ok
}

// Subscribers returns the connections subscribed to key.
func (t *Tracker[S, R, M]) Subscribers(key string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entities[key]
	if !ok {
		return nil
	}
	return e.subscribers.ToSlice()
}

// Stats returns registry counts.
func (t *Tracker[S, R, M]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsLocked()
}

func (t *Tracker[S, R, M]) statsLocked() Stats {
	s := Stats{Kind: t.kind, Entities: len(t.entities)}
	for _, e := range t.entities {
		s.Subscriptions += e.subscribers.Cardinality()
	}
	return s
}

func (t *Tracker[S, R, M]) publishGaugesLocked() {
	s := t.statsLocked()
	observability.SetTracked(t.kind.String(), s.Entities, s.Subscriptions)
}
