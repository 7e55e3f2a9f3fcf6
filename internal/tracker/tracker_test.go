package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sei-tracker/internal/domain"
)

type testSnapshot struct {
	Key     string
	Version int
}

type testRecord struct {
	Hash string
	Ts   int64
}

type testMetrics struct {
	Count int
}

// testAdapter tracks keys prefixed with "k" and matches events by Denom.
type testAdapter struct {
	mu          sync.Mutex
	fetches     atomic.Int32
	version     int
	failFetch   int // number of upcoming fetches that fail
	fetchErr    error
	block       chan struct{}
	backfill    []testRecord
	panicOnSize int
}

func (a *testAdapter) Kind() domain.Kind { return domain.KindCoin }

func (a *testAdapter) ValidateKey(key string) error {
	if !strings.HasPrefix(key, "k") {
		return fmt.Errorf("%w: %q", ErrInvalidKeyFormat, key)
	}
	return nil
}

func (a *testAdapter) FetchSnapshot(ctx context.Context, key string, _ *testSnapshot) (testSnapshot, error) {
	a.fetches.Add(1)
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return testSnapshot{}, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failFetch > 0 {
		a.failFetch--
		if a.fetchErr != nil {
			return testSnapshot{}, a.fetchErr
		}
		return testSnapshot{}, errors.New("upstream timeout")
	}
	a.version++
	return testSnapshot{Key: key, Version: a.version}, nil
}

func (a *testAdapter) Backfill(context.Context, string, testSnapshot) ([]testRecord, error) {
	return a.backfill, nil
}

func (a *testAdapter) ComputeMetrics(history []testRecord, _ testSnapshot, _ time.Time) testMetrics {
	if a.panicOnSize > 0 && len(history) >= a.panicOnSize {
		panic("malformed history")
	}
	return testMetrics{Count: len(history)}
}

func (a *testAdapter) ExtractKeys(ev domain.RawEvent) []string {
	if ev.Data.Denom == "" {
		return nil
	}
	return []string{ev.Data.Denom, ev.Data.Denom}
}

func (a *testAdapter) RecordFromEvent(_ string, ev domain.RawEvent, now time.Time) testRecord {
	return testRecord{Hash: ev.Hash, Ts: ev.OccurredAt(now)}
}

type delivery struct {
	conn    string
	event   string
	payload any
}

type recorder struct {
	mu         sync.Mutex
	deliveries []delivery
	failFor    string
}

func (r *recorder) Deliver(connID, event string, payload any) error {
	if connID == r.failFor {
		return errors.New("connection gone")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{connID, event, payload})
	return nil
}

func (r *recorder) all() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.deliveries...)
}

type gate struct{ connected atomic.Bool }

func (g *gate) Connected() bool { return g.connected.Load() }

var fastRetry = RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Timeout: time.Second}

func newTestTracker(a *testAdapter, b Broadcaster) *Tracker[testSnapshot, testRecord, testMetrics] {
	return New[testSnapshot, testRecord, testMetrics](a, Options{
		HistoryCap:  5,
		Broadcaster: b,
		Retry:       fastRetry,
	})
}

func rawEvent(denom, hash string) domain.RawEvent {
	return domain.RawEvent{Hash: hash, BlockHeight: 1, Data: domain.EventData{Denom: denom}}
}

func TestSubscribe_ThenUnsubscribeLeavesNothingTracked(t *testing.T) {
	tr := newTestTracker(&testAdapter{}, nil)
	ctx := context.Background()

	initial, err := tr.Subscribe(ctx, "kPEPE", "c1")
	require.NoError(t, err)
	assert.Equal(t, "kPEPE", initial.Key)
	assert.Equal(t, 1, tr.Stats().Entities)

	assert.True(t, tr.Unsubscribe("kPEPE", "c1"))
	assert.Equal(t, 0, tr.Stats().Entities)
	assert.False(t, tr.Tracked("kPEPE"))
}

func TestSubscribe_InvalidKeyCreatesNoState(t *testing.T) {
	a := &testAdapter{}
	tr := newTestTracker(a, nil)

	_, err := tr.Subscribe(context.Background(), "bad", "c1")

	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
	assert.Equal(t, 0, tr.Stats().Entities)
	assert.Zero(t, a.fetches.Load())
}

func TestSubscribe_BackfillSeedsHistoryWithinCap(t *testing.T) {
	a := &testAdapter{}
	for i := 0; i < 8; i++ {
		a.backfill = append(a.backfill, testRecord{Hash: fmt.Sprintf("b%d", i)})
	}
	tr := newTestTracker(a, nil)

	initial, err := tr.Subscribe(context.Background(), "kA", "c1")
	require.NoError(t, err)

	require.Len(t, initial.History, 5)
	assert.Equal(t, "b3", initial.History[0].Hash)
	assert.Equal(t, 5, initial.Metrics.Count)
}

func TestSubscribe_UpstreamFailureCreatesNoEntity(t *testing.T) {
	a := &testAdapter{failFetch: 10}
	tr := newTestTracker(a, nil)

	_, err := tr.Subscribe(context.Background(), "kA", "c1")

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.False(t, tr.Tracked("kA"))
	// first attempt plus two retries
	assert.Equal(t, int32(3), a.fetches.Load())
}

func TestSubscribe_RetriesTransientFailure(t *testing.T) {
	a := &testAdapter{failFetch: 1}
	tr := newTestTracker(a, nil)

	_, err := tr.Subscribe(context.Background(), "kA", "c1")

	require.NoError(t, err)
	assert.Equal(t, int32(2), a.fetches.Load())
}

func TestSubscribe_NotFoundIsNotRetried(t *testing.T) {
	a := &testAdapter{failFetch: 1, fetchErr: fmt.Errorf("%w: no such coin", ErrEntityNotFound)}
	tr := newTestTracker(a, nil)

	_, err := tr.Subscribe(context.Background(), "kA", "c1")

	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.Equal(t, int32(1), a.fetches.Load())
}

func TestSubscribe_RefusedWhileGateClosed(t *testing.T) {
	g := &gate{}
	tr := New[testSnapshot, testRecord, testMetrics](&testAdapter{}, Options{Gate: g, Retry: fastRetry})

	_, err := tr.Subscribe(context.Background(), "kA", "c1")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	g.connected.Store(true)
	_, err = tr.Subscribe(context.Background(), "kA", "c1")
	assert.NoError(t, err)
}

func TestSubscribe_ConcurrentFirstSubscribersShareCreation(t *testing.T) {
	a := &testAdapter{block: make(chan struct{})}
	tr := newTestTracker(a, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tr.Subscribe(ctx, "kA", fmt.Sprintf("c%d", i))
		}(i)
	}

	require.Eventually(t, func() bool { return len(tr.Subscribers("kA")) == 4 }, time.Second, time.Millisecond)
	close(a.block)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), a.fetches.Load())
	assert.Equal(t, 4, tr.Stats().Subscriptions)
}

func TestSubscribe_WithdrawnDuringCreation(t *testing.T) {
	a := &testAdapter{block: make(chan struct{})}
	tr := newTestTracker(a, nil)

	done := make(chan error, 1)
	go func() {
		_, err := tr.Subscribe(context.Background(), "kA", "c1")
		done <- err
	}()

	require.Eventually(t, func() bool { return tr.Tracked("kA") }, time.Second, time.Millisecond)
	assert.True(t, tr.Unsubscribe("kA", "c1"))
	close(a.block)

	assert.ErrorIs(t, <-done, ErrSubscriptionWithdrawn)
	assert.False(t, tr.Tracked("kA"))
}

func TestDispatch_DeliversOncePerSubscriberWithIdenticalContent(t *testing.T) {
	rec := &recorder{}
	tr := newTestTracker(&testAdapter{}, rec)
	ctx := context.Background()

	for _, c := range []string{"c1", "c2", "c3"} {
		_, err := tr.Subscribe(ctx, "kA", c)
		require.NoError(t, err)
	}

	matched := tr.Dispatch(ctx, rawEvent("kA", "tx1"))
	assert.Equal(t, []string{"kA"}, matched)

	got := rec.all()
	require.Len(t, got, 3)
	conns := map[string]int{}
	for _, d := range got {
		conns[d.conn]++
		assert.Equal(t, "memecoin_update", d.event)
		assert.Equal(t, got[0].payload, d.payload)
	}
	assert.Equal(t, map[string]int{"c1": 1, "c2": 1, "c3": 1}, conns)

	update := got[0].payload.(domain.Update[testSnapshot, testMetrics])
	assert.Equal(t, "kA", update.Key)
	assert.Equal(t, "tx1", update.NewEvent.Hash)
	assert.Equal(t, 1, update.UpdatedMetrics.Count)
}

func TestDispatch_IgnoresUntrackedKeys(t *testing.T) {
	rec := &recorder{}
	a := &testAdapter{}
	tr := newTestTracker(a, rec)

	assert.Empty(t, tr.Dispatch(context.Background(), rawEvent("kOther", "tx1")))
	assert.Empty(t, tr.Dispatch(context.Background(), rawEvent("", "tx2")))
	assert.Empty(t, rec.all())
	assert.Zero(t, a.fetches.Load())
}

func TestDispatch_FailedDeliveryDoesNotBlockOthers(t *testing.T) {
	rec := &recorder{failFor: "c1"}
	tr := newTestTracker(&testAdapter{}, rec)
	ctx := context.Background()

	_, _ = tr.Subscribe(ctx, "kA", "c1")
	_, _ = tr.Subscribe(ctx, "kA", "c2")

	tr.Dispatch(ctx, rawEvent("kA", "tx1"))

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].conn)

	v, err := tr.View("kA")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Metrics.Count)
}

func TestDispatch_RemainingSubscriberKeepsReceiving(t *testing.T) {
	rec := &recorder{}
	tr := newTestTracker(&testAdapter{}, rec)
	ctx := context.Background()

	_, _ = tr.Subscribe(ctx, "kA", "c1")
	_, _ = tr.Subscribe(ctx, "kA", "c2")
	tr.Unsubscribe("kA", "c1")

	assert.True(t, tr.Tracked("kA"))
	tr.Dispatch(ctx, rawEvent("kA", "tx1"))

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].conn)
}

func TestDispatch_HistoryStaysWithinCap(t *testing.T) {
	tr := newTestTracker(&testAdapter{}, nil)
	ctx := context.Background()
	_, _ = tr.Subscribe(ctx, "kA", "c1")

	for i := 0; i < 20; i++ {
		tr.Dispatch(ctx, rawEvent("kA", fmt.Sprintf("tx%d", i)))
	}

	v, err := tr.View("kA")
	require.NoError(t, err)
	require.Len(t, v.History, 5)
	assert.Equal(t, "tx15", v.History[0].Hash)
	assert.Equal(t, "tx19", v.History[4].Hash)
}

func TestDispatch_ComputePanicKeepsPriorState(t *testing.T) {
	rec := &recorder{}
	a := &testAdapter{panicOnSize: 2}
	tr := newTestTracker(a, rec)
	ctx := context.Background()
	_, err := tr.Subscribe(ctx, "kA", "c1")
	require.NoError(t, err)

	tr.Dispatch(ctx, rawEvent("kA", "tx1")) // history 1, ok
	tr.Dispatch(ctx, rawEvent("kA", "tx2")) // history 2, panics

	assert.Len(t, rec.all(), 1)
	v, err := tr.View("kA")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Metrics.Count)
	assert.Equal(t, 2, v.Snapshot.Version)
}

func TestDispatch_RefreshFailureKeepsLastGoodSnapshot(t *testing.T) {
	rec := &recorder{}
	a := &testAdapter{}
	tr := newTestTracker(a, rec)
	ctx := context.Background()
	_, err := tr.Subscribe(ctx, "kA", "c1")
	require.NoError(t, err)

	a.mu.Lock()
	a.failFetch = 10
	a.mu.Unlock()
	tr.Dispatch(ctx, rawEvent("kA", "tx1"))

	assert.Empty(t, rec.all())
	v, err := tr.View("kA")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Snapshot.Version)
	assert.Len(t, v.History, 1)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	tr := newTestTracker(&testAdapter{}, nil)
	ctx := context.Background()
	_, _ = tr.Subscribe(ctx, "kA", "c1")
	_, _ = tr.Subscribe(ctx, "kA", "c2")

	assert.True(t, tr.Unsubscribe("kA", "c1"))
	assert.False(t, tr.Unsubscribe("kA", "c1"))
	assert.Equal(t, []string{"c2"}, tr.Subscribers("kA"))

	assert.True(t, tr.Unsubscribe("kA", "c2"))
	assert.False(t, tr.Unsubscribe("kA", "c2"))
	assert.Equal(t, 0, tr.Stats().Entities)
}

func TestRemoveConnection(t *testing.T) {
	tr := newTestTracker(&testAdapter{}, nil)
	ctx := context.Background()
	_, _ = tr.Subscribe(ctx, "kA", "c1")
	_, _ = tr.Subscribe(ctx, "kB", "c1")
	_, _ = tr.Subscribe(ctx, "kB", "c2")

	assert.Equal(t, 2, tr.RemoveConnection("c1"))

	assert.False(t, tr.Tracked("kA"))
	assert.True(t, tr.Tracked("kB"))
	assert.Equal(t, Stats{Kind: domain.KindCoin, Entities: 1, Subscriptions: 1}, tr.Stats())
	assert.Zero(t, tr.RemoveConnection("c1"))
}

func TestView_UntrackedIsNotFound(t *testing.T) {
	tr := newTestTracker(&testAdapter{}, nil)

	_, err := tr.View("kA")

	assert.ErrorIs(t, err, ErrEntityNotFound)
}
