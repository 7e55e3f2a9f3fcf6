package tracker

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// entity is the owned aggregate for one tracked key: subscribers, snapshot,
// metrics, and history live together so they cannot drift apart.
type entity[S, R, M any] struct {
	key       string
	createdAt time.Time

	// subscribers membership transitions happen under Tracker.mu so that
	// the empty-set check and eviction are atomic.
	subscribers mapset.Set[string]

	// ready is closed once initialization finished; initErr is set before.
	ready   chan struct{}
	initErr error

	// mu serializes history append, refresh, and broadcast for this entity.
	mu          sync.Mutex
	snapshot    S
	metrics     M
	history     *History[R]
	lastRefresh time.Time
}

func newEntity[S, R, M any](key string, historyCap int, now time.Time) *entity[S, R, M] {
	return &entity[S, R, M]{
		key:         key,
		createdAt:   now,
		subscribers: mapset.NewSet[string](),
		ready:       make(chan struct{}),
		history:     NewHistory[R](historyCap),
	}
}

// isReady reports whether initialization completed successfully.
func (e *entity[S, R, M]) isReady() bool {
	select {
	case <-e.ready:
		return e.initErr == nil
	default:
		return false
	}
}

// View is a read-only copy of a tracked entity.
type View[S, R, M any] struct {
	Key         string    `json:"key"`
	Snapshot    S         `json:"snapshot"`
	Metrics     M         `json:"metrics"`
	History     []R       `json:"history"`
	Subscribers int       `json:"subscribers"`
	CreatedAt   time.Time `json:"createdAt"`
	LastRefresh time.Time `json:"lastRefresh"`
}

func (e *entity[S, R, M]) view() View[S, R, M] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return View[S, R, M]{
		Key:         e.key,
		Snapshot:    e.snapshot,
		Metrics:     e.metrics,
		History:     e.history.Items(),
		Subscribers: e.subscribers.Cardinality(),
		CreatedAt:   e.createdAt,
		LastRefresh: e.lastRefresh,
	}
}
