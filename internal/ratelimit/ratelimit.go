// Package ratelimit implements a per-client sliding window request limit
// backed by process memory or Redis.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result describes the state of a key after a request was counted.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Store counts requests per key inside a sliding window. A request is only
// recorded when it is allowed.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// Limiter applies one limit to one group of routes.
type Limiter struct {
	name   string
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// New creates a Limiter allowing limit requests per window for each client.
func New(name string, store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{name: name, store: store, limit: limit, window: window, now: time.Now}
}

// Name identifies the limiter in keys, logs and metrics.
func (l *Limiter) Name() string { return l.name }

// Allow counts a request from client.
func (l *Limiter) Allow(ctx context.Context, client string) (Result, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", l.name, client)
	return l.store.Allow(ctx, key, l.limit, l.window, l.now())
}

// sweepEvery controls how often the memory store drops idle keys.
const sweepEvery = 1024

// MemoryStore keeps request timestamps in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	hits  map[string][]time.Time
	calls int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

// Allow implements Store.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now, window)
	}

	hits := prune(s.hits[key], now.Add(-window))
	res := Result{Limit: limit}
	if len(hits) < limit {
		hits = append(hits, now)
		res.Allowed = true
	}
	s.hits[key] = hits

	res.Remaining = max(limit-len(hits), 0)
	res.Reset = now.Add(window)
	if len(hits) > 0 {
		res.Reset = hits[0].Add(window)
	}
	return res, nil
}

func (s *MemoryStore) sweep(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	for key, hits := range s.hits {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(s.hits, key)
		} else {
			s.hits[key] = hits
		}
	}
}

// prune drops timestamps at or before cutoff. hits is in ascending order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
