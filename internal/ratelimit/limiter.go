package ratelimit

import (
	"sync"
	"time"
)

// Limiter decides whether a caller identified by key may proceed.
// Handlers depend on this interface so the policy can be swapped
// without touching them.
type Limiter interface {
	Allow(key string) bool
}

type window struct {
	count int
	start time.Time
}

// FixedWindow allows up to limit requests per key within each window.
// Counters reset when a key's window elapses; stale keys are pruned
// lazily on the requests that touch them.
type FixedWindow struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	entries map[string]*window

	now func() time.Time
}

func NewFixedWindow(limit int, period time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:   limit,
		period:  period,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

func (f *FixedWindow) Allow(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	e, ok := f.entries[key]
	if !ok || now.Sub(e.start) >= f.period {
		f.entries[key] = &window{count: 1, start: now}
		f.prune(now)
		return true
	}
	if e.count >= f.limit {
		return false
	}
	e.count++
	return true
}

func (f *FixedWindow) prune(now time.Time) {
	for k, e := range f.entries {
		if now.Sub(e.start) >= f.period {
			delete(f.entries, k)
		}
	}
}
