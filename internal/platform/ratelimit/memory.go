package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepInterval is how many checks pass between scans for expired buckets.
const sweepInterval = 1024

type bucket struct {
	count   int64
	resetAt time.Time
}

// MemoryBackend keeps counters in process memory. Counters are not shared
// between instances.
type MemoryBackend struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	checks  int
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{buckets: make(map[string]*bucket), now: time.Now}
}

// NewMemoryBackendWithClock returns a MemoryBackend that reads time from now.
func NewMemoryBackendWithClock(now func() time.Time) *MemoryBackend {
	m := NewMemoryBackend()
	m.now = now
	return m
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Check(_ context.Context, p Params) (Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checks++
	if m.checks%sweepInterval == 0 {
		m.sweep(now)
	}

	b, ok := m.buckets[p.Key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(p.Window)}
		m.buckets[p.Key] = b
	}
	b.count++
	return result(b.count, p.Limit, b.resetAt), nil
}

// sweep drops expired buckets. Callers hold m.mu.
func (m *MemoryBackend) sweep(now time.Time) {
	for k, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, k)
		}
	}
}

// Len returns the number of tracked keys.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
