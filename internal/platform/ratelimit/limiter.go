// Package ratelimit implements a fixed-window request counter behind a
// pluggable storage backend.
//
// A fixed window admits up to twice the limit across a window boundary in
// the worst case. The limiter is meant for coarse abuse prevention.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/portal/internal/platform/telemetry"
)

// Params identifies one counter and its limit. Key is built by the caller,
// usually "purpose:identifier".
type Params struct {
	Key    string
	Limit  int
	Window time.Duration
}

// Result reports whether the hit is admitted, how many hits are left in the
// current window and when the window ends.
type Result struct {
	OK        bool
	Remaining int
	ResetAt   time.Time
}

// Backend stores fixed-window counters. Check increments the counter for
// p.Key atomically and starts a new window of p.Window when none is active.
type Backend interface {
	Name() string
	Check(ctx context.Context, p Params) (Result, error)
}

// Factory builds the shared backend. It is called at most once per Limiter.
type Factory func() (Backend, error)

// Limiter selects its backend lazily on first use and never returns an
// error: when the backend fails the hit is counted in process memory
// instead.
type Limiter struct {
	factory Factory
	logger  zerolog.Logger
	timeout time.Duration

	selectOnce sync.Once
	backend    Backend

	memory   *MemoryBackend
	warnOnce sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithTimeout bounds each backend call. Zero leaves calls unbounded.
func WithTimeout(d time.Duration) Option {
	return func(l *Limiter) { l.timeout = d }
}

// WithMemoryBackend replaces the in-process fallback, mainly so tests can
// control its clock.
func WithMemoryBackend(m *MemoryBackend) Option {
	return func(l *Limiter) { l.memory = m }
}

func New(factory Factory, logger zerolog.Logger, opts ...Option) *Limiter {
	l := &Limiter{factory: factory, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	if l.memory == nil {
		l.memory = NewMemoryBackend()
	}
	return l
}

// Backend returns the selected backend, running selection on first call.
// Concurrent first callers share one selection.
func (l *Limiter) Backend() Backend {
	l.selectOnce.Do(func() {
		if l.factory == nil {
			l.backend = l.memory
			return
		}
		b, err := l.factory()
		if err != nil || b == nil {
			l.logger.Warn().Err(err).Msg("rate limit backend unavailable, using in-memory counters")
			l.backend = l.memory
			return
		}
		l.backend = b
	})
	return l.backend
}

// Check counts one hit against p.Key.
func (l *Limiter) Check(ctx context.Context, p Params) Result {
	if p.Window <= 0 {
		p.Window = time.Second
	}

	backend := l.Backend()
	res, err := l.checkBackend(ctx, backend, p)
	if err != nil {
		telemetry.RateLimitBackendFailures.WithLabelValues(backend.Name()).Inc()
		l.warnOnce.Do(func() {
			l.logger.Warn().Err(err).
				Str("backend", backend.Name()).
				Msg("rate limit backend failed, falling back to in-memory counters")
		})
		backend = l.memory
		res, _ = l.memory.Check(ctx, p)
	}

	outcome := "allowed"
	if !res.OK {
		outcome = "blocked"
	}
	telemetry.RateLimitChecks.WithLabelValues(backend.Name(), outcome).Inc()
	return res
}

func (l *Limiter) checkBackend(ctx context.Context, b Backend, p Params) (res Result, err error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return b.Check(ctx, p)
}

// result derives the caller-facing result from a window's hit count.
func result(count int64, limit int, resetAt time.Time) Result {
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		OK:        count <= int64(limit),
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}
}
