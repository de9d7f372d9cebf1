// Package cache implements the TTL buckets that sit in front of every
// upstream call. A bucket serves fresh entries without blocking, collapses
// concurrent refreshes of one key into a single compute, and falls back to
// the last good value when a refresh fails.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Entry is one cached value. Entries are replaced on refresh, never mutated.
type Entry[T any] struct {
	Value     T
	CreatedAt time.Time
	TTL       time.Duration
	Stale     bool
}

// Fresh reports whether the entry is still within its TTL at now.
func (e *Entry[T]) Fresh(now time.Time) bool {
	return now.Sub(e.CreatedAt) < e.TTL
}

// Result is what GetOrRefresh hands back to a caller.
type Result[T any] struct {
	Value T
	// Cached is true when the value came from an existing entry rather than
	// a refresh completed for this call.
	Cached bool
	Stale  bool
	Age    time.Duration
	// RefreshErr is the failure that caused a stale value to be served.
	RefreshErr error
}

// ComputeFunc produces a fresh value for a key.
type ComputeFunc[T any] func(ctx context.Context) (T, error)

type settings struct {
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Bucket.
type Option func(*settings)

// WithTimeout bounds every compute. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// Bucket caches values of one data class under a single TTL.
type Bucket[T any] struct {
	name   string
	ttl    time.Duration
	cfg    settings
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	entries map[string]*Entry[T]
	epoch   uint64

	// keyEpoch advances when a single key is invalidated.
	keyEpoch map[string]uint64

	group singleflight.Group
}

// New creates a bucket. ttl must be positive.
func New[T any](name string, ttl time.Duration, logger *zap.SugaredLogger, opts ...Option) *Bucket[T] {
	cfg := settings{timeout: 30 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bucket[T]{
		name:     name,
		ttl:      ttl,
		cfg:      cfg,
		logger:   logger.With("bucket", name),
		entries:  make(map[string]*Entry[T]),
		keyEpoch: make(map[string]uint64),
	}
}

// Name returns the bucket name.
func (b *Bucket[T]) Name() string { return b.name }

// TTL returns the bucket TTL.
func (b *Bucket[T]) TTL() time.Duration { return b.ttl }

// flight is shared by every caller waiting on one refresh.
type flight[T any] struct {
	entry *Entry[T]
	err   error
}

// GetOrRefresh returns the entry for key if it is fresh. Otherwise it runs
// compute once for all concurrent callers of key. On failure the previous
// entry, if any, is returned marked stale; with no previous entry the
// failure is returned.
func (b *Bucket[T]) GetOrRefresh(ctx context.Context, key string, compute ComputeFunc[T]) (Result[T], error) {
	now := b.cfg.now()
	if e, ok := b.lookup(key); ok && e.Fresh(now) {
		metrics.CacheRequests.WithLabelValues(b.name, "hit").Inc()
		return Result[T]{Value: e.Value, Cached: true, Age: now.Sub(e.CreatedAt)}, nil
	}

	return b.await(ctx, key, compute)
}

// Refresh recomputes key even if its entry is fresh, sharing an in-flight
// refresh if there is one. Failure handling matches GetOrRefresh.
func (b *Bucket[T]) Refresh(ctx context.Context, key string, compute ComputeFunc[T]) (Result[T], error) {
	return b.await(ctx, key, compute)
}

func (b *Bucket[T]) await(ctx context.Context, key string, compute ComputeFunc[T]) (Result[T], error) {
	ch := b.group.DoChan(key, func() (any, error) {
		return b.refresh(ctx, key, compute), nil
	})

	var zero Result[T]
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		f := res.Val.(flight[T])
		if f.err == nil {
			metrics.CacheRequests.WithLabelValues(b.name, "refresh").Inc()
			return Result[T]{Value: f.entry.Value}, nil
		}
		if f.entry != nil {
			metrics.CacheRequests.WithLabelValues(b.name, "stale").Inc()
			return Result[T]{
				Value:      f.entry.Value,
				Cached:     true,
				Stale:      true,
				Age:        b.cfg.now().Sub(f.entry.CreatedAt),
				RefreshErr: f.err,
			}, nil
		}
		metrics.CacheRequests.WithLabelValues(b.name, "error").Inc()
		return zero, f.err
	}
}

// refresh runs compute and installs its result. It never panics.
func (b *Bucket[T]) refresh(ctx context.Context, key string, compute ComputeFunc[T]) flight[T] {
	b.mu.RLock()
	epoch := [2]uint64{b.epoch, b.keyEpoch[key]}
	b.mu.RUnlock()

	cctx := ctx
	if b.cfg.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, b.cfg.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		metrics.CacheRefreshDuration.WithLabelValues(b.name).Observe(time.Since(start).Seconds())
	}()

	value, err := b.safeCompute(cctx, compute)
	if err == nil {
		entry := &Entry[T]{Value: value, CreatedAt: b.cfg.now(), TTL: b.ttl}
		b.install(key, entry, epoch)
		return flight[T]{entry: entry}
	}

	b.logger.Warnw("cache refresh failed", "key", key, "error", err)
	prev, ok := b.lookup(key)
	if !ok {
		return flight[T]{err: err}
	}
	stale := &Entry[T]{Value: prev.Value, CreatedAt: prev.CreatedAt, TTL: prev.TTL, Stale: true}
	b.install(key, stale, epoch)
	return flight[T]{entry: stale, err: fmt.Errorf("%w: %w", errs.ErrStaleDataServed, err)}
}

func (b *Bucket[T]) safeCompute(ctx context.Context, compute ComputeFunc[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute panicked: %v", r)
		}
	}()
	value, err = compute(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return value, err
}

func (b *Bucket[T]) lookup(key string) (*Entry[T], bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[key]
	return e, ok
}

// install stores entry unless the bucket or key was invalidated since epoch was taken.
func (b *Bucket[T]) install(key string, entry *Entry[T], epoch [2]uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.epoch != epoch[0] || b.keyEpoch[key] != epoch[1] {
		return
	}
	b.entries[key] = entry
	metrics.CacheEntries.WithLabelValues(b.name).Set(float64(len(b.entries)))
}

// Peek returns the current entry for key without refreshing it.
func (b *Bucket[T]) Peek(key string) (Entry[T], bool) {
	e, ok := b.lookup(key)
	if !ok {
		return Entry[T]{}, false
	}
	return *e, true
}

// Invalidate drops key. A refresh already in flight for key will not store
// its result; callers arriving meanwhile share that refresh rather than
// starting another.
func (b *Bucket[T]) Invalidate(key string) {
	b.mu.Lock()
	delete(b.entries, key)
	b.keyEpoch[key]++
	metrics.CacheEntries.WithLabelValues(b.name).Set(float64(len(b.entries)))
	b.mu.Unlock()
}

// InvalidateAll drops every entry, with the same in-flight rule as Invalidate.
func (b *Bucket[T]) InvalidateAll() {
	b.mu.Lock()
	n := len(b.entries)
	b.entries = make(map[string]*Entry[T])
	b.epoch++
	metrics.CacheEntries.WithLabelValues(b.name).Set(0)
	b.mu.Unlock()
	b.logger.Infow("cache invalidated", "entries", n)
}

// Len returns the number of stored entries.
func (b *Bucket[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Close releases all entries at shutdown.
func (b *Bucket[T]) Close() {
	b.InvalidateAll()
}

// IsStale reports whether err marks a stale-served refresh failure.
func IsStale(err error) bool {
	return errors.Is(err, errs.ErrStaleDataServed)
}
