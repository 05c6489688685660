package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cadeo/cadeo-dashboard/dashboard"
)

// DefaultCacheTTL is the validity window of cached query results
const DefaultCacheTTL = 10 * time.Minute

// Clock returns the current time. Tests inject a fake one.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FetchFunc fetches a fresh value from a data source
type FetchFunc[T any] func(ctx context.Context) (T, error)

// LoaderOptions configures a Loader
type LoaderOptions struct {
	TTL     time.Duration // validity window, DefaultCacheTTL when zero
	Timeout time.Duration // per-attempt fetch timeout, none when zero
	Retries int           // extra attempts after a timed-out fetch
	Clock   Clock
	Metrics *Metrics
	Logger  *slog.Logger
}

// Loader is a read-through cache around one data source query. Within the
// validity window every caller gets the same value; after it, the first
// caller refetches and concurrent callers share that single fetch. A failed
// fetch is never cached and leaves the previous value in place until it
// expires.
type Loader[T any] struct {
	key   string
	fetch FetchFunc[T]
	opts  LoaderOptions

	mu         sync.RWMutex
	value      T
	fetchedAt  time.Time
	loaded     bool
	generation uint64 // bumped by Invalidate

	group singleflight.Group
}

// NewLoader creates a loader identified by key
func NewLoader[T any](key string, fetch FetchFunc[T], opts LoaderOptions) *Loader[T] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader[T]{key: key, fetch: fetch, opts: opts}
}

// Key returns the cache key of the loader
func (l *Loader[T]) Key() string {
	return l.key
}

// Load returns the cached value while it is valid and fetches a fresh one
// otherwise. Fetch failures are returned as DATA_UNAVAILABLE. A caller whose
// ctx ends stops waiting; the shared fetch carries on for the others.
func (l *Loader[T]) Load(ctx context.Context) (T, error) {
	var zero T

	if value, ok := l.cached(); ok {
		l.opts.Metrics.cacheHit(l.key)
		return value, nil
	}
	l.opts.Metrics.cacheMiss(l.key)

	ch := l.group.DoChan(l.key, func() (any, error) {
		// Another flight may have refreshed the value while we waited.
		if value, ok := l.cached(); ok {
			return value, nil
		}
		return l.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			l.opts.Logger.Debug("Shared in-flight fetch", slog.String("cache_key", l.key))
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, dashboard.DataUnavailable(l.key, ctx.Err())
	}
}

// Invalidate drops the cached value so the next Load fetches. A fetch
// already in flight still answers its own callers but is not cached, and
// later callers do not join it.
func (l *Loader[T]) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	l.value = zero
	l.loaded = false
	l.fetchedAt = time.Time{}
	l.generation++
	l.group.Forget(l.key)
}

// FetchedAt returns when the cached value was fetched, zero if nothing is
// cached
func (l *Loader[T]) FetchedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fetchedAt
}

func (l *Loader[T]) cached() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.loaded || l.opts.Clock.Now().Sub(l.fetchedAt) >= l.opts.TTL {
		var zero T
		return zero, false
	}
	return l.value, true
}

func (l *Loader[T]) refresh(ctx context.Context) (T, error) {
	// The fetch is shared by every waiting caller, so it must not die with
	// the request that happened to start it.
	fetchCtx := context.WithoutCancel(ctx)

	l.mu.RLock()
	generation := l.generation
	l.mu.RUnlock()

	var (
		value T
		err   error
	)
	for attempt := 0; attempt <= l.opts.Retries; attempt++ {
		start := l.opts.Clock.Now()
		value, err = l.fetchOnce(fetchCtx)
		l.opts.Metrics.observeFetch(l.key, l.opts.Clock.Now().Sub(start), err)

		if err == nil {
			break
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			break
		}
		l.opts.Logger.Warn("Fetch timed out",
			slog.String("cache_key", l.key),
			slog.Int("attempt", attempt+1),
			slog.Duration("timeout", l.opts.Timeout))
	}

	if err != nil {
		l.opts.Logger.Error("Fetch failed",
			slog.String("cache_key", l.key),
			slog.String("error", err.Error()))
		var zero T
		return zero, dashboard.DataUnavailable(l.key, err)
	}

	l.mu.Lock()
	stale := l.generation != generation
	if !stale {
		l.value = value
		l.fetchedAt = l.opts.Clock.Now()
		l.loaded = true
	}
	l.mu.Unlock()

	if stale {
		l.opts.Logger.Debug("Discarded fetch started before invalidation", slog.String("cache_key", l.key))
		return value, nil
	}

	l.opts.Logger.Info("Fetched fresh data", slog.String("cache_key", l.key))
	return value, nil
}

type fetchResult[T any] struct {
	value T
	err   error
}

// fetchOnce runs one attempt. The attempt is abandoned when its timeout
// fires even if the source ignores ctx.
func (l *Loader[T]) fetchOnce(ctx context.Context) (T, error) {
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	done := make(chan fetchResult[T], 1)
	go func() {
		var res fetchResult[T]
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("fetch panicked: %v", r)
			}
			done <- res
		}()
		res.value, res.err = l.fetch(ctx)
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
