package cache

import (
	"context"

	"go.uber.org/zap"
)

// Tier names reported to LookupObserver
const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
)

// LookupObserver is notified of every tier lookup
type LookupObserver interface {
	CacheLookup(cache, tier string, hit bool)
}

// Layered reads through a fast tier to an optional slower one and backfills on a slow-tier hit.
// Tier errors are logged and treated as misses.
type Layered[T any] struct {
	name     string
	fast     Store[T]
	slow     Store[T]
	logger   *zap.Logger
	observer LookupObserver
}

// LayeredOption configures a Layered cache
type LayeredOption[T any] func(*Layered[T])

// WithLogger sets the logger used for tier errors
func WithLogger[T any](logger *zap.Logger) LayeredOption[T] {
	return func(l *Layered[T]) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver sets the lookup observer
func WithObserver[T any](o LookupObserver) LayeredOption[T] {
	return func(l *Layered[T]) { l.observer = o }
}

// NewLayered builds a cache over fast and slow; slow may be nil
func NewLayered[T any](name string, fast, slow Store[T], opts ...LayeredOption[T]) *Layered[T] {
	l := &Layered[T]{
		name:   name,
		fast:   fast,
		slow:   slow,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get never returns an error; a failing tier is reported as a miss
func (l *Layered[T]) Get(ctx context.Context, key string) (T, bool, error) {
	if v, ok := l.lookup(ctx, TierMemory, l.fast, key); ok {
		return v, true, nil
	}
	if l.slow != nil {
		if v, ok := l.lookup(ctx, TierPersistent, l.slow, key); ok {
			if err := l.fast.Set(ctx, key, v); err != nil {
				l.logger.Warn("cache backfill failed", zap.String("cache", l.name), zap.Error(err))
			}
			return v, true, nil
		}
	}
	var zero T
	return zero, false, nil
}

// Set writes every tier; errors are logged, never returned
func (l *Layered[T]) Set(ctx context.Context, key string, value T) error {
	if err := l.fast.Set(ctx, key, value); err != nil {
		l.logger.Warn("cache write failed", zap.String("cache", l.name), zap.String("tier", TierMemory), zap.Error(err))
	}
	if l.slow != nil {
		if err := l.slow.Set(ctx, key, value); err != nil {
			l.logger.Warn("cache write failed", zap.String("cache", l.name), zap.String("tier", TierPersistent), zap.Error(err))
		}
	}
	return nil
}

func (l *Layered[T]) lookup(ctx context.Context, tier string, s Store[T], key string) (T, bool) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		l.logger.Warn("cache read failed", zap.String("cache", l.name), zap.String("tier", tier), zap.Error(err))
		ok = false
	}
	if l.observer != nil {
		l.observer.CacheLookup(l.name, tier, ok)
	}
	return v, ok
}
