package resilience

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"meetpoint/internal/models"
)

// Guard wraps calls to one upstream dependency with a breaker, retries and a per-attempt timeout
type Guard struct {
	Name    string
	Breaker *CircuitBreaker
	Retry   RetryPolicy
	// Timeout bounds each attempt; zero means no per-attempt limit
	Timeout time.Duration
	// IsFailure decides whether an error counts against the breaker.
	// A nil func counts every error.
	IsFailure func(error) bool
	Logger    *zap.Logger
	Observer  Observer
}

func (g *Guard) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

func (g *Guard) observer() Observer {
	if g.Observer == nil {
		return NopObserver{}
	}
	return g.Observer
}

func (g *Guard) countsAsFailure(err error) bool {
	if g.IsFailure == nil {
		return true
	}
	return g.IsFailure(err)
}

// Call runs fn under g. Admission is decided once, retries happen inside that
// decision, and the breaker sees a single outcome per Call.
// Errors that are not already typed are returned as KindUnavailable.
func Call[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	log := g.logger().With(zap.String("dependency", g.Name), zap.String("op", op))

	trial := false
	if g.Breaker != nil {
		var err error
		trial, err = g.Breaker.Allow()
		if err != nil {
			log.Debug("call rejected by circuit breaker")
			g.observer().CallFinished(g.Name, op, OutcomeRejected, time.Since(start))
			return zero, models.NewError(models.KindUnavailable, g.Name+"."+op, "circuit breaker is open", err)
		}
	}

	value, err := runAttempts(ctx, g, log, op, fn)

	outcome := g.record(ctx, trial, err)
	g.observer().CallFinished(g.Name, op, outcome, time.Since(start))

	if err != nil {
		if models.KindOf(err) != "" {
			return zero, err
		}
		return zero, models.NewError(models.KindUnavailable, g.Name+"."+op, "upstream call failed", err)
	}
	return value, nil
}

func runAttempts[T any](ctx context.Context, g *Guard, log *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	bo := g.Retry.newBackOff()
	attempts := g.Retry.attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if g.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, g.Timeout)
		}
		value, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return value, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == attempts || !g.Retry.retryable(err) {
			break
		}

		delay := bo.NextBackOff()
		log.Warn("retrying upstream call",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		g.observer().Retried(g.Name, op, attempt, delay)

		if sleepErr := g.Retry.sleep(ctx, delay); sleepErr != nil {
			break
		}
	}

	return zero, lastErr
}

// record reports the call outcome to the breaker
func (g *Guard) record(ctx context.Context, trial bool, err error) Outcome {
	switch {
	case err == nil:
		if g.Breaker != nil {
			g.Breaker.RecordSuccess(trial)
		}
		return OutcomeSuccess
	case errors.Is(ctx.Err(), context.Canceled):
		if trial {
			g.Breaker.ReleaseTrial()
		}
		return OutcomeAbandoned
	case !g.countsAsFailure(err):
		if g.Breaker != nil {
			g.Breaker.RecordSuccess(trial)
		}
		return OutcomeSuccess
	default:
		if g.Breaker != nil {
			g.Breaker.RecordFailure(trial)
		}
		g.logger().Warn("upstream call failed",
			zap.String("dependency", g.Name),
			zap.Error(err))
		return OutcomeFailure
	}
}
