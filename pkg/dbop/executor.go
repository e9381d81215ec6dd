package dbop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Params configures one Execute call. There is no args/kwargs tuple as in
// the source: Go closures already capture whatever the operation needs, so
// op takes only a context.
type Params[T any] struct {
	// Policy is the backoff schedule. The zero value passes Validate and
	// allows a single attempt with no retries; use DefaultRetryPolicy()
	// as a starting point for a retrying schedule.
	Policy RetryPolicy

	// RetryOn restricts which failures are even eligible for
	// classification. A nil RetryOn means every failure is eligible
	// (the source's default retry_on=(Exception,)). When non-nil and it
	// returns false for a given error, that error propagates
	// immediately without ever reaching Classifier.
	RetryOn func(err error) bool

	// Classifier decides whether an eligible failure is transient. A
	// nil Classifier treats every eligible failure as transient.
	Classifier Classifier

	// SwallowOnFailure, when true, causes a terminal failure (exhaustion
	// or a non-transient classification) to return Default instead of
	// the error. This is the source's raises=false; Go's zero value
	// (false) matches the source's raises=true default.
	SwallowOnFailure bool
	// Default is returned when SwallowOnFailure is true and the call
	// ends in terminal failure.
	Default T

	// Scope wraps each attempt's body in a transactional boundary. Nil
	// means NullScope.
	Scope Scope
	// PreAttempt runs once per attempt, before the body, inside the
	// active scope. Nil is a no-op.
	PreAttempt PreAttemptHook
	// ReadOnly is forwarded to Scope.Run.
	ReadOnly bool

	// OverallTimeout bounds the whole Execute call, including backoff
	// sleeps. Zero means no deadline.
	OverallTimeout time.Duration

	Logger *slog.Logger
}

func (p Params[T]) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p Params[T]) scope() Scope {
	if p.Scope != nil {
		return p.Scope
	}
	return NullScope
}

// Execute runs op with bounded retry, exponential backoff, an optional
// transactional scope, an optional pre-attempt hook and an optional
// overall deadline. On terminal failure the last observed error is returned
// verbatim (or Default, if SwallowOnFailure is set), with one exception: a
// failure matching context.DeadlineExceeded, or a deadline that expires
// during a backoff sleep, is returned wrapped in ErrDeadlineExceeded.
// Cancellation of ctx is returned unchanged and never swallowed.
func Execute[T any](ctx context.Context, op func(ctx context.Context) (T, error), p Params[T]) (T, error) {
	if err := p.Policy.Validate(); err != nil {
		var zero T
		return zero, err
	}

	if p.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.OverallTimeout)
		defer cancel()
	}

	delays := p.Policy.Backoff()
	scope := p.scope()
	log := p.logger()

	var lastErr error
	attempt := 0

	for {
		attempt++
		isLastAttempt := attempt-1 >= len(delays)

		var result T
		runErr := scope.Run(ctx, p.ReadOnly, func(ctx context.Context) error {
			if p.PreAttempt != nil {
				if err := p.PreAttempt(ctx); err != nil {
					return err
				}
			}
			var err error
			result, err = op(ctx)
			return err
		})

		if runErr == nil {
			log.Debug("dbop: attempt succeeded", "attempt", attempt)
			return result, nil
		}

		lastErr = runErr
		log.Debug("dbop: attempt failed", "attempt", attempt, "err", runErr)

		if errors.Is(runErr, context.Canceled) {
			var zero T
			return zero, runErr
		}
		if errors.Is(runErr, context.DeadlineExceeded) {
			return p.terminal(fmt.Errorf("%w: %v", ErrDeadlineExceeded, runErr))
		}

		if p.RetryOn != nil && !p.RetryOn(runErr) {
			var zero T
			return zero, runErr
		}

		transient := true
		if p.Classifier != nil {
			transient = func() (ok bool) {
				defer func() {
					if recover() != nil {
						ok = false
					}
				}()
				return p.Classifier(runErr)
			}()
		}
		if !transient || isLastAttempt {
			return p.terminal(lastErr)
		}

		delay := delays[attempt-1]
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.Canceled) {
				var zero T
				return zero, ctx.Err()
			}
			return p.terminal(fmt.Errorf("%w: %v", ErrDeadlineExceeded, ctx.Err()))
		case <-timer.C:
		}
	}
}

func (p Params[T]) terminal(err error) (T, error) {
	if p.SwallowOnFailure {
		return p.Default, nil
	}
	var zero T
	return zero, err
}
