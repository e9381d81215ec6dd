package dbop

import "errors"

// Sentinel errors of the executor. Apart from deadline failures, which are
// wrapped in ErrDeadlineExceeded, the executor does not wrap or rewrite an
// operation's error (see Execute).
var (
	// ErrAsyncScopeRequired documents, rather than enforces, the collapse
	// of the source's separate AttemptScope/AttemptScopeAsync protocols
	// into the single Scope interface: Go has no coroutine/async
	// distinction, so there is no sync-vs-async scope mismatch left for
	// Execute to detect at runtime. It is kept as a named sentinel for
	// that design decision and is never returned by this package.
	ErrAsyncScopeRequired = errors.New("dbop: async scope required but none provided")

	// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate when the
	// policy violates the invariants in the data model (negative
	// max_retries, max_delay < initial_delay, jitter outside [0,1]).
	ErrInvalidRetryPolicy = errors.New("dbop: invalid retry policy")

	// ErrDeadlineExceeded wraps any attempt failure that matches
	// context.DeadlineExceeded (whether from OverallTimeout, the caller's
	// ctx, or a timeout inside the operation), and a context deadline that
	// expires during a backoff sleep.
	ErrDeadlineExceeded = errors.New("dbop: overall deadline exceeded")
)
