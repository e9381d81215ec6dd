package dbop

import "context"

// Scope wraps one attempt body in a transactional boundary. Go has no
// async/sync function coloring, so the source's separate AttemptScope and
// AttemptScopeAsync protocols collapse into this single context-aware
// interface (see SPEC_FULL.md's resolution of that open question):
// whatever the body does internally, Run is the one enter/exit boundary.
//
// Implementations MUST guarantee:
//   - body runs inside an active transaction.
//   - on body success, the work is committed (or the nested savepoint is
//     released and the outer transaction committed).
//   - on body failure, all work performed inside the scope is undone, and
//     the original body error is what Run returns — cleanup failures
//     (release/rollback SQL) are logged and suppressed, never substituted
//     for the body's own error.
//   - readOnly, when true, is applied best-effort; failure to apply it
//     must not fail the scope.
type Scope interface {
	Run(ctx context.Context, readOnly bool, body func(ctx context.Context) error) error
}

// PreAttemptHook is a parameterless per-attempt side effect invoked once
// before the body, inside the active transaction where one exists. A nil
// hook is a no-op.
type PreAttemptHook func(ctx context.Context) error

// nullScope runs the body directly with no transactional boundary. It is
// the fallback used by Execute when no Scope is supplied.
type nullScope struct{}

func (nullScope) Run(ctx context.Context, _ bool, body func(ctx context.Context) error) error {
	return body(ctx)
}

// NullScope is the no-op Scope used when a caller has no transactional
// resource to wrap — e.g. operations that don't touch a database at all.
var NullScope Scope = nullScope{}
