// Package dbop implements a database-agnostic retry executor: a bounded
// retry loop driven by exponential backoff with jitter (RetryPolicy), a
// pluggable transient-error Classifier, a pluggable transactional Scope,
// an optional PreAttemptHook, and an overall deadline, plus a telemetry
// wrapper (ExecuteTraced) that layers OTEL spans and metrics around the
// same semantics without changing them.
package dbop
