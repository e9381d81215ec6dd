package dbop

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/yokha/dbop-core"

// TelemetryParams is Params plus the span/metric knobs from §4.6. Embedding
// Params keeps every retry/scope/hook field available unchanged.
type TelemetryParams[T any] struct {
	Params[T]

	// OTELEnabled overrides DBOP_OTEL_ENABLED when non-nil.
	OTELEnabled *bool
	// MetricsEnabled overrides DBOP_OTEL_METRICS_ENABLED when non-nil.
	MetricsEnabled *bool

	SpanName    string
	BaseAttrs   map[string]string
	DBSystem    string
	DBUser      string
	DBName      string
	DBStatement string
}

func (tp TelemetryParams[T]) spanName() string {
	if tp.SpanName != "" {
		return tp.SpanName
	}
	return "dbop.operation"
}

func otelEnabledFromFlag(explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	return envFlagSet(os.Getenv("DBOP_OTEL_ENABLED"))
}

func metricsEnabledFromFlag(explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	return envFlagSet(os.Getenv("DBOP_OTEL_METRICS_ENABLED"))
}

func envFlagSet(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

var (
	metricsOnce       sync.Once
	opsCounter        metric.Int64Counter
	attemptsCounter   metric.Int64Counter
	durationHistogram metric.Float64Histogram
)

// ensureMetrics lazily creates the three process-wide instruments from
// §4.6. Safe to call repeatedly and concurrently; initialisation happens
// at most once.
func ensureMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		var err error
		opsCounter, err = meter.Int64Counter(
			"dbop_operations_total",
			metric.WithDescription("Total number of dbop-core operations."),
		)
		if err != nil {
			opsCounter = nil
		}
		attemptsCounter, err = meter.Int64Counter(
			"dbop_attempts_total",
			metric.WithDescription("Total number of dbop-core attempts (including retries)."),
		)
		if err != nil {
			attemptsCounter = nil
		}
		durationHistogram, err = meter.Float64Histogram(
			"dbop_operation_duration_seconds",
			metric.WithDescription("Latency of dbop-core operations."),
			metric.WithUnit("s"),
		)
		if err != nil {
			durationHistogram = nil
		}
	})
}

// tracingScope decorates an inner Scope with a child span per attempt,
// matching the source's wrap_sync/wrap_async closures.
type tracingScope struct {
	inner     Scope
	tracer    trace.Tracer
	spanName  string
	baseAttrs []attribute.KeyValue
	onAttempt func()

	n int
}

func (s *tracingScope) Run(ctx context.Context, readOnly bool, body func(ctx context.Context) error) error {
	s.n++
	if s.onAttempt != nil {
		s.onAttempt()
	}
	ctx, span := s.tracer.Start(ctx, s.spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	attrs := append(append([]attribute.KeyValue{}, s.baseAttrs...),
		attribute.Int("dbop.attempt.number", s.n),
		attribute.Bool("dbop.read_only", readOnly),
	)
	span.SetAttributes(attrs...)

	err := s.inner.Run(ctx, readOnly, body)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("dbop.attempt.outcome", "error"))
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("dbop.attempt.outcome", "success"))
	return nil
}

// ExecuteTraced is the telemetry-enriched superset of Execute (§4.6,
// "execute_traced_optional" in the external interface list). When
// telemetry is disabled — explicitly, or via DBOP_OTEL_ENABLED being unset
// — it is a zero-overhead pass-through to Execute and never touches the
// OTEL API. It preserves Execute's exact return-value and error semantics
// in every case (Testable Property 10).
func ExecuteTraced[T any](ctx context.Context, op func(ctx context.Context) (T, error), tp TelemetryParams[T]) (T, error) {
	if !otelEnabledFromFlag(tp.OTELEnabled) {
		return Execute(ctx, op, tp.Params)
	}

	tracer := otel.Tracer(instrumentationName)
	metricsActive := metricsEnabledFromFlag(tp.MetricsEnabled)
	if metricsActive {
		ensureMetrics()
	}

	attrs := buildAttributes(tp)
	metricAttrs := metric.WithAttributes(
		attribute.String("db.system", orUnknown(tp.DBSystem)),
		attribute.String("db.name", orUnknown(tp.DBName)),
		attribute.String("db.user", orUnknown(tp.DBUser)),
		attribute.Bool("dbop.read_only", tp.ReadOnly),
	)

	ctx, root := tracer.Start(ctx, tp.spanName(), trace.WithSpanKind(trace.SpanKindClient))
	defer root.End()
	root.SetAttributes(attrs...)

	origPre := tp.PreAttempt
	wrappedPre := func(ctx context.Context) error {
		if metricsActive && attemptsCounter != nil {
			attemptsCounter.Add(ctx, 1, metricAttrs)
		}
		root.AddEvent("dbop.pre_attempt")
		if origPre != nil {
			return origPre(ctx)
		}
		return nil
	}

	innerParams := tp.Params
	innerParams.PreAttempt = wrappedPre
	innerParams.Scope = &tracingScope{
		inner:     innerParams.scope(),
		tracer:    tracer,
		spanName:  tp.spanName() + ".attempt",
		baseAttrs: attrs,
	}

	start := time.Now()
	result, err := Execute(ctx, op, innerParams)

	outcome := "success"
	if err != nil {
		root.RecordError(err)
		root.SetAttributes(attribute.String("dbop.outcome", "error"))
		root.SetStatus(codes.Error, err.Error())
		outcome = "error"
	} else {
		root.SetAttributes(attribute.String("dbop.outcome", "success"))
	}

	if metricsActive && opsCounter != nil && durationHistogram != nil {
		finalAttrs := metric.WithAttributes(
			attribute.String("db.system", orUnknown(tp.DBSystem)),
			attribute.String("db.name", orUnknown(tp.DBName)),
			attribute.String("db.user", orUnknown(tp.DBUser)),
			attribute.Bool("dbop.read_only", tp.ReadOnly),
			attribute.String("dbop.outcome", outcome),
		)
		opsCounter.Add(ctx, 1, finalAttrs)
		durationHistogram.Record(ctx, time.Since(start).Seconds(), finalAttrs)
	}

	return result, err
}

// buildAttributes assembles the db.* and dbop.* root-span attributes from
// §4.6: database labels (when non-empty), the retry policy shape, the
// read-only hint, the overall timeout and any caller-supplied base
// attributes.
func buildAttributes[T any](tp TelemetryParams[T]) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 8+len(tp.BaseAttrs))
	if tp.DBSystem != "" {
		attrs = append(attrs, attribute.String("db.system", tp.DBSystem))
	}
	if tp.DBUser != "" {
		attrs = append(attrs, attribute.String("db.user", tp.DBUser))
	}
	if tp.DBName != "" {
		attrs = append(attrs, attribute.String("db.name", tp.DBName))
	}
	if tp.DBStatement != "" {
		attrs = append(attrs, attribute.String("db.statement", tp.DBStatement))
	}
	attrs = append(attrs,
		attribute.Int("dbop.max_retries", tp.Policy.MaxRetries),
		attribute.Float64("dbop.initial_delay", tp.Policy.InitialDelay.Seconds()),
		attribute.Float64("dbop.max_delay", tp.Policy.MaxDelay.Seconds()),
		attribute.Float64("dbop.jitter", tp.Policy.Jitter),
		attribute.Bool("dbop.read_only", tp.ReadOnly),
	)
	if tp.OverallTimeout > 0 {
		attrs = append(attrs, attribute.Float64("dbop.overall_timeout_s", tp.OverallTimeout.Seconds()))
	}
	for k, v := range tp.BaseAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
