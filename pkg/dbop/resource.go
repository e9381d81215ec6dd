package dbop

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// NewTelemetryResource builds an OTEL Resource tagged with serviceName and
// the DBOP_SERVICE_VERSION environment variable (§6). Exporter bootstrapping
// itself — wiring the resulting Resource into a TracerProvider/MeterProvider
// and pointing it at OTEL_EXPORTER_OTLP_ENDPOINT — stays an external
// collaborator's responsibility, as in spec.md §1.
func NewTelemetryResource(ctx context.Context, serviceName string, extraAttrs ...attribute.KeyValue) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersionKey.String(os.Getenv("DBOP_SERVICE_VERSION")),
	}
	attrs = append(attrs, extraAttrs...)

	return resource.New(
		ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcessPID(),
		resource.WithProcessExecutableName(),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
		resource.WithOS(),
		resource.WithContainer(),
		resource.WithHost(),
	)
}
