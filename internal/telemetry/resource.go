package telemetry

import (
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// NewResource returns a descriptor carrying only service.name.
// The name is not validated; an empty string is kept as-is.
func NewResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)
}

// newServiceResource adds version and instance identity on top of NewResource.
// We build a standalone resource instead of merging resource.Default() to
// avoid schema URL conflicts across semconv versions.
func newServiceResource(cfg *Config, instanceID string) (*resource.Resource, error) {
	extra := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.ServiceInstanceID(instanceID),
	)
	return resource.Merge(NewResource(cfg.ServiceName), extra)
}
