package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the meter provider and its optional trace and log siblings.
//
// The provider is handed to callers explicitly. Install additionally
// publishes it as the process-wide default for libraries that only know
// the global API.
type Telemetry struct {
	config   *Config
	resource *resource.Resource

	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *trace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
	promRegistry   *prometheus.Registry

	shutdownOnce sync.Once
	shutdownErr  error

	// Health tracking
	healthy   atomic.Bool
	degraded  atomic.Bool
	lastError atomic.Value // string
}

// Option customizes New.
type Option func(*options)

type options struct {
	metricExporter     sdkmetric.Exporter
	metricExporterFunc func(context.Context, *Config) (sdkmetric.Exporter, error)
	readers            []sdkmetric.Reader
	spanExporter       trace.SpanExporter
	instanceID         string
}

// WithMetricExporter replaces the OTLP push exporter.
func WithMetricExporter(exp sdkmetric.Exporter) Option {
	return func(o *options) { o.metricExporter = exp }
}

// WithMetricExporterFunc replaces the OTLP exporter constructor.
func WithMetricExporterFunc(fn func(context.Context, *Config) (sdkmetric.Exporter, error)) Option {
	return func(o *options) { o.metricExporterFunc = fn }
}

// WithReader attaches an additional metric reader to the provider.
func WithReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.readers = append(o.readers, r) }
}

// WithSpanExporter replaces the OTLP trace exporter. Only used when traces are enabled.
func WithSpanExporter(exp trace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithInstanceID fixes service.instance.id instead of a random UUID.
func WithInstanceID(id string) Option {
	return func(o *options) { o.instanceID = id }
}

// New builds the export pipeline.
//
// Any failure is returned as an *InitError; nothing is installed globally
// and nothing panics. A collector that is unreachable is not a failure
// here: export errors surface later through the otel error handler.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Kind: KindConfig, Err: err}
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.instanceID == "" {
		o.instanceID = uuid.NewString()
	}

	res, err := newServiceResource(cfg, o.instanceID)
	if err != nil {
		return nil, &InitError{Kind: KindResource, Err: err}
	}

	exporter := o.metricExporter
	if exporter == nil {
		build := o.metricExporterFunc
		if build == nil {
			build = newMetricExporter
		}
		exporter, err = build(ctx, cfg)
		if err != nil {
			return nil, initErr(KindExporter, "creating metric exporter: %w", err)
		}
	}

	t := &Telemetry{
		config:   cfg,
		resource: res,
	}

	if cfg.Metrics.Prometheus.Enabled {
		t.promRegistry = prometheus.NewRegistry()
	}

	mp, err := newMeterProvider(cfg, res, exporter, t.promRegistry, o.readers...)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, &InitError{Kind: KindExporter, Err: err}
	}
	t.meterProvider = mp

	if cfg.Traces.Enabled {
		spanExporter := o.spanExporter
		if spanExporter == nil {
			spanExporter, err = newSpanExporter(ctx, cfg)
			if err != nil {
				_ = mp.Shutdown(ctx)
				return nil, initErr(KindExporter, "creating trace exporter: %w", err)
			}
		}
		t.tracerProvider = newTracerProvider(cfg, res, spanExporter)
	}

	if cfg.Logs.Enabled {
		lp, err := newLoggerProvider(ctx, cfg, res)
		if err != nil {
			_ = t.shutdownProviders(ctx)
			return nil, initErr(KindExporter, "creating log exporter: %w", err)
		}
		t.loggerProvider = lp
	}

	t.healthy.Store(true)
	return t, nil
}

// Install registers the providers as the process-wide defaults.
//
// Later installs replace earlier ones; the last call wins.
func (t *Telemetry) Install() {
	if t == nil {
		return
	}
	otel.SetMeterProvider(t.meterProvider)
	if t.tracerProvider != nil {
		otel.SetTracerProvider(t.tracerProvider)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// MeterProvider returns the SDK provider.
func (t *Telemetry) MeterProvider() *sdkmetric.MeterProvider {
	if t == nil {
		return nil
	}
	return t.meterProvider
}

// Resource returns the resource attached to every exported batch.
func (t *Telemetry) Resource() *resource.Resource {
	if t == nil {
		return nil
	}
	return t.resource
}

// Meter returns a meter for the given instrumentation scope.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

// Tracer returns a tracer for the given instrumentation scope.
//
// Returns the global tracer, a no-op by default, when traces are disabled.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// LoggerProvider returns the log provider for the zap bridge.
//
// Returns nil if logs export is disabled.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.loggerProvider == nil {
		return nil
	}
	return t.loggerProvider
}

// PrometheusHandler serves the pull reader, or nil when it is disabled.
func (t *Telemetry) PrometheusHandler() http.Handler {
	if t == nil || t.promRegistry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.promRegistry, promhttp.HandlerOpts{})
}

// HandleError records an asynchronous export failure.
func (t *Telemetry) HandleError(err error) {
	if t == nil || err == nil {
		return
	}
	t.degraded.Store(true)
	t.lastError.Store(err.Error())
}

// Shutdown flushes pending data and stops every provider.
//
// Without a deadline on ctx the configured shutdown timeout applies.
// Calls after the first return the first result.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	t.shutdownOnce.Do(func() {
		if _, ok := ctx.Deadline(); !ok && t.config != nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
			defer cancel()
		}
		t.shutdownErr = t.shutdownProviders(ctx)
		t.healthy.Store(false)
	})
	return t.shutdownErr
}

func (t *Telemetry) shutdownProviders(ctx context.Context) error {
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if t.loggerProvider != nil {
		if err := t.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

// ForceFlush immediately exports all pending telemetry data.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace flush: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter flush: %w", err))
		}
	}

	if t.loggerProvider != nil {
		if err := t.loggerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log flush: %w", err))
		}
	}

	return errors.Join(errs...)
}

// HealthStatus describes the pipeline state.
type HealthStatus struct {
	Healthy   bool   `json:"healthy"`
	Degraded  bool   `json:"degraded"`
	LastError string `json:"last_error,omitempty"`
}

// Health returns the current telemetry health status.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Healthy: false, Degraded: true}
	}
	status := HealthStatus{
		Healthy:  t.healthy.Load(),
		Degraded: t.degraded.Load(),
	}
	if s, ok := t.lastError.Load().(string); ok {
		status.LastError = s
	}
	return status
}
