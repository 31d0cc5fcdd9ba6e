package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// cumulativeSelector pins cumulative temporality regardless of
// OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE in the environment.
func cumulativeSelector(metric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func skipVerifyTLS() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
	}
}

// newMetricExporter creates the OTLP push exporter. gRPC is the default.
func newMetricExporter(ctx context.Context, cfg *Config) (metric.Exporter, error) {
	switch cfg.Protocol {
	case ProtocolHTTPProtobuf:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithTemporalitySelector(cumulativeSelector),
		}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint)))
		}
		if h := cfg.headerValues(); h != nil {
			opts = append(opts, otlpmetrichttp.WithHeaders(h))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithTemporalitySelector(cumulativeSelector),
		}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(stripScheme(cfg.Endpoint)))
		}
		if h := cfg.headerValues(); h != nil {
			opts = append(opts, otlpmetricgrpc.WithHeaders(h))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}
}

// newMeterProvider wires exporter into a PeriodicReader and attaches any
// extra readers. When promReg is non-nil a Prometheus pull reader is
// registered on it.
func newMeterProvider(cfg *Config, res *resource.Resource, exporter metric.Exporter, promReg *prometheus.Registry, readers ...metric.Reader) (*metric.MeterProvider, error) {
	periodic := []metric.PeriodicReaderOption{
		metric.WithInterval(cfg.Metrics.ExportInterval.Duration()),
	}
	if d := cfg.Metrics.ExportTimeout.Duration(); d > 0 {
		periodic = append(periodic, metric.WithTimeout(d))
	}

	opts := []metric.Option{
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter, periodic...)),
	}

	if promReg != nil {
		promExporter, err := otelprom.New(otelprom.WithRegisterer(promReg))
		if err != nil {
			return nil, fmt.Errorf("creating prometheus reader: %w", err)
		}
		opts = append(opts, metric.WithReader(promExporter))
	}

	for _, r := range readers {
		opts = append(opts, metric.WithReader(r))
	}

	return metric.NewMeterProvider(opts...), nil
}

// newSpanExporter creates the OTLP trace exporter.
func newSpanExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	switch cfg.Protocol {
	case ProtocolHTTPProtobuf:
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint)))
		}
		if h := cfg.headerValues(); h != nil {
			opts = append(opts, otlptracehttp.WithHeaders(h))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		var opts []otlptracegrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(stripScheme(cfg.Endpoint)))
		}
		if h := cfg.headerValues(); h != nil {
			opts = append(opts, otlptracegrpc.WithHeaders(h))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
		}
		return otlptracegrpc.New(ctx, opts...)
	}
}

// newTracerProvider batches spans to exporter with a parent-based ratio sampler.
func newTracerProvider(cfg *Config, res *resource.Resource, exporter trace.SpanExporter) *trace.TracerProvider {
	var sampler trace.Sampler
	if cfg.Traces.SamplingRate >= 1.0 {
		sampler = trace.AlwaysSample()
	} else if cfg.Traces.SamplingRate <= 0 {
		sampler = trace.NeverSample()
	} else {
		sampler = trace.TraceIDRatioBased(cfg.Traces.SamplingRate)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(sampler)),
	)
}

// newLoggerProvider exports bridged zap records over OTLP/HTTP.
func newLoggerProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	var opts []otlploghttp.Option
	if cfg.Logs.Endpoint != "" {
		opts = append(opts, otlploghttp.WithEndpoint(stripScheme(cfg.Logs.Endpoint)))
	}
	if h := cfg.headerValues(); h != nil {
		opts = append(opts, otlploghttp.WithHeaders(h))
	}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	} else if cfg.TLSSkipVerify {
		opts = append(opts, otlploghttp.WithTLSClientConfig(skipVerifyTLS()))
	}

	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}
