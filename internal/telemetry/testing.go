package telemetry

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry provides in-memory telemetry for testing.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	MetricReader *sdkmetric.ManualReader
}

// NewTestTelemetry creates telemetry with in-memory readers for testing.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Traces.Enabled = true

	spanRecorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(spanRecorder))

	reader := sdkmetric.NewManualReader()
	res := NewResource(cfg.ServiceName)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	tt := &TestTelemetry{
		Telemetry: &Telemetry{
			config:         cfg,
			resource:       res,
			tracerProvider: tp,
			meterProvider:  mp,
		},
		SpanRecorder: spanRecorder,
		MetricReader: reader,
	}
	tt.healthy.Store(true)
	return tt
}

// Spans returns all recorded spans.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpanByName finds a span by name, or nil if not found.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range t.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// AssertSpanExists verifies a span with the given name was recorded.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		tb.Errorf("expected span %q not found, got: %v", name, t.spanNames())
	}
}

// AssertSpanAttribute verifies a span has the expected attribute.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName string, key string, expected interface{}) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not found", spanName)
	}
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			if got := attrValue(attr.Value); got != expected {
				tb.Errorf("span %q attribute %q = %v, want %v", spanName, key, got, expected)
			}
			return
		}
	}
	tb.Errorf("span %q has no attribute %q", spanName, key)
}

func (t *TestTelemetry) spanNames() []string {
	spans := t.Spans()
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	return names
}

func attrValue(v attribute.Value) interface{} {
	switch v.Type() {
	case attribute.BOOL:
		return v.AsBool()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.STRING:
		return v.AsString()
	default:
		return v.AsInterface()
	}
}

// Collect reads the current state of every instrument.
func (t *TestTelemetry) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := t.MetricReader.Collect(ctx, &rm)
	return rm, err
}

// GaugeValues returns the float64 gauge points recorded under name.
func (t *TestTelemetry) GaugeValues(tb testing.TB, name string) []metricdata.DataPoint[float64] {
	tb.Helper()
	rm, err := t.Collect(context.Background())
	if err != nil {
		tb.Fatalf("collect metrics: %v", err)
	}
	return FindFloat64Gauge(rm, name)
}

// FindMetric returns the first metric called name, with its scope name.
func FindMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, string, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, sm.Scope.Name, true
			}
		}
	}
	return metricdata.Metrics{}, "", false
}

// FindFloat64Gauge returns the data points of a float64 gauge, or nil.
func FindFloat64Gauge(rm metricdata.ResourceMetrics, name string) []metricdata.DataPoint[float64] {
	m, _, ok := FindMetric(rm, name)
	if !ok {
		return nil
	}
	g, ok := m.Data.(metricdata.Gauge[float64])
	if !ok {
		return nil
	}
	return g.DataPoints
}

// Reset clears recorded spans.
func (t *TestTelemetry) Reset() {
	t.SpanRecorder = tracetest.NewSpanRecorder()
	t.tracerProvider = trace.NewTracerProvider(trace.WithSpanProcessor(t.SpanRecorder))
}

// RecordingExporter is a push exporter that keeps every exported gauge
// value in memory. It stands in for the OTLP exporter in tests.
type RecordingExporter struct {
	mu       sync.Mutex
	batches  int
	values   map[string][]float64
	shutdown bool
	err      error
}

var _ sdkmetric.Exporter = (*RecordingExporter)(nil)

// NewRecordingExporter creates an empty RecordingExporter.
func NewRecordingExporter() *RecordingExporter {
	return &RecordingExporter{values: make(map[string][]float64)}
}

// FailWith makes subsequent exports return err.
func (e *RecordingExporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *RecordingExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return cumulativeSelector(k)
}

func (e *RecordingExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

// Export copies gauge values out of rm; the SDK reuses rm after return.
func (e *RecordingExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.batches++
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if g, ok := m.Data.(metricdata.Gauge[float64]); ok {
				for _, dp := range g.DataPoints {
					e.values[m.Name] = append(e.values[m.Name], dp.Value)
				}
			}
		}
	}
	return nil
}

func (e *RecordingExporter) ForceFlush(context.Context) error { return nil }

func (e *RecordingExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdown = true
	return nil
}

// Batches returns how many successful exports were received.
func (e *RecordingExporter) Batches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batches
}

// Values returns a copy of the exported values for a gauge.
func (e *RecordingExporter) Values(name string) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.values[name]...)
}

// IsShutdown reports whether the exporter was shut down.
func (e *RecordingExporter) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}
