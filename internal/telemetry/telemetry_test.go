package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace/noop"
)

func newRecorded(t *testing.T, modify func(*Config), opts ...Option) (*Telemetry, *RecordingExporter) {
	t.Helper()
	cfg := NewDefaultConfig()
	if modify != nil {
		modify(cfg)
	}
	exp := NewRecordingExporter()
	tel, err := New(context.Background(), cfg, append([]Option{WithMetricExporter(exp)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	return tel, exp
}

func TestNew_PushesGaugeThroughExporter(t *testing.T) {
	tel, exp := newRecorded(t, nil)

	gauge, err := tel.Meter("ponix-gateway").Float64Gauge("dice_roll")
	require.NoError(t, err)
	gauge.Record(context.Background(), 4)

	require.NoError(t, tel.ForceFlush(context.Background()))
	assert.GreaterOrEqual(t, exp.Batches(), 1)
	assert.Equal(t, []float64{4}, exp.Values("dice_roll"))
}

func TestNew_ResourceCarriesServiceName(t *testing.T) {
	tel, _ := newRecorded(t, func(c *Config) { c.ServiceName = "svc-a" }, WithInstanceID("instance-1"))

	res := tel.Resource()
	require.NotNil(t, res)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "svc-a", attrs[string(semconv.ServiceNameKey)])
	assert.Equal(t, "instance-1", attrs[string(semconv.ServiceInstanceIDKey)])
	assert.Equal(t, "0.1.0", attrs[string(semconv.ServiceVersionKey)])
}

func TestNew_InvalidConfigReturnsConfigError(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Endpoint = "not an endpoint"

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)

	var ie *InitError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindConfig, ie.Kind)
	assert.True(t, IsInitError(err, KindConfig))
	assert.False(t, IsInitError(err, KindExporter))
}

func TestNew_ExporterFailureReturnsExporterError(t *testing.T) {
	boom := errors.New("dial refused")
	tel, err := New(context.Background(), NewDefaultConfig(),
		WithMetricExporterFunc(func(context.Context, *Config) (sdkmetric.Exporter, error) {
			return nil, boom
		}),
	)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.True(t, IsInitError(err, KindExporter))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "telemetry init failed (exporter)")
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	exp := NewRecordingExporter()
	tel, err := New(context.Background(), nil, WithMetricExporter(exp))
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	assert.True(t, tel.Health().Healthy)
}

func TestNew_DefaultOTLPExporterDoesNotDial(t *testing.T) {
	// gRPC connects lazily, so construction succeeds without a collector.
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tel.Shutdown(ctx)
}

func TestNew_HTTPProtocol(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Protocol = ProtocolHTTPProtobuf
	cfg.Endpoint = "localhost:4318"

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tel.Shutdown(ctx)
}

func TestInstall_LastWriteWins(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	first, firstExp := newRecorded(t, nil)
	second, secondExp := newRecorded(t, nil)

	first.Install()
	assert.Same(t, first.MeterProvider(), otel.GetMeterProvider())

	second.Install()
	assert.Same(t, second.MeterProvider(), otel.GetMeterProvider())

	// A gauge created through the global API after the second install
	// reports only to the second provider.
	gauge, err := otel.Meter("ponix-gateway").Float64Gauge("dice_roll")
	require.NoError(t, err)
	gauge.Record(context.Background(), 5)

	require.NoError(t, first.ForceFlush(context.Background()))
	require.NoError(t, second.ForceFlush(context.Background()))
	assert.Equal(t, []float64{5}, secondExp.Values("dice_roll"))
	assert.Empty(t, firstExp.Values("dice_roll"))
}

func TestInstall_TracerProviderOnlyWhenEnabled(t *testing.T) {
	prevMP := otel.GetMeterProvider()
	prevTP := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMP)
		otel.SetTracerProvider(prevTP)
	})

	otel.SetTracerProvider(noop.NewTracerProvider())
	tel, _ := newRecorded(t, nil)
	tel.Install()
	assert.IsType(t, noop.TracerProvider{}, otel.GetTracerProvider())
}

func TestTelemetry_TracesEnabled(t *testing.T) {
	tel, _ := newRecorded(t, func(c *Config) { c.Traces.Enabled = true },
		WithSpanExporter(noopSpanExporter{}))

	_, span := tel.Tracer("test").Start(context.Background(), "op")
	span.End()
	assert.True(t, span.SpanContext().IsValid())
}

func TestTelemetry_PrometheusHandler(t *testing.T) {
	disabled, _ := newRecorded(t, nil)
	assert.Nil(t, disabled.PrometheusHandler())

	tel, _ := newRecorded(t, func(c *Config) { c.Metrics.Prometheus.Enabled = true })
	gauge, err := tel.Meter("ponix-gateway").Float64Gauge("dice_roll")
	require.NoError(t, err)
	gauge.Record(context.Background(), 6)

	h := tel.PrometheusHandler()
	require.NotNil(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "dice_roll")
}

func TestTelemetry_HandleErrorMarksDegraded(t *testing.T) {
	tel, _ := newRecorded(t, nil)
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())

	tel.HandleError(nil)
	assert.False(t, tel.Health().Degraded)

	tel.HandleError(errors.New("export timeout"))
	h := tel.Health()
	assert.True(t, h.Healthy)
	assert.True(t, h.Degraded)
	assert.Equal(t, "export timeout", h.LastError)
}

func TestTelemetry_ShutdownIsIdempotent(t *testing.T) {
	exp := NewRecordingExporter()
	tel, err := New(context.Background(), NewDefaultConfig(), WithMetricExporter(exp))
	require.NoError(t, err)

	gauge, err := tel.Meter("ponix-gateway").Float64Gauge("dice_roll")
	require.NoError(t, err)
	gauge.Record(context.Background(), 2)

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.True(t, exp.IsShutdown())
	assert.Equal(t, []float64{2}, exp.Values("dice_roll"), "shutdown drains pending values")
	assert.False(t, tel.Health().Healthy)

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		tel.Install()
		tel.HandleError(errors.New("x"))
		_ = tel.Meter("m")
		_ = tel.Tracer("t")
	})
	assert.Nil(t, tel.LoggerProvider())
	assert.Nil(t, tel.MeterProvider())
	assert.Nil(t, tel.Resource())
	assert.Nil(t, tel.PrometheusHandler())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.Equal(t, HealthStatus{Healthy: false, Degraded: true}, tel.Health())
}

func TestTestTelemetry_RecordsGauge(t *testing.T) {
	tt := NewTestTelemetry()

	gauge, err := tt.Meter("ponix-gateway").Float64Gauge("dice_roll")
	require.NoError(t, err)
	gauge.Record(context.Background(), 3)

	points := tt.GaugeValues(t, "dice_roll")
	require.Len(t, points, 1)
	assert.Equal(t, 3.0, points[0].Value)
	assert.Equal(t, 0, points[0].Attributes.Len())

	rm, err := tt.Collect(context.Background())
	require.NoError(t, err)
	_, scope, ok := FindMetric(rm, "dice_roll")
	require.True(t, ok)
	assert.Equal(t, "ponix-gateway", scope)
}

func TestTestTelemetry_Spans(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.Tracer("test").Start(context.Background(), "dice.roll")
	span.End()

	tt.AssertSpanExists(t, "dice.roll")
	tt.Reset()
	assert.Empty(t, tt.Spans())
}

type noopSpanExporter struct{}

func (noopSpanExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopSpanExporter) Shutdown(context.Context) error                            { return nil }
