// Package telemetry builds the OpenTelemetry export pipeline.
//
// The core is a MeterProvider with one PeriodicReader pushing over OTLP
// (gRPC by default, HTTP/protobuf on request). Traces, a log exporter for
// the zap bridge and a Prometheus pull reader are optional.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//		var ie *telemetry.InitError
//		errors.As(err, &ie) // ie.Kind tells config, resource or exporter
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	meter := tel.Meter("ponix-gateway")
//
// New never touches global state. Install publishes the providers through
// otel.SetMeterProvider for code that only uses the global API; repeated
// installs are last-write-wins.
//
// # Errors
//
// Initialization failures return *InitError. Export failures after startup
// are asynchronous: route them through otel.SetErrorHandler to HandleError
// so Health reports the pipeline as degraded.
//
// # Testing
//
// NewTestTelemetry returns an instance backed by a ManualReader and a span
// recorder so tests can assert on recorded values without a collector.
package telemetry
