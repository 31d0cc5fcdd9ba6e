// internal/logging/context.go
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if seq, ok := RollSeqFromContext(ctx); ok {
		fields = append(fields, zap.Uint64("roll.seq", seq))
	}

	return fields
}

type rollSeqCtxKey struct{}

// WithRollSeq tags the context with the emission loop iteration number.
func WithRollSeq(ctx context.Context, seq uint64) context.Context {
	return context.WithValue(ctx, rollSeqCtxKey{}, seq)
}

// RollSeqFromContext extracts the iteration number, if any.
func RollSeqFromContext(ctx context.Context) (uint64, bool) {
	seq, ok := ctx.Value(rollSeqCtxKey{}).(uint64)
	return seq, ok
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NewNop()
}
