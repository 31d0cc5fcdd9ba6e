package dice

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/diceroll/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/diceroll/internal/dice"

// Roll is one completed iteration of the emission loop.
type Roll struct {
	Seq   uint64    `json:"seq"`
	Value int       `json:"value"`
	At    time.Time `json:"at"`
}

// Emitter rolls a die, prints the value and records it into a gauge.
//
// The gauge is injected; Emitter never looks up a global provider.
type Emitter struct {
	roller   Roller
	gauge    metric.Float64Gauge
	out      io.Writer
	interval time.Duration
	logger   *logging.Logger
	tracer   trace.Tracer

	seq  atomic.Uint64
	last atomic.Pointer[Roll]
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithRoller replaces the default randomly seeded Die.
func WithRoller(r Roller) EmitterOption {
	return func(e *Emitter) { e.roller = r }
}

// WithInterval sets the pause between rolls.
func WithInterval(d time.Duration) EmitterOption {
	return func(e *Emitter) { e.interval = d }
}

// WithLogger sets the logger. Without it the logger on the Run or Step
// context is used. Logs never go to the output writer.
func WithLogger(l *logging.Logger) EmitterOption {
	return func(e *Emitter) { e.logger = l }
}

// WithTracer enables one span per roll.
func WithTracer(t trace.Tracer) EmitterOption {
	return func(e *Emitter) { e.tracer = t }
}

// NewEmitter creates an Emitter writing one line per roll to out.
func NewEmitter(gauge metric.Float64Gauge, out io.Writer, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		roller:   NewDie(0),
		gauge:    gauge,
		out:      out,
		interval: 3 * time.Second,
		tracer:   noop.NewTracerProvider().Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Step performs a single iteration: roll, print, record.
//
// The printed and recorded values are the same integer. Recording carries
// no attributes.
func (e *Emitter) Step(ctx context.Context) (int, error) {
	seq := e.seq.Add(1)
	ctx = logging.WithRollSeq(ctx, seq)

	ctx, span := e.tracer.Start(ctx, "dice.roll")
	defer span.End()

	v := e.roller.Roll()
	span.SetAttributes(attribute.Int("dice.value", v))

	if _, err := fmt.Fprintf(e.out, "%d\n", v); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return 0, fmt.Errorf("writing roll: %w", err)
	}

	e.gauge.Record(ctx, float64(v))
	e.last.Store(&Roll{Seq: seq, Value: v, At: time.Now()})

	e.log(ctx).Trace(ctx, "rolled", zap.Int("value", v))
	return v, nil
}

// Run calls Step every interval until ctx is cancelled.
//
// Cancellation interrupts the wait immediately and returns nil. A failed
// write to the output stream ends the loop with that error.
func (e *Emitter) Run(ctx context.Context) error {
	logger := e.log(ctx)
	logger.Info(ctx, "emission loop started", zap.Duration("interval", e.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "emission loop stopped", zap.Uint64("rolls", e.seq.Load()))
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			continue
		}

		if _, err := e.Step(ctx); err != nil {
			logger.Error(ctx, "emission loop failed", zap.Error(err))
			return err
		}
		timer.Reset(e.interval)
	}
}

func (e *Emitter) log(ctx context.Context) *logging.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.FromContext(ctx)
}

// Last returns the most recent roll, if any.
func (e *Emitter) Last() (Roll, bool) {
	r := e.last.Load()
	if r == nil {
		return Roll{}, false
	}
	return *r, true
}

// Rolls returns how many rolls were attempted.
func (e *Emitter) Rolls() uint64 {
	return e.seq.Load()
}
