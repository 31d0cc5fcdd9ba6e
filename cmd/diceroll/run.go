package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fyrsmithlabs/diceroll/internal/config"
	"github.com/fyrsmithlabs/diceroll/internal/dice"
	apphttp "github.com/fyrsmithlabs/diceroll/internal/http"
	"github.com/fyrsmithlabs/diceroll/internal/logging"
	"github.com/fyrsmithlabs/diceroll/internal/runner"
	"github.com/fyrsmithlabs/diceroll/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type runOptions struct {
	configPath string
	stdout     io.Writer

	// telemetryOpts are passed to telemetry.New; tests inject exporters here.
	telemetryOpts []telemetry.Option
}

// run wires the pipeline and blocks until shutdown.
//
// Order:
//  1. Load configuration (defaults, file, environment)
//  2. Build the telemetry pipeline and install it globally
//  3. Build the logger, bridged to the log provider when enabled
//  4. Create the gauge from the injected meter
//  5. Run the emission loop and optional status server until cancelled
//  6. Drain telemetry, stop the server and sync logs within the shutdown timeout
func run(ctx context.Context, opts runOptions) error {
	if opts.stdout == nil {
		opts.stdout = os.Stdout
	}

	cfg := newDefaultConfig()
	if err := config.Load(opts.configPath, cfg); err != nil {
		return &telemetry.InitError{Kind: telemetry.KindConfig, Err: err}
	}

	tel, err := telemetry.New(ctx, &cfg.Telemetry, opts.telemetryOpts...)
	if err != nil {
		return err
	}
	tel.Install()

	if cfg.Telemetry.Logs.Enabled {
		cfg.Logging.Output.OTEL = true
	}
	logger, err := logging.NewLogger(&cfg.Logging, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(context.WithoutCancel(ctx))
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx = logging.WithLogger(ctx, logger)
	defer zap.RedirectStdLog(logger.Underlying())()

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn(ctx, "telemetry export error", zap.Error(err))
		tel.HandleError(err)
	}))

	logger.Info(ctx, "starting diceroll",
		zap.String("version", version),
		zap.String("service", cfg.Telemetry.ServiceName),
		zap.String("endpoint", cfg.Telemetry.Endpoint),
		zap.String("protocol", cfg.Telemetry.Protocol),
		zap.Duration("export_interval", cfg.Telemetry.Metrics.ExportInterval.Duration()),
		zap.Duration("roll_interval", cfg.Roller.Interval.Duration()),
	)

	gauge, err := dice.NewGauge(tel.Meter(cfg.Roller.MeterName), cfg.Roller.Gauge)
	if err != nil {
		_ = tel.Shutdown(context.WithoutCancel(ctx))
		return err
	}

	emitter := dice.NewEmitter(gauge, opts.stdout,
		dice.WithRoller(dice.NewDie(cfg.Roller.Seed)),
		dice.WithInterval(cfg.Roller.Interval.Duration()),
		dice.WithTracer(tel.Tracer("github.com/fyrsmithlabs/diceroll/internal/dice")),
	)

	runnerOpts := []runner.Option{
		runner.WithContext(ctx),
		runner.WithCloserTimeout(cfg.Telemetry.Shutdown.Timeout.Duration()),
		runner.WithAppProcess(runner.Func(emitter.Run)),
	}

	if cfg.Server.Enabled {
		srv, err := apphttp.NewServer(logger.Named("http"), &cfg.Server,
			apphttp.WithHealth(tel),
			apphttp.WithRolls(emitter),
			apphttp.WithMetricsHandler(tel.PrometheusHandler()),
			apphttp.WithMeter(tel.Meter("github.com/fyrsmithlabs/diceroll/internal/http")),
			apphttp.WithVersion(version),
		)
		if err != nil {
			_ = tel.Shutdown(context.WithoutCancel(ctx))
			return fmt.Errorf("failed to create http server: %w", err)
		}
		runnerOpts = append(runnerOpts,
			runner.WithAppProcess(apphttp.NewRunner(srv)),
			runner.WithCloser(apphttp.NewCloser(srv)),
		)
	}

	runnerOpts = append(runnerOpts,
		runner.WithCloser(runner.Func(func(ctx context.Context) error {
			if err := tel.Shutdown(ctx); err != nil {
				return fmt.Errorf("telemetry shutdown: %w", err)
			}
			return nil
		})),
	)

	err = runner.New(runnerOpts...).Run()
	_ = logger.Sync() // Best-effort sync on shutdown
	return err
}
