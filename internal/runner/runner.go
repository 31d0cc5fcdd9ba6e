// Package runner runs long-lived app processes until one fails or the
// process is signalled, then runs closers under a bounded timeout.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/diceroll/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProcessFunc binds a context and returns the function to run.
// The returned function must return once ctx is done.
type ProcessFunc func(ctx context.Context) func() error

// Func adapts a context-aware function to a ProcessFunc.
func Func(fn func(ctx context.Context) error) ProcessFunc {
	return func(ctx context.Context) func() error {
		return func() error { return fn(ctx) }
	}
}

// Option configures a Runner.
type Option func(*Runner)

// WithAppProcess adds a process that runs until it returns or shutdown starts.
func WithAppProcess(pf ProcessFunc) Option {
	return func(r *Runner) {
		r.appProcesses = append(r.appProcesses, pf)
	}
}

// WithCloser adds a process run after every app process has returned.
// All closers are attempted regardless of app process errors.
func WithCloser(pf ProcessFunc) Option {
	return func(r *Runner) {
		r.closers = append(r.closers, pf)
	}
}

// WithCloserTimeout bounds how long closers may take. Default 10s.
func WithCloserTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.closeTimeout = d
	}
}

// WithLogger sets the logger used for lifecycle messages. Without it the
// logger stored on the parent context is used.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithContext sets the parent context. Cancelling it starts shutdown.
func WithContext(ctx context.Context) Option {
	return func(r *Runner) {
		r.ctx = ctx
	}
}

// WithSignals overrides the shutdown signals. Default SIGINT and SIGTERM.
func WithSignals(sigs ...os.Signal) Option {
	return func(r *Runner) {
		r.signals = sigs
	}
}

// Runner coordinates app processes and closers.
type Runner struct {
	appProcesses []ProcessFunc
	closers      []ProcessFunc
	closeTimeout time.Duration
	logger       *logging.Logger
	ctx          context.Context
	signals      []os.Signal
}

// New creates a Runner. Processes and closers start in the order given.
func New(opts ...Option) *Runner {
	r := &Runner{
		closeTimeout: 10 * time.Second,
		ctx:          context.Background(),
		signals:      []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = logging.FromContext(r.ctx)
	}
	return r
}

// Run starts every app process concurrently and blocks until one returns
// an error, the parent context is cancelled or a shutdown signal arrives.
// Closers then run concurrently with a fresh context bounded by the closer
// timeout.
//
// The returned error joins the app process error and the closer errors;
// a clean shutdown returns nil. Run never exits the process.
func (r *Runner) Run() error {
	sigCtx, stop := signal.NotifyContext(r.ctx, r.signals...)
	defer stop()

	eg, egCtx := errgroup.WithContext(sigCtx)

	r.logger.Info(r.ctx, "starting app processes", zap.Int("count", len(r.appProcesses)))
	for _, ap := range r.appProcesses {
		eg.Go(ap(egCtx))
	}

	runErr := eg.Wait()
	if sigCtx.Err() != nil {
		r.logger.Info(r.ctx, "starting graceful shutdown")
	}
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		r.logger.Error(r.ctx, "app process failed", zap.Error(runErr))
	}
	stop()

	closeErr := r.close()
	if closeErr != nil {
		r.logger.Error(r.ctx, "error running closers", zap.Error(closeErr))
	}

	r.logger.Info(r.ctx, "good bye!")

	if runErr != nil && closeErr != nil {
		return errors.Join(runErr, fmt.Errorf("closers: %w", closeErr))
	}
	if closeErr != nil {
		return fmt.Errorf("closers: %w", closeErr)
	}
	return runErr
}

// close runs closers on a context detached from the already cancelled
// parent so that drains get their full timeout. Every closer error is
// kept; the result joins them.
func (r *Runner) close() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), r.closeTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, c := range r.closers {
		fn := c(ctx)
		g.Go(func() error {
			if err := fn(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		mu.Lock()
		errs = append(errs, fmt.Errorf("closers did not finish within %s: %w", r.closeTimeout, ctx.Err()))
		mu.Unlock()
	}

	mu.Lock()
	defer mu.Unlock()
	return errors.Join(errs...)
}
