package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/diceroll/internal/runner"
)

// NewRunner starts the server and returns when ctx is done or the server fails.
func NewRunner(srv *Server) runner.ProcessFunc {
	return func(ctx context.Context) func() error {
		return func() error {
			errChan := make(chan error, 1)

			go func() {
				defer close(errChan)
				if err := srv.Start(); err != nil {
					errChan <- err
				}
			}()

			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-errChan:
				if !ok {
					return nil
				}
				return err
			}
		}
	}
}

// NewCloser gracefully shuts the server down within the closer deadline.
func NewCloser(srv *Server) runner.ProcessFunc {
	return func(ctx context.Context) func() error {
		return func() error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	}
}
