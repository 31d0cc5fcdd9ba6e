package telemetry

import (
	"errors"
	"fmt"
)

// InitErrorKind classifies a fatal initialization failure.
type InitErrorKind string

const (
	// KindConfig means the configuration was rejected before any exporter was built.
	KindConfig InitErrorKind = "config"
	// KindResource means the resource descriptor could not be assembled.
	KindResource InitErrorKind = "resource"
	// KindExporter means an exporter or its transport could not be configured.
	KindExporter InitErrorKind = "exporter"
)

// InitError is returned by New when the pipeline cannot be built.
// The caller decides how to report it and which exit code to use.
type InitError struct {
	Kind InitErrorKind
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("telemetry init failed (%s): %v", e.Kind, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// IsInitError reports whether err is an *InitError of the given kind.
func IsInitError(err error, kind InitErrorKind) bool {
	var ie *InitError
	return errors.As(err, &ie) && ie.Kind == kind
}

func initErr(kind InitErrorKind, format string, args ...interface{}) error {
	return &InitError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
