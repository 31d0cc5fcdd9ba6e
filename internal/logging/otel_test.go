package logging

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log/noop"
)

func TestNewDualCore_StderrOnly(t *testing.T) {
	cfg := NewDefaultConfig()

	core, err := newDualCore(cfg, io.Discard, nil)
	require.NoError(t, err)
	assert.NotNil(t, core)
}

func TestNewDualCore_BothOutputs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.OTEL = true

	core, err := newDualCore(cfg, io.Discard, noop.NewLoggerProvider())
	require.NoError(t, err)
	assert.NotNil(t, core)
}

func TestNewDualCore_OTELWithoutProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Stderr = false
	cfg.Output.OTEL = true

	_, err := newDualCore(cfg, io.Discard, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least one output")
}
