package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/diceroll/internal/config"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.NotNil(t, logger.zap)
	assert.Equal(t, cfg, logger.config)
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewLogger_WritesJSONToWriter(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	cfg.Fields = map[string]string{"service": "dice_roll_service"}

	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf, nil)
	require.NoError(t, err)

	logger.Info(context.Background(), "rolled", zap.Int("value", 4))
	require.NoError(t, logger.Sync())

	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "rolled", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "dice_roll_service", entry["service"])
	assert.EqualValues(t, 4, entry["value"])
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := &Logger{
		zap:    zap.New(core),
		config: NewDefaultConfig(),
	}

	ctx := context.Background()

	tests := []struct {
		name    string
		logFunc func()
		level   zapcore.Level
		message string
	}{
		{
			name:    "trace",
			logFunc: func() { logger.Trace(ctx, "trace message", zap.String("key", "val")) },
			level:   TraceLevel,
			message: "trace message",
		},
		{
			name:    "debug",
			logFunc: func() { logger.Debug(ctx, "debug message", zap.String("key", "val")) },
			level:   zapcore.DebugLevel,
			message: "debug message",
		},
		{
			name:    "info",
			logFunc: func() { logger.Info(ctx, "info message", zap.String("key", "val")) },
			level:   zapcore.InfoLevel,
			message: "info message",
		},
		{
			name:    "warn",
			logFunc: func() { logger.Warn(ctx, "warn message", zap.String("key", "val")) },
			level:   zapcore.WarnLevel,
			message: "warn message",
		},
		{
			name:    "error",
			logFunc: func() { logger.Error(ctx, "error message", zap.String("key", "val")) },
			level:   zapcore.ErrorLevel,
			message: "error message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed.TakeAll()
			tt.logFunc()

			logs := observed.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, tt.message, logs[0].Message)
			assert.Len(t, logs[0].Context, 1)
		})
	}
}

func TestLogger_With(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	child := logger.With(zap.String("child_field", "value"))
	child.Info(context.Background(), "child log")

	logs := observed.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "value", logs[0].ContextMap()["child_field"])
}

func TestLogger_Named(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	logger.Named("emitter").Info(context.Background(), "named log")

	logs := observed.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "emitter", logs[0].LoggerName)
}

func TestLogger_Enabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	assert.False(t, logger.Enabled(TraceLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Enabled(zapcore.ErrorLevel))
}

func TestLogger_RollSeqInjected(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithRollSeq(context.Background(), 7)
	tl.Info(ctx, "rolled")

	tl.AssertField(t, "rolled", "roll.seq", uint64(7))
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	assert.NotPanics(t, func() {
		logger.Info(context.Background(), "dropped")
		_ = logger.Sync()
	})
}

func TestLogger_CallerIsCallSite(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	cfg.Caller.Enabled = true

	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf, nil)
	require.NoError(t, err)

	logger.Warn(context.Background(), "where")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestLogger_TraceBelowDebug(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	logger.Trace(context.Background(), "per roll detail")
	assert.Zero(t, observed.Len())

	tl := NewTestLogger()
	tl.Trace(context.Background(), "per roll detail")
	tl.AssertLogged(t, TraceLevel, "per roll detail")
}

func TestFromContext(t *testing.T) {
	t.Run("returns stored logger", func(t *testing.T) {
		tl := NewTestLogger()
		ctx := WithLogger(context.Background(), tl.Logger)

		got := FromContext(ctx)
		assert.Same(t, tl.Logger, got)

		got.Info(ctx, "from context")
		tl.AssertLogged(t, zapcore.InfoLevel, "from context")
	})

	t.Run("falls back to nop", func(t *testing.T) {
		got := FromContext(context.Background())
		require.NotNil(t, got)
		assert.False(t, got.Enabled(zapcore.ErrorLevel))
	})
}

func TestLogger_UnderlyingSharesCore(t *testing.T) {
	tl := NewTestLogger()
	tl.Underlying().Info("direct")
	tl.AssertLogged(t, zapcore.InfoLevel, "direct")
}

func TestLogger_SecretsStayRedacted(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false

	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf, nil)
	require.NoError(t, err)

	headers := map[string]config.Secret{"authorization": "Bearer abc123"}
	logger.Info(context.Background(), "exporter headers",
		zap.Any("headers", headers),
		zap.Stringer("token", headers["authorization"]),
	)
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "abc123")
	assert.Contains(t, out, "[REDACTED]")
}
