package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/diceroll/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	cfg := SamplingConfig{Enabled: false}

	sampled := newSampledCore(core, cfg)

	assert.Equal(t, core, sampled)
}

func TestNewSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	cfg := SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Second),
		Levels:  DefaultLevelSamplingConfig(),
	}

	logger := &Logger{zap: zap.New(newSampledCore(core, cfg)), config: NewDefaultConfig()}

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		logger.Error(ctx, "error message")
	}

	logs := observed.FilterMessage("error message").All()
	assert.Equal(t, 100, len(logs), "all errors should be logged")
}

func TestNewSampledCore_InfoSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	cfg := SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.InfoLevel: {Initial: 5, Thereafter: 0},
		},
	}

	logger := &Logger{zap: zap.New(newSampledCore(core, cfg)), config: NewDefaultConfig()}

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		logger.Info(ctx, "info message")
	}

	logs := observed.FilterMessage("info message").All()
	assert.Equal(t, 5, len(logs), "only the initial burst should pass")
}

func TestLevelFilterCore_With(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: core, minLevel: zapcore.WarnLevel}

	child := filtered.With([]zapcore.Field{zap.String("k", "v")})
	logger := zap.New(child)
	logger.Info("dropped")
	logger.Warn("kept")

	logs := observed.All()
	assert.Len(t, logs, 1)
	assert.Equal(t, "kept", logs[0].Message)
}
