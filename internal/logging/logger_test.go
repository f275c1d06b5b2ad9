package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/supportd/internal/config"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info(context.Background(), "test message", zap.String("key", "value"))
	assert.NoError(t, logger.Sync())
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestLogger_SetLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, zapcore.InfoLevel, logger.Level())
	assert.False(t, logger.Enabled(zapcore.DebugLevel))

	logger.SetLevel(zapcore.DebugLevel)
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
	assert.True(t, logger.Enabled(zapcore.DebugLevel))
}

func TestLogger_SetLevelFromString(t *testing.T) {
	cfg := NewDefaultConfig()
	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, logger.SetLevelFromString("warn"))
	assert.Equal(t, zapcore.WarnLevel, logger.Level())

	require.NoError(t, logger.SetLevelFromString("trace"))
	assert.Equal(t, TraceLevel, logger.Level())

	assert.Error(t, logger.SetLevelFromString("shouty"))
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"trace", TraceLevel},
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := LevelFromString(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := LevelFromString("loud")
	assert.Error(t, err)
}

func TestFromAppConfig(t *testing.T) {
	appCfg := &config.Config{}
	appCfg.Logging.Level = "debug"
	appCfg.Logging.Format = "console"
	appCfg.Telemetry.Enabled = true

	cfg, err := FromAppConfig(appCfg)
	require.NoError(t, err)

	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Output.OTEL)
}

func TestTestLogger_Observation(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Info(ctx, "query answered", zap.String("origin", "learned"))
	tl.Warn(ctx, "store degraded")

	tl.AssertLogged(t, zapcore.InfoLevel, "query answered")
	tl.AssertLogged(t, zapcore.WarnLevel, "store degraded")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "store degraded")
	tl.AssertField(t, "query answered", "origin", "learned")

	assert.Len(t, tl.All(), 2)
	tl.Reset()
	assert.Empty(t, tl.All())
}

func TestLogger_ChildLoggers(t *testing.T) {
	tl := NewTestLogger()

	child := tl.With(zap.String("component", "search")).Named("coordinator")
	child.Info(context.Background(), "fan-out complete")

	entries := tl.FilterMessage("fan-out complete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "coordinator", entries[0].LoggerName)
}
