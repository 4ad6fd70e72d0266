package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/spellforge/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json", Service: "spellforge"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.LoggingConfig{Level: "trace", Format: "json"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "xml"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := config.LoggingConfig{Level: level, Format: "json"}
		logger, err := NewLogger(cfg)
		require.NoError(t, err, "level %q should be valid", level)
		assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
	}
}

func TestZapConfig_ServiceFieldAndStderr(t *testing.T) {
	zc, err := zapConfig(config.LoggingConfig{Level: "warn", Format: "json", Service: "forge"})
	require.NoError(t, err)
	assert.Equal(t, "forge", zc.InitialFields["service"])
	assert.Equal(t, []string{"stderr"}, zc.OutputPaths)
	assert.Equal(t, zapcore.WarnLevel, zc.Level.Level())
}

func TestZapConfig_NoServiceNoFields(t *testing.T) {
	zc, err := zapConfig(config.LoggingConfig{Level: "info", Format: "console"})
	require.NoError(t, err)
	assert.Empty(t, zc.InitialFields)
	assert.True(t, zc.Development)
}
