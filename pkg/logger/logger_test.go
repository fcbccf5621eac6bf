package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewConfig(t *testing.T) {
	dev := newConfig(true)
	assert.True(t, dev.Level.Enabled(zapcore.DebugLevel))
	assert.Equal(t, ServiceName, dev.InitialFields["service"])

	prod := newConfig(false)
	assert.False(t, prod.Level.Enabled(zapcore.DebugLevel))
	assert.True(t, prod.DisableStacktrace)
	assert.Equal(t, "json", prod.Encoding)
}

func TestForRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	ForRequest("req-1", 42, zap.String("input_kind", "video_url")).Info("Request received")
	Warn("plain")

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, int64(42), fields["user_id"])
	assert.Equal(t, "video_url", fields["input_kind"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestReplace_Restores(t *testing.T) {
	original := Logger
	restore := Replace(zap.NewExample())
	assert.NotSame(t, original, Logger)

	restore()
	assert.Same(t, original, Logger)
}
