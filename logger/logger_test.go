package logger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_LevelAndFormat(t *testing.T) {
	log, err := New(LogConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(LogConfig{Level: "bogus", Format: "text"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detector.log")
	log, err := New(LogConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("hello", "key", "value")
	log.Sync()
	assert.FileExists(t, path)
}

func TestConvertFields(t *testing.T) {
	fields := convertFields("a", 1, 2, "dropped", "err", errors.New("boom"), "odd")
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Key)
	assert.Equal(t, "err", fields[1].Key)
	assert.Equal(t, zapcore.ErrorType, fields[1].Type)
}

func TestWith_AddsFieldsToChild(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &Logger{zap.New(core)}

	log.With("request_id", "abc").Info("handled", "status", 200)
	log.Info("plain")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
	assert.EqualValues(t, 200, entries[0].ContextMap()["status"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}
