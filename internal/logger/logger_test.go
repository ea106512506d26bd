package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_InvalidLevel(t *testing.T) {
	_, err := Init(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestInit_SetsGlobal(t *testing.T) {
	t.Cleanup(func() { globalSugar = nil })
	assert.NotNil(t, Global())

	log, err := Init(Options{Level: "warn"})
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.NotNil(t, globalSugar)
	Cleanup()
}

func TestWith(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := New(zap.New(core)).With("op", "1234")

	log.Info("history computed", "paths", 2)
	log.Debug("skipped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "history computed", entries[0].Message)
	assert.Equal(t, map[string]any{"op": "1234", "paths": int64(2)}, entries[0].ContextMap())
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}
