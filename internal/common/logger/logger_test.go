package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewZapAdapter(zap.New(core)), logs
}

func TestWithFields_AttachesFields(t *testing.T) {
	log, logs := newObservedLogger()

	log.WithFields(map[string]interface{}{"document_id": "doc-1"}).Info("indexed", nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "indexed", entries[0].Message)
	assert.Equal(t, "doc-1", entries[0].ContextMap()["document_id"])
}

func TestWith_AliasesWithFields(t *testing.T) {
	log, logs := newObservedLogger()

	log.With(map[string]interface{}{"component": "index"}).Warn("degraded", nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "index", entries[0].ContextMap()["component"])
}

func TestWithError_AttachesError(t *testing.T) {
	log, logs := newObservedLogger()

	log.WithError(errors.New("connection refused")).Error("ping failed", nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "connection refused", entries[0].ContextMap()["error"])
}

func TestLevelFiltering(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := NewZapAdapter(zap.New(core))

	log.Debug("quiet", nil)
	log.Info("quiet", nil)
	log.Warn("loud", nil)

	require.Len(t, logs.All(), 1)
	assert.Equal(t, "loud", logs.All()[0].Message)
}
