package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(level zerolog.Level) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewZerologLogger(zerolog.New(&buf), "test-service", level), &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	log, buf := captureLogger(zerolog.InfoLevel)

	log.Info("session joined",
		Field{Key: "session_id", Value: "abc"},
		Field{Key: "conn", Value: 7},
	)

	entry := lastEntry(t, buf)
	assert.Equal(t, "session joined", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "test-service", entry["service"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, float64(7), entry["conn"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	log, buf := captureLogger(zerolog.WarnLevel)

	log.Debug("dropped")
	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	entry := lastEntry(t, buf)
	assert.Equal(t, "kept", entry["message"])
}

func TestLogger_WithDerivesScopedLogger(t *testing.T) {
	log, buf := captureLogger(zerolog.InfoLevel)

	scoped := log.With(Field{Key: "conn", Value: 42})
	scoped.Error("read failed", Field{Key: "error", Value: "boom"})

	entry := lastEntry(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, float64(42), entry["conn"])
	assert.Equal(t, "boom", entry["error"])

	// The parent logger does not inherit the scoped field.
	buf.Reset()
	log.Info("plain")
	entry = lastEntry(t, buf)
	assert.NotContains(t, entry, "conn")
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()

	assert.NotPanics(t, func() {
		log.Debug("x")
		log.Info("x")
		log.Warn("x")
		log.Error("x", Field{Key: "error", Value: "y"})
		log.With(Field{Key: "a", Value: 1}).Info("x")
	})
}
