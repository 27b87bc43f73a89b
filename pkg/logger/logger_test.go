package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestLogger_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: LevelInfo, Output: &buf})
	require.NoError(t, err)

	log.With(Component("ingest_written")).Info("row skipped",
		StudentID("313385"), Row(4), Err(errors.New("student id not registered")))
	log.Debug("hidden")
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "row skipped", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ingest_written", entry["component"])
	assert.Equal(t, "313385", entry["student_id"])
	assert.Equal(t, float64(4), entry["row"])
	assert.Equal(t, "student id not registered", entry["error"])
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := Nop()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
