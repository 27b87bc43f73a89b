package retry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsl-grades/grade-hub/pkg/logger"
)

func fast() []Option {
	return []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	opts := append(fast(), WithMaxAttempts(3), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	}))

	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, opts...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("still down")
	}, append(fast(), WithMaxAttempts(2))...)

	assert.EqualError(t, err, "still down")
	assert.Equal(t, 2, calls)
}

func TestDo_PermanentStops(t *testing.T) {
	auth := errors.New("password authentication failed")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(auth)
	}, append(fast(), WithMaxAttempts(5))...)

	assert.Same(t, auth, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLogger_LogsEachRetry(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(logger.Options{Level: logger.LevelDebug, Format: "json", Output: &buf})
	require.NoError(t, err)

	calls := 0
	err = Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	}, append(fast(), WithMaxAttempts(3), WithLogger(log, "postgres"))...)

	require.Error(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"target":"postgres"`)
	assert.Contains(t, lines[1], `"attempt":2`)
	assert.Contains(t, lines[1], "connection refused")
}
