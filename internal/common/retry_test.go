package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		Name:        "test",
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &RetryableError{Err: errors.New("503 service unavailable"), Retry: true}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_ExhaustsBudget(t *testing.T) {
	transient := &RetryableError{Err: errors.New("timeout"), Retry: true}
	calls := 0
	err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return transient
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrMaxRetries)

	var re *RetryableError
	assert.ErrorAs(t, err, &re)
}

func TestRetryPolicy_PermanentErrorNotRetried(t *testing.T) {
	permanent := errors.New("400 bad request")
	calls := 0
	err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, permanent, err)
}

func TestRetryPolicy_ContextCancelledWhileWaiting(t *testing.T) {
	p := testPolicy()
	p.BaseDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return &RetryableError{Err: errors.New("reset"), Retry: true}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second}

	assert.Equal(t, time.Second, p.Delay(1, errors.New("x")))
	assert.Equal(t, 3*time.Second, p.Delay(2, errors.New("x")))
	assert.Equal(t, 7*time.Second, p.Delay(3, errors.New("x")))

	hinted := &RetryableError{Err: errors.New("429"), Retry: true, RetryAfter: 12 * time.Second}
	assert.Equal(t, 12*time.Second, p.Delay(1, hinted))

	p.Jitter = 500 * time.Millisecond
	d := p.Delay(1, errors.New("x"))
	assert.GreaterOrEqual(t, d, time.Second)
	assert.Less(t, d, 1500*time.Millisecond)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retry: true}))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("x")}))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	require.NoError(t, SetupLogger("debug", "json", &buf))
	slog.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	assert.Error(t, SetupLogger("loud", "json", &buf))
	assert.Error(t, SetupLogger("info", "xml", &buf))
	require.NoError(t, SetupLogger("info", "console", &buf))
}
