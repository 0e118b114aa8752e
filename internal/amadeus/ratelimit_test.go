package amadeus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstThenBlocks(t *testing.T) {
	rl := newRateLimiter(2)
	defer rl.Close()
	ctx := context.Background()

	require.NoError(t, rl.wait(ctx))
	require.NoError(t, rl.wait(ctx))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := rl.wait(short)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := newRateLimiter(20)
	defer rl.Close()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, rl.wait(ctx))
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, rl.wait(waitCtx))
}

func TestRateLimiter_DefaultQuota(t *testing.T) {
	rl := newRateLimiter(0)
	defer rl.Close()
	assert.Equal(t, DefaultRateLimit, cap(rl.tokens))
}
