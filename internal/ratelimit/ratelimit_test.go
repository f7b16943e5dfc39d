package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiterRejectsBadURL(t *testing.T) {
	_, err := NewRateLimiter(context.Background(), "not a redis url")
	assert.Error(t, err)
}

func TestWindowKey(t *testing.T) {
	start := time.Unix(1_800_000_000, 0)

	assert.Equal(t, windowKey("ip", start, time.Minute), windowKey("ip", start.Add(59*time.Second), time.Minute))
	assert.NotEqual(t, windowKey("ip", start, time.Minute), windowKey("ip", start.Add(time.Minute), time.Minute))
	assert.NotEqual(t, windowKey("ip", start, time.Minute), windowKey("other", start, time.Minute))

	// sub-second windows still bucket
	assert.NotPanics(t, func() { windowKey("ip", start, 250*time.Millisecond) })
	assert.NotEqual(t, windowKey("ip", start, 250*time.Millisecond), windowKey("ip", start.Add(250*time.Millisecond), 250*time.Millisecond))
}

func TestAllow(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	rl, err := NewRateLimiter(ctx, redisURL)
	require.NoError(t, err)
	defer rl.Close()

	fixed := time.Unix(1_800_000_000, 0)
	rl.now = func() time.Time { return fixed }
	key := fmt.Sprintf("test:%d", time.Now().UnixNano())

	for i := 1; i <= 3; i++ {
		allowed, count, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}

	allowed, count, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 4, count)

	// a new window starts a fresh count
	rl.now = func() time.Time { return fixed.Add(time.Minute) }
	allowed, count, err = rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}
