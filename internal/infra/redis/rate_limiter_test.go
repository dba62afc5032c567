//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterClient struct {
	RedisClient
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func (c *counterClient) Incr(ctx context.Context, key string) (int64, error) {
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	c.counts[key]++
	return c.counts[key], nil
}

func (c *counterClient) Expire(ctx context.Context, key string, d time.Duration) error {
	c.expires[key] = d
	return nil
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	cli := &counterClient{counts: map[string]int64{}, expires: map[string]time.Duration{}}
	rl := NewRateLimiter(cli)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d should pass", i+1)
	}
	ok, err := rl.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, cli.expires["k"], "window is set on the first hit")

	ok, err = rl.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_PropagatesErrors(t *testing.T) {
	cli := &counterClient{incrErr: errors.New("conn refused")}
	ok, err := NewRateLimiter(cli).Allow(context.Background(), "k", 1, time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}
