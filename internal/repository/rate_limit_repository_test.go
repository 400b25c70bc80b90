package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestRateLimitHitCountsWithinWindow(t *testing.T) {
	srv, client := newRedis(t)
	repo := NewRateLimitRepository(client, "login")
	ctx := context.Background()

	count, ttl, err := repo.Hit(ctx, "10.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, ttl)

	count, _, err = repo.Hit(ctx, "10.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	srv.FastForward(time.Minute + time.Second)

	count, _, err = repo.Hit(ctx, "10.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRateLimitReset(t *testing.T) {
	_, client := newRedis(t)
	repo := NewRateLimitRepository(client, "")
	ctx := context.Background()

	_, _, err := repo.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Reset(ctx, "k"))

	count, _, err := repo.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRateLimitEnabled(t *testing.T) {
	assert.False(t, NewRateLimitRepository(nil, "").Enabled())
	var nilRepo *RateLimitRepository
	assert.False(t, nilRepo.Enabled())
}
