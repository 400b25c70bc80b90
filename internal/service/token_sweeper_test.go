package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls   int32
	removed int64
	err     error
}

func (c *countingSweeper) SweepExpiredRefreshTokens(ctx context.Context) (int64, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.removed, c.err
}

func TestTokenSweeperSweepRecordsMetrics(t *testing.T) {
	repo := &countingSweeper{removed: 4}
	metrics := NewMetricsService()
	sweeper := NewTokenSweeper(repo, time.Hour, nil, metrics)

	removed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.sweptTokens))

	repo.err = assert.AnError
	_, err = sweeper.Sweep(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.sweepFailures))
}

func TestTokenSweeperRunsPeriodically(t *testing.T) {
	repo := &countingSweeper{}
	sweeper := NewTokenSweeper(repo, 5*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Start(ctx)

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&repo.calls) >= 2 }, time.Second, 5*time.Millisecond)
	sweeper.Stop()
}
