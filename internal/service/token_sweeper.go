package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crowdwatch-api/pkg/jobs"
)

const sweepJobType = "refresh_token_sweep"

type expiredTokenSweeper interface {
	SweepExpiredRefreshTokens(ctx context.Context) (int64, error)
}

// TokenSweeper periodically deletes expired refresh tokens.
type TokenSweeper struct {
	repo     expiredTokenSweeper
	interval time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
	queue    *jobs.Queue
}

// NewTokenSweeper wires the sweeper onto a single-worker queue.
func NewTokenSweeper(repo expiredTokenSweeper, interval time.Duration, logger *zap.Logger, metrics *MetricsService) *TokenSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	s := &TokenSweeper{repo: repo, interval: interval, logger: logger, metrics: metrics}
	s.queue = jobs.NewQueue("token-sweeper", s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 1,
		MaxRetries: 1,
		RetryDelay: time.Minute,
		Logger:     logger,
	})
	return s
}

// Sweep runs one pass and returns the number of removed tokens.
func (s *TokenSweeper) Sweep(ctx context.Context) (int64, error) {
	removed, err := s.repo.SweepExpiredRefreshTokens(ctx)
	s.metrics.RecordSweep(removed, err)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("expired refresh tokens removed", zap.Int64("count", removed))
	}
	return removed, nil
}

func (s *TokenSweeper) handle(ctx context.Context, job jobs.Job) error {
	_, err := s.Sweep(ctx)
	return err
}

// Start runs the sweep every interval until ctx is cancelled or Stop is
// called. It returns immediately.
func (s *TokenSweeper) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.queue.Every(ctx, s.interval, sweepJobType)
}

// Stop waits for an in-flight sweep to finish.
func (s *TokenSweeper) Stop() {
	s.queue.Stop()
}
