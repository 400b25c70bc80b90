package detection

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval matches the dashboard's live count refresh.
const DefaultPollInterval = 2 * time.Second

type countSource interface {
	LiveCounts(ctx context.Context) ([]int, error)
}

// Poller fetches live counts on a fixed interval while an analysis view is
// open. Closing the view is cancelling the context passed to Run.
type Poller struct {
	source   countSource
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller constructs a Poller. A non-positive interval uses the default.
func NewPoller(source countSource, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{source: source, interval: interval, logger: logger}
}

// Run polls immediately and then every interval, handing each result to fn.
// Fetch failures are logged and polling continues. Run returns ctx.Err()
// when the context ends, or the error fn returns to stop early.
func (p *Poller) Run(ctx context.Context, fn func([]int) error) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		counts, err := p.source.LiveCounts(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			p.logger.Warn("live count poll failed", zap.Error(err))
		default:
			if err := fn(counts); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
