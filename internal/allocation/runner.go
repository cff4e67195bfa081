package allocation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner refreshes the allocation view on a fixed interval. Aggregation
// is idempotent, so overlapping or repeated passes over the same
// on-chain state produce the same result class.
type Runner struct {
	aggregator *Aggregator
	cache      *RedisCache
	interval   time.Duration
	logger     *zap.Logger
}

// NewRunner builds a refresh runner. The cache may be nil, in which case
// results are only logged.
func NewRunner(aggregator *Aggregator, cache *RedisCache, interval time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		aggregator: aggregator,
		cache:      cache,
		interval:   interval,
		logger:     logger,
	}
}

// Run aggregates immediately and then on every tick until the context is
// cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.refreshOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) refreshOnce(ctx context.Context) {
	entries, total, err := r.aggregator.Aggregate(ctx)
	if err != nil {
		r.logger.Warn("allocation refresh failed", zap.Error(err))
		return
	}

	r.logger.Info("allocation refreshed",
		zap.Int("networks", len(entries)),
		zap.String("total", total.String()),
	)

	if r.cache == nil {
		return
	}
	snapshot := Snapshot{
		Entries:   entries,
		Total:     total.String(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.cache.Store(ctx, snapshot); err != nil {
		r.logger.Warn("allocation cache store failed", zap.Error(err))
	}
}
