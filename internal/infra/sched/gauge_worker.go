package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-link-gateway/internal/infra/metrics"
	"telegram-link-gateway/internal/usecase"
)

// PoolStatsFunc reports database connection pool usage.
type PoolStatsFunc func() (total, idle, inUse int32)

// GaugeWorker periodically refreshes the store gauges.
type GaugeWorker struct {
	interval  time.Duration
	stats     usecase.StatsUseCase
	poolStats PoolStatsFunc
	log       *zerolog.Logger
}

// NewGaugeWorker builds the worker. poolStats may be nil when the store has no connection pool.
func NewGaugeWorker(interval time.Duration, stats usecase.StatsUseCase, poolStats PoolStatsFunc, logger *zerolog.Logger) *GaugeWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	gl := logger.With().Str("component", "GaugeWorker").Logger()
	return &GaugeWorker{
		interval:  interval,
		stats:     stats,
		poolStats: poolStats,
		log:       &gl,
	}
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (w *GaugeWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting gauge worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping gauge worker")
			return ctx.Err()
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *GaugeWorker) refresh(ctx context.Context) {
	if w.poolStats != nil {
		metrics.SetDBPoolStats(w.poolStats())
	}
	u, err := w.stats.Usage(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("gauge refresh failed")
		return
	}
	metrics.SetIdentitiesTotal(u.Identities)
	metrics.SetStoreUsedBytes(u.UsedBytes)
}
