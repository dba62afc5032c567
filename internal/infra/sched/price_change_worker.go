package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"interview-sessions/internal/infra/metrics"
	"interview-sessions/internal/infra/redis"
)

const (
	priceChangeWorker  = "price_change_applier"
	priceChangeLockKey = "locks:price-change-applier"
)

// DueApplier is the slice of the scheduled change use case the worker drives.
type DueApplier interface {
	ApplyDue(ctx context.Context, now time.Time) (int, error)
}

// PriceChangeWorker applies scheduled price changes whose date has passed.
// With a locker only one replica sweeps per tick.
type PriceChangeWorker struct {
	interval time.Duration
	lockTTL  time.Duration
	changes  DueApplier
	locker   redis.Locker
	now      func() time.Time
	log      *zerolog.Logger
}

func NewPriceChangeWorker(interval, lockTTL time.Duration, changes DueApplier, locker redis.Locker, logger *zerolog.Logger) *PriceChangeWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if logger == nil {
		n := zerolog.Nop()
		logger = &n
	}
	compLog := logger.With().Str("component", "PriceChangeWorker").Logger()
	return &PriceChangeWorker{
		interval: interval,
		lockTTL:  lockTTL,
		changes:  changes,
		locker:   locker,
		now:      time.Now,
		log:      &compLog,
	}
}

func (w *PriceChangeWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting price change worker")
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping price change worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep runs one pass and reports its outcome.
func (w *PriceChangeWorker) sweep(ctx context.Context) string {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, priceChangeLockKey, w.lockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			metrics.IncWorkerTick(priceChangeWorker, "skipped_locked")
			return "skipped_locked"
		}
		if err != nil {
			// Without redis the sweep still runs; Apply itself is single-shot.
			w.log.Warn().Err(err).Msg("price change lock unavailable")
		} else {
			defer func() {
				if err := w.locker.Unlock(context.WithoutCancel(ctx), priceChangeLockKey, token); err != nil {
					w.log.Warn().Err(err).Msg("price change unlock failed")
				}
			}()
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, w.lockTTL)
	defer cancel()
	n, err := w.changes.ApplyDue(runCtx, w.now())
	if n > 0 {
		w.log.Info().Int("count", n).Msg("scheduled price changes applied")
	}
	if err != nil {
		w.log.Error().Err(err).Msg("price change sweep failed")
		metrics.IncWorkerTick(priceChangeWorker, "error")
		return "error"
	}
	metrics.IncWorkerTick(priceChangeWorker, "ran")
	return "ran"
}
