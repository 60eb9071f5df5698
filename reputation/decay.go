package reputation

import (
	"context"
	"log/slog"
	"math"
	"time"
)

var (
	DefaultDecayInterval = time.Hour
	DefaultDecayRate     = 0.05
	DecayTarget          = 50.0
	// adjustments smaller than this are skipped to avoid history churn
	decayEpsilon = 0.01
)

// DecayWorker periodically pulls every score toward the neutral baseline by
// (target - score) * rate. Permanent-zero records are skipped entirely:
// there is no path back from a permanent zero, not even via decay toward 50.
type DecayWorker struct {
	Store    Store
	Logger   *slog.Logger
	Interval time.Duration
	Rate     float64
}

func NewDecayWorker(store Store, logger *slog.Logger) *DecayWorker {
	if logger == nil {
		logger = slog.Default().With("system", "reputation-decay")
	}
	return &DecayWorker{
		Store:    store,
		Logger:   logger,
		Interval: DefaultDecayInterval,
		Rate:     DefaultDecayRate,
	}
}

// Run loops decay passes until the context is cancelled.
func (w *DecayWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunPass(ctx); err != nil {
				w.Logger.Error("decay pass failed", "err", err)
			}
		}
	}
}

// RunPass applies one decay step to every eligible record.
func (w *DecayWorker) RunPass(ctx context.Context) error {
	start := time.Now()
	var visited, adjusted int
	err := w.Store.ForEach(ctx, func(rec *Record) error {
		visited++
		if rec.PermanentZero {
			return nil
		}
		delta := (DecayTarget - rec.Score) * w.Rate
		if math.Abs(delta) < decayEpsilon {
			return nil
		}
		if _, err := w.Store.ApplyDelta(ctx, rec.UserID, rec.Scope, delta, "decay"); err != nil {
			return err
		}
		adjusted++
		return nil
	})
	if err != nil {
		return err
	}
	decayPassDuration.Observe(time.Since(start).Seconds())
	w.Logger.Info("decay pass complete", "visited", visited, "adjusted", adjusted)
	return nil
}
