// Package retention prunes the suggestion log.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger deletes suggestions created before a cutoff.
type Purger interface {
	PurgeBefore(t time.Time) (int64, error)
}

// Worker periodically deletes suggestions older than the retention window.
type Worker struct {
	store  Purger
	keep   time.Duration
	poll   time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewWorker creates a Worker keeping retentionDays of history.
// If pollInterval is <= 0, it defaults to one hour.
func NewWorker(store Purger, retentionDays int, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Hour
	}
	return &Worker{
		store:  store,
		keep:   time.Duration(retentionDays) * 24 * time.Hour,
		poll:   pollInterval,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// Run purges once immediately and then every poll interval until ctx is
// cancelled. A non-positive retention disables purging.
func (w *Worker) Run(ctx context.Context) {
	if w.keep <= 0 {
		w.logger.Info("suggestion retention disabled")
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("retention pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce deletes every suggestion older than the retention window and
// returns how many were removed.
func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := w.now().Add(-w.keep)
	n, err := w.store.PurgeBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging suggestions before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		w.logger.Info("purged old suggestions", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}
