package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage"
)

const DefaultRescanInterval = 30 * time.Second

// Watcher starts jobs for Pending rows that have none, such as rows left
// by a previous process or written by another component.
type Watcher struct {
	repo     storage.TransactionRepository
	tracker  *Tracker
	interval time.Duration
	clock    clock.Clock
	log      *slog.Logger
}

func NewWatcher(repo storage.TransactionRepository, tracker *Tracker, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultRescanInterval
	}
	return &Watcher{
		repo:     repo,
		tracker:  tracker,
		interval: interval,
		clock:    tracker.clock,
		log:      slog.Default().With("component", "pending-watcher"),
	}
}

// Run scans once immediately, then every interval until ctx ends.
func (w *Watcher) Run(ctx context.Context) {
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Scan(ctx); err != nil {
			w.log.Warn("Pending scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan starts jobs for untracked Pending rows and returns how many started.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	pending, err := w.repo.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	started := 0
	for _, tx := range pending {
		if w.tracker.Track(tx) {
			started++
		}
	}
	if started > 0 {
		w.log.Info("Resumed pending transactions", "count", started, "pending", len(pending))
	}
	return started, nil
}
