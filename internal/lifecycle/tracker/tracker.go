// Package tracker drives pending transactions to a terminal state.
//
// Every pending transaction gets one polling job. Jobs are owned by a
// Tracker which cancels and waits for them on Stop. The Watcher resumes
// jobs for Pending rows found in storage, which covers process restarts.
package tracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/metrics"
)

// StatusCheckers resolves the status checker for a chain.
type StatusCheckers interface {
	StatusChecker(c domain.Chain) (chain.StatusChecker, error)
}

// Publisher receives the final record of every finished job.
type Publisher interface {
	Publish(txs ...domain.Transaction)
}

// Lease grants one engine instance the right to poll a transaction.
// Without a lease, jobs are only deduplicated within the process.
type Lease interface {
	Acquire(ctx context.Context, txID string) (bool, error)
	Refresh(ctx context.Context, txID string) error
	Release(ctx context.Context, txID string) error
}

// Tracker supervises polling jobs.
type Tracker struct {
	repo     storage.TransactionRepository
	checkers StatusCheckers
	out      Publisher
	lease    Lease
	timings  Timings
	clock    clock.Clock
	log      *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	jobs    sync.Map // tx id -> *job
	wg      sync.WaitGroup
	mu      sync.Mutex // orders wg.Add against Stop
	stopped bool
}

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

func WithLease(l Lease) Option {
	return func(t *Tracker) { t.lease = l }
}

func WithTimings(timings Timings) Option {
	return func(t *Tracker) { t.timings = timings }
}

// New creates a tracker. Jobs may be started immediately.
func New(repo storage.TransactionRepository, checkers StatusCheckers, out Publisher, opts ...Option) *Tracker {
	t := &Tracker{
		repo:     repo,
		checkers: checkers,
		out:      out,
		clock:    clock.New(),
		log:      slog.Default().With("component", "tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t
}

// Track starts a job for a pending transaction. It returns false when the
// transaction is not pending, a job already exists or the tracker stopped.
func (t *Tracker) Track(tx *domain.Transaction) bool {
	if tx == nil || tx.State != domain.TxStatePending {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	ctx, cancel := context.WithCancel(t.ctx)
	j := &job{cancel: cancel, done: make(chan struct{})}
	if _, loaded := t.jobs.LoadOrStore(tx.ID, j); loaded {
		cancel()
		return false
	}
	metrics.TrackerActiveJobs.Inc()
	t.wg.Add(1)
	go t.run(ctx, j, tx.Clone())
	return true
}

// Untrack cancels the job for id, if any.
func (t *Tracker) Untrack(id string) {
	if v, ok := t.jobs.Load(id); ok {
		v.(*job).cancel()
	}
}

// UntrackAll cancels every job and waits for them to exit. The tracker
// keeps accepting new jobs.
func (t *Tracker) UntrackAll() {
	var running []*job
	t.jobs.Range(func(_, v any) bool {
		j := v.(*job)
		j.cancel()
		running = append(running, j)
		return true
	})
	for _, j := range running {
		<-j.done
	}
}

// IsTracking reports whether a job exists for id.
func (t *Tracker) IsTracking(id string) bool {
	_, ok := t.jobs.Load(id)
	return ok
}

// Active returns the number of running jobs.
func (t *Tracker) Active() int {
	n := 0
	t.jobs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stop cancels all jobs and waits for them to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.cancel()
	t.mu.Unlock()
	t.wg.Wait()
	t.log.Info("Tracker stopped")
}

func (t *Tracker) remove(id string, j *job) {
	if t.jobs.CompareAndDelete(id, j) {
		metrics.TrackerActiveJobs.Dec()
	}
	j.cancel()
}

// rekey moves a job to the id of a replaced record. It returns false when
// another job already owns the new id.
func (t *Tracker) rekey(oldID, newID string, j *job) bool {
	if _, loaded := t.jobs.LoadOrStore(newID, j); loaded {
		return false
	}
	t.jobs.CompareAndDelete(oldID, j)
	return true
}
