package tracker

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/metrics"
)

const leaseReleaseTimeout = 5 * time.Second

func (t *Tracker) run(ctx context.Context, j *job, tx *domain.Transaction) {
	defer t.wg.Done()
	defer close(j.done)
	id := tx.ID
	defer func() { t.remove(id, j) }()

	log := t.log.With("tx", tx.ID, "chain", tx.Chain())

	if t.lease != nil {
		ok, err := t.lease.Acquire(ctx, tx.ID)
		if err != nil {
			log.Warn("Failed to acquire lease", "error", err)
			return
		}
		if !ok {
			log.Debug("Transaction polled by another instance")
			return
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.Background(), leaseReleaseTimeout)
			defer cancel()
			if err := t.lease.Release(rctx, id); err != nil {
				log.Warn("Failed to release lease", "error", err)
			}
		}()
	}

	timing := t.timings.For(tx.Chain())
	log.Debug("Tracking transaction", "block_time", timing.BlockTime, "timeout", timing.Timeout)

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-t.clock.After(Delay(timing.BlockTime, attempt)):
		}

		if t.lease != nil {
			if err := t.lease.Refresh(ctx, id); err != nil {
				log.Warn("Lease lost, stopping job", "error", err)
				return
			}
		}

		stored, stop := t.reload(ctx, id, log)
		if stop {
			return
		}
		if stored != nil {
			tx = stored
		}

		next, changed := t.check(ctx, tx)
		if changed {
			if err := t.persist(ctx, tx.ID, next); err != nil {
				log.Error("Failed to persist transaction", "attempt", attempt, "error", err)
				continue
			}
			if next.ID != tx.ID {
				if !t.rekey(tx.ID, next.ID, j) {
					log.Info("Replaced transaction already tracked", "new_tx", next.ID)
					return
				}
				id = next.ID
				if t.lease != nil {
					t.moveLease(ctx, tx.ID, next.ID)
				}
				log = log.With("new_tx", next.ID)
			}
			tx = next
		}

		now := t.clock.Now()
		if tx.State == domain.TxStatePending && now.Sub(tx.CreatedAt) > timing.Timeout {
			failed := tx.Clone()
			failed.State = domain.TxStateFailed
			failed.UpdatedAt = now
			if err := t.repo.Upsert(ctx, failed); err != nil {
				log.Error("Failed to persist timeout", "error", err)
				continue
			}
			tx = failed
			log.Warn("Transaction timed out", "created_at", tx.CreatedAt)
		}

		if tx.State != domain.TxStatePending {
			log.Info("Transaction finished", "state", tx.State, "attempt", attempt)
			metrics.TrackerTerminal.WithLabelValues(string(tx.Chain()), string(tx.State)).Inc()
			if t.out != nil {
				t.out.Publish(*tx)
			}
			return
		}
	}
}

// reload returns the stored row for id so that writes from other
// components are not overwritten by this job's copy. The job stops when the
// row is gone or no longer Pending. A nil row with stop false means storage
// could not be read and the job keeps its own copy.
func (t *Tracker) reload(ctx context.Context, id string, log *slog.Logger) (*domain.Transaction, bool) {
	stored, err := t.repo.Get(ctx, id)
	switch {
	case ctx.Err() != nil:
		return nil, true
	case errors.Is(err, domain.ErrNotFound):
		log.Info("Transaction removed from storage, stopping job")
		return nil, true
	case err != nil:
		log.Warn("Failed to reload transaction", "error", err)
		return nil, false
	case stored.State != domain.TxStatePending:
		log.Info("Transaction finished elsewhere", "state", stored.State)
		return nil, true
	}
	return stored, false
}

// check asks the chain about tx. The second result is false when nothing
// needs to be persisted.
func (t *Tracker) check(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, bool) {
	checker, err := t.checkers.StatusChecker(tx.Chain())
	if err != nil {
		t.log.Error("No status checker", "chain", tx.Chain(), "error", err)
		return tx, false
	}

	changes, err := checker.Status(ctx, domain.StatusRequest{
		Chain:  tx.Chain(),
		Sender: tx.Owner,
		Hash:   tx.Hash,
		Block:  tx.BlockNumber,
	})
	var lifecycleErr *domain.Error
	if err != nil && !errors.As(err, &lifecycleErr) && rpc.IsTransient(err) {
		err = domain.Unavailable(tx.Chain(), "status", err)
	}
	metrics.TrackerPolls.WithLabelValues(string(tx.Chain()), metrics.Result(err)).Inc()

	switch {
	case errors.Is(err, domain.ErrServiceUnavailable):
		next := tx.Clone()
		next.UpdatedAt = t.clock.Now()
		return next, true
	case err != nil:
		t.log.Debug("Status check failed", "tx", tx.ID, "error", err)
		return tx, false
	}
	return apply(tx, changes, t.clock.Now())
}

// apply folds observed changes into a copy of tx.
func apply(tx *domain.Transaction, changes domain.TransactionChanges, now time.Time) (*domain.Transaction, bool) {
	stateChanged := changes.State != "" && changes.State != tx.State
	hashChanged := changes.HashChange != nil && changes.HashChange.New != "" && changes.HashChange.New != tx.Hash
	if !stateChanged && !hashChanged {
		return tx, false
	}

	next := tx.Clone()
	if stateChanged {
		next.State = changes.State
	}
	if hashChanged {
		next.Hash = changes.HashChange.New
		next.ID = domain.TransactionID(tx.Chain(), next.Hash)
	}
	if changes.Fee != nil {
		next.Fee = new(big.Int).Set(changes.Fee)
	}
	if changes.BlockNumber != "" {
		next.BlockNumber = changes.BlockNumber
	}
	next.UpdatedAt = now
	return next, true
}

func (t *Tracker) persist(ctx context.Context, oldID string, tx *domain.Transaction) error {
	if tx.ID != oldID {
		return t.repo.Replace(ctx, oldID, tx)
	}
	return t.repo.Upsert(ctx, tx)
}

func (t *Tracker) moveLease(ctx context.Context, oldID, newID string) {
	if _, err := t.lease.Acquire(ctx, newID); err != nil {
		t.log.Warn("Failed to move lease", "tx", oldID, "new_tx", newID, "error", err)
	}
	if err := t.lease.Release(ctx, oldID); err != nil {
		t.log.Warn("Failed to release lease", "tx", oldID, "error", err)
	}
}
