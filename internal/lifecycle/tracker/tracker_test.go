package tracker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage/memory"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/feed"
)

// scripted returns one result per call, repeating the last one.
type scripted struct {
	mu      sync.Mutex
	results []result
	calls   int
}

type result struct {
	changes domain.TransactionChanges
	err     error
}

func (s *scripted) Status(ctx context.Context, req domain.StatusRequest) (domain.TransactionChanges, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	return s.results[i].changes, s.results[i].err
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type checkers map[domain.Chain]chain.StatusChecker

func (c checkers) StatusChecker(ch domain.Chain) (chain.StatusChecker, error) {
	sc, ok := c[ch]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for chain %q", ch)
	}
	return sc, nil
}

func pendingTx(hash string, created time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:        domain.TransactionID(domain.ChainCosmos, hash),
		Hash:      hash,
		AssetID:   domain.NativeAsset(domain.ChainCosmos),
		State:     domain.TxStatePending,
		Fee:       big.NewInt(2_000_000_000),
		Value:     big.NewInt(10_000),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

var testTimings = Timings{domain.ChainCosmos: {BlockTime: time.Second, Timeout: 30 * time.Second}}

type fixture struct {
	clock   *clock.Mock
	repo    *memory.TxRepo
	feed    *feed.Feed
	sub     *feed.Subscription
	checker *scripted
	tracker *Tracker
}

func newFixture(t *testing.T, results ...result) *fixture {
	t.Helper()
	f := &fixture{
		clock:   clock.NewMock(),
		repo:    memory.NewTxRepo(memory.NewMemoryStorage()),
		feed:    feed.New(8),
		checker: &scripted{results: results},
	}
	f.sub = f.feed.Subscribe()
	f.tracker = New(f.repo, checkers{domain.ChainCosmos: f.checker}, f.feed,
		WithClock(f.clock), WithTimings(testTimings))
	t.Cleanup(f.tracker.Stop)
	return f
}

// advanceUntil moves the mock clock forward in small steps until cond holds.
func (f *fixture) advanceUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		f.clock.Add(100 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
}

func (f *fixture) final(t *testing.T) domain.Transaction {
	t.Helper()
	select {
	case batch := <-f.sub.C():
		require.Len(t, batch, 1)
		return batch[0]
	case <-time.After(5 * time.Second):
		t.Fatal("no change emitted")
	}
	return domain.Transaction{}
}

func TestDelay(t *testing.T) {
	tests := []struct {
		blockTime time.Duration
		iteration int
		want      time.Duration
	}{
		{time.Second, 0, 1200 * time.Millisecond},
		{time.Second, 1, 1500 * time.Millisecond},
		{time.Second, 2, 2 * time.Second},
		{time.Second, 3, 5 * time.Second},
		{time.Second, 4, 10 * time.Second},
		{time.Second, 50, 10 * time.Second},
		{6 * time.Second, 0, 7200 * time.Millisecond},
		{6 * time.Second, 2, 10 * time.Second},
		{10 * time.Minute, 0, MaxDelay},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Delay(tt.blockTime, tt.iteration), "blockTime=%s i=%d", tt.blockTime, tt.iteration)
	}
}

func TestDelay_NonDecreasingAndCapped(t *testing.T) {
	for _, bt := range []time.Duration{400 * time.Millisecond, 3 * time.Second, 12 * time.Second} {
		prev := time.Duration(0)
		for i := 0; i < 20; i++ {
			d := Delay(bt, i)
			assert.GreaterOrEqual(t, d, prev)
			assert.LessOrEqual(t, d, MaxDelay)
			prev = d
		}
	}
}

func TestTimings_For(t *testing.T) {
	timings := Timings{domain.ChainTron: {BlockTime: time.Second}}

	tron := timings.For(domain.ChainTron)
	assert.Equal(t, time.Second, tron.BlockTime)
	assert.Equal(t, 10*time.Minute, tron.Timeout)

	btc := timings.For(domain.ChainBitcoin)
	assert.Equal(t, 10*time.Minute, btc.BlockTime)
	assert.Equal(t, 48*time.Hour, btc.Timeout)

	unknown := timings.For(domain.Chain("nowhere"))
	assert.Equal(t, defaultTiming, unknown)
}

func TestTracker_ConfirmedOnFirstPoll(t *testing.T) {
	f := newFixture(t, result{changes: domain.TransactionChanges{
		State:       domain.TxStateConfirmed,
		Fee:         big.NewInt(1_500_000_000),
		BlockNumber: "17001",
	}})
	ctx := context.Background()
	tx := pendingTx("AB12", f.clock.Now())
	require.NoError(t, f.repo.Upsert(ctx, tx))

	require.True(t, f.tracker.Track(tx))
	assert.True(t, f.tracker.IsTracking(tx.ID))
	assert.False(t, f.tracker.Track(tx), "one job per transaction")

	f.advanceUntil(t, func() bool { return !f.tracker.IsTracking(tx.ID) })

	got := f.final(t)
	assert.Equal(t, domain.TxStateConfirmed, got.State)
	assert.Equal(t, "17001", got.BlockNumber)
	assert.Equal(t, int64(1_500_000_000), got.Fee.Int64())

	stored, err := f.repo.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStateConfirmed, stored.State)
	assert.Equal(t, 1, f.checker.Calls())
	assert.Zero(t, f.tracker.Active())
}

func TestTracker_UnavailableStampsUpdatedAt(t *testing.T) {
	f := newFixture(t,
		result{err: domain.Unavailable(domain.ChainCosmos, "status", errors.New("dial tcp: connection refused"))},
		result{changes: domain.TransactionChanges{State: domain.TxStatePending}},
	)
	ctx := context.Background()
	created := f.clock.Now()
	tx := pendingTx("CD34", created)
	require.NoError(t, f.repo.Upsert(ctx, tx))
	require.True(t, f.tracker.Track(tx))

	f.advanceUntil(t, func() bool { return f.checker.Calls() >= 2 })

	stored, err := f.repo.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatePending, stored.State)
	assert.True(t, stored.UpdatedAt.After(created))
	assert.Equal(t, int64(2_000_000_000), stored.Fee.Int64())
	assert.True(t, f.tracker.IsTracking(tx.ID))
}

func TestTracker_OtherErrorLeavesRecord(t *testing.T) {
	f := newFixture(t, result{err: domain.NewError(domain.ErrNotFound, domain.ChainCosmos, "status", errors.New("tx not found"))})
	ctx := context.Background()
	created := f.clock.Now()
	tx := pendingTx("EF56", created)
	require.NoError(t, f.repo.Upsert(ctx, tx))
	require.True(t, f.tracker.Track(tx))

	f.advanceUntil(t, func() bool { return f.checker.Calls() >= 3 })

	stored, err := f.repo.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, created, stored.UpdatedAt)
	assert.Equal(t, domain.TxStatePending, stored.State)
}

func TestTracker_HashChangeReplacesRecord(t *testing.T) {
	f := newFixture(t, result{changes: domain.TransactionChanges{
		State:      domain.TxStateConfirmed,
		HashChange: &domain.HashChange{Old: "OLD", New: "NEW"},
	}})
	ctx := context.Background()
	tx := pendingTx("OLD", f.clock.Now())
	require.NoError(t, f.repo.Upsert(ctx, tx))
	require.NoError(t, f.repo.PutSwapMetadata(ctx, tx.ID, domain.SwapMetadata{Provider: "osmosis"}))
	require.True(t, f.tracker.Track(tx))

	f.advanceUntil(t, func() bool { return f.tracker.Active() == 0 })

	got := f.final(t)
	assert.Equal(t, "cosmos_NEW", got.ID)
	assert.Equal(t, "NEW", got.Hash)

	_, err := f.repo.Get(ctx, "cosmos_OLD")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	stored, err := f.repo.Get(ctx, "cosmos_NEW")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStateConfirmed, stored.State)

	meta, err := f.repo.GetSwapMetadata(ctx, "cosmos_NEW")
	require.NoError(t, err)
	assert.Equal(t, "osmosis", meta.Provider)
}

func TestTracker_TimeoutMarksFailed(t *testing.T) {
	f := newFixture(t, result{changes: domain.TransactionChanges{State: domain.TxStatePending}})
	ctx := context.Background()
	tx := pendingTx("GH78", f.clock.Now())
	require.NoError(t, f.repo.Upsert(ctx, tx))
	require.True(t, f.tracker.Track(tx))

	f.advanceUntil(t, func() bool { return !f.tracker.IsTracking(tx.ID) })

	got := f.final(t)
	assert.Equal(t, domain.TxStateFailed, got.State)
	assert.Greater(t, got.UpdatedAt.Sub(got.CreatedAt), testTimings[domain.ChainCosmos].Timeout)

	stored, err := f.repo.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStateFailed, stored.State)
}

func TestTracker_ExpiredPendingFailsOnFirstPoll(t *testing.T) {
	f := newFixture(t, result{changes: domain.TransactionChanges{State: domain.TxStatePending}})
	ctx := context.Background()
	timing := testTimings[domain.ChainCosmos]
	start := f.clock.Now()
	tx := pendingTx("EXP1", start.Add(-(timing.Timeout + time.Second)))
	require.NoError(t, f.repo.Upsert(ctx, tx))
	require.True(t, f.tracker.Track(tx))

	f.advanceUntil(t, func() bool { return !f.tracker.IsTracking(tx.ID) })

	got := f.final(t)
	assert.Equal(t, domain.TxStateFailed, got.State)
	assert.Equal(t, 1, f.checker.Calls())
	// the mock clock moves in 100ms steps
	assert.LessOrEqual(t, got.UpdatedAt.Sub(start), Delay(timing.BlockTime, 0)+100*time.Millisecond)

	stored, err := f.repo.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStateFailed, stored.State)
}

func TestTracker_KeepsStateWrittenBySync(t *testing.T) {
	f := newFixture(t, result{err: domain.NewError(domain.ErrNotFound, domain.ChainCosmos, "status", errors.New("tx not found"))})
	ctx := context.Background()
	tx := pendingTx("SYNC1", f.clock.Now())
	require.NoError(t, f.repo.Upsert(ctx, tx))
	require.True(t, f.tracker.Track(tx))

	f.advanceUntil(t, func() bool { return f.checker.Calls() >= 2 })

	synced := tx.Clone()
	synced.State = domain.TxStateConfirmed
	synced.BlockNumber = "17002"
	require.NoError(t, f.repo.PutTransactions(ctx, "wallet-1", []*domain.Transaction{synced}))

	f.advanceUntil(t, func() bool { return !f.tracker.IsTracking(tx.ID) })
	f.clock.Add(testTimings[domain.ChainCosmos].Timeout)

	stored, err := f.repo.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStateConfirmed, stored.State)
	assert.Equal(t, "17002", stored.BlockNumber)
}

func TestTracker_StopsWhenRowDeleted(t *testing.T) {
	f := newFixture(t, result{changes: domain.TransactionChanges{State: domain.TxStateConfirmed}})
	ctx := context.Background()
	tx := pendingTx("GONE", f.clock.Now())
	require.NoError(t, f.repo.Upsert(ctx, tx))
	require.True(t, f.tracker.Track(tx))

	n, err := f.repo.ClearPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	f.advanceUntil(t, func() bool { return !f.tracker.IsTracking(tx.ID) })

	_, err = f.repo.Get(ctx, tx.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.checker.Calls())
}

func TestTracker_TrackRacingStop(t *testing.T) {
	f := newFixture(t, result{changes: domain.TransactionChanges{State: domain.TxStatePending}})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			f.tracker.Track(pendingTx(fmt.Sprintf("R%d", i), f.clock.Now()))
		}
	}()
	f.tracker.Stop()
	wg.Wait()

	assert.Zero(t, f.tracker.Active())
	assert.False(t, f.tracker.Track(pendingTx("after", f.clock.Now())))
}

func TestTracker_TrackRejectsTerminal(t *testing.T) {
	f := newFixture(t, result{})
	tx := pendingTx("IJ90", f.clock.Now())
	tx.State = domain.TxStateReverted
	assert.False(t, f.tracker.Track(tx))
	assert.False(t, f.tracker.Track(nil))
}

func TestTracker_StopCancelsJobs(t *testing.T) {
	f := newFixture(t, result{changes: domain.TransactionChanges{State: domain.TxStatePending}})
	for i := 0; i < 3; i++ {
		require.True(t, f.tracker.Track(pendingTx(fmt.Sprintf("H%d", i), f.clock.Now())))
	}
	assert.Equal(t, 3, f.tracker.Active())

	f.tracker.Stop()
	assert.Zero(t, f.tracker.Active())
	assert.False(t, f.tracker.Track(pendingTx("late", f.clock.Now())))
}

func TestTracker_UntrackAll(t *testing.T) {
	f := newFixture(t, result{changes: domain.TransactionChanges{State: domain.TxStatePending}})
	require.True(t, f.tracker.Track(pendingTx("A", f.clock.Now())))
	require.True(t, f.tracker.Track(pendingTx("B", f.clock.Now())))

	f.tracker.UntrackAll()
	assert.Zero(t, f.tracker.Active())
	assert.True(t, f.tracker.Track(pendingTx("C", f.clock.Now())), "tracker keeps accepting jobs")
}

type fakeLease struct {
	mu    sync.Mutex
	held  map[string]bool
	taken map[string]bool
}

func (l *fakeLease) Acquire(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.taken[id] {
		return false, nil
	}
	l.held[id] = true
	return true, nil
}

func (l *fakeLease) Refresh(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held[id] {
		return errors.New("lost")
	}
	return nil
}

func (l *fakeLease) Release(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
	return nil
}

func TestTracker_LeaseHeldElsewhere(t *testing.T) {
	lease := &fakeLease{held: map[string]bool{}, taken: map[string]bool{"cosmos_X": true}}
	f := newFixture(t, result{changes: domain.TransactionChanges{State: domain.TxStateConfirmed}})
	f.tracker.lease = lease

	require.True(t, f.tracker.Track(pendingTx("X", f.clock.Now())))
	f.advanceUntil(t, func() bool { return f.tracker.Active() == 0 })
	assert.Zero(t, f.checker.Calls())
}

func TestTracker_LeaseReleasedOnFinish(t *testing.T) {
	lease := &fakeLease{held: map[string]bool{}, taken: map[string]bool{}}
	f := newFixture(t, result{changes: domain.TransactionChanges{State: domain.TxStateConfirmed}})
	f.tracker.lease = lease

	tx := pendingTx("Y", f.clock.Now())
	require.NoError(t, f.repo.Upsert(context.Background(), tx))
	require.True(t, f.tracker.Track(tx))
	f.advanceUntil(t, func() bool { return f.tracker.Active() == 0 })

	lease.mu.Lock()
	defer lease.mu.Unlock()
	assert.Empty(t, lease.held)
	assert.Equal(t, 1, f.checker.Calls())
}

func TestWatcher_ResumesPending(t *testing.T) {
	f := newFixture(t, result{changes: domain.TransactionChanges{State: domain.TxStatePending}})
	ctx := context.Background()
	now := f.clock.Now()

	require.NoError(t, f.repo.Upsert(ctx, pendingTx("P1", now)))
	require.NoError(t, f.repo.Upsert(ctx, pendingTx("P2", now)))
	done := pendingTx("P3", now)
	done.State = domain.TxStateConfirmed
	require.NoError(t, f.repo.Upsert(ctx, done))

	require.True(t, f.tracker.Track(pendingTx("P1", now)))

	w := NewWatcher(f.repo, f.tracker, time.Minute)
	started, err := w.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.True(t, f.tracker.IsTracking("cosmos_P2"))
	assert.False(t, f.tracker.IsTracking("cosmos_P3"))

	started, err = w.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, started)
}
