package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage"
)

// MemoryStorage is the in-process transaction store used when no
// database is configured and in tests.
type MemoryStorage struct {
	txs   map[string]*domain.Transaction
	swaps map[string]domain.SwapMetadata
	mu    sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		txs:   make(map[string]*domain.Transaction),
		swaps: make(map[string]domain.SwapMetadata),
	}
}

// -----------------------------------------------------------------------------
// Transaction Repository
// -----------------------------------------------------------------------------

type TxRepo struct {
	store *MemoryStorage
}

var _ storage.TransactionRepository = (*TxRepo)(nil)

func NewTxRepo(store *MemoryStorage) *TxRepo {
	return &TxRepo{store: store}
}

func (r *TxRepo) Upsert(ctx context.Context, tx *domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.txs[tx.ID] = tx.Clone()
	return nil
}

func (r *TxRepo) PutTransactions(ctx context.Context, walletID string, txs []*domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, tx := range txs {
		c := tx.Clone()
		c.WalletID = walletID
		r.store.txs[c.ID] = c
		if c.Type == domain.TxTypeSwap && c.Metadata != "" {
			meta, err := domain.DecodeSwapMetadata(c.Metadata)
			if err != nil {
				continue
			}
			r.store.swaps[c.ID] = *meta
		}
	}
	return nil
}

func (r *TxRepo) Replace(ctx context.Context, oldID string, tx *domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.txs, oldID)
	r.store.txs[tx.ID] = tx.Clone()
	if meta, ok := r.store.swaps[oldID]; ok && oldID != tx.ID {
		delete(r.store.swaps, oldID)
		r.store.swaps[tx.ID] = meta
	}
	return nil
}

func (r *TxRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.txs, id)
	delete(r.store.swaps, id)
	return nil
}

func (r *TxRepo) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	tx, ok := r.store.txs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return tx.Clone(), nil
}

func (r *TxRepo) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Transaction
	for _, tx := range r.store.txs {
		if tx.State == domain.TxStatePending {
			out = append(out, tx.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *TxRepo) CountPending(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	n := 0
	for _, tx := range r.store.txs {
		if tx.State == domain.TxStatePending {
			n++
		}
	}
	return n, nil
}

func (r *TxRepo) ClearPending(ctx context.Context) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for id, tx := range r.store.txs {
		if tx.State == domain.TxStatePending {
			delete(r.store.txs, id)
			delete(r.store.swaps, id)
			n++
		}
	}
	return n, nil
}

func (r *TxRepo) LastUpdated(ctx context.Context, walletID string) (time.Time, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var last time.Time
	for _, tx := range r.store.txs {
		if tx.WalletID == walletID && tx.UpdatedAt.After(last) {
			last = tx.UpdatedAt
		}
	}
	return last, nil
}

func (r *TxRepo) PutSwapMetadata(ctx context.Context, txID string, meta domain.SwapMetadata) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.swaps[txID] = meta
	return nil
}

func (r *TxRepo) GetSwapMetadata(ctx context.Context, txID string) (*domain.SwapMetadata, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	meta, ok := r.store.swaps[txID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &meta, nil
}
