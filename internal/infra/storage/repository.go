package storage

import (
	"context"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

// ErrNotFound is returned when a transaction doesn't exist.
var ErrNotFound = domain.ErrNotFound

// TransactionRepository is the single source of truth for submitted
// transactions. Pending rows are created at broadcast, mutated by the
// tracker and removed only by Replace or ClearPending.
type TransactionRepository interface {
	// Upsert inserts the transaction or overwrites the row with its id.
	Upsert(ctx context.Context, tx *domain.Transaction) error

	// PutTransactions bulk upserts rows from an external sync. Swap rows
	// carrying metadata also get their swap metadata stored.
	PutTransactions(ctx context.Context, walletID string, txs []*domain.Transaction) error

	// Replace atomically deletes oldID and inserts tx. Swap metadata
	// follows the new id.
	Replace(ctx context.Context, oldID string, tx *domain.Transaction) error

	// Delete removes a transaction by id. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	// Get retrieves a transaction by id or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Transaction, error)

	// ListPending returns every Pending transaction, oldest first.
	ListPending(ctx context.Context) ([]*domain.Transaction, error)

	// CountPending returns the number of Pending transactions.
	CountPending(ctx context.Context) (int, error)

	// ClearPending deletes every Pending transaction and returns how many
	// were removed.
	ClearPending(ctx context.Context) (int, error)

	// LastUpdated returns the newest update time for a wallet, zero when
	// the wallet has no transactions.
	LastUpdated(ctx context.Context, walletID string) (time.Time, error)

	// PutSwapMetadata stores swap legs keyed by transaction id.
	PutSwapMetadata(ctx context.Context, txID string, meta domain.SwapMetadata) error

	// GetSwapMetadata retrieves swap legs or ErrNotFound.
	GetSwapMetadata(ctx context.Context, txID string) (*domain.SwapMetadata, error)
}
