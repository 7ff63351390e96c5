package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage"
)

// TxRepo implements storage.TransactionRepository using PostgreSQL.
type TxRepo struct {
	db *DB
}

var _ storage.TransactionRepository = (*TxRepo)(nil)

// NewTxRepo creates a new PostgreSQL transaction repository.
func NewTxRepo(db *DB) *TxRepo {
	return &TxRepo{db: db}
}

// Upsert saves a transaction to the database.
func (r *TxRepo) Upsert(ctx context.Context, tx *domain.Transaction) error {
	if _, err := r.db.NamedExecContext(ctx, upsertTransaction, newTxRow(tx)); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// PutTransactions saves a synced batch and the swap legs it carries.
func (r *TxRepo) PutTransactions(ctx context.Context, walletID string, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	rows := make([]*domain.Transaction, len(txs))
	for i, tx := range txs {
		c := tx.Clone()
		c.WalletID = walletID
		rows[i] = c
	}

	return r.inUnitOfWork(ctx, func(u *UnitOfWork) error {
		if err := u.SaveTransactions(ctx, rows); err != nil {
			return err
		}
		for _, tx := range rows {
			if tx.Type != domain.TxTypeSwap || tx.Metadata == "" {
				continue
			}
			meta, err := domain.DecodeSwapMetadata(tx.Metadata)
			if err != nil {
				continue
			}
			if err := u.SaveSwapMetadata(ctx, tx.ID, *meta); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replace swaps the row of oldID for tx in one database transaction.
func (r *TxRepo) Replace(ctx context.Context, oldID string, tx *domain.Transaction) error {
	return r.inUnitOfWork(ctx, func(u *UnitOfWork) error {
		if err := u.SaveTransaction(ctx, tx); err != nil {
			return err
		}
		if oldID == tx.ID {
			return nil
		}
		if err := u.MoveSwapMetadata(ctx, oldID, tx.ID); err != nil {
			return fmt.Errorf("failed to move swap metadata: %w", err)
		}
		if _, err := u.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, oldID); err != nil {
			return fmt.Errorf("failed to delete replaced transaction: %w", err)
		}
		return nil
	})
}

// Delete removes a transaction and its swap legs.
func (r *TxRepo) Delete(ctx context.Context, id string) error {
	return r.inUnitOfWork(ctx, func(u *UnitOfWork) error {
		return u.DeleteTransaction(ctx, id)
	})
}

// Get retrieves a transaction by id.
func (r *TxRepo) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	var row txRow
	err := r.db.GetContext(ctx, &row, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return row.toDomain()
}

// ListPending returns pending transactions, oldest first.
func (r *TxRepo) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	var rows []txRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+txColumns+` FROM transactions WHERE state = $1 ORDER BY created_at, id`,
		string(domain.TxStatePending),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	txs := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// CountPending returns the number of pending transactions.
func (r *TxRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM transactions WHERE state = $1`, string(domain.TxStatePending))
	if err != nil {
		return 0, fmt.Errorf("failed to count pending transactions: %w", err)
	}
	return n, nil
}

// ClearPending deletes every pending transaction.
func (r *TxRepo) ClearPending(ctx context.Context) (int, error) {
	var n int64
	err := r.inUnitOfWork(ctx, func(u *UnitOfWork) error {
		pending := string(domain.TxStatePending)
		if _, err := u.tx.ExecContext(ctx,
			`DELETE FROM swap_metadata WHERE tx_id IN (SELECT id FROM transactions WHERE state = $1)`, pending,
		); err != nil {
			return err
		}
		res, err := u.tx.ExecContext(ctx, `DELETE FROM transactions WHERE state = $1`, pending)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear pending transactions: %w", err)
	}
	return int(n), nil
}

// LastUpdated returns the newest update time of the wallet's rows.
func (r *TxRepo) LastUpdated(ctx context.Context, walletID string) (time.Time, error) {
	var last sql.NullTime
	err := r.db.GetContext(ctx, &last, `SELECT MAX(updated_at) FROM transactions WHERE wallet_id = $1`, walletID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last update: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

// PutSwapMetadata stores swap legs for a transaction.
func (r *TxRepo) PutSwapMetadata(ctx context.Context, txID string, meta domain.SwapMetadata) error {
	return r.inUnitOfWork(ctx, func(u *UnitOfWork) error {
		return u.SaveSwapMetadata(ctx, txID, meta)
	})
}

// GetSwapMetadata retrieves swap legs for a transaction.
func (r *TxRepo) GetSwapMetadata(ctx context.Context, txID string) (*domain.SwapMetadata, error) {
	var row swapRow
	err := r.db.GetContext(ctx, &row, `
		SELECT tx_id, from_asset, from_value::text AS from_value, to_asset, to_value::text AS to_value, provider
		FROM swap_metadata WHERE tx_id = $1`, txID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swap metadata: %w", err)
	}
	return row.toDomain()
}

func (r *TxRepo) inUnitOfWork(ctx context.Context, fn func(u *UnitOfWork) error) error {
	u, err := r.db.NewUnitOfWork(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = u.Rollback()
	}()
	if err := fn(u); err != nil {
		return err
	}
	return u.Commit()
}
