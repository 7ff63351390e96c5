package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/metrics"
)

// UnitOfWork bundles several writes into a single database transaction,
// ensuring atomicity (all succeed or all fail).
type UnitOfWork struct {
	tx *sqlx.Tx
}

// NewUnitOfWork creates a new unit of work with an active transaction.
func (db *DB) NewUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

const upsertTransaction = `
	INSERT INTO transactions (
		id, wallet_id, hash, chain, asset_id, fee_asset_id, owner, recipient, type, state,
		block_number, sequence, fee, value, memo, direction, metadata, created_at, updated_at
	) VALUES (
		:id, :wallet_id, :hash, :chain, :asset_id, :fee_asset_id, :owner, :recipient, :type, :state,
		:block_number, :sequence, :fee, :value, :memo, :direction, :metadata, :created_at, :updated_at
	)
	ON CONFLICT (id) DO UPDATE SET
		wallet_id = EXCLUDED.wallet_id,
		hash = EXCLUDED.hash,
		state = EXCLUDED.state,
		block_number = EXCLUDED.block_number,
		sequence = EXCLUDED.sequence,
		fee = EXCLUDED.fee,
		value = EXCLUDED.value,
		memo = EXCLUDED.memo,
		metadata = EXCLUDED.metadata,
		updated_at = EXCLUDED.updated_at
`

// SaveTransaction upserts one row.
func (u *UnitOfWork) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if _, err := u.tx.NamedExecContext(ctx, upsertTransaction, newTxRow(tx)); err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
	}
	return nil
}

// SaveTransactions upserts multiple rows with one multi-row INSERT.
func (u *UnitOfWork) SaveTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	n := len(txs)
	ids := make([]string, n)
	walletIDs := make([]string, n)
	hashes := make([]string, n)
	chains := make([]string, n)
	assets := make([]string, n)
	feeAssets := make([]string, n)
	owners := make([]string, n)
	recipients := make([]string, n)
	types := make([]string, n)
	states := make([]string, n)
	blocks := make([]string, n)
	sequences := make([]string, n)
	fees := make([]string, n)
	values := make([]string, n)
	memos := make([]string, n)
	directions := make([]string, n)
	metadatas := make([]string, n)
	createdAts := make([]string, n)
	updatedAts := make([]string, n)

	for i, t := range txs {
		r := newTxRow(t)
		ids[i] = r.ID
		walletIDs[i] = r.WalletID
		hashes[i] = r.Hash
		chains[i] = r.Chain
		assets[i] = r.AssetID
		feeAssets[i] = r.FeeAssetID
		owners[i] = r.Owner
		recipients[i] = r.Recipient
		types[i] = r.Type
		states[i] = r.State
		blocks[i] = r.BlockNumber
		sequences[i] = r.Sequence
		fees[i] = r.Fee
		values[i] = r.Value
		memos[i] = r.Memo
		directions[i] = r.Direction
		metadatas[i] = r.Metadata
		createdAts[i] = r.CreatedAt.Format(time.RFC3339Nano)
		updatedAts[i] = r.UpdatedAt.Format(time.RFC3339Nano)
	}

	metrics.DBBatchSize.WithLabelValues("save_transactions").Observe(float64(n))

	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, wallet_id, hash, chain, asset_id, fee_asset_id, owner, recipient, type, state,
			block_number, sequence, fee, value, memo, direction, metadata, created_at, updated_at
		)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[], $7::text[],
			$8::text[], $9::text[], $10::text[], $11::text[], $12::text[], $13::numeric[],
			$14::numeric[], $15::text[], $16::text[], $17::text[], $18::timestamptz[], $19::timestamptz[]
		)
		ON CONFLICT (id) DO UPDATE SET
			wallet_id = EXCLUDED.wallet_id,
			hash = EXCLUDED.hash,
			state = EXCLUDED.state,
			block_number = EXCLUDED.block_number,
			sequence = EXCLUDED.sequence,
			fee = EXCLUDED.fee,
			value = EXCLUDED.value,
			memo = EXCLUDED.memo,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`,
		pq.Array(ids), pq.Array(walletIDs), pq.Array(hashes), pq.Array(chains), pq.Array(assets),
		pq.Array(feeAssets), pq.Array(owners), pq.Array(recipients), pq.Array(types), pq.Array(states),
		pq.Array(blocks), pq.Array(sequences), pq.Array(fees), pq.Array(values), pq.Array(memos),
		pq.Array(directions), pq.Array(metadatas), pq.Array(createdAts), pq.Array(updatedAts),
	)
	if err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}
	return nil
}

// SaveSwapMetadata upserts swap legs for a transaction.
func (u *UnitOfWork) SaveSwapMetadata(ctx context.Context, txID string, meta domain.SwapMetadata) error {
	_, err := u.tx.NamedExecContext(ctx, `
		INSERT INTO swap_metadata (tx_id, from_asset, from_value, to_asset, to_value, provider)
		VALUES (:tx_id, :from_asset, :from_value, :to_asset, :to_value, :provider)
		ON CONFLICT (tx_id) DO UPDATE SET
			from_asset = EXCLUDED.from_asset,
			from_value = EXCLUDED.from_value,
			to_asset = EXCLUDED.to_asset,
			to_value = EXCLUDED.to_value,
			provider = EXCLUDED.provider`,
		newSwapRow(txID, meta),
	)
	if err != nil {
		return fmt.Errorf("failed to save swap metadata %s: %w", txID, err)
	}
	return nil
}

// MoveSwapMetadata re-keys swap legs after a hash change.
func (u *UnitOfWork) MoveSwapMetadata(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return nil
	}
	if _, err := u.tx.ExecContext(ctx, `DELETE FROM swap_metadata WHERE tx_id = $1`, newID); err != nil {
		return err
	}
	_, err := u.tx.ExecContext(ctx, `UPDATE swap_metadata SET tx_id = $1 WHERE tx_id = $2`, newID, oldID)
	return err
}

// DeleteTransaction removes a row and its swap legs.
func (u *UnitOfWork) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := u.tx.ExecContext(ctx, `DELETE FROM swap_metadata WHERE tx_id = $1`, id); err != nil {
		return err
	}
	_, err := u.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}
