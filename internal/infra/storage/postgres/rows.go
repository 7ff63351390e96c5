package postgres

import (
	"fmt"
	"math/big"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

const txColumns = `id, wallet_id, hash, chain, asset_id, fee_asset_id, owner, recipient, type, state,
	block_number, sequence, fee::text AS fee, value::text AS value, memo, direction, metadata,
	created_at, updated_at`

type txRow struct {
	ID          string    `db:"id"`
	WalletID    string    `db:"wallet_id"`
	Hash        string    `db:"hash"`
	Chain       string    `db:"chain"`
	AssetID     string    `db:"asset_id"`
	FeeAssetID  string    `db:"fee_asset_id"`
	Owner       string    `db:"owner"`
	Recipient   string    `db:"recipient"`
	Type        string    `db:"type"`
	State       string    `db:"state"`
	BlockNumber string    `db:"block_number"`
	Sequence    string    `db:"sequence"`
	Fee         string    `db:"fee"`
	Value       string    `db:"value"`
	Memo        string    `db:"memo"`
	Direction   string    `db:"direction"`
	Metadata    string    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func newTxRow(tx *domain.Transaction) txRow {
	return txRow{
		ID:          tx.ID,
		WalletID:    tx.WalletID,
		Hash:        tx.Hash,
		Chain:       string(tx.Chain()),
		AssetID:     tx.AssetID.String(),
		FeeAssetID:  tx.FeeAssetID.String(),
		Owner:       tx.Owner,
		Recipient:   tx.Recipient,
		Type:        string(tx.Type),
		State:       string(tx.State),
		BlockNumber: tx.BlockNumber,
		Sequence:    tx.Sequence,
		Fee:         intString(tx.Fee),
		Value:       intString(tx.Value),
		Memo:        tx.Memo,
		Direction:   string(tx.Direction),
		Metadata:    tx.Metadata,
		CreatedAt:   tx.CreatedAt.UTC(),
		UpdatedAt:   tx.UpdatedAt.UTC(),
	}
}

func (r *txRow) toDomain() (*domain.Transaction, error) {
	asset, err := domain.ParseAssetID(r.AssetID)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	feeAsset, err := domain.ParseAssetID(r.FeeAssetID)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	fee, err := parseInt(r.Fee)
	if err != nil {
		return nil, fmt.Errorf("transaction %s fee: %w", r.ID, err)
	}
	value, err := parseInt(r.Value)
	if err != nil {
		return nil, fmt.Errorf("transaction %s value: %w", r.ID, err)
	}
	return &domain.Transaction{
		ID:          r.ID,
		WalletID:    r.WalletID,
		Hash:        r.Hash,
		AssetID:     asset,
		FeeAssetID:  feeAsset,
		Owner:       r.Owner,
		Recipient:   r.Recipient,
		Type:        domain.TransactionType(r.Type),
		State:       domain.TransactionState(r.State),
		BlockNumber: r.BlockNumber,
		Sequence:    r.Sequence,
		Fee:         fee,
		Value:       value,
		Memo:        r.Memo,
		Direction:   domain.TransactionDirection(r.Direction),
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

type swapRow struct {
	TxID      string `db:"tx_id"`
	FromAsset string `db:"from_asset"`
	FromValue string `db:"from_value"`
	ToAsset   string `db:"to_asset"`
	ToValue   string `db:"to_value"`
	Provider  string `db:"provider"`
}

func newSwapRow(txID string, m domain.SwapMetadata) swapRow {
	return swapRow{
		TxID:      txID,
		FromAsset: m.FromAsset.String(),
		FromValue: intString(m.FromValue),
		ToAsset:   m.ToAsset.String(),
		ToValue:   intString(m.ToValue),
		Provider:  m.Provider,
	}
}

func (r *swapRow) toDomain() (*domain.SwapMetadata, error) {
	from, err := domain.ParseAssetID(r.FromAsset)
	if err != nil {
		return nil, err
	}
	to, err := domain.ParseAssetID(r.ToAsset)
	if err != nil {
		return nil, err
	}
	fromValue, err := parseInt(r.FromValue)
	if err != nil {
		return nil, err
	}
	toValue, err := parseInt(r.ToValue)
	if err != nil {
		return nil, err
	}
	return &domain.SwapMetadata{FromAsset: from, FromValue: fromValue, ToAsset: to, ToValue: toValue, Provider: r.Provider}, nil
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
