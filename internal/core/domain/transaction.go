package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

type TransactionState string

const (
	TxStatePending   TransactionState = "pending"
	TxStateConfirmed TransactionState = "confirmed"
	TxStateReverted  TransactionState = "reverted"
	TxStateFailed    TransactionState = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s TransactionState) IsTerminal() bool {
	return s == TxStateConfirmed || s == TxStateReverted || s == TxStateFailed
}

type TransactionType string

const (
	TxTypeTransfer        TransactionType = "transfer"
	TxTypeTransferNFT     TransactionType = "transferNFT"
	TxTypeTokenApproval   TransactionType = "tokenApproval"
	TxTypeSwap            TransactionType = "swap"
	TxTypeAssetActivation TransactionType = "assetActivation"
	TxTypeStakeDelegate   TransactionType = "stakeDelegate"
	TxTypeStakeUndelegate TransactionType = "stakeUndelegate"
	TxTypeStakeRedelegate TransactionType = "stakeRedelegate"
	TxTypeStakeWithdraw   TransactionType = "stakeWithdraw"
	TxTypeStakeRewards    TransactionType = "stakeRewards"
	TxTypeStakeFreeze     TransactionType = "stakeFreeze"
	TxTypeStakeUnfreeze   TransactionType = "stakeUnfreeze"
)

type TransactionDirection string

const (
	DirectionOutgoing TransactionDirection = "outgoing"
	DirectionIncoming TransactionDirection = "incoming"
	DirectionSelf     TransactionDirection = "self"
)

// Transaction is the persisted record of a submitted transaction.
type Transaction struct {
	ID          string               `json:"id"`
	WalletID    string               `json:"walletId"`
	Hash        string               `json:"hash"`
	AssetID     AssetID              `json:"assetId"`
	FeeAssetID  AssetID              `json:"feeAssetId"`
	Owner       string               `json:"from"`
	Recipient   string               `json:"to"`
	Type        TransactionType      `json:"type"`
	State       TransactionState     `json:"state"`
	BlockNumber string               `json:"blockNumber"`
	Sequence    string               `json:"sequence"`
	Fee         *big.Int             `json:"fee"`
	Value       *big.Int             `json:"value"`
	Memo        string               `json:"memo,omitempty"`
	Direction   TransactionDirection `json:"direction"`
	Metadata    string               `json:"metadata,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// TransactionID derives the record id from chain and hash.
func TransactionID(chain Chain, hash string) string {
	return string(chain) + "_" + hash
}

// Chain returns the chain the transaction was submitted on.
func (t Transaction) Chain() Chain {
	return t.AssetID.Chain
}

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.Fee != nil {
		c.Fee = new(big.Int).Set(t.Fee)
	}
	if t.Value != nil {
		c.Value = new(big.Int).Set(t.Value)
	}
	return &c
}

// HashChange reports a hash re-assigned by the chain after inclusion.
type HashChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// TransactionChanges is what a status check observed.
type TransactionChanges struct {
	State       TransactionState
	HashChange  *HashChange
	Fee         *big.Int
	BlockNumber string
}

// StatusRequest identifies the transaction to check.
type StatusRequest struct {
	Chain  Chain
	Sender string
	Hash   string
	Block  string
}

// SwapMetadata records both legs of a swap.
type SwapMetadata struct {
	FromAsset AssetID  `json:"fromAsset"`
	FromValue *big.Int `json:"fromValue"`
	ToAsset   AssetID  `json:"toAsset"`
	ToValue   *big.Int `json:"toValue"`
	Provider  string   `json:"provider"`
}

// NewSwapMetadata captures the legs of a swap intent.
func NewSwapMetadata(p SwapParams) SwapMetadata {
	return SwapMetadata{
		FromAsset: p.AssetID,
		FromValue: copyInt(p.Amount),
		ToAsset:   p.ToAssetID,
		ToValue:   copyInt(p.ToAmount),
		Provider:  p.Provider,
	}
}

// Encode renders the metadata in the form stored on Transaction.Metadata.
func (m SwapMetadata) Encode() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode swap metadata: %w", err)
	}
	return string(b), nil
}

// DecodeSwapMetadata parses Transaction.Metadata of a swap.
func DecodeSwapMetadata(s string) (*SwapMetadata, error) {
	var m SwapMetadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode swap metadata: %w", err)
	}
	return &m, nil
}

// NewPending builds the record created right after a successful broadcast.
func NewPending(walletID, hash string, sp *SignerParams, fee Fee, now time.Time) (*Transaction, error) {
	in := sp.Input
	asset := in.Asset()
	tx := &Transaction{
		ID:         TransactionID(asset.Chain, hash),
		WalletID:   walletID,
		Hash:       hash,
		AssetID:    asset,
		FeeAssetID: fee.FeeAssetID,
		Owner:      in.Sender().Address,
		Recipient:  in.Recipient(),
		Type:       in.TransactionType(),
		State:      TxStatePending,
		Fee:        copyInt(fee.Amount),
		Value:      copyInt(sp.FinalAmount),
		Direction:  DirectionOutgoing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if tx.Recipient != "" && tx.Recipient == tx.Owner {
		tx.Direction = DirectionSelf
	}
	switch p := in.(type) {
	case TransferParams:
		tx.Memo = p.Memo
	case TokenApprovalParams:
		tx.Value = new(big.Int)
	case SwapParams:
		meta, err := NewSwapMetadata(p).Encode()
		if err != nil {
			return nil, err
		}
		tx.Metadata = meta
	}
	return tx, nil
}
