package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
)

// ParamsKind tags a ConfirmParams variant in its packed form.
type ParamsKind string

const (
	KindTransfer      ParamsKind = "transfer"
	KindTokenApproval ParamsKind = "token_approval"
	KindSwap          ParamsKind = "swap"
	KindDelegate      ParamsKind = "delegate"
	KindUndelegate    ParamsKind = "undelegate"
	KindRedelegate    ParamsKind = "redelegate"
	KindWithdraw      ParamsKind = "withdraw"
	KindRewards       ParamsKind = "rewards"
	KindFreeze        ParamsKind = "freeze"
	KindUnfreeze      ParamsKind = "unfreeze"
	KindActivate      ParamsKind = "activate"
	KindNftTransfer   ParamsKind = "nft_transfer"
)

// ConfirmParams is a user-requested transaction intent. The set of
// implementations is closed; use a type switch to dispatch.
type ConfirmParams interface {
	Kind() ParamsKind
	Asset() AssetID
	Value() *big.Int
	Sender() Account
	Recipient() string
	TransactionType() TransactionType
	isConfirmParams()
}

// Intent holds the fields shared by every variant.
type Intent struct {
	AssetID    AssetID  `json:"assetId"`
	From       Account  `json:"from"`
	Amount     *big.Int `json:"amount"`
	DomainName string   `json:"domainName,omitempty"`
}

func (i Intent) Asset() AssetID  { return i.AssetID }
func (i Intent) Sender() Account { return i.From }
func (i Intent) isConfirmParams() {}

// Value returns a copy of the atomic amount.
func (i Intent) Value() *big.Int {
	return copyInt(i.Amount)
}

type TransferParams struct {
	Intent
	Destination string `json:"destination"`
	Memo        string `json:"memo,omitempty"`
	Max         bool   `json:"max,omitempty"`
}

func (TransferParams) Kind() ParamsKind                 { return KindTransfer }
func (p TransferParams) Recipient() string              { return p.Destination }
func (TransferParams) TransactionType() TransactionType { return TxTypeTransfer }

// TokenApprovalParams grants Spender an allowance on the token Contract.
type TokenApprovalParams struct {
	Intent
	Contract string `json:"contract"`
	Spender  string `json:"spender"`
	Data     string `json:"data,omitempty"`
	Provider string `json:"provider"`
}

func (TokenApprovalParams) Kind() ParamsKind                 { return KindTokenApproval }
func (p TokenApprovalParams) Recipient() string              { return p.Contract }
func (TokenApprovalParams) TransactionType() TransactionType { return TxTypeTokenApproval }
func (TokenApprovalParams) Value() *big.Int                  { return new(big.Int) }

// SwapPayload is the provider-built call to sign as is.
type SwapPayload struct {
	To       string   `json:"to"`
	Data     string   `json:"data"`
	Value    *big.Int `json:"value,omitempty"`
	GasLimit *big.Int `json:"gasLimit,omitempty"`
}

// SwapParams spends Intent.Amount of Intent.AssetID for ToAmount of ToAssetID.
type SwapParams struct {
	Intent
	ToAssetID   AssetID     `json:"toAssetId"`
	ToAmount    *big.Int    `json:"toAmount"`
	Payload     SwapPayload `json:"payload"`
	Provider    string      `json:"provider"`
	Destination string      `json:"destination,omitempty"`
}

func (SwapParams) Kind() ParamsKind                 { return KindSwap }
func (p SwapParams) Recipient() string              { return p.Payload.To }
func (SwapParams) TransactionType() TransactionType { return TxTypeSwap }

type DelegateParams struct {
	Intent
	ValidatorID string `json:"validatorId"`
}

func (DelegateParams) Kind() ParamsKind                 { return KindDelegate }
func (p DelegateParams) Recipient() string              { return p.ValidatorID }
func (DelegateParams) TransactionType() TransactionType { return TxTypeStakeDelegate }

type UndelegateParams struct {
	Intent
	ValidatorID  string   `json:"validatorId"`
	DelegationID string   `json:"delegationId,omitempty"`
	Share        string   `json:"share,omitempty"`
	Balance      *big.Int `json:"balance,omitempty"`
}

func (UndelegateParams) Kind() ParamsKind                 { return KindUndelegate }
func (p UndelegateParams) Recipient() string              { return p.ValidatorID }
func (UndelegateParams) TransactionType() TransactionType { return TxTypeStakeUndelegate }

type RedelegateParams struct {
	Intent
	SrcValidatorID string   `json:"srcValidatorId"`
	DstValidatorID string   `json:"dstValidatorId"`
	Share          string   `json:"share,omitempty"`
	Balance        *big.Int `json:"balance,omitempty"`
}

func (RedelegateParams) Kind() ParamsKind                 { return KindRedelegate }
func (p RedelegateParams) Recipient() string              { return p.DstValidatorID }
func (RedelegateParams) TransactionType() TransactionType { return TxTypeStakeRedelegate }

type WithdrawParams struct {
	Intent
	ValidatorID  string `json:"validatorId"`
	DelegationID string `json:"delegationId,omitempty"`
}

func (WithdrawParams) Kind() ParamsKind                 { return KindWithdraw }
func (p WithdrawParams) Recipient() string              { return p.ValidatorID }
func (WithdrawParams) TransactionType() TransactionType { return TxTypeStakeWithdraw }

// RewardsParams claims accrued rewards from every listed validator.
type RewardsParams struct {
	Intent
	ValidatorIDs []string `json:"validatorIds"`
}

func (RewardsParams) Kind() ParamsKind                 { return KindRewards }
func (RewardsParams) Recipient() string                { return "" }
func (RewardsParams) TransactionType() TransactionType { return TxTypeStakeRewards }

// Resource is what a freeze buys on resource-staking chains.
type Resource string

const (
	ResourceBandwidth Resource = "bandwidth"
	ResourceEnergy    Resource = "energy"
)

type FreezeParams struct {
	Intent
	Resource Resource `json:"resource"`
}

func (FreezeParams) Kind() ParamsKind                 { return KindFreeze }
func (FreezeParams) Recipient() string                { return "" }
func (FreezeParams) TransactionType() TransactionType { return TxTypeStakeFreeze }

type UnfreezeParams struct {
	Intent
	Resource Resource `json:"resource"`
}

func (UnfreezeParams) Kind() ParamsKind                 { return KindUnfreeze }
func (UnfreezeParams) Recipient() string                { return "" }
func (UnfreezeParams) TransactionType() TransactionType { return TxTypeStakeUnfreeze }

// ActivateParams opens the account state needed to receive Intent.AssetID.
type ActivateParams struct {
	Intent
}

func (ActivateParams) Kind() ParamsKind                 { return KindActivate }
func (p ActivateParams) Recipient() string              { return p.From.Address }
func (ActivateParams) TransactionType() TransactionType { return TxTypeAssetActivation }

type NftStandard string

const (
	NftERC721  NftStandard = "erc721"
	NftERC1155 NftStandard = "erc1155"
)

type NftTransferParams struct {
	Intent
	Destination string      `json:"destination"`
	Contract    string      `json:"contract"`
	TokenID     string      `json:"tokenId"`
	Standard    NftStandard `json:"standard"`
}

func (NftTransferParams) Kind() ParamsKind                 { return KindNftTransfer }
func (p NftTransferParams) Recipient() string              { return p.Destination }
func (NftTransferParams) TransactionType() TransactionType { return TxTypeTransferNFT }

// ValidateParams checks the invariants shared by every variant.
func ValidateParams(p ConfirmParams) error {
	if p == nil {
		return fmt.Errorf("nil params")
	}
	if p.Sender().Address == "" {
		return fmt.Errorf("%s: empty sender", p.Kind())
	}
	if v := p.Value(); v.Sign() < 0 {
		return fmt.Errorf("%s: negative amount %s", p.Kind(), v)
	}
	return nil
}

// OperatingChain is the chain whose adapter handles the intent.
func OperatingChain(p ConfirmParams) Chain {
	return p.Asset().Chain
}

type packedParams struct {
	Type   ParamsKind      `json:"type"`
	Params json.RawMessage `json:"params"`
}

// Pack encodes params into their canonical URL-safe form.
func Pack(p ConfirmParams) (string, error) {
	if err := ValidateParams(p); err != nil {
		return "", err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal %s params: %w", p.Kind(), err)
	}
	raw, err := json.Marshal(packedParams{Type: p.Kind(), Params: body})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Unpack decodes the output of Pack.
func Unpack(s string) (ConfirmParams, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode packed params: %w", err)
	}
	var env packedParams
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse packed params: %w", err)
	}

	var p ConfirmParams
	switch env.Type {
	case KindTransfer:
		p, err = unpackAs[TransferParams](env.Params)
	case KindTokenApproval:
		p, err = unpackAs[TokenApprovalParams](env.Params)
	case KindSwap:
		p, err = unpackAs[SwapParams](env.Params)
	case KindDelegate:
		p, err = unpackAs[DelegateParams](env.Params)
	case KindUndelegate:
		p, err = unpackAs[UndelegateParams](env.Params)
	case KindRedelegate:
		p, err = unpackAs[RedelegateParams](env.Params)
	case KindWithdraw:
		p, err = unpackAs[WithdrawParams](env.Params)
	case KindRewards:
		p, err = unpackAs[RewardsParams](env.Params)
	case KindFreeze:
		p, err = unpackAs[FreezeParams](env.Params)
	case KindUnfreeze:
		p, err = unpackAs[UnfreezeParams](env.Params)
	case KindActivate:
		p, err = unpackAs[ActivateParams](env.Params)
	case KindNftTransfer:
		p, err = unpackAs[NftTransferParams](env.Params)
	default:
		return nil, fmt.Errorf("unknown params type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s params: %w", env.Type, err)
	}
	return p, ValidateParams(p)
}

func unpackAs[T ConfirmParams](data json.RawMessage) (ConfirmParams, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
