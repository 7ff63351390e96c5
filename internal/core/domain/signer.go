package domain

import "math/big"

// ChainSignData is the ephemeral, chain-specific context a signer needs.
// Each adapter defines its own implementation.
type ChainSignData interface {
	// Fee returns the fee for the priority.
	Fee(priority FeePriority) Fee
	// Fees returns every fee the preload produced.
	Fees() Fees
}

// RewardsData is implemented by sign data that knows the accrued rewards
// a claim will collect.
type RewardsData interface {
	RewardsTotal() *big.Int
}

// SignerParams is the immutable result of a preload.
type SignerParams struct {
	Input       ConfirmParams
	Owner       string
	Data        ChainSignData
	FinalAmount *big.Int
}

// Fee returns the fee for the priority.
func (p *SignerParams) Fee(priority FeePriority) Fee {
	return p.Data.Fee(priority)
}

// Balances is what the owner holds, used for pre-flight validation.
// Fee is ignored when the spent asset is the fee asset.
type Balances struct {
	Asset *big.Int
	Fee   *big.Int
}
