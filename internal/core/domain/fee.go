package domain

import (
	"fmt"
	"math/big"
)

// FeePriority is the caller-selected speed tier.
type FeePriority string

const (
	FeePrioritySlow   FeePriority = "slow"
	FeePriorityNormal FeePriority = "normal"
	FeePriorityFast   FeePriority = "fast"
)

// FeePriorities lists tiers from slowest to fastest.
var FeePriorities = []FeePriority{FeePrioritySlow, FeePriorityNormal, FeePriorityFast}

// Fee is a network fee expressed in atomic units of FeeAssetID.
// Gas is nil for flat fees.
type Fee struct {
	Priority   FeePriority         `json:"priority"`
	FeeAssetID AssetID             `json:"feeAssetId"`
	Amount     *big.Int            `json:"amount"`
	Options    map[string]*big.Int `json:"options,omitempty"`
	Gas        *GasFee             `json:"gas,omitempty"`
}

// GasFee carries the gas-style components of a fee.
type GasFee struct {
	MaxGasPrice *big.Int `json:"maxGasPrice"`
	Limit       *big.Int `json:"limit"`
	MinerFee    *big.Int `json:"minerFee"`
	Relay       *big.Int `json:"relay"`
}

// Total returns limit × maxGasPrice + relay.
func (g GasFee) Total() *big.Int {
	total := new(big.Int).Mul(orZero(g.Limit), orZero(g.MaxGasPrice))
	return total.Add(total, orZero(g.Relay))
}

// NewFee builds a flat fee.
func NewFee(priority FeePriority, asset AssetID, amount *big.Int) Fee {
	return Fee{Priority: priority, FeeAssetID: asset, Amount: new(big.Int).Set(orZero(amount))}
}

// NewGasFee builds a gas fee whose amount is derived from its components.
func NewGasFee(priority FeePriority, asset AssetID, gas GasFee) Fee {
	return NewGasFeeWithAmount(priority, asset, gas, gas.Total())
}

// NewGasFeeWithAmount builds a gas fee with an explicit amount override.
func NewGasFeeWithAmount(priority FeePriority, asset AssetID, gas GasFee, amount *big.Int) Fee {
	g := GasFee{
		MaxGasPrice: copyInt(gas.MaxGasPrice),
		Limit:       copyInt(gas.Limit),
		MinerFee:    copyInt(gas.MinerFee),
		Relay:       copyInt(gas.Relay),
	}
	return Fee{Priority: priority, FeeAssetID: asset, Amount: copyInt(amount), Gas: &g}
}

// WithOption returns a copy of the fee carrying an extra named amount.
func (f Fee) WithOption(name string, value *big.Int) Fee {
	opts := make(map[string]*big.Int, len(f.Options)+1)
	for k, v := range f.Options {
		opts[k] = v
	}
	opts[name] = copyInt(value)
	f.Options = opts
	return f
}

func (f Fee) String() string {
	if f.Gas != nil {
		return fmt.Sprintf("%s %s (limit=%s price=%s)", f.Amount, f.FeeAssetID, f.Gas.Limit, f.Gas.MaxGasPrice)
	}
	return fmt.Sprintf("%s %s", f.Amount, f.FeeAssetID)
}

// Fees is a set of fees keyed by priority.
type Fees []Fee

// For returns the fee for the priority, falling back to the first entry.
func (fs Fees) For(priority FeePriority) (Fee, bool) {
	for _, f := range fs {
		if f.Priority == priority {
			return f, true
		}
	}
	if len(fs) == 0 {
		return Fee{}, false
	}
	return fs[0], true
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func copyInt(v *big.Int) *big.Int {
	return new(big.Int).Set(orZero(v))
}
