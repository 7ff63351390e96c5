package bitcoin

import (
	"errors"
	"sort"
)

const (
	txOverheadVBytes  = 11
	p2wpkhInputVBytes = 68
	dustThreshold     = 546
)

var (
	errInsufficientFunds = errors.New("insufficient funds")
	errDustAmount        = errors.New("amount below dust threshold")
)

// UTXO is an unspent output owned by the sender.
type UTXO struct {
	TxID  string
	Vout  uint32
	Value int64
}

// spend is the inputs and outputs chosen for one transaction.
type spend struct {
	inputs []UTXO
	amount int64
	change int64
	fee    int64
	vsize  int64
}

func outputVBytes(script []byte) int64 {
	return 8 + 1 + int64(len(script))
}

// selectCoins takes UTXOs largest first until amount and fee are covered.
// fixed is the size of the payment outputs, changeSize that of a change
// output. Change below dust is left to the miner. With spendAll set every UTXO
// is spent and the fee comes out of the amount.
func selectCoins(utxos []UTXO, amount, byteFee, fixed, changeSize int64, spendAll bool) (spend, error) {
	sorted := make([]UTXO, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	if spendAll {
		var total int64
		for _, u := range sorted {
			total += u.Value
		}
		vsize := txOverheadVBytes + int64(len(sorted))*p2wpkhInputVBytes + fixed
		fee := vsize * byteFee
		if total-fee < dustThreshold {
			return spend{}, errDustAmount
		}
		return spend{inputs: sorted, amount: total - fee, fee: fee, vsize: vsize}, nil
	}

	if amount < dustThreshold {
		return spend{}, errDustAmount
	}
	var total int64
	for i, u := range sorted {
		total += u.Value
		base := txOverheadVBytes + int64(i+1)*p2wpkhInputVBytes + fixed

		withChange := (base + changeSize) * byteFee
		if change := total - amount - withChange; change >= dustThreshold {
			return spend{inputs: sorted[:i+1], amount: amount, change: change, fee: withChange, vsize: base + changeSize}, nil
		}
		if total-amount >= base*byteFee {
			return spend{inputs: sorted[:i+1], amount: amount, fee: total - amount, vsize: base}, nil
		}
	}
	return spend{}, errInsufficientFunds
}
