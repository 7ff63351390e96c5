package preload

import (
	"fmt"
	"math/big"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

// CheckBalance validates that the owner can cover the signed amount and
// the fee of the chosen priority.
func CheckBalance(sp *domain.SignerParams, priority domain.FeePriority, balances domain.Balances) error {
	asset := sp.Input.Asset()
	fee := sp.Fee(priority)
	spend := Spent(sp)
	available := orZero(balances.Asset)

	if spend.Cmp(available) > 0 {
		return insufficient(domain.ErrInsufficientBalance, asset.Chain, "insufficient %s balance", asset)
	}
	if fee.FeeAssetID == asset {
		if new(big.Int).Add(spend, fee.Amount).Cmp(available) > 0 {
			return insufficient(domain.ErrInsufficientFee, asset.Chain, "insufficient %s for network fee", fee.FeeAssetID)
		}
		return nil
	}
	if fee.Amount.Cmp(orZero(balances.Fee)) > 0 {
		return insufficient(domain.ErrInsufficientFee, asset.Chain, "insufficient %s for network fee", fee.FeeAssetID)
	}
	return nil
}

// Spent is the amount leaving the owner's spendable balance. Unstaking,
// claims and approvals only pay the fee.
func Spent(sp *domain.SignerParams) *big.Int {
	switch sp.Input.(type) {
	case domain.TransferParams, domain.SwapParams, domain.DelegateParams, domain.FreezeParams:
		return new(big.Int).Set(orZero(sp.FinalAmount))
	}
	return new(big.Int)
}

func insufficient(kind error, chain domain.Chain, format string, asset domain.AssetID) error {
	return &domain.Error{Kind: kind, Chain: chain, Op: "validate", Msg: fmt.Sprintf(format, asset)}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
