package cosmos

import (
	"context"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
)

const (
	gasTransfer   = 200_000
	gasDelegate   = 1_000_000
	gasRedelegate = 1_250_000
	gasRewards    = 900_000
)

// SignData is the Cosmos signing context. A single fee serves every
// priority.
type SignData struct {
	ChainID       string
	AccountNumber uint64
	Sequence      uint64
	Height        string
	GasFee        domain.Fee
	Rewards       *big.Int
}

func (d *SignData) Fee(domain.FeePriority) domain.Fee {
	return d.GasFee
}

func (d *SignData) Fees() domain.Fees {
	return domain.Fees{d.GasFee}
}

// RewardsTotal is the accrued reward a claim collects.
func (d *SignData) RewardsTotal() *big.Int {
	if d.Rewards == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d.Rewards)
}

func (a *Adapter) Preload(
	ctx context.Context,
	owner domain.Account,
	params domain.ConfirmParams,
) (*domain.SignerParams, error) {
	limit, stake, ok := gasLimit(params)
	if !ok {
		return nil, domain.Unsupported(domain.ErrPreload, a.chainID, params)
	}

	var (
		account accountInfo
		block   blockInfo
		rewards *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		acc, err := a.backend.account(gctx, owner.Address)
		account = acc
		return chain.PreloadError(a.chainID, "account", err)
	})
	g.Go(func() error {
		b, err := a.backend.latestBlock(gctx)
		block = b
		return chain.PreloadError(a.chainID, "latest_block", err)
	})
	if _, claim := params.(domain.RewardsParams); claim {
		g.Go(func() error {
			r, err := a.backend.rewards(gctx, owner.Address, a.denom)
			rewards = r
			return chain.PreloadError(a.chainID, "rewards", err)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fee := a.calculateFee(limit, stake)
	a.log.Debug("preloaded", "kind", params.Kind(), "sequence", account.Sequence, "fee", fee)

	return &domain.SignerParams{
		Input: params,
		Owner: owner.Address,
		Data: &SignData{
			ChainID:       block.ChainID,
			AccountNumber: account.AccountNumber,
			Sequence:      account.Sequence,
			Height:        block.Height,
			GasFee:        fee,
			Rewards:       rewards,
		},
	}, nil
}

// calculateFee prices the gas limit at the configured gas price, or falls
// back to a flat per-operation fee.
func (a *Adapter) calculateFee(limit uint64, stake bool) domain.Fee {
	feeAsset := domain.NativeAsset(a.chainID)
	gas := domain.GasFee{Limit: new(big.Int).SetUint64(limit)}
	if a.gasPrice != nil && a.gasPrice.Sign() > 0 {
		gas.MaxGasPrice = a.gasPrice
		return domain.NewGasFee(domain.FeePriorityNormal, feeAsset, gas)
	}

	flat := a.flatFee
	if flat == nil {
		flat = big.NewInt(a.defaults.transferFee)
		if stake {
			flat = big.NewInt(a.defaults.stakeFee)
		}
	}
	gas.MaxGasPrice = flat
	return domain.NewGasFeeWithAmount(domain.FeePriorityNormal, feeAsset, gas, flat)
}

func gasLimit(params domain.ConfirmParams) (limit uint64, stake bool, ok bool) {
	switch p := params.(type) {
	case domain.TransferParams:
		return gasTransfer, false, true
	case domain.DelegateParams, domain.UndelegateParams:
		return gasDelegate, true, true
	case domain.RedelegateParams:
		return gasRedelegate, true, true
	case domain.RewardsParams:
		n := uint64(len(p.ValidatorIDs))
		if n == 0 {
			n = 1
		}
		return gasRewards * n, true, true
	}
	return 0, false, false
}
