// Package preload resolves the chain adapter for an intent, gathers its
// signing context and derives the amount that will actually be signed.
package preload

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/metrics"
)

// Preloaders resolves the preloader for a chain.
type Preloaders interface {
	Preloader(c domain.Chain) (chain.Preloader, error)
}

// Coordinator runs preloads. It keeps no state between calls.
type Coordinator struct {
	adapters Preloaders
	log      *slog.Logger
}

func NewCoordinator(adapters Preloaders) *Coordinator {
	return &Coordinator{adapters: adapters, log: slog.Default().With("component", "preload")}
}

// Preload returns immutable SignerParams for the intent. FinalAmount is
// computed against the fee of the given priority.
func (c *Coordinator) Preload(
	ctx context.Context,
	owner domain.Account,
	params domain.ConfirmParams,
	priority domain.FeePriority,
) (*domain.SignerParams, error) {
	if err := domain.ValidateParams(params); err != nil {
		return nil, &domain.Error{Kind: domain.ErrPreload, Op: "preload", Err: err}
	}
	chainID := domain.OperatingChain(params)

	sp, err := c.preload(ctx, chainID, owner, params, priority)
	metrics.PreloadsTotal.WithLabelValues(string(chainID), metrics.Result(err)).Inc()
	if err != nil {
		c.log.Warn("preload failed", "chain", chainID, "kind", params.Kind(), "error", err)
		return nil, err
	}
	c.log.Debug("preloaded", "chain", chainID, "kind", params.Kind(), "fee", sp.Fee(priority), "amount", sp.FinalAmount)
	return sp, nil
}

func (c *Coordinator) preload(
	ctx context.Context,
	chainID domain.Chain,
	owner domain.Account,
	params domain.ConfirmParams,
	priority domain.FeePriority,
) (*domain.SignerParams, error) {
	preloader, err := c.adapters.Preloader(chainID)
	if err != nil {
		return nil, domain.NewError(domain.ErrPreload, chainID, "preload", err)
	}
	sp, err := preloader.Preload(ctx, owner, params)
	if err != nil {
		return nil, normalize(chainID, err)
	}
	if sp == nil || sp.Data == nil {
		return nil, domain.PreloadErrorf(chainID, "adapter returned no sign data")
	}
	if len(sp.Data.Fees()) == 0 {
		return nil, domain.PreloadErrorf(chainID, "adapter returned no fee")
	}

	final, err := FinalAmount(params, sp.Data, priority)
	if err != nil {
		return nil, err
	}
	return &domain.SignerParams{
		Input:       params,
		Owner:       owner.Address,
		Data:        sp.Data,
		FinalAmount: final,
	}, nil
}

// FinalAmount is the accrued total for reward claims, the requested
// amount minus the fee for max sends paid in the fee asset, and the
// requested amount otherwise.
func FinalAmount(params domain.ConfirmParams, data domain.ChainSignData, priority domain.FeePriority) (*big.Int, error) {
	requested := params.Value()

	if _, ok := params.(domain.RewardsParams); ok {
		if rewards, ok := data.(domain.RewardsData); ok && rewards.RewardsTotal() != nil {
			return new(big.Int).Set(rewards.RewardsTotal()), nil
		}
		return requested, nil
	}

	if !isMax(params) {
		return requested, nil
	}
	fee := data.Fee(priority)
	if fee.FeeAssetID != params.Asset() {
		return requested, nil
	}
	final := new(big.Int).Sub(requested, fee.Amount)
	if final.Sign() <= 0 {
		return nil, &domain.Error{
			Kind:  domain.ErrInsufficientFee,
			Chain: params.Asset().Chain,
			Op:    "preload",
			Msg:   "amount does not cover the network fee",
		}
	}
	return final, nil
}

func isMax(params domain.ConfirmParams) bool {
	p, ok := params.(domain.TransferParams)
	return ok && p.Max
}

func normalize(chainID domain.Chain, err error) error {
	var lifecycleErr *domain.Error
	if errors.As(err, &lifecycleErr) {
		return err
	}
	if rpc.IsTransient(err) {
		return domain.Unavailable(chainID, "preload", err)
	}
	return domain.NewError(domain.ErrPreload, chainID, "preload", err)
}
