package solana

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

const (
	baseFee             = 5_000
	computeUnitLimit    = 100_000
	minNativePriceMicro = 10_000
	minTokenPriceMicro  = 100_000
	tokenAccountSize    = 165

	// OptionTokenAccountCreation is the rent a new recipient token account costs.
	OptionTokenAccountCreation = "tokenAccountCreation"
)

// SignData is the Solana signing context.
type SignData struct {
	Blockhash             string
	SenderTokenAccount    string
	RecipientTokenAccount string
	TokenProgram          string
	Decimals              uint8
	GasFees               domain.Fees
}

func (d *SignData) Fee(priority domain.FeePriority) domain.Fee {
	fee, _ := d.GasFees.For(priority)
	return fee
}

func (d *SignData) Fees() domain.Fees {
	return d.GasFees
}

type tokenAccount struct {
	Address  string
	Program  string
	Decimals uint8
}

func (a *Adapter) Preload(
	ctx context.Context,
	owner domain.Account,
	params domain.ConfirmParams,
) (*domain.SignerParams, error) {
	switch params.(type) {
	case domain.TransferParams, domain.SwapParams, domain.ActivateParams:
	default:
		return nil, domain.Unsupported(domain.ErrPreload, a.chainID, params)
	}

	asset := params.Asset()
	_, isSwap := params.(domain.SwapParams)
	tokenTransfer := !asset.IsNative() && !isSwap

	var (
		blockhash    string
		priorityFees []uint64
		rent         *big.Int
		sender       *tokenAccount
		recipient    *tokenAccount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := a.latestBlockhash(gctx)
		blockhash = h
		return err
	})
	g.Go(func() error {
		f, err := a.prioritizationFees(gctx)
		priorityFees = f
		return err
	})
	g.Go(func() error {
		r, err := a.rentExemption(gctx, tokenAccountSize)
		rent = r
		return err
	})
	if tokenTransfer {
		if _, activate := params.(domain.ActivateParams); !activate {
			g.Go(func() error {
				acc, err := a.tokenAccount(gctx, owner.Address, asset.TokenID)
				sender = acc
				return err
			})
		}
		if dest := params.Recipient(); dest != "" && dest != owner.Address {
			g.Go(func() error {
				acc, err := a.tokenAccount(gctx, dest, asset.TokenID)
				recipient = acc
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &SignData{Blockhash: blockhash, TokenProgram: solana.TokenProgramID.String()}
	if tokenTransfer {
		if _, activate := params.(domain.ActivateParams); !activate {
			if sender == nil {
				return nil, domain.PreloadErrorf(a.chainID, "sender has no token account for %s", asset.TokenID)
			}
			data.SenderTokenAccount = sender.Address
			data.TokenProgram = sender.Program
			data.Decimals = sender.Decimals
		}
		if recipient != nil {
			data.RecipientTokenAccount = recipient.Address
		} else if data.TokenProgram != solana.TokenProgramID.String() {
			return nil, domain.PreloadErrorf(a.chainID, "recipient has no token account for %s", asset.TokenID)
		}
	}

	minPrice := uint64(minNativePriceMicro)
	if tokenTransfer {
		minPrice = minTokenPriceMicro
	}
	creation := new(big.Int)
	if tokenTransfer && data.RecipientTokenAccount == "" {
		creation = rent
	}
	data.GasFees = calculateFees(a.chainID, priorityFees, minPrice, creation)
	a.log.Debug("preloaded", "kind", params.Kind(), "blockhash", blockhash)

	return &domain.SignerParams{Input: params, Owner: owner.Address, Data: data}, nil
}

// calculateFees prices the compute budget at the averaged recent priority
// fee. Amounts are the base fee plus price × limit in lamports.
func calculateFees(chainID domain.Chain, recent []uint64, minPrice uint64, creation *big.Int) domain.Fees {
	avg := uint64(0)
	if len(recent) > 0 {
		sum := new(big.Int)
		for _, f := range recent {
			sum.Add(sum, new(big.Int).SetUint64(f))
		}
		avg = sum.Div(sum, big.NewInt(int64(len(recent)))).Uint64()
	}

	tiers := map[domain.FeePriority]uint64{
		domain.FeePrioritySlow:   avg / 2,
		domain.FeePriorityNormal: avg,
		domain.FeePriorityFast:   avg * 2,
	}
	feeAsset := domain.NativeAsset(chainID)
	fees := make(domain.Fees, 0, len(domain.FeePriorities))
	for _, priority := range domain.FeePriorities {
		price := tiers[priority]
		if price < minPrice {
			price = minPrice
		}
		amount := new(big.Int).SetUint64(price)
		amount.Mul(amount, big.NewInt(computeUnitLimit))
		amount.Div(amount, big.NewInt(1_000_000))
		amount.Add(amount, big.NewInt(baseFee))

		fee := domain.NewGasFeeWithAmount(priority, feeAsset, domain.GasFee{
			MaxGasPrice: big.NewInt(baseFee),
			Limit:       big.NewInt(computeUnitLimit),
			MinerFee:    new(big.Int).SetUint64(price),
		}, amount)
		fees = append(fees, fee.WithOption(OptionTokenAccountCreation, creation))
	}
	return fees
}

func (a *Adapter) latestBlockhash(ctx context.Context) (string, error) {
	op := rpc.NewHTTPOperation("getLatestBlockhash", []any{map[string]any{"commitment": "finalized"}})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return "", chain.PreloadError(a.chainID, "getLatestBlockhash", err)
	}
	var resp struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := rpc.Decode(result, &resp); err != nil || resp.Value.Blockhash == "" {
		return "", domain.PreloadErrorf(a.chainID, "invalid blockhash response")
	}
	return resp.Value.Blockhash, nil
}

func (a *Adapter) prioritizationFees(ctx context.Context) ([]uint64, error) {
	op := rpc.NewHTTPOperation("getRecentPrioritizationFees", []any{[]string{}})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return nil, chain.PreloadError(a.chainID, "getRecentPrioritizationFees", err)
	}
	var resp []struct {
		PrioritizationFee uint64 `json:"prioritizationFee"`
	}
	if result != nil {
		if err := rpc.Decode(result, &resp); err != nil {
			return nil, domain.NewError(domain.ErrPreload, a.chainID, "getRecentPrioritizationFees", err)
		}
	}
	fees := make([]uint64, 0, len(resp))
	for _, f := range resp {
		fees = append(fees, f.PrioritizationFee)
	}
	return fees, nil
}

func (a *Adapter) rentExemption(ctx context.Context, size int) (*big.Int, error) {
	op := rpc.NewHTTPOperation("getMinimumBalanceForRentExemption", []any{size})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return nil, chain.PreloadError(a.chainID, "getMinimumBalanceForRentExemption", err)
	}
	n, ok := result.(json.Number)
	if !ok {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return nil, domain.PreloadErrorf(a.chainID, "invalid rent exemption %s", n)
	}
	return v, nil
}

// tokenAccount returns the owner's first account for the mint, or nil.
func (a *Adapter) tokenAccount(ctx context.Context, owner, mint string) (*tokenAccount, error) {
	op := rpc.NewHTTPOperation("getTokenAccountsByOwner", []any{
		owner,
		map[string]any{"mint": mint},
		map[string]any{"encoding": "jsonParsed"},
	})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return nil, chain.PreloadError(a.chainID, "getTokenAccountsByOwner", err)
	}
	var resp struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Owner string `json:"owner"`
				Data  struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Decimals uint8 `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return nil, domain.NewError(domain.ErrPreload, a.chainID, "getTokenAccountsByOwner", err)
	}
	if len(resp.Value) == 0 {
		return nil, nil
	}
	v := resp.Value[0]
	program := v.Account.Owner
	if program == "" {
		program = solana.TokenProgramID.String()
	}
	return &tokenAccount{Address: v.Pubkey, Program: program, Decimals: v.Account.Data.Parsed.Info.TokenAmount.Decimals}, nil
}
