package sui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

// transactionIntent prefixes transaction data before hashing: scope
// TransactionData, version V0, app Sui.
var transactionIntent = []byte{0, 0, 0}

// SignData carries the node-built transaction and its signing digest.
type SignData struct {
	TxBytes []byte
	Digest  [32]byte
	GasFee  domain.Fee
}

// Fee returns the dry-run fee; Sui has no priority tiers.
func (d *SignData) Fee(domain.FeePriority) domain.Fee {
	return d.GasFee
}

func (d *SignData) Fees() domain.Fees {
	return domain.Fees{d.GasFee}
}

type coin struct {
	CoinObjectID string `json:"coinObjectId"`
	Balance      string `json:"balance"`
}

type objectRef struct {
	ObjectID string `json:"objectId"`
	Version  string `json:"version"`
	Digest   string `json:"digest"`
}

type gasUsed struct {
	ComputationCost string `json:"computationCost"`
	StorageCost     string `json:"storageCost"`
	StorageRebate   string `json:"storageRebate"`
}

func (g gasUsed) total() *big.Int {
	total := new(big.Int)
	for _, v := range []string{g.ComputationCost, g.StorageCost} {
		if n, ok := new(big.Int).SetString(v, 10); ok {
			total.Add(total, n)
		}
	}
	if n, ok := new(big.Int).SetString(g.StorageRebate, 10); ok {
		total.Sub(total, n)
	}
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	return total
}

// Preload fetches coins and objects fresh on every call; object versions
// change with each transaction so nothing is cached.
func (a *Adapter) Preload(
	ctx context.Context,
	owner domain.Account,
	params domain.ConfirmParams,
) (*domain.SignerParams, error) {
	switch params.(type) {
	case domain.TransferParams, domain.DelegateParams, domain.UndelegateParams, domain.SwapParams:
	default:
		return nil, domain.Unsupported(domain.ErrPreload, a.chainID, params)
	}

	var (
		gasCoins   []coin
		tokenCoins []coin
		staked     *objectRef
		gasPrice   = big.NewInt(defaultGasPrice)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := a.coins(gctx, owner.Address, suiCoinType)
		gasCoins = c
		return err
	})
	g.Go(func() error {
		if p, err := a.referenceGasPrice(gctx); err == nil {
			gasPrice = p
		} else {
			a.log.Warn("reference gas price unavailable", "error", err)
		}
		return nil
	})
	if asset := params.Asset(); !asset.IsNative() {
		g.Go(func() error {
			c, err := a.coins(gctx, owner.Address, asset.TokenID)
			tokenCoins = c
			return err
		})
	}
	if p, ok := params.(domain.UndelegateParams); ok {
		g.Go(func() error {
			obj, err := a.object(gctx, p.DelegationID)
			staked = obj
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	txBytes, err := a.buildTransaction(ctx, owner.Address, params, gasCoins, tokenCoins, staked)
	if err != nil {
		return nil, err
	}
	used, err := a.dryRun(ctx, txBytes)
	if err != nil {
		return nil, err
	}

	fee := domain.NewGasFeeWithAmount(domain.FeePriorityNormal, domain.NativeAsset(a.chainID), domain.GasFee{
		MaxGasPrice: gasPrice,
		Limit:       big.NewInt(gasBudget),
	}, used.total())
	data := &SignData{
		TxBytes: txBytes,
		Digest:  blake2b.Sum256(append(append([]byte{}, transactionIntent...), txBytes...)),
		GasFee:  fee,
	}
	a.log.Debug("preloaded", "kind", params.Kind(), "fee", fee.Amount)

	return &domain.SignerParams{Input: params, Owner: owner.Address, Data: data}, nil
}

func (a *Adapter) buildTransaction(
	ctx context.Context,
	sender string,
	params domain.ConfirmParams,
	gasCoins, tokenCoins []coin,
	staked *objectRef,
) ([]byte, error) {
	budget := strconv.Itoa(gasBudget)
	amount := params.Value().String()

	var method string
	var args []any
	switch p := params.(type) {
	case domain.SwapParams:
		raw, err := base64.StdEncoding.DecodeString(p.Payload.Data)
		if err != nil {
			return nil, domain.PreloadErrorf(a.chainID, "invalid swap transaction: %v", err)
		}
		return raw, nil

	case domain.TransferParams:
		if len(gasCoins) == 0 {
			return nil, domain.PreloadErrorf(a.chainID, "no gas coins for %s", sender)
		}
		switch {
		case !p.AssetID.IsNative():
			if len(tokenCoins) == 0 {
				return nil, domain.PreloadErrorf(a.chainID, "no %s coins for %s", p.AssetID.TokenID, sender)
			}
			method = "unsafe_pay"
			args = []any{sender, coinIDs(tokenCoins), []string{p.Destination}, []string{amount}, gasCoins[0].CoinObjectID, budget}
		case p.Max:
			method = "unsafe_payAllSui"
			args = []any{sender, coinIDs(gasCoins), p.Destination, budget}
		default:
			method = "unsafe_paySui"
			args = []any{sender, coinIDs(gasCoins), []string{p.Destination}, []string{amount}, budget}
		}

	case domain.DelegateParams:
		if len(gasCoins) == 0 {
			return nil, domain.PreloadErrorf(a.chainID, "no coins to stake for %s", sender)
		}
		method = "unsafe_requestAddStake"
		args = []any{sender, coinIDs(gasCoins), amount, p.ValidatorID, nil, budget}

	case domain.UndelegateParams:
		if staked == nil {
			return nil, domain.PreloadErrorf(a.chainID, "staked object %s not found", p.DelegationID)
		}
		method = "unsafe_requestWithdrawStake"
		args = []any{sender, staked.ObjectID, nil, budget}
	}

	result, err := a.client.Execute(ctx, rpc.NewHTTPOperation(method, args))
	if err != nil {
		return nil, chain.PreloadError(a.chainID, method, err)
	}
	var resp struct {
		TxBytes string `json:"txBytes"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return nil, domain.NewError(domain.ErrPreload, a.chainID, method, err)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.TxBytes)
	if err != nil || len(raw) == 0 {
		return nil, domain.PreloadErrorf(a.chainID, "%s returned no transaction", method)
	}
	return raw, nil
}

func coinIDs(coins []coin) []string {
	ids := make([]string, len(coins))
	for i, c := range coins {
		ids[i] = c.CoinObjectID
	}
	return ids
}

func (a *Adapter) coins(ctx context.Context, owner, coinType string) ([]coin, error) {
	result, err := a.client.Execute(ctx, rpc.NewHTTPOperation("suix_getCoins", []any{owner, coinType}))
	if err != nil {
		return nil, chain.PreloadError(a.chainID, "suix_getCoins", err)
	}
	var resp struct {
		Data []coin `json:"data"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return nil, domain.NewError(domain.ErrPreload, a.chainID, "suix_getCoins", err)
	}
	return resp.Data, nil
}

func (a *Adapter) referenceGasPrice(ctx context.Context) (*big.Int, error) {
	result, err := a.client.Execute(ctx, rpc.NewHTTPOperation("suix_getReferenceGasPrice", []any{}))
	if err != nil {
		return nil, err
	}
	var s string
	switch v := result.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	}
	price, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid gas price %v", result)
	}
	return price, nil
}

// object resolves a staked object; a missing object is a PreloadError.
func (a *Adapter) object(ctx context.Context, id string) (*objectRef, error) {
	result, err := a.client.Execute(ctx, rpc.NewHTTPOperation("sui_getObject", []any{id}))
	if err != nil {
		return nil, chain.PreloadError(a.chainID, "sui_getObject", err)
	}
	var resp struct {
		Data *objectRef `json:"data"`
	}
	if err := rpc.Decode(result, &resp); err != nil || resp.Data == nil || resp.Data.ObjectID == "" {
		return nil, domain.PreloadErrorf(a.chainID, "staked object %s not found", id)
	}
	return resp.Data, nil
}

func (a *Adapter) dryRun(ctx context.Context, txBytes []byte) (gasUsed, error) {
	op := rpc.NewHTTPOperation("sui_dryRunTransactionBlock", []any{base64.StdEncoding.EncodeToString(txBytes)})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return gasUsed{}, chain.PreloadError(a.chainID, "sui_dryRunTransactionBlock", err)
	}
	var resp struct {
		Effects effects `json:"effects"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return gasUsed{}, domain.NewError(domain.ErrPreload, a.chainID, "sui_dryRunTransactionBlock", err)
	}
	if resp.Effects.Status.Status == "failure" {
		return gasUsed{}, domain.PreloadErrorf(a.chainID, "dry run failed: %s", resp.Effects.Status.Error)
	}
	return resp.Effects.GasUsed, nil
}
