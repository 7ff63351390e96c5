package bitcoin

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

// SignData is the UTXO signing context.
type SignData struct {
	UTXOs   []UTXO
	GasFees domain.Fees
}

func (d *SignData) Fee(priority domain.FeePriority) domain.Fee {
	fee, _ := d.GasFees.For(priority)
	return fee
}

func (d *SignData) Fees() domain.Fees {
	return d.GasFees
}

func (a *Adapter) Preload(
	ctx context.Context,
	owner domain.Account,
	params domain.ConfirmParams,
) (*domain.SignerParams, error) {
	outputs, err := a.paymentOutputs(params, params.Value())
	if err != nil {
		return nil, domain.NewError(domain.ErrPreload, a.chainID, "preload", err)
	}
	changeScript, err := a.script(owner.Address)
	if err != nil {
		return nil, domain.PreloadErrorf(a.chainID, "invalid sender address %q", owner.Address)
	}

	var utxos []UTXO
	rates := make([]int64, len(domain.FeePriorities))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := a.utxos(gctx, owner.Address)
		utxos = u
		return err
	})
	for i, priority := range domain.FeePriorities {
		g.Go(func() error {
			rate, err := a.feeRate(gctx, a.network.targets[priority])
			rates[i] = rate
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(utxos) == 0 {
		return nil, domain.PreloadErrorf(a.chainID, "no spendable outputs for %s", owner.Address)
	}

	fixed := outputsVBytes(outputs)
	spendAll := isMax(params)
	feeAsset := domain.NativeAsset(a.chainID)
	fees := make(domain.Fees, 0, len(rates))
	for i, priority := range domain.FeePriorities {
		s, err := selectCoins(utxos, params.Value().Int64(), rates[i], fixed, outputVBytes(changeScript), spendAll)
		if err != nil {
			return nil, domain.PreloadErrorf(a.chainID, "%s at %d sat/vB", err, rates[i])
		}
		fees = append(fees, domain.NewGasFeeWithAmount(priority, feeAsset, domain.GasFee{
			MaxGasPrice: big.NewInt(rates[i]),
			Limit:       big.NewInt(s.vsize),
		}, big.NewInt(s.fee)))
	}
	a.log.Debug("preloaded", "kind", params.Kind(), "utxos", len(utxos))

	return &domain.SignerParams{
		Input: params,
		Owner: owner.Address,
		Data:  &SignData{UTXOs: utxos, GasFees: fees},
	}, nil
}

func isMax(params domain.ConfirmParams) bool {
	p, ok := params.(domain.TransferParams)
	return ok && p.Max
}

// paymentOutputs returns every output except change. Swaps pay the vault
// and carry the provider memo in an OP_RETURN output.
func (a *Adapter) paymentOutputs(params domain.ConfirmParams, amount *big.Int) ([]*wire.TxOut, error) {
	if !params.Asset().IsNative() {
		return nil, fmt.Errorf("%s has no token support", a.chainID)
	}
	if !amount.IsInt64() {
		return nil, fmt.Errorf("amount %s out of range", amount)
	}
	switch p := params.(type) {
	case domain.TransferParams:
		script, err := a.script(p.Destination)
		if err != nil {
			return nil, fmt.Errorf("invalid destination %q: %w", p.Destination, err)
		}
		return []*wire.TxOut{wire.NewTxOut(amount.Int64(), script)}, nil

	case domain.SwapParams:
		script, err := a.script(p.Payload.To)
		if err != nil {
			return nil, fmt.Errorf("invalid vault address %q: %w", p.Payload.To, err)
		}
		outs := []*wire.TxOut{wire.NewTxOut(amount.Int64(), script)}
		if p.Payload.Data != "" {
			memo, err := txscript.NullDataScript([]byte(p.Payload.Data))
			if err != nil {
				return nil, fmt.Errorf("swap memo: %w", err)
			}
			outs = append(outs, wire.NewTxOut(0, memo))
		}
		return outs, nil
	}
	return nil, fmt.Errorf("%s is not supported", params.Kind())
}

func outputsVBytes(outs []*wire.TxOut) int64 {
	var n int64
	for _, o := range outs {
		n += outputVBytes(o.PkScript)
	}
	return n
}

func (a *Adapter) script(address string) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, a.network.params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

func (a *Adapter) utxos(ctx context.Context, address string) ([]UTXO, error) {
	op := rpc.NewRESTOperation("api/v2/utxo/"+address, "GET", url.Values{"confirmed": {"true"}})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return nil, chain.PreloadError(a.chainID, "utxo", err)
	}
	if result == nil {
		return nil, nil
	}
	var resp []struct {
		TxID  string `json:"txid"`
		Vout  uint32 `json:"vout"`
		Value string `json:"value"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return nil, domain.NewError(domain.ErrPreload, a.chainID, "utxo", err)
	}
	out := make([]UTXO, 0, len(resp))
	for _, u := range resp {
		v, err := strconv.ParseInt(u.Value, 10, 64)
		if err != nil {
			return nil, domain.PreloadErrorf(a.chainID, "invalid utxo value %q", u.Value)
		}
		out = append(out, UTXO{TxID: u.TxID, Vout: u.Vout, Value: v})
	}
	return out, nil
}

// feeRate converts the node's coin-per-kB estimate into sat/vB, floored
// at the chain minimum. A node without an estimate gets the minimum.
func (a *Adapter) feeRate(ctx context.Context, blocks int) (int64, error) {
	op := rpc.NewRESTOperation(fmt.Sprintf("api/v2/estimatefee/%d", blocks), "GET", nil)
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		if rpc.IsTransient(err) {
			return 0, chain.PreloadError(a.chainID, "estimatefee", err)
		}
		a.log.Warn("fee estimate unavailable", "blocks", blocks, "error", err)
		return a.network.minByteFee, nil
	}
	var resp struct {
		Result string `json:"result"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return 0, domain.NewError(domain.ErrPreload, a.chainID, "estimatefee", err)
	}
	perKB, err := decimal.NewFromString(resp.Result)
	if err != nil {
		return 0, domain.NewError(domain.ErrPreload, a.chainID, "estimatefee", errors.New("invalid fee estimate "+resp.Result))
	}
	rate := perKB.Shift(8).Div(decimal.NewFromInt(1000)).Ceil().IntPart()
	if rate < a.network.minByteFee {
		rate = a.network.minByteFee
	}
	return rate, nil
}
