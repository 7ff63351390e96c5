package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

const (
	nativeGasLimit  = 21_000
	feeHistoryDepth = "0xa"
)

// rewardPercentiles map to slow, normal and fast.
var rewardPercentiles = []int{25, 50, 75}

// SignData is the EVM signing context.
type SignData struct {
	NetworkID *big.Int
	Nonce     uint64
	GasFees   domain.Fees
}

func (d *SignData) Fee(priority domain.FeePriority) domain.Fee {
	fee, _ := d.GasFees.For(priority)
	return fee
}

func (d *SignData) Fees() domain.Fees {
	return d.GasFees
}

type feeHistory struct {
	BaseFeePerGas []string   `json:"baseFeePerGas"`
	Reward        [][]string `json:"reward"`
}

// call is the message a transaction will carry.
type call struct {
	to    string
	value *big.Int
	data  []byte
}

func (a *Adapter) Preload(
	ctx context.Context,
	owner domain.Account,
	params domain.ConfirmParams,
) (*domain.SignerParams, error) {
	msg, err := a.buildCall(params, params.Value())
	if err != nil {
		return nil, domain.NewError(domain.ErrPreload, a.chainID, "preload", err)
	}

	var (
		nonce    uint64
		gasLimit *big.Int
		history  feeHistory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.getNonce(gctx, owner.Address)
		nonce = n
		return err
	})
	g.Go(func() error {
		if swap, ok := params.(domain.SwapParams); ok && swap.Payload.GasLimit != nil && swap.Payload.GasLimit.Sign() > 0 {
			gasLimit = new(big.Int).Set(swap.Payload.GasLimit)
			return nil
		}
		l, err := a.estimateGas(gctx, owner.Address, msg)
		gasLimit = l
		return err
	})
	g.Go(func() error {
		h, err := a.getFeeHistory(gctx)
		history = h
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fees, err := a.calculateFees(params, gasLimit, history)
	if err != nil {
		return nil, err
	}
	a.log.Debug("preloaded", "kind", params.Kind(), "nonce", nonce, "gasLimit", gasLimit)

	return &domain.SignerParams{
		Input: params,
		Owner: owner.Address,
		Data:  &SignData{NetworkID: a.NetworkID(), Nonce: nonce, GasFees: fees},
	}, nil
}

func (a *Adapter) getNonce(ctx context.Context, address string) (uint64, error) {
	op := rpc.NewHTTPOperation("eth_getTransactionCount", []any{address, "pending"})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return 0, chain.PreloadError(a.chainID, "eth_getTransactionCount", err)
	}
	nonce, err := hexutil.DecodeUint64(getString(result))
	if err != nil {
		return 0, domain.PreloadErrorf(a.chainID, "invalid nonce %v", result)
	}
	return nonce, nil
}

func (a *Adapter) estimateGas(ctx context.Context, from string, msg call) (*big.Int, error) {
	tx := map[string]any{
		"from":  from,
		"to":    msg.to,
		"value": hexutil.EncodeBig(msg.value),
	}
	if len(msg.data) > 0 {
		tx["data"] = hexutil.Encode(msg.data)
	}
	op := rpc.NewHTTPOperation("eth_estimateGas", []any{tx})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return nil, chain.PreloadError(a.chainID, "eth_estimateGas", err)
	}
	limit, err := hexutil.DecodeBig(getString(result))
	if err != nil {
		return nil, domain.PreloadErrorf(a.chainID, "invalid gas estimate %v", result)
	}
	// plain transfers cost exactly 21000; anything else gets 50% headroom
	if limit.Cmp(big.NewInt(nativeGasLimit)) != 0 {
		limit.Add(limit, new(big.Int).Div(limit, big.NewInt(2)))
	}
	return limit, nil
}

func (a *Adapter) getFeeHistory(ctx context.Context) (feeHistory, error) {
	op := rpc.NewHTTPOperation("eth_feeHistory", []any{feeHistoryDepth, "latest", rewardPercentiles})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return feeHistory{}, chain.PreloadError(a.chainID, "eth_feeHistory", err)
	}
	var h feeHistory
	if err := rpc.Decode(result, &h); err != nil {
		return feeHistory{}, domain.NewError(domain.ErrPreload, a.chainID, "eth_feeHistory", err)
	}
	return h, nil
}

// calculateFees derives one gas fee per priority: the highest recent base
// fee plus the averaged tip at that priority's percentile.
func (a *Adapter) calculateFees(params domain.ConfirmParams, limit *big.Int, h feeHistory) (domain.Fees, error) {
	baseFee := new(big.Int)
	for _, s := range h.BaseFeePerGas {
		v, err := hexutil.DecodeBig(s)
		if err != nil {
			continue
		}
		if v.Cmp(baseFee) > 0 {
			baseFee = v
		}
	}
	if baseFee.Sign() == 0 {
		return nil, domain.PreloadErrorf(a.chainID, "unable to calculate base fee")
	}

	floor := big.NewInt(minPriorityFee[a.chainID])
	maxTransfer := false
	if t, ok := params.(domain.TransferParams); ok && t.AssetID.IsNative() && t.Max {
		maxTransfer = true
	}

	feeAsset := domain.NativeAsset(a.chainID)
	fees := make(domain.Fees, 0, len(domain.FeePriorities))
	for i, priority := range domain.FeePriorities {
		tip := averageReward(h.Reward, i)
		if tip.Cmp(floor) < 0 {
			tip = new(big.Int).Set(floor)
		}
		maxGasPrice := new(big.Int).Add(baseFee, tip)
		minerFee := tip
		if maxTransfer {
			// the whole balance minus the fee must leave no dust
			minerFee = maxGasPrice
		}
		fees = append(fees, domain.NewGasFee(priority, feeAsset, domain.GasFee{
			MaxGasPrice: maxGasPrice,
			Limit:       limit,
			MinerFee:    minerFee,
		}))
	}
	return fees, nil
}

func averageReward(rewards [][]string, column int) *big.Int {
	sum := new(big.Int)
	n := int64(0)
	for _, row := range rewards {
		if column >= len(row) {
			continue
		}
		v, err := hexutil.DecodeBig(row[column])
		if err != nil {
			continue
		}
		sum.Add(sum, v)
		n++
	}
	if n == 0 {
		return sum
	}
	return sum.Div(sum, big.NewInt(n))
}

// buildCall resolves the destination, value and calldata of an intent.
func (a *Adapter) buildCall(params domain.ConfirmParams, amount *big.Int) (call, error) {
	switch p := params.(type) {
	case domain.TransferParams:
		if p.AssetID.IsNative() {
			return call{to: p.Destination, value: amount, data: decodeData(p.Memo)}, nil
		}
		data, err := encodeTransfer(p.Destination, amount)
		if err != nil {
			return call{}, err
		}
		return call{to: p.AssetID.TokenID, value: new(big.Int), data: data}, nil

	case domain.TokenApprovalParams:
		data := decodeData(p.Data)
		if data == nil {
			var err error
			if data, err = encodeApprove(p.Spender); err != nil {
				return call{}, err
			}
		}
		return call{to: p.Contract, value: new(big.Int), data: data}, nil

	case domain.SwapParams:
		value := new(big.Int)
		if p.Payload.Value != nil {
			value.Set(p.Payload.Value)
		}
		return call{to: p.Payload.To, value: value, data: decodeData(p.Payload.Data)}, nil

	case domain.NftTransferParams:
		tokenID, ok := new(big.Int).SetString(p.TokenID, 10)
		if !ok {
			return call{}, fmt.Errorf("invalid token id %q", p.TokenID)
		}
		var (
			data []byte
			err  error
		)
		switch p.Standard {
		case domain.NftERC721:
			data, err = encodeERC721Transfer(p.From.Address, p.Destination, tokenID)
		case domain.NftERC1155:
			count := big.NewInt(1)
			if p.Amount != nil && p.Amount.Sign() > 0 {
				count = p.Value()
			}
			data, err = encodeERC1155Transfer(p.From.Address, p.Destination, tokenID, count)
		default:
			err = fmt.Errorf("unsupported nft standard %q", p.Standard)
		}
		if err != nil {
			return call{}, err
		}
		return call{to: p.Contract, value: new(big.Int), data: data}, nil
	}
	return call{}, fmt.Errorf("%s is not supported", params.Kind())
}

func getString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return ""
}
