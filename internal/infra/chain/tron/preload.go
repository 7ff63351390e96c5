package tron

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

const (
	paramEnergyFee           = "getEnergyFee"
	paramCreateAccountFee    = "getCreateAccountFee"
	paramCreateAccountInCall = "getCreateNewAccountFeeInSystemContract"
)

var (
	energyMargin   = decimal.RequireFromString("1.2")
	sunPerTRX      = big.NewInt(1_000_000)
	transferMethod = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
	approveMethod  = crypto.Keccak256([]byte("approve(address,uint256)"))[:4]
)

// SignData is the Tron signing context: the reference block, the fee
// and, for stake changes, the complete vote set after the change.
type SignData struct {
	Block  blockRef
	GasFee domain.Fee
	Votes  []Vote
}

// Fee returns the single estimated fee; Tron has no priority tiers.
func (d *SignData) Fee(domain.FeePriority) domain.Fee {
	return d.GasFee
}

func (d *SignData) Fees() domain.Fees {
	return domain.Fees{d.GasFee}
}

type account struct {
	Address string `json:"address"`
	Votes   []struct {
		VoteAddress string `json:"vote_address"`
		VoteCount   int64  `json:"vote_count"`
	} `json:"votes"`
	FrozenV2 []struct {
		Type   string `json:"type"`
		Amount int64  `json:"amount"`
	} `json:"frozenV2"`
}

func (a *account) exists() bool {
	return a != nil && a.Address != ""
}

func (a *account) staked() int64 {
	var total int64
	for _, f := range a.FrozenV2 {
		total += f.Amount
	}
	return total
}

type accountNet struct {
	FreeNetLimit int64 `json:"freeNetLimit"`
	FreeNetUsed  int64 `json:"freeNetUsed"`
}

func (n accountNet) bandwidth() int64 {
	return n.FreeNetLimit - n.FreeNetUsed
}

// contractCall is a TriggerSmartContract payload.
type contractCall struct {
	contract []byte
	data     []byte
	value    int64
}

func (a *Adapter) Preload(
	ctx context.Context,
	owner domain.Account,
	params domain.ConfirmParams,
) (*domain.SignerParams, error) {
	switch params.(type) {
	case domain.TransferParams, domain.TokenApprovalParams, domain.SwapParams,
		domain.DelegateParams, domain.UndelegateParams, domain.RedelegateParams,
		domain.WithdrawParams, domain.RewardsParams, domain.FreezeParams, domain.UnfreezeParams:
	default:
		return nil, domain.Unsupported(domain.ErrPreload, a.chainID, params)
	}
	call, err := a.buildCall(params, params.Value())
	if err != nil {
		return nil, domain.NewError(domain.ErrPreload, a.chainID, "preload", err)
	}
	transfer, isTransfer := params.(domain.TransferParams)

	var (
		block       blockRef
		sender      *account
		net         accountNet
		recipient   *account
		chainParams map[string]int64
		energy      int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := a.nowBlock(gctx)
		block = b
		return err
	})
	g.Go(func() error {
		acc, err := a.account(gctx, owner.Address)
		sender = acc
		return err
	})
	g.Go(func() error {
		n, err := a.accountNet(gctx, owner.Address)
		net = n
		return err
	})
	if isTransfer {
		g.Go(func() error {
			acc, err := a.account(gctx, transfer.Destination)
			recipient = acc
			return err
		})
	}
	if isTransfer || call != nil {
		g.Go(func() error {
			p, err := a.chainParameters(gctx)
			chainParams = p
			return err
		})
	}
	if call != nil {
		g.Go(func() error {
			e, err := a.estimateEnergy(gctx, owner.Address, call)
			energy = e
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !sender.exists() {
		return nil, domain.PreloadErrorf(a.chainID, "account %s is not activated", owner.Address)
	}

	fee, err := a.calculateFee(params, call != nil, sender, net, recipient, chainParams, energy)
	if err != nil {
		return nil, err
	}
	data := &SignData{Block: block, GasFee: fee, Votes: stakeVotes(params, sender)}
	a.log.Debug("preloaded", "kind", params.Kind(), "block", block.Number, "fee", fee.Amount)

	return &domain.SignerParams{Input: params, Owner: owner.Address, Data: data}, nil
}

// calculateFee burns bandwidth when the free allowance cannot cover the
// transaction, and energy for contract calls with a 20% margin.
func (a *Adapter) calculateFee(
	params domain.ConfirmParams,
	isCall bool,
	sender *account,
	net accountNet,
	recipient *account,
	chainParams map[string]int64,
	energy int64,
) (domain.Fee, error) {
	feeAsset := domain.NativeAsset(a.chainID)
	burn := func(need, times int64) domain.Fee {
		if net.bandwidth() >= need {
			return domain.NewFee(domain.FeePriorityNormal, feeAsset, new(big.Int))
		}
		return domain.NewFee(domain.FeePriorityNormal, feeAsset, big.NewInt(bandwidthFee*times))
	}
	param := func(key string) (int64, error) {
		v, ok := chainParams[key]
		if !ok {
			return 0, domain.PreloadErrorf(a.chainID, "unknown chain parameter %s", key)
		}
		return v, nil
	}

	if isCall {
		energyFee, err := param(paramEnergyFee)
		if err != nil {
			return domain.Fee{}, err
		}
		relay := new(big.Int)
		if _, ok := params.(domain.TransferParams); ok && !recipient.exists() {
			create, err := param(paramCreateAccountInCall)
			if err != nil {
				return domain.Fee{}, err
			}
			relay.SetInt64(create)
		}
		limit := decimal.NewFromInt(energy).Mul(energyMargin).Ceil().BigInt()
		return domain.NewGasFee(domain.FeePriorityNormal, feeAsset, domain.GasFee{
			MaxGasPrice: big.NewInt(energyFee),
			Limit:       limit,
			Relay:       relay,
		}), nil
	}

	switch p := params.(type) {
	case domain.TransferParams:
		fee := burn(300, 1)
		if !recipient.exists() {
			create, err := param(paramCreateAccountFee)
			if err != nil {
				return domain.Fee{}, err
			}
			fee.Amount.Add(fee.Amount, big.NewInt(create))
		}
		return fee, nil
	case domain.DelegateParams:
		return burn(580, 1), nil
	case domain.UndelegateParams:
		if big.NewInt(sender.staked()).Cmp(p.Value()) > 0 {
			return burn(580, 2), nil
		}
		return burn(300, 1), nil
	}
	return burn(300, 1), nil
}

// stakeVotes returns the full vote set after a stake change. Votes are
// whole TRX; witnesses left with none are dropped.
func stakeVotes(params domain.ConfirmParams, acc *account) []Vote {
	delta := new(big.Int).Div(params.Value(), sunPerTRX).Int64()
	current := make(map[string]int64)
	for _, v := range acc.Votes {
		current[v.VoteAddress] += v.VoteCount
	}
	switch p := params.(type) {
	case domain.DelegateParams:
		current[p.ValidatorID] += delta
	case domain.UndelegateParams:
		current[p.ValidatorID] -= delta
	case domain.RedelegateParams:
		current[p.SrcValidatorID] -= delta
		current[p.DstValidatorID] += delta
	default:
		return nil
	}

	votes := make([]Vote, 0, len(current))
	for addr, n := range current {
		if n > 0 {
			votes = append(votes, Vote{Address: addr, Count: n})
		}
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].Address < votes[j].Address })
	return votes
}

// buildCall returns the smart contract call for TRC-20 transfers,
// approvals and swaps, or nil for native contracts.
func (a *Adapter) buildCall(params domain.ConfirmParams, amount *big.Int) (*contractCall, error) {
	switch p := params.(type) {
	case domain.TransferParams:
		if p.AssetID.IsNative() {
			return nil, nil
		}
		token, err := decodeAddress(p.AssetID.TokenID)
		if err != nil {
			return nil, err
		}
		to, err := decodeAddress(p.Destination)
		if err != nil {
			return nil, err
		}
		return &contractCall{contract: token, data: abiCall(transferMethod, to[1:], amount)}, nil

	case domain.TokenApprovalParams:
		token, err := decodeAddress(p.Contract)
		if err != nil {
			return nil, err
		}
		if p.Data != "" {
			data, err := hexutil.Decode(p.Data)
			if err != nil {
				return nil, fmt.Errorf("invalid approval data: %w", err)
			}
			return &contractCall{contract: token, data: data}, nil
		}
		spender, err := decodeAddress(p.Spender)
		if err != nil {
			return nil, err
		}
		return &contractCall{contract: token, data: abiCall(approveMethod, spender[1:], math.MaxBig256)}, nil

	case domain.SwapParams:
		target, err := decodeAddress(p.Payload.To)
		if err != nil {
			return nil, err
		}
		data, err := hexutil.Decode(p.Payload.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid swap data: %w", err)
		}
		call := &contractCall{contract: target, data: data}
		if p.Payload.Value != nil {
			if !p.Payload.Value.IsInt64() {
				return nil, fmt.Errorf("swap value %s out of range", p.Payload.Value)
			}
			call.value = p.Payload.Value.Int64()
		}
		return call, nil
	}
	return nil, nil
}

func abiCall(method, addr []byte, amount *big.Int) []byte {
	data := make([]byte, 0, 4+64)
	data = append(data, method...)
	data = append(data, common.LeftPadBytes(addr, 32)...)
	return append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
}

func (a *Adapter) post(ctx context.Context, path string, body any, out any) error {
	result, err := a.client.Execute(ctx, rpc.NewRESTOperation(path, "POST", body))
	if err != nil {
		return chain.PreloadError(a.chainID, path, err)
	}
	if result == nil {
		return nil
	}
	if err := rpc.Decode(result, out); err != nil {
		return domain.NewError(domain.ErrPreload, a.chainID, path, err)
	}
	return nil
}

func (a *Adapter) nowBlock(ctx context.Context) (blockRef, error) {
	var resp struct {
		BlockID     string `json:"blockID"`
		BlockHeader struct {
			RawData struct {
				Number    int64 `json:"number"`
				Timestamp int64 `json:"timestamp"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := a.post(ctx, "wallet/getnowblock", nil, &resp); err != nil {
		return blockRef{}, err
	}
	if resp.BlockID == "" {
		return blockRef{}, domain.PreloadErrorf(a.chainID, "latest block has no id")
	}
	raw := resp.BlockHeader.RawData
	return blockRef{Number: raw.Number, ID: resp.BlockID, Timestamp: raw.Timestamp}, nil
}

// account returns an empty account when the address was never activated.
func (a *Adapter) account(ctx context.Context, address string) (*account, error) {
	acc := &account{}
	err := a.post(ctx, "wallet/getaccount", map[string]any{"address": address, "visible": true}, acc)
	return acc, err
}

func (a *Adapter) accountNet(ctx context.Context, address string) (accountNet, error) {
	var net accountNet
	err := a.post(ctx, "wallet/getaccountnet", map[string]any{"address": address, "visible": true}, &net)
	return net, err
}

func (a *Adapter) chainParameters(ctx context.Context) (map[string]int64, error) {
	var resp struct {
		ChainParameter []struct {
			Key   string `json:"key"`
			Value int64  `json:"value"`
		} `json:"chainParameter"`
	}
	if err := a.post(ctx, "wallet/getchainparameters", nil, &resp); err != nil {
		return nil, err
	}
	params := make(map[string]int64, len(resp.ChainParameter))
	for _, p := range resp.ChainParameter {
		params[p.Key] = p.Value
	}
	return params, nil
}

func (a *Adapter) estimateEnergy(ctx context.Context, owner string, call *contractCall) (int64, error) {
	body := map[string]any{
		"owner_address":    owner,
		"contract_address": encodeAddress(call.contract),
		"data":             hex.EncodeToString(call.data),
		"call_value":       call.value,
		"visible":          true,
	}
	var resp struct {
		Result struct {
			Result  bool   `json:"result"`
			Message string `json:"message"`
		} `json:"result"`
		EnergyUsed int64 `json:"energy_used"`
	}
	if err := a.post(ctx, "wallet/triggerconstantcontract", body, &resp); err != nil {
		return 0, err
	}
	if !resp.Result.Result || resp.Result.Message != "" {
		return 0, domain.PreloadErrorf(a.chainID, "energy estimate failed: %s", nodeText(resp.Result.Message))
	}
	return resp.EnergyUsed, nil
}

// nodeText decodes the hex-encoded messages the node returns.
func nodeText(msg string) string {
	if b, err := hex.DecodeString(msg); err == nil && len(b) > 0 {
		return string(b)
	}
	return msg
}
