package evm

import (
	"context"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

type receipt struct {
	Status            string `json:"status"`
	BlockNumber       string `json:"blockNumber"`
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
}

func (a *Adapter) Send(
	ctx context.Context,
	account domain.Account,
	signed []byte,
	txType domain.TransactionType,
) (string, error) {
	op := rpc.NewHTTPOperation("eth_sendRawTransaction", []any{"0x" + hex.EncodeToString(signed)})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return "", chain.BroadcastError(a.chainID, "eth_sendRawTransaction", err)
	}
	hash := getString(result)
	if hash == "" {
		return "", domain.BroadcastRejected(a.chainID, "empty transaction hash")
	}
	a.log.Info("transaction sent", "type", txType, "from", account.Address, "hash", hash)
	return hash, nil
}

func (a *Adapter) Status(ctx context.Context, req domain.StatusRequest) (domain.TransactionChanges, error) {
	op := rpc.NewHTTPOperation("eth_getTransactionReceipt", []any{req.Hash})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return domain.TransactionChanges{}, chain.RPCError(a.chainID, "eth_getTransactionReceipt", err)
	}
	if result == nil {
		return domain.TransactionChanges{State: domain.TxStatePending}, nil
	}

	var r receipt
	if err := rpc.Decode(result, &r); err != nil {
		return domain.TransactionChanges{}, err
	}
	if r.BlockNumber == "" {
		return domain.TransactionChanges{State: domain.TxStatePending}, nil
	}

	changes := domain.TransactionChanges{State: domain.TxStateReverted}
	if r.Status == "0x1" {
		changes.State = domain.TxStateConfirmed
	}
	if block, err := hexutil.DecodeBig(r.BlockNumber); err == nil {
		changes.BlockNumber = block.String()
	}
	gasUsed, err1 := hexutil.DecodeBig(r.GasUsed)
	price, err2 := hexutil.DecodeBig(r.EffectiveGasPrice)
	if err1 == nil && err2 == nil {
		changes.Fee = gasCost(gasUsed, price)
	}
	return changes, nil
}
