package tron

import (
	"context"
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

func (a *Adapter) Send(
	ctx context.Context,
	account domain.Account,
	signed []byte,
	txType domain.TransactionType,
) (string, error) {
	op := rpc.NewRESTOperation("wallet/broadcasthex", "POST", map[string]any{"transaction": hex.EncodeToString(signed)})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return "", chain.BroadcastError(a.chainID, "broadcasthex", err)
	}
	var resp struct {
		Result  bool   `json:"result"`
		TxID    string `json:"txid"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return "", domain.BroadcastRejected(a.chainID, err.Error())
	}
	if !resp.Result || resp.TxID == "" {
		msg := nodeText(resp.Message)
		if msg == "" {
			msg = resp.Code
		}
		return "", domain.BroadcastRejected(a.chainID, msg)
	}
	a.log.Info("transaction sent", "type", txType, "from", account.Address, "hash", resp.TxID)
	return resp.TxID, nil
}

func (a *Adapter) Status(ctx context.Context, req domain.StatusRequest) (domain.TransactionChanges, error) {
	op := rpc.NewRESTOperation("wallet/gettransactioninfobyid", "POST", map[string]any{"value": req.Hash})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return domain.TransactionChanges{}, chain.RPCError(a.chainID, "gettransactioninfobyid", err)
	}
	var resp struct {
		ID          string `json:"id"`
		Fee         int64  `json:"fee"`
		BlockNumber int64  `json:"blockNumber"`
		Result      string `json:"result"`
		Receipt     struct {
			Result string `json:"result"`
		} `json:"receipt"`
	}
	if result != nil {
		if err := rpc.Decode(result, &resp); err != nil {
			return domain.TransactionChanges{}, err
		}
	}
	if resp.ID == "" || resp.BlockNumber == 0 {
		return domain.TransactionChanges{State: domain.TxStatePending}, nil
	}

	changes := domain.TransactionChanges{
		State:       domain.TxStateConfirmed,
		BlockNumber: strconv.FormatInt(resp.BlockNumber, 10),
		Fee:         big.NewInt(resp.Fee),
	}
	if resp.Result == "FAILED" || (resp.Receipt.Result != "" && resp.Receipt.Result != "SUCCESS") {
		changes.State = domain.TxStateReverted
	}
	return changes, nil
}
