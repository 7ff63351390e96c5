package bitcoin

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"strings"

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
	op := rpc.NewRESTOperation("api/v2/sendtx/"+hex.EncodeToString(signed), "GET", nil)
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return "", chain.BroadcastError(a.chainID, "sendtx", err)
	}
	var resp struct {
		Result string `json:"result"`
		Error  any    `json:"error"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return "", domain.BroadcastRejected(a.chainID, err.Error())
	}
	if resp.Error != nil || resp.Result == "" {
		return "", domain.BroadcastRejected(a.chainID, errorMessage(resp.Error))
	}
	a.log.Info("transaction sent", "type", txType, "from", account.Address, "hash", resp.Result)
	return resp.Result, nil
}

func errorMessage(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return "transaction rejected"
}

func (a *Adapter) Status(ctx context.Context, req domain.StatusRequest) (domain.TransactionChanges, error) {
	result, err := a.client.Execute(ctx, rpc.NewRESTOperation("api/v2/tx/"+req.Hash, "GET", nil))
	if err != nil {
		if notFound(err) {
			return domain.TransactionChanges{State: domain.TxStatePending}, nil
		}
		return domain.TransactionChanges{}, chain.RPCError(a.chainID, "tx", err)
	}
	var resp struct {
		BlockHeight   int64  `json:"blockHeight"`
		Confirmations int64  `json:"confirmations"`
		Fees          string `json:"fees"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return domain.TransactionChanges{}, err
	}
	if resp.Confirmations <= 0 {
		return domain.TransactionChanges{State: domain.TxStatePending}, nil
	}

	changes := domain.TransactionChanges{
		State:       domain.TxStateConfirmed,
		BlockNumber: strconv.FormatInt(resp.BlockHeight, 10),
	}
	if fee, ok := new(big.Int).SetString(resp.Fees, 10); ok {
		changes.Fee = fee
	}
	return changes, nil
}

// notFound reports a hash the indexer has not seen. Blockbook answers 400
// for unknown transactions on some versions.
func notFound(err error) bool {
	var httpErr *rpc.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.NotFound() || strings.Contains(strings.ToLower(httpErr.Body), "not found")
}
