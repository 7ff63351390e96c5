package sui

import (
	"context"
	"errors"
	"strings"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

type effects struct {
	Status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"status"`
	GasUsed gasUsed `json:"gasUsed"`
}

func (a *Adapter) Send(
	ctx context.Context,
	account domain.Account,
	signed []byte,
	txType domain.TransactionType,
) (string, error) {
	txData, sig, ok := strings.Cut(string(signed), "_")
	if !ok {
		return "", domain.BroadcastRejected(a.chainID, "malformed signed payload")
	}
	op := rpc.NewHTTPOperation("sui_executeTransactionBlock", []any{
		txData,
		[]string{sig},
		map[string]any{"showEffects": true},
		"WaitForLocalExecution",
	})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return "", chain.BroadcastError(a.chainID, "sui_executeTransactionBlock", err)
	}
	var resp struct {
		Digest string `json:"digest"`
	}
	if err := rpc.Decode(result, &resp); err != nil || resp.Digest == "" {
		return "", domain.BroadcastRejected(a.chainID, "empty transaction digest")
	}
	a.log.Info("transaction sent", "type", txType, "from", account.Address, "hash", resp.Digest)
	return resp.Digest, nil
}

func (a *Adapter) Status(ctx context.Context, req domain.StatusRequest) (domain.TransactionChanges, error) {
	op := rpc.NewHTTPOperation("sui_getTransactionBlock", []any{req.Hash, map[string]any{"showEffects": true}})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		if unknownDigest(err) {
			return domain.TransactionChanges{State: domain.TxStatePending}, nil
		}
		return domain.TransactionChanges{}, chain.RPCError(a.chainID, "sui_getTransactionBlock", err)
	}
	var resp struct {
		Checkpoint string   `json:"checkpoint"`
		Effects    *effects `json:"effects"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return domain.TransactionChanges{}, err
	}
	if resp.Effects == nil {
		return domain.TransactionChanges{State: domain.TxStatePending}, nil
	}

	changes := domain.TransactionChanges{BlockNumber: resp.Checkpoint, Fee: resp.Effects.GasUsed.total()}
	switch resp.Effects.Status.Status {
	case "success":
		changes.State = domain.TxStateConfirmed
	case "failure":
		changes.State = domain.TxStateReverted
	default:
		return domain.TransactionChanges{State: domain.TxStatePending}, nil
	}
	return changes, nil
}

func unknownDigest(err error) bool {
	var rpcErr *rpc.RPCError
	return errors.As(err, &rpcErr) && strings.Contains(rpcErr.Message, "Could not find the referenced transaction")
}
