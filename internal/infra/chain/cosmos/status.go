package cosmos

import (
	"context"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
)

func (a *Adapter) Send(
	ctx context.Context,
	account domain.Account,
	signed []byte,
	txType domain.TransactionType,
) (string, error) {
	result, err := a.backend.broadcast(ctx, signed)
	if err != nil {
		return "", chain.BroadcastError(a.chainID, "broadcast_tx", err)
	}
	if result.Code != 0 {
		return "", domain.BroadcastRejected(a.chainID, result.RawLog)
	}
	if result.Hash == "" {
		return "", domain.BroadcastRejected(a.chainID, "empty transaction hash")
	}
	a.log.Info("transaction sent", "type", txType, "from", account.Address, "hash", result.Hash)
	return result.Hash, nil
}

func (a *Adapter) Status(ctx context.Context, req domain.StatusRequest) (domain.TransactionChanges, error) {
	tx, err := a.backend.transaction(ctx, req.Hash)
	if err != nil {
		return domain.TransactionChanges{}, chain.RPCError(a.chainID, "get_tx", err)
	}
	if tx == nil || tx.Height == "" || tx.Height == "0" {
		return domain.TransactionChanges{State: domain.TxStatePending}, nil
	}
	state := domain.TxStateConfirmed
	if tx.Code != 0 {
		state = domain.TxStateReverted
	}
	return domain.TransactionChanges{State: state, BlockNumber: tx.Height}, nil
}
