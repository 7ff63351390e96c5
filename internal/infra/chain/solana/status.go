package solana

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

type signatureStatus struct {
	Slot               uint64 `json:"slot"`
	Err                any    `json:"err"`
	ConfirmationStatus string `json:"confirmationStatus"`
}

// Send submits a signed transaction. Swaps skip preflight since the
// provider already simulated them.
func (a *Adapter) Send(
	ctx context.Context,
	account domain.Account,
	signed []byte,
	txType domain.TransactionType,
) (string, error) {
	opts := map[string]any{
		"encoding":      "base64",
		"skipPreflight": txType == domain.TxTypeSwap,
	}
	op := rpc.NewHTTPOperation("sendTransaction", []any{base64.StdEncoding.EncodeToString(signed), opts})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return "", chain.BroadcastError(a.chainID, "sendTransaction", err)
	}
	hash, _ := result.(string)
	if hash == "" {
		return "", domain.BroadcastRejected(a.chainID, "empty transaction signature")
	}
	a.log.Info("transaction sent", "type", txType, "from", account.Address, "hash", hash)
	return hash, nil
}

func (a *Adapter) Status(ctx context.Context, req domain.StatusRequest) (domain.TransactionChanges, error) {
	op := rpc.NewHTTPOperation("getSignatureStatuses", []any{
		[]string{req.Hash},
		map[string]any{"searchTransactionHistory": true},
	})
	result, err := a.client.Execute(ctx, op)
	if err != nil {
		return domain.TransactionChanges{}, chain.RPCError(a.chainID, "getSignatureStatuses", err)
	}
	var resp struct {
		Value []*signatureStatus `json:"value"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return domain.TransactionChanges{}, err
	}
	if len(resp.Value) == 0 || resp.Value[0] == nil {
		return domain.TransactionChanges{State: domain.TxStatePending}, nil
	}

	st := resp.Value[0]
	changes := domain.TransactionChanges{BlockNumber: strconv.FormatUint(st.Slot, 10)}
	switch {
	case st.Err != nil:
		changes.State = domain.TxStateReverted
	case st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized":
		changes.State = domain.TxStateConfirmed
	default:
		changes.State = domain.TxStatePending
		changes.BlockNumber = ""
	}
	return changes, nil
}
