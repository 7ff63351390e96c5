// Package solana implements the transaction lifecycle for Solana: compute
// budget pricing, SPL token transfers and signature-status tracking.
package solana

import (
	logger "log/slog"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

type Adapter struct {
	chainID domain.Chain
	client  rpc.RPCClient
	log     logger.Logger
}

func NewAdapter(chainID domain.Chain, client rpc.RPCClient) *Adapter {
	return &Adapter{
		chainID: chainID,
		client:  client,
		log:     *logger.Default().With("chain", string(chainID)),
	}
}

func (a *Adapter) Chain() domain.Chain {
	return a.chainID
}
