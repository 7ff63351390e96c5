// Package sui implements the lifecycle adapter for the Sui object model.
// Transactions are assembled by the node's unsafe_* builders and priced by
// a dry run.
package sui

import (
	logger "log/slog"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

const (
	suiCoinType     = "0x2::sui::SUI"
	gasBudget       = 25_000_000
	defaultGasPrice = 750
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
