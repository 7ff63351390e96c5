// Package tron implements the lifecycle adapter for Tron over the full
// node HTTP API. Transactions are assembled locally and broadcast as hex.
package tron

import (
	logger "log/slog"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

const (
	// bandwidthFee is what a transaction burns when free bandwidth runs out.
	bandwidthFee = 280_000

	expiration = 10 * time.Hour
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
