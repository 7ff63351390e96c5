// Package evm implements the transaction lifecycle for Ethereum-compatible
// chains: EIP-1559 fee estimation, signing and receipt-based status.
package evm

import (
	"math/big"

	logger "log/slog"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

// networkIDs maps wallet chains to EIP-155 chain ids.
var networkIDs = map[domain.Chain]int64{
	domain.ChainEthereum:   1,
	domain.ChainSmartChain: 56,
	domain.ChainPolygon:    137,
	domain.ChainArbitrum:   42161,
	domain.ChainBase:       8453,
}

// minPriorityFee raises node-reported tips that validators would ignore.
var minPriorityFee = map[domain.Chain]int64{
	domain.ChainSmartChain: 1_000_000_000,
	domain.ChainPolygon:    30_000_000_000,
}

type Adapter struct {
	chainID   domain.Chain
	networkID *big.Int
	client    rpc.RPCClient
	log       logger.Logger
}

func NewAdapter(chainID domain.Chain, client rpc.RPCClient) *Adapter {
	return &Adapter{
		chainID:   chainID,
		networkID: big.NewInt(networkIDs[chainID]),
		client:    client,
		log:       *logger.Default().With("chain", string(chainID)),
	}
}

func (a *Adapter) Chain() domain.Chain {
	return a.chainID
}

// NetworkID returns the EIP-155 chain id used in signatures.
func (a *Adapter) NetworkID() *big.Int {
	return new(big.Int).Set(a.networkID)
}
