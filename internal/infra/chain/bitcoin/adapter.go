// Package bitcoin implements the lifecycle adapter for UTXO chains served
// by a Blockbook indexer.
package bitcoin

import (
	logger "log/slog"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

// litecoinParams carries the address encodings the adapter needs; the rest
// is inherited from Bitcoin mainnet.
var litecoinParams = func() chaincfg.Params {
	p := chaincfg.MainNetParams
	p.Name = "litecoin"
	p.Bech32HRPSegwit = "ltc"
	p.PubKeyHashAddrID = 0x30
	p.ScriptHashAddrID = 0x32
	p.PrivateKeyID = 0xb0
	return p
}()

type network struct {
	params     *chaincfg.Params
	minByteFee int64
	// confirmation targets in blocks for slow, normal and fast
	targets map[domain.FeePriority]int
}

var networks = map[domain.Chain]network{
	domain.ChainBitcoin: {
		params:     &chaincfg.MainNetParams,
		minByteFee: 1,
		targets:    map[domain.FeePriority]int{domain.FeePrioritySlow: 12, domain.FeePriorityNormal: 6, domain.FeePriorityFast: 1},
	},
	domain.ChainLitecoin: {
		params:     &litecoinParams,
		minByteFee: 5,
		targets:    map[domain.FeePriority]int{domain.FeePrioritySlow: 6, domain.FeePriorityNormal: 3, domain.FeePriorityFast: 1},
	},
}

type Adapter struct {
	chainID domain.Chain
	network network
	client  rpc.RPCClient
	log     logger.Logger
}

// NewAdapter creates an adapter for a Blockbook-backed chain. Unknown
// chains get Bitcoin mainnet rules.
func NewAdapter(chainID domain.Chain, client rpc.RPCClient) *Adapter {
	n, ok := networks[chainID]
	if !ok {
		n = networks[domain.ChainBitcoin]
	}
	return &Adapter{
		chainID: chainID,
		network: n,
		client:  client,
		log:     *logger.Default().With("chain", string(chainID)),
	}
}

func (a *Adapter) Chain() domain.Chain {
	return a.chainID
}
