// Package cosmos implements the transaction lifecycle for Cosmos SDK
// chains. Transactions are SIGN_MODE_DIRECT protobuf, sent over either
// the LCD REST gateway or gRPC.
package cosmos

import (
	"math/big"

	logger "log/slog"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

type Transport string

const (
	TransportREST Transport = "rest"
	TransportGRPC Transport = "grpc"
)

// Options tune fees and transport. Zero values use the chain defaults.
type Options struct {
	Denom     string
	GasPrice  *big.Int
	FlatFee   *big.Int
	Transport Transport
}

type chainDefaults struct {
	denom        string
	transferFee  int64
	stakeFee     int64
	ethSecp256k1 bool
}

var defaults = map[domain.Chain]chainDefaults{
	domain.ChainCosmos:    {denom: "uatom", transferFee: 3_000, stakeFee: 25_000},
	domain.ChainOsmosis:   {denom: "uosmo", transferFee: 10_000, stakeFee: 100_000},
	domain.ChainInjective: {denom: "inj", transferFee: 100_000_000_000_000, stakeFee: 1_000_000_000_000_000, ethSecp256k1: true},
}

type Adapter struct {
	chainID  domain.Chain
	backend  backend
	denom    string
	gasPrice *big.Int
	flatFee  *big.Int
	defaults chainDefaults
	log      logger.Logger
}

func NewAdapter(chainID domain.Chain, client rpc.RPCClient, opts Options) *Adapter {
	d := defaults[chainID]
	denom := opts.Denom
	if denom == "" {
		denom = d.denom
	}
	var b backend = &restBackend{client: client}
	if opts.Transport == TransportGRPC {
		b = &grpcBackend{client: client}
	}
	return &Adapter{
		chainID:  chainID,
		backend:  b,
		denom:    denom,
		gasPrice: opts.GasPrice,
		flatFee:  opts.FlatFee,
		defaults: d,
		log:      *logger.Default().With("chain", string(chainID)),
	}
}

func (a *Adapter) Chain() domain.Chain {
	return a.chainID
}
