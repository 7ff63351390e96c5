package domain

import "time"

// Chain identifies a blockchain network by its wallet-level code.
type Chain string

// ChainType groups chains that share a transaction model and adapter.
type ChainType string

const (
	ChainEthereum   Chain = "ethereum"
	ChainSmartChain Chain = "smartchain"
	ChainPolygon    Chain = "polygon"
	ChainArbitrum   Chain = "arbitrum"
	ChainBase       Chain = "base"
	ChainCosmos     Chain = "cosmos"
	ChainOsmosis    Chain = "osmosis"
	ChainInjective  Chain = "injective"
	ChainSolana     Chain = "solana"
	ChainBitcoin    Chain = "bitcoin"
	ChainLitecoin   Chain = "litecoin"
	ChainSui        Chain = "sui"
	ChainTron       Chain = "tron"
)

const (
	ChainTypeEVM     ChainType = "evm"
	ChainTypeCosmos  ChainType = "cosmos"
	ChainTypeSolana  ChainType = "solana"
	ChainTypeBitcoin ChainType = "bitcoin"
	ChainTypeSui     ChainType = "sui"
	ChainTypeTron    ChainType = "tron"
)

// ChainInfo holds static per-chain facts used when no config override exists.
type ChainInfo struct {
	Type               ChainType
	Decimals           int32
	BlockTime          time.Duration
	TransactionTimeout time.Duration
}

var chainInfo = map[Chain]ChainInfo{
	ChainEthereum:   {ChainTypeEVM, 18, 12 * time.Second, 20 * time.Minute},
	ChainSmartChain: {ChainTypeEVM, 18, 3 * time.Second, 10 * time.Minute},
	ChainPolygon:    {ChainTypeEVM, 18, 2 * time.Second, 10 * time.Minute},
	ChainArbitrum:   {ChainTypeEVM, 18, 1 * time.Second, 10 * time.Minute},
	ChainBase:       {ChainTypeEVM, 18, 2 * time.Second, 10 * time.Minute},
	ChainCosmos:     {ChainTypeCosmos, 6, 6 * time.Second, 10 * time.Minute},
	ChainOsmosis:    {ChainTypeCosmos, 6, 6 * time.Second, 10 * time.Minute},
	ChainInjective:  {ChainTypeCosmos, 18, 1 * time.Second, 10 * time.Minute},
	ChainSolana:     {ChainTypeSolana, 9, 500 * time.Millisecond, 5 * time.Minute},
	ChainBitcoin:    {ChainTypeBitcoin, 8, 10 * time.Minute, 48 * time.Hour},
	ChainLitecoin:   {ChainTypeBitcoin, 8, 150 * time.Second, 12 * time.Hour},
	ChainSui:        {ChainTypeSui, 9, 500 * time.Millisecond, 5 * time.Minute},
	ChainTron:       {ChainTypeTron, 6, 3 * time.Second, 10 * time.Minute},
}

// Info returns the static facts for the chain. Unknown chains report ok=false.
func (c Chain) Info() (ChainInfo, bool) {
	info, ok := chainInfo[c]
	return info, ok
}

// Type returns the chain type, or an empty ChainType when unknown.
func (c Chain) Type() ChainType {
	return chainInfo[c].Type
}

func (c Chain) String() string {
	return string(c)
}

// Chains returns every chain with static info.
func Chains() []Chain {
	out := make([]Chain, 0, len(chainInfo))
	for c := range chainInfo {
		out = append(out, c)
	}
	return out
}
