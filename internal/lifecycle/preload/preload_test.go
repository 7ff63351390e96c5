package preload

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

type signData struct {
	fees    domain.Fees
	rewards *big.Int
}

func (d *signData) Fee(priority domain.FeePriority) domain.Fee {
	f, _ := d.fees.For(priority)
	return f
}

func (d *signData) Fees() domain.Fees { return d.fees }

type rewardsData struct {
	signData
}

func (d *rewardsData) RewardsTotal() *big.Int { return d.rewards }

type stubPreloader struct {
	data  domain.ChainSignData
	err   error
	calls int
}

func (s *stubPreloader) Preload(ctx context.Context, owner domain.Account, params domain.ConfirmParams) (*domain.SignerParams, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.SignerParams{Input: params, Owner: owner.Address, Data: s.data}, nil
}

type registry map[domain.Chain]chain.Preloader

func (r registry) Preloader(c domain.Chain) (chain.Preloader, error) {
	p, ok := r[c]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for chain %q", c)
	}
	return p, nil
}

var (
	eth   = domain.NativeAsset(domain.ChainEthereum)
	usdc  = domain.AssetID{Chain: domain.ChainEthereum, TokenID: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
	owner = domain.Account{Chain: domain.ChainEthereum, Address: "0x9f1e6d5a7ab3a4b2e3f4c5d6e7f8091a2b3c4d5e"}
)

func gasFees() domain.Fees {
	return domain.Fees{
		domain.NewFee(domain.FeePrioritySlow, eth, big.NewInt(1_000)),
		domain.NewFee(domain.FeePriorityNormal, eth, big.NewInt(2_000)),
		domain.NewFee(domain.FeePriorityFast, eth, big.NewInt(3_000)),
	}
}

func transfer(asset domain.AssetID, amount int64, max bool) domain.TransferParams {
	return domain.TransferParams{
		Intent:      domain.Intent{AssetID: asset, From: owner, Amount: big.NewInt(amount)},
		Destination: "0x2a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d",
		Max:         max,
	}
}

func TestCoordinator_FinalAmount(t *testing.T) {
	tests := []struct {
		name     string
		params   domain.ConfirmParams
		priority domain.FeePriority
		want     int64
	}{
		{"plain transfer", transfer(eth, 10_000, false), domain.FeePriorityNormal, 10_000},
		{"max native transfer", transfer(eth, 10_000, true), domain.FeePriorityFast, 7_000},
		{"max token transfer", transfer(usdc, 10_000, true), domain.FeePriorityFast, 10_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoordinator(registry{domain.ChainEthereum: &stubPreloader{data: &signData{fees: gasFees()}}})

			sp, err := c.Preload(context.Background(), owner, tt.params, tt.priority)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sp.FinalAmount.Int64())
			assert.Equal(t, owner.Address, sp.Owner)
			assert.Equal(t, tt.params, sp.Input)
		})
	}
}

func TestCoordinator_RewardsUseAccruedTotal(t *testing.T) {
	data := &rewardsData{signData{fees: gasFees(), rewards: big.NewInt(1234)}}
	c := NewCoordinator(registry{domain.ChainEthereum: &stubPreloader{data: data}})
	params := domain.RewardsParams{
		Intent:       domain.Intent{AssetID: eth, From: owner, Amount: big.NewInt(0)},
		ValidatorIDs: []string{"v1"},
	}

	sp, err := c.Preload(context.Background(), owner, params, domain.FeePriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), sp.FinalAmount.Int64())
}

func TestCoordinator_MaxBelowFee(t *testing.T) {
	c := NewCoordinator(registry{domain.ChainEthereum: &stubPreloader{data: &signData{fees: gasFees()}}})

	_, err := c.Preload(context.Background(), owner, transfer(eth, 2_000, true), domain.FeePriorityNormal)
	assert.ErrorIs(t, err, domain.ErrInsufficientFee)
}

func TestCoordinator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		adapter *stubPreloader
		params  domain.ConfirmParams
		want    error
	}{
		{
			name:    "node answer",
			adapter: &stubPreloader{err: &rpc.RPCError{Code: -32000, Message: "header not found"}},
			params:  transfer(eth, 1, false),
			want:    domain.ErrPreload,
		},
		{
			name:    "transport outage",
			adapter: &stubPreloader{err: &rpc.HTTPError{StatusCode: 503, Body: "unavailable"}},
			params:  transfer(eth, 1, false),
			want:    domain.ErrServiceUnavailable,
		},
		{
			name:    "typed adapter error passes through",
			adapter: &stubPreloader{err: domain.PreloadErrorf(domain.ChainEthereum, "sender token account missing")},
			params:  transfer(eth, 1, false),
			want:    domain.ErrPreload,
		},
		{
			name:    "no fee",
			adapter: &stubPreloader{data: &signData{}},
			params:  transfer(eth, 1, false),
			want:    domain.ErrPreload,
		},
		{
			name:    "negative amount",
			adapter: &stubPreloader{data: &signData{fees: gasFees()}},
			params:  transfer(eth, -1, false),
			want:    domain.ErrPreload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoordinator(registry{domain.ChainEthereum: tt.adapter})
			_, err := c.Preload(context.Background(), owner, tt.params, domain.FeePriorityNormal)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCoordinator_UnknownChain(t *testing.T) {
	c := NewCoordinator(registry{})
	_, err := c.Preload(context.Background(), owner, transfer(eth, 1, false), domain.FeePriorityNormal)
	assert.True(t, errors.Is(err, domain.ErrPreload))
}

func TestCoordinator_SwapUsesFromAssetChain(t *testing.T) {
	solana := &stubPreloader{data: &signData{fees: domain.Fees{domain.NewFee(domain.FeePriorityNormal, domain.NativeAsset(domain.ChainSolana), big.NewInt(5000))}}}
	ethereum := &stubPreloader{data: &signData{fees: gasFees()}}
	c := NewCoordinator(registry{domain.ChainSolana: solana, domain.ChainEthereum: ethereum})

	swap := domain.SwapParams{
		Intent:    domain.Intent{AssetID: domain.NativeAsset(domain.ChainSolana), From: domain.Account{Chain: domain.ChainSolana, Address: "sender"}, Amount: big.NewInt(1)},
		ToAssetID: eth,
		ToAmount:  big.NewInt(1),
	}
	_, err := c.Preload(context.Background(), swap.From, swap, domain.FeePriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, 1, solana.calls)
	assert.Zero(t, ethereum.calls)
}

func TestCheckBalance(t *testing.T) {
	tests := []struct {
		name     string
		params   domain.ConfirmParams
		balances domain.Balances
		want     error
	}{
		{"covers amount and fee", transfer(eth, 10_000, false), domain.Balances{Asset: big.NewInt(12_000)}, nil},
		{"short on amount", transfer(eth, 10_000, false), domain.Balances{Asset: big.NewInt(9_000)}, domain.ErrInsufficientBalance},
		{"short on fee", transfer(eth, 10_000, false), domain.Balances{Asset: big.NewInt(11_000)}, domain.ErrInsufficientFee},
		{"token with fee balance", transfer(usdc, 10_000, false), domain.Balances{Asset: big.NewInt(10_000), Fee: big.NewInt(2_000)}, nil},
		{"token without fee balance", transfer(usdc, 10_000, false), domain.Balances{Asset: big.NewInt(10_000), Fee: big.NewInt(1_999)}, domain.ErrInsufficientFee},
		{
			"undelegate pays fee only",
			domain.UndelegateParams{Intent: domain.Intent{AssetID: eth, From: owner, Amount: big.NewInt(50_000)}},
			domain.Balances{Asset: big.NewInt(2_000)},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := &domain.SignerParams{Input: tt.params, Data: &signData{fees: gasFees()}, FinalAmount: tt.params.Value()}
			err := CheckBalance(sp, domain.FeePriorityNormal, tt.balances)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
