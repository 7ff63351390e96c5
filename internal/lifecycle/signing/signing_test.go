package signing

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
)

type signData struct{}

func (signData) Fee(p domain.FeePriority) domain.Fee {
	return domain.NewFee(p, domain.NativeAsset(domain.ChainTron), big.NewInt(100))
}

func (d signData) Fees() domain.Fees {
	return domain.Fees{d.Fee(domain.FeePriorityNormal)}
}

// hashSigner returns sha256(key || amount) and rejects anything but transfers.
type hashSigner struct {
	out [][]byte
	err error
}

func (s *hashSigner) Sign(in chain.SignInput) ([][]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.out != nil {
		return s.out, nil
	}
	if _, ok := in.Params.(domain.TransferParams); !ok {
		return nil, domain.Unsupported(domain.ErrSignFail, domain.ChainTron, in.Params)
	}
	sum := sha256.Sum256(append(append([]byte{}, in.PrivateKey...), in.FinalAmount.Bytes()...))
	return [][]byte{sum[:]}, nil
}

type registry map[domain.Chain]chain.Signer

func (r registry) Signer(c domain.Chain) (chain.Signer, error) {
	s, ok := r[c]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for chain %q", c)
	}
	return s, nil
}

var key = bytes.Repeat([]byte{1}, 32)

func params(p domain.ConfirmParams) *domain.SignerParams {
	return &domain.SignerParams{Input: p, Data: signData{}, FinalAmount: p.Value()}
}

func transfer() domain.TransferParams {
	return domain.TransferParams{
		Intent: domain.Intent{
			AssetID: domain.NativeAsset(domain.ChainTron),
			From:    domain.Account{Chain: domain.ChainTron, Address: "TSender"},
			Amount:  big.NewInt(10_000),
		},
		Destination: "TRecipient",
	}
}

func TestEngine_SignIsDeterministic(t *testing.T) {
	e := NewEngine(registry{domain.ChainTron: &hashSigner{}})
	sp := params(transfer())

	first, err := e.Sign(sp, domain.FeePriorityNormal, key)
	require.NoError(t, err)
	second, err := e.Sign(sp, domain.FeePriorityNormal, key)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEngine_Failures(t *testing.T) {
	withdraw := domain.WithdrawParams{Intent: domain.Intent{
		AssetID: domain.NativeAsset(domain.ChainTron),
		From:    domain.Account{Chain: domain.ChainTron, Address: "TSender"},
		Amount:  big.NewInt(1),
	}}
	tests := []struct {
		name   string
		signer *hashSigner
		sp     *domain.SignerParams
		key    []byte
	}{
		{"wrong variant", &hashSigner{}, params(withdraw), key},
		{"missing sign data", &hashSigner{}, &domain.SignerParams{Input: transfer()}, key},
		{"nil params", &hashSigner{}, nil, key},
		{"empty key", &hashSigner{}, params(transfer()), nil},
		{"adapter error", &hashSigner{err: errors.New("bad curve point")}, params(transfer()), key},
		{"preload kind is reclassified", &hashSigner{err: domain.PreloadErrorf(domain.ChainTron, "stale")}, params(transfer()), key},
		{"empty output", &hashSigner{out: [][]byte{}}, params(transfer()), key},
		{"empty payload", &hashSigner{out: [][]byte{{}}}, params(transfer()), key},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(registry{domain.ChainTron: tt.signer})
			_, err := e.Sign(tt.sp, domain.FeePriorityNormal, tt.key)
			assert.ErrorIs(t, err, domain.ErrSignFail)
		})
	}
}

func TestEngine_UnknownChain(t *testing.T) {
	e := NewEngine(registry{})
	_, err := e.Sign(params(transfer()), domain.FeePriorityNormal, key)
	assert.ErrorIs(t, err, domain.ErrSignFail)
}
