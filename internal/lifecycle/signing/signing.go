// Package signing turns preloaded intents into wire-ready payloads.
package signing

import (
	"errors"
	"log/slog"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/metrics"
)

// Signers resolves the signer for a chain.
type Signers interface {
	Signer(c domain.Chain) (chain.Signer, error)
}

// Engine dispatches signing to the operating chain's adapter. Failures are
// always SignFail and must not be retried.
type Engine struct {
	adapters Signers
	log      *slog.Logger
}

func NewEngine(adapters Signers) *Engine {
	return &Engine{adapters: adapters, log: slog.Default().With("component", "signing")}
}

// Sign returns one payload per transaction to broadcast, in order.
func (e *Engine) Sign(sp *domain.SignerParams, priority domain.FeePriority, privateKey []byte) ([][]byte, error) {
	if sp == nil || sp.Input == nil || sp.Data == nil {
		return nil, domain.SignFailf("", "incomplete signer params")
	}
	chainID := domain.OperatingChain(sp.Input)

	payloads, err := e.sign(chainID, sp, priority, privateKey)
	metrics.SignsTotal.WithLabelValues(string(chainID), metrics.Result(err)).Inc()
	if err != nil {
		e.log.Warn("sign failed", "chain", chainID, "kind", sp.Input.Kind(), "error", err)
		return nil, err
	}
	return payloads, nil
}

func (e *Engine) sign(
	chainID domain.Chain,
	sp *domain.SignerParams,
	priority domain.FeePriority,
	privateKey []byte,
) ([][]byte, error) {
	if len(privateKey) == 0 {
		return nil, domain.SignFailf(chainID, "empty private key")
	}
	if sp.FinalAmount == nil || sp.FinalAmount.Sign() < 0 {
		return nil, domain.SignFailf(chainID, "invalid final amount")
	}
	signer, err := e.adapters.Signer(chainID)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, chainID, "sign", err)
	}

	payloads, err := signer.Sign(chain.SignInput{
		Params:      sp.Input,
		Data:        sp.Data,
		FinalAmount: sp.FinalAmount,
		Priority:    priority,
		PrivateKey:  privateKey,
	})
	if err != nil {
		var lifecycleErr *domain.Error
		if errors.As(err, &lifecycleErr) && !errors.Is(err, domain.ErrSignFail) {
			return nil, &domain.Error{Kind: domain.ErrSignFail, Chain: chainID, Op: "sign", Err: err}
		}
		return nil, domain.NewError(domain.ErrSignFail, chainID, "sign", err)
	}
	if len(payloads) == 0 {
		return nil, domain.SignFailf(chainID, "adapter produced no payload")
	}
	for i, p := range payloads {
		if len(p) == 0 {
			return nil, domain.SignFailf(chainID, "payload %d is empty", i)
		}
	}
	return payloads, nil
}
