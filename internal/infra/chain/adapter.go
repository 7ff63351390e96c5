package chain

import (
	"context"
	"math/big"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

// Preloader gathers the on-chain context needed to sign an intent.
type Preloader interface {
	// Preload returns SignerParams with Input, Owner and Data set. The
	// coordinator fills FinalAmount. Unresolvable state is ErrPreload.
	Preload(ctx context.Context, owner domain.Account, params domain.ConfirmParams) (*domain.SignerParams, error)
}

// Signer turns an intent and its context into wire-ready payloads.
// Implementations are pure: identical inputs give identical bytes, and the
// key is not retained after return.
type Signer interface {
	Sign(input SignInput) ([][]byte, error)
}

// SignInput bundles what a Signer consumes.
type SignInput struct {
	Params      domain.ConfirmParams
	Data        domain.ChainSignData
	FinalAmount *big.Int
	Priority    domain.FeePriority
	PrivateKey  []byte
}

// Broadcaster submits one signed payload.
type Broadcaster interface {
	// Send returns the transaction hash. Node rejections are ErrBroadcast,
	// transport outages ErrServiceUnavailable.
	Send(ctx context.Context, account domain.Account, signed []byte, txType domain.TransactionType) (string, error)
}

// StatusChecker reports what the chain knows about a submitted transaction.
type StatusChecker interface {
	// Status returns Pending when the tx is not yet included and
	// ErrServiceUnavailable when the node could not be reached.
	Status(ctx context.Context, req domain.StatusRequest) (domain.TransactionChanges, error)
}

// Adapter is a chain implementation of every lifecycle capability.
type Adapter interface {
	Preloader
	Signer
	Broadcaster
	StatusChecker

	// Chain returns the chain served by this adapter.
	Chain() domain.Chain
}

// MessageSigner is implemented by adapters that sign arbitrary messages.
type MessageSigner interface {
	SignMessage(message []byte, privateKey []byte) ([]byte, error)
}
