// Package pipeline runs an intent through preload, sign, broadcast and
// tracking. It is the entry point callers use.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/preload"
)

type Preloader interface {
	Preload(ctx context.Context, owner domain.Account, params domain.ConfirmParams, priority domain.FeePriority) (*domain.SignerParams, error)
}

type Signer interface {
	Sign(sp *domain.SignerParams, priority domain.FeePriority, privateKey []byte) ([][]byte, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, account domain.Account, payloads [][]byte, txType domain.TransactionType) (string, error)
}

type Tracker interface {
	Track(tx *domain.Transaction) bool
	UntrackAll()
}

type Publisher interface {
	Publish(txs ...domain.Transaction)
}

type MessageSigners interface {
	MessageSigner(c domain.Chain) (chain.MessageSigner, error)
}

// Deps are the components an Engine drives.
type Deps struct {
	Preloader      Preloader
	Signer         Signer
	Broadcaster    Broadcaster
	Repo           storage.TransactionRepository
	Tracker        Tracker
	Feed           Publisher
	MessageSigners MessageSigners
	Clock          clock.Clock
}

// Engine is the transaction lifecycle facade.
type Engine struct {
	Deps
	log *slog.Logger
}

func New(deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &Engine{Deps: deps, log: slog.Default().With("component", "pipeline")}
}

// ConfirmRequest is one user-approved intent.
type ConfirmRequest struct {
	WalletID   string
	Owner      domain.Account
	Params     domain.ConfirmParams
	Priority   domain.FeePriority
	PrivateKey []byte
	// Balances enables the pre-flight balance check when set.
	Balances *domain.Balances
}

// Preload resolves signing context for an intent.
func (e *Engine) Preload(ctx context.Context, owner domain.Account, params domain.ConfirmParams, priority domain.FeePriority) (*domain.SignerParams, error) {
	return e.Preloader.Preload(ctx, owner, params, priority)
}

// Sign produces the wire payloads for preloaded params.
func (e *Engine) Sign(sp *domain.SignerParams, priority domain.FeePriority, privateKey []byte) ([][]byte, error) {
	return e.Signer.Sign(sp, priority, privateKey)
}

// Send broadcasts payloads and records the pending transaction. When
// broadcast succeeded but storing failed, the returned transaction is
// still non-nil so the caller learns the hash.
func (e *Engine) Send(ctx context.Context, walletID string, sp *domain.SignerParams, priority domain.FeePriority, payloads [][]byte) (*domain.Transaction, error) {
	sender := sp.Input.Sender()
	hash, err := e.Broadcaster.Broadcast(ctx, sender, payloads, sp.Input.TransactionType())
	if err != nil {
		return nil, err
	}

	tx, err := domain.NewPending(walletID, hash, sp, sp.Fee(priority), e.Clock.Now())
	if err != nil {
		return nil, err
	}
	log := e.log.With("tx", tx.ID, "chain", tx.Chain(), "type", tx.Type)

	if err := e.Repo.Upsert(ctx, tx); err != nil {
		log.Error("Failed to store pending transaction", "error", err)
		return tx, fmt.Errorf("store pending %s: %w", tx.ID, err)
	}
	if swap, ok := sp.Input.(domain.SwapParams); ok {
		if err := e.Repo.PutSwapMetadata(ctx, tx.ID, domain.NewSwapMetadata(swap)); err != nil {
			log.Warn("Failed to store swap metadata", "error", err)
		}
	}

	if e.Feed != nil {
		e.Feed.Publish(*tx)
	}
	if e.Tracker != nil {
		e.Tracker.Track(tx)
	}
	log.Info("Transaction submitted", "hash", hash)
	return tx, nil
}

// Confirm runs the whole flow for one intent.
func (e *Engine) Confirm(ctx context.Context, req ConfirmRequest) (*domain.Transaction, error) {
	priority := req.Priority
	if priority == "" {
		priority = domain.FeePriorityNormal
	}
	sp, err := e.Preload(ctx, req.Owner, req.Params, priority)
	if err != nil {
		return nil, err
	}
	if req.Balances != nil {
		if err := preload.CheckBalance(sp, priority, *req.Balances); err != nil {
			return nil, err
		}
	}
	payloads, err := e.Sign(sp, priority, req.PrivateKey)
	if err != nil {
		return nil, err
	}
	return e.Send(ctx, req.WalletID, sp, priority, payloads)
}

// SignMessage signs an arbitrary message with the chain's scheme.
func (e *Engine) SignMessage(c domain.Chain, message, privateKey []byte) ([]byte, error) {
	if e.MessageSigners == nil {
		return nil, domain.SignFailf(c, "message signing not configured")
	}
	signer, err := e.MessageSigners.MessageSigner(c)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, c, "sign message", err)
	}
	sig, err := signer.SignMessage(message, privateKey)
	if err != nil {
		var lifecycleErr *domain.Error
		if errors.As(err, &lifecycleErr) {
			return nil, err
		}
		return nil, domain.NewError(domain.ErrSignFail, c, "sign message", err)
	}
	return sig, nil
}

// Transaction returns a stored transaction by id.
func (e *Engine) Transaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return e.Repo.Get(ctx, id)
}

// Pending lists every pending transaction, oldest first.
func (e *Engine) Pending(ctx context.Context) ([]*domain.Transaction, error) {
	return e.Repo.ListPending(ctx)
}

// PendingCount returns the number of pending transactions.
func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	return e.Repo.CountPending(ctx)
}

// LastUpdated returns the newest update time of a wallet's transactions.
func (e *Engine) LastUpdated(ctx context.Context, walletID string) (time.Time, error) {
	return e.Repo.LastUpdated(ctx, walletID)
}

// SwapMetadata returns the swap legs recorded for a transaction.
func (e *Engine) SwapMetadata(ctx context.Context, id string) (*domain.SwapMetadata, error) {
	return e.Repo.GetSwapMetadata(ctx, id)
}

// PutTransactions stores rows from an external sync, announces them and
// starts tracking the pending ones.
func (e *Engine) PutTransactions(ctx context.Context, walletID string, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	if err := e.Repo.PutTransactions(ctx, walletID, txs); err != nil {
		return err
	}
	batch := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		stored := tx.Clone()
		stored.WalletID = walletID
		batch = append(batch, *stored)
		if e.Tracker != nil && stored.State == domain.TxStatePending {
			e.Tracker.Track(stored)
		}
	}
	if e.Feed != nil {
		e.Feed.Publish(batch...)
	}
	return nil
}

// ClearPending stops every job and deletes all pending transactions. Jobs
// started by a rescan in between stop on their next poll, when the row is
// gone.
func (e *Engine) ClearPending(ctx context.Context) (int, error) {
	if e.Tracker != nil {
		e.Tracker.UntrackAll()
	}
	n, err := e.Repo.ClearPending(ctx)
	if err != nil {
		return 0, err
	}
	if e.Tracker != nil {
		e.Tracker.UntrackAll()
	}
	e.log.Info("Cleared pending transactions", "count", n)
	return n, nil
}
