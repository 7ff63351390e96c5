// Package broadcast submits signed payloads through the chain adapter.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/metrics"
)

// DefaultDelay separates consecutive payloads of one intent.
const DefaultDelay = 500 * time.Millisecond

// Broadcasters resolves the broadcaster for a chain.
type Broadcasters interface {
	Broadcaster(c domain.Chain) (chain.Broadcaster, error)
}

// Coordinator sends payloads and normalizes failures into
// ErrServiceUnavailable or ErrBroadcast.
type Coordinator struct {
	adapters Broadcasters
	clock    clock.Clock
	delay    time.Duration
	log      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock, used for the inter-payload delay.
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(co *Coordinator) { co.delay = d }
}

func NewCoordinator(adapters Broadcasters, opts ...Option) *Coordinator {
	c := &Coordinator{
		adapters: adapters,
		clock:    clock.New(),
		delay:    DefaultDelay,
		log:      slog.Default().With("component", "broadcast"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Broadcast sends payloads in order, waiting the configured delay between
// them, and returns the hash of the last one. The first failure stops the
// sequence.
func (c *Coordinator) Broadcast(
	ctx context.Context,
	account domain.Account,
	payloads [][]byte,
	txType domain.TransactionType,
) (string, error) {
	if len(payloads) == 0 {
		return "", domain.BroadcastRejected(account.Chain, "nothing to broadcast")
	}
	broadcaster, err := c.adapters.Broadcaster(account.Chain)
	if err != nil {
		return "", domain.NewError(domain.ErrBroadcast, account.Chain, "broadcast", err)
	}

	var hash string
	for i, payload := range payloads {
		if i > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return "", domain.Unavailable(account.Chain, "broadcast", ctx.Err())
			case <-c.clock.After(c.delay):
			}
		}
		hash, err = broadcaster.Send(ctx, account, payload, txType)
		if err == nil && hash == "" {
			err = domain.BroadcastRejected(account.Chain, "empty transaction hash")
		}
		err = normalize(account.Chain, err)
		metrics.BroadcastsTotal.WithLabelValues(string(account.Chain), metrics.Result(err)).Inc()
		if err != nil {
			c.log.Warn("broadcast failed",
				"chain", account.Chain,
				"type", txType,
				"payload", i+1,
				"of", len(payloads),
				"error", err,
			)
			return "", err
		}
		c.log.Info("payload broadcast", "chain", account.Chain, "type", txType, "hash", hash, "payload", i+1)
	}
	return hash, nil
}

func normalize(chainID domain.Chain, err error) error {
	if err == nil {
		return nil
	}
	var lifecycleErr *domain.Error
	if errors.As(err, &lifecycleErr) {
		return err
	}
	if rpc.IsTransient(err) {
		return domain.Unavailable(chainID, "broadcast", err)
	}
	return domain.NewError(domain.ErrBroadcast, chainID, "broadcast", err)
}
