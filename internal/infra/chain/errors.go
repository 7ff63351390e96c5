package chain

import (
	"errors"
	"fmt"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

// RPCError wraps a failed node call. Transport failures become
// ErrServiceUnavailable so callers can tell an outage from an answer.
func RPCError(chain domain.Chain, op string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s failed: %w", op, err)
	if rpc.IsTransient(err) {
		return domain.Unavailable(chain, op, wrapped)
	}
	return wrapped
}

// PreloadError wraps a failed preload sub-query.
func PreloadError(chain domain.Chain, op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewError(domain.ErrPreload, chain, op, RPCError(chain, op, err))
}

// BroadcastError maps a failed submission: outages stay retryable, node
// answers become ErrBroadcast carrying the node's message.
func BroadcastError(chain domain.Chain, op string, err error) error {
	if err == nil {
		return nil
	}
	if rpc.IsTransient(err) {
		return domain.Unavailable(chain, op, fmt.Errorf("%s failed: %w", op, err))
	}
	return &domain.Error{Kind: domain.ErrBroadcast, Chain: chain, Op: op, Msg: nodeMessage(err), Err: err}
}

func nodeMessage(err error) string {
	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Message
	}
	var httpErr *rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Body
	}
	return err.Error()
}
