// Package rpc provides the resilient node client chain adapters use.
//
// A Client owns the providers of one chain and runs every Operation with
// retry on transport errors and failover across providers:
//
//	router := rpc.NewRouter()
//	router.AddProvider("ethereum", rpc.NewHTTPProvider("publicnode", url, 30*time.Second))
//	client := rpc.NewClient("ethereum", router)
//
//	result, err := client.Execute(ctx, rpc.NewHTTPOperation("eth_blockNumber", nil))
//
// Sub-packages:
//
//   - provider/ - transports (HTTP JSON-RPC/REST, gRPC) and monitoring
//   - routing/  - provider ordering, circuit breaker, retry and failover
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc/provider"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc/routing"
)

// RPCClient is what adapters depend on.
type RPCClient interface {
	Execute(ctx context.Context, op Operation) (any, error)
}

// Provider is the core interface for RPC endpoints.
type Provider = provider.Provider

// HTTPProvider implements Provider for JSON-RPC and REST over HTTP.
type HTTPProvider = provider.HTTPProvider

// GRPCProvider implements Provider for gRPC.
type GRPCProvider = provider.GRPCProvider

// Operation represents an RPC operation to execute (transport-agnostic).
type Operation = provider.Operation

// HTTPError is a non-2xx HTTP answer.
type HTTPError = provider.HTTPError

// RPCError is a JSON-RPC error object.
type RPCError = provider.RPCError

// Router handles provider selection and health tracking.
type Router = routing.Router

// RetryConfig defines retry behavior.
type RetryConfig = routing.RetryConfig

// DefaultRetryConfig provides wallet-friendly retry defaults.
var DefaultRetryConfig = routing.DefaultRetryConfig

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return provider.NewHTTPProvider(name, endpoint, timeout)
}

// NewGRPCProvider creates a new gRPC provider.
func NewGRPCProvider(name, endpoint string) (*GRPCProvider, error) {
	return provider.NewGRPCProvider(name, endpoint)
}

// NewRouter creates a router with circuit breaking.
func NewRouter() *routing.DefaultRouter {
	return routing.NewRouter()
}

// IsTransient reports whether err is a transport failure rather than an
// answer from the node.
func IsTransient(err error) bool {
	return routing.IsTransient(err)
}

// Decode converts a generic result into out via its JSON form.
func Decode(result any, out any) error {
	if result == nil {
		return fmt.Errorf("empty result")
	}
	var raw []byte
	switch v := result.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("re-encode result: %w", err)
		}
		raw = b
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// ErrorClass names how the retry layer treats err: retry, failover or fatal.
func ErrorClass(err error) string {
	return routing.ClassifyError(err).String()
}
