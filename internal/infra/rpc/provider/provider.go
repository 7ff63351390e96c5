// Package provider implements the transports adapters talk to nodes through.
//
// This package contains:
//   - Provider interface: core abstraction for an RPC endpoint
//   - HTTPProvider: JSON-RPC 1.0/2.0 and REST over HTTP
//   - GRPCProvider: gRPC with per-operation handlers
//   - ProviderMonitor: throttle and latency tracking
package provider

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// Operation represents an RPC operation to execute.
// It abstracts the transport so routing and retry stay uniform.
type Operation struct {
	// Name identifies the operation: a JSON-RPC method, a REST path
	// (e.g. "api/v2/utxo/bc1q...") or a gRPC full method name.
	Name string

	// Params for HTTP calls. For JSON-RPC this should be []any (or a
	// by-name object); for REST it is the JSON body.
	Params any

	// IsREST indicates a REST call instead of JSON-RPC.
	IsREST bool

	// RESTMethod specifies the HTTP method for REST calls (e.g., "GET", "POST").
	RESTMethod string

	// JSONRPCVersion specifies the JSON-RPC version ("1.0" or "2.0").
	// If empty, defaults to "2.0".
	JSONRPCVersion string

	// Invoke, when set, replaces the transport call entirely.
	Invoke func(ctx context.Context) (any, error)

	// GRPCHandler executes the operation on the provider's connection.
	GRPCHandler func(ctx context.Context, conn grpc.ClientConnInterface) (any, error)
}

// Provider defines the core interface for any RPC provider (HTTP or gRPC).
type Provider interface {
	// GetName returns provider identifier (e.g., "publicnode", "blockbook")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// IsAvailable checks if the provider is healthy enough to use
	IsAvailable() bool

	// Execute performs the operation with monitoring and error handling
	Execute(ctx context.Context, op Operation) (any, error)

	// Close cleans up resources
	Close() error
}

// RPCProvider extends Provider with direct JSON-RPC calls.
type RPCProvider interface {
	Provider

	// Call makes a single JSON-RPC 2.0 request
	Call(ctx context.Context, method string, params []any) (any, error)

	// BatchCall makes multiple RPC calls in one request
	BatchCall(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error)
}

// BatchRequest represents a single request in a batch call.
type BatchRequest struct {
	Method string
	Params []any
}

// BatchResponse represents a single response from a batch call.
type BatchResponse struct {
	Result any
	Error  error
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool
	Latency       time.Duration
	ErrorRate     float64
	LastSuccessAt time.Time
	LastFailureAt time.Time
	MonitorStats  *MonitorStats `json:"monitor_stats,omitempty"`
}
