package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc/provider"
)

// NewOperation creates an Operation with a custom Invoke function.
func NewOperation(name string, invoke func(ctx context.Context) (any, error)) Operation {
	return provider.Operation{
		Name:   name,
		Invoke: invoke,
	}
}

// NewHTTPOperation creates an Operation for JSON-RPC 2.0 calls.
func NewHTTPOperation(method string, params any) Operation {
	return provider.Operation{
		Name:   method,
		Params: params,
	}
}

// NewRESTOperation creates an Operation for REST API calls. For GET,
// pass url.Values (or nil) as body.
func NewRESTOperation(path string, method string, body any) Operation {
	return provider.Operation{
		Name:       path,
		Params:     body,
		IsREST:     true,
		RESTMethod: method,
	}
}

// NewJSONRPC10Operation creates an Operation for JSON-RPC 1.0 calls.
func NewJSONRPC10Operation(method string, params ...any) Operation {
	var p any = params
	if len(params) == 0 {
		p = nil
	}
	return provider.Operation{
		Name:           method,
		Params:         p, // 1.0 uses positional params
		JSONRPCVersion: "1.0",
	}
}

// NewGRPCOperation creates an Operation executed on a gRPC provider's
// connection.
func NewGRPCOperation(
	method string,
	handler func(ctx context.Context, conn grpc.ClientConnInterface) (any, error),
) Operation {
	return provider.Operation{
		Name:        method,
		GRPCHandler: handler,
	}
}
