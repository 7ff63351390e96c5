package provider

import "fmt"

// HTTPError is a non-2xx response from an HTTP endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// NotFound reports whether the endpoint answered 404.
func (e *HTTPError) NotFound() bool {
	return e.StatusCode == 404
}

// RPCError is an error object returned by a JSON-RPC node. The node did
// answer, so the request reached the chain.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
