package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// HTTPProvider implements Provider for JSON-RPC and REST over HTTP.
type HTTPProvider struct {
	*BaseProvider
	endpoint   string
	httpClient *http.Client
	headers    map[string]string
	nextID     atomic.Int64
}

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		BaseProvider: NewBaseProvider(name),
		endpoint:     strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		headers: map[string]string{},
	}
}

// SetHeader adds a header sent with every request (API keys).
func (p *HTTPProvider) SetHeader(key, value string) {
	p.headers[key] = value
}

// Execute dispatches the operation to REST, JSON-RPC 1.0 or JSON-RPC 2.0.
func (p *HTTPProvider) Execute(ctx context.Context, op Operation) (any, error) {
	if op.Invoke != nil {
		return p.track(func() (any, error) { return op.Invoke(ctx) })
	}
	if op.IsREST {
		return p.rest(ctx, op)
	}

	version := op.JSONRPCVersion
	if version == "" {
		version = "2.0"
	}
	reqBody := map[string]any{
		"method": op.Name,
		"params": op.Params,
		"id":     p.nextID.Add(1),
	}
	if version != "1.0" {
		reqBody["jsonrpc"] = version
		if op.Params == nil {
			reqBody["params"] = []any{}
		}
	}
	return p.jsonRPC(ctx, reqBody)
}

// Call makes a single JSON-RPC 2.0 call.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (any, error) {
	return p.Execute(ctx, Operation{Name: method, Params: params})
}

func (p *HTTPProvider) jsonRPC(ctx context.Context, reqBody map[string]any) (any, error) {
	if status := p.Monitor.CheckProviderStatus(); status == StatusThrottled {
		return nil, fmt.Errorf("provider throttled, retry after: %v", p.Monitor.GetRetryAfter())
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	body, err := p.do(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		p.recordFailure()
		return nil, err
	}

	var rpcResp struct {
		Result any             `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := decodeJSON(body, &rpcResp); err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if rpcErr := parseRPCError(rpcResp.Error); rpcErr != nil {
		if p.Monitor.DetectThrottlePattern(rpcErr.Message) {
			p.recordFailure()
			return nil, fmt.Errorf("throttle in rpc error: %s", rpcErr.Message)
		}
		// the node answered; count the round trip as healthy
		p.recordSuccess(time.Since(start))
		return nil, rpcErr
	}

	p.recordSuccess(time.Since(start))
	return rpcResp.Result, nil
}

func (p *HTTPProvider) rest(ctx context.Context, op Operation) (any, error) {
	method := op.RESTMethod
	if method == "" {
		method = http.MethodGet
	}
	target := p.endpoint + "/" + strings.TrimLeft(op.Name, "/")

	var reader io.Reader
	switch params := op.Params.(type) {
	case nil:
	case url.Values:
		target += "?" + params.Encode()
	default:
		jsonData, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	start := time.Now()
	body, err := p.do(ctx, method, target, reader)
	if err != nil {
		p.recordFailure()
		return nil, err
	}
	p.recordSuccess(time.Since(start))

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var result any
	if err := decodeJSON(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return result, nil
}

// BatchCall makes multiple JSON-RPC 2.0 calls in one request.
func (p *HTTPProvider) BatchCall(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error) {
	batchReq := make([]map[string]any, len(requests))
	for i, req := range requests {
		batchReq[i] = map[string]any{
			"jsonrpc": "2.0",
			"method":  req.Method,
			"params":  req.Params,
			"id":      i + 1,
		}
	}

	jsonData, err := json.Marshal(batchReq)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	start := time.Now()
	body, err := p.do(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		p.recordFailure()
		return nil, err
	}

	var batchResp []struct {
		ID     int             `json:"id"`
		Result any             `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := decodeJSON(body, &batchResp); err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("parse batch response: %w", err)
	}

	// nodes may answer out of order; ids are 1-based positions
	responses := make([]BatchResponse, len(requests))
	for i, r := range batchResp {
		idx := r.ID - 1
		if idx < 0 || idx >= len(responses) {
			idx = i
		}
		if rpcErr := parseRPCError(r.Error); rpcErr != nil {
			responses[idx] = BatchResponse{Error: rpcErr}
			continue
		}
		responses[idx] = BatchResponse{Result: r.Result}
	}

	p.recordSuccess(time.Since(start))
	return responses, nil
}

func (p *HTTPProvider) do(ctx context.Context, method, target string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		p.Monitor.RecordThrottle(429, retryAfter)
		return nil, fmt.Errorf("rate limited (429), retry after: %s", retryAfter)
	}

	// IP blocked detection
	if resp.StatusCode == http.StatusForbidden {
		p.Monitor.RecordThrottle(403, "")
		return nil, fmt.Errorf("ip blocked (403)")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if p.Monitor.DetectThrottlePattern(string(data)) {
			return nil, fmt.Errorf("throttle detected in response: %s", string(data))
		}
		return data, &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func (p *HTTPProvider) track(fn func() (any, error)) (any, error) {
	start := time.Now()
	result, err := fn()
	if err != nil {
		p.recordFailure()
		return nil, err
	}
	p.recordSuccess(time.Since(start))
	return result, nil
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func parseRPCError(raw json.RawMessage) *RPCError {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var obj struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    any    `json:"data"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		// some 1.0 nodes return a bare string
		var msg string
		_ = json.Unmarshal(raw, &msg)
		if msg == "" {
			msg = string(raw)
		}
		return &RPCError{Message: msg}
	}
	return &RPCError{Code: obj.Code, Message: obj.Message, Data: obj.Data}
}
