package rpc

import (
	"context"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc/provider"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc/routing"
)

// Observer is notified after every operation. Metrics plug in here.
type Observer func(chainID, operation string, took time.Duration, err error)

// Client is the high-level interface for making RPC calls for one chain.
type Client struct {
	router   routing.Router
	chainID  string
	retry    routing.RetryConfig
	observer Observer
}

// NewClient creates a new RPC client.
func NewClient(chainID string, router routing.Router) *Client {
	return &Client{
		chainID: chainID,
		router:  router,
		retry:   routing.DefaultRetryConfig,
	}
}

// WithRetry overrides the retry configuration.
func (c *Client) WithRetry(cfg routing.RetryConfig) *Client {
	c.retry = cfg
	return c
}

// WithObserver registers a callback run after each operation.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// Execute runs the operation with retry and failover.
func (c *Client) Execute(ctx context.Context, op Operation) (any, error) {
	start := time.Now()
	result, err := routing.ExecuteWithFailover(ctx, c.router, c.chainID, op, c.retry)
	if c.observer != nil {
		c.observer(c.chainID, op.Name, time.Since(start), err)
	}
	return result, err
}

// Call makes a JSON-RPC 2.0 call.
func (c *Client) Call(ctx context.Context, method string, params []any) (any, error) {
	return c.Execute(ctx, NewHTTPOperation(method, params))
}

// ProviderStats returns monitoring stats per provider.
func (c *Client) ProviderStats() map[string]provider.HealthStatus {
	stats := make(map[string]provider.HealthStatus)
	for _, p := range c.router.GetAllProviders(c.chainID) {
		stats[p.GetName()] = p.GetHealth()
	}
	return stats
}

// Close closes every provider of the chain.
func (c *Client) Close() error {
	var firstErr error
	for _, p := range c.router.GetAllProviders(c.chainID) {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
