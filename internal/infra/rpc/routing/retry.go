package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig keeps wallet calls short; the tracker has its own
// polling loop on top.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    250 * time.Millisecond,
	MaxDelay:        2 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	}
	return "fatal"
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, context.Canceled) {
		return ActionFatal
	}

	// A node-level answer is deterministic: asking again or elsewhere
	// returns the same thing.
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		return ActionFatal
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return ActionRetry
		case codes.ResourceExhausted:
			return ActionFailover
		}
		return ActionFatal
	}
	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode >= 500:
			return ActionFailover
		case httpErr.StatusCode >= 400:
			return ActionFatal
		}
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return ActionFatal
	}

	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "quota") || strings.Contains(sLower, "plan limit") ||
		strings.Contains(sLower, "unauthorized") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "throttle") ||
		strings.Contains(sLower, "count exceeded") {
		return ActionFailover
	}

	// network errors, timeouts, resets
	return ActionRetry
}

// IsTransient reports whether err is a transport-level failure rather
// than an answer from the node.
func IsTransient(err error) bool {
	return err != nil && ClassifyError(err) != ActionFatal
}

// ExecuteWithRetry runs op on one provider with exponential backoff.
func ExecuteWithRetry(
	ctx context.Context,
	p provider.Provider,
	op provider.Operation,
	config RetryConfig,
) (any, error) {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := p.Execute(ctx, op)
		if err == nil {
			return result, nil
		}
		lastErr = err

		switch ClassifyError(err) {
		case ActionFatal:
			return nil, err
		case ActionFailover:
			// let the caller move to the next provider
			return nil, err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(calculateBackoff(attempt, config)):
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// ExecuteWithFailover tries every provider of the chain in router order.
func ExecuteWithFailover(
	ctx context.Context,
	router Router,
	chainID string,
	op provider.Operation,
	config RetryConfig,
) (any, error) {
	providers := router.GetAllProviders(chainID)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers for chain %s", chainID)
	}

	var lastErr error
	for _, p := range providers {
		start := time.Now()
		result, err := ExecuteWithRetry(ctx, p, op, config)
		if err == nil {
			router.RecordSuccess(p.GetName(), time.Since(start))
			return result, nil
		}

		lastErr = err
		if ClassifyError(err) == ActionFatal {
			return nil, err
		}
		router.RecordFailure(p.GetName(), err)
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
