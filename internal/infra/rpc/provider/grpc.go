package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// GRPCProvider implements Provider for gRPC. Operations carry a
// GRPCHandler that receives the provider's connection.
type GRPCProvider struct {
	*BaseProvider
	endpoint    string
	conn        *grpc.ClientConn
	maxAttempts int
	baseDelay   time.Duration
}

// NewGRPCProvider creates a new gRPC provider. The connection is lazy;
// the first operation dials.
func NewGRPCProvider(name, endpoint string) (*GRPCProvider, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client %s: %w", target, err)
	}

	return &GRPCProvider{
		BaseProvider: NewBaseProvider(name),
		endpoint:     endpoint,
		conn:         conn,
		maxAttempts:  3,
		baseDelay:    100 * time.Millisecond,
	}, nil
}

// Execute runs the operation, retrying transient gRPC codes with a linear
// backoff (0, 100ms, 200ms).
func (p *GRPCProvider) Execute(ctx context.Context, op Operation) (any, error) {
	call := op.Invoke
	if op.GRPCHandler != nil {
		call = func(ctx context.Context) (any, error) { return op.GRPCHandler(ctx, p.conn) }
	}
	if call == nil {
		return nil, fmt.Errorf("grpc operation %s has no handler", op.Name)
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * p.baseDelay):
			}
		}

		start := time.Now()
		result, err := call(ctx)
		if err == nil {
			p.recordSuccess(time.Since(start))
			return result, nil
		}
		lastErr = err

		if !retryableCode(status.Code(err)) {
			// the server answered with a definite status
			p.recordSuccess(time.Since(start))
			return nil, err
		}
		p.recordFailure()
		if status.Code(err) == codes.ResourceExhausted {
			p.Monitor.RecordThrottle(429, "")
		}
	}
	return nil, fmt.Errorf("%s failed after %d attempts: %w", op.Name, p.maxAttempts, lastErr)
}

func retryableCode(c codes.Code) bool {
	switch c {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

// Conn returns the underlying gRPC connection.
func (p *GRPCProvider) Conn() *grpc.ClientConn {
	return p.conn
}

// Close cleans up resources.
func (p *GRPCProvider) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
