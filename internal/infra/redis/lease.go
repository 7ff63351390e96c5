package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Owner-checked refresh and release, so an instance never extends or
// drops a lease another instance took over after expiry.
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Leaser grants exclusive polling rights on a transaction to one engine
// instance at a time.
type Leaser struct {
	client *Client
	owner  string
	ttl    time.Duration
}

// NewLeaser creates a leaser with a random instance token.
func NewLeaser(client *Client, ttl time.Duration) *Leaser {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Leaser{client: client, owner: uuid.NewString(), ttl: ttl}
}

// Owner returns this instance's token.
func (l *Leaser) Owner() string {
	return l.owner
}

// Acquire takes the lease if nobody holds it. Re-acquiring an own lease
// succeeds and extends it.
func (l *Leaser) Acquire(ctx context.Context, txID string) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, leaseKey(txID), l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	if ok {
		return true, nil
	}
	return l.refresh(ctx, txID)
}

// Refresh extends a held lease. It returns an error when the lease was lost.
func (l *Leaser) Refresh(ctx context.Context, txID string) error {
	ok, err := l.refresh(ctx, txID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("lease on %s lost", txID)
	}
	return nil
}

func (l *Leaser) refresh(ctx context.Context, txID string) (bool, error) {
	n, err := refreshScript.Run(ctx, l.client.rdb, []string{leaseKey(txID)}, l.owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("refresh lease failed: %w", err)
	}
	return n == 1, nil
}

// Release drops the lease if this instance holds it.
func (l *Leaser) Release(ctx context.Context, txID string) error {
	if err := releaseScript.Run(ctx, l.client.rdb, []string{leaseKey(txID)}, l.owner).Err(); err != nil {
		return fmt.Errorf("release lease failed: %w", err)
	}
	return nil
}
