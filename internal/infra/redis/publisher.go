package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/lifecycle/feed"
)

// Publisher forwards change batches to a Redis pub/sub channel so other
// services can observe them.
type Publisher struct {
	client  *Client
	channel string
}

func NewPublisher(client *Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Publish sends one JSON message per transaction.
func (p *Publisher) Publish(ctx context.Context, txs []domain.Transaction) error {
	for i := range txs {
		msg, err := json.Marshal(&txs[i])
		if err != nil {
			return fmt.Errorf("encode %s: %w", txs[i].ID, err)
		}
		if err := p.client.rdb.Publish(ctx, p.channel, msg).Err(); err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
	}
	return nil
}

// Run forwards the subscription until ctx ends or the feed closes.
func (p *Publisher) Run(ctx context.Context, sub *feed.Subscription) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-sub.C():
			if !ok {
				return
			}
			if err := p.Publish(ctx, batch); err != nil {
				slog.Warn("Failed to publish transaction changes", "count", len(batch), "error", err)
			}
		}
	}
}
