package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"listing_governance/internal/domain"
)

// Publisher mirrors action directives onto a Redis channel for workflow
// systems that subscribe to governance output.
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(addr, password string, db int, channel string) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewPublisherWithClient(client, channel), nil
}

func NewPublisherWithClient(client *redis.Client, channel string) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
	}
}

func (p *Publisher) Publish(ctx context.Context, directive domain.Directive) error {
	msg, err := json.Marshal(directive)
	if err != nil {
		return fmt.Errorf("failed to marshal directive: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish directive: %w", err)
	}

	return nil
}

// Subscribe returns a subscription to the directive channel.
func (p *Publisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, p.channel)
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
