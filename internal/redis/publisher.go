package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher publishes messages on per-user channels.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PaymentChannel returns the channel a user's payment events go to.
func PaymentChannel(userID string) string {
	return "user:" + userID + ":payments"
}

// PublishPaymentEvent publishes payload on the user's payment channel.
func (p *Publisher) PublishPaymentEvent(ctx context.Context, userID string, payload []byte) error {
	return p.client.Publish(ctx, PaymentChannel(userID), payload).Err()
}
