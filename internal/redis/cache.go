package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default TTLs.
const (
	DefaultPayoutStatusTTL = 60 * time.Second
	WebhookEventTTL        = 24 * time.Hour
)

// Key prefixes
const (
	payoutStatusPrefix = "payout:"
	webhookEventPrefix = "webhook:processed:"
)

// CacheStore caches payout statuses and remembers processed webhook events.
type CacheStore struct {
	client    *redis.Client
	payoutTTL time.Duration
}

// NewCacheStore creates a new CacheStore. A zero payoutTTL uses the default.
func NewCacheStore(client *redis.Client, payoutTTL time.Duration) *CacheStore {
	if payoutTTL <= 0 {
		payoutTTL = DefaultPayoutStatusTTL
	}
	return &CacheStore{client: client, payoutTTL: payoutTTL}
}

// CachedPayoutStatus is the cached view of a payout status lookup.
type CachedPayoutStatus struct {
	OwnerID      string `json:"owner_id"`
	ExternalRef  string `json:"external_ref"`
	Status       string `json:"status"`
	NativeStatus string `json:"native_status"`
}

// GetPayoutStatus retrieves a payout status from cache. A miss returns nil.
func (s *CacheStore) GetPayoutStatus(ctx context.Context, externalRef string) (*CachedPayoutStatus, error) {
	data, err := s.client.Get(ctx, payoutStatusPrefix+externalRef).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var status CachedPayoutStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetPayoutStatus stores a payout status in cache.
func (s *CacheStore) SetPayoutStatus(ctx context.Context, status *CachedPayoutStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, payoutStatusPrefix+status.ExternalRef, data, s.payoutTTL).Err()
}

// InvalidatePayoutStatus removes a payout status from cache.
func (s *CacheStore) InvalidatePayoutStatus(ctx context.Context, externalRef string) error {
	return s.client.Del(ctx, payoutStatusPrefix+externalRef).Err()
}

// IsEventProcessed reports whether a webhook event was already handled.
func (s *CacheStore) IsEventProcessed(ctx context.Context, gateway, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, webhookEventPrefix+gateway+":"+eventID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkEventProcessed records a webhook event as handled.
func (s *CacheStore) MarkEventProcessed(ctx context.Context, gateway, eventID string) error {
	return s.client.Set(ctx, webhookEventPrefix+gateway+":"+eventID, "1", WebhookEventTTL).Err()
}
