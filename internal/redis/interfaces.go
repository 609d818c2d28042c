package redis

import (
	"context"
	"time"
)

// PendingMarkerStoreInterface defines the pending marker operations.
type PendingMarkerStoreInterface interface {
	Put(ctx context.Context, paymentID string, ttl time.Duration) error
	Exists(ctx context.Context, paymentID string) (bool, error)
	Delete(ctx context.Context, paymentID string) error
	Defer(ctx context.Context, paymentID string, until time.Time) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// PayoutStatusCacheInterface defines the payout status cache operations.
type PayoutStatusCacheInterface interface {
	GetPayoutStatus(ctx context.Context, externalRef string) (*CachedPayoutStatus, error)
	SetPayoutStatus(ctx context.Context, status *CachedPayoutStatus) error
	InvalidatePayoutStatus(ctx context.Context, externalRef string) error
}

// WebhookEventStoreInterface defines webhook event dedupe operations.
type WebhookEventStoreInterface interface {
	IsEventProcessed(ctx context.Context, gateway, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, gateway, eventID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ PendingMarkerStoreInterface = (*PendingMarkerStore)(nil)
	_ LockStoreInterface          = (*LockStore)(nil)
	_ PayoutStatusCacheInterface  = (*CacheStore)(nil)
	_ WebhookEventStoreInterface  = (*CacheStore)(nil)
)
