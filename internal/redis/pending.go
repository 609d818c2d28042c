package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingMarkerPrefix = "pending_payment:"
	pendingDeadlineKey  = "pending_payment:deadlines"
)

// PendingMarkerStore keeps one TTL key per PENDING payment. The key expiring
// is the signal that the payer abandoned checkout. A sorted set of deadlines
// makes lapsed markers discoverable, since Redis does not report expired keys.
type PendingMarkerStore struct {
	client *redis.Client
}

// NewPendingMarkerStore creates a new PendingMarkerStore.
func NewPendingMarkerStore(client *redis.Client) *PendingMarkerStore {
	return &PendingMarkerStore{client: client}
}

// Put writes the marker for paymentID with the given TTL.
func (s *PendingMarkerStore) Put(ctx context.Context, paymentID string, ttl time.Duration) error {
	deadline := time.Now().Add(ttl).UnixMilli()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, pendingMarkerPrefix+paymentID, "1", ttl)
		pipe.ZAdd(ctx, pendingDeadlineKey, redis.Z{Score: float64(deadline), Member: paymentID})
		return nil
	})
	return err
}

// Exists reports whether the marker for paymentID is still alive.
func (s *PendingMarkerStore) Exists(ctx context.Context, paymentID string) (bool, error) {
	n, err := s.client.Exists(ctx, pendingMarkerPrefix+paymentID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete removes the marker and its deadline entry.
func (s *PendingMarkerStore) Delete(ctx context.Context, paymentID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pendingMarkerPrefix+paymentID)
		pipe.ZRem(ctx, pendingDeadlineKey, paymentID)
		return nil
	})
	return err
}

// Defer moves paymentID's deadline to until, so ListExpired skips it until
// then. The entry is added when the payment was not indexed.
func (s *PendingMarkerStore) Defer(ctx context.Context, paymentID string, until time.Time) error {
	return s.client.ZAdd(ctx, pendingDeadlineKey, redis.Z{Score: float64(until.UnixMilli()), Member: paymentID}).Err()
}

// ListExpired returns up to limit payment IDs whose deadline is at or before
// now and whose marker key is gone.
func (s *PendingMarkerStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, pendingDeadlineKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	// Use pipeline for batch exists
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, pendingMarkerPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	expired := make([]string, 0, len(ids))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			expired = append(expired, ids[i])
		}
	}
	return expired, nil
}
