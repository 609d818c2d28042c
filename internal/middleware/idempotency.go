package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	replayTTL   = 24 * time.Hour
	inFlightTTL = 30 * time.Second
)

// storedReply is a handler response kept for replay.
type storedReply struct {
	Status      int             `json:"status"`
	ContentType string          `json:"content_type,omitempty"`
	Body        json.RawMessage `json:"body"`
}

// replayStore keeps replies and in-flight claims under one scoped key.
type replayStore struct {
	client *redis.Client
}

func (s replayStore) load(ctx context.Context, key string) (*storedReply, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var reply storedReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (s replayStore) save(ctx context.Context, key string, reply storedReply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, replayTTL).Err()
}

func (s replayStore) claim(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, key+":inflight", 1, inFlightTTL).Result()
}

func (s replayStore) unclaim(ctx context.Context, key string) {
	s.client.Del(ctx, key+":inflight")
}

// captureWriter tees the response body.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a mutating call that
// repeats its Idempotency-Key. Keys are scoped to the caller and route, so
// two payers cannot collide on the same key. A repeat that arrives while the
// first call is still running gets 409.
func IdempotencyMiddleware(redisClient *redis.Client, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := replayStore{client: redisClient}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || !mutating(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		scoped := replayKey(c, key)
		log := logger.With(zap.String("path", c.FullPath()), zap.String("idempotency_key", key))

		reply, err := store.load(ctx, scoped)
		switch {
		case err == nil:
			if reply.ContentType != "" {
				c.Header("Content-Type", reply.ContentType)
			}
			c.Header(ReplayedHeader, "true")
			c.Data(reply.Status, reply.ContentType, reply.Body)
			c.Abort()
			return
		case !errors.Is(err, redis.Nil):
			// Redis unavailable: serve the call without replay protection.
			log.Warn("idempotency lookup failed", zap.Error(err))
			c.Next()
			return
		}

		claimed, err := store.claim(ctx, scoped)
		if err != nil {
			log.Warn("idempotency claim failed", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Persist with a detached context; the client may already be gone.
		bg := context.WithoutCancel(ctx)
		defer store.unclaim(bg, scoped)

		// 5xx stays retryable.
		status := w.Status()
		if status < 200 || status >= 500 {
			return
		}
		if err := store.save(bg, scoped, storedReply{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}); err != nil {
			log.Warn("idempotency store failed", zap.Error(err))
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func replayKey(c *gin.Context, key string) string {
	return "idempotency:" + Principal(c) + ":" + c.Request.Method + ":" + c.FullPath() + ":" + key
}
