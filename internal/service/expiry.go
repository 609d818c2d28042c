package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/metrics"
	"payledger/internal/redis"
	"payledger/internal/repository"
)

const (
	sweepLockName        = "expiry-sweep"
	DefaultSweepInterval = 30 * time.Second
	DefaultSweepBatch    = 200
	DefaultRetryBackoff  = 5 * time.Minute
)

// ExpiryConfig holds the sweep settings.
type ExpiryConfig struct {
	Interval   time.Duration
	PendingTTL time.Duration
	BatchSize  int

	// RetryBackoff delays the next attempt on a payment whose expiry failed.
	RetryBackoff time.Duration
}

// ExpiryReconciler expires PENDING payments whose pending marker is gone.
type ExpiryReconciler struct {
	payments     repository.PaymentRepository
	markers      redis.PendingMarkerStoreInterface
	locks        redis.LockStoreInterface
	transitioner Transitioner
	logger       *zap.Logger
	metrics      *metrics.Metrics
	nrApp        *newrelic.Application
	cfg          ExpiryConfig
	now          func() time.Time

	// mu guards cursor, the resume point of the ledger scan.
	mu     sync.Mutex
	cursor repository.PendingCursor
}

// NewExpiryReconciler creates a new ExpiryReconciler. nrApp may be nil.
func NewExpiryReconciler(
	payments repository.PaymentRepository,
	markers redis.PendingMarkerStoreInterface,
	locks redis.LockStoreInterface,
	transitioner Transitioner,
	logger *zap.Logger,
	m *metrics.Metrics,
	nrApp *newrelic.Application,
	cfg ExpiryConfig,
) *ExpiryReconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSweepBatch
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ExpiryReconciler{
		payments:     payments,
		markers:      markers,
		locks:        locks,
		transitioner: transitioner,
		logger:       logger,
		metrics:      m,
		nrApp:        nrApp,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (r *ExpiryReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("expiry reconciler started", zap.Duration("interval", r.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("expiry reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce runs one sweep and returns how many payments it expired. It
// does nothing when another replica holds the sweep lock.
func (r *ExpiryReconciler) SweepOnce(ctx context.Context) (int, error) {
	if r.nrApp != nil {
		txn := r.nrApp.StartTransaction("expiry-sweep")
		defer txn.End()
		ctx = newrelic.NewContext(ctx, txn)
	}

	token, locked, err := r.locks.AcquireLock(ctx, sweepLockName, r.cfg.Interval)
	if err != nil {
		r.metrics.SweepRun("error", 0)
		return 0, err
	}
	if !locked {
		r.metrics.SweepRun("skipped", 0)
		return 0, nil
	}
	defer func() {
		if err := r.locks.ReleaseLock(context.WithoutCancel(ctx), sweepLockName, token); err != nil {
			r.logger.Warn("release sweep lock failed", zap.Error(err))
		}
	}()

	candidates, err := r.candidates(ctx)
	if err != nil {
		r.metrics.SweepRun("error", 0)
		return 0, err
	}

	expired := 0
	for _, id := range candidates {
		if ctx.Err() != nil {
			break
		}

		result, err := r.transitioner.Transition(ctx, id, domain.PaymentStatusExpired, SourceSweep)
		if err != nil && !errors.Is(err, ErrPaymentNotFound) {
			retryAt := r.now().Add(r.cfg.RetryBackoff)
			r.logger.Error("expire payment failed",
				zap.String("payment_id", id),
				zap.Time("retry_at", retryAt),
				zap.Error(err),
			)
			if err := r.markers.Defer(ctx, id, retryAt); err != nil {
				r.logger.Warn("defer expiry retry failed", zap.String("payment_id", id), zap.Error(err))
			}
			continue
		}
		if result != nil && result.Applied {
			expired++
		}

		if err := r.markers.Delete(ctx, id); err != nil {
			r.logger.Warn("pending index cleanup failed", zap.String("payment_id", id), zap.Error(err))
		}
	}

	r.metrics.SweepRun("ran", expired)
	if expired > 0 {
		r.logger.Info("expiry sweep finished", zap.Int("expired", expired), zap.Int("candidates", len(candidates)))
	}
	return expired, nil
}

// candidates merges lapsed markers with old PENDING payments that have no
// live marker, which covers payments whose marker write failed. The ledger
// scan resumes where the previous sweep stopped and wraps to the oldest
// payment once a page comes back short.
func (r *ExpiryReconciler) candidates(ctx context.Context) ([]string, error) {
	now := r.now()

	lapsed, err := r.markers.ListExpired(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(lapsed))
	ids := make([]string, 0, len(lapsed))
	for _, id := range lapsed {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	r.mu.Lock()
	cursor := r.cursor
	r.mu.Unlock()

	stale, err := r.payments.ListPending(ctx, now.Add(-r.cfg.PendingTTL), cursor, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	next := repository.PendingCursor{}
	if len(stale) == r.cfg.BatchSize {
		last := stale[len(stale)-1]
		next = repository.PendingCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	r.mu.Lock()
	r.cursor = next
	r.mu.Unlock()

	for _, p := range stale {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		alive, err := r.markers.Exists(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if alive {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}

	return ids, nil
}
