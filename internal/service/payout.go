package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/gateway"
	"payledger/internal/metrics"
	"payledger/internal/redis"
	"payledger/internal/repository"
)

// DefaultPayoutPollBatch bounds one background poll.
const DefaultPayoutPollBatch = 100

// PayoutDeps contains the collaborators of PayoutService.
type PayoutDeps struct {
	Payouts       repository.PayoutRepository
	Beneficiaries repository.BeneficiaryRepository
	Cache         redis.PayoutStatusCacheInterface
	Gateways      *gateway.Registry
	Logger        *zap.Logger
	Metrics       *metrics.Metrics

	// Currencies overrides the default currency per gateway.
	Currencies     map[domain.Gateway]string
	GatewayTimeout time.Duration
}

// PayoutService creates payouts and tracks their status.
type PayoutService struct {
	payouts        repository.PayoutRepository
	beneficiaries  repository.BeneficiaryRepository
	cache          redis.PayoutStatusCacheInterface
	gateways       *gateway.Registry
	logger         *zap.Logger
	metrics        *metrics.Metrics
	currencies     map[domain.Gateway]string
	gatewayTimeout time.Duration
	now            func() time.Time
}

// NewPayoutService creates a new PayoutService.
func NewPayoutService(deps PayoutDeps) *PayoutService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.GatewayTimeout <= 0 {
		deps.GatewayTimeout = DefaultGatewayTimeout
	}

	return &PayoutService{
		payouts:        deps.Payouts,
		beneficiaries:  deps.Beneficiaries,
		cache:          deps.Cache,
		gateways:       deps.Gateways,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		currencies:     deps.Currencies,
		gatewayTimeout: deps.GatewayTimeout,
		now:            time.Now,
	}
}

// CreatePayoutRequest contains the parameters for a payout.
type CreatePayoutRequest struct {
	OwnerID       string
	BeneficiaryID string
	Amount        decimal.Decimal
	Gateway       domain.Gateway
	Notes         string
}

// CreatePayout sends money to one of the owner's validated beneficiaries and
// records the payout as PENDING.
func (s *PayoutService) CreatePayout(ctx context.Context, req CreatePayoutRequest) (*domain.Payout, error) {
	if req.OwnerID == "" {
		return nil, ErrInvalidPayerID
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidPaymentAmount
	}

	beneficiary, err := s.beneficiaries.GetValidated(ctx, req.BeneficiaryID, req.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBeneficiaryNotFound
		}
		return nil, err
	}

	adapter, err := s.gateways.Get(req.Gateway)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	payout := &domain.Payout{
		ID:            uuid.New().String(),
		OwnerID:       req.OwnerID,
		BeneficiaryID: beneficiary.ID,
		Destination:   beneficiary.Snapshot(),
		Amount:        req.Amount,
		Currency:      s.currency(req.Gateway),
		Notes:         req.Notes,
		Status:        domain.PaymentStatusPending,
		Gateway:       req.Gateway,
		Provider:      adapter.Provider(),
		ReferenceNo:   "payout-" + uuid.New().String(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	result, err := adapter.CreatePayout(gwCtx, gateway.CreatePayoutRequest{
		Amount:      payout.Amount,
		Currency:    payout.Currency,
		ReferenceNo: payout.ReferenceNo,
		Destination: payout.Destination,
		Notes:       payout.Notes,
	})
	cancel()
	if err != nil {
		s.logger.Warn("gateway create payout failed",
			zap.String("payout_id", payout.ID),
			zap.String("gateway", string(req.Gateway)),
			zap.Error(err),
		)
		return nil, err
	}

	payout.ExternalRef = result.ExternalRef
	if err := s.payouts.Create(ctx, payout); err != nil {
		s.logger.Error("persist payout failed after gateway create",
			zap.String("payout_id", payout.ID),
			zap.String("external_ref", payout.ExternalRef),
			zap.Error(err),
		)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePayoutStatus(ctx, payout.ExternalRef); err != nil {
			s.logger.Warn("payout cache invalidation failed", zap.String("payout_id", payout.ID), zap.Error(err))
		}
	}

	s.metrics.PayoutCreated(string(payout.Gateway))
	s.logger.Info("payout created",
		zap.String("payout_id", payout.ID),
		zap.String("gateway", string(payout.Gateway)),
		zap.String("amount", payout.Amount.String()),
	)

	return payout, nil
}

func (s *PayoutService) currency(g domain.Gateway) string {
	if c := s.currencies[g]; c != "" {
		return c
	}
	return g.DefaultCurrency()
}

// PayoutStatus is the result of a payout status lookup.
type PayoutStatus struct {
	ExternalRef  string
	Status       domain.PaymentStatus
	NativeStatus string
	Cached       bool
}

// GetPayoutStatus returns the payout's status, consulting the cache first
// and the gateway only while the payout is PENDING.
func (s *PayoutService) GetPayoutStatus(ctx context.Context, ownerID, externalRef string) (*PayoutStatus, error) {
	if s.cache != nil {
		cached, err := s.cache.GetPayoutStatus(ctx, externalRef)
		if err != nil {
			s.logger.Warn("payout cache lookup failed", zap.String("external_ref", externalRef), zap.Error(err))
		}
		if cached != nil && cached.OwnerID == ownerID {
			return &PayoutStatus{
				ExternalRef:  cached.ExternalRef,
				Status:       domain.PaymentStatus(cached.Status),
				NativeStatus: cached.NativeStatus,
				Cached:       true,
			}, nil
		}
	}

	payout, err := s.payouts.GetByExternalRef(ctx, ownerID, externalRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}

	status, err := s.refresh(ctx, payout)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		err := s.cache.SetPayoutStatus(ctx, &redis.CachedPayoutStatus{
			OwnerID:      payout.OwnerID,
			ExternalRef:  status.ExternalRef,
			Status:       string(status.Status),
			NativeStatus: status.NativeStatus,
		})
		if err != nil {
			s.logger.Warn("payout cache write failed", zap.String("external_ref", externalRef), zap.Error(err))
		}
	}

	return status, nil
}

// refresh polls the gateway for a PENDING payout and applies a terminal
// status with a conditional update.
func (s *PayoutService) refresh(ctx context.Context, payout *domain.Payout) (*PayoutStatus, error) {
	if payout.Status.Terminal() {
		return &PayoutStatus{ExternalRef: payout.ExternalRef, Status: payout.Status}, nil
	}

	adapter, err := s.gateways.Get(payout.Gateway)
	if err != nil {
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	result, err := adapter.GetPayoutStatus(gwCtx, payout.ExternalRef)
	cancel()
	if err != nil {
		return nil, err
	}

	status := &PayoutStatus{
		ExternalRef:  payout.ExternalRef,
		Status:       payout.Status,
		NativeStatus: result.NativeStatus,
	}

	next := PayoutStatusTable.Map(result.NativeStatus)
	if !next.Terminal() {
		return status, nil
	}

	applied, err := s.payouts.CompareAndTransition(ctx, payout.ID, domain.PaymentStatusPending, next)
	if err != nil {
		return nil, err
	}

	if applied {
		status.Status = next
		s.logger.Info("payout transitioned",
			zap.String("payout_id", payout.ID),
			zap.String("status", string(next)),
		)
		return status, nil
	}

	latest, err := s.payouts.GetByExternalRef(ctx, payout.OwnerID, payout.ExternalRef)
	if err != nil {
		return nil, err
	}
	status.Status = latest.Status
	return status, nil
}

// PollPending refreshes up to limit PENDING payouts and returns how many
// reached a terminal status.
func (s *PayoutService) PollPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultPayoutPollBatch
	}

	pending, err := s.payouts.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, payout := range pending {
		if ctx.Err() != nil {
			break
		}

		status, err := s.refresh(ctx, payout)
		if err != nil {
			s.logger.Warn("payout poll failed",
				zap.String("payout_id", payout.ID),
				zap.String("gateway", string(payout.Gateway)),
				zap.Error(err),
			)
			continue
		}

		if status.Status.Terminal() {
			settled++
			if s.cache != nil {
				_ = s.cache.InvalidatePayoutStatus(ctx, payout.ExternalRef)
			}
		}
	}

	return settled, nil
}

// PayoutPoller periodically refreshes PENDING payouts.
type PayoutPoller struct {
	service  *PayoutService
	interval time.Duration
	batch    int
	logger   *zap.Logger
	nrApp    *newrelic.Application
}

// NewPayoutPoller creates a new PayoutPoller. nrApp may be nil.
func NewPayoutPoller(service *PayoutService, interval time.Duration, batch int, logger *zap.Logger, nrApp *newrelic.Application) *PayoutPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayoutPoller{
		service:  service,
		interval: interval,
		batch:    batch,
		logger:   logger,
		nrApp:    nrApp,
	}
}

// Run polls every interval until ctx is cancelled. A non-positive interval
// returns immediately.
func (p *PayoutPoller) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("payout poller started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("payout poller stopped")
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *PayoutPoller) pollOnce(ctx context.Context) {
	if p.nrApp != nil {
		txn := p.nrApp.StartTransaction("payout-poll")
		defer txn.End()
		ctx = newrelic.NewContext(ctx, txn)
	}

	settled, err := p.service.PollPending(ctx, p.batch)
	if err != nil {
		p.logger.Error("payout poll failed", zap.Error(err))
		return
	}
	if settled > 0 {
		p.logger.Info("payout poll finished", zap.Int("settled", settled))
	}
}
