package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/gateway"
	"payledger/internal/metrics"
	"payledger/internal/redis"
	"payledger/internal/repository"
)

// Defaults for PaymentConfig.
const (
	DefaultPendingTTL     = 15 * time.Minute
	DefaultGatewayTimeout = 10 * time.Second
)

// PaymentConfig holds the ledger settings.
type PaymentConfig struct {
	PendingTTL     time.Duration
	GatewayTimeout time.Duration

	// Currencies overrides the default currency per gateway.
	Currencies map[domain.Gateway]string
}

// PaymentDeps contains the collaborators of PaymentService.
type PaymentDeps struct {
	Payments repository.PaymentRepository
	Items    repository.ItemRepository
	Catalog  repository.CatalogRepository
	UoW      repository.UnitOfWork
	Markers  redis.PendingMarkerStoreInterface
	Gateways *gateway.Registry
	Notifier Notifier
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
}

// PaymentService is the payment ledger. It creates payments and owns the
// single transition path used by webhooks, polls and the expiry sweep.
type PaymentService struct {
	payments     repository.PaymentRepository
	catalog      repository.CatalogRepository
	uow          repository.UnitOfWork
	reservations *ReservationManager
	markers      redis.PendingMarkerStoreInterface
	gateways     *gateway.Registry
	notifier     Notifier
	logger       *zap.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	cfg          PaymentConfig
	now          func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(deps PaymentDeps, cfg PaymentConfig) *PaymentService {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = DefaultGatewayTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("payledger/service")
	}

	return &PaymentService{
		payments:     deps.Payments,
		catalog:      deps.Catalog,
		uow:          deps.UoW,
		reservations: NewReservationManager(deps.Items),
		markers:      deps.Markers,
		gateways:     deps.Gateways,
		notifier:     deps.Notifier,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		tracer:       deps.Tracer,
		cfg:          cfg,
		now:          time.Now,
	}
}

// CreatePaymentRequest contains the parameters for starting a purchase.
type CreatePaymentRequest struct {
	PayerID  string
	Kind     domain.PurchaseKind
	EntityID string
	Quantity int // 0 means 1
	Gateway  domain.Gateway

	// DeclaredAmount is only consulted for subscription plans without a price.
	DeclaredAmount decimal.NullDecimal
}

// CreatePaymentResult is what the payer needs to continue at the gateway.
type CreatePaymentResult struct {
	Payment      *domain.Payment
	RedirectURL  string
	Instructions string
}

// CreatePayment derives the amount, reserves stock when needed, opens the
// remote transaction and records a PENDING payment with its pending marker.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.create_payment")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment.kind", string(req.Kind)),
		attribute.String("payment.entity_id", req.EntityID),
		attribute.String("payment.gateway", string(req.Gateway)),
	)

	quantity, err := validateCreate(&req)
	if err != nil {
		return nil, err
	}

	adapter, err := s.gateways.Get(req.Gateway)
	if err != nil {
		return nil, err
	}

	amount, err := s.resolveAmount(ctx, req, quantity)
	if err != nil {
		return nil, err
	}

	if req.Kind.ReservesInventory() {
		if err := s.reservations.Reserve(ctx, req.EntityID, quantity); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	payment := &domain.Payment{
		ID:         uuid.New().String(),
		PayerID:    req.PayerID,
		Amount:     amount,
		Currency:   s.currency(req.Gateway),
		Status:     domain.PaymentStatusPending,
		Kind:       req.Kind,
		EntityID:   req.EntityID,
		EntityKind: req.Kind.EntityKind(),
		Quantity:   quantity,
		Gateway:    req.Gateway,
		Provider:   adapter.Provider(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	session, err := adapter.CreatePayment(gwCtx, gateway.CreatePaymentRequest{
		Amount:   amount,
		Currency: payment.Currency,
		PayerRef: req.PayerID,
		OrderRef: fmt.Sprintf("order-%d-%s", now.Unix(), payment.ID),
	})
	cancel()
	if err != nil {
		s.compensate(ctx, payment)
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway create failed")
		s.logger.Warn("gateway create payment failed",
			zap.String("payment_id", payment.ID),
			zap.String("gateway", string(req.Gateway)),
			zap.Error(err),
		)
		return nil, err
	}

	payment.ExternalRef = session.ExternalRef
	if err := s.payments.Create(ctx, payment); err != nil {
		s.compensate(ctx, payment)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.logger.Error("persist payment failed after gateway create",
			zap.String("payment_id", payment.ID),
			zap.String("gateway", string(req.Gateway)),
			zap.String("external_ref", payment.ExternalRef),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create payment: %w", err)
	}

	if err := s.markers.Put(ctx, payment.ID, s.cfg.PendingTTL); err != nil {
		// The sweep's ledger scan still covers this payment.
		s.logger.Warn("pending marker write failed",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
	}

	s.metrics.PaymentCreated(string(payment.Gateway), string(payment.Kind))
	span.SetAttributes(attribute.String("payment.id", payment.ID))
	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("gateway", string(payment.Gateway)),
		zap.String("amount", payment.Amount.String()),
		zap.String("currency", payment.Currency),
	)

	return &CreatePaymentResult{
		Payment:      payment,
		RedirectURL:  session.RedirectURL,
		Instructions: session.Instructions,
	}, nil
}

func validateCreate(req *CreatePaymentRequest) (int, error) {
	if req.PayerID == "" {
		return 0, ErrInvalidPayerID
	}
	if req.EntityID == "" {
		return 0, ErrInvalidEntityID
	}
	if req.Kind.EntityKind() == "" {
		return 0, ErrInvalidPurchaseKind
	}
	if req.Quantity < 0 {
		return 0, ErrInvalidQuantity
	}

	quantity := req.Quantity
	if quantity == 0 || req.Kind != domain.PurchaseKindItem {
		quantity = 1
	}
	return quantity, nil
}

// resolveAmount derives the charge from the catalog. Client amounts only
// count for subscription plans that carry no price.
func (s *PaymentService) resolveAmount(ctx context.Context, req CreatePaymentRequest, quantity int) (decimal.Decimal, error) {
	entity, err := s.catalog.GetEntity(ctx, req.Kind.EntityKind(), req.EntityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return decimal.Zero, ErrEntityNotFound
		}
		return decimal.Zero, err
	}

	var amount decimal.Decimal
	switch {
	case entity.HasPrice:
		amount = entity.Price.Mul(decimal.NewFromInt(int64(quantity)))
	case req.Kind == domain.PurchaseKindSubscription && req.DeclaredAmount.Valid:
		amount = req.DeclaredAmount.Decimal
	default:
		return decimal.Zero, ErrAmountUndetermined
	}

	if !amount.IsPositive() {
		return decimal.Zero, ErrAmountUndetermined
	}
	return amount, nil
}

func (s *PaymentService) currency(g domain.Gateway) string {
	if c := s.cfg.Currencies[g]; c != "" {
		return c
	}
	return g.DefaultCurrency()
}

// compensate releases the reservation taken for a payment that never made
// it into the ledger.
func (s *PaymentService) compensate(ctx context.Context, payment *domain.Payment) {
	if !payment.Kind.ReservesInventory() {
		return
	}
	if err := s.reservations.Release(context.WithoutCancel(ctx), payment.EntityID, payment.Quantity); err != nil {
		s.logger.Error("reservation compensation failed",
			zap.String("payment_id", payment.ID),
			zap.String("entity_id", payment.EntityID),
			zap.Int("quantity", payment.Quantity),
			zap.Error(err),
		)
	}
}

// GetPayment returns a payment owned by payerID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID, payerID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}
	if !validPaymentID(paymentID) {
		return nil, ErrPaymentNotFound
	}

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if payment.PayerID != payerID {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// validPaymentID reports whether id can name a stored payment. Payment ids
// are UUIDs, and anything else would be rejected by the database.
func validPaymentID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// GetPaymentStatus asks the gateway for the current status of a payment and
// applies it through Transition when it is terminal. The returned status is
// the ledger's.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, g domain.Gateway, externalRef, payerID string) (domain.PaymentStatus, error) {
	adapter, err := s.gateways.Get(g)
	if err != nil {
		return "", err
	}

	payment, err := s.payments.GetByExternalRef(ctx, g, externalRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrPaymentNotFound
		}
		return "", err
	}
	if payerID != "" && payment.PayerID != payerID {
		return "", ErrPaymentNotFound
	}

	if payment.Status.Terminal() {
		return payment.Status, nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	result, err := adapter.GetStatus(gwCtx, externalRef)
	cancel()
	if err != nil {
		return "", err
	}

	next := PaymentStatusTable(g).Map(result.NativeStatus)
	if !next.Terminal() {
		return payment.Status, nil
	}

	outcome, err := s.Transition(ctx, payment.ID, next, SourcePoll)
	if err != nil {
		return "", err
	}
	return outcome.Status, nil
}
