package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/gateway"
	"payledger/internal/metrics"
	"payledger/internal/redis"
	"payledger/internal/repository"
)

// WebhookService ingests gateway notifications.
type WebhookService struct {
	gateways     *gateway.Registry
	payments     repository.PaymentRepository
	transitioner Transitioner
	events       redis.WebhookEventStoreInterface
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// NewWebhookService creates a new WebhookService. events may be nil, which
// disables the processed-event short-circuit.
func NewWebhookService(
	gateways *gateway.Registry,
	payments repository.PaymentRepository,
	transitioner Transitioner,
	events redis.WebhookEventStoreInterface,
	logger *zap.Logger,
	m *metrics.Metrics,
) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		gateways:     gateways,
		payments:     payments,
		transitioner: transitioner,
		events:       events,
		logger:       logger,
		metrics:      m,
	}
}

// WebhookOutcome describes how a delivery was handled.
type WebhookOutcome struct {
	EventID   string
	PaymentID string
	Status    domain.PaymentStatus
	Applied   bool
	Duplicate bool
	Unknown   bool
}

// Handle verifies and applies one webhook delivery. Only signature failures
// and infrastructure errors are returned; everything else is an accepted
// delivery, possibly a no-op.
func (s *WebhookService) Handle(ctx context.Context, g domain.Gateway, payload []byte, signature string) (*WebhookOutcome, error) {
	adapter, err := s.gateways.Get(g)
	if err != nil {
		return nil, err
	}

	event, err := adapter.VerifyWebhook(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			s.metrics.WebhookRejected(string(g))
			s.logger.Warn("webhook rejected",
				zap.String("gateway", string(g)),
				zap.Error(err),
			)
		}
		return nil, err
	}
	s.metrics.WebhookReceived(string(g))

	outcome := &WebhookOutcome{EventID: event.EventID}
	logger := s.logger.With(
		zap.String("gateway", string(g)),
		zap.String("event_id", event.EventID),
		zap.String("external_ref", event.ExternalRef),
	)

	if s.alreadyProcessed(ctx, g, event.EventID, logger) {
		outcome.Duplicate = true
		logger.Debug("webhook already processed")
		return outcome, nil
	}

	next := PaymentStatusTable(g).Map(event.NativeStatus)
	outcome.Status = next
	if !next.Terminal() {
		logger.Debug("webhook carries non-terminal status", zap.String("native_status", event.NativeStatus))
		return outcome, nil
	}

	payment, err := s.payments.GetByExternalRef(ctx, g, event.ExternalRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			outcome.Unknown = true
			logger.Info("webhook for unknown payment")
			return outcome, nil
		}
		return nil, err
	}
	outcome.PaymentID = payment.ID

	result, err := s.transitioner.Transition(ctx, payment.ID, next, SourceWebhook)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			outcome.Unknown = true
			return outcome, nil
		}
		return nil, err
	}
	outcome.Applied = result.Applied
	outcome.Status = result.Status

	s.markProcessed(ctx, g, event.EventID, logger)
	return outcome, nil
}

func (s *WebhookService) alreadyProcessed(ctx context.Context, g domain.Gateway, eventID string, logger *zap.Logger) bool {
	if s.events == nil || eventID == "" {
		return false
	}
	processed, err := s.events.IsEventProcessed(ctx, string(g), eventID)
	if err != nil {
		logger.Warn("webhook dedupe lookup failed", zap.Error(err))
		return false
	}
	return processed
}

func (s *WebhookService) markProcessed(ctx context.Context, g domain.Gateway, eventID string, logger *zap.Logger) {
	if s.events == nil || eventID == "" {
		return
	}
	if err := s.events.MarkEventProcessed(ctx, string(g), eventID); err != nil {
		logger.Warn("webhook dedupe write failed", zap.Error(err))
	}
}

// SignatureHeader returns the request header that carries g's signature.
func (s *WebhookService) SignatureHeader(g domain.Gateway) (string, error) {
	adapter, err := s.gateways.Get(g)
	if err != nil {
		return "", err
	}
	return adapter.SignatureHeader(), nil
}
