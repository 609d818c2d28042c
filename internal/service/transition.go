package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/repository"
)

// TransitionSource names the signal that triggered a transition.
type TransitionSource string

const (
	SourceWebhook TransitionSource = "webhook"
	SourcePoll    TransitionSource = "poll"
	SourceSweep   TransitionSource = "sweep"
)

// TransitionResult reports what a transition did.
type TransitionResult struct {
	Applied bool
	Status  domain.PaymentStatus // status after the call
	Payment *domain.Payment
}

// Transitioner is the single way payments leave PENDING.
type Transitioner interface {
	Transition(ctx context.Context, paymentID string, next domain.PaymentStatus, source TransitionSource) (*TransitionResult, error)
}

var _ Transitioner = (*PaymentService)(nil)

// Transition moves a PENDING payment to next. The status change and the
// reservation side effect commit together. If the payment already left
// PENDING nothing happens and Applied is false.
func (s *PaymentService) Transition(ctx context.Context, paymentID string, next domain.PaymentStatus, source TransitionSource) (*TransitionResult, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}
	if !next.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, next)
	}
	if !validPaymentID(paymentID) {
		return nil, ErrPaymentNotFound
	}

	ctx, span := s.tracer.Start(ctx, "ledger.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", paymentID),
		attribute.String("payment.next_status", string(next)),
		attribute.String("transition.source", string(source)),
	)

	var payment *domain.Payment
	var applied bool

	err := s.uow.Do(ctx, func(repos repository.TxRepositories) error {
		var err error
		payment, err = repos.Payments.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(payment.Status, next) {
			return nil
		}

		applied, err = repos.Payments.CompareAndTransition(ctx, paymentID, domain.PaymentStatusPending, next)
		if err != nil || !applied {
			return err
		}

		if !payment.Kind.ReservesInventory() {
			return nil
		}

		reservations := s.reservations.Bind(repos.Items)
		if next == domain.PaymentStatusSuccess {
			return reservations.Finalize(ctx, payment.EntityID, payment.Quantity)
		}
		return reservations.Release(ctx, payment.EntityID, payment.Quantity)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		if IsUnderflow(err) {
			s.logger.Error("reservation counters out of step with ledger",
				zap.String("payment_id", paymentID),
				zap.String("status", string(next)),
				zap.Error(err),
			)
		}
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("transition.applied", applied))

	if !applied {
		current := payment.Status
		if latest, err := s.payments.GetByID(ctx, paymentID); err == nil {
			current = latest.Status
			payment = latest
		}
		return &TransitionResult{Applied: false, Status: current, Payment: payment}, nil
	}

	payment.Status = next
	s.afterTransition(ctx, payment, source)

	return &TransitionResult{Applied: true, Status: next, Payment: payment}, nil
}

func (s *PaymentService) afterTransition(ctx context.Context, payment *domain.Payment, source TransitionSource) {
	if err := s.markers.Delete(ctx, payment.ID); err != nil {
		s.logger.Warn("pending marker delete failed",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
	}

	if s.notifier != nil {
		if payment.Status == domain.PaymentStatusSuccess {
			s.notifier.Notify(ctx, payment.PayerID, NotificationPaymentSuccess, payment.ID,
				fmt.Sprintf("Payment of %s %s was successful", payment.Amount.String(), payment.Currency))
		} else {
			s.notifier.Notify(ctx, payment.PayerID, NotificationPaymentFailure, payment.ID,
				fmt.Sprintf("Payment of %s %s %s", payment.Amount.String(), payment.Currency, failureVerb(payment.Status)))
		}
	}

	s.metrics.Transitioned(string(payment.Status), string(source))
	s.logger.Info("payment transitioned",
		zap.String("payment_id", payment.ID),
		zap.String("status", string(payment.Status)),
		zap.String("source", string(source)),
	)
}

func failureVerb(status domain.PaymentStatus) string {
	if status == domain.PaymentStatusExpired {
		return "expired"
	}
	return "failed"
}
