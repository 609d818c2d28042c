package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationPaymentSuccess NotificationType = "PAYMENT_SUCCESS"
	NotificationPaymentFailure NotificationType = "PAYMENT_FAILURE"
)

// Notifier delivers user notifications. Notify must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind NotificationType, refID, message string)
}

// Publisher pushes a serialized notification to a user's channel.
type Publisher interface {
	PublishPaymentEvent(ctx context.Context, userID string, payload []byte) error
}

// Notification is the message published to subscribers.
type Notification struct {
	Type      NotificationType `json:"type"`
	PaymentID string           `json:"payment_id"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}

const publishTimeout = 5 * time.Second

// NotificationService publishes payment notifications asynchronously.
type NotificationService struct {
	publisher Publisher
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(publisher Publisher, logger *zap.Logger) *NotificationService {
	return &NotificationService{publisher: publisher, logger: logger}
}

// Notify publishes in the background. Failures are logged only.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind NotificationType, refID, message string) {
	n := Notification{
		Type:      kind,
		PaymentID: refID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	s.logger.Info("notification",
		zap.String("user_id", userID),
		zap.String("type", string(kind)),
		zap.String("payment_id", refID),
	)

	if s.publisher == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		payload, err := json.Marshal(n)
		if err != nil {
			s.logger.Error("marshal notification", zap.Error(err))
			return
		}
		if err := s.publisher.PublishPaymentEvent(pubCtx, userID, payload); err != nil {
			s.logger.Warn("publish notification failed",
				zap.String("user_id", userID),
				zap.String("payment_id", refID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight publishes finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}
