package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payledger/internal/redis"
)

type blockingPublisher struct {
	release chan struct{}
	calls   chan string
}

func (p *blockingPublisher) PublishPaymentEvent(ctx context.Context, userID string, payload []byte) error {
	<-p.release
	p.calls <- userID
	return errors.New("subscriber gone")
}

func TestNotify_PublishesToUserChannel(t *testing.T) {
	env := newTestEnv(t)
	notifier := NewNotificationService(redis.NewPublisher(env.client), zap.NewNop())

	sub := env.client.Subscribe(context.Background(), redis.PaymentChannel(testPayer))
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	notifier.Notify(context.Background(), testPayer, NotificationPaymentSuccess, "pay-1", "Payment of 150 USD was successful")
	notifier.Wait()

	select {
	case msg := <-sub.Channel():
		var n Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		assert.Equal(t, NotificationPaymentSuccess, n.Type)
		assert.Equal(t, "pay-1", n.PaymentID)
		assert.Equal(t, "Payment of 150 USD was successful", n.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not published")
	}
}

func TestNotify_SlowPublisher_DoesNotBlockCaller(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{}), calls: make(chan string, 1)}
	notifier := NewNotificationService(pub, zap.NewNop())

	returned := make(chan struct{})
	go func() {
		notifier.Notify(context.Background(), testPayer, NotificationPaymentFailure, "pay-2", "Payment of 50 USD expired")
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on the publisher")
	}

	close(pub.release)
	notifier.Wait()
	assert.Equal(t, testPayer, <-pub.calls)
}
