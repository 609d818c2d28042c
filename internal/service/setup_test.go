package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/gateway"
	"payledger/internal/metrics"
	"payledger/internal/redis"
)

const (
	testPayer = "user-1"
	testItem  = "item-1"
)

// testEnv wires the ledger against in-memory repositories and a miniredis
// instance.
type testEnv struct {
	store    *memStore
	payments *MockPaymentRepository
	items    *MockItemRepository
	catalog  *MockCatalogRepository
	uow      *MockUnitOfWork
	gateways map[domain.Gateway]*MockGateway
	registry *gateway.Registry
	notifier *mockNotifier
	metrics  *metrics.Metrics
	promReg  *prometheus.Registry

	mr      *miniredis.Miniredis
	client  *goredis.Client
	markers *redis.PendingMarkerStore
	locks   *redis.LockStore
	cache   *redis.CacheStore

	svc        *PaymentService
	webhooks   *WebhookService
	reconciler *ExpiryReconciler
}

func newTestEnv(t *testing.T, gws ...domain.Gateway) *testEnv {
	t.Helper()
	if len(gws) == 0 {
		gws = []domain.Gateway{domain.GatewayStripe}
	}

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	payments := &MockPaymentRepository{store: store}
	items := &MockItemRepository{store: store}

	env := &testEnv{
		store:    store,
		payments: payments,
		items:    items,
		catalog:  &MockCatalogRepository{store: store, entities: make(map[string]*domain.CatalogEntity)},
		uow:      &MockUnitOfWork{store: store, payments: payments, items: items},
		gateways: make(map[domain.Gateway]*MockGateway),
		notifier: &mockNotifier{},
		mr:       mr,
		client:   client,
		markers:  redis.NewPendingMarkerStore(client),
		locks:    redis.NewLockStore(client),
		cache:    redis.NewCacheStore(client, 0),
	}

	env.promReg = prometheus.NewRegistry()
	env.metrics = metrics.New(env.promReg)

	adapters := make([]gateway.Gateway, 0, len(gws))
	for _, g := range gws {
		gw := NewMockGateway(g)
		env.gateways[g] = gw
		adapters = append(adapters, gw)
	}
	env.registry = gateway.NewRegistry(adapters...)

	env.svc = NewPaymentService(PaymentDeps{
		Payments: payments,
		Items:    items,
		Catalog:  env.catalog,
		UoW:      env.uow,
		Markers:  env.markers,
		Gateways: env.registry,
		Notifier: env.notifier,
		Logger:   zap.NewNop(),
		Metrics:  env.metrics,
	}, PaymentConfig{PendingTTL: 15 * time.Minute, GatewayTimeout: time.Second})

	env.webhooks = NewWebhookService(env.registry, payments, env.svc, env.cache, zap.NewNop(), env.metrics)

	env.reconciler = NewExpiryReconciler(payments, env.markers, env.locks, env.svc, zap.NewNop(), env.metrics, nil, ExpiryConfig{
		Interval:   time.Minute,
		PendingTTL: 15 * time.Minute,
		BatchSize:  50,
	})

	return env
}

// addItem stocks an item priced at price.
func (e *testEnv) addItem(id string, price int64, stock, reserved int) {
	e.store.AddItem(&domain.PurchasableItem{
		ID:            id,
		Name:          "Item " + id,
		Price:         decimal.NewFromInt(price),
		Stock:         stock,
		ReservedStock: reserved,
	})
}

// expectNotifications accepts any notification.
func (e *testEnv) expectNotifications() {
	e.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Maybe()
}

// advance moves both the sweep clock and redis TTLs forward.
func (e *testEnv) advance(d time.Duration) {
	e.mr.FastForward(d)
	at := time.Now().Add(d)
	e.reconciler.now = func() time.Time { return at }
}

// itemPurchase is a one-item purchase request on gateway g.
func itemPurchase(g domain.Gateway, quantity int) CreatePaymentRequest {
	return CreatePaymentRequest{
		PayerID:  testPayer,
		Kind:     domain.PurchaseKindItem,
		EntityID: testItem,
		Quantity: quantity,
		Gateway:  g,
	}
}
