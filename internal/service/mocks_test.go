package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"payledger/internal/domain"
	"payledger/internal/gateway"
	"payledger/internal/repository"
)

// ──────────────────────────────────────────────
// IN-MEMORY LEDGER STORE
// ──────────────────────────────────────────────

// memStore backs the payment and item mocks so that MockUnitOfWork can
// roll both back together.
type memStore struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
	items    map[string]*domain.PurchasableItem

	// txMu serializes units of work.
	txMu sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		payments: make(map[string]*domain.Payment),
		items:    make(map[string]*domain.PurchasableItem),
	}
}

func (s *memStore) snapshot() (map[string]domain.Payment, map[string]domain.PurchasableItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payments := make(map[string]domain.Payment, len(s.payments))
	for id, p := range s.payments {
		payments[id] = *p
	}
	items := make(map[string]domain.PurchasableItem, len(s.items))
	for id, i := range s.items {
		items[id] = *i
	}
	return payments, items
}

func (s *memStore) restore(payments map[string]domain.Payment, items map[string]domain.PurchasableItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = make(map[string]*domain.Payment, len(payments))
	for id, p := range payments {
		p := p
		s.payments[id] = &p
	}
	s.items = make(map[string]*domain.PurchasableItem, len(items))
	for id, i := range items {
		i := i
		s.items[id] = &i
	}
}

// AddItem adds an item to the store.
func (s *memStore) AddItem(item *domain.PurchasableItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// Item returns a copy of an item.
func (s *memStore) Item(id string) domain.PurchasableItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.items[id]
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	store *memStore

	// Counters for verification
	CreateCallCount int32
	CASCallCount    int32
	CASApplied      int32

	// Error injection
	CreateError error
	CASError    error
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, p := range m.store.payments {
		if p.Gateway == payment.Gateway && p.ExternalRef == payment.ExternalRef {
			return repository.ErrDuplicateExternalRef
		}
	}
	copy := *payment
	m.store.payments[payment.ID] = &copy
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *MockPaymentRepository) GetByExternalRef(ctx context.Context, g domain.Gateway, ref string) (*domain.Payment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, p := range m.store.payments {
		if p.Gateway == g && p.ExternalRef == ref {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentRepository) CompareAndTransition(ctx context.Context, id string, expected, next domain.PaymentStatus) (bool, error) {
	atomic.AddInt32(&m.CASCallCount, 1)
	if m.CASError != nil {
		return false, m.CASError
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.payments[id]
	if !ok || p.Status != expected {
		return false, nil
	}
	p.Status = next
	p.UpdatedAt = time.Now()
	atomic.AddInt32(&m.CASApplied, 1)
	return true, nil
}

func (m *MockPaymentRepository) ListPending(ctx context.Context, createdBefore time.Time, after repository.PendingCursor, limit int) ([]*domain.Payment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []*domain.Payment
	for _, p := range m.store.payments {
		if p.Status != domain.PaymentStatusPending || !p.CreatedAt.Before(createdBefore) {
			continue
		}
		if !after.IsZero() && !afterCursor(p, after) {
			continue
		}
		copy := *p
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func afterCursor(p *domain.Payment, c repository.PendingCursor) bool {
	if p.CreatedAt.Equal(c.CreatedAt) {
		return p.ID > c.ID
	}
	return p.CreatedAt.After(c.CreatedAt)
}

// Status returns the stored status of a payment.
func (m *MockPaymentRepository) Status(id string) domain.PaymentStatus {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.store.payments[id].Status
}

// Count returns the number of stored payments.
func (m *MockPaymentRepository) Count() int {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.payments)
}

// ──────────────────────────────────────────────
// MOCK ITEM REPOSITORY
// ──────────────────────────────────────────────

// MockItemRepository is a mock implementation of ItemRepository with the
// same guards as the SQL updates.
type MockItemRepository struct {
	store *memStore

	ReserveCallCount  int32
	ReleaseCallCount  int32
	FinalizeCallCount int32
}

func (m *MockItemRepository) GetByID(ctx context.Context, id string) (*domain.PurchasableItem, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	item, ok := m.store.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *item
	return &copy, nil
}

func (m *MockItemRepository) Reserve(ctx context.Context, id string, quantity int) (bool, error) {
	atomic.AddInt32(&m.ReserveCallCount, 1)
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	item, ok := m.store.items[id]
	if !ok || item.Stock-item.ReservedStock < quantity {
		return false, nil
	}
	item.ReservedStock += quantity
	return true, nil
}

func (m *MockItemRepository) Release(ctx context.Context, id string, quantity int) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	item, ok := m.store.items[id]
	if !ok || item.ReservedStock < quantity {
		return repository.ErrReservationUnderflow
	}
	item.ReservedStock -= quantity
	return nil
}

func (m *MockItemRepository) Finalize(ctx context.Context, id string, quantity int) error {
	atomic.AddInt32(&m.FinalizeCallCount, 1)
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	item, ok := m.store.items[id]
	if !ok || item.ReservedStock < quantity {
		return repository.ErrReservationUnderflow
	}
	item.Stock -= quantity
	item.ReservedStock -= quantity
	return nil
}

// ──────────────────────────────────────────────
// MOCK UNIT OF WORK
// ──────────────────────────────────────────────

// MockUnitOfWork runs fn serialized and restores the store when fn fails.
type MockUnitOfWork struct {
	store    *memStore
	payments *MockPaymentRepository
	items    *MockItemRepository

	DoCallCount int32
}

func (u *MockUnitOfWork) Do(ctx context.Context, fn func(repos repository.TxRepositories) error) error {
	atomic.AddInt32(&u.DoCallCount, 1)
	u.store.txMu.Lock()
	defer u.store.txMu.Unlock()

	payments, items := u.store.snapshot()
	if err := fn(repository.TxRepositories{Payments: u.payments, Items: u.items}); err != nil {
		u.store.restore(payments, items)
		return err
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK CATALOG REPOSITORY
// ──────────────────────────────────────────────

// MockCatalogRepository prices shop items from the store and everything
// else from its own map.
type MockCatalogRepository struct {
	store *memStore

	mu       sync.Mutex
	entities map[string]*domain.CatalogEntity
}

// AddEntity adds a non-inventory entity.
func (m *MockCatalogRepository) AddEntity(entity *domain.CatalogEntity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[string(entity.Kind)+":"+entity.ID] = entity
}

func (m *MockCatalogRepository) GetEntity(ctx context.Context, kind domain.EntityKind, id string) (*domain.CatalogEntity, error) {
	if kind == domain.EntityKindShopItem {
		m.store.mu.Lock()
		defer m.store.mu.Unlock()
		item, ok := m.store.items[id]
		if !ok {
			return nil, repository.ErrNotFound
		}
		available := item.Available()
		return &domain.CatalogEntity{ID: id, Kind: kind, Price: item.Price, HasPrice: true, Available: &available}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entity, ok := m.entities[string(kind)+":"+id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *entity
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK PAYOUT & BENEFICIARY REPOSITORIES
// ──────────────────────────────────────────────

// MockPayoutRepository is a mock implementation of PayoutRepository.
type MockPayoutRepository struct {
	mu      sync.Mutex
	payouts map[string]*domain.Payout

	CreateError error
}

func NewMockPayoutRepository() *MockPayoutRepository {
	return &MockPayoutRepository{payouts: make(map[string]*domain.Payout)}
}

func (m *MockPayoutRepository) Create(ctx context.Context, payout *domain.Payout) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *payout
	m.payouts[payout.ID] = &copy
	return nil
}

func (m *MockPayoutRepository) GetByExternalRef(ctx context.Context, ownerID, ref string) (*domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payouts {
		if p.OwnerID == ownerID && p.ExternalRef == ref {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPayoutRepository) CompareAndTransition(ctx context.Context, id string, expected, next domain.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok || p.Status != expected {
		return false, nil
	}
	p.Status = next
	return true, nil
}

func (m *MockPayoutRepository) ListPending(ctx context.Context, limit int) ([]*domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Payout
	for _, p := range m.payouts {
		if p.Status == domain.PaymentStatusPending && len(result) < limit {
			copy := *p
			result = append(result, &copy)
		}
	}
	return result, nil
}

// Get returns a copy of a stored payout.
func (m *MockPayoutRepository) Get(id string) domain.Payout {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.payouts[id]
}

// MockBeneficiaryRepository is a mock implementation of BeneficiaryRepository.
type MockBeneficiaryRepository struct {
	beneficiaries map[string]*domain.Beneficiary
}

func (m *MockBeneficiaryRepository) GetValidated(ctx context.Context, id, ownerID string) (*domain.Beneficiary, error) {
	b, ok := m.beneficiaries[id]
	if !ok || b.OwnerID != ownerID || !b.Validated {
		return nil, repository.ErrNotFound
	}
	copy := *b
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a scriptable gateway.Gateway.
type MockGateway struct {
	name domain.Gateway

	mu             sync.Mutex
	lastPayment    gateway.CreatePaymentRequest
	refSeq         int32
	StatusNative   string
	PayoutNative   string
	Event          *gateway.WebhookEvent
	CreateError    error
	StatusError    error
	PayoutError    error
	ValidSignature string

	CreateCallCount       int32
	StatusCallCount       int32
	PayoutStatusCallCount int32
}

func NewMockGateway(name domain.Gateway) *MockGateway {
	return &MockGateway{name: name, ValidSignature: "valid"}
}

func (g *MockGateway) Name() domain.Gateway    { return g.name }
func (g *MockGateway) Provider() string        { return "" }
func (g *MockGateway) SignatureHeader() string { return "X-Signature" }

func (g *MockGateway) CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.PaymentSession, error) {
	atomic.AddInt32(&g.CreateCallCount, 1)
	g.mu.Lock()
	g.lastPayment = req
	g.mu.Unlock()
	if g.CreateError != nil {
		return nil, g.CreateError
	}
	n := atomic.AddInt32(&g.refSeq, 1)
	return &gateway.PaymentSession{
		ExternalRef:  fmt.Sprintf("%s-ref-%d", g.name, n),
		RedirectURL:  "https://gateway.example/checkout",
		Instructions: "pay",
	}, nil
}

// LastPayment returns the last create request.
func (g *MockGateway) LastPayment() gateway.CreatePaymentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastPayment
}

func (g *MockGateway) GetStatus(ctx context.Context, externalRef string) (*gateway.StatusResult, error) {
	atomic.AddInt32(&g.StatusCallCount, 1)
	if g.StatusError != nil {
		return nil, g.StatusError
	}
	return &gateway.StatusResult{ExternalRef: externalRef, NativeStatus: g.StatusNative}, nil
}

func (g *MockGateway) VerifyWebhook(ctx context.Context, payload []byte, signature string) (*gateway.WebhookEvent, error) {
	if signature != g.ValidSignature {
		return nil, gateway.ErrInvalidSignature
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ev := *g.Event
	return &ev, nil
}

// SetEvent sets the event returned by VerifyWebhook.
func (g *MockGateway) SetEvent(ev gateway.WebhookEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Event = &ev
}

func (g *MockGateway) CreatePayout(ctx context.Context, req gateway.CreatePayoutRequest) (*gateway.PayoutResult, error) {
	if g.PayoutError != nil {
		return nil, g.PayoutError
	}
	n := atomic.AddInt32(&g.refSeq, 1)
	return &gateway.PayoutResult{ExternalRef: fmt.Sprintf("%s-payout-%d", g.name, n), NativeStatus: "pending"}, nil
}

func (g *MockGateway) GetPayoutStatus(ctx context.Context, externalRef string) (*gateway.StatusResult, error) {
	atomic.AddInt32(&g.PayoutStatusCallCount, 1)
	if g.StatusError != nil {
		return nil, g.StatusError
	}
	return &gateway.StatusResult{ExternalRef: externalRef, NativeStatus: g.PayoutNative}, nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, userID string, kind NotificationType, refID, message string) {
	m.Called(userID, kind, refID)
}

// Ensure mocks implement interfaces.
var (
	_ repository.PaymentRepository     = (*MockPaymentRepository)(nil)
	_ repository.ItemRepository        = (*MockItemRepository)(nil)
	_ repository.UnitOfWork            = (*MockUnitOfWork)(nil)
	_ repository.CatalogRepository     = (*MockCatalogRepository)(nil)
	_ repository.PayoutRepository      = (*MockPayoutRepository)(nil)
	_ repository.BeneficiaryRepository = (*MockBeneficiaryRepository)(nil)
	_ gateway.Gateway                  = (*MockGateway)(nil)
	_ Notifier                         = (*mockNotifier)(nil)
)
