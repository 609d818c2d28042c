package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payledger/internal/domain"
	"payledger/internal/repository"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, func() *PaymentRepository, *ItemRepository, *UnitOfWork) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return mock, func() *PaymentRepository { return NewPaymentRepository(db) }, NewItemRepository(db), NewUnitOfWork(db)
}

func TestPaymentCompareAndTransition_OnlyFromExpectedStatus(t *testing.T) {
	mock, payments, _, _ := newMock(t)
	repo := payments()
	query := regexp.QuoteMeta(`UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`)

	mock.ExpectExec(query).
		WithArgs(domain.PaymentStatusSuccess, "pay-1", domain.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs(domain.PaymentStatusExpired, "pay-1", domain.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.CompareAndTransition(context.Background(), "pay-1", domain.PaymentStatusPending, domain.PaymentStatusSuccess)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.CompareAndTransition(context.Background(), "pay-1", domain.PaymentStatusPending, domain.PaymentStatusExpired)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestPaymentCreate_WritesGatewayRefColumn(t *testing.T) {
	mock, payments, _, _ := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO payments \(.*, paypal_id, created_at, updated_at\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payments \(.*, paypal_id, created_at, updated_at\)`).
		WillReturnError(&pq.Error{Code: "23505"})

	payment := &domain.Payment{
		ID:          "pay-1",
		PayerID:     "user-1",
		Amount:      decimal.NewFromInt(150),
		Currency:    "USD",
		Status:      domain.PaymentStatusPending,
		Kind:        domain.PurchaseKindItem,
		EntityID:    "item-1",
		EntityKind:  domain.EntityKindShopItem,
		Quantity:    3,
		Gateway:     domain.GatewayPayPal,
		ExternalRef: "ORDER-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	require.NoError(t, payments().Create(context.Background(), payment))
	assert.ErrorIs(t, payments().Create(context.Background(), payment), repository.ErrDuplicateExternalRef)
}

func TestPaymentGetByID_NoRows_ReturnsNotFound(t *testing.T) {
	mock, payments, _, _ := newMock(t)

	mock.ExpectQuery(`SELECT id, payer_id, .* FROM payments WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := payments().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPaymentGetByExternalRef_ScansCoalescedRef(t *testing.T) {
	mock, payments, _, _ := newMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "payer_id", "amount", "currency", "status", "kind", "entity_id", "entity_kind",
		"quantity", "gateway", "provider", "ref", "created_at", "updated_at",
	}).AddRow("pay-1", "user-1", "150.00", "USD", "PENDING", "ITEM_PURCHASE", "item-1", "SHOP_ITEM",
		3, "STRIPE", "", "cs_123", now, now)

	mock.ExpectQuery(`FROM payments WHERE stripe_id = \$1`).WithArgs("cs_123").WillReturnRows(rows)

	payment, err := payments().GetByExternalRef(context.Background(), domain.GatewayStripe, "cs_123")
	require.NoError(t, err)
	assert.Equal(t, "cs_123", payment.ExternalRef)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.True(t, decimal.NewFromInt(150).Equal(payment.Amount))
	assert.Equal(t, 3, payment.Quantity)
}

func TestPaymentListPending_PagesByKeysetCursor(t *testing.T) {
	mock, payments, _, _ := newMock(t)
	before := time.Now().UTC()
	created := before.Add(-time.Hour)
	query := `FROM payments WHERE status = \$1 AND created_at < \$2 AND \(created_at, id\) > \(\$3, \$4::uuid\) ORDER BY created_at ASC, id ASC LIMIT \$5`
	columns := []string{
		"id", "payer_id", "amount", "currency", "status", "kind", "entity_id", "entity_kind",
		"quantity", "gateway", "provider", "ref", "created_at", "updated_at",
	}

	mock.ExpectQuery(query).
		WithArgs(domain.PaymentStatusPending, before, time.Time{}, "00000000-0000-0000-0000-000000000000", 1).
		WillReturnRows(sqlmock.NewRows(columns).AddRow("pay-1", "user-1", "50", "USD", "PENDING", "ITEM_PURCHASE", "item-1", "SHOP_ITEM",
			1, "STRIPE", "", "cs_1", created, created))
	mock.ExpectQuery(query).
		WithArgs(domain.PaymentStatusPending, before, created, "pay-1", 1).
		WillReturnRows(sqlmock.NewRows(columns))

	page, err := payments().ListPending(context.Background(), before, repository.PendingCursor{}, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)

	next := repository.PendingCursor{CreatedAt: page[0].CreatedAt, ID: page[0].ID}
	page, err = payments().ListPending(context.Background(), before, next, 1)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestItemReserve_GuardedIncrement(t *testing.T) {
	mock, _, items, _ := newMock(t)
	query := `UPDATE shop_items\s+SET reserved_stock = reserved_stock \+ \$2\s+WHERE id = \$1 AND stock - reserved_stock >= \$2`

	mock.ExpectExec(query).WithArgs("item-1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("item-1", 2).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := items.Reserve(context.Background(), "item-1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = items.Reserve(context.Background(), "item-1", 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestItemReleaseAndFinalize_UnderflowWhenNothingReserved(t *testing.T) {
	mock, _, items, _ := newMock(t)

	mock.ExpectExec(`SET reserved_stock = reserved_stock - \$2\s+WHERE id = \$1 AND reserved_stock >= \$2`).
		WithArgs("item-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SET stock = stock - \$2, reserved_stock = reserved_stock - \$2\s+WHERE id = \$1 AND reserved_stock >= \$2`).
		WithArgs("item-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.ErrorIs(t, items.Release(context.Background(), "item-1", 1), repository.ErrReservationUnderflow)
	assert.NoError(t, items.Finalize(context.Background(), "item-1", 1))
}

func TestUnitOfWork_FailureRollsBack(t *testing.T) {
	mock, _, _, uow := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payments SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE shop_items`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := uow.Do(context.Background(), func(repos repository.TxRepositories) error {
		if _, err := repos.Payments.CompareAndTransition(context.Background(), "pay-1", domain.PaymentStatusPending, domain.PaymentStatusSuccess); err != nil {
			return err
		}
		return repos.Items.Finalize(context.Background(), "item-1", 2)
	})
	assert.ErrorIs(t, err, repository.ErrReservationUnderflow)
}

func TestUnitOfWork_SuccessCommits(t *testing.T) {
	mock, _, _, uow := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payments SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := uow.Do(context.Background(), func(repos repository.TxRepositories) error {
		_, err := repos.Payments.CompareAndTransition(context.Background(), "pay-1", domain.PaymentStatusPending, domain.PaymentStatusFailed)
		return err
	})
	assert.NoError(t, err)
}

func TestCatalogGetEntity_NullPriceHasNoPrice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(`SELECT price, NULL::INTEGER FROM subscription_plans WHERE id = \$1`).
		WithArgs("plan-1").
		WillReturnRows(sqlmock.NewRows([]string{"price", "available"}).AddRow(nil, nil))
	mock.ExpectQuery(`SELECT price, stock - reserved_stock FROM shop_items WHERE id = \$1`).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"price", "available"}).AddRow("50", 3))

	plan, err := repo.GetEntity(context.Background(), domain.EntityKindSubscriptionPlan, "plan-1")
	require.NoError(t, err)
	assert.False(t, plan.HasPrice)
	assert.Nil(t, plan.Available)

	item, err := repo.GetEntity(context.Background(), domain.EntityKindShopItem, "item-1")
	require.NoError(t, err)
	assert.True(t, item.HasPrice)
	assert.True(t, decimal.NewFromInt(50).Equal(item.Price))
	require.NotNil(t, item.Available)
	assert.Equal(t, 3, *item.Available)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stmts := Schema()
	for range stmts {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, stmts[4], "num_nonnulls(midtrans_id, stripe_id, paypal_id, crypto_id, amazon_id, apple_id, google_id) = 1")
}

func TestMigrate_StopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS shop_items`).WillReturnError(errors.New("permission denied"))

	assert.Error(t, Migrate(context.Background(), db))
}
