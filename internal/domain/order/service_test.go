package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubwear/storefront/internal/config"
	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/clubwear/storefront/internal/pkg/logger"
	"github.com/clubwear/storefront/internal/pkg/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	db := testdb.New(t, &product.Product{}, &Order{}, &OrderItem{}, &OrderStatusHistory{})
	cfg := &config.Config{Order: config.OrderConfig{PaymentTTL: time.Hour}}
	return NewService(db, cfg, logger.Discard()), db
}

func seedProduct(t *testing.T, db *gorm.DB, stock ...product.StockEntry) *product.Product {
	t.Helper()
	p := &product.Product{
		Name:     "Camiseta titular",
		Category: product.CategoryRugbyShirts,
		Price:    decimal.NewFromInt(1000),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func reloadProduct(t *testing.T, db *gorm.DB, id string) *product.Product {
	t.Helper()
	var p product.Product
	require.NoError(t, db.Where("id = ?", id).First(&p).Error)
	return &p
}

func newRequest(method PaymentMethod, items ...OrderItem) *CreateRequest {
	return &CreateRequest{
		Customer:      CustomerInfo{Name: "Ana", Email: "ana@example.com", Phone: "1155555555"},
		PaymentMethod: method,
		Items:         items,
	}
}

func TestService_CreateReservesStock(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	p := seedProduct(t, db, product.StockEntry{Size: "M", Color: "Azul", Quantity: 3})

	created, err := svc.Create(ctx, newRequest(PaymentMethodMercadoPago,
		OrderItem{ProductID: p.ID, Size: "M", Color: "Azul", Quantity: 2, Price: decimal.NewFromInt(1000)},
	))
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPendingPayment, created.Status)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{6}$`, created.OrderNumber)
	assert.True(t, created.Total.Equal(decimal.NewFromInt(2000)))
	require.NotNil(t, created.ExpiresAt)
	assert.Equal(t, "Camiseta titular", created.Items[0].ProductName)

	assert.Equal(t, 1, reloadProduct(t, db, p.ID).AvailableStock("M", "Azul"))

	fetched, err := svc.GetByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	require.Len(t, fetched.Items, 1)
	assert.True(t, fetched.Items[0].ReservedStock)
	require.Len(t, fetched.StatusHistory, 1)
	assert.Equal(t, OrderStatusPendingPayment, fetched.StatusHistory[0].Status)
}

func TestService_CreateRollsBackOnInsufficientStock(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	p := seedProduct(t, db, product.StockEntry{Size: "M", Quantity: 3})
	q := seedProduct(t, db, product.StockEntry{Size: "S", Quantity: 1})

	_, err := svc.Create(ctx, newRequest(PaymentMethodCash,
		OrderItem{ProductID: p.ID, Size: "M", Quantity: 2, Price: decimal.NewFromInt(1000)},
		OrderItem{ProductID: q.ID, Size: "S", Quantity: 2, Price: decimal.NewFromInt(1000)},
	))
	assert.True(t, errors.Is(err, product.ErrInsufficientStock))

	assert.Equal(t, 3, reloadProduct(t, db, p.ID).AvailableStock("M", ""))
	assert.Equal(t, 1, reloadProduct(t, db, q.ID).AvailableStock("S", ""))

	var count int64
	require.NoError(t, db.Model(&Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestService_CreateUnknownProduct(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Create(context.Background(), newRequest(PaymentMethodCash,
		OrderItem{ProductID: "00000000-0000-0000-0000-000000000000", Size: "M", Quantity: 1},
	))
	assert.True(t, errors.Is(err, product.ErrProductNotFound))
}

func TestService_CancelReleasesStock(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	p := seedProduct(t, db, product.StockEntry{Size: "M", Quantity: 3})

	created, err := svc.Create(ctx, newRequest(PaymentMethodCash,
		OrderItem{ProductID: p.ID, Size: "M", Quantity: 3, Price: decimal.NewFromInt(1000)},
	))
	require.NoError(t, err)
	assert.Nil(t, created.ExpiresAt, "cash orders have no payment deadline")
	assert.Zero(t, reloadProduct(t, db, p.ID).AvailableStock("M", ""))

	cancelled, err := svc.Cancel(ctx, created.ID, "customer changed their mind")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusManuallyCanceled, cancelled.Status)
	assert.Equal(t, PaymentStatusCancelled, cancelled.PaymentStatus)
	assert.Equal(t, 3, reloadProduct(t, db, p.ID).AvailableStock("M", ""))

	_, err = svc.Cancel(ctx, created.ID, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, 3, reloadProduct(t, db, p.ID).AvailableStock("M", ""), "stock is released once")
}

func TestService_PaymentLifecycle(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	p := seedProduct(t, db, product.StockEntry{Size: "M", Quantity: 5})
	item := OrderItem{ProductID: p.ID, Size: "M", Quantity: 1, Price: decimal.NewFromInt(1000)}

	cash, err := svc.Create(ctx, newRequest(PaymentMethodCash, item))
	require.NoError(t, err)
	mp, err := svc.Create(ctx, newRequest(PaymentMethodMercadoPago, item))
	require.NoError(t, err)

	_, err = svc.ConfirmPayment(ctx, cash.ID, "123")
	assert.True(t, errors.Is(err, ErrPaymentMethod))
	_, err = svc.ConfirmCashPayment(ctx, mp.ID)
	assert.True(t, errors.Is(err, ErrPaymentMethod))

	_, err = svc.MarkDelivered(ctx, cash.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "unpaid orders cannot be delivered")

	confirmed, err := svc.ConfirmCashPayment(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaymentConfirmed, confirmed.Status)
	assert.Equal(t, PaymentStatusApproved, confirmed.PaymentStatus)
	assert.NotNil(t, confirmed.PaymentDate)

	paid, err := svc.ConfirmPayment(ctx, mp.ID, "mp-987")
	require.NoError(t, err)
	assert.Equal(t, "mp-987", paid.PaymentID)
	assert.Nil(t, paid.ExpiresAt)

	status, err := svc.PaymentStatus(ctx, mp.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusApproved, status.PaymentStatus)
	assert.True(t, status.TransactionAmount.Equal(decimal.NewFromInt(1000)))

	delivered, err := svc.MarkDelivered(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)

	_, err = svc.Cancel(ctx, cash.ID, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	history, err := svc.Get(ctx, cash.ID)
	require.NoError(t, err)
	require.Len(t, history.StatusHistory, 3)
	assert.Equal(t, OrderStatusPaymentConfirmed, history.StatusHistory[1].Status)
	assert.Equal(t, OrderStatusPendingPayment, history.StatusHistory[1].From)
}

func TestService_ExpireStale(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	p := seedProduct(t, db, product.StockEntry{Size: "M", Quantity: 4})
	item := OrderItem{ProductID: p.ID, Size: "M", Quantity: 2, Price: decimal.NewFromInt(1000)}

	base := time.Now().UTC()
	svc.now = func() time.Time { return base }

	stale, err := svc.Create(ctx, newRequest(PaymentMethodMercadoPago, item))
	require.NoError(t, err)
	paid, err := svc.Create(ctx, newRequest(PaymentMethodMercadoPago, item))
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, paid.ID, "mp-1")
	require.NoError(t, err)
	assert.Zero(t, reloadProduct(t, db, p.ID).AvailableStock("M", ""))

	svc.now = func() time.Time { return base.Add(50 * time.Minute) }
	soon, err := svc.ExpiringSoon(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, stale.ID, soon[0].ID)

	count, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	count, err = svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expired, err := svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelledByTime, expired.Status)
	assert.Equal(t, 2, reloadProduct(t, db, p.ID).AvailableStock("M", ""))

	stillPaid, err := svc.Get(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaymentConfirmed, stillPaid.Status)
}

func TestService_List(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()
	p := seedProduct(t, db, product.StockEntry{Size: "M", Quantity: 5})
	item := OrderItem{ProductID: p.ID, Size: "M", Quantity: 1, Price: decimal.NewFromInt(1000)}

	first, err := svc.Create(ctx, newRequest(PaymentMethodCash, item))
	require.NoError(t, err)
	other := newRequest(PaymentMethodCash, item)
	other.Customer.Email = "Bruno@Example.com"
	_, err = svc.Create(ctx, other)
	require.NoError(t, err)
	_, err = svc.ConfirmCashPayment(ctx, first.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byEmail, err := svc.List(ctx, ListFilter{CustomerEmail: "bruno@example.com"})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)

	confirmed, err := svc.List(ctx, ListFilter{Status: OrderStatusPaymentConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, first.ID, confirmed[0].ID)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}
