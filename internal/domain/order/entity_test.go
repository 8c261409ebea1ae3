package order

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/clubwear/storefront/internal/domain/cart"
	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPendingPayment,
		OrderStatusPaymentConfirmed,
		OrderStatusManuallyCanceled,
		OrderStatusCancelledByTime,
		OrderStatusDelivered,
	}
	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusPendingPayment: {
			OrderStatusPaymentConfirmed: true,
			OrderStatusManuallyCanceled: true,
			OrderStatusCancelledByTime:  true,
		},
		OrderStatusPaymentConfirmed: {
			OrderStatusDelivered:        true,
			OrderStatusManuallyCanceled: true,
		},
	}

	for _, from := range all {
		assert.True(t, from.IsValid())
		for _, to := range all {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, OrderStatus("shipped").IsValid())
}

func TestGenerateOrderNumber(t *testing.T) {
	now := time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-20241105-[0-9A-F]{6}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		number := GenerateOrderNumber(now)
		require.Regexp(t, pattern, number)
		seen[number] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestItemsFromLines(t *testing.T) {
	discount := decimal.NewFromInt(400)
	q := product.Product{
		ID:            "Q",
		Name:          "Short",
		Price:         decimal.NewFromInt(500),
		DiscountPrice: &discount,
		Stock:         []product.StockEntry{{Size: "S", Quantity: 5}},
	}
	p := product.Product{
		ID:    "P",
		Name:  "Camiseta",
		Price: decimal.NewFromInt(1000),
		Stock: []product.StockEntry{{Size: "M", Color: "Azul", Quantity: 3}},
	}

	items := ItemsFromLines([]cart.Line{
		{Product: p, Size: "M", Color: "Azul", Quantity: 2},
		{Product: q, Size: "S", Quantity: 5},
	})

	require.Len(t, items, 2)
	assert.Equal(t, OrderItem{ProductID: "P", ProductName: "Camiseta", Size: "M", Color: "Azul", Quantity: 2, Price: p.Price}, items[0])
	assert.True(t, items[1].Price.Equal(decimal.NewFromInt(400)))
	assert.False(t, items[1].ReservedStock)
	assert.True(t, ItemsTotal(items).Equal(decimal.NewFromInt(4000)))
}

func TestCustomerInfoValidate(t *testing.T) {
	valid := CustomerInfo{Name: "Ana", Email: "ana@example.com", Phone: "+54 11 5555 5555"}
	require.NoError(t, valid.Validate())

	tests := map[string]CustomerInfo{
		"missing name":  {Email: "ana@example.com", Phone: "1"},
		"missing phone": {Name: "Ana", Email: "ana@example.com"},
		"bad email":     {Name: "Ana", Email: "ana-at-example", Phone: "1"},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(c.Validate(), ErrInvalidCustomer))
		})
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&Order{Status: OrderStatusPendingPayment, ExpiresAt: &past}).IsExpired(now))
	assert.True(t, (&Order{Status: OrderStatusPendingPayment, ExpiresAt: &now}).IsExpired(now))
	assert.False(t, (&Order{Status: OrderStatusPendingPayment, ExpiresAt: &future}).IsExpired(now))
	assert.False(t, (&Order{Status: OrderStatusPendingPayment}).IsExpired(now))
	assert.False(t, (&Order{Status: OrderStatusPaymentConfirmed, ExpiresAt: &past}).IsExpired(now))
}

func TestValidateCreate(t *testing.T) {
	valid := func() *CreateRequest {
		return &CreateRequest{
			Customer:      CustomerInfo{Name: "Ana", Email: "ana@example.com", Phone: "1"},
			PaymentMethod: PaymentMethodCash,
			Items:         []OrderItem{{ProductID: "P", Size: "M", Quantity: 1, Price: decimal.NewFromInt(10)}},
		}
	}
	require.NoError(t, validateCreate(valid()))

	tests := []struct {
		name    string
		mutate  func(r *CreateRequest)
		wantErr error
	}{
		{"unknown payment method", func(r *CreateRequest) { r.PaymentMethod = "bitcoin" }, ErrPaymentMethod},
		{"no items", func(r *CreateRequest) { r.Items = nil }, ErrInvalidOrder},
		{"zero quantity", func(r *CreateRequest) { r.Items[0].Quantity = 0 }, ErrInvalidOrder},
		{"no size", func(r *CreateRequest) { r.Items[0].Size = "" }, ErrInvalidOrder},
		{"bad customer", func(r *CreateRequest) { r.Customer.Email = "" }, ErrInvalidCustomer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			assert.True(t, errors.Is(validateCreate(r), tt.wantErr))
		})
	}
}
