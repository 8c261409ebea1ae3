package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/clubwear/storefront/internal/config"
	"github.com/clubwear/storefront/internal/domain/cart"
	"github.com/clubwear/storefront/internal/domain/checkout"
	"github.com/clubwear/storefront/internal/domain/order"
	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/clubwear/storefront/internal/interfaces/http/handlers"
	"github.com/clubwear/storefront/internal/interfaces/http/middleware"
	"github.com/clubwear/storefront/internal/interfaces/http/routes"
	"github.com/clubwear/storefront/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionHeader = "X-Cart-Session"

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryCatalog struct {
	products map[string]*product.Product
}

func (m *memoryCatalog) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return p.Clone(), nil
}

func (m *memoryCatalog) GetActive(ctx context.Context, id string) (*product.Product, error) {
	p, err := m.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

func (m *memoryCatalog) List(ctx context.Context, filter product.ListFilter) ([]product.Product, error) {
	var out []product.Product
	for _, id := range []string{"P", "Q", "H"} {
		p := m.products[id]
		if !p.IsActive && !filter.IncludeInactive {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, *p.Clone())
	}
	return out, nil
}

type memoryOrders struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

func (m *memoryOrders) Create(ctx context.Context, req *order.CreateRequest) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &order.Order{
		ID:            "order-1",
		OrderNumber:   "ORD-20240101-AAAAAA",
		Customer:      req.Customer,
		Status:        order.OrderStatusPendingPayment,
		Total:         order.ItemsTotal(req.Items),
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: order.PaymentStatusPending,
		Items:         req.Items,
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *memoryOrders) get(id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (m *memoryOrders) GetByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *memoryOrders) PaymentStatus(ctx context.Context, id string) (*order.PaymentStatusResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return &order.PaymentStatusResponse{
		OrderID:           o.ID,
		OrderStatus:       o.Status,
		PaymentID:         o.PaymentID,
		PaymentStatus:     o.PaymentStatus,
		TransactionAmount: o.Total,
	}, nil
}

func (m *memoryOrders) Cancel(ctx context.Context, id, reason string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(order.OrderStatusManuallyCanceled) {
		return nil, order.ErrInvalidTransition
	}
	o.Status = order.OrderStatusManuallyCanceled
	return o, nil
}

func (m *memoryOrders) ConfirmPayment(ctx context.Context, id, paymentID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(order.OrderStatusPaymentConfirmed) {
		return nil, order.ErrInvalidTransition
	}
	o.Status = order.OrderStatusPaymentConfirmed
	o.PaymentID = paymentID
	o.PaymentStatus = order.PaymentStatusApproved
	return o, nil
}

type testAPI struct {
	router *gin.Engine
	orders *memoryOrders
}

func newTestAPI(t *testing.T, mw ...gin.HandlerFunc) *testAPI {
	t.Helper()
	discount := decimal.NewFromInt(400)
	catalog := &memoryCatalog{products: map[string]*product.Product{
		"P": {ID: "P", Name: "Camiseta", Category: product.CategoryRugbyShirts, Price: decimal.NewFromInt(1000),
			Stock: []product.StockEntry{{Size: "M", Color: "Azul", Quantity: 3}}, IsActive: true},
		"Q": {ID: "Q", Name: "Short", Category: product.CategoryRugbyShorts, Price: decimal.NewFromInt(500),
			DiscountPrice: &discount, Stock: []product.StockEntry{{Size: "S", Quantity: 5}}, IsActive: true},
		"H": {ID: "H", Name: "Buzo", Category: product.CategorySweatshirts, Price: decimal.NewFromInt(900),
			Stock: []product.StockEntry{{Size: "L", Quantity: 1}}, IsActive: false},
	}}

	cfg := &config.Config{Cart: config.CartConfig{
		SessionTTL:    time.Hour,
		SessionCookie: "cart_session",
		SessionHeader: sessionHeader,
	}}
	log := logger.Discard()
	sessions := handlers.NewSessions(cfg)
	carts := cart.NewService(cart.NewMemoryStore(time.Hour), catalog, log)
	orders := &memoryOrders{orders: map[string]*order.Order{}}
	checkoutService := checkout.NewService(carts, orders, "https://pay.example.com/redirect", log)

	r := gin.New()
	r.Use(mw...)
	routes.SetupRoutes(r.Group("/api/v1"), routes.Handlers{
		Cart:    handlers.NewCartHandler(carts, sessions),
		Product: handlers.NewProductHandler(catalog),
		Order:   handlers.NewOrderHandler(orders, checkoutService, sessions),
	})

	return &testAPI{router: r, orders: orders}
}

func (a *testAPI) do(t *testing.T, method, path, session string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var payload map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	}
	return w, payload
}

func (a *testAPI) newSession(t *testing.T) string {
	t.Helper()
	w, _ := a.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := w.Header().Get(sessionHeader)
	require.Len(t, session, 36)
	return session
}

func cartData(t *testing.T, payload map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := payload["data"].(map[string]interface{})
	require.True(t, ok, "response has a data object")
	return data
}

func TestCart_SessionIssuedAndReused(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := w.Header().Get(sessionHeader)
	assert.Len(t, session, 36)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "cart_session="+session)

	w, _ = api.do(t, http.MethodGet, "/api/v1/cart", session, nil)
	assert.Equal(t, session, w.Header().Get(sessionHeader))

	w, _ = api.do(t, http.MethodGet, "/api/v1/cart", "not-a-uuid", nil)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(sessionHeader))
}

func TestCart_AddAndTotals(t *testing.T) {
	api := newTestAPI(t)
	session := api.newSession(t)

	w, payload := api.do(t, http.MethodPost, "/api/v1/cart/items", session,
		gin.H{"productId": "P", "size": "M", "color": "Azul", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	data := cartData(t, payload)
	assert.Equal(t, true, data["drawerOpen"])

	w, payload = api.do(t, http.MethodPost, "/api/v1/cart/items", session,
		gin.H{"productId": "Q", "size": "S", "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)
	totals := cartData(t, payload)["totals"].(map[string]interface{})
	assert.Equal(t, float64(4000), totals["total"])
	assert.Equal(t, float64(7), totals["itemCount"])
	assert.Equal(t, float64(2), totals["lineCount"])

	w, payload = api.do(t, http.MethodGet, "/api/v1/cart/count", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(7), cartData(t, payload)["count"])
}

func TestCart_StockLimitReached(t *testing.T) {
	api := newTestAPI(t)
	session := api.newSession(t)

	w, _ := api.do(t, http.MethodPost, "/api/v1/cart/items", session,
		gin.H{"productId": "P", "size": "M", "color": "Azul", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w, payload := api.do(t, http.MethodPost, "/api/v1/cart/items", session,
		gin.H{"productId": "P", "size": "M", "color": "Azul", "quantity": 2})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "stock limit reached", payload["error"])
	assert.Equal(t, float64(3), payload["available"])
	assert.Equal(t, float64(4), payload["requested"])

	w, payload = api.do(t, http.MethodGet, "/api/v1/cart/count", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), cartData(t, payload)["count"], "rejected add leaves the cart unchanged")
}

func TestCart_AddErrors(t *testing.T) {
	api := newTestAPI(t)
	session := api.newSession(t)

	tests := []struct {
		name string
		body gin.H
		code int
	}{
		{"missing size", gin.H{"productId": "P", "quantity": 1}, http.StatusBadRequest},
		{"zero quantity", gin.H{"productId": "P", "size": "M", "quantity": 0}, http.StatusBadRequest},
		{"unknown product", gin.H{"productId": "X", "size": "M", "quantity": 1}, http.StatusNotFound},
		{"inactive product", gin.H{"productId": "H", "size": "L", "quantity": 1}, http.StatusNotFound},
		{"unknown variant", gin.H{"productId": "P", "size": "XXL", "quantity": 1}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := api.do(t, http.MethodPost, "/api/v1/cart/items", session, tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestCart_UpdateRemoveClear(t *testing.T) {
	api := newTestAPI(t)
	session := api.newSession(t)

	api.do(t, http.MethodPost, "/api/v1/cart/items", session, gin.H{"productId": "P", "size": "M", "color": "Azul", "quantity": 1})
	api.do(t, http.MethodPost, "/api/v1/cart/items", session, gin.H{"productId": "Q", "size": "S", "quantity": 1})

	w, _ := api.do(t, http.MethodPut, "/api/v1/cart/items", session,
		gin.H{"productId": "P", "size": "M", "color": "Rojo", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, payload := api.do(t, http.MethodPut, "/api/v1/cart/items", session,
		gin.H{"productId": "P", "size": "M", "color": "Azul", "quantity": 4})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, float64(3), payload["available"])

	w, payload = api.do(t, http.MethodPut, "/api/v1/cart/items", session,
		gin.H{"productId": "P", "size": "M", "color": "Azul", "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), cartData(t, payload)["totals"].(map[string]interface{})["itemCount"])

	w, payload = api.do(t, http.MethodDelete, "/api/v1/cart/items?productId=Q&size=S", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, cartData(t, payload)["items"], 1)

	w, _ = api.do(t, http.MethodDelete, "/api/v1/cart/items", session, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, payload = api.do(t, http.MethodDelete, "/api/v1/cart", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cartData(t, payload)["items"])
	assert.Equal(t, true, cartData(t, payload)["drawerOpen"], "clear does not touch the drawer")
}

func TestCart_Drawer(t *testing.T) {
	api := newTestAPI(t)
	session := api.newSession(t)

	w, _ := api.do(t, http.MethodPut, "/api/v1/cart/drawer", session, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, payload := api.do(t, http.MethodPut, "/api/v1/cart/drawer", session, gin.H{"open": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, cartData(t, payload)["drawerOpen"])

	w, payload = api.do(t, http.MethodPut, "/api/v1/cart/drawer", session, gin.H{"open": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, cartData(t, payload)["drawerOpen"])
}

func TestCart_Validate(t *testing.T) {
	api := newTestAPI(t)
	session := api.newSession(t)

	w, payload := api.do(t, http.MethodPost, "/api/v1/cart/validate", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, cartData(t, payload)["valid"])
}

func TestProducts(t *testing.T) {
	api := newTestAPI(t)

	w, payload := api.do(t, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), payload["count"])

	w, payload = api.do(t, http.MethodGet, "/api/v1/products?category=shorts-rugby", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), payload["count"])

	w, _ = api.do(t, http.MethodGet, "/api/v1/products?category=remeras", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, payload = api.do(t, http.MethodGet, "/api/v1/products/Q", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := payload["product"].(map[string]interface{})
	assert.Equal(t, float64(400), p["discountPrice"])

	w, _ = api.do(t, http.MethodGet, "/api/v1/products/H", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

var customer = gin.H{"name": "Ana", "email": "ana@example.com", "phone": "1155555555"}

func TestOrders_Checkout(t *testing.T) {
	api := newTestAPI(t)
	session := api.newSession(t)

	w, _ := api.do(t, http.MethodPost, "/api/v1/orders", session, gin.H{"customer": customer, "paymentMethod": "cash"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty cart")

	api.do(t, http.MethodPost, "/api/v1/cart/items", session, gin.H{"productId": "P", "size": "M", "color": "Azul", "quantity": 2})

	w, _ = api.do(t, http.MethodPost, "/api/v1/orders", session, gin.H{"customer": customer})
	assert.Equal(t, http.StatusBadRequest, w.Code, "payment method is required")

	w, payload := api.do(t, http.MethodPost, "/api/v1/orders", session, gin.H{"customer": customer, "paymentMethod": "mercado_pago"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://pay.example.com/redirect?external_reference=ORD-20240101-AAAAAA", payload["paymentUrl"])
	created := payload["order"].(map[string]interface{})
	assert.Equal(t, float64(2000), created["total"])

	w, payload = api.do(t, http.MethodGet, "/api/v1/cart/count", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), cartData(t, payload)["count"])
}

func TestOrders_PublicLifecycle(t *testing.T) {
	api := newTestAPI(t)
	session := api.newSession(t)
	api.do(t, http.MethodPost, "/api/v1/cart/items", session, gin.H{"productId": "Q", "size": "S", "quantity": 1})
	w, _ := api.do(t, http.MethodPost, "/api/v1/orders", session, gin.H{"customer": customer, "paymentMethod": "cash"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, payload := api.do(t, http.MethodGet, "/api/v1/orders/number/ORD-20240101-AAAAAA", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "order-1", payload["order"].(map[string]interface{})["id"])

	w, _ = api.do(t, http.MethodGet, "/api/v1/orders/number/ORD-0", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/v1/orders/confirm-payment", "", gin.H{"orderId": "order-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/v1/orders/confirm-payment", "", gin.H{"orderId": "order-1", "paymentId": "mp-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w, payload = api.do(t, http.MethodGet, "/api/v1/orders/order-1/payment-status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", payload["paymentStatus"])
	assert.Equal(t, "mp-1", payload["paymentId"])
	assert.NotEmpty(t, payload["message"])

	w, payload = api.do(t, http.MethodPost, "/api/v1/orders/cancel", "", gin.H{"orderId": "order-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "manually-canceled", payload["order"].(map[string]interface{})["status"])

	w, _ = api.do(t, http.MethodPost, "/api/v1/orders/cancel", "", gin.H{"orderId": "order-1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCart_ChunkedBodyOverLimit(t *testing.T) {
	api := newTestAPI(t, middleware.RequestSizeLimit(64))
	session := api.newSession(t)

	raw, err := json.Marshal(gin.H{"productId": "P", "size": "M", "color": string(bytes.Repeat([]byte("a"), 256)), "quantity": 1})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", io.NopCloser(bytes.NewReader(raw)))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionHeader, session)

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"error":"Request body too large"}`, w.Body.String())

	w, payload := api.do(t, http.MethodGet, "/api/v1/cart/count", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), cartData(t, payload)["count"])
}
