// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/clubwear/storefront/internal/domain/cart"
	"github.com/clubwear/storefront/internal/domain/order"
	"github.com/sirupsen/logrus"
)

// ErrEmptyCart is returned when checking out a cart with no lines
var ErrEmptyCart = errors.New("cart is empty")

// Carts is the part of the cart service checkout needs
type Carts interface {
	Load(ctx context.Context, sessionID string) (*cart.Manager, error)
	ClearCart(ctx context.Context, sessionID string) (*cart.CartResponse, error)
}

// OrderCreator persists orders and reserves their stock
type OrderCreator interface {
	Create(ctx context.Context, req *order.CreateRequest) (*order.Order, error)
}

// Request represents checkout data sent by the storefront
type Request struct {
	Customer      order.CustomerInfo  `json:"customer"`
	PaymentMethod order.PaymentMethod `json:"paymentMethod" binding:"required"`
}

// Result is the created order plus where to send the customer to pay
type Result struct {
	Order      *order.Order `json:"order"`
	PaymentURL string       `json:"paymentUrl,omitempty"`
}

// Service turns a session cart into an order
type Service struct {
	carts              Carts
	orders             OrderCreator
	paymentRedirectURL string
	log                *logrus.Logger
}

// NewService creates a new checkout service
func NewService(carts Carts, orders OrderCreator, paymentRedirectURL string, log *logrus.Logger) *Service {
	return &Service{
		carts:              carts,
		orders:             orders,
		paymentRedirectURL: paymentRedirectURL,
		log:                log,
	}
}

// PlaceOrder creates an order from the session cart and clears the cart
func (s *Service) PlaceOrder(ctx context.Context, sessionID string, req *Request) (*Result, error) {
	if err := req.Customer.Validate(); err != nil {
		return nil, err
	}
	if !req.PaymentMethod.IsValid() {
		return nil, fmt.Errorf("%w: %q", order.ErrPaymentMethod, req.PaymentMethod)
	}

	m, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if m.LineCount() == 0 {
		return nil, ErrEmptyCart
	}

	var redirect *url.URL
	if req.PaymentMethod == order.PaymentMethodMercadoPago {
		if redirect, err = s.paymentRedirect(); err != nil {
			return nil, err
		}
	}

	created, err := s.orders.Create(ctx, &order.CreateRequest{
		Customer:      req.Customer,
		Items:         order.ItemsFromLines(m.Lines()),
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"session_id":   sessionID,
		"order_number": created.OrderNumber,
	})
	if !created.Total.Equal(m.Total()) {
		entry.WithFields(logrus.Fields{
			"cart_total":  m.Total().String(),
			"order_total": created.Total.String(),
		}).Warn("Order total differs from cart total")
	}

	// The order already holds the stock; a failed clear only leaves a stale cart.
	if _, err := s.carts.ClearCart(ctx, sessionID); err != nil {
		entry.WithError(err).Warn("Failed to clear cart after checkout")
	}

	result := &Result{Order: created}
	if redirect != nil {
		q := redirect.Query()
		q.Set("external_reference", created.OrderNumber)
		redirect.RawQuery = q.Encode()
		result.PaymentURL = redirect.String()
	}
	return result, nil
}

// paymentRedirect parses the configured redirect before any order is written.
func (s *Service) paymentRedirect() (*url.URL, error) {
	u, err := url.Parse(s.paymentRedirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build payment url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("failed to build payment url: %q is not absolute", s.paymentRedirectURL)
	}
	return u, nil
}
