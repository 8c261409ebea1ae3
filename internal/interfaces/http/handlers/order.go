// internal/interfaces/http/handlers/order.go
package handlers

import (
	"context"
	"net/http"

	"github.com/clubwear/storefront/internal/domain/checkout"
	"github.com/clubwear/storefront/internal/domain/order"
	"github.com/gin-gonic/gin"
)

// OrderService is the public side of the order service
type OrderService interface {
	GetByNumber(ctx context.Context, orderNumber string) (*order.Order, error)
	PaymentStatus(ctx context.Context, id string) (*order.PaymentStatusResponse, error)
	Cancel(ctx context.Context, id, reason string) (*order.Order, error)
	ConfirmPayment(ctx context.Context, id, paymentID string) (*order.Order, error)
}

// Checkout turns the session cart into an order
type Checkout interface {
	PlaceOrder(ctx context.Context, sessionID string, req *checkout.Request) (*checkout.Result, error)
}

// OrderHandler handles public order endpoints
type OrderHandler struct {
	orders   OrderService
	checkout Checkout
	sessions *Sessions
}

// CancelOrderRequest identifies the order to cancel
type CancelOrderRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Reason  string `json:"reason"`
}

// ConfirmPaymentRequest carries the payment id returned by the payment provider
type ConfirmPaymentRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
}

type paymentStatusResponse struct {
	Message string `json:"message"`
	*order.PaymentStatusResponse
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderService, checkout Checkout, sessions *Sessions) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		checkout: checkout,
		sessions: sessions,
	}
}

// CreateOrder handles POST /orders - checks out the session cart
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	sessionID := h.sessions.Resolve(c)

	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.checkout.PlaceOrder(c.Request.Context(), sessionID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{
		"message": "Order created successfully",
		"order":   result.Order,
	}
	if result.PaymentURL != "" {
		response["paymentUrl"] = result.PaymentURL
	}
	c.JSON(http.StatusCreated, response)
}

// GetOrderByNumber handles GET /orders/number/:orderNumber
func (h *OrderHandler) GetOrderByNumber(c *gin.Context) {
	o, err := h.orders.GetByNumber(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"order":   o,
	})
}

// GetPaymentStatus handles GET /orders/:id/payment-status
func (h *OrderHandler) GetPaymentStatus(c *gin.Context) {
	status, err := h.orders.PaymentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, paymentStatusResponse{
		Message:               "Payment status retrieved successfully",
		PaymentStatusResponse: status,
	})
}

// CancelOrder handles POST /orders/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "Cancelled by customer"
	}

	o, err := h.orders.Cancel(c.Request.Context(), req.OrderID, reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled successfully",
		"order":   o,
	})
}

// ConfirmPayment handles POST /orders/confirm-payment
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	o, err := h.orders.ConfirmPayment(c.Request.Context(), req.OrderID, req.PaymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment confirmed successfully",
		"order":   o,
	})
}
