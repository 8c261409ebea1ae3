// internal/domain/order/entity.go
package order

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/clubwear/storefront/internal/domain/cart"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrPaymentMethod     = errors.New("unsupported payment method")
	ErrInvalidCustomer   = errors.New("invalid customer information")
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPendingPayment   OrderStatus = "pending-payment"
	OrderStatusPaymentConfirmed OrderStatus = "payment-confirmed"
	OrderStatusManuallyCanceled OrderStatus = "manually-canceled"
	OrderStatusCancelledByTime  OrderStatus = "cancelled-by-time"
	OrderStatusDelivered        OrderStatus = "delivered"
)

var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {
		OrderStatusPaymentConfirmed,
		OrderStatusManuallyCanceled,
		OrderStatusCancelledByTime,
	},
	OrderStatusPaymentConfirmed: {
		OrderStatusDelivered,
		OrderStatusManuallyCanceled,
	},
}

// IsValid reports whether s is a known status
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusPaymentConfirmed, OrderStatusManuallyCanceled,
		OrderStatusCancelledByTime, OrderStatusDelivered:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status machine allows s -> next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsCancelled reports whether the order was cancelled by any means
func (s OrderStatus) IsCancelled() bool {
	return s == OrderStatusManuallyCanceled || s == OrderStatusCancelledByTime
}

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// PaymentMethod is how the customer pays
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodMercadoPago PaymentMethod = "mercado_pago"
)

// IsValid reports whether m is a supported payment method
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCash || m == PaymentMethodMercadoPago
}

// CustomerInfo is the contact data of a guest customer (embedded in Order)
type CustomerInfo struct {
	Name  string `gorm:"size:255;not null" json:"name"`
	Email string `gorm:"size:255;not null;index" json:"email"`
	Phone string `gorm:"size:50;not null" json:"phone"`
}

// Validate checks every contact field is present and the email parses
func (c CustomerInfo) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	}
	if strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidCustomer)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: email is invalid", ErrInvalidCustomer)
	}
	return nil
}

// Order represents the order entity
type Order struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	OrderNumber string          `gorm:"uniqueIndex;not null;size:32" json:"orderNumber"`
	Customer    CustomerInfo    `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Status      OrderStatus     `gorm:"not null;size:32;index" json:"status"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`

	// Payment
	PaymentMethod       PaymentMethod `gorm:"not null;size:32" json:"paymentMethod"`
	PaymentID           string        `gorm:"size:100" json:"paymentId,omitempty"`
	PaymentStatus       PaymentStatus `gorm:"size:32" json:"paymentStatus,omitempty"`
	PaymentStatusDetail string        `gorm:"size:255" json:"paymentStatusDetail,omitempty"`
	PaymentDate         *time.Time    `json:"paymentDate,omitempty"`
	PreferenceID        string        `gorm:"size:100" json:"preferenceId,omitempty"`

	// Timestamps
	ExpiresAt   *time.Time `gorm:"index" json:"expiresAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Relationships
	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"statusHistory,omitempty"`
}

// OrderItem represents items in an order
type OrderItem struct {
	ID            uint            `gorm:"primaryKey" json:"-"`
	OrderID       string          `gorm:"not null;size:36;index" json:"-"`
	ProductID     string          `gorm:"not null;size:36;index" json:"productId"`
	ProductName   string          `gorm:"not null;size:255" json:"productName"`
	Size          string          `gorm:"not null;size:20" json:"size"`
	Color         string          `gorm:"size:50" json:"color"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"` // effective unit price
	ReservedStock bool            `gorm:"not null" json:"reservedStock"`
}

// Subtotal is Price times Quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatusHistory tracks order status changes
type OrderStatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"-"`
	OrderID   string      `gorm:"not null;size:36;index" json:"-"`
	From      OrderStatus `gorm:"size:32" json:"from,omitempty"`
	Status    OrderStatus `gorm:"not null;size:32" json:"status"`
	Comment   string      `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (OrderStatusHistory) TableName() string { return "order_status_history" }

// BeforeCreate assigns an ID to new orders
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// GenerateOrderNumber builds an order number of the form ORD-YYYYMMDD-XXXXXX
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// ItemsFromLines turns cart lines into order items priced at the effective unit price
func ItemsFromLines(lines []cart.Line) []OrderItem {
	items := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, OrderItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Size:        line.Size,
			Color:       line.Color,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice(),
		})
	}
	return items
}

// ItemsTotal sums the subtotal of every item
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// IsExpired reports whether a pending order has passed its payment deadline
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status == OrderStatusPendingPayment && o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

// AddStatusHistory records a status change
func (o *Order) AddStatusHistory(from, to OrderStatus, comment string, at time.Time) {
	o.StatusHistory = append(o.StatusHistory, OrderStatusHistory{
		OrderID:   o.ID,
		From:      from,
		Status:    to,
		Comment:   comment,
		CreatedAt: at,
	})
}
