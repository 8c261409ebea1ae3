// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clubwear/storefront/internal/config"
	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errNotExpired = errors.New("order has not expired")

// Service handles order business logic
type Service struct {
	db         *gorm.DB
	paymentTTL time.Duration
	log        *logrus.Logger
	now        func() time.Time
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		db:         db,
		paymentTTL: cfg.Order.PaymentTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest represents order creation data
type CreateRequest struct {
	Customer      CustomerInfo  `json:"customer"`
	Items         []OrderItem   `json:"items"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// ListFilter narrows an order listing
type ListFilter struct {
	Status        OrderStatus `form:"status"`
	CustomerEmail string      `form:"customerEmail"`
}

// PaymentStatusResponse summarizes the payment side of an order
type PaymentStatusResponse struct {
	OrderID             string          `json:"orderId"`
	OrderStatus         OrderStatus     `json:"orderStatus"`
	PaymentID           string          `json:"paymentId,omitempty"`
	PaymentStatus       PaymentStatus   `json:"paymentStatus,omitempty"`
	PaymentStatusDetail string          `json:"paymentStatusDetail,omitempty"`
	TransactionAmount   decimal.Decimal `json:"transactionAmount"`
	DateCreated         time.Time       `json:"dateCreated"`
	DateApproved        *time.Time      `json:"dateApproved,omitempty"`
}

// Create stores a new order and reserves its stock in the same transaction
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Order, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := s.now()
	order := &Order{
		OrderNumber:   GenerateOrderNumber(now),
		Customer:      req.Customer,
		Status:        OrderStatusPendingPayment,
		Total:         ItemsTotal(req.Items),
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: PaymentStatusPending,
		Items:         append([]OrderItem(nil), req.Items...),
	}
	if req.PaymentMethod != PaymentMethodCash {
		expiresAt := now.Add(s.paymentTTL)
		order.ExpiresAt = &expiresAt
	}
	order.AddStatusHistory("", OrderStatusPendingPayment, "order created", now)

	// Start transaction
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to start order transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := s.reserveStock(tx, order.Items); err != nil {
		tx.Rollback()
		return nil, err
	}
	for i := range order.Items {
		order.Items[i].ReservedStock = true
	}

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Commit transaction
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit order transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"payment_method": order.PaymentMethod,
		"total":          order.Total.String(),
		"items":          len(order.Items),
	}).Info("Order created")

	return order, nil
}

// Get retrieves an order with its items and history
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.findOne(ctx, "id = ?", id)
}

// GetByNumber retrieves an order by its public order number
func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return s.findOne(ctx, "order_number = ?", orderNumber)
}

// List returns orders newest first
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	query := s.db.WithContext(ctx).Model(&Order{}).Preload("Items")

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerEmail != "" {
		query = query.Where("LOWER(customer_email) = ?", strings.ToLower(strings.TrimSpace(filter.CustomerEmail)))
	}

	var orders []Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// PaymentStatus reports the payment state of an order
func (s *Service) PaymentStatus(ctx context.Context, id string) (*PaymentStatusResponse, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusResponse{
		OrderID:             order.ID,
		OrderStatus:         order.Status,
		PaymentID:           order.PaymentID,
		PaymentStatus:       order.PaymentStatus,
		PaymentStatusDetail: order.PaymentStatusDetail,
		TransactionAmount:   order.Total,
		DateCreated:         order.CreatedAt,
		DateApproved:        order.PaymentDate,
	}, nil
}

// ConfirmCashPayment marks a cash order as paid
func (s *Service) ConfirmCashPayment(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, OrderStatusPaymentConfirmed, "cash payment confirmed", func(tx *gorm.DB, o *Order, now time.Time) error {
		if o.PaymentMethod != PaymentMethodCash {
			return fmt.Errorf("%w: order %s is paid with %s", ErrPaymentMethod, o.OrderNumber, o.PaymentMethod)
		}
		o.PaymentStatus = PaymentStatusApproved
		o.PaymentDate = &now
		o.ExpiresAt = nil
		return nil
	})
}

// ConfirmPayment records an approved third-party payment
func (s *Service) ConfirmPayment(ctx context.Context, id, paymentID string) (*Order, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, fmt.Errorf("%w: payment id is required", ErrInvalidOrder)
	}
	return s.transition(ctx, id, OrderStatusPaymentConfirmed, "payment approved", func(tx *gorm.DB, o *Order, now time.Time) error {
		if o.PaymentMethod == PaymentMethodCash {
			return fmt.Errorf("%w: cash orders are confirmed manually", ErrPaymentMethod)
		}
		o.PaymentID = paymentID
		o.PaymentStatus = PaymentStatusApproved
		o.PaymentStatusDetail = "accredited"
		o.PaymentDate = &now
		o.ExpiresAt = nil
		return nil
	})
}

// MarkDelivered closes a paid order
func (s *Service) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, OrderStatusDelivered, "order delivered", func(tx *gorm.DB, o *Order, now time.Time) error {
		o.DeliveredAt = &now
		return nil
	})
}

// Cancel cancels an order and returns its reserved stock
func (s *Service) Cancel(ctx context.Context, id, reason string) (*Order, error) {
	if reason == "" {
		reason = "cancelled"
	}
	return s.transition(ctx, id, OrderStatusManuallyCanceled, reason, nil)
}

// ExpiringSoon lists pending orders whose payment deadline falls within the window
func (s *Service) ExpiringSoon(ctx context.Context, within time.Duration) ([]Order, error) {
	now := s.now()
	var orders []Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND expires_at > ? AND expires_at <= ?", OrderStatusPendingPayment, now, now.Add(within)).
		Order("expires_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring orders: %w", err)
	}
	return orders, nil
}

// ExpireStale cancels every pending order past its payment deadline and
// returns how many were cancelled.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Order{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", OrderStatusPendingPayment, s.now()).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find expired orders: %w", err)
	}

	expired := 0
	for _, id := range ids {
		_, err := s.transition(ctx, id, OrderStatusCancelledByTime, "payment window expired", func(tx *gorm.DB, o *Order, now time.Time) error {
			if !o.IsExpired(now) {
				return errNotExpired
			}
			return nil
		})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, errNotExpired):
			// paid or cancelled since the scan
		default:
			return expired, err
		}
	}
	return expired, nil
}

// RunExpiryWorker calls ExpireStale every interval until ctx is done
func (s *Service) RunExpiryWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.ExpireStale(ctx)
			if err != nil {
				s.log.WithError(err).Error("Order expiry run failed")
				continue
			}
			if count > 0 {
				s.log.WithField("expired", count).Info("Expired unpaid orders")
			}
		}
	}
}

func (s *Service) findOne(ctx context.Context, query string, arg string) (*Order, error) {
	var order Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where(query, arg).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// transition moves an order to a new status under a row lock. apply may
// adjust the order or veto the change. Cancellations release reserved stock.
func (s *Service) transition(ctx context.Context, id string, to OrderStatus, comment string, apply func(tx *gorm.DB, o *Order, now time.Time) error) (*Order, error) {
	var updated Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&o).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}
		if err := tx.Where("order_id = ?", o.ID).Order("id ASC").Find(&o.Items).Error; err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}

		if !o.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
		}

		now := s.now()
		from := o.Status
		if apply != nil {
			if err := apply(tx, &o, now); err != nil {
				return err
			}
		}
		o.Status = to

		if to.IsCancelled() {
			if err := s.releaseStock(tx, o.Items); err != nil {
				return err
			}
			if err := tx.Model(&OrderItem{}).Where("order_id = ?", o.ID).Update("reserved_stock", false).Error; err != nil {
				return fmt.Errorf("failed to update order items: %w", err)
			}
			for i := range o.Items {
				o.Items[i].ReservedStock = false
			}
			if o.PaymentStatus == PaymentStatusPending {
				o.PaymentStatus = PaymentStatusCancelled
			}
			o.ExpiresAt = nil
		}

		if err := tx.Omit(clause.Associations).Save(&o).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		history := OrderStatusHistory{OrderID: o.ID, From: from, Status: to, Comment: comment, CreatedAt: now}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}

		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":     updated.ID,
		"order_number": updated.OrderNumber,
		"status":       updated.Status,
	}).Info("Order status updated")

	return &updated, nil
}

// reserveStock locks every product of the order and takes the ordered units
// out of its stock buckets. Products are locked in id order.
func (s *Service) reserveStock(tx *gorm.DB, items []OrderItem) error {
	products, err := lockProducts(tx, items)
	if err != nil {
		return err
	}

	for i, item := range items {
		p, ok := products[item.ProductID]
		if !ok || !p.IsActive {
			return fmt.Errorf("%w: %s", product.ErrProductNotFound, item.ProductID)
		}
		if err := p.ReserveStock(item.Size, item.Color, item.Quantity); err != nil {
			return err
		}
		if items[i].ProductName == "" {
			items[i].ProductName = p.Name
		}
	}

	return saveStock(tx, products)
}

// releaseStock returns the units of reserved items to their products
func (s *Service) releaseStock(tx *gorm.DB, items []OrderItem) error {
	products, err := lockProducts(tx, items)
	if err != nil {
		return err
	}

	for _, item := range items {
		if !item.ReservedStock {
			continue
		}
		p, ok := products[item.ProductID]
		if !ok {
			s.log.WithField("product_id", item.ProductID).Warn("Product gone, reserved stock not released")
			continue
		}
		p.ReleaseStock(item.Size, item.Color, item.Quantity)
	}

	return saveStock(tx, products)
}

func lockProducts(tx *gorm.DB, items []OrderItem) (map[string]*product.Product, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	sort.Strings(ids)

	var locked []product.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&locked).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	products := make(map[string]*product.Product, len(locked))
	for i := range locked {
		products[locked[i].ID] = &locked[i]
	}
	return products, nil
}

func saveStock(tx *gorm.DB, products map[string]*product.Product) error {
	for _, p := range products {
		if err := tx.Select("stock", "updated_at").Save(p).Error; err != nil {
			return fmt.Errorf("failed to update stock of product %s: %w", p.ID, err)
		}
	}
	return nil
}

func validateCreate(req *CreateRequest) error {
	if err := req.Customer.Validate(); err != nil {
		return err
	}
	if !req.PaymentMethod.IsValid() {
		return fmt.Errorf("%w: %q", ErrPaymentMethod, req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}
	for i, item := range req.Items {
		if item.ProductID == "" || item.Size == "" {
			return fmt.Errorf("%w: item %d has no product or size", ErrInvalidOrder, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has quantity %d", ErrInvalidOrder, i, item.Quantity)
		}
		if item.Price.IsNegative() {
			return fmt.Errorf("%w: item %d has a negative price", ErrInvalidOrder, i)
		}
	}
	return nil
}
