// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/sirupsen/logrus"
)

// Service handles session cart business logic
type Service struct {
	store   Store
	catalog Catalog
	log     *logrus.Logger
}

// NewService creates a new cart service
func NewService(store Store, catalog Catalog, log *logrus.Logger) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		log:     log,
	}
}

// GetCart returns the session cart with its totals
func (s *Service) GetCart(ctx context.Context, sessionID string) (*CartResponse, error) {
	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return buildResponse(sc), nil
}

// Load rehydrates the session cart into a Manager
func (s *Service) Load(ctx context.Context, sessionID string) (*Manager, error) {
	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Restore(sc.State)
}

// AddItem resolves the live product and adds the requested units to the cart
func (s *Service) AddItem(ctx context.Context, sessionID string, req *AddItemRequest) (*CartResponse, error) {
	if req.ProductID == "" {
		return nil, ErrInvalidProduct
	}

	// Validate product exists and is active
	p, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, product.ErrProductNotFound
	}

	color := resolveColor(p, req.Size, req.Color)

	resp, err := s.mutate(ctx, sessionID, func(m *Manager) error {
		return m.AddItem(p, req.Size, color, req.Quantity)
	})
	if err != nil {
		s.logRejection("add", sessionID, req.ProductID, req.Size, color, req.Quantity, err)
		return nil, err
	}
	return resp, nil
}

// UpdateItem sets the absolute quantity of a line
func (s *Service) UpdateItem(ctx context.Context, sessionID string, req *UpdateItemRequest) (*CartResponse, error) {
	resp, err := s.mutate(ctx, sessionID, func(m *Manager) error {
		return m.UpdateQuantity(req.ProductID, req.Size, req.Color, req.Quantity)
	})
	if err != nil {
		s.logRejection("update", sessionID, req.ProductID, req.Size, req.Color, req.Quantity, err)
		return nil, err
	}
	return resp, nil
}

// RemoveItem drops a line from the cart
func (s *Service) RemoveItem(ctx context.Context, sessionID string, req *RemoveItemRequest) (*CartResponse, error) {
	return s.mutate(ctx, sessionID, func(m *Manager) error {
		m.RemoveItem(req.ProductID, req.Size, req.Color)
		return nil
	})
}

// ClearCart empties the session cart
func (s *Service) ClearCart(ctx context.Context, sessionID string) (*CartResponse, error) {
	return s.mutate(ctx, sessionID, func(m *Manager) error {
		m.Clear()
		return nil
	})
}

// SetDrawer opens or closes the cart drawer
func (s *Service) SetDrawer(ctx context.Context, sessionID string, open bool) (*CartResponse, error) {
	return s.mutate(ctx, sessionID, func(m *Manager) error {
		m.SetDrawerOpen(open)
		return nil
	})
}

// GetItemCount returns the number of units in the cart
func (s *Service) GetItemCount(ctx context.Context, sessionID string) (int, error) {
	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range sc.State.Items {
		count += line.Quantity
	}
	return count, nil
}

// ValidateCart re-checks every line against the live catalog
func (s *Service) ValidateCart(ctx context.Context, sessionID string) (*ValidationResult, error) {
	sc, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{Issues: []ValidationIssue{}}
	for _, line := range sc.State.Items {
		issue := ValidationIssue{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Size:        line.Size,
			Color:       line.Color,
			Quantity:    line.Quantity,
			CartPrice:   line.UnitPrice(),
		}

		current, err := s.catalog.GetProduct(ctx, line.Product.ID)
		if errors.Is(err, product.ErrProductNotFound) || (err == nil && !current.IsActive) {
			issue.Kind = IssueProductUnavailable
			result.Issues = append(result.Issues, issue)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to validate cart: %w", err)
		}

		issue.Available = current.AvailableStock(line.Size, line.Color)
		if issue.Available < line.Quantity {
			stock := issue
			stock.Kind = IssueInsufficientStock
			result.Issues = append(result.Issues, stock)
		}

		if price := current.EffectiveUnitPrice(); !price.Equal(issue.CartPrice) {
			changed := issue
			changed.Kind = IssuePriceChanged
			changed.CurrentPrice = &price
			result.Issues = append(result.Issues, changed)
		}
	}

	result.Valid = len(result.Issues) == 0
	return result, nil
}

func (s *Service) mutate(ctx context.Context, sessionID string, op func(*Manager) error) (*CartResponse, error) {
	sc, err := s.store.Update(ctx, sessionID, func(sc *SessionCart) error {
		m, err := Restore(sc.State)
		if err != nil {
			return err
		}
		if err := op(m); err != nil {
			return err
		}
		sc.State = m.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildResponse(sc), nil
}

func (s *Service) logRejection(op, sessionID, productID, size, color string, quantity int, err error) {
	fields := logrus.Fields{
		"op":         op,
		"session_id": sessionID,
		"product_id": productID,
		"size":       size,
		"color":      color,
		"quantity":   quantity,
	}
	var stockErr *StockError
	if errors.As(err, &stockErr) {
		fields["requested"] = stockErr.Requested
		fields["available"] = stockErr.Available
	}
	s.log.WithFields(fields).WithError(err).Debug("cart change rejected")
}

// resolveColor falls back to the product's base color when the shopper did
// not pick one and the size is stocked in that color.
func resolveColor(p *product.Product, size, color string) string {
	if color != "" || p.BaseColor == "" {
		return color
	}
	for _, entry := range p.Stock {
		if entry.Size == size && entry.Color == p.BaseColor {
			return p.BaseColor
		}
	}
	return color
}

func buildResponse(sc *SessionCart) *CartResponse {
	resp := &CartResponse{
		SessionID:  sc.SessionID,
		Items:      make([]LineResponse, 0, len(sc.State.Items)),
		DrawerOpen: sc.State.DrawerOpen,
		UpdatedAt:  sc.UpdatedAt,
	}

	for _, line := range sc.State.Items {
		subtotal := line.Subtotal()
		resp.Items = append(resp.Items, LineResponse{
			Line:      line,
			UnitPrice: line.UnitPrice(),
			Subtotal:  subtotal,
		})
		resp.Totals.LineCount++
		resp.Totals.ItemCount += line.Quantity
		resp.Totals.Total = resp.Totals.Total.Add(subtotal)
	}
	return resp
}
