// internal/domain/product/service.go
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service handles product catalog logic
type Service struct {
	db *gorm.DB
}

// NewService creates a new product service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ListFilter narrows a product listing
type ListFilter struct {
	Category        Category `form:"category"`
	Search          string   `form:"search"`
	IncludeInactive bool     `form:"-"`
}

// CreateRequest represents product creation data
type CreateRequest struct {
	Name          string           `json:"name" binding:"required"`
	Description   string           `json:"description"`
	Category      Category         `json:"category" binding:"required"`
	BaseColor     string           `json:"baseColor"`
	Tags          []string         `json:"tags"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	Images        []string         `json:"images"`
	Sizes         []ProductSize    `json:"sizes"`
	Colors        []string         `json:"colors"`
	Stock         []StockEntry     `json:"stock"`
	IsActive      bool             `json:"isActive"`
}

// UpdateRequest represents a partial product update
type UpdateRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Category      *Category        `json:"category"`
	BaseColor     *string          `json:"baseColor"`
	Tags          []string         `json:"tags"`
	Price         *decimal.Decimal `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	ClearDiscount bool             `json:"clearDiscount"`
	Images        []string         `json:"images"`
	Sizes         []ProductSize    `json:"sizes"`
	Colors        []string         `json:"colors"`
}

// List returns products ordered by newest first
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	query := s.db.WithContext(ctx).Model(&Product{})

	// Apply filters
	if !filter.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", search, search)
	}

	var products []Product
	if err := query.Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Get retrieves a product regardless of its active flag
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	var product Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// GetActive retrieves a product visible in the storefront
func (s *Service) GetActive(ctx context.Context, id string) (*Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// GetProduct resolves a product for the cart. Inactive products are returned
// so the cart can report them as unavailable.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.Get(ctx, id)
}

// Create stores a new product
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Product, error) {
	product := &Product{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Category:      req.Category,
		BaseColor:     req.BaseColor,
		Tags:          req.Tags,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Images:        req.Images,
		Sizes:         req.Sizes,
		Colors:        req.Colors,
		Stock:         req.Stock,
		IsActive:      req.IsActive,
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// Update applies the non-nil fields of req
func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.BaseColor != nil {
		product.BaseColor = *req.BaseColor
	}
	if req.Tags != nil {
		product.Tags = req.Tags
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.DiscountPrice != nil {
		product.DiscountPrice = req.DiscountPrice
	}
	if req.ClearDiscount {
		product.DiscountPrice = nil
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Sizes != nil {
		product.Sizes = req.Sizes
	}
	if req.Colors != nil {
		product.Colors = req.Colors
	}

	if err := product.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// UpdateStock replaces the stock buckets of a product
func (s *Service) UpdateStock(ctx context.Context, id string, stock []StockEntry) (*Product, error) {
	if err := ValidateStock(stock); err != nil {
		return nil, err
	}

	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Stock = stock
	if err := s.db.WithContext(ctx).Select("stock", "updated_at").Save(product).Error; err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}
	return product, nil
}

// Activate makes a product visible in the storefront
func (s *Service) Activate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, true)
}

// Deactivate hides a product from the storefront
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, false)
}

// Delete removes a product
func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Product{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *Service) setActive(ctx context.Context, id string, active bool) error {
	result := s.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update product status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
