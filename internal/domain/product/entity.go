// internal/domain/product/entity.go
package product

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// The storefront API exchanges prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	// ErrProductNotFound is returned when a product does not exist or is not visible
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when matching stock buckets cannot cover a reservation
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidProduct is returned when product data fails validation
	ErrInvalidProduct = errors.New("invalid product")
	// ErrCatalogUnavailable is returned when the product source cannot be reached
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Category represents the catalog section a product belongs to
type Category string

const (
	CategoryRugbyShirts  Category = "camisetas-rugby"
	CategoryHockeyShirts Category = "camisetas-hockey"
	CategoryRugbyShorts  Category = "shorts-rugby"
	CategoryHockeySkirts Category = "polleras-hockey"
	CategoryHockeySocks  Category = "medias-hockey"
	CategoryRugbySocks   Category = "medias-rugby"
	CategoryTrousers     Category = "pantalones"
	CategoryShorts       Category = "shorts"
	CategorySweatshirts  Category = "buzos"
	CategoryCaps         Category = "gorras"
	CategoryJackets      Category = "camperas"
	CategoryParkas       Category = "camperon"
	CategoryBags         Category = "bolsos"
	CategoryBeanies      Category = "gorros"
	CategoryOther        Category = "otros"
)

var validCategories = map[Category]bool{
	CategoryRugbyShirts: true, CategoryHockeyShirts: true, CategoryRugbyShorts: true,
	CategoryHockeySkirts: true, CategoryHockeySocks: true, CategoryRugbySocks: true,
	CategoryTrousers: true, CategoryShorts: true, CategorySweatshirts: true,
	CategoryCaps: true, CategoryJackets: true, CategoryParkas: true,
	CategoryBags: true, CategoryBeanies: true, CategoryOther: true,
}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	return validCategories[c]
}

// SizeType distinguishes adult and kids sizing
type SizeType string

const (
	SizeTypeAdult SizeType = "adulto"
	SizeTypeKids  SizeType = "infantil"
)

// ProductSize is a size offered for a product
type ProductSize struct {
	Size string   `json:"size"`
	Type SizeType `json:"type"`
}

// StockEntry is one stock bucket. An empty Color scopes the bucket to the size only.
type StockEntry struct {
	Size     string `json:"size"`
	Color    string `json:"color,omitempty"`
	Quantity int    `json:"quantity"`
}

// Matches applies the stock matching rule: sizes must be equal, and when a
// color is requested the bucket color must equal it.
func (e StockEntry) Matches(size, color string) bool {
	return e.Size == size && (color == "" || e.Color == color)
}

// Product represents a catalog item with its per-variant stock
type Product struct {
	ID            string           `gorm:"primaryKey;size:36" json:"id"`
	Name          string           `gorm:"not null;size:255" json:"name"`
	Description   string           `gorm:"type:text" json:"description"`
	Category      Category         `gorm:"not null;size:50;index" json:"category"`
	BaseColor     string           `gorm:"size:50" json:"baseColor,omitempty"`
	Tags          []string         `gorm:"type:jsonb;serializer:json" json:"tags"`
	Price         decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"price"`
	DiscountPrice *decimal.Decimal `gorm:"type:numeric(12,2)" json:"discountPrice,omitempty"`
	Images        []string         `gorm:"type:jsonb;serializer:json" json:"images"`
	Sizes         []ProductSize    `gorm:"type:jsonb;serializer:json" json:"sizes"`
	Colors        []string         `gorm:"type:jsonb;serializer:json" json:"colors"`
	Stock         []StockEntry     `gorm:"type:jsonb;serializer:json" json:"stock"`
	IsActive      bool             `gorm:"not null;index" json:"isActive"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// TableName overrides the table name
func (Product) TableName() string { return "products" }

// BeforeCreate assigns an ID to new products
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// AvailableStock sums the quantity of every stock bucket matching size and color
func (p *Product) AvailableStock(size, color string) int {
	total := 0
	for _, entry := range p.Stock {
		if entry.Matches(size, color) {
			total += entry.Quantity
		}
	}
	return total
}

// TotalStock sums every stock bucket
func (p *Product) TotalStock() int {
	total := 0
	for _, entry := range p.Stock {
		total += entry.Quantity
	}
	return total
}

// IsInStock reports whether any bucket has units left
func (p *Product) IsInStock() bool {
	return p.TotalStock() > 0
}

// HasDiscount reports whether a non-zero discount price is set
func (p *Product) HasDiscount() bool {
	return p.DiscountPrice != nil && !p.DiscountPrice.IsZero()
}

// EffectiveUnitPrice is the discount price when set, otherwise the base price
func (p *Product) EffectiveUnitPrice() decimal.Decimal {
	if p.HasDiscount() {
		return *p.DiscountPrice
	}
	return p.Price
}

// Clone returns a deep copy so later catalog changes do not leak into snapshots
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.DiscountPrice != nil {
		d := *p.DiscountPrice
		c.DiscountPrice = &d
	}
	c.Tags = cloneSlice(p.Tags)
	c.Images = cloneSlice(p.Images)
	c.Sizes = cloneSlice(p.Sizes)
	c.Colors = cloneSlice(p.Colors)
	c.Stock = cloneSlice(p.Stock)
	return &c
}

// ReserveStock takes qty units out of the buckets matching size and color, in
// bucket order. Nothing changes when the matching buckets cannot cover qty.
func (p *Product) ReserveStock(size, color string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: reservation quantity must be positive", ErrInvalidProduct)
	}
	if available := p.AvailableStock(size, color); available < qty {
		return fmt.Errorf("%w: product %s size %s color %q has %d, need %d",
			ErrInsufficientStock, p.ID, size, color, available, qty)
	}

	remaining := qty
	for i := range p.Stock {
		if remaining == 0 {
			break
		}
		if !p.Stock[i].Matches(size, color) || p.Stock[i].Quantity == 0 {
			continue
		}
		take := min(p.Stock[i].Quantity, remaining)
		p.Stock[i].Quantity -= take
		remaining -= take
	}
	return nil
}

// ReleaseStock returns qty units to the first bucket matching size and color,
// creating the bucket when none exists.
func (p *Product) ReleaseStock(size, color string, qty int) {
	if qty <= 0 {
		return
	}
	for i := range p.Stock {
		if p.Stock[i].Matches(size, color) {
			p.Stock[i].Quantity += qty
			return
		}
	}
	p.Stock = append(p.Stock, StockEntry{Size: size, Color: color, Quantity: qty})
}

// Validate checks the fields required to store a product
func (p *Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if !p.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, p.Category)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	}
	if p.DiscountPrice != nil && p.DiscountPrice.IsNegative() {
		return fmt.Errorf("%w: discount price cannot be negative", ErrInvalidProduct)
	}
	return ValidateStock(p.Stock)
}

// ValidateStock checks every bucket has a size and a non-negative quantity
func ValidateStock(stock []StockEntry) error {
	for i, entry := range stock {
		if entry.Size == "" {
			return fmt.Errorf("%w: stock entry %d has no size", ErrInvalidProduct, i)
		}
		if entry.Quantity < 0 {
			return fmt.Errorf("%w: stock entry %d has negative quantity", ErrInvalidProduct, i)
		}
	}
	return nil
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
