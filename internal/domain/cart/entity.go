// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionCart is the persisted cart of one browser session
type SessionCart struct {
	SessionID string    `json:"sessionId"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewSessionCart returns an empty cart for the session
func NewSessionCart(sessionID string, now time.Time, ttl time.Duration) *SessionCart {
	return &SessionCart{
		SessionID: sessionID,
		State:     State{Items: []Line{}},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Touch refreshes the update and expiry timestamps
func (c *SessionCart) Touch(now time.Time, ttl time.Duration) {
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(ttl)
}

// Totals are derived from the cart lines on every read
type Totals struct {
	LineCount int             `json:"lineCount"`
	ItemCount int             `json:"itemCount"`
	Total     decimal.Decimal `json:"total"`
}

// LineResponse is a cart line with its computed prices
type LineResponse struct {
	Line
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartResponse represents a session cart with items and totals
type CartResponse struct {
	SessionID  string         `json:"sessionId"`
	Items      []LineResponse `json:"items"`
	DrawerOpen bool           `json:"drawerOpen"`
	Totals     Totals         `json:"totals"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// AddItemRequest represents an add to cart request
type AddItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// UpdateItemRequest sets the absolute quantity of a line. Zero or less removes it.
type UpdateItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

// RemoveItemRequest identifies the line to remove
type RemoveItemRequest struct {
	ProductID string `json:"productId" form:"productId" binding:"required"`
	Size      string `json:"size" form:"size" binding:"required"`
	Color     string `json:"color" form:"color"`
}

// DrawerRequest shows or hides the cart drawer
type DrawerRequest struct {
	Open *bool `json:"open" binding:"required"`
}

// IssueKind classifies a cart validation issue
type IssueKind string

const (
	IssueProductUnavailable IssueKind = "product_unavailable"
	IssueInsufficientStock  IssueKind = "insufficient_stock"
	IssuePriceChanged       IssueKind = "price_changed"
)

// ValidationIssue describes a line that no longer matches the live catalog
type ValidationIssue struct {
	Kind         IssueKind        `json:"kind"`
	ProductID    string           `json:"productId"`
	ProductName  string           `json:"productName"`
	Size         string           `json:"size"`
	Color        string           `json:"color"`
	Quantity     int              `json:"quantity"`
	Available    int              `json:"available"`
	CartPrice    decimal.Decimal  `json:"cartPrice"`
	CurrentPrice *decimal.Decimal `json:"currentPrice,omitempty"`
}

// ValidationResult is the outcome of re-checking a cart against the catalog
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues"`
}
