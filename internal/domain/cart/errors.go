package cart

import (
	"errors"
	"fmt"
)

var (
	// ErrStockExceeded means the requested quantity for a variant is above known stock
	ErrStockExceeded = errors.New("stock limit reached")
	// ErrLineNotFound means no cart line matches the product, size and color
	ErrLineNotFound = errors.New("cart line not found")

	ErrInvalidProduct  = errors.New("invalid product")
	ErrInvalidVariant  = errors.New("size is required")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidState    = errors.New("invalid cart state")
)

// StockError carries the numbers behind an ErrStockExceeded rejection
type StockError struct {
	ProductID string
	Size      string
	Color     string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s: product %s size %s color %q requested %d, available %d",
		ErrStockExceeded, e.ProductID, e.Size, e.Color, e.Requested, e.Available)
}

// Is lets errors.Is(err, ErrStockExceeded) match a *StockError
func (e *StockError) Is(target error) bool {
	return target == ErrStockExceeded
}
