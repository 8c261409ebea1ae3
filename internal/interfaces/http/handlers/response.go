// internal/interfaces/http/handlers/response.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/clubwear/storefront/internal/domain/cart"
	"github.com/clubwear/storefront/internal/domain/checkout"
	"github.com/clubwear/storefront/internal/domain/order"
	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/gin-gonic/gin"
)

// respondError maps domain errors to HTTP responses
func respondError(c *gin.Context, err error) {
	var stockErr *cart.StockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     cart.ErrStockExceeded.Error(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.Is(err, cart.ErrStockExceeded),
		errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": "Cart was modified by another request, please retry"})
	case errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, cart.ErrInvalidVariant),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, product.ErrInvalidProduct),
		errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, order.ErrInvalidCustomer),
		errors.Is(err, order.ErrPaymentMethod),
		errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, product.ErrCatalogUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Product catalog is temporarily unavailable"})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// respondBindError reports a request body that could not be bound. Bodies cut
// off by the size limit answer 413 like the Content-Length check does.
func respondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}
