// internal/interfaces/http/handlers/product.go
package handlers

import (
	"context"
	"net/http"

	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/gin-gonic/gin"
)

// ProductReader is the read side of the catalog, served by the database or by
// a remote product service
type ProductReader interface {
	List(ctx context.Context, filter product.ListFilter) ([]product.Product, error)
	GetActive(ctx context.Context, id string) (*product.Product, error)
}

// ProductHandler handles product endpoints
type ProductHandler struct {
	products ProductReader
}

// NewProductHandler creates a new product handler
func NewProductHandler(products ProductReader) *ProductHandler {
	return &ProductHandler{products: products}
}

// GetProducts handles GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	var filter product.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}
	if filter.Category != "" && !filter.Category.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown category",
		})
		return
	}

	// Public listing only shows active products
	filter.IncludeInactive = false

	products, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Products retrieved successfully",
		"products": products,
		"count":    len(products),
	})
}

// GetProduct handles GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, err := h.products.GetActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"product": p,
	})
}
