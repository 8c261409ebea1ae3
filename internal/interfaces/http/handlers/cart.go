// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"

	"github.com/clubwear/storefront/internal/domain/cart"
	"github.com/gin-gonic/gin"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	cartService *cart.Service
	sessions    *Sessions
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service, sessions *Sessions) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		sessions:    sessions,
	}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	sessionID := h.sessions.Resolve(c)

	cartResponse, err := h.cartService.GetCart(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    cartResponse,
	})
}

// GetCartCount handles GET /cart/count
func (h *CartHandler) GetCartCount(c *gin.Context) {
	sessionID := h.sessions.Resolve(c)

	count, err := h.cartService.GetItemCount(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart count retrieved successfully",
		"data": gin.H{
			"count": count,
		},
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	sessionID := h.sessions.Resolve(c)

	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cartResponse, err := h.cartService.AddItem(c.Request.Context(), sessionID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    cartResponse,
	})
}

// UpdateCartItem handles PUT /cart/items
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	sessionID := h.sessions.Resolve(c)

	var req cart.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cartResponse, err := h.cartService.UpdateItem(c.Request.Context(), sessionID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    cartResponse,
	})
}

// RemoveFromCart handles DELETE /cart/items. The line is identified by a JSON
// body or by query parameters.
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	sessionID := h.sessions.Resolve(c)

	var req cart.RemoveItemRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cartResponse, err := h.cartService.RemoveItem(c.Request.Context(), sessionID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    cartResponse,
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	sessionID := h.sessions.Resolve(c)

	cartResponse, err := h.cartService.ClearCart(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
		"data":    cartResponse,
	})
}

// SetDrawer handles PUT /cart/drawer
func (h *CartHandler) SetDrawer(c *gin.Context) {
	sessionID := h.sessions.Resolve(c)

	var req cart.DrawerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cartResponse, err := h.cartService.SetDrawer(c.Request.Context(), sessionID, *req.Open)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart drawer updated",
		"data":    cartResponse,
	})
}

// ValidateCart handles POST /cart/validate - re-checks the cart before checkout
func (h *CartHandler) ValidateCart(c *gin.Context) {
	sessionID := h.sessions.Resolve(c)

	result, err := h.cartService.ValidateCart(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	if !result.Valid {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Cart validation failed",
			"data":  result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart validation successful",
		"data":    result,
	})
}
