// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/clubwear/storefront/internal/interfaces/http/handlers"
	"github.com/gin-gonic/gin"
)

// Handlers groups the handlers mounted under the API prefix
type Handlers struct {
	Cart    *handlers.CartHandler
	Product *handlers.ProductHandler
	Order   *handlers.OrderHandler
}

// SetupRoutes mounts every public route on rg
func SetupRoutes(rg *gin.RouterGroup, h Handlers) {
	SetupCartRoutes(rg, h.Cart)
	SetupProductRoutes(rg, h.Product)
	SetupOrderRoutes(rg, h.Order)
}

// SetupCartRoutes sets up session cart routes
func SetupCartRoutes(rg *gin.RouterGroup, cartHandler *handlers.CartHandler) {
	cart := rg.Group("/cart")
	{
		cart.GET("", cartHandler.GetCart)
		cart.DELETE("", cartHandler.ClearCart)
		cart.GET("/count", cartHandler.GetCartCount)
		cart.PUT("/drawer", cartHandler.SetDrawer)
		cart.POST("/validate", cartHandler.ValidateCart)

		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items", cartHandler.UpdateCartItem)
		cart.DELETE("/items", cartHandler.RemoveFromCart)
	}
}

// SetupProductRoutes sets up product related routes
func SetupProductRoutes(rg *gin.RouterGroup, productHandler *handlers.ProductHandler) {
	products := rg.Group("/products")
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProduct)
	}
}

// SetupOrderRoutes sets up checkout and public order routes
func SetupOrderRoutes(rg *gin.RouterGroup, orderHandler *handlers.OrderHandler) {
	orders := rg.Group("/orders")
	{
		orders.POST("", orderHandler.CreateOrder)
		orders.GET("/number/:orderNumber", orderHandler.GetOrderByNumber)
		orders.GET("/:id/payment-status", orderHandler.GetPaymentStatus)
		orders.POST("/cancel", orderHandler.CancelOrder)
		orders.POST("/confirm-payment", orderHandler.ConfirmPayment)
	}
}
