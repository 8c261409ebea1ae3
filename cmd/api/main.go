// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clubwear/storefront/internal/config"
	"github.com/clubwear/storefront/internal/domain/cart"
	"github.com/clubwear/storefront/internal/domain/checkout"
	"github.com/clubwear/storefront/internal/domain/order"
	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/clubwear/storefront/internal/infrastructure/catalogapi"
	"github.com/clubwear/storefront/internal/infrastructure/database/postgres"
	"github.com/clubwear/storefront/internal/infrastructure/database/redis"
	"github.com/clubwear/storefront/internal/interfaces/http"
	"github.com/clubwear/storefront/internal/interfaces/http/handlers"
	"github.com/clubwear/storefront/internal/interfaces/http/routes"
	"github.com/clubwear/storefront/internal/pkg/logger"
	"github.com/sirupsen/logrus"
)

// catalog is what the cart and the product routes read products from
type catalog interface {
	cart.Catalog
	handlers.ProductReader
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg)
	log.WithFields(logrus.Fields{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("Starting storefront")

	// Connect to database
	db, err := postgres.NewConnection(cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB(), log)
	if err := migration.RunAutoMigrations(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		log.WithError(err).Warn("Index creation failed")
	}

	// Seed a starter catalog in development
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			log.WithError(err).Warn("Data seeding failed")
		}
	}

	// Services
	productService := product.NewService(db.GetDB())
	var products catalog = productService
	if cfg.Catalog.Source == config.CatalogSourceRemote {
		products = catalogapi.NewClient(cfg.Catalog, log)
		log.WithField("base_url", cfg.Catalog.BaseURL).Info("Reading products from remote catalog")
	}

	cartStore := redis.NewCartStore(redisClient.GetClient(), cfg.Cart.SessionTTL, cfg.Cart.UpdateRetries)
	cartService := cart.NewService(cartStore, products, log)
	orderService := order.NewService(db.GetDB(), cfg, log)
	checkoutService := checkout.NewService(cartService, orderService, cfg.Checkout.PaymentRedirectURL, log)

	// Handlers
	sessions := handlers.NewSessions(cfg)
	server := http.NewServer(cfg, http.Dependencies{
		Handlers: routes.Handlers{
			Cart:    handlers.NewCartHandler(cartService, sessions),
			Product: handlers.NewProductHandler(products),
			Order:   handlers.NewOrderHandler(orderService, checkoutService, sessions),
		},
		RedisClient: redisClient.GetClient(),
		Checks: map[string]http.HealthChecker{
			"database": db,
			"redis":    redisClient,
		},
	}, log)

	// Background order expiry
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go orderService.RunExpiryWorker(workerCtx, cfg.Order.ExpiryInterval)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully")
	stopWorker()

	// Give server 30 seconds to shutdown gracefully
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.WithError(err).Error("Failed to shutdown HTTP server gracefully")
	}

	log.Info("Server shutdown completed")
}
