// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"

	"github.com/clubwear/storefront/internal/domain/order"
	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, log *logrus.Logger) *Migration {
	return &Migration{
		db:  db,
		log: log,
	}
}

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		&product.Product{},
		&order.Order{},
		&order.OrderItem{},
		&order.OrderStatusHistory{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.log.Info("Running database auto-migrations")

	for _, model := range Models() {
		m.log.WithField("model", fmt.Sprintf("%T", model)).Debug("Migrating model")
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.log.Info("Database auto-migrations completed")
	return nil
}

// CreateIndexes creates the composite indexes AutoMigrate cannot express
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_category_active ON products(category, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_products_stock ON products USING GIN (stock jsonb_path_ops)",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_expires ON orders(status, expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_orders_payment_status ON orders(payment_status)",

		// Order status history indexes
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at DESC)",
	}

	failed := 0
	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.log.WithError(err).WithField("sql", indexSQL).Warn("Failed to create index")
			failed++
		}
	}

	m.log.WithFields(logrus.Fields{
		"created": len(indexes) - failed,
		"failed":  failed,
	}).Info("Database indexes created")
	return nil
}

// SeedInitialData inserts a starter catalog when the products table is empty
func (m *Migration) SeedInitialData() error {
	var count int64
	if err := m.db.Model(&product.Product{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		m.log.WithField("products", count).Debug("Catalog already seeded")
		return nil
	}

	products := seedProducts()
	if err := m.db.Create(&products).Error; err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	m.log.WithField("products", len(products)).Info("Seeded starter catalog")
	return nil
}

func seedProducts() []product.Product {
	shirtDiscount := decimal.NewFromInt(38000)
	adult := func(sizes ...string) []product.ProductSize {
		out := make([]product.ProductSize, 0, len(sizes))
		for _, s := range sizes {
			out = append(out, product.ProductSize{Size: s, Type: product.SizeTypeAdult})
		}
		return out
	}

	return []product.Product{
		{
			Name:        "Camiseta de rugby titular",
			Description: "Camiseta oficial del club, tejido reforzado.",
			Category:    product.CategoryRugbyShirts,
			BaseColor:   "Azul",
			Tags:        []string{"rugby", "titular"},
			Price:       decimal.NewFromInt(45000),
			Sizes:       adult("S", "M", "L", "XL"),
			Colors:      []string{"Azul", "Blanco"},
			Stock: []product.StockEntry{
				{Size: "S", Color: "Azul", Quantity: 4},
				{Size: "M", Color: "Azul", Quantity: 6},
				{Size: "L", Color: "Azul", Quantity: 5},
				{Size: "XL", Color: "Azul", Quantity: 2},
				{Size: "M", Color: "Blanco", Quantity: 3},
				{Size: "L", Color: "Blanco", Quantity: 3},
			},
			IsActive: true,
		},
		{
			Name:          "Camiseta de hockey alternativa",
			Category:      product.CategoryHockeyShirts,
			BaseColor:     "Rojo",
			Tags:          []string{"hockey"},
			Price:         decimal.NewFromInt(42000),
			DiscountPrice: &shirtDiscount,
			Sizes: []product.ProductSize{
				{Size: "10", Type: product.SizeTypeKids},
				{Size: "12", Type: product.SizeTypeKids},
				{Size: "S", Type: product.SizeTypeAdult},
				{Size: "M", Type: product.SizeTypeAdult},
			},
			Colors: []string{"Rojo", "Verde"},
			Stock: []product.StockEntry{
				{Size: "10", Color: "Rojo", Quantity: 3},
				{Size: "12", Color: "Rojo", Quantity: 3},
				{Size: "S", Color: "Rojo", Quantity: 2},
				{Size: "M", Color: "Verde", Quantity: 4},
			},
			IsActive: true,
		},
		{
			Name:     "Short de rugby",
			Category: product.CategoryRugbyShorts,
			Tags:     []string{"rugby"},
			Price:    decimal.NewFromInt(18000),
			Sizes:    adult("S", "M", "L"),
			Stock: []product.StockEntry{
				{Size: "S", Quantity: 8},
				{Size: "M", Quantity: 10},
				{Size: "L", Quantity: 6},
			},
			IsActive: true,
		},
		{
			Name:     "Medias de hockey",
			Category: product.CategoryHockeySocks,
			Price:    decimal.NewFromInt(7500),
			Sizes:    adult("U"),
			Colors:   []string{"Negro", "Blanco"},
			Stock: []product.StockEntry{
				{Size: "U", Color: "Negro", Quantity: 20},
				{Size: "U", Color: "Blanco", Quantity: 15},
			},
			IsActive: true,
		},
		{
			Name:      "Buzo de entrenamiento",
			Category:  product.CategorySweatshirts,
			BaseColor: "Gris",
			Price:     decimal.NewFromInt(52000),
			Sizes:     adult("M", "L", "XL"),
			Colors:    []string{"Gris"},
			Stock: []product.StockEntry{
				{Size: "M", Color: "Gris", Quantity: 2},
				{Size: "L", Color: "Gris", Quantity: 1},
			},
			IsActive: true,
		},
	}
}
