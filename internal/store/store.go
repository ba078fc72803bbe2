// Package store persists product records and the append-only transition log.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/model"
)

// Store wraps the SQLite database holding the products and transitions
// tables.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.AutoMigrate(&model.Product{}, &model.Transition{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info("state store opened", slog.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// GetProduct loads one product by id. A missing product returns (nil, nil):
// "absent" is a normal state for the reconciliation engine, not an error.
func (s *Store) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	var p model.Product
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	return &p, nil
}

// Commit writes the product record and, when transition is non-nil, appends
// the transition row inside one transaction. A concurrent reader of the same
// product never observes a half-applied observation.
//
// The product row is a full-row upsert keyed by product_id.
func (s *Store) Commit(ctx context.Context, product *model.Product, transition *model.Transition) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			UpdateAll: true,
		}).Create(product).Error; err != nil {
			return fmt.Errorf("upsert product %s: %w", product.ProductID, err)
		}

		if transition != nil {
			if err := tx.Create(transition).Error; err != nil {
				return fmt.Errorf("append transition for %s: %w", transition.ProductID, err)
			}
		}
		return nil
	})
}

// ListProducts returns all tracked products ordered by first discovery.
func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := s.db.WithContext(ctx).Order("first_discovered ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// ListTransitions returns the full transition history of one product in
// chronological order.
func (s *Store) ListTransitions(ctx context.Context, productID string) ([]model.Transition, error) {
	var transitions []model.Transition
	if err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("timestamp ASC, id ASC").
		Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("list transitions %s: %w", productID, err)
	}
	return transitions, nil
}

// CountProducts returns the number of tracked products.
func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

// Ping verifies the underlying database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
