package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/cadeo/cadeo-dashboard/dashboard"
	"github.com/cadeo/cadeo-dashboard/models"
)

// SQLSource reads full snapshots of the orders and users tables
type SQLSource struct {
	db *gorm.DB
}

// NewSQLSource creates a source over db
func NewSQLSource(db *gorm.DB) *SQLSource {
	return &SQLSource{db: db}
}

// DB returns the underlying connection
func (s *SQLSource) DB() *gorm.DB {
	return s.db
}

// FetchOrders returns every row of orders_order, ordered by id
func (s *SQLSource) FetchOrders(ctx context.Context) (*dashboard.OrderTable, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).Order("id").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	for _, o := range orders {
		if o.TotalOrderPrice.IsNegative() {
			return nil, dashboard.InvalidRecord("order %s has negative total price %s", o.FullOrderNumber, o.TotalOrderPrice)
		}
	}

	return dashboard.NewOrderTable(orders), nil
}

// FetchUserCount returns the size of the users_user snapshot
func (s *SQLSource) FetchUserCount(ctx context.Context) (int, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return 0, fmt.Errorf("failed to query users: %w", err)
	}
	return len(users), nil
}

// Ping checks that the database answers
func (s *SQLSource) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Tables lists the tables of the connected database, leaving out SQLite's
// internal bookkeeping tables
func (s *SQLSource) Tables(ctx context.Context) ([]string, error) {
	all, err := s.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, len(all))
	for _, name := range all {
		if !strings.HasPrefix(name, "sqlite_") {
			tables = append(tables, name)
		}
	}
	return tables, nil
}
