package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cadeo/cadeo-dashboard/models"
	"github.com/cadeo/cadeo-dashboard/services"
)

// CitiesCSV is a small coordinate table for map tests
const CitiesCSV = `city,lat,lon
Amsterdam,52.3676,4.9041
Rotterdam,51.9244,4.4777
Den Haag,52.0705,4.3007
`

// OrdersCSV is a melted order file for map tests. O-3 ships to a city
// without coordinates.
const OrdersCSV = `full_order_number,field,value
O-1,total_order_price,€15.00
O-1,sender_status,accepted
O-1,destination_city,Rotterdam
O-2,total_order_price,€22.40
O-2,sender_status,shared
O-3,total_order_price,€9.99
O-3,sender_status,created
O-3,destination_city,Zwolle
`

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test for the duration of the test
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("GO_ENV", "test")
}

// NewTestDB opens an in-memory SQLite database with the dashboard tables
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Each connection to :memory: would see its own empty database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&models.User{}, &models.Order{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// SeedOrder inserts one order with the given number, status and price
func SeedOrder(t *testing.T, db *gorm.DB, number, status, price string) models.Order {
	t.Helper()

	order := models.Order{
		FullOrderNumber: number,
		TotalOrderPrice: decimal.RequireFromString(price),
		SenderStatus:    status,
		SendingMethod:   "post",
		SenderName:      "Sender " + number,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("Failed to seed order %s: %v", number, err)
	}
	return order
}

// SeedUsers inserts n users
func SeedUsers(t *testing.T, db *gorm.DB, n int) {
	t.Helper()

	for i := 1; i <= n; i++ {
		user := models.User{Email: fmt.Sprintf("user%d@example.com", i), FirstName: "User"}
		if err := db.Create(&user).Error; err != nil {
			t.Fatalf("Failed to seed user: %v", err)
		}
	}
}

// NewMockFiles returns a mock bucket holding cities.csv and orders.csv
func NewMockFiles(cities, orders string) *services.MockS3Service {
	files := services.NewMockS3Service()
	files.PutObject("cities.csv", []byte(cities))
	files.PutObject("orders.csv", []byte(orders))
	return files
}

// PrintEnvironmentInfo prints the current test environment configuration.
// Useful for debugging test environment issues.
func PrintEnvironmentInfo() {
	fmt.Printf("Test Environment Info:\n")
	fmt.Printf("  GO_ENV: %s\n", os.Getenv("GO_ENV"))
	fmt.Printf("  DATABASE_URL: %s\n", maskDatabaseURL(os.Getenv("DATABASE_URL")))
	fmt.Printf("  PORT: %s\n", os.Getenv("PORT"))
}

// maskDatabaseURL masks sensitive parts of the database URL for safe printing
func maskDatabaseURL(url string) string {
	if url == "" {
		return "(not set)"
	}
	isTest := strings.Contains(url, "test") || strings.Contains(url, "memory")
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[:i+3] + "..."
	}
	if isTest {
		return url + " [test database]"
	}
	return url + " [WARNING: may not be test DB]"
}
