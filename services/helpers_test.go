package services

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cadeo/cadeo-dashboard/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestDB opens an in-memory SQLite database with the dashboard tables
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Order{}))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, number, status, price string, city *string) models.Order {
	t.Helper()

	order := models.Order{
		FullOrderNumber: number,
		TotalOrderPrice: decimal.RequireFromString(price),
		SenderStatus:    status,
		SendingMethod:   "post",
		SenderName:      "Sender " + number,
		DestinationCity: city,
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func seedUsers(t *testing.T, db *gorm.DB, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		user := models.User{Email: "user" + string(rune('a'+i)) + "@example.com", FirstName: "User"}
		require.NoError(t, db.Create(&user).Error)
	}
}

func strPtr(s string) *string {
	return &s
}

const citiesCSV = `city,lat,lon
Amsterdam,52.3676,4.9041
Rotterdam,51.9244,4.4777
Eindhoven,51.4416,5.4697
`

const meltedOrdersCSV = `full_order_number,field,value
A-1,total_order_price,€10.00
A-1,sender_status,accepted
A-1,destination_city,Amsterdam
A-2,total_order_price,"$1,250.50"
A-2,sender_status,created
A-2,destination_city,Utrecht
A-3,total_order_price,7
A-3,sender_status,shared
`
