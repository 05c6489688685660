package acceptance

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/cadeo/cadeo-dashboard/controllers"
	"github.com/cadeo/cadeo-dashboard/middleware"
	"github.com/cadeo/cadeo-dashboard/services"
	"github.com/cadeo/cadeo-dashboard/tests/testutil"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// DashboardAcceptanceTestSuite drives the dashboards over real HTTP
type DashboardAcceptanceTestSuite struct {
	suite.Suite
	server *httptest.Server
	db     *gorm.DB
	clock  *manualClock
}

// SetupTest builds a fresh server before each test
func (suite *DashboardAcceptanceTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	testutil.MustSetTestEnvironment(suite.T())
	if testing.Verbose() {
		testutil.PrintEnvironmentInfo()
	}

	suite.db = testutil.NewTestDB(suite.T())
	suite.clock = &manualClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}

	service := services.NewDashboardService(services.DashboardConfig{
		Databases:          map[string]*services.SQLSource{"development": services.NewSQLSource(suite.db)},
		DefaultEnvironment: "development",
		CSV:                services.NewCSVSource(testutil.NewMockFiles(testutil.CitiesCSV, testutil.OrdersCSV), "cities.csv", "orders.csv"),
		MapSeed:            2024,
		Loader:             services.LoaderOptions{TTL: 10 * time.Minute, Clock: suite.clock},
	})
	dc := controllers.NewDashboardController(service)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID())
	v1 := router.Group("/api/v1")
	{
		v1.GET("/dashboard/summary", dc.GetSummary)
		v1.GET("/dashboard/price-bounds", dc.GetPriceBounds)
		v1.GET("/dashboard/orders", dc.GetOrders)
		v1.GET("/map/orders", dc.GetMapOrders)
	}
	suite.server = httptest.NewServer(router)
}

// TearDownTest stops the server
func (suite *DashboardAcceptanceTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *DashboardAcceptanceTestSuite) getJSON(path string) (*http.Response, map[string]interface{}) {
	resp, err := http.Get(suite.server.URL + path)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(body, &response), string(body))
	return resp, response
}

func (suite *DashboardAcceptanceTestSuite) totalOrders() float64 {
	resp, response := suite.getJSON("/api/v1/dashboard/summary")
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	summary := response["data"].(map[string]interface{})["summary"].(map[string]interface{})
	return summary["total_orders"].(float64)
}

// TestMetricsFollowTheValidityWindow tests that new rows appear once the
// cached snapshot expires and not before
func (suite *DashboardAcceptanceTestSuite) TestMetricsFollowTheValidityWindow() {
	testutil.SeedOrder(suite.T(), suite.db, "CAD-1", "accepted", "10")
	testutil.SeedUsers(suite.T(), suite.db, 2)
	suite.Equal(float64(1), suite.totalOrders())

	testutil.SeedOrder(suite.T(), suite.db, "CAD-2", "created", "20")

	suite.clock.Advance(9 * time.Minute)
	suite.Equal(float64(1), suite.totalOrders(), "snapshot is still valid")

	suite.clock.Advance(time.Minute)
	suite.Equal(float64(2), suite.totalOrders(), "snapshot expired")
}

// TestSliderAndTable tests the slider bounds and the inclusive filter
func (suite *DashboardAcceptanceTestSuite) TestSliderAndTable() {
	for i, price := range []string{"10", "25", "7", "42"} {
		testutil.SeedOrder(suite.T(), suite.db, "CAD-"+string(rune('1'+i)), "accepted", price)
	}

	resp, response := suite.getJSON("/api/v1/dashboard/price-bounds")
	suite.Equal(http.StatusOK, resp.StatusCode)
	bounds := response["data"].(map[string]interface{})
	suite.Equal("7", bounds["min"])
	suite.Equal("42", bounds["max"])

	resp, response = suite.getJSON("/api/v1/dashboard/orders?min_price=7&max_price=10&columns=full_order_number")
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.NotEmpty(resp.Header.Get(middleware.RequestIDHeader))
	rows := response["data"].(map[string]interface{})["rows"]
	suite.Equal([]interface{}{[]interface{}{"CAD-1"}, []interface{}{"CAD-3"}}, rows)
}

// TestEmptyDatabase tests the dashboards before the first order exists
func (suite *DashboardAcceptanceTestSuite) TestEmptyDatabase() {
	suite.Equal(float64(0), suite.totalOrders())

	resp, response := suite.getJSON("/api/v1/dashboard/price-bounds")
	suite.Equal(http.StatusNotFound, resp.StatusCode)
	suite.Equal("EMPTY_TABLE", response["error"].(map[string]interface{})["code"])

	resp, response = suite.getJSON("/api/v1/dashboard/orders")
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(float64(0), response["data"].(map[string]interface{})["count"])
}

// TestMapPlacementIsStable tests that every request places orders alike
func (suite *DashboardAcceptanceTestSuite) TestMapPlacementIsStable() {
	_, first := suite.getJSON("/api/v1/map/orders")
	_, second := suite.getJSON("/api/v1/map/orders")

	assert.Equal(suite.T(), first["data"], second["data"])

	records := first["data"].(map[string]interface{})["records"].([]interface{})
	suite.Len(records, 2)
	for _, r := range records {
		record := r.(map[string]interface{})
		suite.NotEmpty(record["destination_city"])
		suite.NotZero(record["lat"])
	}
}

func TestDashboardAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(DashboardAcceptanceTestSuite))
}
