package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadeo/cadeo-dashboard/middleware"
)

func serve(t *testing.T, app *application, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	router := setupRouter(app)

	req, _ := http.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHealthEndpointIntegration tests the /api/v1/health endpoint with full routing
func TestHealthEndpointIntegration(t *testing.T) {
	app, _ := newTestApplication(t)

	w := serve(t, app, "GET", "/api/v1/health", nil)

	// Assert status code
	assert.Equal(t, http.StatusOK, w.Code, "Expected status 200 OK")

	// Parse and verify response
	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err, "Response should be valid JSON")
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "Cadeo dashboard API is running", response["message"])
}

// TestHealthEndpointMethod tests that only GET method is allowed
func TestHealthEndpointMethod(t *testing.T) {
	app, _ := newTestApplication(t)
	router := setupRouter(app)

	for _, method := range []string{"POST", "PUT", "DELETE"} {
		req, _ := http.NewRequest(method, "/api/v1/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s should not be allowed", method)
	}
}

// TestAPIV1Prefix tests that endpoints require the /api/v1 prefix
func TestAPIV1Prefix(t *testing.T) {
	app, _ := newTestApplication(t)

	w := serve(t, app, "GET", "/health", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "Endpoint should require /api/v1 prefix")

	w = serve(t, app, "GET", "/dashboard/summary", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "Endpoint should require /api/v1 prefix")
}

func TestRequestIDHeader(t *testing.T) {
	app, _ := newTestApplication(t)

	w := serve(t, app, "GET", "/api/v1/health", nil)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader), "a request ID must be assigned")

	w = serve(t, app, "GET", "/api/v1/health", map[string]string{middleware.RequestIDHeader: "req-123"})
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader), "a client request ID must be echoed")
}

func TestCORSPreflight(t *testing.T) {
	app, _ := newTestApplication(t)

	w := serve(t, app, "OPTIONS", "/api/v1/dashboard/summary", map[string]string{
		"Origin":                        "https://dashboard.cadeo.app",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDashboardRoutesAreWired(t *testing.T) {
	app, db := newTestApplication(t)
	seedTestOrders(t, db)

	paths := []string{
		"/api/v1/database/status",
		"/api/v1/dashboard/environments",
		"/api/v1/dashboard/summary",
		"/api/v1/dashboard/columns",
		"/api/v1/dashboard/price-bounds",
		"/api/v1/dashboard/orders",
		"/api/v1/map/cities",
		"/api/v1/map/orders",
	}

	router := setupRouter(app)
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req, _ := http.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, true, response["success"])
		})
	}
}

func TestRefreshIsRateLimited(t *testing.T) {
	app, _ := newTestApplication(t)
	router := setupRouter(app)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("POST", "/api/v1/dashboard/refresh", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
}

func TestMetricsEndpoint(t *testing.T) {
	app, db := newTestApplication(t)
	seedTestOrders(t, db)
	router := setupRouter(app)

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("GET", "/api/v1/dashboard/summary", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	req, _ := http.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `dashboard_cache_hits_total{cache_key="development/orders"} 1`), body)
	assert.True(t, strings.Contains(body, `dashboard_cache_misses_total{cache_key="development/orders"} 1`), body)
}
