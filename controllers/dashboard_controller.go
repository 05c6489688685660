package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cadeo/cadeo-dashboard/dashboard"
	"github.com/cadeo/cadeo-dashboard/models"
	"github.com/cadeo/cadeo-dashboard/services"
	"github.com/cadeo/cadeo-dashboard/utils"
)

// DashboardReader is what the handlers need from the dashboard service
type DashboardReader interface {
	Environments() []string
	Summary(ctx context.Context, env string) (dashboard.MetricsSummary, error)
	Columns(ctx context.Context, env string) (services.ColumnsInfo, error)
	PriceBounds(ctx context.Context, env string) (dashboard.PriceBounds, error)
	Orders(ctx context.Context, env string, q services.OrderQuery) (*dashboard.OrderTable, error)
	Cities(ctx context.Context) ([]models.CityCoordinate, error)
	MapOrders(ctx context.Context, q services.MapQuery) (dashboard.EnrichResult, error)
	Refresh(env string) error
	DatabaseStatus(ctx context.Context, env string) ([]string, error)
}

// MetricCard is one tile of the metrics row
type MetricCard struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DashboardController serves the database and map dashboards
type DashboardController struct {
	service DashboardReader
}

// NewDashboardController creates a controller over service
func NewDashboardController(service DashboardReader) *DashboardController {
	return &DashboardController{service: service}
}

// GetSummary handles GET /api/v1/dashboard/summary - metric cards
func (dc *DashboardController) GetSummary(c *gin.Context) {
	summary, err := dc.service.Summary(c.Request.Context(), c.Query("env"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"summary": summary,
			"cards":   metricCards(summary),
		},
	})
}

func metricCards(s dashboard.MetricsSummary) []MetricCard {
	return []MetricCard{
		{Label: "Accepted orders", Value: fmt.Sprint(s.AcceptedOrders)},
		{Label: "Total orders", Value: fmt.Sprint(s.TotalOrders)},
		{Label: "Number of users", Value: fmt.Sprint(s.Users)},
		{Label: "Earnings", Value: dashboard.FormatEuro(s.Earnings)},
		{Label: "Pending earnings", Value: dashboard.FormatEuro(s.PendingEarnings)},
		{Label: "Donations", Value: dashboard.FormatEuro(s.Donations)},
	}
}

// GetColumns handles GET /api/v1/dashboard/columns - column multiselect options
func (dc *DashboardController) GetColumns(c *gin.Context) {
	columns, err := dc.service.Columns(c.Request.Context(), c.Query("env"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    columns,
	})
}

// GetPriceBounds handles GET /api/v1/dashboard/price-bounds - slider range
func (dc *DashboardController) GetPriceBounds(c *gin.Context) {
	bounds, err := dc.service.PriceBounds(c.Request.Context(), c.Query("env"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"min":           bounds.Min,
			"max":           bounds.Max,
			"min_formatted": dashboard.FormatEuro(bounds.Min),
			"max_formatted": dashboard.FormatEuro(bounds.Max),
		},
	})
}

// GetOrders handles GET /api/v1/dashboard/orders - price-filtered table
func (dc *DashboardController) GetOrders(c *gin.Context) {
	table, ok := dc.filteredOrders(c)
	if !ok {
		return
	}

	view := table.Project()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"columns": view.Columns,
			"rows":    view.Rows,
			"count":   len(view.Rows),
		},
	})
}

// ExportOrders handles GET /api/v1/dashboard/orders/export - table download
func (dc *DashboardController) ExportOrders(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", utils.FormatCSV))
	contentType, err := utils.ContentType(format)
	if err != nil {
		code := "VALIDATION_ERROR"
		var exportErr *utils.ExportError
		if errors.As(err, &exportErr) {
			code = exportErr.Code
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	table, ok := dc.filteredOrders(c)
	if !ok {
		return
	}

	filename := fmt.Sprintf("orders_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if err := utils.WriteTable(c.Writer, format, table.Project()); err != nil {
		// Headers are gone; all we can do is stop writing.
		_ = c.Error(err)
	}
}

// filteredOrders parses the filter query and runs it, writing the error
// response itself when it fails
func (dc *DashboardController) filteredOrders(c *gin.Context) (*dashboard.OrderTable, bool) {
	minPrice, err := parsePrice(c, "min_price")
	if err != nil {
		respondValidationError(c, err)
		return nil, false
	}
	maxPrice, err := parsePrice(c, "max_price")
	if err != nil {
		respondValidationError(c, err)
		return nil, false
	}

	table, err := dc.service.Orders(c.Request.Context(), c.Query("env"), services.OrderQuery{
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Columns:  listQuery(c, "columns"),
	})
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return table, true
}

// RefreshDashboard handles POST /api/v1/dashboard/refresh - drops cached snapshots
func (dc *DashboardController) RefreshDashboard(c *gin.Context) {
	env := c.Query("env")
	if err := dc.service.Refresh(env); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Dashboard data will be reloaded on the next request",
	})
}

// GetEnvironments handles GET /api/v1/dashboard/environments - environment select options
func (dc *DashboardController) GetEnvironments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dc.service.Environments(),
	})
}

// GetCities handles GET /api/v1/map/cities - coordinate table
func (dc *DashboardController) GetCities(c *gin.Context) {
	cities, err := dc.service.Cities(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    cities,
	})
}

// GetMapOrders handles GET /api/v1/map/orders - enriched records for the map layers
func (dc *DashboardController) GetMapOrders(c *gin.Context) {
	result, err := dc.service.MapOrders(c.Request.Context(), services.MapQuery{
		Source:      c.DefaultQuery("source", services.MapSourceCSV),
		Environment: c.Query("env"),
		Cities:      listQuery(c, "cities"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{
		"records":       result.Records,
		"count":         len(result.Records),
		"dropped":       result.Dropped,
		"dropped_count": len(result.Dropped),
	}
	if dropErr := result.Err(); dropErr != nil {
		data["warning"] = gin.H{
			"code":    dashboard.CodeMissingCoordinate,
			"message": dropErr.Error(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// GetDatabaseStatus handles GET /api/v1/database/status - connectivity and table list
func (dc *DashboardController) GetDatabaseStatus(c *gin.Context) {
	tables, err := dc.service.DatabaseStatus(c.Request.Context(), c.Query("env"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}

// parsePrice reads an optional price parameter. Currency symbols are
// accepted, as the slider shows them.
func parsePrice(c *gin.Context, key string) (*decimal.Decimal, error) {
	raw, ok := c.GetQuery(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	price, err := dashboard.ParseCurrency(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &price, nil
}

// listQuery accepts both repeated parameters and comma-separated values
func listQuery(c *gin.Context, key string) []string {
	var items []string
	for _, value := range c.QueryArray(key) {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

var errorStatus = map[string]int{
	dashboard.CodeDataUnavailable:   http.StatusServiceUnavailable,
	dashboard.CodeInvalidColumn:     http.StatusBadRequest,
	dashboard.CodeEmptyTable:        http.StatusNotFound,
	dashboard.CodeMissingCoordinate: http.StatusUnprocessableEntity,
	dashboard.CodeInvalidCurrency:   http.StatusInternalServerError,
	dashboard.CodeInvalidRecord:     http.StatusInternalServerError,
	services.CodeUnknownEnvironment: http.StatusNotFound,
	services.CodeValidation:         http.StatusBadRequest,
}

// respondError writes the error envelope for a service error
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var pe *dashboard.Error
	if !errors.As(err, &pe) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Unexpected error",
			},
		})
		return
	}

	status, ok := errorStatus[pe.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := pe.Message
	if status < http.StatusInternalServerError && pe.Err != nil {
		message = pe.Error()
	}

	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    pe.Code,
			"message": message,
		},
	})
}

func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}
