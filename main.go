package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cadeo/cadeo-dashboard/config"
	"github.com/cadeo/cadeo-dashboard/controllers"
	"github.com/cadeo/cadeo-dashboard/middleware"
	"github.com/cadeo/cadeo-dashboard/services"
)

// defaultEnvironment is the environment shown when a request names none
const defaultEnvironment = "development"

// application holds everything the router needs
type application struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *services.DashboardService
	metrics *services.Metrics
	auth    gin.HandlerFunc // nil when authentication is disabled
}

func main() {
	log.Println("Starting Cadeo dashboard server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("Server is running",
		slog.String("addr", "http://localhost:"+cfg.Port),
		slog.Any("environments", app.service.Environments()),
		slog.String("csv_source", cfg.CSVSource))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newApplication connects every data source and builds the dashboard service
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	databases := make(map[string]*services.SQLSource)
	for env, url := range cfg.DatabaseURLs() {
		db, err := config.OpenDatabase(url)
		if err != nil {
			return nil, fmt.Errorf("%s database: %w", env, err)
		}
		databases[env] = services.NewSQLSource(db)
	}

	files, err := newFileOpener(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Map files configured", slog.String("location", files.Describe()))

	metrics := services.NewMetrics()
	app := &application{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		service: services.NewDashboardService(services.DashboardConfig{
			Databases:          databases,
			DefaultEnvironment: defaultEnvironment,
			CSV:                services.NewCSVSource(files, cfg.CitiesCSV, cfg.OrdersCSV),
			MapSeed:            cfg.MapRandomSeed,
			NoRandomCities:     !cfg.MapRandomCities,
			Loader: services.LoaderOptions{
				TTL:     cfg.CacheTTL,
				Timeout: cfg.FetchTimeout,
				Retries: cfg.FetchRetries,
				Metrics: metrics,
				Logger:  logger,
			},
		}),
	}

	if cfg.AuthEnabled() {
		auth, err := middleware.EnsureValidToken(cfg)
		if err != nil {
			return nil, fmt.Errorf("auth middleware: %w", err)
		}
		app.auth = auth
	}

	return app, nil
}

func newFileOpener(ctx context.Context, cfg *config.Config) (services.FileOpener, error) {
	if cfg.CSVSource == config.CSVSourceS3 {
		s3Service, err := services.NewS3Service(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("S3 service: %w", err)
		}
		return s3Service, nil
	}
	return services.LocalFiles{Dir: cfg.CSVDir}, nil
}

// setupRouter registers the middleware chain and every route
func setupRouter(app *application) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(app.logger),
		cors.New(corsConfig(app.cfg.CORSAllowedOrigins)),
	)

	router.GET("/metrics", gin.WrapH(app.metrics.Handler()))

	dashboardController := controllers.NewDashboardController(app.service)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		read := v1.Group("", app.guard(middleware.ScopeReadDashboard)...)
		{
			read.GET("/database/status", dashboardController.GetDatabaseStatus)

			read.GET("/dashboard/environments", dashboardController.GetEnvironments)
			read.GET("/dashboard/summary", dashboardController.GetSummary)
			read.GET("/dashboard/columns", dashboardController.GetColumns)
			read.GET("/dashboard/price-bounds", dashboardController.GetPriceBounds)
			read.GET("/dashboard/orders", dashboardController.GetOrders)
			read.GET("/dashboard/orders/export", dashboardController.ExportOrders)

			read.GET("/map/cities", dashboardController.GetCities)
			read.GET("/map/orders", dashboardController.GetMapOrders)
		}

		refresh := append(app.guard(middleware.ScopeRefreshDashboard),
			middleware.RateLimit(app.cfg.RefreshRatePerMinute, app.logger),
			dashboardController.RefreshDashboard)
		v1.POST("/dashboard/refresh", refresh...)
	}

	return router
}

// guard returns the handlers enforcing scope, or none when auth is disabled
func (app *application) guard(scope string) []gin.HandlerFunc {
	if app.auth == nil {
		return nil
	}
	return []gin.HandlerFunc{app.auth, middleware.RequireScope(scope)}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cadeo dashboard API is running",
	})
}
