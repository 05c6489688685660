package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cadeo/cadeo-dashboard/dashboard"
	"github.com/cadeo/cadeo-dashboard/models"
)

// Request errors raised by the service on top of the pipeline codes
const (
	// CodeUnknownEnvironment is returned when a request names an environment
	// that has no database configured
	CodeUnknownEnvironment = "UNKNOWN_ENVIRONMENT"
	CodeValidation         = "VALIDATION_ERROR"
)

// Map data sources
const (
	MapSourceCSV      = "csv"
	MapSourceDatabase = "db"
)

// DashboardConfig wires the data sources of the dashboards
type DashboardConfig struct {
	Databases          map[string]*SQLSource // keyed by environment name
	DefaultEnvironment string
	CSV                *CSVSource
	MapSeed            uint64
	NoRandomCities     bool // leave orders without a destination off the map
	Loader             LoaderOptions
}

// Environment is one database with its cached snapshots
type Environment struct {
	Name   string
	source *SQLSource
	orders *Loader[*dashboard.OrderTable]
	users  *Loader[int]
}

// DashboardService runs Load -> Enrich/Filter -> Aggregate for each request
type DashboardService struct {
	envs       map[string]*Environment
	defaultEnv string
	cities     *Loader[[]models.CityCoordinate]
	csvOrders  *Loader[*dashboard.OrderTable]
	seed       uint64
	noRandom   bool
	metrics    *Metrics
	logger     *slog.Logger
}

// OrderQuery narrows the order table. Nil bounds default to the table's
// price bounds; no columns means the default selection.
type OrderQuery struct {
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Columns  []string
}

// MapQuery selects the records shown on the map
type MapQuery struct {
	Source      string // MapSourceCSV or MapSourceDatabase
	Environment string // used with MapSourceDatabase
	Cities      []string
}

// ColumnsInfo lists the columns a table offers and the default selection
type ColumnsInfo struct {
	Available []dashboard.Column `json:"available"`
	Default   []dashboard.Column `json:"default"`
}

// NewDashboardService builds the loaders for every configured source
func NewDashboardService(cfg DashboardConfig) *DashboardService {
	logger := cfg.Loader.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &DashboardService{
		envs:       make(map[string]*Environment, len(cfg.Databases)),
		defaultEnv: cfg.DefaultEnvironment,
		seed:       cfg.MapSeed,
		noRandom:   cfg.NoRandomCities,
		metrics:    cfg.Loader.Metrics,
		logger:     logger,
	}

	for name, source := range cfg.Databases {
		s.envs[name] = &Environment{
			Name:   name,
			source: source,
			orders: NewLoader[*dashboard.OrderTable](name+"/orders", source.FetchOrders, cfg.Loader),
			users:  NewLoader[int](name+"/users", source.FetchUserCount, cfg.Loader),
		}
	}

	if cfg.CSV != nil {
		s.cities = NewLoader[[]models.CityCoordinate]("csv/cities", cfg.CSV.FetchCities, cfg.Loader)
		s.csvOrders = NewLoader[*dashboard.OrderTable]("csv/orders", cfg.CSV.FetchOrders, cfg.Loader)
	}

	return s
}

// Environments returns the configured environment names, sorted
func (s *DashboardService) Environments() []string {
	names := make([]string, 0, len(s.envs))
	for name := range s.envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *DashboardService) environment(name string) (*Environment, error) {
	if name == "" {
		name = s.defaultEnv
	}
	env, ok := s.envs[name]
	if !ok {
		return nil, &dashboard.Error{
			Code:    CodeUnknownEnvironment,
			Message: fmt.Sprintf("unknown environment %q", name),
		}
	}
	return env, nil
}

// Summary computes the metric cards of an environment
func (s *DashboardService) Summary(ctx context.Context, envName string) (dashboard.MetricsSummary, error) {
	env, err := s.environment(envName)
	if err != nil {
		return dashboard.MetricsSummary{}, err
	}

	orders, err := env.orders.Load(ctx)
	if err != nil {
		return dashboard.MetricsSummary{}, err
	}
	users, err := env.users.Load(ctx)
	if err != nil {
		return dashboard.MetricsSummary{}, err
	}

	return dashboard.Summarize(orders, users), nil
}

// Columns lists the columns of an environment's order table
func (s *DashboardService) Columns(ctx context.Context, envName string) (ColumnsInfo, error) {
	env, err := s.environment(envName)
	if err != nil {
		return ColumnsInfo{}, err
	}

	orders, err := env.orders.Load(ctx)
	if err != nil {
		return ColumnsInfo{}, err
	}

	return ColumnsInfo{Available: orders.Columns(), Default: orders.DefaultSelection()}, nil
}

// PriceBounds returns the slider bounds of an environment's orders
func (s *DashboardService) PriceBounds(ctx context.Context, envName string) (dashboard.PriceBounds, error) {
	env, err := s.environment(envName)
	if err != nil {
		return dashboard.PriceBounds{}, err
	}

	orders, err := env.orders.Load(ctx)
	if err != nil {
		return dashboard.PriceBounds{}, err
	}

	return dashboard.Bounds(orders)
}

// Orders returns the filtered table of an environment
func (s *DashboardService) Orders(ctx context.Context, envName string, q OrderQuery) (*dashboard.OrderTable, error) {
	env, err := s.environment(envName)
	if err != nil {
		return nil, err
	}

	orders, err := env.orders.Load(ctx)
	if err != nil {
		return nil, err
	}

	columns := q.Columns
	if len(columns) == 0 {
		for _, c := range orders.DefaultSelection() {
			columns = append(columns, string(c))
		}
	}

	low, high, err := resolveRange(orders, q.MinPrice, q.MaxPrice)
	if err != nil {
		return nil, err
	}

	return dashboard.FilterByPriceRange(orders, low, high, columns)
}

// resolveRange fills missing ends of the range from the table's bounds. An
// empty table with an open range gets [0, 0], which matches nothing.
func resolveRange(orders *dashboard.OrderTable, minPrice, maxPrice *decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if minPrice != nil && maxPrice != nil {
		return *minPrice, *maxPrice, nil
	}
	if orders.Len() == 0 {
		return decimal.Zero, decimal.Zero, nil
	}

	bounds, err := dashboard.Bounds(orders)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	low, high := bounds.Min, bounds.Max
	if minPrice != nil {
		low = *minPrice
	}
	if maxPrice != nil {
		high = *maxPrice
	}
	return low, high, nil
}

// Cities returns the coordinate table of the map dashboard
func (s *DashboardService) Cities(ctx context.Context) ([]models.CityCoordinate, error) {
	if s.cities == nil {
		return nil, dashboard.DataUnavailable("cities", fmt.Errorf("no CSV source configured"))
	}
	return s.cities.Load(ctx)
}

// MapOrders enriches the selected orders with coordinates and narrows them
// to the selected cities. Orders whose city has no coordinates are dropped
// and reported in the result.
func (s *DashboardService) MapOrders(ctx context.Context, q MapQuery) (dashboard.EnrichResult, error) {
	coords, err := s.Cities(ctx)
	if err != nil {
		return dashboard.EnrichResult{}, err
	}

	var orders *dashboard.OrderTable
	switch q.Source {
	case "", MapSourceCSV:
		if s.csvOrders == nil {
			return dashboard.EnrichResult{}, dashboard.DataUnavailable("csv orders", fmt.Errorf("no CSV source configured"))
		}
		orders, err = s.csvOrders.Load(ctx)
	case MapSourceDatabase:
		var env *Environment
		env, err = s.environment(q.Environment)
		if err != nil {
			return dashboard.EnrichResult{}, err
		}
		orders, err = env.orders.Load(ctx)
	default:
		return dashboard.EnrichResult{}, &dashboard.Error{
			Code:    CodeValidation,
			Message: fmt.Sprintf("unknown map source %q", q.Source),
		}
	}
	if err != nil {
		return dashboard.EnrichResult{}, err
	}

	result := dashboard.Enrich(orders, coords, s.newRandom())
	if dropErr := result.Err(); dropErr != nil {
		s.metrics.droppedOrders(len(result.Dropped))
		s.logger.Warn("Orders dropped from map",
			slog.String("source", q.Source),
			slog.Int("dropped", len(result.Dropped)),
			slog.String("reason", dropErr.Error()))
	}

	result.Records = dashboard.FilterByCities(result.Records, q.Cities)
	return result, nil
}

// newRandom returns a source seeded identically on every call, so unchanged
// data lands on the same cities across requests. It is nil when random
// placement is off.
func (s *DashboardService) newRandom() dashboard.RandomSource {
	if s.noRandom {
		return nil
	}
	return rand.New(rand.NewPCG(s.seed, s.seed))
}

// Refresh drops the cached snapshots of an environment and of the map files
func (s *DashboardService) Refresh(envName string) error {
	env, err := s.environment(envName)
	if err != nil {
		return err
	}

	env.orders.Invalidate()
	env.users.Invalidate()
	if s.cities != nil {
		s.cities.Invalidate()
		s.csvOrders.Invalidate()
	}

	s.logger.Info("Dashboard caches invalidated", slog.String("environment", env.Name))
	return nil
}

// DatabaseStatus pings an environment's database and lists its tables
func (s *DashboardService) DatabaseStatus(ctx context.Context, envName string) ([]string, error) {
	env, err := s.environment(envName)
	if err != nil {
		return nil, err
	}

	if err := env.source.Ping(ctx); err != nil {
		return nil, dashboard.DataUnavailable(env.Name+" database", err)
	}

	tables, err := env.source.Tables(ctx)
	if err != nil {
		return nil, dashboard.DataUnavailable(env.Name+" tables", err)
	}
	sort.Strings(tables)
	return tables, nil
}
