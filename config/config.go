package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CSV sources for the map dashboard
const (
	CSVSourceLocal = "local"
	CSVSourceS3    = "s3"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL           string
	ProductionDatabaseURL string
	Port                  string
	GoEnv                 string
	LogLevel              string

	CacheTTL        time.Duration
	FetchTimeout    time.Duration
	FetchRetries    int
	MapRandomSeed   uint64
	MapRandomCities bool

	CSVSource          string
	CSVDir             string
	CitiesCSV          string
	OrdersCSV          string
	AWSRegion          string
	AWSS3Bucket        string
	AWSS3Prefix        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	Auth0Domain          string
	Auth0Audience        string
	CORSAllowedOrigins   []string
	RefreshRatePerMinute int
}

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In production, environment variables are set directly
			// so it's okay if .env files don't exist
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	cacheTTL, err := getDuration("CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := getDuration("FETCH_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	fetchRetries, err := getInt("FETCH_RETRIES", 1)
	if err != nil {
		return nil, err
	}
	refreshRate, err := getInt("REFRESH_RATE_PER_MINUTE", 6)
	if err != nil {
		return nil, err
	}
	seed, err := getSeed("MAP_RANDOM_SEED")
	if err != nil {
		return nil, err
	}
	randomCities, err := getBool("MAP_RANDOM_CITIES", true)
	if err != nil {
		return nil, err
	}

	config := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		ProductionDatabaseURL: getEnv("PRODUCTION_DATABASE_URL", ""),
		Port:                  getEnv("PORT", "8080"),
		GoEnv:                 getEnv("GO_ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		CacheTTL:              cacheTTL,
		FetchTimeout:          fetchTimeout,
		FetchRetries:          fetchRetries,
		MapRandomSeed:         seed,
		MapRandomCities:       randomCities,
		CSVSource:             strings.ToLower(getEnv("CSV_SOURCE", CSVSourceLocal)),
		CSVDir:                getEnv("CSV_DIR", "data"),
		CitiesCSV:             getEnv("CITIES_CSV", "cities.csv"),
		OrdersCSV:             getEnv("ORDERS_CSV", "orders.csv"),
		AWSRegion:             getEnv("AWS_REGION", "eu-west-1"),
		AWSS3Bucket:           getEnv("AWS_S3_BUCKET", ""),
		AWSS3Prefix:           getEnv("AWS_S3_PREFIX", ""),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Auth0Domain:           getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:         getEnv("AUTH0_AUDIENCE", ""),
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RefreshRatePerMinute:  refreshRate,
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative")
	}
	if c.RefreshRatePerMinute <= 0 {
		return fmt.Errorf("REFRESH_RATE_PER_MINUTE must be positive")
	}
	switch c.CSVSource {
	case CSVSourceLocal:
	case CSVSourceS3:
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when CSV_SOURCE=s3")
		}
	default:
		return fmt.Errorf("CSV_SOURCE must be %q or %q, got %q", CSVSourceLocal, CSVSourceS3, c.CSVSource)
	}
	if c.Auth0Domain != "" && c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required when AUTH0_DOMAIN is set")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// AuthEnabled reports whether dashboard routes require a valid JWT
func (c *Config) AuthEnabled() bool {
	return c.Auth0Domain != ""
}

// DatabaseURLs returns the database of each dashboard environment. The
// production environment is only present when its URL is configured.
func (c *Config) DatabaseURLs() map[string]string {
	urls := map[string]string{"development": c.DatabaseURL}
	if c.ProductionDatabaseURL != "" {
		urls["production"] = c.ProductionDatabaseURL
	}
	return urls
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// getSeed reads a fixed seed, or derives one from the start time when unset
func getSeed(key string) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return uint64(time.Now().UnixNano()), nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
