package config

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase connects to the database behind url. postgres:// and
// postgresql:// URLs use PostgreSQL; sqlite:// URLs, file: URLs and
// ":memory:" use SQLite.
func OpenDatabase(url string) (*gorm.DB, error) {
	dialector, err := dialectorFor(url)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("Database connection established", slog.String("driver", dialector.Name()))
	return db, nil
}

func dialectorFor(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://")), nil
	case strings.HasPrefix(url, "file:"), url == ":memory:":
		return sqlite.Open(url), nil
	default:
		return nil, fmt.Errorf("unsupported database URL scheme in %q", redact(url))
	}
}

// redact hides everything after the scheme so credentials never reach logs
func redact(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i+3] + "..."
	}
	if len(url) > 8 {
		return url[:8] + "..."
	}
	return url
}
