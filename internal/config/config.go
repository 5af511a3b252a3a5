package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	HTTPAddr string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	// BillingIntervalMinutes controls how often the billing daemon runs a
	// reconciliation pass. Must be a positive integer.
	BillingIntervalMinutes int

	// ConnectMaxAttempts bounds the daemon's startup connection retries.
	ConnectMaxAttempts int
	ConnectBaseDelay   time.Duration

	// SeedDemoData provisions a demo wallet and instances at startup.
	SeedDemoData bool
}

var (
	ErrMissingDatabase        = errors.New("database connection settings are required")
	ErrInvalidBillingInterval = errors.New("billing interval must be a positive integer of minutes")
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "fleetbill"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "fleetbill"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		BillingIntervalMinutes: getenvInt("BILLING_INTERVAL_MINUTES", 60),

		ConnectMaxAttempts: getenvInt("DATABASE_CONNECT_MAX_ATTEMPTS", 10),
		ConnectBaseDelay:   time.Duration(getenvInt("DATABASE_CONNECT_BASE_DELAY_MS", 500)) * time.Millisecond,

		SeedDemoData: getenvBool("SEED_DEMO_DATA", false),
	}

	return cfg
}

// Validate checks settings the billing daemon cannot start without. A
// violation is fatal at startup, before any timer is armed.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBHost) == "" || strings.TrimSpace(c.DBName) == "" {
		return ErrMissingDatabase
	}
	if c.BillingIntervalMinutes <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBillingInterval, c.BillingIntervalMinutes)
	}
	return nil
}

// BillingInterval returns the daemon's billing tick interval.
func (c Config) BillingInterval() time.Duration {
	return time.Duration(c.BillingIntervalMinutes) * time.Minute
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

var Module = fx.Module("config",
	fx.Provide(Load),
)
