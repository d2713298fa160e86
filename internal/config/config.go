// Package config loads runtime configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// TableConfig names the DynamoDB tables and indexes.
type TableConfig struct {
	Orders        string
	Catalog       string
	Users         string
	UserOrders    string
	Idempotency   string
	DeliveryIndex string
}

// NotifyConfig controls the best-effort notification path.
type NotifyConfig struct {
	QueueURL     string
	Endpoint     string
	PushEndpoint string
	Timeout      time.Duration
}

// CacheConfig controls the Redis catalog cache. An empty Addr disables it.
type CacheConfig struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// MetricsConfig controls metric namespaces.
type MetricsConfig struct {
	Namespace         string
	CloudWatchEnabled bool
}

// Config holds all configuration
type Config struct {
	ServiceName    string
	Env            string
	LogLevel       string
	RunLocal       bool
	HTTPAddr       string
	JWTSecret      string
	TokenTTL       time.Duration
	IdempotencyTTL time.Duration
	Tables         TableConfig
	Notify         NotifyConfig
	Cache          CacheConfig
	Metrics        MetricsConfig
}

// Load reads configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		ServiceName:    getEnv("SERVICE_NAME", "pharmacy-orderflow"),
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RunLocal:       getEnvAsBool("RUN_LOCAL", false),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		TokenTTL:       getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
		IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 48*time.Hour),
		Tables: TableConfig{
			Orders:        getEnv("ORDERS_TABLE", ""),
			Catalog:       getEnv("CATALOG_TABLE", ""),
			Users:         getEnv("USERS_TABLE", ""),
			UserOrders:    getEnv("USER_ORDERS_TABLE", ""),
			Idempotency:   getEnv("IDEMPOTENCY_TABLE", ""),
			DeliveryIndex: getEnv("DELIVERY_INDEX", "delivery_person_id-index"),
		},
		Notify: NotifyConfig{
			QueueURL:     getEnv("NOTIFY_QUEUE_URL", ""),
			Endpoint:     getEnv("NOTIFY_ENDPOINT", ""),
			PushEndpoint: getEnv("PUSH_ENDPOINT", ""),
			Timeout:      getEnvAsDuration("NOTIFY_TIMEOUT", 3*time.Second),
		},
		Cache: CacheConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			TTL:      getEnvAsDuration("CATALOG_CACHE_TTL", time.Minute),
		},
		Metrics: MetricsConfig{
			Namespace:         getEnv("METRICS_NAMESPACE", "PharmacyOrderflow"),
			CloudWatchEnabled: getEnvAsBool("CLOUDWATCH_ENABLED", false),
		},
	}
	return cfg, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	required := map[string]string{
		"ORDERS_TABLE":      c.Tables.Orders,
		"CATALOG_TABLE":     c.Tables.Catalog,
		"USERS_TABLE":       c.Tables.Users,
		"USER_ORDERS_TABLE": c.Tables.UserOrders,
		"IDEMPOTENCY_TABLE": c.Tables.Idempotency,
		"JWT_SECRET":        c.JWTSecret,
	}
	for key, val := range required {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LogFields returns non-secret settings for a startup log line.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Env),
		zap.Bool("run_local", c.RunLocal),
		zap.String("orders_table", c.Tables.Orders),
		zap.String("catalog_table", c.Tables.Catalog),
		zap.Bool("notify_queue", c.Notify.QueueURL != ""),
		zap.Bool("notify_http", c.Notify.Endpoint != ""),
		zap.Bool("cache_enabled", c.Cache.Addr != ""),
		zap.Bool("cloudwatch_enabled", c.Metrics.CloudWatchEnabled),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
