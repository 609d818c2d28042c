package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Ledger    LedgerConfig
	Gateways  GatewaysConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// AutoMigrate applies the ledger DDL at startup.
	AutoMigrate bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string
}

// TelemetryConfig holds OpenTelemetry tracing configuration. An empty
// endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// LedgerConfig holds payment ledger timings.
type LedgerConfig struct {
	PendingTTL         time.Duration
	SweepInterval      time.Duration
	SweepBatch         int
	SweepRetryBackoff  time.Duration
	PayoutCacheTTL     time.Duration
	PayoutPollInterval time.Duration // 0 disables the poller
	GatewayTimeout     time.Duration
}

// GatewayConfig holds the settings of one gateway.
type GatewayConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Currency      string
}

// GatewaysConfig holds settings for every gateway, keyed by gateway name
// (LOCAL_PAYMENT, STRIPE, ...).
type GatewaysConfig struct {
	Enabled        []string
	LocalProvider  string
	CryptoProvider string
	Settings       map[string]GatewayConfig
}

var gatewayNames = []string{"LOCAL_PAYMENT", "STRIPE", "PAYPAL", "CRYPTO", "AMAZON", "APPLE", "GOOGLE"}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "payledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "payledger"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "payledger"),
		},
		Ledger: LedgerConfig{
			PendingTTL:         getDurationEnv("PAYMENT_PENDING_TTL", 15*time.Minute),
			SweepInterval:      getDurationEnv("EXPIRY_SWEEP_INTERVAL", 30*time.Second),
			SweepBatch:         getIntEnv("EXPIRY_SWEEP_BATCH", 200),
			SweepRetryBackoff:  getDurationEnv("EXPIRY_RETRY_BACKOFF", 5*time.Minute),
			PayoutCacheTTL:     getDurationEnv("PAYOUT_STATUS_CACHE_TTL", 60*time.Second),
			PayoutPollInterval: getDurationEnv("PAYOUT_POLL_INTERVAL", 0),
			GatewayTimeout:     getDurationEnv("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Gateways: loadGateways(),
	}
}

func loadGateways() GatewaysConfig {
	cfg := GatewaysConfig{
		Enabled:        getListEnv("ENABLED_GATEWAYS", gatewayNames),
		LocalProvider:  getEnv("LOCAL_PAYMENT_PROVIDER", "MIDTRANS"),
		CryptoProvider: getEnv("CRYPTO_PAYMENT_PROVIDER", "COINGATE"),
		Settings:       make(map[string]GatewayConfig, len(gatewayNames)),
	}
	for _, name := range gatewayNames {
		cfg.Settings[name] = GatewayConfig{
			BaseURL:       getEnv(name+"_BASE_URL", ""),
			APIKey:        getEnv(name+"_API_KEY", ""),
			WebhookSecret: getEnv(name+"_WEBHOOK_SECRET", ""),
			Currency:      getEnv(name+"_CURRENCY", ""),
		}
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.ToUpper(strings.TrimSpace(item)); item != "" {
			list = append(list, item)
		}
	}
	return list
}
