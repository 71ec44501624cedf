package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Firebase FirebaseConfig
	Maps     MapsConfig
	Pricing  PricingConfig
	Dispatch DispatchConfig
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

// FirebaseConfig holds FCM push-notification configuration.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	Enabled         bool
}

// MapsConfig holds distance-provider configuration.
// When APIKey is empty the service falls back to a local
// haversine estimate instead of the Distance Matrix API.
type MapsConfig struct {
	APIKey string
}

// PricingConfig holds the cost-formula constants.
// BaseCost and PerLifterCost are flat currency amounts; distance is
// recorded on the order but does not currently scale the cost.
type PricingConfig struct {
	BaseCost             float64
	PerLifterCost        float64
	DefaultServiceFeePct float64
}

// DispatchConfig holds broadcast and acceptance tuning.
type DispatchConfig struct {
	SendTimeout  time.Duration
	OrderLockTTL time.Duration
	HeartbeatTTL time.Duration
}

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
			DBName:   getEnv("DB_NAME", "dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "order-dispatch-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			Enabled:         getBoolEnv("FIREBASE_ENABLED", false),
		},
		Maps: MapsConfig{
			APIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		},
		Pricing: PricingConfig{
			BaseCost:             getFloatEnv("PRICING_BASE_COST", 360.80),
			PerLifterCost:        getFloatEnv("PRICING_PER_LIFTER_COST", 360.80),
			DefaultServiceFeePct: getFloatEnv("PRICING_DEFAULT_SERVICE_FEE_PCT", 10),
		},
		Dispatch: DispatchConfig{
			SendTimeout:  getDurationEnv("DISPATCH_SEND_TIMEOUT", 5*time.Second),
			OrderLockTTL: getDurationEnv("DISPATCH_ORDER_LOCK_TTL", 10*time.Second),
			HeartbeatTTL: getDurationEnv("DRIVER_HEARTBEAT_TTL", 90*time.Second),
		},
	}
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

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
