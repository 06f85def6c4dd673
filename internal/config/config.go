package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the chat server.
type Config struct {
	Port        string
	Origin      string
	Environment string
	LogLevel    string
	JWTSecret   string
	Database    DatabaseConfig
	Redis       RedisConfig
	// FanoutMode selects the cross-instance bus: "redis" or "local".
	FanoutMode      string
	EventsPerSecond float64
	EventsBurst     int
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	DSN      string
}

// RedisConfig holds the connection details shared by the fan-out bus and the
// presence counter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

const (
	FanoutRedis = "redis"
	FanoutLocal = "local"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	db := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "user"),
		Password: getEnv("DB_PASSWORD", "password"),
		Name:     getEnv("DB_NAME", "sparkchat"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
	db.DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		db.Host, db.User, db.Password, db.Name, db.Port, db.SSLMode)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	eps, err := strconv.ParseFloat(getEnv("CHAT_EVENTS_PER_SECOND", "20"), 64)
	if err != nil || eps <= 0 {
		return nil, fmt.Errorf("invalid CHAT_EVENTS_PER_SECOND %q", os.Getenv("CHAT_EVENTS_PER_SECOND"))
	}
	burst, err := strconv.Atoi(getEnv("CHAT_EVENTS_BURST", "40"))
	if err != nil || burst <= 0 {
		return nil, fmt.Errorf("invalid CHAT_EVENTS_BURST %q", os.Getenv("CHAT_EVENTS_BURST"))
	}

	mode := strings.ToLower(getEnv("FANOUT_MODE", FanoutRedis))
	if mode != FanoutRedis && mode != FanoutLocal {
		return nil, fmt.Errorf("invalid FANOUT_MODE %q: want %q or %q", mode, FanoutRedis, FanoutLocal)
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Origin:      getEnv("ORIGIN", "*"),
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		JWTSecret:   getEnv("JWT_SECRET", "default_jwt_secret"),
		Database:    db,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6380"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Prefix:   getEnv("REDIS_PREFIX", "sparkchat"),
		},
		FanoutMode:      mode,
		EventsPerSecond: eps,
		EventsBurst:     burst,
	}, nil
}

// IsProduction reports whether the server runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
