package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Circle    CircleConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port            int
	GinMode         string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Driver     string // postgres, sqlite3 or memory
	Host       string
	Port       int
	Username   string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	TestDBName string // Separate database for testing
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// CircleConfig holds savings circle behaviour switches
type CircleConfig struct {
	DefaultAmountPerMember int64
	// AutoApproveInvites activates invited members immediately instead of
	// leaving them pending until the admin approves them.
	AutoApproveInvites bool
}

// RateLimitConfig holds the redis-backed rate limiter configuration.
// Rate limiting is disabled when RedisURL is empty.
type RateLimitConfig struct {
	RedisURL        string
	RequestsPerMin  int
	AuthRequestsMin int
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite3" {
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", c.SQLitePath)
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from environment variables, reading a
// .env file first when one is present
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			GinMode:         getEnv("GIN_MODE", "debug"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			Username:   getEnv("DB_USERNAME", "postgres"),
			Password:   getEnv("DB_PASSWORD", "password"),
			DBName:     getEnv("DB_NAME", "circles"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "./circles.db"),
			TestDBName: getEnv("TEST_DB_NAME", "circles_test"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "your-secret-key-here"),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 24*time.Hour),
		},
		Circle: CircleConfig{
			DefaultAmountPerMember: int64(getEnvAsInt("DEFAULT_AMOUNT_PER_MEMBER", 1000)),
			AutoApproveInvites:     getEnvAsBool("AUTO_APPROVE_INVITES", false),
		},
		RateLimit: RateLimitConfig{
			RedisURL:        getEnv("REDIS_URL", ""),
			RequestsPerMin:  getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
			AuthRequestsMin: getEnvAsInt("AUTH_RATE_LIMIT_PER_MINUTE", 20),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
