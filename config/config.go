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

type Config struct {
	Server   ServerConfig
	CORS     CORSConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	Session  SessionConfig
	Store    StoreConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// RemoteConfig describes the storefront backend that owns the authoritative cart.
type RemoteConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
}

type SyncConfig struct {
	DebounceWindow time.Duration
	ResyncSpec     string // cron spec, empty disables background resync
	SnapshotKey    string
}

type SessionConfig struct {
	SignInRoute string
	Token       string // optional bootstrap token
}

// StoreConfig selects where the last known snapshot is persisted: none, redis or postgres.
type StoreConfig struct {
	Driver string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8090"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Remote: RemoteConfig{
			BaseURL:   getEnv("REMOTE_BASE_URL", "http://localhost:8080"),
			Timeout:   parseDuration(getEnv("REMOTE_TIMEOUT", "15s"), 15*time.Second),
			RateLimit: parseFloat(getEnv("REMOTE_RATE_LIMIT", "20")),
			Burst:     parseInt(getEnv("REMOTE_RATE_BURST", "10")),
		},
		Sync: SyncConfig{
			DebounceWindow: parseDuration(getEnv("SYNC_DEBOUNCE_WINDOW", "500ms"), 500*time.Millisecond),
			ResyncSpec:     getEnv("SYNC_RESYNC_SPEC", "@every 30s"),
			SnapshotKey:    getEnv("SYNC_SNAPSHOT_KEY", "default"),
		},
		Session: SessionConfig{
			SignInRoute: getEnv("SESSION_SIGNIN_ROUTE", "/login"),
			Token:       getEnv("SESSION_TOKEN", ""),
		},
		Store: StoreConfig{
			Driver: getEnv("SNAPSHOT_STORE", "none"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "cartsync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", ""),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "none", "redis", "postgres":
	default:
		return fmt.Errorf("unsupported SNAPSHOT_STORE %q", c.Store.Driver)
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("REMOTE_BASE_URL is required")
	}
	if c.Sync.DebounceWindow <= 0 {
		return fmt.Errorf("SYNC_DEBOUNCE_WINDOW must be positive")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using 0", s)
		return 0
	}
	return n
}

func parseSlice(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("Invalid number %s, using 0", s)
		return 0
	}
	return f
}
