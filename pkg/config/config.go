package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port     string
	Env      string // development, staging, production
	Timezone string // exchange timezone, Asia/Shanghai

	// Persistence
	Store    StoreConfig
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Tushare   TushareConfig
	Eastmoney EastmoneyConfig
	News      NewsConfig
	Notify    NotifyConfig

	// Fetch layer
	Fetch FetchConfig

	// Strategy YAML path
	StrategyPath string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring (/metrics on the API port)
	MetricsEnabled bool
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver     string // sqlite, postgres
	SQLitePath string
	BackupDir  string
	BackupKeep int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// TushareConfig holds Tushare Pro API configuration
type TushareConfig struct {
	Token      string
	BaseURL    string
	RatePerMin int
}

// EastmoneyConfig holds Eastmoney quote API configuration
type EastmoneyConfig struct {
	KlineURL    string
	SnapshotURL string
}

// NewsConfig holds headline scraper configuration
type NewsConfig struct {
	URL       string
	Selector  string
	Limit     int
	UserAgent string // 일부 포털은 기본 UA를 차단
}

// NotifyConfig holds push notification configuration
type NotifyConfig struct {
	WebhookURL  string
	Destination string
}

// FetchConfig holds deployment-level fetch settings.
// Chain timeouts and breaker thresholds live in the strategy YAML.
type FetchConfig struct {
	CacheTTL        time.Duration // shared (redis) tier TTL
	ProviderTimeout time.Duration // one HTTP request to a provider
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port:     getEnv("PORT", "8089"),
		Env:      getEnv("ENV", "development"),
		Timezone: getEnv("TIMEZONE", "Asia/Shanghai"),

		Store: StoreConfig{
			Driver:     getEnv("STORE_DRIVER", DriverSQLite),
			SQLitePath: getEnv("SQLITE_PATH", "data/limitup.db"),
			BackupDir:  getEnv("BACKUP_DIR", "data/backups"),
			BackupKeep: getEnvAsInt("BACKUP_KEEP", 7),
		},

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		Tushare: TushareConfig{
			Token:      getEnv("TUSHARE_TOKEN", ""),
			BaseURL:    getEnv("TUSHARE_BASE_URL", "http://api.tushare.pro"),
			RatePerMin: getEnvAsInt("TUSHARE_RATE_PER_MIN", 200),
		},

		Eastmoney: EastmoneyConfig{
			KlineURL:    getEnv("EASTMONEY_KLINE_URL", "https://push2his.eastmoney.com"),
			SnapshotURL: getEnv("EASTMONEY_SNAPSHOT_URL", "https://push2.eastmoney.com"),
		},

		News: NewsConfig{
			URL:      getEnv("NEWS_URL", ""),
			Selector: getEnv("NEWS_SELECTOR", "a.news-title"),
			Limit:    getEnvAsInt("NEWS_LIMIT", 30),
			UserAgent: getEnv("NEWS_USER_AGENT",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"),
		},

		Notify: NotifyConfig{
			WebhookURL:  getEnv("NOTIFY_WEBHOOK_URL", ""),
			Destination: getEnv("NOTIFY_DESTINATION", "default"),
		},

		Fetch: FetchConfig{
			CacheTTL:        getEnvAsDuration("FETCH_CACHE_TTL", "5m"),
			ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", "10s"),
		},

		StrategyPath: getEnv("STRATEGY_CONFIG", "config/strategy/limitup.yaml"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFrom reads an explicit .env file before Load; values already in the environment win
func LoadFrom(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return Load()
}

// Location returns the exchange timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for sqlite store")
		}
	case DriverPostgres:
		// Database URL is required only for postgres
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of: sqlite, postgres")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Store.BackupKeep < 1 {
		return fmt.Errorf("BACKUP_KEEP must be positive")
	}

	if c.Fetch.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
