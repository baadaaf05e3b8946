package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the sector index service.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (optional latest-value mirror)
	Redis RedisConfig

	// Trading session
	Trading TradingConfig

	// Index calculation
	Index IndexConfig

	// EOD export
	Export ExportConfig

	// EOD webhook notification
	Webhook WebhookConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ClockTime is a time of day without a date, as read from "HH:MM" values.
type ClockTime struct {
	Hour   int
	Minute int
}

// Minutes returns the time of day as minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// String formats the clock time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClockTime parses an "HH:MM" string.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in clock time %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in clock time %q", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// TradingConfig holds the trading session parameters consumed by the
// session state machine.
type TradingConfig struct {
	StartTime       ClockTime
	EndTime         ClockTime
	WeekendDays     map[time.Weekday]bool
	CalcInterval    time.Duration
	RefreshInterval time.Duration // sector membership cache refresh
}

// IsWeekend reports whether d falls on a configured weekend day.
func (t TradingConfig) IsWeekend(d time.Weekday) bool {
	return t.WeekendDays[d]
}

// IndexConfig holds index calculation parameters.
type IndexConfig struct {
	Seed          float64 // starting index level for sectors without history
	RetentionDays int     // tick rows older than this are pruned nightly
}

// ExportConfig holds EOD export settings.
type ExportConfig struct {
	Dir     string
	Enabled bool
}

// WebhookConfig holds EOD webhook notification settings.
type WebhookConfig struct {
	URL            string // empty disables notification
	RatePerMinute  int
	RequestTimeout time.Duration
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file. It is the only caller of os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	startTime, err := getEnvAsClock("SI_TRADING_START", "10:00")
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	endTime, err := getEnvAsClock("SI_TRADING_END", "14:31")
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	weekend, err := getEnvAsWeekdays("SI_WEEKEND_DAYS", "5,6") // Fri, Sat
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8084"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Trading: TradingConfig{
			StartTime:       startTime,
			EndTime:         endTime,
			WeekendDays:     weekend,
			CalcInterval:    getEnvAsDuration("SI_CALC_INTERVAL", "1m"),
			RefreshInterval: getEnvAsDuration("SI_SECTOR_REFRESH_INTERVAL", "1h"),
		},

		Index: IndexConfig{
			Seed:          getEnvAsFloat("SI_INDEX_SEED", 100.0),
			RetentionDays: getEnvAsInt("SI_RETENTION_DAYS", 90),
		},

		Export: ExportConfig{
			Dir:     getEnv("SI_EXPORT_DIR", "exports"),
			Enabled: getEnvAsBool("SI_EXPORT_ENABLED", true),
		},

		Webhook: WebhookConfig{
			URL:            getEnv("SI_WEBHOOK_URL", ""),
			RatePerMinute:  getEnvAsInt("SI_WEBHOOK_RATE_PER_MINUTE", 30),
			RequestTimeout: getEnvAsDuration("SI_WEBHOOK_TIMEOUT", "10s"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate fails fast on malformed configuration instead of letting a bad
// session window silently disable calculation.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Trading.EndTime.Minutes() <= c.Trading.StartTime.Minutes() {
		return fmt.Errorf("SI_TRADING_END (%s) must be after SI_TRADING_START (%s)",
			c.Trading.EndTime, c.Trading.StartTime)
	}

	if len(c.Trading.WeekendDays) >= 7 {
		return fmt.Errorf("SI_WEEKEND_DAYS covers every weekday, no trading day remains")
	}

	if c.Trading.CalcInterval <= 0 {
		return fmt.Errorf("SI_CALC_INTERVAL must be positive")
	}

	if c.Trading.RefreshInterval <= 0 {
		return fmt.Errorf("SI_SECTOR_REFRESH_INTERVAL must be positive")
	}

	if c.Index.Seed <= 0 {
		return fmt.Errorf("SI_INDEX_SEED must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{".env"}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
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
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

func getEnvAsClock(key, defaultValue string) (ClockTime, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	return ParseClockTime(valueStr)
}

// getEnvAsWeekdays parses a comma-separated list of weekday numbers
// (0 = Sunday .. 6 = Saturday) into a weekday set.
func getEnvAsWeekdays(key, defaultValue string) (map[time.Weekday]bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	days := make(map[time.Weekday]bool)
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid weekday number %q in %s", part, key)
		}
		days[time.Weekday(n)] = true
	}
	return days, nil
}
