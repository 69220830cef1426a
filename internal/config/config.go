package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Targets  []string `validate:"required,min=1,dive,url"`
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Output   OutputConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Schedule ScheduleConfig
	Logging  LoggingConfig
}

type ScraperConfig struct {
	ConcurrentLimit int           `validate:"min=1,max=32"`
	MaxAttempts     int           `validate:"min=1,max=10"`
	RetryDelay      time.Duration `validate:"min=0s"`
	JitterMin       time.Duration `validate:"min=0s"`
	JitterMax       time.Duration `validate:"min=0s"`
}

type BrowserConfig struct {
	Headless          bool
	UserAgent         string        `validate:"required"`
	ViewportWidth     int           `validate:"min=320"`
	ViewportHeight    int           `validate:"min=240"`
	Locale            string
	NavigationTimeout time.Duration `validate:"min=1s"`
	ReadinessTimeout  time.Duration `validate:"min=1s"`
}

type OutputConfig struct {
	Dir        string `validate:"required"`
	RunLogFile string `validate:"required"`
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string `validate:"required_if=Enabled true"`
	Port     int    `validate:"min=1,max=65535"`
	User     string
	Password string
	Name     string `validate:"required_if=Enabled true"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int32  `validate:"min=1"`
}

type RedisConfig struct {
	Enabled      bool
	Addr         string        `validate:"required_if=Enabled true"`
	Password     string
	DB           int           `validate:"min=0"`
	Stream       string        `validate:"required"`
	PollInterval time.Duration `validate:"min=100ms"`
}

type ServerConfig struct {
	Port            int `validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration
}

type ScheduleConfig struct {
	Interval   time.Duration `validate:"min=1m"`
	RunOnStart bool
}

type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json text"`
	File   string
}

// Load reads an optional .env file, then builds the configuration from the
// environment and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Targets: getStringSliceOrDefault("WATCH_TARGETS", DefaultTargets()),
		Scraper: ScraperConfig{
			ConcurrentLimit: getIntOrDefault("SCRAPER_CONCURRENT_LIMIT", 3),
			MaxAttempts:     getIntOrDefault("SCRAPER_MAX_ATTEMPTS", 2),
			RetryDelay:      getDurationOrDefault("SCRAPER_RETRY_DELAY", 3*time.Second),
			JitterMin:       getDurationOrDefault("SCRAPER_JITTER_MIN", 5*time.Second),
			JitterMax:       getDurationOrDefault("SCRAPER_JITTER_MAX", 10*time.Second),
		},
		Browser: BrowserConfig{
			Headless:          getBoolOrDefault("BROWSER_HEADLESS", true),
			UserAgent:         getEnvOrDefault("BROWSER_USER_AGENT", DefaultUserAgent),
			ViewportWidth:     getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1280),
			ViewportHeight:    getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 800),
			Locale:            getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			NavigationTimeout: getDurationOrDefault("BROWSER_NAVIGATION_TIMEOUT", 60*time.Second),
			ReadinessTimeout:  getDurationOrDefault("BROWSER_READINESS_TIMEOUT", 60*time.Second),
		},
		Output: OutputConfig{
			Dir:        getEnvOrDefault("OUTPUT_DIR", "."),
			RunLogFile: getEnvOrDefault("RUN_LOG_FILE", "scrape_runs.json"),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "watch_prices"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Redis: RedisConfig{
			Enabled:      getBoolOrDefault("REDIS_ENABLED", false),
			Addr:         getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:     getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:           getIntOrDefault("REDIS_DB", 0),
			Stream:       getEnvOrDefault("REDIS_STREAM", "stream:watch_prices"),
			PollInterval: getDurationOrDefault("REDIS_RELAY_INTERVAL", 5*time.Second),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Schedule: ScheduleConfig{
			Interval:   getDurationOrDefault("SCHEDULE_INTERVAL", 24*time.Hour),
			RunOnStart: getBoolOrDefault("SCHEDULE_RUN_ON_START", true),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
			File:   getEnvOrDefault("LOG_FILE", "scraper.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Scraper.JitterMin > c.Scraper.JitterMax {
		return fmt.Errorf("SCRAPER_JITTER_MIN cannot be greater than SCRAPER_JITTER_MAX")
	}

	if c.Redis.Enabled && !c.Database.Enabled {
		return fmt.Errorf("REDIS_ENABLED requires DB_ENABLED: events are relayed from the outbox table")
	}

	return nil
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

// DefaultTargets is the model catalog scraped when WATCH_TARGETS is unset.
func DefaultTargets() []string {
	return []string{
		"https://watchcharts.com/watch_model/35441-cartier-santos-large-wssa0018/overview",
		"https://watchcharts.com/watch_model/1525-rolex-gmt-master-ii-batgirl-126710blnr/overview",
		"https://watchcharts.com/watch_model/46426-rolex-cosmograph-daytona-126500/overview",
		"https://watchcharts.com/watch_model/22871-patek-philippe-nautilus-5711-stainless-steel-5711-1a/overview",
		"https://watchcharts.com/watch_model/22557-patek-philippe-aquanaut-5167-stainless-steel-5167a/overview",
		"https://watchcharts.com/watch_model/30921-omega-speedmaster-professional-moonwatch-310-30-42-50-01-002/overview",
		"https://watchcharts.com/watch_model/869-omega-seamaster-diver-300m-210-30-42-20-01-001/overview",
		"https://watchcharts.com/watch_model/403-omega-seamaster-300m-chronometer-2254-50/overview",
		"https://watchcharts.com/watch_model/2700-omega-seamaster-aqua-terra-150m-master-chronometer-41-220-10-41-21-10-001/overview",
		"https://watchcharts.com/watch_model/36333-tudor-black-bay-pro-79470/overview",
		"https://watchcharts.com/watch_model/36318-vacheron-constantin-historiques-222-4200h-222j-b935/overview",
		"https://watchcharts.com/watch_model/1748-grand-seiko-shunbun-sbga413/overview",
		"https://watchcharts.com/watch_model/46344-iwc-ingenieur-automatic-40-328903/overview",
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getStringSliceOrDefault splits a comma list, dropping blank entries.
func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
