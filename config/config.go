package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BrowserWSURL string
	TabMatch     string
	BaseURL      string
	LogLevel     string

	DatabaseURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	StoreBackend     string

	DownloadDir string
	JournalPath string
	MetricsAddr string

	MinRatings      int
	SkipSponsored   bool
	ReviewPrefix    int
	ShowMoreRetries int

	PageLoadTimeout   time.Duration
	PaginationTimeout time.Duration
	ElementTimeout    time.Duration
	SettleDelay       time.Duration
	RateLimitMs       int
	MaxRetries        int
	HeartbeatInterval time.Duration
	PassBackoff       time.Duration
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		BrowserWSURL: getEnv("BROWSER_WS_URL", "ws://127.0.0.1:9222"),
		TabMatch:     getEnv("BROWSER_TAB_MATCH", "fiverr.com"),
		BaseURL:      getEnv("BASE_URL", "https://www.fiverr.com/"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "fiverr"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		StoreBackend:     getEnv("STORE_BACKEND", "postgres"),

		DownloadDir: getEnv("DOWNLOAD_DIR", ""),
		JournalPath: getEnv("JOURNAL_PATH", "./output/crawl_journal.csv"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		MinRatings:      getEnvInt("MIN_RATINGS", 200),
		SkipSponsored:   getEnvBool("SKIP_SPONSORED", true),
		ReviewPrefix:    getEnvInt("REVIEW_PREFIX", 80),
		ShowMoreRetries: getEnvInt("SHOW_MORE_RETRIES", 3),

		PageLoadTimeout:   getEnvDuration("PAGE_LOAD_TIMEOUT", 60*time.Second),
		PaginationTimeout: getEnvDuration("PAGINATION_TIMEOUT", 30*time.Second),
		ElementTimeout:    getEnvDuration("ELEMENT_TIMEOUT", 10*time.Second),
		SettleDelay:       getEnvDuration("SETTLE_DELAY", 500*time.Millisecond),
		RateLimitMs:       getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 15*time.Second),
		PassBackoff:       getEnvDuration("PASS_BACKOFF", 30*time.Second),
	}
}

// DSN returns the PostgreSQL connection string. DATABASE_URL wins when set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Validate rejects configurations the scraper cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if !strings.HasPrefix(c.BrowserWSURL, "ws://") && !strings.HasPrefix(c.BrowserWSURL, "wss://") {
		errs = append(errs, fmt.Errorf("BROWSER_WS_URL must be a ws:// or wss:// endpoint, got %q", c.BrowserWSURL))
	}
	if c.TabMatch == "" {
		errs = append(errs, errors.New("BROWSER_TAB_MATCH must not be empty"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL))
	}
	switch c.StoreBackend {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", c.StoreBackend))
	}
	if c.MinRatings < 0 {
		errs = append(errs, errors.New("MIN_RATINGS must be >= 0"))
	}
	if c.ReviewPrefix < 1 {
		errs = append(errs, errors.New("REVIEW_PREFIX must be >= 1"))
	}
	if c.ShowMoreRetries < 0 {
		errs = append(errs, errors.New("SHOW_MORE_RETRIES must be >= 0"))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, errors.New("MAX_RETRIES must be >= 1"))
	}
	if c.RateLimitMs < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MS must be >= 0"))
	}
	for name, d := range map[string]time.Duration{
		"PAGE_LOAD_TIMEOUT":  c.PageLoadTimeout,
		"PAGINATION_TIMEOUT": c.PaginationTimeout,
		"ELEMENT_TIMEOUT":    c.ElementTimeout,
		"HEARTBEAT_INTERVAL": c.HeartbeatInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
