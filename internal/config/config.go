// Package config loads settings from built-in defaults, an optional TOML file
// named by PFT_CONFIG, and PFT_* environment variables, in that order of
// precedence from lowest to highest.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// StaleTimes holds per-resource cache freshness windows.
type StaleTimes struct {
	Transactions time.Duration `toml:"transactions"`
	Categories   time.Duration `toml:"categories"`
	Budgets      time.Duration `toml:"budgets"`
	Dashboard    time.Duration `toml:"dashboard"`
	Reports      time.Duration `toml:"reports"`
}

type Config struct {
	// API
	APIURL      string        `toml:"api_url"`
	HTTPTimeout time.Duration `toml:"http_timeout"`

	// Local state
	Storage     string `toml:"storage"`
	StateDBPath string `toml:"state_db"`

	// Logging
	LogLevel string `toml:"log_level"`

	// Events
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`

	// Cache
	CacheMaxEntries int           `toml:"cache_max_entries"`
	CacheGCTime     time.Duration `toml:"cache_gc_time"`
	Stale           StaleTimes    `toml:"stale"`

	// Local fake server
	FakeAPIAddr string `toml:"fake_api_addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		APIURL:          "http://localhost:8000/api/v1",
		Storage:         StorageSQLite,
		StateDBPath:     defaultStatePath(),
		LogLevel:        "info",
		AMQPExchange:    "pft",
		CacheMaxEntries: 500,
		CacheGCTime:     5 * time.Minute,
		Stale: StaleTimes{
			Transactions: 30 * time.Second,
			Categories:   5 * time.Minute,
			Budgets:      time.Minute,
			Dashboard:    time.Minute,
			Reports:      time.Minute,
		},
		FakeAPIAddr: "127.0.0.1:8000",
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".pft", "state.db")
	}
	return filepath.Join(home, ".pft", "state.db")
}

// Load layers the TOML file named by PFT_CONFIG, when set, and then the
// environment over the defaults.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("PFT_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile overlays the keys present in a TOML file. Unknown keys are
// rejected so typos do not pass silently.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("read config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIURL = getEnv("PFT_API_URL", c.APIURL)
	c.HTTPTimeout = getEnvDuration("PFT_HTTP_TIMEOUT", c.HTTPTimeout)
	c.Storage = getEnv("PFT_STORAGE", c.Storage)
	c.StateDBPath = getEnv("PFT_STATE_DB", c.StateDBPath)
	c.LogLevel = getEnv("PFT_LOG_LEVEL", c.LogLevel)
	c.AMQPURL = getEnv("PFT_AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("PFT_AMQP_EXCHANGE", c.AMQPExchange)
	c.CacheMaxEntries = getEnvInt("PFT_CACHE_MAX_ENTRIES", c.CacheMaxEntries)
	c.CacheGCTime = getEnvDuration("PFT_CACHE_GC_TIME", c.CacheGCTime)
	c.Stale.Transactions = getEnvDuration("PFT_STALE_TRANSACTIONS", c.Stale.Transactions)
	c.Stale.Categories = getEnvDuration("PFT_STALE_CATEGORIES", c.Stale.Categories)
	c.Stale.Budgets = getEnvDuration("PFT_STALE_BUDGETS", c.Stale.Budgets)
	c.Stale.Dashboard = getEnvDuration("PFT_STALE_DASHBOARD", c.Stale.Dashboard)
	c.Stale.Reports = getEnvDuration("PFT_STALE_REPORTS", c.Stale.Reports)
	c.FakeAPIAddr = getEnv("PFT_FAKE_API_ADDR", c.FakeAPIAddr)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate API URL
	if parsedURL, err := url.Parse(c.APIURL); err != nil || c.APIURL == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s'", c.APIURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.HTTPTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must not be negative", c.HTTPTimeout))
	}

	// Validate storage backend
	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if c.StateDBPath == "" {
			errors = append(errors, "state database path cannot be empty when using sqlite storage")
		} else {
			dir := filepath.Dir(c.StateDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o700); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create state directory '%s': %v", dir, err))
					}
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid storage '%s': must be one of [%s %s]", c.Storage, StorageSQLite, StorageMemory))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate cache settings
	if c.CacheMaxEntries < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache max entries %d: must not be negative", c.CacheMaxEntries))
	}
	if c.CacheGCTime < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache GC time %v: must not be negative", c.CacheGCTime))
	}
	for name, d := range map[string]time.Duration{
		"transactions": c.Stale.Transactions,
		"categories":   c.Stale.Categories,
		"budgets":      c.Stale.Budgets,
		"dashboard":    c.Stale.Dashboard,
		"reports":      c.Stale.Reports,
	} {
		if d < 0 {
			errors = append(errors, fmt.Sprintf("invalid %s stale time %v: must not be negative", name, d))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
