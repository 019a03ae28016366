package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBackendURL  = "http://localhost:8000"
	DefaultHTTPTimeout = 120 * time.Second
	DefaultReloadDelay = 2 * time.Second
	DefaultRateLimit   = 5
	DefaultLogLevel    = "info"
)

type Config struct {
	DataDir    string
	DBPath     string
	LogDir     string
	RubricPath string

	BackendURL  string
	HTTPTimeout time.Duration
	ReloadDelay time.Duration
	RateLimit   int
	LogLevel    string
	SentryDSN   string
}

// fileConfig is the optional config.yaml in the data dir.
type fileConfig struct {
	BackendURL  string `yaml:"backend_url"`
	HTTPTimeout string `yaml:"http_timeout"`
	ReloadDelay string `yaml:"reload_delay"`
	RateLimit   int    `yaml:"rate_limit"`
	LogLevel    string `yaml:"log_level"`
	SentryDSN   string `yaml:"sentry_dsn"`
	Rubric      string `yaml:"rubric"`
}

// New resolves configuration from defaults, then config.yaml in the data dir,
// then a .env file, then the environment. Later sources win.
func New() (*Config, error) {
	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("PLAYCHECK_DATA_DIR", filepath.Join(homeDir, ".playcheck"))

	c := &Config{
		DataDir:     dataDir,
		DBPath:      filepath.Join(dataDir, "playcheck.db"),
		LogDir:      filepath.Join(dataDir, "logs"),
		BackendURL:  DefaultBackendURL,
		HTTPTimeout: DefaultHTTPTimeout,
		ReloadDelay: DefaultReloadDelay,
		RateLimit:   DefaultRateLimit,
		LogLevel:    DefaultLogLevel,
	}

	if err := c.loadFile(filepath.Join(dataDir, "config.yaml")); err != nil {
		return nil, err
	}
	if err := c.loadEnv(); err != nil {
		return nil, err
	}

	if c.RubricPath == "" {
		path := filepath.Join(dataDir, "rubric.lua")
		if _, err := os.Stat(path); err == nil {
			c.RubricPath = path
		}
	}

	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if fc.BackendURL != "" {
		c.BackendURL = fc.BackendURL
	}
	if fc.HTTPTimeout != "" {
		if c.HTTPTimeout, err = time.ParseDuration(fc.HTTPTimeout); err != nil {
			return fmt.Errorf("invalid http_timeout: %w", err)
		}
	}
	if fc.ReloadDelay != "" {
		if c.ReloadDelay, err = time.ParseDuration(fc.ReloadDelay); err != nil {
			return fmt.Errorf("invalid reload_delay: %w", err)
		}
	}
	if fc.RateLimit != 0 {
		c.RateLimit = fc.RateLimit
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.SentryDSN != "" {
		c.SentryDSN = fc.SentryDSN
	}
	if fc.Rubric != "" {
		c.RubricPath = fc.Rubric
		if !filepath.IsAbs(c.RubricPath) {
			c.RubricPath = filepath.Join(c.DataDir, c.RubricPath)
		}
	}
	return nil
}

func (c *Config) loadEnv() error {
	// The web frontend's variable is honoured for shared .env files.
	c.BackendURL = getEnv("NEXT_PUBLIC_BACKEND_URL", c.BackendURL)
	c.BackendURL = getEnv("PLAYCHECK_BACKEND_URL", c.BackendURL)
	c.LogLevel = getEnv("PLAYCHECK_LOG_LEVEL", c.LogLevel)
	c.SentryDSN = getEnv("PLAYCHECK_SENTRY_DSN", c.SentryDSN)
	c.RubricPath = getEnv("PLAYCHECK_RUBRIC", c.RubricPath)

	var err error
	if v, ok := os.LookupEnv("PLAYCHECK_HTTP_TIMEOUT"); ok {
		if c.HTTPTimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid PLAYCHECK_HTTP_TIMEOUT: %w", err)
		}
	}
	if v, ok := os.LookupEnv("PLAYCHECK_RELOAD_DELAY"); ok {
		if c.ReloadDelay, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid PLAYCHECK_RELOAD_DELAY: %w", err)
		}
	}
	if v, ok := os.LookupEnv("PLAYCHECK_RATE_LIMIT"); ok {
		if c.RateLimit, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PLAYCHECK_RATE_LIMIT: %w", err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend URL must be an http(s) URL, got %q", c.BackendURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive")
	}
	if c.ReloadDelay <= 0 {
		return fmt.Errorf("reload delay must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(c.LogDir, 0755); err != nil {
		return err
	}
	return nil
}

func (c *Config) LogPath() string {
	return filepath.Join(c.LogDir, "playcheck.log")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
