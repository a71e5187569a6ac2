// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// LogFileOff disables the diagnostic sink.
const LogFileOff = "off"

// EnvFile is read before the environment is decoded. Variables already set
// in the process environment take precedence over the file.
var EnvFile = ".env"

// Config holds every setting read from the environment.
type Config struct {
	// Canvas
	APIToken        string `env:"CANVAS_API_TOKEN"`
	APIURL          string `env:"CANVAS_API_URL"`
	InstitutionName string `env:"INSTITUTION_NAME"`
	Timezone        string `env:"TIMEZONE"`

	// EnableAnonymization is surfaced to clients in the server instructions.
	EnableAnonymization bool `env:"ENABLE_DATA_ANONYMIZATION,default=false"`

	// Diagnostics. LogFile is a path, LogFileOff, or empty for the daily
	// file under the temp directory.
	Debug   bool   `env:"DEBUG,default=false"`
	LogFile string `env:"CANVAS_MCP_LOG_FILE"`

	// Response cache. A Redis address switches from the in-memory store.
	CacheSize        int    `env:"CANVAS_CACHE_SIZE,default=512"`
	CacheRedisAddr   string `env:"CANVAS_CACHE_REDIS_ADDR"`
	CacheRedisPrefix string `env:"CANVAS_CACHE_REDIS_PREFIX,default=canvas-mcp:cache:"`

	ToolTimeout   time.Duration `env:"CANVAS_TOOL_TIMEOUT,default=30s"`
	MaxInFlight   int           `env:"CANVAS_MAX_INFLIGHT,default=16"`
	RateLimit     float64       `env:"CANVAS_RATE_LIMIT,default=10"`
	HTTPTimeout   time.Duration `env:"CANVAS_HTTP_TIMEOUT,default=30s"`
	RetryAttempts uint          `env:"CANVAS_RETRY_ATTEMPTS,default=3"`
}

// Load reads EnvFile if present, decodes the environment and validates the
// result. Every problem is reported, not just the first.
func Load() (*Config, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: %s: %w", EnvFile, err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and normalizes the API URL in place.
func (c *Config) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(c.APIToken) == "" {
		result = multierror.Append(result, errors.New("CANVAS_API_TOKEN is required"))
	}
	if strings.TrimSpace(c.APIURL) == "" {
		result = multierror.Append(result, errors.New("CANVAS_API_URL is required"))
	} else if normalized, err := NormalizeAPIURL(c.APIURL); err != nil {
		result = multierror.Append(result, err)
	} else {
		c.APIURL = normalized
	}
	if c.CacheSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("CANVAS_CACHE_SIZE must be positive, got %d", c.CacheSize))
	}
	if c.MaxInFlight <= 0 {
		result = multierror.Append(result, fmt.Errorf("CANVAS_MAX_INFLIGHT must be positive, got %d", c.MaxInFlight))
	}
	if c.ToolTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("CANVAS_TOOL_TIMEOUT must be positive, got %s", c.ToolTimeout))
	}
	if c.RateLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("CANVAS_RATE_LIMIT must not be negative, got %g", c.RateLimit))
	}
	return result.ErrorOrNil()
}

// NormalizeAPIURL checks that raw is an http(s) URL and makes it end in
// /api/v1.
func NormalizeAPIURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("CANVAS_API_URL must start with http:// or https://, got %q", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(u.Path, "/api/v1") {
		u.Path += "/api/v1"
	}
	u.RawPath = ""
	return u.String(), nil
}
