package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// MaxListSize is the largest list_size the backend accepts.
const MaxListSize = 100

const defaultLanguages = "en,de"

// Config is built once at startup and passed explicitly to every component.
// Nothing mutates it after NewConfig returns.
type Config struct {
	Env      string `env:"ENV,default=development"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=debug"`

	// Backend API base URL, e.g. http://localhost:3000
	APIURL         string        `env:"API_URL,required"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT,default=10s"`

	// Number of instants requested per system
	ListSize int `env:"LIST_SIZE,default=30"`

	// Name of the session cookie issued by the backend
	SessionCookieName string `env:"SESSION_COOKIE_NAME,default=id"`

	// Comma-separated BCP 47 tags offered on the settings page
	SupportedLanguagesRaw string `env:"SUPPORTED_LANGUAGES"`
	SupportedLanguages    []string

	// Login rate limiting per client IP
	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT,default=5"`
	LoginRateWindow time.Duration `env:"LOGIN_RATE_WINDOW,default=15m"`

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string `env:"METRICS_USERNAME"`
	MetricsPassword string `env:"METRICS_PASSWORD"`

	// OpenTelemetry tracing, exported over OTLP/HTTP
	TracingEnabled    bool    `env:"TRACING_ENABLED,default=false"`
	TracingEndpoint   string  `env:"TRACING_ENDPOINT,default=http://localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE,default=1"`
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_URL must be an absolute http(s) URL, got: %q", c.APIURL)
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")

	if c.ListSize <= 0 || c.ListSize > MaxListSize {
		return fmt.Errorf("LIST_SIZE must be between 1 and %d, got: %d", MaxListSize, c.ListSize)
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive, got: %s", c.BackendTimeout)
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	if c.LoginRateLimit <= 0 || c.LoginRateWindow <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive")
	}

	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1, got: %g", c.TracingSampleRate)
	}
	if c.TracingEnabled {
		if u, err := url.Parse(c.TracingEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("TRACING_ENDPOINT must be an absolute URL, got: %q", c.TracingEndpoint)
		}
	}

	if c.SupportedLanguagesRaw == "" {
		c.SupportedLanguagesRaw = defaultLanguages
	}
	c.SupportedLanguages = nil
	for _, lang := range strings.Split(c.SupportedLanguagesRaw, ",") {
		if trimmed := strings.TrimSpace(lang); trimmed != "" {
			c.SupportedLanguages = append(c.SupportedLanguages, trimmed)
		}
	}
	if len(c.SupportedLanguages) == 0 {
		return fmt.Errorf("SUPPORTED_LANGUAGES must list at least one language")
	}
	return nil
}

// IsSecure reports whether cookies should carry the Secure flag and HSTS
// should be sent.
func (c *Config) IsSecure() bool {
	return c.Env != "development"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
