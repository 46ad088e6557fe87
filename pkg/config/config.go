// Package config builds the explicit run configuration from the environment,
// an optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
)

const (
	DefaultTokenURL  = "https://api.umbrella.com/auth/v2/token"
	DefaultReportURL = "https://api.umbrella.com/reports/v2"
	DefaultEnvFile   = ".env"
)

// Credentials are the OAuth2 client credentials and the token endpoint.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// Retry bounds the handling of transient API errors.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RateLimit configures client-side request throttling. A zero
// RequestsPerSecond disables it.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// Config is constructed once at process start and passed by reference.
type Config struct {
	Credentials   Credentials
	ReportURL     string
	OrgID         string
	CategoriesURL string

	LogLevel  string
	LogFormat string

	HTTPTimeout time.Duration
	PageLimit   int
	Retry       Retry
	RateLimit   RateLimit
}

// LoadOptions controls where Load looks for values.
type LoadOptions struct {
	// EnvFile is loaded with godotenv without overriding variables that are
	// already set. A missing DefaultEnvFile is ignored; any other missing
	// file is an error.
	EnvFile string
	// ConfigFile is an optional YAML file; empty means none.
	ConfigFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// fileConfig mirrors the environment keys in snake case.
type fileConfig struct {
	APIKey           string  `yaml:"api_key"`
	APISecret        string  `yaml:"api_secret"`
	TokenURL         string  `yaml:"token_url"`
	ReportURL        string  `yaml:"report_url"`
	OrgID            string  `yaml:"org_id"`
	CategoriesURL    string  `yaml:"categories_url"`
	LogLevel         string  `yaml:"log_level"`
	LogFormat        string  `yaml:"log_format"`
	HTTPTimeout      string  `yaml:"http_timeout"`
	PageLimit        int     `yaml:"page_limit"`
	RetryMaxAttempts int     `yaml:"retry_max_attempts"`
	RetryBaseDelay   string  `yaml:"retry_base_delay"`
	RetryMaxDelay    string  `yaml:"retry_max_delay"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
}

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		Credentials: Credentials{TokenURL: DefaultTokenURL},
		ReportURL:   DefaultReportURL,
		LogLevel:    "warn",
		LogFormat:   "dev",
		HTTPTimeout: 10 * time.Second,
		PageLimit:   100,
		Retry: Retry{
			MaxAttempts: 5,
			BaseDelay:   2 * time.Second,
			MaxDelay:    60 * time.Second,
		},
		RateLimit: RateLimit{Burst: 1},
	}
}

// Load resolves the configuration with precedence env > YAML > defaults.
// It does not validate required values; call Validate for that.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			if !(errors.Is(err, fs.ErrNotExist) && opts.EnvFile == DefaultEnvFile) {
				return nil, fmt.Errorf("%w: load env file %s: %v", errs.ErrConfig, opts.EnvFile, err)
			}
		}
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()
	if opts.ConfigFile != "" {
		if err := cfg.applyFile(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read config file: %v", errs.ErrConfig, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("%w: parse config file %s: %v", errs.ErrConfig, path, err)
	}

	setString(&c.Credentials.ClientID, fc.APIKey)
	setString(&c.Credentials.ClientSecret, fc.APISecret)
	setString(&c.Credentials.TokenURL, fc.TokenURL)
	setString(&c.ReportURL, fc.ReportURL)
	setString(&c.OrgID, fc.OrgID)
	setString(&c.CategoriesURL, fc.CategoriesURL)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	if fc.PageLimit != 0 {
		c.PageLimit = fc.PageLimit
	}
	if fc.RetryMaxAttempts != 0 {
		c.Retry.MaxAttempts = fc.RetryMaxAttempts
	}
	if fc.RateLimitRPS != 0 {
		c.RateLimit.RequestsPerSecond = fc.RateLimitRPS
	}
	if fc.RateLimitBurst != 0 {
		c.RateLimit.Burst = fc.RateLimitBurst
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"http_timeout", fc.HTTPTimeout, &c.HTTPTimeout},
		{"retry_base_delay", fc.RetryBaseDelay, &c.Retry.BaseDelay},
		{"retry_max_delay", fc.RetryMaxDelay, &c.Retry.MaxDelay},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrConfig, d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("API_KEY"); ok {
		c.Credentials.ClientID = v
	}
	if v, ok := get("API_SECRET"); ok {
		c.Credentials.ClientSecret = v
	}
	if v, ok := get("TOKEN_URL"); ok {
		c.Credentials.TokenURL = v
	}
	if v, ok := get("REPORT_URL"); ok {
		c.ReportURL = v
	}
	if v, ok := get("ORG_ID"); ok {
		c.OrgID = v
	}
	if v, ok := get("CATEGORIES_URL"); ok {
		c.CategoriesURL = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.LogFormat = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", &c.HTTPTimeout},
		{"RETRY_BASE_DELAY", &c.Retry.BaseDelay},
		{"RETRY_MAX_DELAY", &c.Retry.MaxDelay},
	}
	for _, d := range durations {
		v, ok := get(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrConfig, d.key, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PAGE_LIMIT", &c.PageLimit},
		{"RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts},
		{"RATE_LIMIT_BURST", &c.RateLimit.Burst},
	}
	for _, i := range ints {
		v, ok := get(i.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrConfig, i.key, err)
		}
		*i.dst = n
	}

	if v, ok := get("RATE_LIMIT_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: RATE_LIMIT_RPS: %v", errs.ErrConfig, err)
		}
		c.RateLimit.RequestsPerSecond = rps
	}
	return nil
}

// Validate reports every missing or out-of-range value at once.
func (c *Config) Validate() error {
	var problems []string
	if c.Credentials.ClientID == "" {
		problems = append(problems, "API_KEY is required")
	}
	if c.Credentials.ClientSecret == "" {
		problems = append(problems, "API_SECRET is required")
	}
	if c.Credentials.TokenURL == "" {
		problems = append(problems, "TOKEN_URL is empty")
	}
	if c.ReportURL == "" {
		problems = append(problems, "REPORT_URL is empty")
	}
	if c.PageLimit <= 0 {
		problems = append(problems, "PAGE_LIMIT must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		problems = append(problems, "RETRY_MAX_ATTEMPTS must be positive")
	}
	if c.HTTPTimeout <= 0 {
		problems = append(problems, "HTTP_TIMEOUT must be positive")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		problems = append(problems, "RATE_LIMIT_RPS must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errs.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// BaseURL is the root every report endpoint is resolved against. Setting
// ORG_ID selects the organization-scoped form of the reporting API.
func (c *Config) BaseURL() string {
	base := strings.TrimRight(c.ReportURL, "/")
	if c.OrgID != "" {
		base += "/organizations/" + c.OrgID
	}
	return base
}

// CategoriesEndpoint returns CATEGORIES_URL when set, else the categories
// endpoint under BaseURL.
func (c *Config) CategoriesEndpoint() string {
	if c.CategoriesURL != "" {
		return c.CategoriesURL
	}
	return c.BaseURL() + "/categories"
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
