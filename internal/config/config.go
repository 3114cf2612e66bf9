package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/themacn/trial-abuse-guard/internal/tempdomain"
)

// DefaultPath is read when no -config flag is given. A missing file at this
// path is not an error; the defaults apply.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRIAL_GUARD_"

type EmailVerifierConfig struct {
	Provider   string `yaml:"provider" validate:"omitempty,oneof=zerobounce emailable"`
	APIKey     string `yaml:"apiKey" validate:"required_with=Provider"`
	TimeoutSec int    `yaml:"timeoutSeconds" validate:"gte=0,lte=60"`
	MaxRetries int    `yaml:"maxRetries" validate:"gte=0,lte=5"`
	FailOpen   bool   `yaml:"failOpen"`
}

// TempDomainsConfig is the file form of tempdomain.Options.
type TempDomainsConfig struct {
	CustomDomains       []string `yaml:"customDomains"`
	AutoUpdate          bool     `yaml:"autoUpdate"`
	UpdateIntervalHours int      `yaml:"updateIntervalHours" validate:"gte=1,lte=720"`
	LocalStoragePath    string   `yaml:"localStoragePath"`
	LocalListPath       string   `yaml:"localListPath"`
	ExternalSources     []string `yaml:"externalSources" validate:"dive,httpurl"`
	FetchTimeoutSeconds int      `yaml:"fetchTimeoutSeconds" validate:"gte=1,lte=120"`
}

type Config struct {
	Environment   string `yaml:"environment" validate:"oneof=development production"`
	LogLevel      string `yaml:"logLevel" validate:"oneof=debug info warn error"`
	ListenAddress string `yaml:"listenAddress" validate:"required"`

	Route           string   `yaml:"route" validate:"required,startswith=/"`
	RequiredFields  []string `yaml:"requiredFields"`
	AllowedFields   []string `yaml:"allowedFields"`
	HoneypotField   string   `yaml:"honeypotField"`
	CheckMX         bool     `yaml:"checkMX"`
	CheckDisposable bool     `yaml:"checkDisposable"`
	ThankYouURL     string   `yaml:"thankYouURL"`

	OnError struct {
		Action      string `yaml:"action" validate:"omitempty,oneof=json redirect"`
		Method      string `yaml:"method" validate:"omitempty,oneof=GET POST"`
		ForwardData bool   `yaml:"forwardData"`
	} `yaml:"onError"`

	Health struct {
		Route string `yaml:"route" validate:"required,startswith=/"`
	} `yaml:"health"`

	Check struct {
		Enabled bool   `yaml:"enabled"`
		Route   string `yaml:"route" validate:"required_if=Enabled true,omitempty,startswith=/"`
	} `yaml:"check"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address" validate:"required_if=Enabled true"`
		Route   string `yaml:"route" validate:"required_if=Enabled true,omitempty,startswith=/"`
	} `yaml:"metrics"`

	Admin struct {
		Enabled bool   `yaml:"enabled"`
		Prefix  string `yaml:"prefix" validate:"required_if=Enabled true,omitempty,startswith=/"`
		Token   string `yaml:"token" validate:"required_if=Enabled true"`
	} `yaml:"admin"`

	TempDomains TempDomainsConfig `yaml:"tempDomains"`

	RateLimit struct {
		Enabled        bool `yaml:"enabled"`
		RequestsPerMin int  `yaml:"requestsPerMinute" validate:"required_if=Enabled true,gte=0"`
		Burst          int  `yaml:"burst" validate:"gte=0"`
	} `yaml:"rateLimit"`

	EmailVerifier EmailVerifierConfig `yaml:"emailVerifier"`

	Forward struct {
		Method string `yaml:"method" validate:"omitempty,oneof=POST"`
		URL    string `yaml:"url" validate:"required_if=Method POST,omitempty,url"`
	} `yaml:"forward"`

	Webhook struct {
		SuccessURL string `yaml:"successURL" validate:"omitempty,url"`
		FailureURL string `yaml:"failureURL" validate:"omitempty,url"`
	} `yaml:"webhook"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	cfg := &Config{
		Environment:     "development",
		LogLevel:        "info",
		ListenAddress:   ":8080",
		Route:           "/signup",
		RequiredFields:  []string{"email"},
		AllowedFields:   []string{"email"},
		CheckDisposable: true,
		ThankYouURL:     "/thanks",
	}
	cfg.OnError.Action = "json"
	cfg.Health.Route = "/health"
	cfg.Check.Enabled = true
	cfg.Check.Route = "/check"
	cfg.Metrics.Address = ":9090"
	cfg.Metrics.Route = "/metrics"
	cfg.Admin.Prefix = "/admin"
	cfg.TempDomains = TempDomainsConfig{
		AutoUpdate:          true,
		UpdateIntervalHours: int(tempdomain.DefaultUpdateInterval / time.Hour),
		LocalStoragePath:    "./data/temp-domains.json",
		ExternalSources:     append([]string(nil), tempdomain.DefaultSources...),
		FetchTimeoutSeconds: int(tempdomain.DefaultFetchTimeout / time.Second),
	}
	return cfg
}

// LoadConfig reads path over the defaults, applies .env and environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ListenAddress = getEnv("LISTEN_ADDRESS", c.ListenAddress)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.Admin.Token = getEnv("ADMIN_TOKEN", c.Admin.Token)
	c.EmailVerifier.APIKey = getEnv("VERIFIER_API_KEY", c.EmailVerifier.APIKey)
	c.TempDomains.LocalStoragePath = getEnv("STORAGE_PATH", c.TempDomains.LocalStoragePath)
	c.TempDomains.AutoUpdate = getEnvAsBool("AUTO_UPDATE", c.TempDomains.AutoUpdate)
	c.Metrics.Enabled = getEnvAsBool("METRICS_ENABLED", c.Metrics.Enabled)
}

// TempDomainOptions maps the tempDomains section onto the service options.
func (c *Config) TempDomainOptions(logger *zap.Logger) tempdomain.Options {
	td := c.TempDomains
	return tempdomain.Options{
		CustomDomains:  td.CustomDomains,
		AutoUpdate:     td.AutoUpdate,
		UpdateInterval: time.Duration(td.UpdateIntervalHours) * time.Hour,
		StoragePath:    td.LocalStoragePath,
		LocalListPath:  td.LocalListPath,
		Sources:        td.ExternalSources,
		FetchTimeout:   time.Duration(td.FetchTimeoutSeconds) * time.Second,
		Logger:         logger,
	}
}

// Timeout is the per-attempt verifier timeout, 5s when unset.
func (c EmailVerifierConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
