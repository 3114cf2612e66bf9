package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themacn/trial-abuse-guard/internal/tempdomain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
listenAddress: ":8081"
route: "/join"
thankYouURL: "/thanks"
onError:
  action: "redirect"
  method: "GET"
  forwardData: true
requiredFields: ["email", "name"]
allowedFields: ["email"]
forward:
  method: "POST"
  url: "http://localhost/fake"
tempDomains:
  customDomains: ["x.com"]
  autoUpdate: false
  updateIntervalHours: 6
  localStoragePath: "/var/lib/guard/domains.json"
  localListPath: "/etc/guard/extra-domains.txt"
  externalSources: ["https://lists.example/a.txt"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.ListenAddress)
	assert.Equal(t, "/join", cfg.Route)
	assert.Equal(t, "redirect", cfg.OnError.Action)
	assert.Equal(t, "GET", cfg.OnError.Method)
	assert.True(t, cfg.OnError.ForwardData)
	assert.Equal(t, []string{"email", "name"}, cfg.RequiredFields)
	assert.Equal(t, "/health", cfg.Health.Route, "unset keys keep their defaults")
	assert.Equal(t, 10, cfg.TempDomains.FetchTimeoutSeconds)

	opts := cfg.TempDomainOptions(nil)
	assert.Equal(t, []string{"x.com"}, opts.CustomDomains)
	assert.False(t, opts.AutoUpdate)
	assert.Equal(t, 6*time.Hour, opts.UpdateInterval)
	assert.Equal(t, "/var/lib/guard/domains.json", opts.StoragePath)
	assert.Equal(t, "/etc/guard/extra-domains.txt", opts.LocalListPath)
	assert.Equal(t, []string{"https://lists.example/a.txt"}, opts.Sources)
	assert.Equal(t, 10*time.Second, opts.FetchTimeout)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.Equal(t, "/signup", cfg.Route)
	assert.Equal(t, "/admin", cfg.Admin.Prefix)
	assert.True(t, cfg.TempDomains.AutoUpdate)
	assert.Equal(t, 24, cfg.TempDomains.UpdateIntervalHours)
	assert.Equal(t, "./data/temp-domains.json", cfg.TempDomains.LocalStoragePath)
	assert.Equal(t, tempdomain.DefaultSources, cfg.TempDomains.ExternalSources)

	cfg.TempDomains.ExternalSources[0] = "changed"
	assert.NotEqual(t, "changed", tempdomain.DefaultSources[0])
}

func TestLoadConfig_MissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default().ListenAddress, cfg.ListenAddress)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "route: [unclosed"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TRIAL_GUARD_LISTEN_ADDRESS", ":7000")
	t.Setenv("TRIAL_GUARD_ADMIN_TOKEN", "s3cret")
	t.Setenv("TRIAL_GUARD_STORAGE_PATH", "/tmp/guard.json")
	t.Setenv("TRIAL_GUARD_AUTO_UPDATE", "false")
	t.Setenv("TRIAL_GUARD_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(writeConfig(t, `listenAddress: ":8081"`))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddress)
	assert.Equal(t, "s3cret", cfg.Admin.Token)
	assert.Equal(t, "/tmp/guard.json", cfg.TempDomains.LocalStoragePath)
	assert.False(t, cfg.TempDomains.AutoUpdate)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_BadBoolEnvIgnored(t *testing.T) {
	t.Setenv("TRIAL_GUARD_AUTO_UPDATE", "maybe")

	cfg, err := LoadConfig(writeConfig(t, "tempDomains:\n  autoUpdate: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.TempDomains.AutoUpdate)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"route without slash", func(c *Config) { c.Route = "signup" }, "route"},
		{"ftp source", func(c *Config) { c.TempDomains.ExternalSources = []string{"ftp://x/list"} }, "tempDomains.externalSources[0]"},
		{"interval too long", func(c *Config) { c.TempDomains.UpdateIntervalHours = 721 }, "tempDomains.updateIntervalHours"},
		{"interval zero", func(c *Config) { c.TempDomains.UpdateIntervalHours = 0 }, "tempDomains.updateIntervalHours"},
		{"fetch timeout", func(c *Config) { c.TempDomains.FetchTimeoutSeconds = 500 }, "tempDomains.fetchTimeoutSeconds"},
		{"unknown provider", func(c *Config) { c.EmailVerifier.Provider = "acme" }, "emailVerifier.provider"},
		{"provider without key", func(c *Config) { c.EmailVerifier.Provider = "zerobounce" }, "emailVerifier.apiKey"},
		{"forward without url", func(c *Config) { c.Forward.Method = "POST" }, "forward.url"},
		{"rate limit without rate", func(c *Config) { c.RateLimit.Enabled = true }, "rateLimit.requestsPerMinute"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "logLevel"},
		{"admin without token", func(c *Config) { c.Admin.Enabled = true }, "admin.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Errors, tt.field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadConfig_AdminTokenFromEnv(t *testing.T) {
	path := writeConfig(t, "admin:\n  enabled: true\n")

	_, err := LoadConfig(path)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Errors, "admin.token")

	t.Setenv("TRIAL_GUARD_ADMIN_TOKEN", "s3cret")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "s3cret", cfg.Admin.Token)
}

func TestEmailVerifierTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, EmailVerifierConfig{}.Timeout())
	assert.Equal(t, 2*time.Second, EmailVerifierConfig{TimeoutSec: 2}.Timeout())
}
