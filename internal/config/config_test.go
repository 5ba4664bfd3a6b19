package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.Service.BaseURL)
	assert.Equal(t, "http://localhost:8000", cfg.Service.Origin)
	assert.Equal(t, 0, cfg.Service.MaxRetries)
	assert.Equal(t, 120*time.Second, cfg.Service.AnalyzeTimeout)
	assert.Equal(t, []string{".pdf", ".doc", ".docx"}, cfg.Input.AllowedExtensions)
	assert.Equal(t, "text", cfg.App.DefaultFormat)
	assert.False(t, cfg.Vault.Enabled)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RJDCTL_SERVICE_BASEURL", "https://rjd.example.com/api/")
	t.Setenv("RJDCTL_SERVICE_ORIGIN", "https://rjd.example.com")
	t.Setenv("RJDCTL_APP_LOGLEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://rjd.example.com/api", cfg.Service.BaseURL)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.True(t, cfg.Observability.ConsoleOutput)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rjdctl.yaml")
	content := `
service:
  baseURL: http://analysis.internal:9000/api
  origin: http://analysis.internal:9000
  reportTimeout: 5s
input:
  allowedExtensions: ["PDF", "docx"]
app:
  defaultFormat: markdown
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://analysis.internal:9000/api", cfg.Service.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Service.ReportTimeout)
	assert.Equal(t, []string{".pdf", ".docx"}, cfg.Input.AllowedExtensions)
	assert.Equal(t, "markdown", cfg.App.DefaultFormat)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:         "http://localhost:8000/api",
			Origin:          "http://localhost:8000",
			AnalyzeTimeout:  time.Minute,
			ReportTimeout:   time.Minute,
			DownloadTimeout: time.Minute,
			CircuitBreaker:  CircuitBreakerConfig{FailureThreshold: 0.5},
		},
		Input: InputConfig{AllowedExtensions: []string{".pdf"}, MaxFileSize: 1024},
		App:   AppConfig{LogLevel: "info", DefaultFormat: "text", SupportedFormats: []string{"text", "json"}},
		Server: ServerConfig{
			Port: "3000",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unsupported default format", mutate: func(c *Config) { c.App.DefaultFormat = "pdf" }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.App.LogLevel = "trace" }, wantErr: true},
		{name: "relative origin", mutate: func(c *Config) { c.Service.Origin = "localhost" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Service.AnalyzeTimeout = 0 }, wantErr: true},
		{name: "extension without dot", mutate: func(c *Config) { c.Input.AllowedExtensions = []string{"pdf"} }, wantErr: true},
		{name: "archive without bucket", mutate: func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Endpoint = "localhost:9000"
		}, wantErr: true},
		{name: "rate limit without budget", mutate: func(c *Config) { c.Service.RateLimit.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
