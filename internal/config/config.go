package config

import (
	"fmt"
	"log"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "RJDCTL"

// Config holds all application configuration
// Secret Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (RJDCTL_SERVICE_APIKEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Input         InputConfig         `mapstructure:"input"`
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServiceConfig describes the remote analysis and report service
type ServiceConfig struct {
	BaseURL         string               `mapstructure:"baseURL" validate:"required,url"`
	Origin          string               `mapstructure:"origin" validate:"required,url"`
	AnalyzeTimeout  time.Duration        `mapstructure:"analyzeTimeout" validate:"gt=0"`
	ReportTimeout   time.Duration        `mapstructure:"reportTimeout" validate:"gt=0"`
	DownloadTimeout time.Duration        `mapstructure:"downloadTimeout" validate:"gt=0"`
	APIKey          string               `mapstructure:"apiKey"`
	UserAgent       string               `mapstructure:"userAgent"`
	MaxRetries      int                  `mapstructure:"maxRetries" validate:"gte=0,lte=10"`
	RateLimit       RateLimitConfig      `mapstructure:"rateLimit"`
	CircuitBreaker  CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`                                 // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`                             // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`                                // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`                                 // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`                             // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold" validate:"gte=0,lte=1"` // Failure ratio threshold (0.0-1.0)
}

// InputConfig controls which resume files the collector accepts
type InputConfig struct {
	AllowedExtensions []string `mapstructure:"allowedExtensions" validate:"min=1,dive,startswith=."`
	MaxFileSize       int64    `mapstructure:"maxFileSize" validate:"gt=0"`
	VerifyContent     bool     `mapstructure:"verifyContent"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel" validate:"oneof=debug info warn error"`
	DefaultFormat    string   `mapstructure:"defaultFormat" validate:"required"`
	SupportedFormats []string `mapstructure:"supportedFormats" validate:"min=1"`
}

// ServerConfig holds the local control API configuration
type ServerConfig struct {
	Host           string          `mapstructure:"host"`
	Port           string          `mapstructure:"port" validate:"required,numeric"`
	ReadTimeout    time.Duration   `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration   `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration   `mapstructure:"idleTimeout"`
	MaxRequestSize int64           `mapstructure:"maxRequestSize"`
	CORSOrigins    []string        `mapstructure:"corsOrigins"`
	RateLimit      RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int  `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int  `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool `mapstructure:"byIP"`           // Enable per-IP rate limiting
}

// ArchiveConfig points at an S3-compatible bucket for downloaded reports
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	UseSSL    bool   `mapstructure:"useSSL"`
	Prefix    string `mapstructure:"prefix"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool             `mapstructure:"enabled"`
	ServiceName     string           `mapstructure:"serviceName"`
	ServiceVersion  string           `mapstructure:"serviceVersion"`
	ServiceInstance string           `mapstructure:"serviceInstance"`
	ConsoleOutput   bool             `mapstructure:"consoleOutput"`
	SampleRate      float64          `mapstructure:"sampleRate" validate:"gte=0,lte=1"`
	Metrics         MetricsConfig    `mapstructure:"metrics"`
	Prometheus      PrometheusConfig `mapstructure:"prometheus"`
	OTLP            OTLPConfig       `mapstructure:"otlp"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from the default search paths
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile loads configuration from .env, environment variables and a
// config file. An empty path searches /etc/rjdctl/, $HOME/.rjdctl and ".".
func LoadConfigFile(path string) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	if err := godotenv.Load(); err == nil {
		log.Println("[CONFIG] Loaded environment from .env")
	}

	v := viper.New()

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Printf("[CONFIG] Configured environment variable handling with prefix '%s'", EnvPrefix)

	if path != "" {
		v.SetConfigFile(path)
		log.Printf("[CONFIG] Using explicit config file: %s", path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/rjdctl/")
		v.AddConfigPath("$HOME/.rjdctl")
		v.AddConfigPath(".")
		log.Println("[CONFIG] Configured config file search paths: /etc/rjdctl/, $HOME/.rjdctl, .")
	}

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks and environment variable overrides")

	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

var structValidator = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return err
	}

	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	origin, err := url.Parse(c.Service.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return fmt.Errorf("service origin must be an absolute URL: %q", c.Service.Origin)
	}

	if c.Service.RateLimit.Enabled && c.Service.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("service rate limit requires requestsPerMin > 0")
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("server rate limit requires requestsPerMin > 0")
	}

	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" || c.Archive.Bucket == "" {
			return fmt.Errorf("archive requires endpoint and bucket when enabled")
		}
	}

	return nil
}
