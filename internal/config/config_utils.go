package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks applies derived values after unmarshaling
func (c *Config) applyFallbacks() {
	c.applyServiceDefaults()
	c.applyInputDefaults()
	c.applyObservabilityDefaults()
}

func (c *Config) applyServiceDefaults() {
	c.Service.BaseURL = strings.TrimRight(c.Service.BaseURL, "/")
	c.Service.Origin = strings.TrimRight(c.Service.Origin, "/")
}

// applyInputDefaults lower-cases extensions and adds a missing leading dot
func (c *Config) applyInputDefaults() {
	for i, ext := range c.Input.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Input.AllowedExtensions[i] = ext
	}
}

func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}

	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// sourceEnvVars are the overrides reported at startup
var sourceEnvVars = []string{
	EnvPrefix + "_SERVICE_BASEURL",
	EnvPrefix + "_SERVICE_ORIGIN",
	EnvPrefix + "_SERVICE_APIKEY",
	EnvPrefix + "_SERVER_PORT",
	EnvPrefix + "_SERVER_HOST",
	EnvPrefix + "_APP_LOGLEVEL",
	EnvPrefix + "_VAULT_ENABLED",
	EnvPrefix + "_ARCHIVE_SECRETKEY",
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range sourceEnvVars {
		if value := os.Getenv(envVar); value != "" {
			if isSensitiveKey(envVar) {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Service Base URL: %s", c.Service.BaseURL)
	log.Printf("[CONFIG] Service Origin: %s", c.Service.Origin)
	if c.Service.APIKey != "" {
		log.Println("[CONFIG] Service API Key: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] Service API Key: ***NOT SET***")
	}
	log.Printf("[CONFIG] Analyze Timeout: %s", c.Service.AnalyzeTimeout)
	log.Printf("[CONFIG] Report Timeout: %s", c.Service.ReportTimeout)
	log.Printf("[CONFIG] Allowed Extensions: %s", strings.Join(c.Input.AllowedExtensions, ","))
	log.Printf("[CONFIG] Server: %s:%s", c.Server.Host, c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Archive Enabled: %t", c.Archive.Enabled)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}

func isSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "key") || strings.Contains(lower, "secret") || strings.Contains(lower, "token")
}
