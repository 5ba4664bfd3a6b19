package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Remote service
	v.SetDefault("service.baseURL", "http://localhost:8000/api")
	v.SetDefault("service.origin", "http://localhost:8000")
	v.SetDefault("service.analyzeTimeout", 120*time.Second) // entity extraction on large resumes is slow
	v.SetDefault("service.reportTimeout", 60*time.Second)
	v.SetDefault("service.downloadTimeout", 60*time.Second)
	v.SetDefault("service.apiKey", "")
	v.SetDefault("service.userAgent", "rjdctl")
	v.SetDefault("service.maxRetries", 0)

	v.SetDefault("service.rateLimit.enabled", false)
	v.SetDefault("service.rateLimit.requestsPerMin", 30)
	v.SetDefault("service.rateLimit.burstCapacity", 5)

	v.SetDefault("service.circuitBreaker.enabled", true)
	v.SetDefault("service.circuitBreaker.maxRequests", 1)
	v.SetDefault("service.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("service.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("service.circuitBreaker.minRequests", 3)
	v.SetDefault("service.circuitBreaker.failureThreshold", 0.6)

	// Resume input
	v.SetDefault("input.allowedExtensions", []string{".pdf", ".doc", ".docx"})
	v.SetDefault("input.maxFileSize", 10*1024*1024) // 10MB
	v.SetDefault("input.verifyContent", true)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"text", "markdown", "html", "json", "yaml"})

	// Local control API
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 12*1024*1024)
	v.SetDefault("server.corsOrigins", []string{"*"})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 120)
	v.SetDefault("server.rateLimit.burstCapacity", 20)
	v.SetDefault("server.rateLimit.byIP", true)

	// Report archive
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.accessKey", "")
	v.SetDefault("archive.secretKey", "")
	v.SetDefault("archive.useSSL", true)
	v.SetDefault("archive.prefix", "reports/")

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.timeout", 10*time.Second)
	v.SetDefault("vault.secrets.serviceKey", "")
	v.SetDefault("vault.secrets.archiveKeys", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.serviceName", "rjdctl")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.prometheus.enabled", false)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
