package observability

import (
	"fmt"
	"net/http"
	"time"

	"rjdctl/internal/config"
	"rjdctl/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// SetupPrometheusExporter creates a Prometheus reader on its own registry and
// the server that exposes it.
func SetupPrometheusExporter(cfg config.PrometheusConfig) (metric.Reader, *http.Server, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return exporter, server, nil
}

// StartPrometheusServer serves metrics in the background
func StartPrometheusServer(server *http.Server, logger *errors.Logger) {
	if server == nil {
		return
	}

	logger.Info("Starting Prometheus metrics server", "addr", server.Addr)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(err, "Prometheus server error", "addr", server.Addr)
		}
	}()
}
