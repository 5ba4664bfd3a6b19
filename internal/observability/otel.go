package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"rjdctl/internal/config"
	"rjdctl/internal/errors"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Metrics holds the custom instruments. The zero value records nothing.
type Metrics struct {
	RequestDuration metric.Float64Histogram
	RequestCount    metric.Int64Counter
	RequestErrors   metric.Int64Counter
	Transitions     metric.Int64Counter
	RateLimitHits   metric.Int64Counter
}

// Manager owns the tracer and meter providers
type Manager struct {
	cfg            config.ObservabilityConfig
	version        string
	logger         *errors.Logger
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	prometheus     *http.Server
	shutdownFuncs  []func(context.Context) error
}

// NewManager sets up tracing and metrics. A disabled config yields a manager
// whose tracer is a no-op and whose metrics record nothing.
func NewManager(cfg config.ObservabilityConfig, version string, logger *errors.Logger) (*Manager, error) {
	m := &Manager{cfg: cfg, version: version, logger: logger, metrics: &Metrics{}}
	if !cfg.Enabled {
		return m, nil
	}

	res, err := m.newResource()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := m.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.Metrics.Enabled {
		if err := m.initMetrics(res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Manager) serviceVersion() string {
	if m.cfg.ServiceVersion != "" {
		return m.cfg.ServiceVersion
	}
	return m.version
}

func (m *Manager) newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(m.cfg.ServiceName),
			semconv.ServiceVersion(m.serviceVersion()),
			attribute.String("service.instance.id", m.cfg.ServiceInstance),
		),
	)
}

func (m *Manager) initTracing(res *resource.Resource) error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case m.cfg.ConsoleOutput:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case m.cfg.OTLP.Enabled:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(m.cfg.OTLP.Endpoint)}
		if m.cfg.OTLP.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(m.cfg.OTLP.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(m.cfg.OTLP.Headers))
		}
		exporter, err = otlptracehttp.New(context.Background(), opts...)
	default:
		exporter = noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(m.cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	m.tracerProvider = tp
	m.shutdownFuncs = append(m.shutdownFuncs, tp.Shutdown)
	return nil
}

func (m *Manager) initMetrics(res *resource.Resource) error {
	interval := m.cfg.Metrics.CollectionInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	var readers []sdkmetric.Reader

	if m.cfg.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if m.cfg.OTLP.Enabled {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(m.cfg.OTLP.Endpoint)}
		if m.cfg.OTLP.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(m.cfg.OTLP.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(m.cfg.OTLP.Headers))
		}
		exporter, err := otlpmetrichttp.New(context.Background(), opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	}

	if m.cfg.Prometheus.Enabled {
		reader, server, err := SetupPrometheusExporter(m.cfg.Prometheus)
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		readers = append(readers, reader)
		m.prometheus = server
		StartPrometheusServer(server, m.logger)
		m.shutdownFuncs = append(m.shutdownFuncs, server.Shutdown)
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(opts...)

	otel.SetMeterProvider(mp)
	m.meterProvider = mp
	m.shutdownFuncs = append(m.shutdownFuncs, mp.Shutdown)

	metrics, err := NewMetrics(mp.Meter(m.cfg.ServiceName))
	if err != nil {
		return err
	}
	m.metrics = metrics
	return nil
}

// NewMetrics creates the instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var err error
	metrics := &Metrics{}

	metrics.RequestDuration, err = meter.Float64Histogram(
		"rjdctl_service_request_duration_seconds",
		metric.WithDescription("Time spent waiting for the analysis and report service"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration metric: %w", err)
	}

	metrics.RequestCount, err = meter.Int64Counter(
		"rjdctl_service_requests_total",
		metric.WithDescription("Total number of service requests by operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request count metric: %w", err)
	}

	metrics.RequestErrors, err = meter.Int64Counter(
		"rjdctl_service_errors_total",
		metric.WithDescription("Total number of failed service requests by operation and error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request error metric: %w", err)
	}

	metrics.Transitions, err = meter.Int64Counter(
		"rjdctl_session_transitions_total",
		metric.WithDescription("Workflow status transitions by operation and target status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transition metric: %w", err)
	}

	metrics.RateLimitHits, err = meter.Int64Counter(
		"rjdctl_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return metrics, nil
}

// Metrics returns the instruments, never nil
func (m *Manager) Metrics() *Metrics {
	if m == nil || m.metrics == nil {
		return &Metrics{}
	}
	return m.metrics
}

// RecordRequest records one finished service request
func (mt *Metrics) RecordRequest(ctx context.Context, operation string, duration time.Duration, err error) {
	if mt == nil || mt.RequestCount == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	)
	mt.RequestCount.Add(ctx, 1, attrs)
	mt.RequestDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		mt.RequestErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("code", errors.CodeOf(err)),
		))
	}
}

// RecordTransition records a workflow status change
func (mt *Metrics) RecordTransition(ctx context.Context, operation, status string) {
	if mt == nil || mt.Transitions == nil {
		return
	}
	mt.Transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

// RecordRateLimitHit records a throttled request
func (mt *Metrics) RecordRateLimitHit(ctx context.Context, scope string) {
	if mt == nil || mt.RateLimitHits == nil {
		return
	}
	mt.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (m *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if m == nil || !m.cfg.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	opts := []otelhttp.Option{otelhttp.WithTracerProvider(m.tracerProvider)}
	if m.meterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(m.meterProvider))
	}
	return otelhttp.NewMiddleware(m.cfg.ServiceName, opts...)
}

// Tracer returns a tracer for the service
func (m *Manager) Tracer(name string) oteltrace.Tracer {
	if m == nil || !m.cfg.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (m *Manager) Shutdown(ctx context.Context) error {
	var firstErr error
	for i := len(m.shutdownFuncs) - 1; i >= 0; i-- {
		if err := m.shutdownFuncs[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type noOpSpanExporter struct{}

func (noOpSpanExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }

func (noOpSpanExporter) Shutdown(context.Context) error { return nil }
