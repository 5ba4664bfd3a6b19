package observability

import (
	"net/http"

	"rjdctl/internal/config"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is used when the configuration leaves the name empty
const DefaultServiceName = "rjdctl"

// ConfigFrom derives the observability settings from the application config,
// filling the service name and version when they are unset.
func ConfigFrom(cfg *config.Config, version string) config.ObservabilityConfig {
	if cfg == nil {
		return config.ObservabilityConfig{
			ServiceName:    DefaultServiceName,
			ServiceVersion: version,
			SampleRate:     1.0,
		}
	}

	obs := cfg.Observability
	if obs.ServiceName == "" {
		obs.ServiceName = DefaultServiceName
	}
	if obs.ServiceVersion == "" {
		obs.ServiceVersion = version
	}
	return obs
}

// RequestAttributes tags the active server span with the request's route
// and request ID. It is a no-op when no span is recording.
func RequestAttributes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := oteltrace.SpanFromContext(r.Context())
		if span.IsRecording() {
			span.SetAttributes(
				attribute.String("http.route", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			)
			if id := r.Header.Get("X-Request-ID"); id != "" {
				span.SetAttributes(attribute.String("request.id", id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
