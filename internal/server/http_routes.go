package server

import (
	"net/http"

	"rjdctl/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handler returns the routed control API with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.Observability.HTTPMiddleware())
	r.Use(observability.RequestAttributes)
	// an empty origin list would make cors allow every origin
	if len(s.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.healthHandler)
	r.Get("/stats", s.statsHandler)

	r.Route("/session", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Use(s.requestSizeLimitMiddleware)

		r.Get("/", s.sessionHandler)
		r.Get("/view", s.viewHandler)

		r.Put("/resume", s.selectResumeHandler)
		r.Post("/resume/drop", s.dropResumeHandler)
		r.Put("/job-description", s.jobDescriptionHandler)
		r.Delete("/inputs", s.resetInputsHandler)

		r.Post("/analyze", s.startAnalysisHandler)
		r.Delete("/analyze", s.cancelAnalysisHandler)
		r.Post("/report", s.startReportHandler)
		r.Delete("/report", s.cancelReportHandler)
	})

	return r
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
		}
		next.ServeHTTP(w, r)
	})
}
