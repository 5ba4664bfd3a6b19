package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	rjdctlErrors "rjdctl/internal/errors"
)

// healthHandler reports liveness plus the state of the service breakers
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "rjdctl",
		"version": s.Version,
	}

	overallHealthy := true
	if s.Service != nil {
		breakers := s.Service.Stats()
		response["circuit_breakers"] = breakers
		for _, stats := range breakers {
			if info, ok := stats.(map[string]any); ok && info["state"] == "open" {
				overallHealthy = false
			}
		}
	}

	status := http.StatusOK
	if !overallHealthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "rjdctl",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	response["rate_limit_config"] = map[string]any{
		"enabled":          s.RateLimit.Enabled,
		"requests_per_min": s.RateLimit.RequestsPerMin,
		"burst_capacity":   s.RateLimit.BurstCapacity,
		"by_ip":            s.RateLimit.ByIP,
	}

	if s.Session != nil {
		response["epoch"] = s.Session.Snapshot().Epoch
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		if limit, ok := bodyTooLarge(err); ok {
			return fmt.Errorf("request body too large (limit is %d bytes)", limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

func bodyTooLarge(err error) (int64, bool) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return maxBytesErr.Limit, true
	}
	return 0, false
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// writeAppError maps an application error onto a status code
func writeAppError(w http.ResponseWriter, err error) {
	appErr, ok := rjdctlErrors.As(err)
	if !ok {
		writeErrorResponse(w, "Internal error", err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Type {
	case rjdctlErrors.ErrorTypeValidation:
		status = http.StatusUnprocessableEntity
	case rjdctlErrors.ErrorTypeIO:
		status = http.StatusBadRequest
	case rjdctlErrors.ErrorTypeNetwork, rjdctlErrors.ErrorTypeService, rjdctlErrors.ErrorTypeMalformed:
		status = http.StatusBadGateway
	}
	writeErrorResponse(w, appErr.Code, appErr.Message, status)
}
