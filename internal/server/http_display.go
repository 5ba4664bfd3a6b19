package server

import (
	"fmt"
	"strings"
)

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo(addr string) {
	fmt.Fprintf(s.out, "Control API listening on http://%s\n", addr)
	s.displayEndpoints()
	s.displayCORSInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Fprintln(s.out, "Available endpoints:")
	fmt.Fprintln(s.out, "  GET    /health                   - Health check")
	fmt.Fprintln(s.out, "  GET    /stats                    - Server statistics")
	fmt.Fprintln(s.out, "  GET    /session                  - Session state")
	fmt.Fprintln(s.out, "  GET    /session/view?format=     - Rendered match result")
	fmt.Fprintln(s.out, "  PUT    /session/resume           - Select resume (multipart field \"resume\")")
	fmt.Fprintln(s.out, "  POST   /session/resume/drop      - Drop resume files (multipart field \"files\")")
	fmt.Fprintln(s.out, "  PUT    /session/job-description  - Replace job description")
	fmt.Fprintln(s.out, "  DELETE /session/inputs           - Clear inputs")
	fmt.Fprintln(s.out, "  POST   /session/analyze          - Start analysis")
	fmt.Fprintln(s.out, "  DELETE /session/analyze          - Cancel analysis")
	fmt.Fprintln(s.out, "  POST   /session/report           - Start report generation")
	fmt.Fprintln(s.out, "  DELETE /session/report           - Cancel report generation")
}

func (s *Server) displayCORSInfo() {
	if len(s.CORSOrigins) == 0 {
		fmt.Fprintln(s.out, "CORS: DISABLED (same-origin front ends only)")
		return
	}
	fmt.Fprintf(s.out, "CORS origins: %s\n", strings.Join(s.CORSOrigins, ", "))
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Fprintf(s.out, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(s.out, "Request size limit: DISABLED")
		fmt.Fprintln(s.out, "WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit.Enabled {
		fmt.Fprintf(s.out, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByIP {
			fmt.Fprintln(s.out, "  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Fprintln(s.out, "Rate limiting: DISABLED")
	}
}
