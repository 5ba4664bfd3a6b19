package server

import (
	"context"
	"io"
	"os"
	"time"

	"rjdctl/internal/client"
	"rjdctl/internal/config"
	"rjdctl/internal/errors"
	"rjdctl/internal/formatters"
	"rjdctl/internal/observability"
	"rjdctl/internal/types"
	"rjdctl/internal/workflow"
)

// JobDescriptionRequest is the body of PUT /session/job-description
type JobDescriptionRequest struct {
	Text string `json:"text"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TriggerResponse answers the analyze and report triggers
type TriggerResponse struct {
	Operation string           `json:"operation"`
	Trigger   workflow.Trigger `json:"trigger"`
	Epoch     uint64           `json:"epoch"`
}

// CancelResponse answers DELETE on an operation
type CancelResponse struct {
	Operation string `json:"operation"`
	Canceled  bool   `json:"canceled"`
}

// OperationStatus is the wire form of workflow.OperationState
type OperationStatus struct {
	Status     workflow.Status `json:"status"`
	Code       string          `json:"code,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	StartedAt  time.Time       `json:"started_at,omitzero"`
	FinishedAt time.Time       `json:"finished_at,omitzero"`
}

// ResumeInfo describes the selected resume without its content
type ResumeInfo struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// SessionResponse is the state of the session as seen by a front end
type SessionResponse struct {
	Resume               *ResumeInfo           `json:"resume,omitempty"`
	JobDescriptionLength int                   `json:"job_description_length"`
	Ready                bool                  `json:"ready"`
	Analysis             OperationStatus       `json:"analysis"`
	Report               OperationStatus       `json:"report"`
	HasMatchResult       bool                  `json:"has_match_result"`
	Download             *types.ReportLocation `json:"download,omitempty"`
	Epoch                uint64                `json:"epoch"`
}

// Dependencies are the collaborators the control API serves
type Dependencies struct {
	Version       string
	Session       *workflow.Session
	Service       client.Service
	Formatters    *formatters.FormatterRegistry
	Observability *observability.Manager
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	CORSOrigins []string

	// Rate limiting
	RateLimit   config.RateLimitConfig
	RateLimiter *RateLimiter

	Session       *workflow.Session
	Service       client.Service
	Formatters    *formatters.FormatterRegistry
	Observability *observability.Manager

	Logger *errors.Logger

	// out receives the startup banner
	out io.Writer

	// baseCtx parents the background operations started by triggers
	baseCtx context.Context
}

// NewServer creates a new Server instance over one session
func NewServer(cfg config.ServerConfig, deps Dependencies, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	registry := deps.Formatters
	if registry == nil {
		registry = formatters.NewFormatterRegistry()
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        deps.Version,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Session:        deps.Session,
		Service:        deps.Service,
		Formatters:     registry,
		Observability:  deps.Observability,
		Logger:         logger,
		out:            os.Stdout,
		baseCtx:        context.Background(),
	}
}

// SetOutput redirects the startup banner
func (s *Server) SetOutput(w io.Writer) {
	s.out = w
}

func statusOf(state workflow.OperationState) OperationStatus {
	return OperationStatus{
		Status:     state.Status,
		Code:       state.Code(),
		Reason:     state.Reason(),
		StartedAt:  state.StartedAt,
		FinishedAt: state.FinishedAt,
	}
}

func sessionResponse(snap workflow.Snapshot) SessionResponse {
	resp := SessionResponse{
		JobDescriptionLength: len(snap.JobDescription),
		Ready:                snap.Resume != nil && snap.JobDescription != "",
		Analysis:             statusOf(snap.Analysis),
		Report:               statusOf(snap.Report),
		HasMatchResult:       snap.Result != nil && snap.Result.MatchResult != nil,
		Download:             snap.Location,
		Epoch:                snap.Epoch,
	}
	if snap.Resume != nil {
		resp.Resume = &ResumeInfo{Name: snap.Resume.Name, Size: snap.Resume.Size()}
	}
	return resp
}
