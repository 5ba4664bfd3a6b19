package client

import (
	"context"
	"encoding/json"
	"time"

	"rjdctl/internal/types"
)

// Analyzer submits a resume and job description for matching
type Analyzer interface {
	Analyze(ctx context.Context, resume types.SelectedResume, jobDescription string) (*types.AnalysisResult, error)
}

// ReportGenerator turns a match result into a downloadable report
type ReportGenerator interface {
	GenerateReport(ctx context.Context, match *types.MatchResult) (*types.ReportLocation, error)
}

// Service is the full surface of the remote backend
type Service interface {
	Analyzer
	ReportGenerator
	UploadResume(ctx context.Context, resume types.SelectedResume) (*types.ExtractedResume, error)
	ExtractSkills(ctx context.Context, text string) (json.RawMessage, error)
	ParseJobDescription(ctx context.Context, text string) (*types.ParsedJobDescription, error)
	Download(ctx context.Context, location *types.ReportLocation) ([]byte, error)
	Stats() map[string]any
}

// Recorder receives request measurements. observability.Metrics implements it.
type Recorder interface {
	RecordRequest(ctx context.Context, operation string, duration time.Duration, err error)
	RecordRateLimitHit(ctx context.Context, scope string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(context.Context, string, time.Duration, error) {}

func (nopRecorder) RecordRateLimitHit(context.Context, string) {}
