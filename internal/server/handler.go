package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"rjdctl/internal/formatters"
	"rjdctl/internal/types"
	"rjdctl/internal/workflow"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// resumeField carries the browsed file on PUT /session/resume
	resumeField = "resume"
	// filesField carries every dropped file on POST /session/resume/drop
	filesField = "files"

	defaultMultipartMemory = 32 << 20
)

var viewContentTypes = map[string]string{
	"json":     "application/json",
	"yaml":     "application/yaml",
	"html":     "text/html; charset=utf-8",
	"markdown": "text/markdown; charset=utf-8",
	"text":     "text/plain; charset=utf-8",
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse(s.Session.Snapshot()))
}

// viewHandler renders the current result in the requested format
func (s *Server) viewHandler(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	snap := s.Session.Snapshot()
	out, err := s.Formatters.Format(formatters.BuildView(snap.Result, snap.Location), format)
	if err != nil {
		writeErrorResponse(w, "Unsupported format",
			fmt.Sprintf("supported formats: %s", strings.Join(s.Formatters.GetSupportedFormats(), ", ")),
			http.StatusBadRequest)
		return
	}

	contentType, ok := viewContentTypes[format]
	if !ok {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// selectResumeHandler replaces the resume with the browsed file
func (s *Server) selectResumeHandler(w http.ResponseWriter, r *http.Request) {
	files, ok := s.readFiles(w, r, resumeField)
	if !ok {
		return
	}
	if len(files) == 0 {
		writeErrorResponse(w, "Missing resume", fmt.Sprintf("multipart field %q is required", resumeField), http.StatusBadRequest)
		return
	}

	if err := s.Session.Inputs().Select(files[0]); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(s.Session.Snapshot()))
}

// dropResumeHandler keeps the first dropped file. An empty drop is a no-op.
func (s *Server) dropResumeHandler(w http.ResponseWriter, r *http.Request) {
	files, ok := s.readFiles(w, r, filesField)
	if !ok {
		return
	}

	if err := s.Session.Inputs().Drop(files...); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(s.Session.Snapshot()))
}

// jobDescriptionHandler replaces the job description verbatim
func (s *Server) jobDescriptionHandler(w http.ResponseWriter, r *http.Request) {
	var req JobDescriptionRequest
	if err := parseJSONRequest(r, &req); err != nil {
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	s.Session.Inputs().SetJobDescription(req.Text)
	writeJSON(w, http.StatusOK, sessionResponse(s.Session.Snapshot()))
}

func (s *Server) resetInputsHandler(w http.ResponseWriter, r *http.Request) {
	s.Session.Inputs().Reset()
	writeJSON(w, http.StatusOK, sessionResponse(s.Session.Snapshot()))
}

func (s *Server) startAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	s.writeTrigger(w, r, workflow.OperationAnalysis, s.Session.StartAnalysis(s.baseCtx))
}

func (s *Server) startReportHandler(w http.ResponseWriter, r *http.Request) {
	s.writeTrigger(w, r, workflow.OperationReport, s.Session.StartReport(s.baseCtx))
}

func (s *Server) cancelAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CancelResponse{
		Operation: workflow.OperationAnalysis,
		Canceled:  s.Session.CancelAnalysis(),
	})
}

func (s *Server) cancelReportHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CancelResponse{
		Operation: workflow.OperationReport,
		Canceled:  s.Session.CancelReport(),
	})
}

// writeTrigger answers 202 for a started operation, 409 when one is already
// running and 200 when preconditions were not met.
func (s *Server) writeTrigger(w http.ResponseWriter, r *http.Request, operation string, trigger workflow.Trigger) {
	status := http.StatusOK
	switch trigger {
	case workflow.TriggerRan:
		status = http.StatusAccepted
	case workflow.TriggerBusy:
		status = http.StatusConflict
	}

	_, span := s.Observability.Tracer("rjdctl.api").Start(r.Context(), "api."+operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("operation", operation),
		attribute.String("trigger", string(trigger)),
	)

	writeJSON(w, status, TriggerResponse{
		Operation: operation,
		Trigger:   trigger,
		Epoch:     s.Session.Snapshot().Epoch,
	})
}

// readFiles parses a multipart body and reads every file under field, in
// the order they were sent. A false return means a response was written.
func (s *Server) readFiles(w http.ResponseWriter, r *http.Request, field string) ([]types.SelectedResume, bool) {
	memory := int64(defaultMultipartMemory)
	if s.MaxRequestSize > 0 {
		memory = s.MaxRequestSize
	}

	if err := r.ParseMultipartForm(memory); err != nil {
		if limit, tooLarge := bodyTooLarge(err); tooLarge {
			writeErrorResponse(w, "Request too large",
				fmt.Sprintf("request body too large (limit is %d bytes)", limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[field]
	files := make([]types.SelectedResume, 0, len(headers))
	for _, header := range headers {
		content, err := readPart(header)
		if err != nil {
			writeErrorResponse(w, "Unreadable file", err.Error(), http.StatusBadRequest)
			return nil, false
		}
		files = append(files, types.SelectedResume{Name: header.Filename, Content: content})
	}
	return files, true
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}
	return content, nil
}
