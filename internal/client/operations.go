package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	rjdctlErrors "rjdctl/internal/errors"
	"rjdctl/internal/schemas"
	"rjdctl/internal/types"
)

// Analyze posts the resume and job description to /analyze/match
func (c *Client) Analyze(ctx context.Context, resume types.SelectedResume, jobDescription string) (*types.AnalysisResult, error) {
	ctx, cancel := c.withTimeout(ctx, opAnalyze)
	defer cancel()

	body, contentType, err := multipartBody(func(w *multipart.Writer) error {
		if err := writeFile(w, "resume_file", resume); err != nil {
			return err
		}
		return w.WriteField("job_description", jobDescription)
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, opAnalyze, newRequest(http.MethodPost, c.endpoint("/analyze/match"), contentType, body))
	if err != nil {
		return nil, err
	}
	return ParseAnalysisResult(resp.body)
}

// GenerateReport posts {"match_result": ...} to /reports/generate and
// resolves the returned locator against the service origin.
func (c *Client) GenerateReport(ctx context.Context, match *types.MatchResult) (*types.ReportLocation, error) {
	if match == nil {
		return nil, rjdctlErrors.NewValidationError(rjdctlErrors.ErrCodeInvalidRequest,
			"a match result is required to generate a report", nil)
	}

	ctx, cancel := c.withTimeout(ctx, opReport)
	defer cancel()

	body, err := json.Marshal(types.ReportRequest{MatchResult: match})
	if err != nil {
		return nil, rjdctlErrors.NewInternalError(rjdctlErrors.ErrCodeInvalidRequest,
			"cannot encode report request", err)
	}

	resp, err := c.do(ctx, opReport, newRequest(http.MethodPost, c.endpoint("/reports/generate"), "application/json", body))
	if err != nil {
		return nil, err
	}

	if err := validateBody(schemas.ReportResponse, resp.body); err != nil {
		return nil, err
	}
	var reply types.ReportResponse
	if err := json.Unmarshal(resp.body, &reply); err != nil {
		return nil, malformed("report response", err)
	}
	return ResolveLocation(c.origin, reply.PDFURL)
}

// UploadResume posts a resume to /upload_resume/ and returns the extracted text
func (c *Client) UploadResume(ctx context.Context, resume types.SelectedResume) (*types.ExtractedResume, error) {
	ctx, cancel := c.withTimeout(ctx, opUpload)
	defer cancel()

	body, contentType, err := multipartBody(func(w *multipart.Writer) error {
		return writeFile(w, "resume_file", resume)
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, opUpload, newRequest(http.MethodPost, c.endpoint("/upload_resume/"), contentType, body))
	if err != nil {
		return nil, err
	}

	if err := validateBody(schemas.ExtractedResume, resp.body); err != nil {
		return nil, err
	}
	var extracted types.ExtractedResume
	if err := json.Unmarshal(resp.body, &extracted); err != nil {
		return nil, malformed("upload response", err)
	}
	if extracted.Filename == "" {
		extracted.Filename = resume.Name
	}
	return &extracted, nil
}

// ExtractSkills posts free text to /skills/extract. The entity document is
// returned as received.
func (c *Client) ExtractSkills(ctx context.Context, text string) (json.RawMessage, error) {
	ctx, cancel := c.withTimeout(ctx, opSkills)
	defer cancel()

	form := url.Values{"text": {text}}
	resp, err := c.do(ctx, opSkills, newRequest(http.MethodPost, c.endpoint("/skills/extract"),
		"application/x-www-form-urlencoded", []byte(form.Encode())))
	if err != nil {
		return nil, err
	}

	if !json.Valid(resp.body) {
		return nil, malformed("skills response", fmt.Errorf("body is not JSON"))
	}
	return json.RawMessage(resp.body), nil
}

// ParseJobDescription posts job-description text to /analyze/parse_jd/
func (c *Client) ParseJobDescription(ctx context.Context, text string) (*types.ParsedJobDescription, error) {
	ctx, cancel := c.withTimeout(ctx, opParseJD)
	defer cancel()

	form := url.Values{"jd_text": {text}}
	resp, err := c.do(ctx, opParseJD, newRequest(http.MethodPost, c.endpoint("/analyze/parse_jd/"),
		"application/x-www-form-urlencoded", []byte(form.Encode())))
	if err != nil {
		return nil, err
	}

	if err := validateBody(schemas.ParsedJobDesc, resp.body); err != nil {
		return nil, err
	}
	var parsed types.ParsedJobDescription
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return nil, malformed("job description response", err)
	}
	return &parsed, nil
}

// Download fetches the report document at location
func (c *Client) Download(ctx context.Context, location *types.ReportLocation) ([]byte, error) {
	if location == nil || location.URL == "" {
		return nil, rjdctlErrors.NewValidationError(rjdctlErrors.ErrCodeInvalidRequest,
			"no report has been generated", nil)
	}

	ctx, cancel := c.withTimeout(ctx, opDownload)
	defer cancel()

	build := newRequest(http.MethodGet, location.URL, "", nil)
	resp, err := c.do(ctx, opDownload, func(ctx context.Context) (*http.Request, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/pdf, */*")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Report downloaded",
		"url", location.URL,
		"content_type", resp.header.Get("Content-Type"),
		"bytes", len(resp.body))
	return resp.body, nil
}

// ParseAnalysisResult validates body against the analysis schema and decodes it
func ParseAnalysisResult(body []byte) (*types.AnalysisResult, error) {
	if err := validateBody(schemas.AnalysisResult, body); err != nil {
		return nil, err
	}

	var result types.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformed("analysis response", err)
	}
	return &result, nil
}

// ResolveLocation turns a pdf_url locator into a ReportLocation on origin.
// Relative locators are joined to origin with a single slash. Absolute
// locators are accepted only when they name the origin's scheme and host.
func ResolveLocation(origin, locator string) (*types.ReportLocation, error) {
	base, err := url.Parse(strings.TrimRight(origin, "/") + "/")
	if err != nil || !base.IsAbs() {
		return nil, rjdctlErrors.NewConfigError(rjdctlErrors.ErrCodeInvalidConfig,
			fmt.Sprintf("service origin %q must be absolute", origin), err)
	}

	u, err := url.Parse(locator)
	if err != nil || locator == "" {
		return nil, malformed("report locator", fmt.Errorf("invalid pdf_url %q: %v", locator, err))
	}

	if u.IsAbs() || u.Host != "" {
		if !sameOrigin(base, u) {
			return nil, malformed("report locator",
				fmt.Errorf("pdf_url %q is not served by %s", locator, base.Host))
		}
		return &types.ReportLocation{Path: locator, URL: base.ResolveReference(u).String()}, nil
	}

	ref, err := url.Parse(strings.TrimLeft(locator, "/"))
	if err != nil {
		return nil, malformed("report locator", fmt.Errorf("invalid pdf_url %q: %v", locator, err))
	}
	return &types.ReportLocation{Path: locator, URL: base.ResolveReference(ref).String()}, nil
}

// sameOrigin reports whether u points at base's host. A missing scheme
// inherits base's.
func sameOrigin(base, u *url.URL) bool {
	if u.Scheme != "" && !strings.EqualFold(u.Scheme, base.Scheme) {
		return false
	}
	return strings.EqualFold(u.Host, base.Host)
}

func validateBody(schema string, body []byte) error {
	err := schemas.Validate(schema, body)
	if err == nil {
		return nil
	}

	appErr := malformed(strings.ReplaceAll(schema, "_", " "), err)
	if ve, ok := err.(*schemas.ValidationError); ok {
		appErr = appErr.WithContext("fields", ve.Errors)
	}
	return appErr
}

func malformed(what string, cause error) *rjdctlErrors.AppError {
	return rjdctlErrors.NewMalformedError(rjdctlErrors.ErrCodeMalformedResponse,
		fmt.Sprintf("unexpected %s", what), cause)
}

func multipartBody(fill func(w *multipart.Writer) error) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", rjdctlErrors.NewInternalError(rjdctlErrors.ErrCodeInvalidRequest,
			"cannot encode multipart request", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", rjdctlErrors.NewInternalError(rjdctlErrors.ErrCodeInvalidRequest,
			"cannot encode multipart request", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, file types.SelectedResume) error {
	part, err := w.CreateFormFile(field, file.Name)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Content)
	return err
}
