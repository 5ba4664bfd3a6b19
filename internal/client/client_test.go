package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rjdctl/internal/config"
	rjdctlErrors "rjdctl/internal/errors"
	"rjdctl/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisBody = `{"resume_entities":{"skills":["Go"]},"jd_entities":{"skills":["Go","Docker"]},` +
	`"match_result":{"overall_match":82.5,"category_scores":{"technical_skills":90,"experience":70},` +
	`"missing_skills":["Docker"],"strengths":["Go"],"recommendations":[],` +
	`"skill_comparison_table":[{"skill":"Go","required":true,"present":true}],"extra":"kept"}}`

func testServiceConfig(serverURL string) config.ServiceConfig {
	return config.ServiceConfig{
		BaseURL:         serverURL + "/api",
		Origin:          serverURL,
		AnalyzeTimeout:  5 * time.Second,
		ReportTimeout:   5 * time.Second,
		DownloadTimeout: 5 * time.Second,
		UserAgent:       "rjdctl-test",
	}
}

func newTestClient(t *testing.T, cfg config.ServiceConfig, opts ...Option) *Client {
	t.Helper()
	c, err := New(cfg, rjdctlErrors.NewNop(), opts...)
	require.NoError(t, err)
	return c
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests map[string]int
	failures map[string]int
	hits     int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{requests: map[string]int{}, failures: map[string]int{}}
}

func (f *fakeRecorder) RecordRequest(_ context.Context, op string, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[op]++
	if err != nil {
		f.failures[op]++
	}
}

func (f *fakeRecorder) RecordRateLimitHit(context.Context, string) {
	f.mu.Lock()
	f.hits++
	f.mu.Unlock()
}

func TestAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/analyze/match", r.URL.Path)
		assert.Equal(t, "rjdctl-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("resume_file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "cv.pdf", header.Filename)
		assert.Equal(t, "%PDF-resume", string(content))
		assert.Equal(t, "Senior Go engineer", r.FormValue("job_description"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(analysisBody))
	}))
	defer server.Close()

	cfg := testServiceConfig(server.URL)
	cfg.APIKey = "secret"
	recorder := newFakeRecorder()
	c := newTestClient(t, cfg, WithRecorder(recorder))

	result, err := c.Analyze(context.Background(),
		types.SelectedResume{Name: "cv.pdf", Content: []byte("%PDF-resume")}, "Senior Go engineer")
	require.NoError(t, err)
	require.NotNil(t, result.MatchResult)

	assert.Equal(t, "82.5", result.MatchResult.OverallMatch.String())
	require.Len(t, result.MatchResult.CategoryScores, 2)
	assert.Equal(t, "technical_skills", result.MatchResult.CategoryScores[0].Name)
	assert.Equal(t, "experience", result.MatchResult.CategoryScores[1].Name)
	assert.JSONEq(t, `{"skills":["Go"]}`, string(result.ResumeEntities))
	assert.Equal(t, 1, recorder.requests[opAnalyze])
	assert.Zero(t, recorder.failures[opAnalyze])
}

func TestAnalyzeMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"wrong type", `{"match_result":{"overall_match":"high"}}`},
		{"row without skill", `{"match_result":{"skill_comparison_table":[{"required":true}]}}`},
		{"array document", `[1,2,3]`},
		{"empty object", `{}`},
		{"error detail", `{"detail":"model not loaded"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, testServiceConfig(server.URL))
			result, err := c.Analyze(context.Background(),
				types.SelectedResume{Name: "cv.pdf", Content: []byte("x")}, "jd")
			assert.Nil(t, result)
			assert.Equal(t, rjdctlErrors.ErrCodeMalformedResponse, rjdctlErrors.CodeOf(err))
			assert.True(t, rjdctlErrors.IsType(err, rjdctlErrors.ErrorTypeMalformed))
		})
	}
}

func TestAnalyzeWithoutMatchResult(t *testing.T) {
	result, err := ParseAnalysisResult([]byte(`{"resume_entities":{},"match_result":null}`))
	require.NoError(t, err)
	assert.Nil(t, result.MatchResult)
}

func TestServiceErrorIsNotRetriedByDefault(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, testServiceConfig(server.URL))
	_, err := c.Analyze(context.Background(), types.SelectedResume{Name: "cv.pdf", Content: []byte("x")}, "jd")

	appErr, ok := rjdctlErrors.As(err)
	require.True(t, ok)
	assert.Equal(t, rjdctlErrors.ErrCodeServiceError, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Context["status"])
	assert.Equal(t, "backend exploded", appErr.Context["body"])
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryOnUnavailable(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(analysisBody))
	}))
	defer server.Close()

	cfg := testServiceConfig(server.URL)
	cfg.MaxRetries = 1
	c := newTestClient(t, cfg)

	result, err := c.Analyze(context.Background(), types.SelectedResume{Name: "cv.pdf", Content: []byte("x")}, "jd")
	require.NoError(t, err)
	assert.NotNil(t, result.MatchResult)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	cfg := testServiceConfig(server.URL)
	cfg.MaxRetries = 3
	c := newTestClient(t, cfg)

	_, err := c.Analyze(context.Background(), types.SelectedResume{Name: "cv.pdf", Content: []byte("x")}, "jd")
	assert.Equal(t, rjdctlErrors.ErrCodeServiceError, rjdctlErrors.CodeOf(err))
	assert.Equal(t, int32(1), hits.Load())
}

func slowServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
}

func TestAnalyzeTimeout(t *testing.T) {
	server := slowServer()
	defer server.Close()

	cfg := testServiceConfig(server.URL)
	cfg.AnalyzeTimeout = 50 * time.Millisecond
	c := newTestClient(t, cfg)

	_, err := c.Analyze(context.Background(), types.SelectedResume{Name: "cv.pdf", Content: []byte("x")}, "jd")
	assert.Equal(t, rjdctlErrors.ErrCodeNetworkTimeout, rjdctlErrors.CodeOf(err))
}

func TestAnalyzeCanceled(t *testing.T) {
	server := slowServer()
	defer server.Close()

	c := newTestClient(t, testServiceConfig(server.URL))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := c.Analyze(ctx, types.SelectedResume{Name: "cv.pdf", Content: []byte("x")}, "jd")
	assert.Equal(t, rjdctlErrors.ErrCodeRequestCanceled, rjdctlErrors.CodeOf(err))
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	cfg := testServiceConfig(server.URL)
	server.Close()

	c := newTestClient(t, cfg)
	_, err := c.Analyze(context.Background(), types.SelectedResume{Name: "cv.pdf", Content: []byte("x")}, "jd")
	assert.Equal(t, rjdctlErrors.ErrCodeNetworkFailure, rjdctlErrors.CodeOf(err))
}

func TestCircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testServiceConfig(server.URL)
	cfg.CircuitBreaker = config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      2,
		FailureThreshold: 0.5,
	}
	c := newTestClient(t, cfg)
	resume := types.SelectedResume{Name: "cv.pdf", Content: []byte("x")}

	for range 2 {
		_, err := c.Analyze(context.Background(), resume, "jd")
		assert.Equal(t, rjdctlErrors.ErrCodeServiceError, rjdctlErrors.CodeOf(err))
	}

	_, err := c.Analyze(context.Background(), resume, "jd")
	assert.Equal(t, rjdctlErrors.ErrCodeCircuitOpen, rjdctlErrors.CodeOf(err))
	assert.Equal(t, int32(2), hits.Load())
	assert.False(t, c.breakers[opAnalyze].IsHealthy())

	stats := c.Stats()[opAnalyze].(map[string]any)
	assert.Equal(t, "open", stats["state"])
}

func TestCountsAsSuccess(t *testing.T) {
	assert.True(t, countsAsSuccess(nil))
	assert.True(t, countsAsSuccess(context.Canceled))
	assert.True(t, countsAsSuccess(&statusError{status: http.StatusBadRequest}))
	assert.False(t, countsAsSuccess(&statusError{status: http.StatusServiceUnavailable}))
	assert.False(t, countsAsSuccess(&statusError{status: http.StatusTooManyRequests}))
	assert.False(t, countsAsSuccess(errors.New("connection reset")))
}

func TestRateLimiterHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"skills":[]}`))
	}))
	defer server.Close()

	cfg := testServiceConfig(server.URL)
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1}
	recorder := newFakeRecorder()
	c := newTestClient(t, cfg, WithRecorder(recorder))

	_, err := c.ExtractSkills(context.Background(), "Go")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ExtractSkills(ctx, "Go")
	assert.Equal(t, rjdctlErrors.ErrCodeNetworkTimeout, rjdctlErrors.CodeOf(err))
	assert.Equal(t, 1, recorder.hits)
}

func TestGenerateReport(t *testing.T) {
	result, err := ParseAnalysisResult([]byte(analysisBody))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reports/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body, 1)
		assert.JSONEq(t, string(result.MatchResult.Raw()), string(body["match_result"]))

		_, _ = w.Write([]byte(`{"pdf_url":"reports/xyz.pdf"}`))
	}))
	defer server.Close()

	c := newTestClient(t, testServiceConfig(server.URL))
	location, err := c.GenerateReport(context.Background(), result.MatchResult)
	require.NoError(t, err)
	assert.Equal(t, "reports/xyz.pdf", location.Path)
	assert.Equal(t, server.URL+"/reports/xyz.pdf", location.URL)
}

func TestGenerateReportRejectsBadReplies(t *testing.T) {
	for _, body := range []string{`{}`, `{"pdf_url":""}`, `{"pdf_url":42}`, `nope`} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		c := newTestClient(t, testServiceConfig(server.URL))
		location, err := c.GenerateReport(context.Background(), &types.MatchResult{})
		assert.Nil(t, location, body)
		assert.Equal(t, rjdctlErrors.ErrCodeMalformedResponse, rjdctlErrors.CodeOf(err), body)
		server.Close()
	}
}

func TestGenerateReportRequiresMatch(t *testing.T) {
	c := newTestClient(t, testServiceConfig("http://localhost:8000"))
	_, err := c.GenerateReport(context.Background(), nil)
	assert.Equal(t, rjdctlErrors.ErrCodeInvalidRequest, rjdctlErrors.CodeOf(err))
}

func TestResolveLocation(t *testing.T) {
	tests := []struct {
		origin  string
		locator string
		want    string
	}{
		{"http://localhost:8000", "reports/xyz.pdf", "http://localhost:8000/reports/xyz.pdf"},
		{"http://localhost:8000/", "/reports/xyz.pdf", "http://localhost:8000/reports/xyz.pdf"},
		{"http://localhost:8000", "http://localhost:8000/data/r.pdf", "http://localhost:8000/data/r.pdf"},
		{"http://localhost:8000/app", "data/r.pdf?v=2", "http://localhost:8000/app/data/r.pdf?v=2"},
	}
	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			loc, err := ResolveLocation(tt.origin, tt.locator)
			require.NoError(t, err)
			assert.Equal(t, tt.locator, loc.Path)
			assert.Equal(t, tt.want, loc.URL)
		})
	}

	for _, locator := range []string{
		"",
		"https://cdn.example.com/r.pdf",
		"https://localhost:8000/r.pdf",
		"//cdn.example.com/r.pdf",
		"mailto:reports@example.com",
	} {
		loc, err := ResolveLocation("http://localhost:8000", locator)
		assert.Nil(t, loc, locator)
		assert.Equal(t, rjdctlErrors.ErrCodeMalformedResponse, rjdctlErrors.CodeOf(err), locator)
	}
}

func TestGenerateReportRejectsForeignLocator(t *testing.T) {
	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
	}))
	defer foreign.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pdf_url":"` + foreign.URL + `/r.pdf"}`))
	}))
	defer server.Close()

	cfg := testServiceConfig(server.URL)
	cfg.APIKey = "secret"
	c := newTestClient(t, cfg)

	location, err := c.GenerateReport(context.Background(), &types.MatchResult{})
	assert.Nil(t, location)
	assert.Equal(t, rjdctlErrors.ErrCodeMalformedResponse, rjdctlErrors.CodeOf(err))
	assert.Zero(t, foreignHits.Load())
}

func TestAPIKeyOnlySentToServiceHosts(t *testing.T) {
	var foreignKey atomic.Value
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignKey.Store(r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer foreign.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	cfg := testServiceConfig(server.URL)
	cfg.APIKey = "secret"
	c := newTestClient(t, cfg)

	_, err := c.Download(context.Background(), &types.ReportLocation{Path: "r.pdf", URL: server.URL + "/r.pdf"})
	require.NoError(t, err)

	_, err = c.Download(context.Background(), &types.ReportLocation{Path: "r.pdf", URL: foreign.URL + "/r.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "", foreignKey.Load())
}

func TestUploadResume(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload_resume/", r.URL.Path)
		_, header, err := r.FormFile("resume_file")
		require.NoError(t, err)
		_, _ = w.Write([]byte(`{"filename":"` + header.Filename + `","text":"Go engineer"}`))
	}))
	defer server.Close()

	c := newTestClient(t, testServiceConfig(server.URL))
	extracted, err := c.UploadResume(context.Background(), types.SelectedResume{Name: "cv.docx", Content: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "cv.docx", extracted.Filename)
	assert.Equal(t, "Go engineer", extracted.Text)
}

func TestExtractSkills(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/skills/extract", r.URL.Path)
		assert.Equal(t, "Go and Docker", r.FormValue("text"))
		_, _ = w.Write([]byte(`{"skills":["Go","Docker"]}`))
	}))
	defer server.Close()

	c := newTestClient(t, testServiceConfig(server.URL))
	entities, err := c.ExtractSkills(context.Background(), "Go and Docker")
	require.NoError(t, err)
	assert.JSONEq(t, `{"skills":["Go","Docker"]}`, string(entities))
}

func TestParseJobDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze/parse_jd/", r.URL.Path)
		text := r.FormValue("jd_text")
		if text == "bad" {
			_, _ = w.Write([]byte(`{"text":"bad"}`))
			return
		}
		out, _ := json.Marshal(map[string]string{"jd_text": text})
		_, _ = w.Write(out)
	}))
	defer server.Close()

	c := newTestClient(t, testServiceConfig(server.URL))
	parsed, err := c.ParseJobDescription(context.Background(), "Senior engineer, 5 years Go")
	require.NoError(t, err)
	assert.Equal(t, "Senior engineer, 5 years Go", parsed.Text)

	parsed, err = c.ParseJobDescription(context.Background(), "bad")
	assert.Nil(t, parsed)
	assert.Equal(t, rjdctlErrors.ErrCodeMalformedResponse, rjdctlErrors.CodeOf(err))
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reports/xyz.pdf", r.URL.Path)
		assert.Contains(t, r.Header.Get("Accept"), "application/pdf")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 report"))
	}))
	defer server.Close()

	c := newTestClient(t, testServiceConfig(server.URL))
	loc, err := ResolveLocation(server.URL, "reports/xyz.pdf")
	require.NoError(t, err)

	content, err := c.Download(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 report", string(content))

	_, err = c.Download(context.Background(), nil)
	assert.Equal(t, rjdctlErrors.ErrCodeInvalidRequest, rjdctlErrors.CodeOf(err))
}

func TestNewRejectsRelativeURLs(t *testing.T) {
	_, err := New(config.ServiceConfig{BaseURL: "/api", Origin: "http://localhost:8000"}, rjdctlErrors.NewNop())
	assert.Equal(t, rjdctlErrors.ErrCodeInvalidConfig, rjdctlErrors.CodeOf(err))
}

func TestBackoffIsCapped(t *testing.T) {
	assert.GreaterOrEqual(t, backoff(1), time.Second)
	assert.Less(t, backoff(1), 1200*time.Millisecond)
	assert.Equal(t, maxBackoff, backoff(10))
}
