package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rjdctl/internal/client"
	"rjdctl/internal/config"
	"rjdctl/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisBody = `{"resume_entities":{"skills":["Go"]},"match_result":{"overall_match":82,` +
	`"category_scores":{"skills":90,"experience":75},"missing_skills":["Docker"],"strengths":["Go"],` +
	`"recommendations":["Learn Docker"],"skill_comparison_table":[{"skill":"Go","required":true,"present":true}]}}`

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze/match", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, analysisBody)
	})
	mux.HandleFunc("POST /api/reports/generate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"pdf_url":"/reports/xyz.pdf"}`)
	})
	mux.HandleFunc("GET /reports/xyz.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-1.4 report")
	})
	mux.HandleFunc("POST /api/analyze/parse_jd/", func(w http.ResponseWriter, r *http.Request) {
		out, _ := json.Marshal(map[string]string{"jd_text": r.FormValue("jd_text")})
		_, _ = w.Write(out)
	})
	mux.HandleFunc("POST /api/skills/extract", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"skills":["`+r.FormValue("text")+`"]}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(serverURL string) *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{
			BaseURL:         serverURL + "/api",
			Origin:          serverURL,
			AnalyzeTimeout:  5 * time.Second,
			ReportTimeout:   5 * time.Second,
			DownloadTimeout: 5 * time.Second,
		},
		Input: config.InputConfig{
			AllowedExtensions: []string{".pdf"},
			MaxFileSize:       1 << 20,
		},
		App: config.AppConfig{
			LogLevel:         "error",
			DefaultFormat:    "text",
			SupportedFormats: []string{"text", "markdown", "html", "json", "yaml"},
		},
	}
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	err := Execute(context.Background(), cfg, errors.NewNop())
	return out.String(), err
}

func TestMatchCommand(t *testing.T) {
	server := backend(t)
	dir := t.TempDir()
	resume := filepath.Join(dir, "resume.pdf")
	require.NoError(t, os.WriteFile(resume, []byte("%PDF-1.4"), 0o600))
	saved := filepath.Join(dir, "analysis.json")
	pdf := filepath.Join(dir, "out", "report.pdf")

	out, err := execute(t, testConfig(server.URL), "match",
		"--resume", resume,
		"--jd-text", "Senior Go engineer",
		"--format", "json",
		"--save-analysis", saved,
		"--download", pdf)
	require.NoError(t, err)

	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "82%", view["overall_match"])
	assert.Equal(t, map[string]any{"path": "/reports/xyz.pdf", "url": server.URL + "/reports/xyz.pdf"}, view["download"])

	content, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 report", string(content))

	raw, err := os.ReadFile(saved)
	require.NoError(t, err)
	result, err := client.ParseAnalysisResult(raw)
	require.NoError(t, err)
	require.NotNil(t, result.MatchResult)
	assert.Equal(t, "82", result.MatchResult.OverallMatch.String())
}

func TestReportCommand(t *testing.T) {
	server := backend(t)
	saved := filepath.Join(t.TempDir(), "analysis.json")
	require.NoError(t, os.WriteFile(saved, []byte(analysisBody), 0o600))

	out, err := execute(t, testConfig(server.URL), "report", saved, "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Overall Match: 82%")
	assert.Contains(t, out, server.URL+"/reports/xyz.pdf")
}

func TestReportCommandRejectsMalformedFile(t *testing.T) {
	server := backend(t)
	saved := filepath.Join(t.TempDir(), "analysis.json")
	require.NoError(t, os.WriteFile(saved, []byte(`{"match_result":{"overall_match":"high"}}`), 0o600))

	_, err := execute(t, testConfig(server.URL), "report", saved)
	assert.Equal(t, errors.ErrCodeMalformedResponse, errors.CodeOf(err))
}

func TestSkillsCommand(t *testing.T) {
	server := backend(t)

	out, err := execute(t, testConfig(server.URL), "skills", "--text", "Kubernetes", "--format", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "skills:\n    - Kubernetes\n", out)
}

func TestParseJDCommand(t *testing.T) {
	server := backend(t)
	jd := filepath.Join(t.TempDir(), "jd.txt")
	require.NoError(t, os.WriteFile(jd, []byte("Senior Go engineer\n"), 0o600))

	out, err := execute(t, testConfig(server.URL), "parse-jd", jd, "--format", "text")
	require.NoError(t, err)
	assert.Equal(t, "Senior Go engineer\n", out)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, testConfig("http://localhost:8000"), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rjdctl version "+Version)
}
