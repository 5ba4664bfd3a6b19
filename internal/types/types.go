package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SelectedResume is the resume file chosen by the user
type SelectedResume struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

// Size returns the content length in bytes
func (r *SelectedResume) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Content)
}

// AnalysisResult is the analysis service response
type AnalysisResult struct {
	ResumeEntities         json.RawMessage `json:"resume_entities,omitempty"`
	JobDescriptionEntities json.RawMessage `json:"jd_entities,omitempty"`
	MatchResult            *MatchResult    `json:"match_result,omitempty"`
}

// MatchResult is the scored comparison of a resume against a job description.
// Numbers are kept as received.
type MatchResult struct {
	OverallMatch         json.Number          `json:"overall_match,omitempty"`
	CategoryScores       CategoryScores       `json:"category_scores,omitempty"`
	MissingSkills        []string             `json:"missing_skills,omitempty"`
	Strengths            []string             `json:"strengths,omitempty"`
	Recommendations      []string             `json:"recommendations,omitempty"`
	SkillComparisonTable []SkillComparisonRow `json:"skill_comparison_table,omitempty"`

	raw json.RawMessage
}

type matchResultFields MatchResult

// UnmarshalJSON decodes the match result and keeps the original bytes
func (m *MatchResult) UnmarshalJSON(data []byte) error {
	var fields matchResultFields
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	*m = MatchResult(fields)
	m.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the bytes the result was decoded from, so fields this
// client does not model reach the report service untouched.
func (m MatchResult) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	return json.Marshal(matchResultFields(m))
}

// Raw returns the original JSON, or nil for a locally built result
func (m *MatchResult) Raw() json.RawMessage {
	if m == nil {
		return nil
	}
	return m.raw
}

// CategoryScore is one named category percentage
type CategoryScore struct {
	Name  string      `json:"name"`
	Score json.Number `json:"score"`
}

// CategoryScores keeps category order as it appears on the wire
type CategoryScores []CategoryScore

// UnmarshalJSON reads a JSON object token by token to preserve key order
func (c *CategoryScores) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("category_scores: expected object, got %v", tok)
	}

	scores := CategoryScores{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("category_scores: expected key, got %v", keyTok)
		}

		var score json.Number
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("category_scores.%s: %w", key, err)
		}
		scores = append(scores, CategoryScore{Name: key, Score: score})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = scores
	return nil
}

// MarshalJSON writes the scores back as an object in the same order
func (c CategoryScores) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, score := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(score.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value := score.Score.String()
		if value == "" {
			value = "null"
		}
		buf.WriteString(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SkillComparisonRow is one row of the required-vs-present table
type SkillComparisonRow struct {
	Skill    string `json:"skill"`
	Required bool   `json:"required"`
	Present  bool   `json:"present"`
}

// ReportRequest is the body sent to the report service
type ReportRequest struct {
	MatchResult *MatchResult `json:"match_result"`
}

// ReportResponse is the report service reply
type ReportResponse struct {
	PDFURL string `json:"pdf_url"`
}

// ReportLocation points at a generated report document
type ReportLocation struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ExtractedResume is the upload endpoint reply
type ExtractedResume struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// ParsedJobDescription is the job-description parser reply
type ParsedJobDescription struct {
	Text string `json:"jd_text" yaml:"jd_text"`
}
