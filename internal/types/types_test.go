package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisFixture = `{
  "resume_entities": {"skills": ["Go"]},
  "jd_entities": {"skills": ["Go", "Docker"]},
  "match_result": {
    "overall_match": 82.50,
    "category_scores": {"technical_skills": 90, "experience": 70.25, "education": 60},
    "missing_skills": ["Docker"],
    "strengths": ["Go"],
    "recommendations": [],
    "skill_comparison_table": [{"skill": "Go", "required": true, "present": true}],
    "extra_field": {"kept": true}
  }
}`

func TestAnalysisResultDecode(t *testing.T) {
	var result AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(analysisFixture), &result))
	require.NotNil(t, result.MatchResult)

	match := result.MatchResult
	assert.Equal(t, "82.50", match.OverallMatch.String())
	assert.Equal(t, CategoryScores{
		{Name: "technical_skills", Score: "90"},
		{Name: "experience", Score: "70.25"},
		{Name: "education", Score: "60"},
	}, match.CategoryScores)
	assert.Equal(t, []string{"Docker"}, match.MissingSkills)
	assert.NotNil(t, match.Recommendations)
	assert.Empty(t, match.Recommendations)
	assert.JSONEq(t, `{"skills": ["Go"]}`, string(result.ResumeEntities))
}

func TestMatchResultRoundTripKeepsUnknownFields(t *testing.T) {
	var result AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(analysisFixture), &result))

	body, err := json.Marshal(ReportRequest{MatchResult: result.MatchResult})
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Contains(t, decoded["match_result"], "extra_field")
	assert.Contains(t, string(body), "82.50")
}

func TestCategoryScoresMarshalOrder(t *testing.T) {
	scores := CategoryScores{{Name: "zeta", Score: "1"}, {Name: "alpha", Score: "2.5"}}
	body, err := json.Marshal(scores)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":2.5}`, string(body))
}

func TestCategoryScoresRejectsNonObject(t *testing.T) {
	var scores CategoryScores
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &scores))
	require.NoError(t, json.Unmarshal([]byte(`null`), &scores))
	assert.Nil(t, scores)
}

func TestLocallyBuiltMatchResultMarshals(t *testing.T) {
	match := &MatchResult{OverallMatch: "75", MissingSkills: []string{"Rust"}}
	body, err := json.Marshal(match)
	require.NoError(t, err)
	assert.JSONEq(t, `{"overall_match": 75, "missing_skills": ["Rust"]}`, string(body))
}
