package formatters

import (
	"strings"

	"rjdctl/internal/types"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Glyphs for boolean skill table cells
const (
	GlyphYes = "✓"
	GlyphNo  = "✗"
)

// None is shown for empty lists
const None = "None"

// NotAvailable is shown for a missing percentage
const NotAvailable = "N/A"

// View is the presentation model shared by every output format. Every field
// is populated with a fallback so formatters never inspect raw results.
type View struct {
	OverallMatch    string        `json:"overall_match" yaml:"overall_match"`
	Categories      []CategoryRow `json:"categories" yaml:"categories"`
	Strengths       string        `json:"strengths" yaml:"strengths"`
	MissingSkills   string        `json:"missing_skills" yaml:"missing_skills"`
	Recommendations []string      `json:"recommendations" yaml:"recommendations"`
	Skills          []SkillRow    `json:"skills" yaml:"skills"`
	Download        *Link         `json:"download,omitempty" yaml:"download,omitempty"`
}

// CategoryRow is one label and percentage pair
type CategoryRow struct {
	Label   string `json:"label" yaml:"label"`
	Percent string `json:"percent" yaml:"percent"`
}

// SkillRow is one rendered skill comparison row
type SkillRow struct {
	Skill    string `json:"skill" yaml:"skill"`
	Required string `json:"required" yaml:"required"`
	Present  string `json:"present" yaml:"present"`
	Stripe   string `json:"stripe" yaml:"stripe"`
}

// Link is the report download affordance
type Link struct {
	Path string `json:"path" yaml:"path"`
	URL  string `json:"url" yaml:"url"`
}

var labelCaser = cases.Title(language.English, cases.NoLower)

// BuildView renders result and location into a View. Both may be nil.
func BuildView(result *types.AnalysisResult, location *types.ReportLocation) View {
	var match *types.MatchResult
	if result != nil {
		match = result.MatchResult
	}
	if match == nil {
		match = &types.MatchResult{}
	}

	view := View{
		OverallMatch:    percent(match.OverallMatch.String()),
		Categories:      make([]CategoryRow, 0, len(match.CategoryScores)),
		Strengths:       joinOrNone(match.Strengths),
		MissingSkills:   joinOrNone(match.MissingSkills),
		Recommendations: []string{None},
		Skills:          make([]SkillRow, 0, len(match.SkillComparisonTable)),
	}

	for _, score := range match.CategoryScores {
		view.Categories = append(view.Categories, CategoryRow{
			Label:   CategoryLabel(score.Name),
			Percent: percent(score.Score.String()),
		})
	}

	if len(match.Recommendations) > 0 {
		view.Recommendations = append([]string(nil), match.Recommendations...)
	}

	for i, row := range match.SkillComparisonTable {
		view.Skills = append(view.Skills, SkillRow{
			Skill:    row.Skill,
			Required: glyph(row.Required),
			Present:  glyph(row.Present),
			Stripe:   stripe(i),
		})
	}

	if location != nil && location.URL != "" {
		view.Download = &Link{Path: location.Path, URL: location.URL}
	}
	return view
}

// CategoryLabel turns "technical_skills" into "Technical Skills"
func CategoryLabel(name string) string {
	return labelCaser.String(strings.ReplaceAll(name, "_", " "))
}

func percent(value string) string {
	if value == "" {
		return NotAvailable
	}
	return value + "%"
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return None
	}
	return strings.Join(items, ", ")
}

func glyph(v bool) string {
	if v {
		return GlyphYes
	}
	return GlyphNo
}

func stripe(i int) string {
	if i%2 == 0 {
		return "even"
	}
	return "odd"
}
