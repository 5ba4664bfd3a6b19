// Package formatters renders analysis results and extracted documents.
package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"rjdctl/internal/types"

	"gopkg.in/yaml.v3"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("yaml", "any", &YAMLFormatter{})
	registry.RegisterFormatter("text", "View", &ViewTextFormatter{})
	registry.RegisterFormatter("markdown", "View", &ViewMarkdownFormatter{})
	registry.RegisterFormatter("html", "View", NewViewHTMLFormatter())
	registry.RegisterFormatter("text", "ExtractedResume", &ExtractedTextFormatter{})
	registry.RegisterFormatter("markdown", "ExtractedResume", &ExtractedMarkdownFormatter{})
	registry.RegisterFormatter("text", "Entities", &JSONFormatter{})
	registry.RegisterFormatter("text", "ParsedJobDescription", &ParsedJobTextFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case View, *View:
		return "View"
	case types.ExtractedResume, *types.ExtractedResume:
		return "ExtractedResume"
	case json.RawMessage:
		return "Entities"
	case types.ParsedJobDescription, *types.ParsedJobDescription:
		return "ParsedJobDescription"
	default:
		return "any"
	}
}

func asView(data any) (View, error) {
	switch v := data.(type) {
	case View:
		return v, nil
	case *View:
		if v != nil {
			return *v, nil
		}
		return BuildView(nil, nil), nil
	}
	return View{}, fmt.Errorf("expected View, got %T", data)
}

func asExtracted(data any) (types.ExtractedResume, error) {
	switch v := data.(type) {
	case types.ExtractedResume:
		return v, nil
	case *types.ExtractedResume:
		if v != nil {
			return *v, nil
		}
	}
	return types.ExtractedResume{}, fmt.Errorf("expected ExtractedResume, got %T", data)
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// YAMLFormatter handles YAML formatting for any data type. Raw JSON documents
// are decoded first so they come out as YAML mappings.
type YAMLFormatter struct{}

func (yf *YAMLFormatter) Format(data any) (string, error) {
	if raw, ok := data.(json.RawMessage); ok {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return "", err
		}
		data = decoded
	}

	out, err := yaml.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (yf *YAMLFormatter) SupportedType() string {
	return "any"
}

// ViewTextFormatter renders a View as plain text
type ViewTextFormatter struct{}

func (vtf *ViewTextFormatter) Format(data any) (string, error) {
	view, err := asView(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== MATCH RESULT ===\n")
	fmt.Fprintf(&output, "Overall Match: %s\n\n", view.OverallMatch)

	output.WriteString("Category Scores:\n")
	if len(view.Categories) == 0 {
		fmt.Fprintf(&output, "  %s\n", None)
	}
	for _, cat := range view.Categories {
		fmt.Fprintf(&output, "  %s: %s\n", cat.Label, cat.Percent)
	}
	output.WriteString("\n")

	fmt.Fprintf(&output, "Strengths: %s\n", view.Strengths)
	fmt.Fprintf(&output, "Missing Skills: %s\n\n", view.MissingSkills)

	output.WriteString("Recommendations:\n")
	for _, rec := range view.Recommendations {
		fmt.Fprintf(&output, "  - %s\n", rec)
	}

	if len(view.Skills) > 0 {
		output.WriteString("\n=== SKILL COMPARISON ===\n")
		width := len("Skill")
		for _, row := range view.Skills {
			width = max(width, len([]rune(row.Skill)))
		}
		fmt.Fprintf(&output, "%-*s  Required  Present\n", width, "Skill")
		for _, row := range view.Skills {
			fmt.Fprintf(&output, "%-*s  %-8s  %s\n", width, row.Skill, row.Required, row.Present)
		}
	}

	if view.Download != nil {
		fmt.Fprintf(&output, "\nReport: %s\n", view.Download.URL)
	}

	return output.String(), nil
}

func (vtf *ViewTextFormatter) SupportedType() string {
	return "View"
}

// ViewMarkdownFormatter renders a View as Markdown
type ViewMarkdownFormatter struct{}

func (vmf *ViewMarkdownFormatter) Format(data any) (string, error) {
	view, err := asView(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Match Result\n\n")
	fmt.Fprintf(&output, "**Overall Match:** %s\n\n", view.OverallMatch)

	output.WriteString("## Category Scores\n\n")
	if len(view.Categories) == 0 {
		fmt.Fprintf(&output, "- %s\n", None)
	}
	for _, cat := range view.Categories {
		fmt.Fprintf(&output, "- **%s:** %s\n", cat.Label, cat.Percent)
	}
	output.WriteString("\n")

	fmt.Fprintf(&output, "**Strengths:** %s\n\n", view.Strengths)
	fmt.Fprintf(&output, "**Missing Skills:** %s\n\n", view.MissingSkills)

	output.WriteString("## Recommendations\n\n")
	for _, rec := range view.Recommendations {
		fmt.Fprintf(&output, "- %s\n", rec)
	}

	if len(view.Skills) > 0 {
		output.WriteString("\n## Skill Comparison\n\n")
		output.WriteString("| Skill | Required | Present |\n")
		output.WriteString("|-------|:--------:|:-------:|\n")
		for _, row := range view.Skills {
			fmt.Fprintf(&output, "| %s | %s | %s |\n",
				strings.ReplaceAll(row.Skill, "|", `\|`), row.Required, row.Present)
		}
	}

	if view.Download != nil {
		fmt.Fprintf(&output, "\n[Download PDF Report](%s)\n", view.Download.URL)
	}

	return output.String(), nil
}

func (vmf *ViewMarkdownFormatter) SupportedType() string {
	return "View"
}

// ExtractedTextFormatter prints the text extracted from a resume
type ExtractedTextFormatter struct{}

func (etf *ExtractedTextFormatter) Format(data any) (string, error) {
	extracted, err := asExtracted(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	fmt.Fprintf(&output, "=== %s ===\n\n", extracted.Filename)
	output.WriteString(extracted.Text)
	if !strings.HasSuffix(extracted.Text, "\n") {
		output.WriteString("\n")
	}
	return output.String(), nil
}

func (etf *ExtractedTextFormatter) SupportedType() string {
	return "ExtractedResume"
}

// ExtractedMarkdownFormatter prints extracted resume text under a heading
type ExtractedMarkdownFormatter struct{}

func (emf *ExtractedMarkdownFormatter) Format(data any) (string, error) {
	extracted, err := asExtracted(data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("# %s\n\n```\n%s\n```\n", extracted.Filename, strings.TrimRight(extracted.Text, "\n")), nil
}

func (emf *ExtractedMarkdownFormatter) SupportedType() string {
	return "ExtractedResume"
}

// ParsedJobTextFormatter prints the parsed job description as is
type ParsedJobTextFormatter struct{}

func (pjf *ParsedJobTextFormatter) Format(data any) (string, error) {
	var parsed types.ParsedJobDescription
	switch v := data.(type) {
	case types.ParsedJobDescription:
		parsed = v
	case *types.ParsedJobDescription:
		if v == nil {
			return "", fmt.Errorf("expected ParsedJobDescription, got nil")
		}
		parsed = *v
	default:
		return "", fmt.Errorf("expected ParsedJobDescription, got %T", data)
	}

	if strings.HasSuffix(parsed.Text, "\n") {
		return parsed.Text, nil
	}
	return parsed.Text + "\n", nil
}

func (pjf *ParsedJobTextFormatter) SupportedType() string {
	return "ParsedJobDescription"
}
