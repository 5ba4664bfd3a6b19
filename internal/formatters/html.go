package formatters

import (
	"html/template"
	"strings"
)

const viewHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Match Result</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
.overall { font-size: 1.5rem; font-weight: 800; }
tr.even { background: #f9fafb; }
tr.odd { background: #ffffff; }
td.glyph { text-align: center; }
</style>
</head>
<body>
<h1>Match Result</h1>
<p>Overall Match: <span class="overall">{{.OverallMatch}}</span></p>
<h2>Category Scores</h2>
<ul>
{{- range .Categories}}
<li><span class="label">{{.Label}}:</span> <strong>{{.Percent}}</strong></li>
{{- else}}
<li>None</li>
{{- end}}
</ul>
<p><strong>Strengths:</strong> {{.Strengths}}</p>
<p><strong>Missing Skills:</strong> {{.MissingSkills}}</p>
<h2>Recommendations</h2>
<ul>
{{- range .Recommendations}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- if .Skills}}
<h2>Skill Comparison</h2>
<table>
<thead><tr><th>Skill</th><th>Required</th><th>Present</th></tr></thead>
<tbody>
{{- range .Skills}}
<tr class="{{.Stripe}}"><td>{{.Skill}}</td><td class="glyph">{{.Required}}</td><td class="glyph">{{.Present}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
{{- with .Download}}
<p><a class="download" href="{{.URL}}" download>Download PDF Report</a></p>
{{- end}}
</body>
</html>
`

// ViewHTMLFormatter renders a View as a standalone HTML page
type ViewHTMLFormatter struct {
	tmpl *template.Template
}

// NewViewHTMLFormatter parses the page template
func NewViewHTMLFormatter() *ViewHTMLFormatter {
	return &ViewHTMLFormatter{tmpl: template.Must(template.New("view").Parse(viewHTML))}
}

func (vhf *ViewHTMLFormatter) Format(data any) (string, error) {
	view, err := asView(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	if err := vhf.tmpl.Execute(&output, view); err != nil {
		return "", err
	}
	return output.String(), nil
}

func (vhf *ViewHTMLFormatter) SupportedType() string {
	return "View"
}
