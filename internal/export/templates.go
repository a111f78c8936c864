package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback to built-in template if file not found
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for report template rendering
type TemplateData struct {
	ProjectName string
	Compound    string
	Phase       string
	RunID       string
	GeneratedAt time.Time
	Total       int
	Severities  []TemplateCount
	Categories  []TemplateCategory
	Failures    []TemplateFailure
}

// TemplateCount is one severity tally.
type TemplateCount struct {
	Name  string
	Count int
}

// TemplateCategory groups the issues of one document pair.
type TemplateCategory struct {
	Name   string
	Issues []TemplateIssue
}

// TemplateIssue holds one issue row for the template.
type TemplateIssue struct {
	Code        string
	Severity    string
	Message     string
	Locations   string
	AutoFixable bool
}

// TemplateFailure holds one rule failure row.
type TemplateFailure struct {
	Code    string
	Message string
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Consistency Report — {{.ProjectName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .issue { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .severity-critical { border-left-color: #b00020; }
    .severity-error { border-left-color: #d06000; }
    .severity-warning { border-left-color: #c0a000; }
  </style>
</head>
<body>
  <h1>Cross-Document Consistency Report</h1>
  <div class="meta">{{.ProjectName}}{{if .Compound}} | {{.Compound}}{{end}}{{if .Phase}} | Phase {{.Phase}}{{end}} | {{.GeneratedAt.Format "Jan 2, 2006 15:04"}}</div>
  <p>{{.Total}} issue(s) found.
  {{range .Severities}}{{if .Count}} {{.Name}}: {{.Count}}.{{end}}{{end}}</p>
  {{range .Categories}}
  <h2>{{.Name}}</h2>
  {{range .Issues}}
  <div class="issue severity-{{.Severity | lower}}">
    <strong>{{.Code}}</strong> ({{.Severity}})<br>
    {{.Message}}
    {{if .Locations}}<br><small>{{.Locations}}</small>{{end}}
    {{if .AutoFixable}}<br><small>auto-fixable</small>{{end}}
  </div>
  {{end}}
  {{end}}
  {{if .Failures}}
  <h2>Rule failures</h2>
  {{range .Failures}}<div class="issue"><strong>{{.Code}}</strong><br>{{.Message}}</div>{{end}}
  {{end}}
</body>
</html>`
