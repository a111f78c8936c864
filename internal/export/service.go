package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dossier/api/internal/rules"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetProject(ctx context.Context, projectID string) (ProjectInfo, error)
	GetValidationRun(ctx context.Context, runID string) (RunInfo, error)
	LatestValidationRun(ctx context.Context, projectID string) (RunInfo, error)
}

// ProjectInfo holds basic project metadata
type ProjectInfo struct {
	ID       string
	Name     string
	Compound string
	Phase    string
}

// RunInfo holds one persisted validation run
type RunInfo struct {
	ID        string
	ProjectID string
	Issues    json.RawMessage
	Failures  json.RawMessage
	CreatedAt time.Time
}

// Service provides validation report export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	project, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	run, err := s.resolveRun(ctx, req)
	if err != nil {
		return nil, err
	}

	var issues []rules.Issue
	if len(run.Issues) > 0 {
		if err := json.Unmarshal(run.Issues, &issues); err != nil {
			return nil, fmt.Errorf("decode run issues: %w", err)
		}
	}
	var failures []rules.RuleFailure
	if len(run.Failures) > 0 {
		if err := json.Unmarshal(run.Failures, &failures); err != nil {
			return nil, fmt.Errorf("decode run failures: %w", err)
		}
	}

	data := buildTemplateData(project, run, issues, failures)

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := project.Name + " consistency report"
	switch req.Format {
	case FormatPDF:
		return exportPDF(html, title)
	case FormatDOCX:
		return exportDOCX(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

// resolveRun loads the requested run, or the project's most recent one
// when no run id was given. A run belonging to another project is treated
// as unavailable rather than leaked.
func (s *Service) resolveRun(ctx context.Context, req Request) (RunInfo, error) {
	if req.RunID == "" {
		run, err := s.store.LatestValidationRun(ctx, req.ProjectID)
		if err != nil {
			return RunInfo{}, fmt.Errorf("%w: %v", ErrRunUnavailable, err)
		}
		return run, nil
	}

	run, err := s.store.GetValidationRun(ctx, req.RunID)
	if err != nil {
		return RunInfo{}, fmt.Errorf("%w: %v", ErrRunUnavailable, err)
	}
	if run.ProjectID != req.ProjectID {
		return RunInfo{}, fmt.Errorf("%w: run %s does not belong to project %s", ErrRunUnavailable, req.RunID, req.ProjectID)
	}
	return run, nil
}

var categoryTitles = map[rules.Category]string{
	rules.CategoryBrochureProtocol: "Brochure / Protocol",
	rules.CategoryProtocolSAP:      "Protocol / SAP",
	rules.CategoryProtocolConsent:  "Protocol / Consent",
	rules.CategoryProtocolReport:   "Protocol / Report",
	rules.CategoryGlobal:           "Global",
	rules.CategorySchedule:         "Schedule",
}

func buildTemplateData(project ProjectInfo, run RunInfo, issues []rules.Issue, failures []rules.RuleFailure) TemplateData {
	data := TemplateData{
		ProjectName: project.Name,
		Compound:    project.Compound,
		Phase:       project.Phase,
		RunID:       run.ID,
		GeneratedAt: time.Now().UTC(),
		Total:       len(issues),
	}

	bySeverity := map[rules.Severity]int{}
	byCategory := map[rules.Category][]TemplateIssue{}
	for _, issue := range issues {
		bySeverity[issue.Severity]++
		byCategory[issue.Category] = append(byCategory[issue.Category], TemplateIssue{
			Code:        issue.Code,
			Severity:    string(issue.Severity),
			Message:     issue.Message,
			Locations:   formatLocations(issue.Locations),
			AutoFixable: hasAutoFix(issue),
		})
	}

	for _, sev := range []rules.Severity{rules.SeverityCritical, rules.SeverityError, rules.SeverityWarning, rules.SeverityInfo} {
		data.Severities = append(data.Severities, TemplateCount{Name: string(sev), Count: bySeverity[sev]})
	}
	for _, cat := range rules.Categories {
		grouped, ok := byCategory[cat]
		if !ok {
			continue
		}
		title := categoryTitles[cat]
		if title == "" {
			title = string(cat)
		}
		data.Categories = append(data.Categories, TemplateCategory{Name: title, Issues: grouped})
	}
	for _, f := range failures {
		data.Failures = append(data.Failures, TemplateFailure{Code: f.Code, Message: f.Message})
	}
	return data
}

func formatLocations(locations []rules.Location) string {
	parts := make([]string, 0, len(locations))
	for _, loc := range locations {
		part := string(loc.DocumentType)
		if loc.SectionID != "" {
			part += " section " + loc.SectionID
		}
		if loc.BlockID != "" {
			part += " block " + loc.BlockID
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

func hasAutoFix(issue rules.Issue) bool {
	for _, sug := range issue.Suggestions {
		if sug.AutoFixable {
			return true
		}
	}
	return false
}
