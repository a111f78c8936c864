package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"dossier/api/internal/rules"
)

type fakeStore struct {
	project ProjectInfo
	runs    map[string]RunInfo
	latest  *RunInfo
}

func (f *fakeStore) GetProject(_ context.Context, projectID string) (ProjectInfo, error) {
	if f.project.ID != projectID {
		return ProjectInfo{}, errors.New("project not found")
	}
	return f.project, nil
}

func (f *fakeStore) GetValidationRun(_ context.Context, runID string) (RunInfo, error) {
	run, ok := f.runs[runID]
	if !ok {
		return RunInfo{}, errors.New("run not found")
	}
	return run, nil
}

func (f *fakeStore) LatestValidationRun(_ context.Context, projectID string) (RunInfo, error) {
	if f.latest == nil || f.latest.ProjectID != projectID {
		return RunInfo{}, errors.New("no runs for project")
	}
	return *f.latest, nil
}

func sampleIssues(t *testing.T) json.RawMessage {
	t.Helper()
	issues := []rules.Issue{
		{
			ID:       "DOSE_INCONSISTENCY-001",
			Code:     "DOSE_INCONSISTENCY",
			Severity: rules.SeverityError,
			Category: rules.CategoryBrochureProtocol,
			Message:  "brochure lists 2 dose(s) with no matching treatment arm",
			Locations: []rules.Location{
				{DocumentType: "brochure", BlockID: "blk-1"},
			},
		},
		{
			ID:       "CONSENT_DOSE_DISCLOSURE-002",
			Code:     "CONSENT_DOSE_DISCLOSURE",
			Severity: rules.SeverityError,
			Category: rules.CategoryProtocolConsent,
			Message:  "consent form does not disclose the dose for arm Treatment A",
			Suggestions: []rules.Suggestion{
				{ID: "disclose-dose-a-1", AutoFixable: true},
			},
		},
	}
	raw, err := json.Marshal(issues)
	if err != nil {
		t.Fatalf("marshal issues: %v", err)
	}
	return raw
}

func TestBuildTemplateDataGroupsByCategory(t *testing.T) {
	var issues []rules.Issue
	if err := json.Unmarshal(sampleIssues(t), &issues); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	data := buildTemplateData(
		ProjectInfo{Name: "ORCHID-2", Compound: "CPD-101", Phase: "3"},
		RunInfo{ID: "run-1", CreatedAt: time.Now()},
		issues,
		[]rules.RuleFailure{{Code: "VISIT_WINDOW_INVALID", Message: "boom"}},
	)

	if data.Total != 2 {
		t.Fatalf("total = %d, want 2", data.Total)
	}
	if len(data.Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(data.Categories))
	}
	if data.Categories[0].Name != "Brochure / Protocol" {
		t.Errorf("first category = %q, want Brochure / Protocol", data.Categories[0].Name)
	}
	if data.Categories[1].Name != "Protocol / Consent" {
		t.Errorf("second category = %q, want Protocol / Consent", data.Categories[1].Name)
	}
	if !data.Categories[1].Issues[0].AutoFixable {
		t.Error("consent issue should be marked auto-fixable")
	}
	if got := data.Categories[0].Issues[0].Locations; got != "brochure block blk-1" {
		t.Errorf("locations = %q", got)
	}

	var errorCount int
	for _, sev := range data.Severities {
		if sev.Name == "error" {
			errorCount = sev.Count
		}
	}
	if errorCount != 2 {
		t.Errorf("error count = %d, want 2", errorCount)
	}
	if len(data.Failures) != 1 || data.Failures[0].Code != "VISIT_WINDOW_INVALID" {
		t.Errorf("failures = %+v", data.Failures)
	}
}

func TestRenderReportHTML(t *testing.T) {
	data := TemplateData{
		ProjectName: "ORCHID-2",
		Compound:    "CPD-101",
		Phase:       "3",
		RunID:       "run-1",
		GeneratedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Total:       1,
		Severities: []TemplateCount{
			{Name: "critical", Count: 0},
			{Name: "error", Count: 1},
		},
		Categories: []TemplateCategory{
			{
				Name: "Brochure / Protocol",
				Issues: []TemplateIssue{
					{
						Code:     "DOSE_INCONSISTENCY",
						Severity: "error",
						Message:  "brochure lists a dose with no matching arm",
					},
				},
			},
		},
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}

	for _, want := range []string{"ORCHID-2", "CPD-101", "run-1", "Brochure / Protocol", "DOSE_INCONSISTENCY", "severity-error"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "Rule failures") {
		t.Error("HTML should omit failures section when there are none")
	}
}

func TestRenderReportHTMLEmptyRun(t *testing.T) {
	html, err := RenderReportHTML(TemplateData{ProjectName: "Empty", GeneratedAt: time.Now()})
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}
	if !strings.Contains(html, "No consistency issues were found") {
		t.Error("HTML missing clean-run message")
	}
}

func TestResolveRunRejectsForeignRun(t *testing.T) {
	store := &fakeStore{
		project: ProjectInfo{ID: "p-1", Name: "ORCHID-2"},
		runs: map[string]RunInfo{
			"run-other": {ID: "run-other", ProjectID: "p-2"},
		},
	}
	svc := NewService(store)

	_, err := svc.resolveRun(context.Background(), Request{ProjectID: "p-1", RunID: "run-other"})
	if !errors.Is(err, ErrRunUnavailable) {
		t.Fatalf("err = %v, want ErrRunUnavailable", err)
	}
}

func TestResolveRunFallsBackToLatest(t *testing.T) {
	latest := RunInfo{ID: "run-9", ProjectID: "p-1"}
	store := &fakeStore{
		project: ProjectInfo{ID: "p-1", Name: "ORCHID-2"},
		latest:  &latest,
	}
	svc := NewService(store)

	run, err := svc.resolveRun(context.Background(), Request{ProjectID: "p-1"})
	if err != nil {
		t.Fatalf("resolveRun: %v", err)
	}
	if run.ID != "run-9" {
		t.Errorf("run = %s, want run-9", run.ID)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ORCHID-2 consistency report", "ORCHID-2-consistency-report"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
