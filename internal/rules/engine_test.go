package rules

import (
	"reflect"
	"testing"

	"dossier/api/internal/bundle"
)

func staticRule(code string, cat Category, issues ...Issue) Rule {
	return Rule{
		Code:     code,
		Category: cat,
		Severity: SeverityWarning,
		Evaluate: func(*Context) []Issue { return issues },
	}
}

func TestRunPanicIsolation(t *testing.T) {
	registry := []Rule{
		staticRule("FIRST", CategoryGlobal, Issue{Code: "FIRST", Severity: SeverityWarning, Category: CategoryGlobal}),
		{
			Code:     "BROKEN",
			Category: CategoryGlobal,
			Severity: SeverityError,
			Evaluate: func(*Context) []Issue { panic("nil map write") },
		},
		staticRule("LAST", CategoryGlobal, Issue{Code: "LAST", Severity: SeverityWarning, Category: CategoryGlobal}),
	}
	result := NewEngine(registry).Run(BuildContext(&bundle.Bundle{}))

	if len(result.Issues) != 2 {
		t.Fatalf("issues = %d, want 2 (panicking rule must not abort the run)", len(result.Issues))
	}
	if result.Issues[0].Code != "FIRST" || result.Issues[1].Code != "LAST" {
		t.Errorf("issue codes = %s, %s; want FIRST, LAST", result.Issues[0].Code, result.Issues[1].Code)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(result.Failures))
	}
	if result.Failures[0].Code != "BROKEN" {
		t.Errorf("failure code = %q, want BROKEN", result.Failures[0].Code)
	}
	if result.Failures[0].Message != "nil map write" {
		t.Errorf("failure message = %q", result.Failures[0].Message)
	}
}

func TestRunAssignsSequentialIDs(t *testing.T) {
	registry := []Rule{
		staticRule("A", CategoryGlobal,
			Issue{Code: "A", Severity: SeverityWarning, Category: CategoryGlobal},
			Issue{Code: "A", Severity: SeverityWarning, Category: CategoryGlobal},
		),
		staticRule("B", CategorySchedule, Issue{Code: "B", Severity: SeverityWarning, Category: CategorySchedule}),
	}
	result := NewEngine(registry).Run(BuildContext(&bundle.Bundle{}))

	want := []string{"A-001", "A-002", "B-003"}
	for i, id := range want {
		if result.Issues[i].ID != id {
			t.Errorf("issue %d id = %q, want %q", i, result.Issues[i].ID, id)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	engine := NewDefaultEngine()
	rc := BuildContext(driftedBundle())
	first := engine.Run(rc)
	for i := 0; i < 5; i++ {
		again := engine.Run(rc)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs from first run", i+1)
		}
	}
}

func TestRunEmptyBundle(t *testing.T) {
	result := NewDefaultEngine().Run(BuildContext(&bundle.Bundle{}))

	if len(result.Issues) != 0 {
		t.Fatalf("empty bundle produced %d issues: %+v", len(result.Issues), result.Issues)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("empty bundle produced %d failures", len(result.Failures))
	}
	if result.Summary.Total != 0 {
		t.Errorf("summary total = %d, want 0", result.Summary.Total)
	}
	for _, sev := range []Severity{SeverityCritical, SeverityError, SeverityWarning, SeverityInfo} {
		if n, ok := result.Summary.BySeverity[sev]; !ok || n != 0 {
			t.Errorf("summary severity %s = %d (present=%v), want a pre-zeroed 0", sev, n, ok)
		}
	}
	for _, cat := range Categories {
		if n, ok := result.Summary.ByCategory[cat]; !ok || n != 0 {
			t.Errorf("summary category %s = %d (present=%v), want a pre-zeroed 0", cat, n, ok)
		}
	}
}

func TestRunNilContext(t *testing.T) {
	result := NewDefaultEngine().Run(nil)
	if len(result.Issues) != 0 || len(result.Failures) != 0 {
		t.Fatalf("nil context: issues=%d failures=%d, want 0/0", len(result.Issues), len(result.Failures))
	}
}

func TestRunCategoriesFilters(t *testing.T) {
	registry := []Rule{
		staticRule("G", CategoryGlobal, Issue{Code: "G", Severity: SeverityWarning, Category: CategoryGlobal}),
		staticRule("S", CategorySchedule, Issue{Code: "S", Severity: SeverityWarning, Category: CategorySchedule}),
	}
	engine := NewEngine(registry)
	rc := BuildContext(&bundle.Bundle{})

	result := engine.RunCategories(rc, CategorySchedule)
	if len(result.Issues) != 1 || result.Issues[0].Code != "S" {
		t.Fatalf("filtered run issues = %+v, want only S", result.Issues)
	}

	// No categories means no filter.
	result = engine.RunCategories(rc)
	if len(result.Issues) != 2 {
		t.Fatalf("unfiltered run issues = %d, want 2", len(result.Issues))
	}
}
