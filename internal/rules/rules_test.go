package rules

import (
	"strings"
	"testing"

	"dossier/api/internal/bundle"
)

// driftedBundle is a full five-document package seeded with one known
// inconsistency per document pair.
func driftedBundle() *bundle.Bundle {
	return &bundle.Bundle{
		ProjectID: "proj-1",
		Brochure: &bundle.Brochure{
			DocumentID: "doc-ib",
			Objectives: []bundle.Objective{
				{ID: "o-b1", Type: bundle.ObjectivePrimary, Description: "To evaluate the efficacy of drug X in adults", BlockID: "b-1"},
				{ID: "o-b2", Type: bundle.ObjectiveSecondary, Description: "To characterize the pharmacokinetic profile of drug X", BlockID: "b-2"},
			},
			Doses: []bundle.Dose{
				{ID: "d-b1", Text: "10mg / oral / QD", BlockID: "b-3"},
				{ID: "d-b2", Text: "25 mg intravenous weekly", BlockID: "b-4"},
			},
		},
		Protocol: &bundle.Protocol{
			DocumentID: "doc-prot",
			Objectives: []bundle.Objective{
				{ID: "o-p1", Type: bundle.ObjectivePrimary, Description: "To evaluate the efficacy of drug X in adults", BlockID: "p-1"},
			},
			Endpoints: []bundle.Endpoint{
				{ID: "e-p1", Type: bundle.EndpointPrimary, DataType: bundle.DataContinuous, Description: "Change from baseline in systolic blood pressure at week 12", BlockID: "p-2"},
				{ID: "e-p2", Type: bundle.EndpointSecondary, DataType: bundle.DataBinary, Description: "Proportion of responders at week 24", BlockID: "p-3"},
			},
			Arms: []bundle.TreatmentArm{
				{ID: "a-1", Name: "Drug X 10 mg", Dose: "10 mg oral once daily", BlockID: "p-4"},
			},
			Visits: []bundle.Visit{
				{ID: "v-1", Name: "Baseline", Day: 0, Procedures: []string{"blood sample"}},
				{ID: "v-2", Name: "Week 1", Day: 7, WindowBefore: 1, WindowAfter: 1, Procedures: []string{"ECG"}},
			},
			Populations: []bundle.Population{{ID: "pop-1", Code: "FAS"}},
		},
		SAP: &bundle.SAP{
			DocumentID: "doc-sap",
			Endpoints: []bundle.Endpoint{
				{ID: "e-s1", Type: bundle.EndpointPrimary, Description: "Change from baseline in systolic blood pressure at week 12"},
			},
			Tests: []bundle.PlannedTest{
				{ID: "t-1", EndpointID: "e-p1", TestName: "Chi-squared test", Population: "FAS"},
				{ID: "t-2", EndpointID: "e-p1", TestName: "ANCOVA", Population: "PP"},
			},
			Populations: []bundle.Population{{ID: "pop-s1", Code: "FAS"}},
		},
		Consent: &bundle.Consent{
			DocumentID: "doc-icf",
			Blocks: []bundle.TextBlock{
				{ID: "c-1", Text: "You will receive study medication. A blood sample will be taken at each visit."},
			},
		},
		Report: &bundle.Report{
			DocumentID:  "doc-csr",
			Populations: []bundle.Population{{ID: "pop-r1", Code: "PP"}},
		},
	}
}

func issuesByCode(result Result) map[string][]Issue {
	byCode := make(map[string][]Issue)
	for _, issue := range result.Issues {
		byCode[issue.Code] = append(byCode[issue.Code], issue)
	}
	return byCode
}

func TestDefaultRulesFullScenario(t *testing.T) {
	result := NewDefaultEngine().Run(BuildContext(driftedBundle()))
	byCode := issuesByCode(result)

	wantOnce := []string{
		"OBJECTIVE_DRIFT",            // o-b2 has no protocol counterpart
		"DOSE_INCONSISTENCY",         // d-b2 has no matching arm
		"ENDPOINT_MISSING_SAP",       // e-p2 not analyzed
		"TEST_MISMATCH",              // chi-squared on a continuous endpoint
		"POPULATION_UNDECLARED",      // t-2 references PP
		"CONSENT_DOSE_DISCLOSURE",    // consent never states the 10 mg dose
		"CONSENT_PROCEDURE_COVERAGE", // ECG not mentioned
		"REPORT_ENDPOINT_COVERAGE",   // report has no primary endpoint results
		"REPORT_POPULATION_MISMATCH", // report analyzes PP
	}
	for _, code := range wantOnce {
		if n := len(byCode[code]); n != 1 {
			t.Errorf("%s fired %d time(s), want 1", code, n)
		}
	}
	for _, code := range []string{"PURPOSE_DRIFT", "PRIMARY_ENDPOINT_DRIFT", "MULTIPLICITY_STRATEGY_MISSING", "VISIT_WINDOW_INVALID", "DOSE_TEXT_MISMATCH"} {
		if n := len(byCode[code]); n != 0 {
			t.Errorf("%s fired %d time(s), want 0", code, n)
		}
	}
	if len(result.Failures) != 0 {
		t.Fatalf("failures = %+v, want none", result.Failures)
	}
	if result.Summary.Total != len(result.Issues) {
		t.Errorf("summary total = %d, issues = %d", result.Summary.Total, len(result.Issues))
	}
	if got := result.Summary.BySeverity[SeverityError]; got != 5 {
		t.Errorf("error count = %d, want 5", got)
	}
	if got := result.Summary.BySeverity[SeverityWarning]; got != 4 {
		t.Errorf("warning count = %d, want 4", got)
	}
}

func TestPurposeDriftFiresOnPrimaryMismatch(t *testing.T) {
	b := driftedBundle()
	b.Protocol.Objectives[0].Description = "To describe long-term renal safety outcomes"
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategoryGlobal)

	byCode := issuesByCode(result)
	issues := byCode["PURPOSE_DRIFT"]
	if len(issues) != 1 {
		t.Fatalf("PURPOSE_DRIFT fired %d time(s), want 1", len(issues))
	}
	issue := issues[0]
	if issue.Severity != SeverityCritical {
		t.Errorf("severity = %s, want critical", issue.Severity)
	}
	if len(issue.Locations) != 2 ||
		issue.Locations[0].DocumentType != bundle.DocBrochure ||
		issue.Locations[1].DocumentType != bundle.DocProtocol {
		t.Errorf("locations = %+v, want brochure and protocol", issue.Locations)
	}
}

func TestPrimaryEndpointDrift(t *testing.T) {
	b := driftedBundle()
	b.SAP.Endpoints[0].Description = "Incidence of treatment-emergent adverse events"
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategoryProtocolSAP)

	issues := issuesByCode(result)["PRIMARY_ENDPOINT_DRIFT"]
	if len(issues) != 1 {
		t.Fatalf("PRIMARY_ENDPOINT_DRIFT fired %d time(s), want 1", len(issues))
	}
	if issues[0].Severity != SeverityCritical {
		t.Errorf("severity = %s, want critical", issues[0].Severity)
	}
}

func TestPrimaryEndpointDriftSilentWithoutPrimaries(t *testing.T) {
	b := driftedBundle()
	b.Protocol.Endpoints = []bundle.Endpoint{
		{ID: "e-p2", Type: bundle.EndpointSecondary, DataType: bundle.DataBinary, Description: "Proportion of responders at week 24"},
	}
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategoryProtocolSAP)

	if n := len(issuesByCode(result)["PRIMARY_ENDPOINT_DRIFT"]); n != 0 {
		t.Fatalf("PRIMARY_ENDPOINT_DRIFT fired %d time(s) with zero primary endpoints, want 0", n)
	}
}

func TestMultiplicityStrategyMissing(t *testing.T) {
	b := driftedBundle()
	b.Protocol.Endpoints = append(b.Protocol.Endpoints, bundle.Endpoint{
		ID: "e-p3", Type: bundle.EndpointPrimary, DataType: bundle.DataBinary,
		Description: "Proportion of subjects achieving remission at week 12",
	})
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategoryProtocolSAP)
	if n := len(issuesByCode(result)["MULTIPLICITY_STRATEGY_MISSING"]); n != 1 {
		t.Fatalf("MULTIPLICITY_STRATEGY_MISSING fired %d time(s), want 1", n)
	}

	b.SAP.MultiplicityStrategy = "Hierarchical testing"
	result = NewDefaultEngine().RunCategories(BuildContext(b), CategoryProtocolSAP)
	if n := len(issuesByCode(result)["MULTIPLICITY_STRATEGY_MISSING"]); n != 0 {
		t.Fatalf("MULTIPLICITY_STRATEGY_MISSING fired %d time(s) with a declared strategy, want 0", n)
	}
}

func TestTestMismatchToleratesNameVariants(t *testing.T) {
	b := driftedBundle()
	b.SAP.Tests = []bundle.PlannedTest{
		{ID: "t-1", EndpointID: "e-p1", TestName: "MMRM", Population: "FAS"},
		{ID: "t-2", EndpointID: "e-p2", TestName: "Fisher Exact Test", Population: "FAS"},
		{ID: "t-3", EndpointID: "e-p2", TestName: "log-rank test", Population: "FAS"},
	}
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategoryProtocolSAP)

	issues := issuesByCode(result)["TEST_MISMATCH"]
	if len(issues) != 1 {
		t.Fatalf("TEST_MISMATCH fired %d time(s), want 1 (log-rank on a binary endpoint)", len(issues))
	}
	if issues[0].Details["testId"] != "t-3" {
		t.Errorf("flagged test = %v, want t-3", issues[0].Details["testId"])
	}
}

func TestDoseInconsistencyAggregates(t *testing.T) {
	b := driftedBundle()
	b.Brochure.Doses = append(b.Brochure.Doses, bundle.Dose{ID: "d-b3", Text: "500 mg subcutaneous monthly", BlockID: "b-5"})
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategoryBrochureProtocol)

	issues := issuesByCode(result)["DOSE_INCONSISTENCY"]
	if len(issues) != 1 {
		t.Fatalf("DOSE_INCONSISTENCY fired %d time(s), want a single aggregated issue", len(issues))
	}
	if got := issues[0].Details["orphanCount"]; got != 2 {
		t.Errorf("orphanCount = %v, want 2", got)
	}
}

func TestDoseTextMismatchSuggestsProtocolText(t *testing.T) {
	b := driftedBundle()
	b.Brochure.Doses = []bundle.Dose{{ID: "d-b1", Text: "10 mg oral twice daily", BlockID: "b-3"}}
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategoryBrochureProtocol)

	issues := issuesByCode(result)["DOSE_TEXT_MISMATCH"]
	if len(issues) != 1 {
		t.Fatalf("DOSE_TEXT_MISMATCH fired %d time(s), want 1", len(issues))
	}
	issue := issues[0]
	if len(issue.Suggestions) != 1 || !issue.Suggestions[0].AutoFixable {
		t.Fatalf("suggestions = %+v, want one auto-fixable suggestion", issue.Suggestions)
	}
	patch := issue.Suggestions[0].Patches[0]
	if patch.DocumentID != "doc-ib" || patch.BlockID != "b-3" {
		t.Errorf("patch targets %s/%s, want doc-ib/b-3", patch.DocumentID, patch.BlockID)
	}
	if patch.NewText != "10 mg oral once daily" {
		t.Errorf("patch text = %q, want the protocol arm dose", patch.NewText)
	}
}

func TestConsentDoseDisclosureSuggestion(t *testing.T) {
	result := NewDefaultEngine().RunCategories(BuildContext(driftedBundle()), CategoryProtocolConsent)

	issues := issuesByCode(result)["CONSENT_DOSE_DISCLOSURE"]
	if len(issues) != 1 {
		t.Fatalf("CONSENT_DOSE_DISCLOSURE fired %d time(s), want 1", len(issues))
	}
	suggestions := issues[0].Suggestions
	if len(suggestions) != 1 || !suggestions[0].AutoFixable {
		t.Fatalf("suggestions = %+v, want one auto-fixable suggestion", suggestions)
	}
	patch := suggestions[0].Patches[0]
	if patch.DocumentID != "doc-icf" || patch.BlockID != "c-1" {
		t.Errorf("patch targets %s/%s, want doc-icf/c-1", patch.DocumentID, patch.BlockID)
	}
	if !strings.Contains(patch.NewText, "10 mg oral once daily") {
		t.Errorf("patch text %q does not disclose the dose", patch.NewText)
	}
	if !strings.HasPrefix(patch.NewText, "You will receive study medication.") {
		t.Errorf("patch text %q must append, not replace", patch.NewText)
	}
}

func TestConsentDoseDisclosureSatisfied(t *testing.T) {
	b := driftedBundle()
	b.Consent.Blocks[0].Text += " Participants receive 10 mg oral once daily."
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategoryProtocolConsent)

	if n := len(issuesByCode(result)["CONSENT_DOSE_DISCLOSURE"]); n != 0 {
		t.Fatalf("CONSENT_DOSE_DISCLOSURE fired %d time(s) with the dose disclosed, want 0", n)
	}
}

func TestVisitWindowRules(t *testing.T) {
	b := driftedBundle()
	b.Protocol.Visits = []bundle.Visit{
		{ID: "v-1", Name: "Baseline", Day: 0, WindowAfter: 3},
		{ID: "v-2", Name: "Week 1", Day: 7, WindowBefore: 2, WindowAfter: 2}, // 0+3 < 7-2, ok
		{ID: "v-3", Name: "Week 2", Day: 10, WindowBefore: 2},               // overlaps week 1
		{ID: "v-4", Name: "Week 4", Day: 28, WindowBefore: -1},              // negative
	}
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategorySchedule)

	issues := issuesByCode(result)["VISIT_WINDOW_INVALID"]
	if len(issues) != 2 {
		t.Fatalf("VISIT_WINDOW_INVALID fired %d time(s), want 2 (one negative window, one overlap): %+v", len(issues), issues)
	}
}

func TestPopulationUndeclaredDeduplicates(t *testing.T) {
	b := driftedBundle()
	b.SAP.Tests = append(b.SAP.Tests, bundle.PlannedTest{ID: "t-3", EndpointID: "e-p1", TestName: "ANCOVA", Population: "pp"})
	result := NewDefaultEngine().RunCategories(BuildContext(b), CategoryProtocolSAP)

	issues := issuesByCode(result)["POPULATION_UNDECLARED"]
	if len(issues) != 1 {
		t.Fatalf("POPULATION_UNDECLARED fired %d time(s), want 1 (PP reported once despite two references)", len(issues))
	}
	if issues[0].Details["population"] != "PP" {
		t.Errorf("population = %v, want PP", issues[0].Details["population"])
	}
}

func TestReportRules(t *testing.T) {
	result := NewDefaultEngine().RunCategories(BuildContext(driftedBundle()), CategoryProtocolReport)
	byCode := issuesByCode(result)

	if n := len(byCode["REPORT_ENDPOINT_COVERAGE"]); n != 1 {
		t.Errorf("REPORT_ENDPOINT_COVERAGE fired %d time(s), want 1", n)
	}
	if n := len(byCode["REPORT_POPULATION_MISMATCH"]); n != 1 {
		t.Errorf("REPORT_POPULATION_MISMATCH fired %d time(s), want 1", n)
	}

	// Reporting the primary endpoint and sticking to declared populations
	// clears both.
	b := driftedBundle()
	b.Report.Endpoints = []bundle.Endpoint{
		{ID: "e-r1", Type: bundle.EndpointPrimary, Description: "Change from baseline in systolic blood pressure at week 12"},
	}
	b.Report.Populations = []bundle.Population{{ID: "pop-r1", Code: "FAS"}}
	result = NewDefaultEngine().RunCategories(BuildContext(b), CategoryProtocolReport)
	if len(result.Issues) != 0 {
		t.Fatalf("clean report still produced %d issue(s): %+v", len(result.Issues), result.Issues)
	}
}
