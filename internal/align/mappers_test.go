package align

import (
	"testing"

	"dossier/api/internal/bundle"
)

func TestMapObjectivesTotalCoverage(t *testing.T) {
	left := []bundle.Objective{
		{ID: "obj-1", Type: bundle.ObjectivePrimary, Description: "To evaluate efficacy of drug X"},
		{ID: "obj-2", Type: bundle.ObjectiveSecondary, Description: "To assess safety and tolerability"},
		{ID: "obj-3", Type: bundle.ObjectiveExploratory, Description: "To explore biomarkers of response"},
	}
	right := []bundle.Objective{
		{ID: "p-1", Type: bundle.ObjectivePrimary, Description: "To evaluate the efficacy of drug X"},
	}

	links := MapObjectives(left, right)
	if len(links) != len(left) {
		t.Fatalf("got %d links, want %d", len(links), len(left))
	}
	if !links[0].Aligned || links[0].RightID != "p-1" {
		t.Errorf("primary link = %+v, want aligned to p-1", links[0])
	}
	if links[0].Score <= 0.8 {
		t.Errorf("primary link score = %v, want > 0.8", links[0].Score)
	}
	for _, link := range links[1:] {
		if link.Aligned || link.RightID != "" {
			t.Errorf("link %+v should be unaligned with empty RightID", link)
		}
	}
}

func TestMapObjectivesEmptyRightSide(t *testing.T) {
	left := []bundle.Objective{
		{ID: "obj-1", Type: bundle.ObjectivePrimary, Description: "To evaluate efficacy"},
		{ID: "obj-2", Type: bundle.ObjectiveSecondary, Description: "To assess safety"},
	}
	links := MapObjectives(left, nil)
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	for _, link := range links {
		if link.Aligned {
			t.Errorf("link %+v aligned against empty right side", link)
		}
	}
}

func TestMapObjectivesTypeConstrained(t *testing.T) {
	left := []bundle.Objective{
		{ID: "obj-1", Type: bundle.ObjectivePrimary, Description: "To assess overall survival"},
	}
	// Identical text but wrong type: must not match.
	right := []bundle.Objective{
		{ID: "p-1", Type: bundle.ObjectiveSecondary, Description: "To assess overall survival"},
	}
	links := MapObjectives(left, right)
	if links[0].Aligned {
		t.Errorf("primary objective matched a secondary candidate: %+v", links[0])
	}
}

func TestMapObjectivesSkipsMalformed(t *testing.T) {
	left := []bundle.Objective{
		{ID: "", Type: bundle.ObjectivePrimary, Description: "missing id"},
		{ID: "obj-2", Type: bundle.ObjectivePrimary, Description: ""},
		{ID: "obj-3", Type: bundle.ObjectivePrimary, Description: "To evaluate efficacy"},
	}
	links := MapObjectives(left, nil)
	if len(links) != 1 || links[0].LeftID != "obj-3" {
		t.Fatalf("got %+v, want single link for obj-3", links)
	}
}

func TestMapEndpointsCategoryPools(t *testing.T) {
	protocol := []bundle.Endpoint{
		{ID: "ep-1", Type: bundle.EndpointPrimary, Description: "Change from baseline in HbA1c at week 24"},
		{ID: "ep-2", Type: bundle.EndpointSecondary, Description: "Proportion of subjects achieving HbA1c below 7 percent"},
	}
	sap := []bundle.Endpoint{
		// Same text as ep-1 but declared secondary: must not capture the
		// primary endpoint's link.
		{ID: "sap-x", Type: bundle.EndpointSecondary, Description: "Change from baseline in HbA1c at week 24"},
		{ID: "sap-1", Type: bundle.EndpointPrimary, Description: "Change from baseline in HbA1c at 24 weeks"},
		{ID: "sap-2", Type: bundle.EndpointSecondary, Description: "Proportion of subjects achieving HbA1c below 7 percent"},
	}

	links := MapEndpoints(protocol, sap, nil)
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	if links[0].SAPID != "sap-1" {
		t.Errorf("primary endpoint linked to %q, want sap-1", links[0].SAPID)
	}
	if links[1].SAPID != "sap-2" || !links[1].Aligned {
		t.Errorf("secondary link = %+v, want aligned to sap-2", links[1])
	}
}

func TestMapEndpointsThreeWay(t *testing.T) {
	protocol := []bundle.Endpoint{
		{ID: "ep-1", Type: bundle.EndpointPrimary, Description: "Overall survival at 24 months"},
	}
	sap := []bundle.Endpoint{
		{ID: "sap-1", Type: bundle.EndpointPrimary, Description: "Overall survival at 24 months"},
	}
	reported := []bundle.Endpoint{
		{ID: "rep-1", Type: bundle.EndpointPrimary, Description: "Overall survival rate at 24 months"},
	}

	links := MapEndpoints(protocol, sap, reported)
	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
	link := links[0]
	if link.SAPID != "sap-1" || link.ReportID != "rep-1" || !link.Aligned {
		t.Errorf("link = %+v, want sap-1 and rep-1 partners", link)
	}
}

func TestMapEndpointsNoSAP(t *testing.T) {
	protocol := []bundle.Endpoint{
		{ID: "ep-1", Type: bundle.EndpointPrimary, Description: "Overall survival"},
	}
	links := MapEndpoints(protocol, nil, nil)
	if len(links) != 1 || links[0].Aligned || links[0].SAPID != "" {
		t.Fatalf("got %+v, want one unaligned link", links)
	}
}

func TestMapDosesNormalizationEqualizesNotation(t *testing.T) {
	doses := []bundle.Dose{
		{ID: "dose-1", Text: "10 mg / oral / once daily"},
	}
	arms := []bundle.TreatmentArm{
		{ID: "arm-1", Name: "Low dose", Dose: "10mg / oral / QD"},
		{ID: "arm-2", Name: "High dose", Dose: "50mg / oral / QD"},
	}

	links := MapDoses(doses, arms)
	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
	link := links[0]
	if !link.Aligned || link.ArmID != "arm-1" {
		t.Errorf("link = %+v, want aligned to arm-1", link)
	}
	if link.Score <= 0.7 {
		t.Errorf("score = %v, want > 0.7", link.Score)
	}
}

func TestMapDosesOrphan(t *testing.T) {
	doses := []bundle.Dose{
		{ID: "dose-1", Text: "500 mg / intravenous / every 2 weeks"},
	}
	arms := []bundle.TreatmentArm{
		{ID: "arm-1", Dose: "10 mg oral once daily"},
	}
	links := MapDoses(doses, arms)
	if len(links) != 1 || links[0].Aligned || links[0].ArmID != "" {
		t.Fatalf("got %+v, want one orphan link", links)
	}
}
