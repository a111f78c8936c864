package rules

import (
	"dossier/api/internal/bundle"
)

// rulePurposeDrift escalates to critical when any primary objective stated
// in the brochure cannot be matched in the protocol: the two documents no
// longer agree on why the study is being run.
func rulePurposeDrift(rc *Context) []Issue {
	if rc.Bundle.Brochure == nil || rc.Bundle.Protocol == nil {
		return nil
	}
	drifted := 0
	for _, link := range rc.Alignments.Objectives {
		if link.Type == bundle.ObjectivePrimary && !link.Aligned {
			drifted++
		}
	}
	if drifted == 0 {
		return nil
	}
	return []Issue{{
		Code:     "PURPOSE_DRIFT",
		Severity: SeverityCritical,
		Category: CategoryGlobal,
		Message:  "Brochure and protocol disagree on the study's primary objective",
		Details:  map[string]any{"driftedPrimaryObjectives": drifted},
		Locations: []Location{
			{DocumentType: bundle.DocBrochure},
			{DocumentType: bundle.DocProtocol},
		},
	}}
}
