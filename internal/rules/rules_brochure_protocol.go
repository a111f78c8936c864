package rules

import (
	"fmt"

	"dossier/api/internal/bundle"
)

// ruleObjectiveDrift emits one warning per unaligned non-primary brochure
// objective. Primary objectives are covered by the global purpose-drift
// rule at critical severity.
func ruleObjectiveDrift(rc *Context) []Issue {
	if rc.Bundle.Brochure == nil || rc.Bundle.Protocol == nil {
		return nil
	}
	var issues []Issue
	for _, link := range rc.Alignments.Objectives {
		if link.Aligned || link.Type == bundle.ObjectivePrimary {
			continue
		}
		objective := findObjective(rc.Bundle.Brochure.Objectives, link.LeftID)
		issues = append(issues, Issue{
			Code:     "OBJECTIVE_DRIFT",
			Severity: SeverityWarning,
			Category: CategoryBrochureProtocol,
			Message:  fmt.Sprintf("Brochure %s objective %q has no matching protocol objective", link.Type, objective.Description),
			Details:  map[string]any{"objectiveId": link.LeftID, "score": link.Score},
			Locations: []Location{
				{DocumentType: bundle.DocBrochure, SectionID: objective.SectionID, BlockID: objective.BlockID},
				{DocumentType: bundle.DocProtocol},
			},
		})
	}
	return issues
}

// ruleDoseInconsistency aggregates every orphaned brochure dose (a link
// with no matching protocol arm) into a single issue carrying the count.
// One-issue-per-orphan would flood review queues for early drafts, so the
// aggregation is intentional.
func ruleDoseInconsistency(rc *Context) []Issue {
	if rc.Bundle.Brochure == nil || rc.Bundle.Protocol == nil {
		return nil
	}
	var orphans []string
	locations := []Location{{DocumentType: bundle.DocBrochure}, {DocumentType: bundle.DocProtocol}}
	for _, link := range rc.Alignments.Doses {
		if link.Aligned {
			continue
		}
		orphans = append(orphans, link.BrochureID)
	}
	if len(orphans) == 0 {
		return nil
	}
	return []Issue{{
		Code:      "DOSE_INCONSISTENCY",
		Severity:  SeverityError,
		Category:  CategoryBrochureProtocol,
		Message:   fmt.Sprintf("%d brochure dose statement(s) have no matching protocol treatment arm", len(orphans)),
		Details:   map[string]any{"orphanCount": len(orphans), "doseIds": orphans},
		Locations: locations,
	}}
}

// ruleDoseTextMismatch flags aligned dose pairs whose wording still
// differs after normalization. The protocol is authoritative, so the
// suggested fix rewrites the brochure block to the protocol arm's text.
func ruleDoseTextMismatch(rc *Context) []Issue {
	if rc.Bundle.Brochure == nil || rc.Bundle.Protocol == nil {
		return nil
	}
	var issues []Issue
	for _, link := range rc.Alignments.Doses {
		if !link.Aligned || link.Score >= 0.95 {
			continue
		}
		dose := findDose(rc.Bundle.Brochure.Doses, link.BrochureID)
		arm := findArm(rc.Bundle.Protocol.Arms, link.ArmID)
		issue := Issue{
			Code:     "DOSE_TEXT_MISMATCH",
			Severity: SeverityWarning,
			Category: CategoryBrochureProtocol,
			Message:  fmt.Sprintf("Brochure dose %q differs from protocol arm %q dose %q", dose.Text, arm.Name, arm.Dose),
			Details:  map[string]any{"doseId": link.BrochureID, "armId": link.ArmID, "score": link.Score},
			Locations: []Location{
				{DocumentType: bundle.DocBrochure, SectionID: dose.SectionID, BlockID: dose.BlockID},
				{DocumentType: bundle.DocProtocol, SectionID: arm.SectionID, BlockID: arm.BlockID},
			},
		}
		if dose.BlockID != "" {
			issue.Suggestions = []Suggestion{{
				ID:          "align-dose-text-" + link.BrochureID,
				Label:       fmt.Sprintf("Rewrite brochure dose to match protocol: %q", arm.Dose),
				AutoFixable: true,
				Patches: []Patch{{
					DocumentID: rc.Bundle.Brochure.DocumentID,
					BlockID:    dose.BlockID,
					NewText:    arm.Dose,
				}},
			}}
		}
		issues = append(issues, issue)
	}
	return issues
}

func findObjective(objectives []bundle.Objective, id string) bundle.Objective {
	for _, o := range objectives {
		if o.ID == id {
			return o
		}
	}
	return bundle.Objective{ID: id}
}

func findDose(doses []bundle.Dose, id string) bundle.Dose {
	for _, d := range doses {
		if d.ID == id {
			return d
		}
	}
	return bundle.Dose{ID: id}
}

func findArm(arms []bundle.TreatmentArm, id string) bundle.TreatmentArm {
	for _, a := range arms {
		if a.ID == id {
			return a
		}
	}
	return bundle.TreatmentArm{ID: id}
}
