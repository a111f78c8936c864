package rules

import (
	"fmt"
	"sort"
	"strings"

	"dossier/api/internal/bundle"
)

// ruleConsentDoseDisclosure requires every protocol treatment arm's dose to
// appear in the consent form text. The suggested fix appends a disclosure
// sentence to the consent's first block.
func ruleConsentDoseDisclosure(rc *Context) []Issue {
	if rc.Bundle.Protocol == nil || rc.Bundle.Consent == nil {
		return nil
	}
	consent := strings.ToLower(consentText(rc.Bundle.Consent))
	var issues []Issue
	for _, arm := range rc.Bundle.Protocol.Arms {
		dose := strings.TrimSpace(arm.Dose)
		if dose == "" {
			continue
		}
		if strings.Contains(consent, strings.ToLower(dose)) {
			continue
		}
		issue := Issue{
			Code:     "CONSENT_DOSE_DISCLOSURE",
			Severity: SeverityError,
			Category: CategoryProtocolConsent,
			Message:  fmt.Sprintf("Consent form does not disclose the dose %q of treatment arm %q", dose, arm.Name),
			Details:  map[string]any{"armId": arm.ID, "dose": dose},
			Locations: []Location{
				{DocumentType: bundle.DocConsent},
				{DocumentType: bundle.DocProtocol, SectionID: arm.SectionID, BlockID: arm.BlockID},
			},
		}
		if len(rc.Bundle.Consent.Blocks) > 0 {
			first := rc.Bundle.Consent.Blocks[0]
			issue.Suggestions = []Suggestion{{
				ID:          "disclose-dose-" + arm.ID,
				Label:       fmt.Sprintf("Add a disclosure of the %s dose for the %s arm", dose, arm.Name),
				AutoFixable: true,
				Patches: []Patch{{
					DocumentID: rc.Bundle.Consent.DocumentID,
					BlockID:    first.ID,
					NewText:    appendSentence(first.Text, fmt.Sprintf("Participants in the %s arm will receive %s.", arm.Name, dose)),
				}},
			}}
		}
		issues = append(issues, issue)
	}
	return issues
}

// ruleConsentProcedureCoverage aggregates all scheduled visit procedures the
// consent form never mentions into a single warning.
func ruleConsentProcedureCoverage(rc *Context) []Issue {
	if rc.Bundle.Protocol == nil || rc.Bundle.Consent == nil {
		return nil
	}
	consent := strings.ToLower(consentText(rc.Bundle.Consent))
	missing := make(map[string]struct{})
	for _, visit := range rc.Bundle.Protocol.Visits {
		for _, procedure := range visit.Procedures {
			procedure = strings.TrimSpace(procedure)
			if procedure == "" {
				continue
			}
			if strings.Contains(consent, strings.ToLower(procedure)) {
				continue
			}
			missing[procedure] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return []Issue{{
		Code:     "CONSENT_PROCEDURE_COVERAGE",
		Severity: SeverityWarning,
		Category: CategoryProtocolConsent,
		Message:  fmt.Sprintf("Consent form does not mention %d scheduled procedure(s): %s", len(names), strings.Join(names, ", ")),
		Details:  map[string]any{"missingCount": len(names), "procedures": names},
		Locations: []Location{
			{DocumentType: bundle.DocConsent},
			{DocumentType: bundle.DocProtocol},
		},
	}}
}

func consentText(c *bundle.Consent) string {
	var b strings.Builder
	for _, block := range c.Blocks {
		b.WriteString(block.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func appendSentence(text, sentence string) string {
	text = strings.TrimRight(text, " \n\t")
	if text == "" {
		return sentence
	}
	return text + " " + sentence
}
