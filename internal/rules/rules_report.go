package rules

import (
	"fmt"
	"strings"

	"dossier/api/internal/bundle"
)

// ruleReportEndpointCoverage warns for each primary protocol endpoint the
// study report never reports a result for.
func ruleReportEndpointCoverage(rc *Context) []Issue {
	if rc.Bundle.Protocol == nil || rc.Bundle.Report == nil {
		return nil
	}
	var issues []Issue
	for _, link := range rc.Alignments.Endpoints {
		if link.Type != bundle.EndpointPrimary || link.ReportID != "" {
			continue
		}
		endpoint := findEndpoint(rc.Bundle.Protocol.Endpoints, link.ProtocolID)
		issues = append(issues, Issue{
			Code:     "REPORT_ENDPOINT_COVERAGE",
			Severity: SeverityWarning,
			Category: CategoryProtocolReport,
			Message:  fmt.Sprintf("Study report has no results for primary endpoint %q", endpoint.Description),
			Details:  map[string]any{"endpointId": link.ProtocolID},
			Locations: []Location{
				{DocumentType: bundle.DocProtocol, SectionID: endpoint.SectionID, BlockID: endpoint.BlockID},
				{DocumentType: bundle.DocReport},
			},
		})
	}
	return issues
}

// ruleReportPopulationMismatch flags report populations the protocol never
// declared, one error per distinct code.
func ruleReportPopulationMismatch(rc *Context) []Issue {
	if rc.Bundle.Protocol == nil || rc.Bundle.Report == nil {
		return nil
	}
	declared := make(map[string]struct{}, len(rc.Bundle.Protocol.Populations))
	for _, population := range rc.Bundle.Protocol.Populations {
		declared[strings.ToUpper(strings.TrimSpace(population.Code))] = struct{}{}
	}
	seen := make(map[string]struct{})
	var issues []Issue
	for _, population := range rc.Bundle.Report.Populations {
		code := strings.ToUpper(strings.TrimSpace(population.Code))
		if code == "" {
			continue
		}
		if _, ok := declared[code]; ok {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		issues = append(issues, Issue{
			Code:     "REPORT_POPULATION_MISMATCH",
			Severity: SeverityError,
			Category: CategoryProtocolReport,
			Message:  fmt.Sprintf("Study report analyzes population %q which the protocol never declares", code),
			Details:  map[string]any{"population": code},
			Locations: []Location{
				{DocumentType: bundle.DocReport},
				{DocumentType: bundle.DocProtocol},
			},
		})
	}
	return issues
}
