package rules

import (
	"fmt"
	"strings"

	"dossier/api/internal/bundle"
)

// compatibleTests maps an endpoint's data type to the analysis tests that
// are statistically valid for it. Keys are normalized test names.
var compatibleTests = map[bundle.DataType]map[string]struct{}{
	bundle.DataContinuous: {
		"ancova":            {},
		"anova":             {},
		"t test":            {},
		"paired t test":     {},
		"mmrm":              {},
		"mixed model":       {},
		"wilcoxon rank sum": {},
	},
	bundle.DataBinary: {
		"chi squared test":    {},
		"fisher exact test":   {},
		"logistic regression": {},
		"cmh test":            {},
	},
	bundle.DataTimeToEvent: {
		"log rank test":            {},
		"cox proportional hazards": {},
	},
	bundle.DataOrdinal: {
		"wilcoxon rank sum":       {},
		"mann whitney u":          {},
		"proportional odds model": {},
	},
	bundle.DataCount: {
		"poisson regression":           {},
		"negative binomial regression": {},
	},
}

// normalizeTestName folds case, hyphens and squared punctuation so table
// lookups tolerate common spelling variants ("t-test", "Chi-Squared test").
func normalizeTestName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer("-", " ", "–", " ", "(", " ", ")", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// rulePrimaryEndpointDrift fires when the protocol declares at least one
// primary endpoint and none of its links to the SAP are aligned. It must
// stay silent when the protocol has zero primary endpoints.
func rulePrimaryEndpointDrift(rc *Context) []Issue {
	if rc.Bundle.Protocol == nil || rc.Bundle.SAP == nil {
		return nil
	}
	primaries := 0
	aligned := 0
	for _, link := range rc.Alignments.Endpoints {
		if link.Type != bundle.EndpointPrimary {
			continue
		}
		primaries++
		if link.Aligned {
			aligned++
		}
	}
	if primaries == 0 || aligned > 0 {
		return nil
	}
	return []Issue{{
		Code:     "PRIMARY_ENDPOINT_DRIFT",
		Severity: SeverityCritical,
		Category: CategoryProtocolSAP,
		Message:  fmt.Sprintf("None of the protocol's %d primary endpoint(s) could be matched in the statistical analysis plan", primaries),
		Details:  map[string]any{"primaryEndpointCount": primaries},
		Locations: []Location{
			{DocumentType: bundle.DocProtocol},
			{DocumentType: bundle.DocSAP},
		},
	}}
}

// ruleEndpointMissingSAP emits one error per secondary protocol endpoint
// absent from the SAP (per-entity granularity, unlike the dose rule).
func ruleEndpointMissingSAP(rc *Context) []Issue {
	if rc.Bundle.Protocol == nil || rc.Bundle.SAP == nil {
		return nil
	}
	var issues []Issue
	for _, link := range rc.Alignments.Endpoints {
		if link.Type != bundle.EndpointSecondary || link.Aligned {
			continue
		}
		endpoint := findEndpoint(rc.Bundle.Protocol.Endpoints, link.ProtocolID)
		issues = append(issues, Issue{
			Code:     "ENDPOINT_MISSING_SAP",
			Severity: SeverityError,
			Category: CategoryProtocolSAP,
			Message:  fmt.Sprintf("Secondary endpoint %q has no analysis in the statistical analysis plan", endpoint.Description),
			Details:  map[string]any{"endpointId": link.ProtocolID},
			Locations: []Location{
				{DocumentType: bundle.DocProtocol, SectionID: endpoint.SectionID, BlockID: endpoint.BlockID},
				{DocumentType: bundle.DocSAP},
			},
		})
	}
	return issues
}

// ruleMultiplicityMissing is a pure structural check, independent of
// similarity matching: more than one primary endpoint requires a declared
// multiplicity-adjustment strategy.
func ruleMultiplicityMissing(rc *Context) []Issue {
	if rc.Bundle.Protocol == nil || rc.Bundle.SAP == nil {
		return nil
	}
	primaries := 0
	for _, endpoint := range rc.Bundle.Protocol.Endpoints {
		if endpoint.Type == bundle.EndpointPrimary {
			primaries++
		}
	}
	if primaries <= 1 || strings.TrimSpace(rc.Bundle.SAP.MultiplicityStrategy) != "" {
		return nil
	}
	return []Issue{{
		Code:     "MULTIPLICITY_STRATEGY_MISSING",
		Severity: SeverityError,
		Category: CategoryProtocolSAP,
		Message:  fmt.Sprintf("Protocol declares %d primary endpoints but the statistical analysis plan has no multiplicity-adjustment strategy", primaries),
		Details:  map[string]any{"primaryEndpointCount": primaries},
		Locations: []Location{
			{DocumentType: bundle.DocProtocol},
			{DocumentType: bundle.DocSAP},
		},
	}}
}

// ruleTestMismatch validates each planned test tied to a protocol endpoint
// by id against the static compatibility table for that endpoint's data
// type. Tests of unknown endpoints or endpoints without a data type are
// left alone.
func ruleTestMismatch(rc *Context) []Issue {
	if rc.Bundle.Protocol == nil || rc.Bundle.SAP == nil {
		return nil
	}
	var issues []Issue
	for _, test := range rc.Bundle.SAP.Tests {
		if test.EndpointID == "" || strings.TrimSpace(test.TestName) == "" {
			continue
		}
		endpoint := findEndpoint(rc.Bundle.Protocol.Endpoints, test.EndpointID)
		if endpoint.Description == "" && endpoint.DataType == "" {
			continue // test not tied to a known protocol endpoint
		}
		allowed, ok := compatibleTests[endpoint.DataType]
		if !ok {
			continue
		}
		if _, valid := allowed[normalizeTestName(test.TestName)]; valid {
			continue
		}
		issues = append(issues, Issue{
			Code:     "TEST_MISMATCH",
			Severity: SeverityError,
			Category: CategoryProtocolSAP,
			Message:  fmt.Sprintf("Test %q is not valid for %s endpoint %q", test.TestName, endpoint.DataType, endpoint.Description),
			Details:  map[string]any{"testId": test.ID, "endpointId": test.EndpointID, "dataType": string(endpoint.DataType)},
			Locations: []Location{
				{DocumentType: bundle.DocSAP, SectionID: test.SectionID, BlockID: test.BlockID},
				{DocumentType: bundle.DocProtocol, SectionID: endpoint.SectionID, BlockID: endpoint.BlockID},
			},
		})
	}
	return issues
}

// rulePopulationUndeclared warns once per distinct analysis population a
// planned test references without the SAP declaring it.
func rulePopulationUndeclared(rc *Context) []Issue {
	if rc.Bundle.SAP == nil {
		return nil
	}
	declared := make(map[string]struct{}, len(rc.Bundle.SAP.Populations))
	for _, population := range rc.Bundle.SAP.Populations {
		declared[strings.ToUpper(strings.TrimSpace(population.Code))] = struct{}{}
	}
	seen := make(map[string]struct{})
	var issues []Issue
	for _, test := range rc.Bundle.SAP.Tests {
		code := strings.ToUpper(strings.TrimSpace(test.Population))
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
			Code:     "POPULATION_UNDECLARED",
			Severity: SeverityWarning,
			Category: CategoryProtocolSAP,
			Message:  fmt.Sprintf("Planned analyses reference population %q which the statistical analysis plan never defines", code),
			Details:  map[string]any{"population": code},
			Locations: []Location{
				{DocumentType: bundle.DocSAP},
			},
		})
	}
	return issues
}

func findEndpoint(endpoints []bundle.Endpoint, id string) bundle.Endpoint {
	for _, e := range endpoints {
		if e.ID == id {
			return e
		}
	}
	return bundle.Endpoint{}
}
