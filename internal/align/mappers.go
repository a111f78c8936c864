// Package align correlates semantically-equivalent entities across pairs
// of regulatory documents using lexical similarity. Every mapper produces
// exactly one link per well-formed left-side entity — total coverage, no
// silent drops — with the aligned flag and score recording how good the
// best right-side candidate was, if any.
package align

import (
	"strings"

	"dossier/api/internal/bundle"
	"dossier/api/internal/similarity"
)

// Per-call-site thresholds; these are deliberately not one shared knob
// (they were tuned independently per entity kind).
const (
	objectiveThreshold = 0.80
	endpointThreshold  = 0.75
	doseThreshold      = 0.70
)

// ObjectiveLink correlates a brochure objective with a protocol objective
// of the same type.
type ObjectiveLink struct {
	LeftID  string
	RightID string // empty when no candidate cleared the threshold
	Type    bundle.ObjectiveType
	Aligned bool
	Score   float64
}

// EndpointLink correlates a protocol endpoint with up to two partners:
// the SAP endpoint it is analyzed by and the report endpoint it is
// reported under. Aligned and Score reflect the protocol↔SAP pairing.
type EndpointLink struct {
	ProtocolID string
	SAPID      string
	ReportID   string
	Type       bundle.EndpointType
	Aligned    bool
	Score      float64
}

// DoseLink correlates a brochure dose statement with a protocol treatment
// arm, after both sides were normalized.
type DoseLink struct {
	BrochureID string
	ArmID      string
	Aligned    bool
	Score      float64
}

// MapObjectives aligns every left objective against the same-typed pool of
// right objectives. Objectives missing an id or description are malformed
// and skipped; all others yield a link even when the right side is empty.
func MapObjectives(left, right []bundle.Objective) []ObjectiveLink {
	links := make([]ObjectiveLink, 0, len(left))
	for _, objective := range left {
		if objective.ID == "" || strings.TrimSpace(objective.Description) == "" {
			continue
		}
		pool := make([]bundle.Objective, 0, len(right))
		for _, candidate := range right {
			if candidate.ID == "" || strings.TrimSpace(candidate.Description) == "" {
				continue
			}
			if candidate.Type == objective.Type {
				pool = append(pool, candidate)
			}
		}
		link := ObjectiveLink{LeftID: objective.ID, Type: objective.Type}
		match := similarity.FindBestMatch(objective.Description, pool, func(o bundle.Objective) string {
			return o.Description
		}, objectiveThreshold)
		if match.Found {
			link.RightID = pool[match.Index].ID
			link.Aligned = true
			link.Score = match.Score
		}
		links = append(links, link)
	}
	return links
}

// MapEndpoints aligns every protocol endpoint against the SAP pool of the
// same category — a primary endpoint is never matched into the secondary
// pool — and, when a report is present, additionally records the matching
// reported endpoint. reported may be nil.
func MapEndpoints(protocol, sap, reported []bundle.Endpoint) []EndpointLink {
	links := make([]EndpointLink, 0, len(protocol))
	for _, endpoint := range protocol {
		if endpoint.ID == "" || strings.TrimSpace(endpoint.Description) == "" {
			continue
		}
		link := EndpointLink{ProtocolID: endpoint.ID, Type: endpoint.Type}

		sapPool := endpointPool(sap, endpoint.Type)
		if match := similarity.FindBestMatch(endpoint.Description, sapPool, endpointText, endpointThreshold); match.Found {
			link.SAPID = sapPool[match.Index].ID
			link.Aligned = true
			link.Score = match.Score
		}

		reportPool := endpointPool(reported, endpoint.Type)
		if match := similarity.FindBestMatch(endpoint.Description, reportPool, endpointText, endpointThreshold); match.Found {
			link.ReportID = reportPool[match.Index].ID
		}

		links = append(links, link)
	}
	return links
}

func endpointPool(candidates []bundle.Endpoint, kind bundle.EndpointType) []bundle.Endpoint {
	pool := make([]bundle.Endpoint, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ID == "" || strings.TrimSpace(candidate.Description) == "" {
			continue
		}
		if candidate.Type == kind {
			pool = append(pool, candidate)
		}
	}
	return pool
}

func endpointText(e bundle.Endpoint) string { return e.Description }

// MapDoses aligns brochure dose statements with protocol treatment arms.
// Both sides are normalized (strength notation, route abbreviations,
// frequency shorthand) before similarity scoring.
func MapDoses(doses []bundle.Dose, arms []bundle.TreatmentArm) []DoseLink {
	pool := make([]bundle.TreatmentArm, 0, len(arms))
	for _, arm := range arms {
		if arm.ID == "" || strings.TrimSpace(arm.Dose) == "" {
			continue
		}
		pool = append(pool, arm)
	}
	links := make([]DoseLink, 0, len(doses))
	for _, dose := range doses {
		if dose.ID == "" || strings.TrimSpace(dose.Text) == "" {
			continue
		}
		link := DoseLink{BrochureID: dose.ID}
		match := similarity.FindBestMatch(NormalizeDose(dose.Text), pool, func(a bundle.TreatmentArm) string {
			return NormalizeDose(a.Dose)
		}, doseThreshold)
		if match.Found {
			link.ArmID = pool[match.Index].ID
			link.Aligned = true
			link.Score = match.Score
		}
		links = append(links, link)
	}
	return links
}
