package rules

import (
	"fmt"
	"sort"

	"dossier/api/internal/bundle"
)

// ruleVisitWindows checks the protocol visit schedule: windows must be
// non-negative, and the windows of consecutive visits (sorted by day) must
// not overlap, or a subject could be in two visits at once.
func ruleVisitWindows(rc *Context) []Issue {
	if rc.Bundle.Protocol == nil || len(rc.Bundle.Protocol.Visits) == 0 {
		return nil
	}
	var issues []Issue
	visits := make([]bundle.Visit, len(rc.Bundle.Protocol.Visits))
	copy(visits, rc.Bundle.Protocol.Visits)
	sort.SliceStable(visits, func(i, j int) bool { return visits[i].Day < visits[j].Day })

	for _, visit := range visits {
		if visit.WindowBefore >= 0 && visit.WindowAfter >= 0 {
			continue
		}
		issues = append(issues, Issue{
			Code:     "VISIT_WINDOW_INVALID",
			Severity: SeverityError,
			Category: CategorySchedule,
			Message:  fmt.Sprintf("Visit %q has a negative window (before %d, after %d days)", visit.Name, visit.WindowBefore, visit.WindowAfter),
			Details:  map[string]any{"visitId": visit.ID, "windowBefore": visit.WindowBefore, "windowAfter": visit.WindowAfter},
			Locations: []Location{
				{DocumentType: bundle.DocProtocol, SectionID: visit.SectionID, BlockID: visit.BlockID},
			},
		})
	}

	for i := 1; i < len(visits); i++ {
		prev, cur := visits[i-1], visits[i]
		if prev.WindowAfter < 0 || cur.WindowBefore < 0 {
			continue // already reported above
		}
		if prev.Day+prev.WindowAfter < cur.Day-cur.WindowBefore {
			continue
		}
		issues = append(issues, Issue{
			Code:     "VISIT_WINDOW_INVALID",
			Severity: SeverityError,
			Category: CategorySchedule,
			Message:  fmt.Sprintf("Visit windows of %q (day %d) and %q (day %d) overlap", prev.Name, prev.Day, cur.Name, cur.Day),
			Details:  map[string]any{"firstVisitId": prev.ID, "secondVisitId": cur.ID},
			Locations: []Location{
				{DocumentType: bundle.DocProtocol, SectionID: prev.SectionID, BlockID: prev.BlockID},
				{DocumentType: bundle.DocProtocol, SectionID: cur.SectionID, BlockID: cur.BlockID},
			},
		})
	}
	return issues
}
