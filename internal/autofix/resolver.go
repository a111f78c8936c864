// Package autofix applies the deterministic block patches carried by
// auto-fixable issue suggestions. It owns selection and ordering semantics
// only; the actual write goes through a BlockUpdater collaborator.
package autofix

import (
	"context"
	"fmt"

	"dossier/api/internal/rules"
)

// DefaultStrategy is used when the caller does not name one. A strategy
// picks which of an issue's suggestions gets applied. The named strategies
// do not differ yet: every one applies the first auto-fixable suggestion,
// and the set exists so unknown names are rejected up front instead of
// silently behaving like "balanced".
const DefaultStrategy = "balanced"

var knownStrategies = map[string]struct{}{
	"balanced":     {},
	"conservative": {},
	"aggressive":   {},
}

// ValidStrategy reports whether name is a known strategy. The empty string
// is valid and resolves to DefaultStrategy.
func ValidStrategy(name string) bool {
	if name == "" {
		return true
	}
	_, ok := knownStrategies[name]
	return ok
}

// BlockUpdater is the document-store operation the resolver delegates
// writes to.
type BlockUpdater interface {
	UpdateBlock(ctx context.Context, documentID, blockID, newText string) error
}

// Status of one selected issue after a resolve pass.
type Status string

const (
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected" // not auto-fixable, or unknown issue id
	StatusFailed   Status = "failed"   // the block update errored
)

// Result is the per-issue outcome of a resolve pass.
type Result struct {
	IssueID      string `json:"issueId"`
	SuggestionID string `json:"suggestionId,omitempty"`
	Status       Status `json:"status"`
	Reason       string `json:"reason,omitempty"`
}

// Outcome summarizes one resolve pass. FixedCount counts issues whose
// every patch applied cleanly.
type Outcome struct {
	FixedCount int      `json:"fixedCount"`
	Results    []Result `json:"results"`
}

// Resolve applies the auto-fixable suggestions of the selected issues, in
// the caller's selection order. Application is not transactional: a failed
// patch leaves earlier patches in place, and later patches to the same
// block overwrite earlier ones. Every selected id gets exactly one Result.
// An unknown strategy rejects the whole selection without touching blocks.
func Resolve(ctx context.Context, updater BlockUpdater, issues []rules.Issue, selectedIDs []string, strategy string) Outcome {
	if !ValidStrategy(strategy) {
		outcome := Outcome{Results: make([]Result, 0, len(selectedIDs))}
		for _, id := range selectedIDs {
			outcome.Results = append(outcome.Results, Result{
				IssueID: id,
				Status:  StatusRejected,
				Reason:  fmt.Sprintf("unknown strategy %q", strategy),
			})
		}
		return outcome
	}
	byID := make(map[string]rules.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	outcome := Outcome{Results: make([]Result, 0, len(selectedIDs))}
	for _, id := range selectedIDs {
		issue, ok := byID[id]
		if !ok {
			outcome.Results = append(outcome.Results, Result{
				IssueID: id,
				Status:  StatusRejected,
				Reason:  "unknown issue id",
			})
			continue
		}
		suggestion, ok := pickSuggestion(issue)
		if !ok {
			outcome.Results = append(outcome.Results, Result{
				IssueID: id,
				Status:  StatusRejected,
				Reason:  "issue is not auto-fixable",
			})
			continue
		}

		result := Result{IssueID: id, SuggestionID: suggestion.ID, Status: StatusApplied}
		for _, patch := range suggestion.Patches {
			if err := updater.UpdateBlock(ctx, patch.DocumentID, patch.BlockID, patch.NewText); err != nil {
				result.Status = StatusFailed
				result.Reason = fmt.Sprintf("update block %s: %v", patch.BlockID, err)
				break
			}
		}
		if result.Status == StatusApplied {
			outcome.FixedCount++
		}
		outcome.Results = append(outcome.Results, result)
	}
	return outcome
}

// pickSuggestion selects the issue's first auto-fixable suggestion. When
// strategies grow divergent selection policies this is where they branch.
func pickSuggestion(issue rules.Issue) (rules.Suggestion, bool) {
	for _, s := range issue.Suggestions {
		if s.AutoFixable {
			return s, true
		}
	}
	return rules.Suggestion{}, false
}
