package rules

import "dossier/api/internal/bundle"

// Severity ranks how serious a cross-document inconsistency is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Category groups rules by the document pair they inspect.
type Category string

const (
	CategoryBrochureProtocol Category = "brochure-protocol"
	CategoryProtocolSAP      Category = "protocol-sap"
	CategoryProtocolConsent  Category = "protocol-consent"
	CategoryProtocolReport   Category = "protocol-report"
	CategoryGlobal           Category = "global"
	CategorySchedule         Category = "schedule"
)

// Categories lists every rule category in registry order.
var Categories = []Category{
	CategoryBrochureProtocol,
	CategoryProtocolSAP,
	CategoryProtocolConsent,
	CategoryProtocolReport,
	CategoryGlobal,
	CategorySchedule,
}

// Location points at the place in a document an issue refers to.
type Location struct {
	DocumentType bundle.DocumentType `json:"documentType"`
	SectionID    string              `json:"sectionId,omitempty"`
	BlockID      string              `json:"blockId,omitempty"`
}

// Patch is a deterministic block-level text replacement.
type Patch struct {
	DocumentID string `json:"documentId"`
	BlockID    string `json:"blockId"`
	NewText    string `json:"newText"`
}

// Suggestion is a proposed remediation for an issue. Only suggestions with
// AutoFixable set may be applied without human judgment.
type Suggestion struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	AutoFixable bool    `json:"autoFixable"`
	Patches     []Patch `json:"patches,omitempty"`
}

// Issue is a structured cross-document finding.
type Issue struct {
	ID          string         `json:"id"`
	Code        string         `json:"code"`
	Severity    Severity       `json:"severity"`
	Category    Category       `json:"category"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Locations   []Location     `json:"locations"`
	Suggestions []Suggestion   `json:"suggestions,omitempty"`
}

// Summary tallies issues by severity and category for one run.
type Summary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"bySeverity"`
	ByCategory map[Category]int `json:"byCategory"`
}

// NewSummary returns a summary with every severity and category present at
// zero, so callers always see a complete tally even for empty runs.
func NewSummary() Summary {
	s := Summary{
		BySeverity: make(map[Severity]int, 4),
		ByCategory: make(map[Category]int, len(Categories)),
	}
	for _, sev := range []Severity{SeverityCritical, SeverityError, SeverityWarning, SeverityInfo} {
		s.BySeverity[sev] = 0
	}
	for _, cat := range Categories {
		s.ByCategory[cat] = 0
	}
	return s
}

func (s *Summary) add(issue Issue) {
	s.Total++
	s.BySeverity[issue.Severity]++
	s.ByCategory[issue.Category]++
}
