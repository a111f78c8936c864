package store

import (
	"encoding/json"
	"time"
)

type Project struct {
	ID        string
	Name      string
	Sponsor   string
	Compound  string
	Phase     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Document struct {
	ID        string
	ProjectID string
	Type      string
	Title     string
	Status    string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Section struct {
	ID         string
	DocumentID string
	Title      string
	SortOrder  int
}

type Block struct {
	ID         string
	DocumentID string
	SectionID  string
	Kind       string
	Body       string
	SortOrder  int
	UpdatedAt  time.Time
}

// DocumentDetail is a document with its ordered sections and blocks, as
// returned by the single-document endpoint.
type DocumentDetail struct {
	Document
	Sections []Section
	Blocks   []Block
}

// ValidationRun is one persisted validation pass. Summary, Issues and
// Failures carry the JSON the rule engine produced; the store does not
// interpret them.
type ValidationRun struct {
	ID          string
	ProjectID   string
	BundleHash  string
	DocumentIDs map[string]string
	Summary     json.RawMessage
	Issues      json.RawMessage
	Failures    json.RawMessage
	CreatedAt   time.Time
}
