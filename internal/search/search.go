package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDocument ResultType = "document"
	ResultBlock    ResultType = "block"
	ResultIssue    ResultType = "issue"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	DocumentID string     `json:"documentId,omitempty"`
	ProjectID  string     `json:"projectId"`
	Severity   string     `json:"severity,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text            string
	FilterType      ResultType // empty = all types
	FilterProjectID string
	Limit           int
	Offset          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	DocType   string `json:"docType"`
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
}

// BlockRecord is the data we index for a content block.
type BlockRecord struct {
	ID         string `json:"id"`
	Body       string `json:"body"`
	DocumentID string `json:"documentId"`
	ProjectID  string `json:"projectId"`
}

// IssueRecord is the data we index for a validation issue. Issues are
// re-indexed after every validation run; the run id keeps entries from
// different runs distinct.
type IssueRecord struct {
	ID        string `json:"id"`
	RunID     string `json:"runId"`
	Code      string `json:"code"`
	Severity  string `json:"severity"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	ProjectID string `json:"projectId"`
}
