package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"dossier/api/internal/autofix"
	"dossier/api/internal/bundle"
	"dossier/api/internal/export"
	"dossier/api/internal/history"
	"dossier/api/internal/rules"
	"dossier/api/internal/search"
	"dossier/api/internal/store"
	"dossier/api/internal/util"
	"dossier/api/internal/valcache"
)

// dataStore is the persistence surface the service depends on.
type dataStore interface {
	Ping(context.Context) error
	GetProject(context.Context, string) (store.Project, error)
	ListDocuments(context.Context, string) ([]store.Document, error)
	GetDocument(context.Context, string) (store.DocumentDetail, error)
	UpdateBlock(ctx context.Context, documentID, blockID, newText string) error
	LoadBundle(ctx context.Context, projectID string, ids map[bundle.DocumentType]string) (*bundle.Bundle, error)
	InsertValidationRun(context.Context, store.ValidationRun) (store.ValidationRun, error)
	GetValidationRun(context.Context, string) (store.ValidationRun, error)
	ListValidationRuns(ctx context.Context, projectID string, limit int) ([]store.ValidationRun, error)
}

// Deps carries the service's collaborators. Store and Engine are required;
// the rest are optional and degrade to "feature unavailable" when nil.
type Deps struct {
	Store     dataStore
	Engine    *rules.Engine
	Cache     *valcache.Cache
	Search    *search.Service
	History   *history.Service
	Artifacts ArtifactStore
}

// ArtifactStore uploads exported reports to object storage.
type ArtifactStore interface {
	PutReport(ctx context.Context, projectID, runID, filename, mimeType string, data []byte) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
}

type Service struct {
	store     dataStore
	engine    *rules.Engine
	cache     *valcache.Cache
	search    *search.Service
	history   *history.Service
	artifacts ArtifactStore
	exporter  *export.Service
}

func NewService(deps Deps) *Service {
	engine := deps.Engine
	if engine == nil {
		engine = rules.NewDefaultEngine()
	}
	svc := &Service{
		store:     deps.Store,
		engine:    engine,
		cache:     deps.Cache,
		search:    deps.Search,
		history:   deps.History,
		artifacts: deps.Artifacts,
	}
	svc.exporter = export.NewService(&exportStore{store: deps.Store})
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type ValidateRequest struct {
	ProjectID string            `json:"projectId"`
	Documents map[string]string `json:"documents"`
}

type ValidateResponse struct {
	RunID    string          `json:"runId"`
	Cached   bool            `json:"cached"`
	Summary  json.RawMessage `json:"summary"`
	Issues   json.RawMessage `json:"issues"`
	Failures json.RawMessage `json:"failures,omitempty"`
}

var validDocumentTypes = map[bundle.DocumentType]struct{}{
	bundle.DocBrochure: {},
	bundle.DocProtocol: {},
	bundle.DocSAP:      {},
	bundle.DocConsent:  {},
	bundle.DocReport:   {},
}

// Validate loads the project's document bundle, runs the full rule set
// against it and persists the outcome as a validation run. Results are
// cached by bundle content, so re-validating unchanged documents returns
// the prior run.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (ValidateResponse, error) {
	if req.ProjectID == "" {
		return ValidateResponse{}, domainError(http.StatusBadRequest, "INVALID_PROJECT", "projectId is required", nil)
	}
	if _, err := s.store.GetProject(ctx, req.ProjectID); err != nil {
		return ValidateResponse{}, fmt.Errorf("get project: %w", err)
	}

	ids := make(map[bundle.DocumentType]string, len(req.Documents))
	for key, docID := range req.Documents {
		docType := bundle.DocumentType(key)
		if _, ok := validDocumentTypes[docType]; !ok {
			return ValidateResponse{}, domainError(http.StatusBadRequest, "UNKNOWN_DOCUMENT_TYPE", fmt.Sprintf("unknown document type %q", key), nil)
		}
		if docID != "" {
			ids[docType] = docID
		}
	}

	docs, err := s.store.LoadBundle(ctx, req.ProjectID, ids)
	if err != nil {
		return ValidateResponse{}, fmt.Errorf("load bundle: %w", err)
	}

	bundleJSON, err := json.Marshal(docs)
	if err != nil {
		return ValidateResponse{}, fmt.Errorf("marshal bundle: %w", err)
	}
	bundleHash := util.ContentHash(bundleJSON)

	if s.cache != nil {
		if hit, ok, err := s.cache.Get(ctx, req.ProjectID, bundleHash); err != nil {
			log.Printf("app: validation cache get failed: %v", err)
		} else if ok {
			return ValidateResponse{
				RunID:    hit.RunID,
				Cached:   true,
				Summary:  hit.Summary,
				Issues:   hit.Issues,
				Failures: hit.Failures,
			}, nil
		}
	}

	result := s.engine.Run(rules.BuildContext(docs))

	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return ValidateResponse{}, fmt.Errorf("marshal summary: %w", err)
	}
	issuesJSON, err := json.Marshal(result.Issues)
	if err != nil {
		return ValidateResponse{}, fmt.Errorf("marshal issues: %w", err)
	}
	var failuresJSON json.RawMessage
	if len(result.Failures) > 0 {
		failuresJSON, err = json.Marshal(result.Failures)
		if err != nil {
			return ValidateResponse{}, fmt.Errorf("marshal failures: %w", err)
		}
	}

	run, err := s.store.InsertValidationRun(ctx, store.ValidationRun{
		ProjectID:   req.ProjectID,
		BundleHash:  bundleHash,
		DocumentIDs: documentIDStrings(docs),
		Summary:     summaryJSON,
		Issues:      issuesJSON,
		Failures:    failuresJSON,
	})
	if err != nil {
		return ValidateResponse{}, fmt.Errorf("insert validation run: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, req.ProjectID, bundleHash, valcache.CachedRun{
			RunID:    run.ID,
			Summary:  summaryJSON,
			Issues:   issuesJSON,
			Failures: failuresJSON,
		}); err != nil {
			log.Printf("app: validation cache put failed: %v", err)
		}
	}

	if s.search != nil && len(result.Issues) > 0 {
		s.search.IndexIssues(issueRecords(req.ProjectID, run.ID, result.Issues))
	}

	if s.history != nil {
		snap := history.Snapshot{
			RunID:      run.ID,
			BundleHash: bundleHash,
			Documents:  documentIDStrings(docs),
			Summary:    summaryJSON,
			Bundle:     bundleJSON,
		}
		message := fmt.Sprintf("validation run %s: %d issue(s)", run.ID, result.Summary.Total)
		if _, err := s.history.CommitSnapshot(req.ProjectID, snap, "validator", message); err != nil {
			log.Printf("app: history snapshot failed: %v", err)
		}
	}

	return ValidateResponse{
		RunID:    run.ID,
		Summary:  summaryJSON,
		Issues:   issuesJSON,
		Failures: failuresJSON,
	}, nil
}

type AutoFixRequest struct {
	ProjectID string   `json:"projectId"`
	RunID     string   `json:"runId"`
	IssueIDs  []string `json:"issueIds"`
	Strategy  string   `json:"strategy"`
}

type AutoFixResponse struct {
	FixedCount int              `json:"fixedCount"`
	Results    []autofix.Result `json:"results"`
}

// AutoFix re-resolves the issues of a persisted run and applies the
// selected auto-fixable suggestions through the document store.
func (s *Service) AutoFix(ctx context.Context, req AutoFixRequest) (AutoFixResponse, error) {
	if req.ProjectID == "" || req.RunID == "" {
		return AutoFixResponse{}, domainError(http.StatusBadRequest, "INVALID_REQUEST", "projectId and runId are required", nil)
	}
	if !autofix.ValidStrategy(req.Strategy) {
		return AutoFixResponse{}, domainError(http.StatusBadRequest, "UNKNOWN_STRATEGY", fmt.Sprintf("unknown auto-fix strategy %q", req.Strategy), nil)
	}

	run, err := s.store.GetValidationRun(ctx, req.RunID)
	if err != nil {
		return AutoFixResponse{}, fmt.Errorf("get validation run: %w", err)
	}
	if run.ProjectID != req.ProjectID {
		return AutoFixResponse{}, domainError(http.StatusNotFound, "RUN_NOT_FOUND", "validation run not found for project", nil)
	}

	var issues []rules.Issue
	if len(run.Issues) > 0 {
		if err := json.Unmarshal(run.Issues, &issues); err != nil {
			return AutoFixResponse{}, fmt.Errorf("decode run issues: %w", err)
		}
	}

	outcome := autofix.Resolve(ctx, s.store, issues, req.IssueIDs, req.Strategy)

	if outcome.FixedCount > 0 {
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, req.ProjectID); err != nil {
				log.Printf("app: cache invalidation failed: %v", err)
			}
		}
		if s.search != nil {
			if records := appliedBlockRecords(req.ProjectID, issues, outcome.Results); len(records) > 0 {
				s.search.IndexBlocks(records)
			}
		}
		s.commitPostFixSnapshot(ctx, req.ProjectID, run, outcome.FixedCount)
	}

	return AutoFixResponse{FixedCount: outcome.FixedCount, Results: outcome.Results}, nil
}

// commitPostFixSnapshot records the bundle state after an auto-fix batch.
// The bundle is reloaded because the fixes just changed block text.
func (s *Service) commitPostFixSnapshot(ctx context.Context, projectID string, run store.ValidationRun, fixedCount int) {
	if s.history == nil {
		return
	}
	ids := make(map[bundle.DocumentType]string, len(run.DocumentIDs))
	for key, docID := range run.DocumentIDs {
		ids[bundle.DocumentType(key)] = docID
	}
	docs, err := s.store.LoadBundle(ctx, projectID, ids)
	if err != nil {
		log.Printf("app: post-fix bundle reload failed: %v", err)
		return
	}
	bundleJSON, err := json.Marshal(docs)
	if err != nil {
		log.Printf("app: post-fix bundle marshal failed: %v", err)
		return
	}
	snap := history.Snapshot{
		RunID:      run.ID,
		BundleHash: util.ContentHash(bundleJSON),
		Documents:  documentIDStrings(docs),
		Bundle:     bundleJSON,
	}
	message := fmt.Sprintf("auto-fix after run %s: %d issue(s) fixed", run.ID, fixedCount)
	if _, err := s.history.CommitSnapshot(projectID, snap, "auto-fix", message); err != nil {
		log.Printf("app: post-fix snapshot failed: %v", err)
	}
}

func (s *Service) ListProjectDocuments(ctx context.Context, projectID string) ([]store.Document, error) {
	docs, err := s.store.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (store.DocumentDetail, error) {
	detail, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.DocumentDetail{}, fmt.Errorf("get document: %w", err)
	}
	return detail, nil
}

func (s *Service) ListRuns(ctx context.Context, projectID string, limit int) ([]store.ValidationRun, error) {
	runs, err := s.store.ListValidationRuns(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}
	return runs, nil
}

func (s *Service) Search(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	return s.search.Search(q), nil
}

func (s *Service) History(projectID string, limit int) ([]history.CommitInfo, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "History is not configured", nil)
	}
	commits, err := s.history.History(projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("project history: %w", err)
	}
	return commits, nil
}

// HistorySnapshot reads the bundle snapshot recorded at one audit commit.
func (s *Service) HistorySnapshot(projectID, hash string) (history.Snapshot, error) {
	if s.history == nil {
		return history.Snapshot{}, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "History is not configured", nil)
	}
	snap, err := s.history.GetSnapshotByHash(projectID, hash)
	if err != nil {
		return history.Snapshot{}, domainError(http.StatusNotFound, "SNAPSHOT_NOT_FOUND", fmt.Sprintf("no snapshot at %s", hash), nil)
	}
	return snap, nil
}

// ExportResult carries an exported report. When an artifact store is
// configured the report is uploaded and DownloadURL is set; otherwise the
// raw bytes are returned inline.
type ExportResult struct {
	Filename    string
	MimeType    string
	Data        []byte
	ArtifactKey string
	DownloadURL string
}

func (s *Service) ExportReport(ctx context.Context, projectID, runID, format string) (ExportResult, error) {
	var fmtType export.Format
	switch format {
	case "pdf", "":
		fmtType = export.FormatPDF
	case "docx":
		fmtType = export.FormatDOCX
	default:
		return ExportResult{}, domainError(http.StatusBadRequest, "INVALID_FORMAT", fmt.Sprintf("unsupported format %q", format), nil)
	}

	res, err := s.exporter.Export(ctx, export.Request{ProjectID: projectID, RunID: runID, Format: fmtType})
	if err != nil {
		return ExportResult{}, fmt.Errorf("export report: %w", err)
	}

	out := ExportResult{Filename: res.Filename, MimeType: res.MimeType, Data: res.Data}
	if s.artifacts != nil {
		key, err := s.artifacts.PutReport(ctx, projectID, runID, res.Filename, res.MimeType, res.Data)
		if err != nil {
			log.Printf("app: artifact upload failed: %v", err)
			return out, nil
		}
		out.ArtifactKey = key
		if url, err := s.artifacts.PresignedURL(ctx, key); err != nil {
			log.Printf("app: artifact presign failed: %v", err)
		} else {
			out.DownloadURL = url
		}
	}
	return out, nil
}

func documentIDStrings(docs *bundle.Bundle) map[string]string {
	out := make(map[string]string)
	for docType, id := range docs.DocumentIDs() {
		out[string(docType)] = id
	}
	return out
}

// appliedBlockRecords turns the patches of successfully fixed issues into
// block search records, so searches see the rewritten text without waiting
// for a full reindex. Last write per block wins, matching the resolver.
func appliedBlockRecords(projectID string, issues []rules.Issue, results []autofix.Result) []search.BlockRecord {
	byID := make(map[string]rules.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}
	latest := make(map[string]search.BlockRecord)
	var order []string
	for _, res := range results {
		if res.Status != autofix.StatusApplied {
			continue
		}
		for _, sug := range byID[res.IssueID].Suggestions {
			if sug.ID != res.SuggestionID {
				continue
			}
			for _, patch := range sug.Patches {
				if _, seen := latest[patch.BlockID]; !seen {
					order = append(order, patch.BlockID)
				}
				latest[patch.BlockID] = search.BlockRecord{
					ID:         patch.BlockID,
					Body:       patch.NewText,
					DocumentID: patch.DocumentID,
					ProjectID:  projectID,
				}
			}
		}
	}
	records := make([]search.BlockRecord, 0, len(order))
	for _, id := range order {
		records = append(records, latest[id])
	}
	return records
}

func issueRecords(projectID, runID string, issues []rules.Issue) []search.IssueRecord {
	records := make([]search.IssueRecord, 0, len(issues))
	for _, issue := range issues {
		records = append(records, search.IssueRecord{
			ID:        runID + "-" + issue.ID,
			RunID:     runID,
			Code:      issue.Code,
			Severity:  string(issue.Severity),
			Category:  string(issue.Category),
			Message:   issue.Message,
			ProjectID: projectID,
		})
	}
	return records
}

// exportStore adapts the service's data store to the export package.
type exportStore struct {
	store dataStore
}

func (e *exportStore) GetProject(ctx context.Context, projectID string) (export.ProjectInfo, error) {
	p, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return export.ProjectInfo{}, err
	}
	return export.ProjectInfo{ID: p.ID, Name: p.Name, Compound: p.Compound, Phase: p.Phase}, nil
}

func (e *exportStore) GetValidationRun(ctx context.Context, runID string) (export.RunInfo, error) {
	run, err := e.store.GetValidationRun(ctx, runID)
	if err != nil {
		return export.RunInfo{}, err
	}
	return toRunInfo(run), nil
}

func (e *exportStore) LatestValidationRun(ctx context.Context, projectID string) (export.RunInfo, error) {
	runs, err := e.store.ListValidationRuns(ctx, projectID, 1)
	if err != nil {
		return export.RunInfo{}, err
	}
	if len(runs) == 0 {
		return export.RunInfo{}, fmt.Errorf("project %s has no validation runs", projectID)
	}
	return toRunInfo(runs[0]), nil
}

func toRunInfo(run store.ValidationRun) export.RunInfo {
	return export.RunInfo{
		ID:        run.ID,
		ProjectID: run.ProjectID,
		Issues:    run.Issues,
		Failures:  run.Failures,
		CreatedAt: run.CreatedAt,
	}
}
