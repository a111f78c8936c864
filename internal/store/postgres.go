package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dossier/api/internal/bundle"
)

// ErrNotFound is returned when a lookup matches no row. Callers map it to
// a 404 at the API boundary.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sponsor, compound, phase, created_at, updated_at
		FROM projects WHERE id=$1
	`, projectID).Scan(&p.ID, &p.Name, &p.Sponsor, &p.Compound, &p.Phase, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, projectID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, doc_type, title, status, version, created_at, updated_at
		FROM documents
		WHERE project_id=$1
		ORDER BY doc_type
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Type, &d.Title, &d.Status, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (DocumentDetail, error) {
	var detail DocumentDetail
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, doc_type, title, status, version, created_at, updated_at
		FROM documents WHERE id=$1
	`, documentID).Scan(&detail.ID, &detail.ProjectID, &detail.Type, &detail.Title, &detail.Status, &detail.Version, &detail.CreatedAt, &detail.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentDetail{}, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return DocumentDetail{}, fmt.Errorf("get document: %w", err)
	}

	sections, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, title, sort_order FROM sections WHERE document_id=$1 ORDER BY sort_order, id
	`, documentID)
	if err != nil {
		return DocumentDetail{}, fmt.Errorf("list sections: %w", err)
	}
	defer sections.Close()
	for sections.Next() {
		var sec Section
		if err := sections.Scan(&sec.ID, &sec.DocumentID, &sec.Title, &sec.SortOrder); err != nil {
			return DocumentDetail{}, fmt.Errorf("scan section: %w", err)
		}
		detail.Sections = append(detail.Sections, sec)
	}
	if err := sections.Err(); err != nil {
		return DocumentDetail{}, err
	}

	blocks, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, COALESCE(section_id::text, ''), kind, body, sort_order, updated_at
		FROM blocks WHERE document_id=$1 ORDER BY sort_order, id
	`, documentID)
	if err != nil {
		return DocumentDetail{}, fmt.Errorf("list blocks: %w", err)
	}
	defer blocks.Close()
	for blocks.Next() {
		var b Block
		if err := blocks.Scan(&b.ID, &b.DocumentID, &b.SectionID, &b.Kind, &b.Body, &b.SortOrder, &b.UpdatedAt); err != nil {
			return DocumentDetail{}, fmt.Errorf("scan block: %w", err)
		}
		detail.Blocks = append(detail.Blocks, b)
	}
	return detail, blocks.Err()
}

// UpdateBlock rewrites one block's body. The document id guards against a
// patch landing on a block that moved to another document.
func (s *PostgresStore) UpdateBlock(ctx context.Context, documentID, blockID, newText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE blocks SET body=$3, updated_at=NOW() WHERE document_id=$1 AND id=$2
	`, documentID, blockID, newText)
	if err != nil {
		return fmt.Errorf("update block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update block rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("block %s in document %s: %w", blockID, documentID, ErrNotFound)
	}
	return nil
}

// LoadBundle assembles the validation bundle for a project. When ids names
// a document for a type, that exact document is loaded and must be the
// project's current document of that type; types without an id fall back
// to whatever the project currently has, and stay absent when the project
// has none.
func (s *PostgresStore) LoadBundle(ctx context.Context, projectID string, ids map[bundle.DocumentType]string) (*bundle.Bundle, error) {
	docs, err := s.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byType := make(map[bundle.DocumentType]string, len(docs))
	for _, doc := range docs {
		byType[bundle.DocumentType(doc.Type)] = doc.ID
	}
	for docType, id := range ids {
		if id == "" {
			continue
		}
		if current, ok := byType[docType]; !ok || current != id {
			return nil, fmt.Errorf("document %s is not the project's %s: %w", id, docType, ErrNotFound)
		}
	}

	b := &bundle.Bundle{ProjectID: projectID}
	if id, ok := byType[bundle.DocBrochure]; ok {
		if b.Brochure, err = s.loadBrochure(ctx, id); err != nil {
			return nil, err
		}
	}
	if id, ok := byType[bundle.DocProtocol]; ok {
		if b.Protocol, err = s.loadProtocol(ctx, id); err != nil {
			return nil, err
		}
	}
	if id, ok := byType[bundle.DocSAP]; ok {
		if b.SAP, err = s.loadSAP(ctx, id); err != nil {
			return nil, err
		}
	}
	if id, ok := byType[bundle.DocConsent]; ok {
		if b.Consent, err = s.loadConsent(ctx, id); err != nil {
			return nil, err
		}
	}
	if id, ok := byType[bundle.DocReport]; ok {
		if b.Report, err = s.loadReport(ctx, id); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (s *PostgresStore) loadBrochure(ctx context.Context, documentID string) (*bundle.Brochure, error) {
	objectives, err := s.loadObjectives(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doses, err := s.loadDoses(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &bundle.Brochure{DocumentID: documentID, Objectives: objectives, Doses: doses}, nil
}

func (s *PostgresStore) loadProtocol(ctx context.Context, documentID string) (*bundle.Protocol, error) {
	objectives, err := s.loadObjectives(ctx, documentID)
	if err != nil {
		return nil, err
	}
	endpoints, err := s.loadEndpoints(ctx, documentID)
	if err != nil {
		return nil, err
	}
	arms, err := s.loadArms(ctx, documentID)
	if err != nil {
		return nil, err
	}
	visits, err := s.loadVisits(ctx, documentID)
	if err != nil {
		return nil, err
	}
	populations, err := s.loadPopulations(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &bundle.Protocol{
		DocumentID:  documentID,
		Objectives:  objectives,
		Endpoints:   endpoints,
		Arms:        arms,
		Visits:      visits,
		Populations: populations,
	}, nil
}

func (s *PostgresStore) loadSAP(ctx context.Context, documentID string) (*bundle.SAP, error) {
	endpoints, err := s.loadEndpoints(ctx, documentID)
	if err != nil {
		return nil, err
	}
	tests, err := s.loadTests(ctx, documentID)
	if err != nil {
		return nil, err
	}
	populations, err := s.loadPopulations(ctx, documentID)
	if err != nil {
		return nil, err
	}
	var strategy string
	err = s.db.QueryRowContext(ctx, `SELECT multiplicity_strategy FROM sap_details WHERE document_id=$1`, documentID).Scan(&strategy)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load sap details: %w", err)
	}
	return &bundle.SAP{
		DocumentID:           documentID,
		Endpoints:            endpoints,
		Tests:                tests,
		Populations:          populations,
		MultiplicityStrategy: strategy,
	}, nil
}

func (s *PostgresStore) loadConsent(ctx context.Context, documentID string) (*bundle.Consent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(section_id::text, ''), body
		FROM blocks WHERE document_id=$1 ORDER BY sort_order, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("load consent blocks: %w", err)
	}
	defer rows.Close()

	consent := &bundle.Consent{DocumentID: documentID}
	for rows.Next() {
		var block bundle.TextBlock
		if err := rows.Scan(&block.ID, &block.SectionID, &block.Text); err != nil {
			return nil, fmt.Errorf("scan consent block: %w", err)
		}
		consent.Blocks = append(consent.Blocks, block)
	}
	return consent, rows.Err()
}

func (s *PostgresStore) loadReport(ctx context.Context, documentID string) (*bundle.Report, error) {
	endpoints, err := s.loadEndpoints(ctx, documentID)
	if err != nil {
		return nil, err
	}
	populations, err := s.loadPopulations(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &bundle.Report{DocumentID: documentID, Endpoints: endpoints, Populations: populations}, nil
}

func (s *PostgresStore) loadObjectives(ctx context.Context, documentID string) ([]bundle.Objective, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, objective_type, description, COALESCE(section_id::text, ''), COALESCE(block_id::text, '')
		FROM objectives WHERE document_id=$1 ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("load objectives: %w", err)
	}
	defer rows.Close()

	var objectives []bundle.Objective
	for rows.Next() {
		var o bundle.Objective
		if err := rows.Scan(&o.ID, &o.Type, &o.Description, &o.SectionID, &o.BlockID); err != nil {
			return nil, fmt.Errorf("scan objective: %w", err)
		}
		objectives = append(objectives, o)
	}
	return objectives, rows.Err()
}

func (s *PostgresStore) loadEndpoints(ctx context.Context, documentID string) ([]bundle.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint_type, description, data_type, COALESCE(section_id::text, ''), COALESCE(block_id::text, '')
		FROM endpoints WHERE document_id=$1 ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("load endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []bundle.Endpoint
	for rows.Next() {
		var e bundle.Endpoint
		if err := rows.Scan(&e.ID, &e.Type, &e.Description, &e.DataType, &e.SectionID, &e.BlockID); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

func (s *PostgresStore) loadDoses(ctx context.Context, documentID string) ([]bundle.Dose, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dose_text, COALESCE(section_id::text, ''), COALESCE(block_id::text, '')
		FROM doses WHERE document_id=$1 ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("load doses: %w", err)
	}
	defer rows.Close()

	var doses []bundle.Dose
	for rows.Next() {
		var d bundle.Dose
		if err := rows.Scan(&d.ID, &d.Text, &d.SectionID, &d.BlockID); err != nil {
			return nil, fmt.Errorf("scan dose: %w", err)
		}
		doses = append(doses, d)
	}
	return doses, rows.Err()
}

func (s *PostgresStore) loadArms(ctx context.Context, documentID string) ([]bundle.TreatmentArm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, dose_text, COALESCE(section_id::text, ''), COALESCE(block_id::text, '')
		FROM treatment_arms WHERE document_id=$1 ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("load treatment arms: %w", err)
	}
	defer rows.Close()

	var arms []bundle.TreatmentArm
	for rows.Next() {
		var a bundle.TreatmentArm
		if err := rows.Scan(&a.ID, &a.Name, &a.Dose, &a.SectionID, &a.BlockID); err != nil {
			return nil, fmt.Errorf("scan treatment arm: %w", err)
		}
		arms = append(arms, a)
	}
	return arms, rows.Err()
}

func (s *PostgresStore) loadVisits(ctx context.Context, documentID string) ([]bundle.Visit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, visit_day, window_before, window_after, procedures, COALESCE(section_id::text, ''), COALESCE(block_id::text, '')
		FROM visits WHERE document_id=$1 ORDER BY visit_day, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("load visits: %w", err)
	}
	defer rows.Close()

	var visits []bundle.Visit
	for rows.Next() {
		var v bundle.Visit
		var proceduresRaw []byte
		if err := rows.Scan(&v.ID, &v.Name, &v.Day, &v.WindowBefore, &v.WindowAfter, &proceduresRaw, &v.SectionID, &v.BlockID); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		_ = json.Unmarshal(proceduresRaw, &v.Procedures)
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (s *PostgresStore) loadPopulations(ctx context.Context, documentID string) ([]bundle.Population, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, description FROM populations WHERE document_id=$1 ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("load populations: %w", err)
	}
	defer rows.Close()

	var populations []bundle.Population
	for rows.Next() {
		var p bundle.Population
		if err := rows.Scan(&p.ID, &p.Code, &p.Description); err != nil {
			return nil, fmt.Errorf("scan population: %w", err)
		}
		populations = append(populations, p)
	}
	return populations, rows.Err()
}

func (s *PostgresStore) loadTests(ctx context.Context, documentID string) ([]bundle.PlannedTest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint_id, test_name, population, COALESCE(section_id::text, ''), COALESCE(block_id::text, '')
		FROM planned_tests WHERE document_id=$1 ORDER BY id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("load planned tests: %w", err)
	}
	defer rows.Close()

	var tests []bundle.PlannedTest
	for rows.Next() {
		var t bundle.PlannedTest
		if err := rows.Scan(&t.ID, &t.EndpointID, &t.TestName, &t.Population, &t.SectionID, &t.BlockID); err != nil {
			return nil, fmt.Errorf("scan planned test: %w", err)
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (s *PostgresStore) InsertValidationRun(ctx context.Context, run ValidationRun) (ValidationRun, error) {
	encodedIDs, err := json.Marshal(run.DocumentIDs)
	if err != nil {
		return ValidationRun{}, fmt.Errorf("encode document ids: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO validation_runs (project_id, bundle_hash, document_ids, summary, issues, failures)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, run.ProjectID, run.BundleHash, string(encodedIDs),
		jsonOrDefault(run.Summary, "{}"), jsonOrDefault(run.Issues, "[]"), jsonOrDefault(run.Failures, "[]")).
		Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return ValidationRun{}, fmt.Errorf("insert validation run: %w", err)
	}
	return run, nil
}

// jsonOrDefault guards the JSONB NOT NULL columns: a run with no failures
// carries a nil RawMessage, which would otherwise bind as the empty string
// and be rejected by Postgres.
func jsonOrDefault(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}

func (s *PostgresStore) GetValidationRun(ctx context.Context, runID string) (ValidationRun, error) {
	var run ValidationRun
	var idsRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, bundle_hash, document_ids, summary, issues, failures, created_at
		FROM validation_runs WHERE id=$1
	`, runID).Scan(&run.ID, &run.ProjectID, &run.BundleHash, &idsRaw, &run.Summary, &run.Issues, &run.Failures, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ValidationRun{}, fmt.Errorf("validation run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return ValidationRun{}, fmt.Errorf("get validation run: %w", err)
	}
	_ = json.Unmarshal(idsRaw, &run.DocumentIDs)
	return run, nil
}

func (s *PostgresStore) ListValidationRuns(ctx context.Context, projectID string, limit int) ([]ValidationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, bundle_hash, document_ids, summary, issues, failures, created_at
		FROM validation_runs
		WHERE project_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}
	defer rows.Close()

	runs := []ValidationRun{}
	for rows.Next() {
		var run ValidationRun
		var idsRaw []byte
		if err := rows.Scan(&run.ID, &run.ProjectID, &run.BundleHash, &idsRaw, &run.Summary, &run.Issues, &run.Failures, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan validation run: %w", err)
		}
		_ = json.Unmarshal(idsRaw, &run.DocumentIDs)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
