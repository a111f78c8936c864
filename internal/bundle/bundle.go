// Package bundle defines the in-memory document bundle a validation run
// operates on: one optional, typed slot per regulatory document. Slots are
// nil when the project does not yet have that document; consumers must
// treat absence as "not applicable", never as an error.
package bundle

// DocumentType identifies a regulatory document kind within a package.
type DocumentType string

const (
	DocBrochure DocumentType = "brochure"
	DocProtocol DocumentType = "protocol"
	DocSAP      DocumentType = "sap"
	DocConsent  DocumentType = "consent"
	DocReport   DocumentType = "report"
)

// ObjectiveType classifies a study objective.
type ObjectiveType string

const (
	ObjectivePrimary     ObjectiveType = "primary"
	ObjectiveSecondary   ObjectiveType = "secondary"
	ObjectiveExploratory ObjectiveType = "exploratory"
)

// EndpointType classifies an endpoint as primary or secondary.
type EndpointType string

const (
	EndpointPrimary   EndpointType = "primary"
	EndpointSecondary EndpointType = "secondary"
)

// DataType is the statistical data type of an endpoint, used to decide
// which analysis tests are compatible with it.
type DataType string

const (
	DataContinuous  DataType = "continuous"
	DataBinary      DataType = "binary"
	DataTimeToEvent DataType = "time-to-event"
	DataOrdinal     DataType = "ordinal"
	DataCount       DataType = "count"
)

// Objective is a study objective as stated in a document.
type Objective struct {
	ID          string
	Type        ObjectiveType
	Description string
	SectionID   string
	BlockID     string
}

// Endpoint is a declared, analyzed, or reported study endpoint.
type Endpoint struct {
	ID          string
	Type        EndpointType
	Description string
	DataType    DataType
	SectionID   string
	BlockID     string
}

// Dose is a dosing statement in the brochure (free text, e.g.
// "10 mg / oral / once daily").
type Dose struct {
	ID        string
	Text      string
	SectionID string
	BlockID   string
}

// TreatmentArm is a protocol treatment arm with its dosing regimen.
type TreatmentArm struct {
	ID        string
	Name      string
	Dose      string
	SectionID string
	BlockID   string
}

// Visit is one entry of the protocol visit schedule. Windows are in days
// relative to the nominal visit day.
type Visit struct {
	ID           string
	Name         string
	Day          int
	WindowBefore int
	WindowAfter  int
	Procedures   []string
	SectionID    string
	BlockID      string
}

// Population is a declared analysis population (FAS, PP, SAF, ...).
type Population struct {
	ID          string
	Code        string
	Description string
}

// PlannedTest is a statistical test the SAP declares for an endpoint.
type PlannedTest struct {
	ID         string
	EndpointID string
	TestName   string
	Population string
	SectionID  string
	BlockID    string
}

// TextBlock is a free-text content block, used for documents whose rules
// operate on prose rather than structured entities (consent form).
type TextBlock struct {
	ID        string
	SectionID string
	Text      string
}

// Brochure is the investigator brochure slot.
type Brochure struct {
	DocumentID string
	Objectives []Objective
	Doses      []Dose
}

// Protocol is the study protocol slot.
type Protocol struct {
	DocumentID  string
	Objectives  []Objective
	Endpoints   []Endpoint
	Arms        []TreatmentArm
	Visits      []Visit
	Populations []Population
}

// SAP is the statistical analysis plan slot.
type SAP struct {
	DocumentID           string
	Endpoints            []Endpoint
	Tests                []PlannedTest
	Populations          []Population
	MultiplicityStrategy string
}

// Consent is the informed consent form slot.
type Consent struct {
	DocumentID string
	Blocks     []TextBlock
}

// Report is the clinical study report slot.
type Report struct {
	DocumentID  string
	Endpoints   []Endpoint
	Populations []Population
}

// Bundle is the set of a project's currently available documents. Any slot
// may be nil.
type Bundle struct {
	ProjectID string
	Brochure  *Brochure
	Protocol  *Protocol
	SAP       *SAP
	Consent   *Consent
	Report    *Report
}

// IsEmpty reports whether no document slot is populated.
func (b *Bundle) IsEmpty() bool {
	if b == nil {
		return true
	}
	return b.Brochure == nil && b.Protocol == nil && b.SAP == nil && b.Consent == nil && b.Report == nil
}

// DocumentIDs returns the ids of the present documents keyed by type.
func (b *Bundle) DocumentIDs() map[DocumentType]string {
	ids := make(map[DocumentType]string)
	if b == nil {
		return ids
	}
	if b.Brochure != nil {
		ids[DocBrochure] = b.Brochure.DocumentID
	}
	if b.Protocol != nil {
		ids[DocProtocol] = b.Protocol.DocumentID
	}
	if b.SAP != nil {
		ids[DocSAP] = b.SAP.DocumentID
	}
	if b.Consent != nil {
		ids[DocConsent] = b.Consent.DocumentID
	}
	if b.Report != nil {
		ids[DocReport] = b.Report.DocumentID
	}
	return ids
}
