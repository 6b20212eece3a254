package validate

import (
	"sort"
	"time"
)

type Category string

const (
	CategoryCalcMismatch Category = "calculation_mismatch"
	CategoryDateOrder    Category = "date_order"
	CategoryDuplicateKey Category = "duplicate_key"
	CategoryFlag         Category = "flag_consistency"
	CategoryMissingField Category = "missing_required_field"
	CategoryReferential  Category = "referential_integrity"
	CategoryStructural   Category = "structural"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// Issue is one validation finding. Issues are append-only: the validator
// creates them, reports collect them, nothing mutates them afterwards.
type Issue struct {
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	SubjectID string   `json:"subject_id,omitempty"`
	Variable  string   `json:"variable,omitempty"`
	Message   string   `json:"message"`
}

// Report is the ordered collection of findings for one study pass.
type Report struct {
	StudyID     string    `json:"study_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Issues      []Issue   `json:"issues"`
}

func NewReport(studyID string) *Report {
	return &Report{StudyID: studyID, GeneratedAt: time.Now().UTC()}
}

func (r *Report) Add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// Sort orders issues by category, then subject, then variable, then
// message. Full ordering keeps the report byte-stable across runs;
// nondeterministic ordering is treated as a defect.
func (r *Report) Sort() {
	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i], r.Issues[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.Variable != b.Variable {
			return a.Variable < b.Variable
		}
		return a.Message < b.Message
	})
}

func (r *Report) CountBySeverity(severity Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// Submittable reports whether the study has no critical findings. The
// caller enforces any export block; the report only classifies.
func (r *Report) Submittable() bool {
	return r.CountBySeverity(SeverityCritical) == 0
}
