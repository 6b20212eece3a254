package validate

import (
	"fmt"
	"math"

	"github.com/clinforge-ai/platform/pkg/dataset"
)

const DefaultTolerance = 1e-8

// Validator runs the cross-dataset checks. It never mutates its input; it
// only reports. All checks are independent, and the emitted report is
// sorted so that identical input always produces an identical report.
type Validator struct {
	tolerance float64
}

func NewValidator(tolerance float64) (*Validator, error) {
	if tolerance < 0 {
		return nil, fmt.Errorf("numeric tolerance must be >= 0, got %g", tolerance)
	}
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}
	return &Validator{tolerance: tolerance}, nil
}

func (v *Validator) Validate(ds *dataset.Dataset, loadIssues ...Issue) *Report {
	report := NewReport(ds.StudyID)
	for _, issue := range loadIssues {
		report.Add(issue)
	}

	v.checkReferential(ds, report)
	v.checkRequiredFields(ds, report)
	v.checkDuplicateKeys(ds, report)
	v.checkDateOrder(ds, report)
	v.checkDerivedValues(ds, report)
	v.checkFlagConsistency(ds, report)

	report.Sort()
	return report
}

// Tolerance is the mismatch threshold applied by the derived-value check.
func (v *Validator) Tolerance() float64 {
	return v.tolerance
}

func (v *Validator) checkReferential(ds *dataset.Dataset, report *Report) {
	for _, orphan := range ds.Orphans() {
		report.Add(Issue{
			Category:  CategoryReferential,
			Severity:  SeverityCritical,
			SubjectID: orphan.SubjectID,
			Variable:  orphan.ParamCode,
			Message:   fmt.Sprintf("measurement for parameter %s references unknown subject %q", orphan.ParamCode, orphan.SubjectID),
		})
	}
}

func (v *Validator) checkRequiredFields(ds *dataset.Dataset, report *Report) {
	for _, id := range ds.SubjectIDs() {
		subject, _ := ds.Subject(id)
		if subject.StudyID == "" {
			report.Add(Issue{
				Category:  CategoryMissingField,
				Severity:  SeverityCritical,
				SubjectID: id,
				Variable:  "STUDYID",
				Message:   "subject record is missing the study identifier",
			})
		}
		for _, m := range ds.MeasurementsFor(id) {
			if m.StudyID == "" {
				report.Add(Issue{
					Category:  CategoryMissingField,
					Severity:  SeverityCritical,
					SubjectID: id,
					Variable:  fmt.Sprintf("%s/STUDYID", m.ParamCode),
					Message:   fmt.Sprintf("measurement %s at visit %d is missing the study identifier", m.ParamCode, m.VisitNum),
				})
			}
		}
	}
	for _, orphan := range ds.Orphans() {
		if orphan.SubjectID == "" {
			report.Add(Issue{
				Category: CategoryMissingField,
				Severity: SeverityCritical,
				Variable: orphan.ParamCode,
				Message:  fmt.Sprintf("measurement %s at visit %d has no subject identifier", orphan.ParamCode, orphan.VisitNum),
			})
		}
	}
}

func (v *Validator) checkDuplicateKeys(ds *dataset.Dataset, report *Report) {
	type key struct {
		param string
		visit int
	}
	for _, id := range ds.SubjectIDs() {
		seen := make(map[key]int)
		for i, m := range ds.MeasurementsFor(id) {
			k := key{param: m.ParamCode, visit: m.VisitNum}
			if first, dup := seen[k]; dup {
				report.Add(Issue{
					Category:  CategoryDuplicateKey,
					Severity:  SeverityCritical,
					SubjectID: id,
					Variable:  m.ParamCode,
					Message:   fmt.Sprintf("duplicate key (%s, %s, visit %d): records %d and %d", id, m.ParamCode, m.VisitNum, first, i),
				})
				continue
			}
			seen[k] = i
		}
	}
}

func (v *Validator) checkDateOrder(ds *dataset.Dataset, report *Report) {
	for _, id := range ds.SubjectIDs() {
		subject, _ := ds.Subject(id)
		if subject.LastDoseDate.Before(subject.FirstDoseDate) {
			report.Add(Issue{
				Category:  CategoryDateOrder,
				Severity:  SeverityMajor,
				SubjectID: id,
				Variable:  "TRTEDT",
				Message: fmt.Sprintf("last-dose date %s precedes first-dose date %s",
					subject.LastDoseDate, subject.FirstDoseDate),
			})
		}
		for _, m := range ds.MeasurementsFor(id) {
			if m.CollectionDate.Before(subject.ConsentDate) {
				report.Add(Issue{
					Category:  CategoryDateOrder,
					Severity:  SeverityMajor,
					SubjectID: id,
					Variable:  m.ParamCode,
					Message: fmt.Sprintf("collection date %s for %s at visit %d precedes consent date %s",
						m.CollectionDate, m.ParamCode, m.VisitNum, subject.ConsentDate),
				})
			}
		}
	}
}

// checkDerivedValues recomputes change and percent-change from the stored
// value and baseline value, independently of the deriver, and flags any
// disagreement beyond tolerance.
func (v *Validator) checkDerivedValues(ds *dataset.Dataset, report *Report) {
	for _, id := range ds.SubjectIDs() {
		for _, m := range ds.MeasurementsFor(id) {
			value, numeric := m.Value.Float()
			if !numeric || m.BaselineValue == nil {
				continue
			}
			expected := value - *m.BaselineValue
			if m.Change != nil && math.Abs(*m.Change-expected) > v.tolerance {
				report.Add(Issue{
					Category:  CategoryCalcMismatch,
					Severity:  SeverityMajor,
					SubjectID: id,
					Variable:  fmt.Sprintf("%s/CHG", m.ParamCode),
					Message: fmt.Sprintf("stored change %g for %s at visit %d differs from recomputed %g",
						*m.Change, m.ParamCode, m.VisitNum, expected),
				})
			}
			if m.PercentChange != nil && *m.BaselineValue != 0 {
				expectedPct := expected / *m.BaselineValue * 100
				if math.Abs(*m.PercentChange-expectedPct) > v.tolerance {
					report.Add(Issue{
						Category:  CategoryCalcMismatch,
						Severity:  SeverityMajor,
						SubjectID: id,
						Variable:  fmt.Sprintf("%s/PCHG", m.ParamCode),
						Message: fmt.Sprintf("stored percent-change %g for %s at visit %d differs from recomputed %g",
							*m.PercentChange, m.ParamCode, m.VisitNum, expectedPct),
					})
				}
			}
		}
	}
}

// checkFlagConsistency enforces the one declared population invariant:
// per-protocol implies intent-to-treat. Violations are reported, never
// silently corrected.
func (v *Validator) checkFlagConsistency(ds *dataset.Dataset, report *Report) {
	for _, id := range ds.SubjectIDs() {
		subject, _ := ds.Subject(id)
		if subject.Flag(dataset.FlagPerProtocol) && !subject.Flag(dataset.FlagITT) {
			report.Add(Issue{
				Category:  CategoryFlag,
				Severity:  SeverityCritical,
				SubjectID: id,
				Variable:  dataset.FlagPerProtocol,
				Message:   "per-protocol flag is set while intent-to-treat flag is not",
			})
		}
	}
}
