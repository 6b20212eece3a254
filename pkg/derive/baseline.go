package derive

import (
	"github.com/clinforge-ai/platform/pkg/dataset"
)

// DeriveBaselineChanges assigns at most one baseline record per subject ×
// parameter and computes change / percent-change for the post-baseline
// records. The pass returns a new dataset; derived fields are cleared and
// recomputed from scratch, so re-running on unchanged input is
// bit-identical.
func DeriveBaselineChanges(ds *dataset.Dataset, cfg Config) *dataset.Dataset {
	out := ds.Clone()

	for _, id := range out.SubjectIDs() {
		subject, _ := out.Subject(id)
		records := out.MeasurementsFor(id)
		resetDerived(records)

		ref := referenceDate(subject, cfg.BaselineRule)
		if !ref.Known() {
			continue
		}

		for _, param := range out.ParamCodes(id) {
			deriveGroup(records, param, ref)
		}
		out.SetMeasurements(id, records)
	}
	return out
}

func resetDerived(records []dataset.MeasurementRecord) {
	for i := range records {
		records[i].Baseline = false
		records[i].BaselineValue = nil
		records[i].Change = nil
		records[i].PercentChange = nil
		records[i].ZeroBaseline = false
	}
}

func referenceDate(subject *dataset.SubjectRecord, rule BaselineRule) dataset.PartialDate {
	if rule == BaselineLastBeforeRandomization {
		return subject.RandomizationDate
	}
	return subject.FirstDoseDate
}

// deriveGroup handles one subject × parameter group. The baseline candidate
// is the last non-missing value on or before the reference date; two
// candidates on the same date resolve to the higher visit number, the
// later-entered assessment.
func deriveGroup(records []dataset.MeasurementRecord, param string, ref dataset.PartialDate) {
	selected := -1
	for i := range records {
		m := &records[i]
		if m.ParamCode != param {
			continue
		}
		if _, numeric := m.Value.Float(); !numeric {
			continue
		}
		if !m.CollectionDate.Known() || !m.CollectionDate.OnOrBefore(ref) {
			continue
		}
		if selected < 0 || laterCandidate(*m, records[selected]) {
			selected = i
		}
	}
	if selected < 0 {
		// No qualifying candidate: no baseline, changes stay null.
		return
	}

	records[selected].Baseline = true
	base, _ := records[selected].Value.Float()
	baseDate := records[selected].CollectionDate
	baseVisit := records[selected].VisitNum

	for i := range records {
		m := &records[i]
		if m.ParamCode != param {
			continue
		}
		baseCopy := base
		m.BaselineValue = &baseCopy
		if i == selected || !postBaseline(*m, baseDate, baseVisit) {
			continue
		}
		value, numeric := m.Value.Float()
		if !numeric {
			continue
		}
		change := value - base
		m.Change = &change
		if base == 0 {
			// Percent-change is undefined for a zero baseline; the sentinel
			// records that rather than dividing.
			m.ZeroBaseline = true
			continue
		}
		pct := change / base * 100
		m.PercentChange = &pct
	}
}

func laterCandidate(candidate, current dataset.MeasurementRecord) bool {
	if candidate.CollectionDate.After(current.CollectionDate) {
		return true
	}
	if current.CollectionDate.After(candidate.CollectionDate) {
		return false
	}
	return candidate.VisitNum > current.VisitNum
}

func postBaseline(m dataset.MeasurementRecord, baseDate dataset.PartialDate, baseVisit int) bool {
	if m.CollectionDate.After(baseDate) {
		return true
	}
	return m.CollectionDate.Equal(baseDate) && m.VisitNum > baseVisit
}
