package shift

import (
	"fmt"
	"sort"

	"github.com/clinforge-ai/platform/pkg/dataset"
)

// Row is one cell of a shift table: subjects in a treatment group whose
// reference-range category moved from the baseline category to the worst
// post-baseline category for a parameter.
type Row struct {
	Treatment string                 `json:"treatment"`
	ParamCode string                 `json:"param_code"`
	From      dataset.RangeIndicator `json:"from"`
	To        dataset.RangeIndicator `json:"to"`
	Count     int                    `json:"count"`
}

// Reporter aggregates baseline-to-post-baseline category transitions. The
// severity order ranks categories worst-first; when a subject has several
// post-baseline categories, the worst one is reported. With the default
// order a subject showing both a high and a low resolves to high, a fixed
// convention that stays configurable rather than hard-coded.
type Reporter struct {
	order []dataset.RangeIndicator
	rank  map[dataset.RangeIndicator]int
}

func NewReporter(order []dataset.RangeIndicator) (*Reporter, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("shift severity order must not be empty")
	}
	rank := make(map[dataset.RangeIndicator]int, len(order)+1)
	for i, cat := range order {
		switch cat {
		case dataset.RangeHigh, dataset.RangeLow, dataset.RangeNormal:
		default:
			return nil, fmt.Errorf("unknown reference-range category %q", cat)
		}
		if _, dup := rank[cat]; dup {
			return nil, fmt.Errorf("duplicate category %q in severity order", cat)
		}
		rank[cat] = i
	}
	// A missing indicator is always the least abnormal outcome.
	rank[dataset.RangeMissing] = len(order)
	return &Reporter{order: order, rank: rank}, nil
}

// Build computes the shift rows for a derived dataset. A subject ×
// parameter group contributes only when it has both a baseline record and
// at least one post-baseline record. The aggregation is a pure reduction
// over per-subject results, so the loop is partitionable by subject.
func (r *Reporter) Build(ds *dataset.Dataset) []Row {
	type key struct {
		treatment string
		param     string
		from      dataset.RangeIndicator
		to        dataset.RangeIndicator
	}
	counts := make(map[key]int)

	for _, id := range ds.SubjectIDs() {
		subject, _ := ds.Subject(id)
		records := ds.MeasurementsFor(id)
		for _, param := range ds.ParamCodes(id) {
			from, to, ok := r.transition(records, param)
			if !ok {
				continue
			}
			counts[key{subject.TreatmentGroup(), param, from, to}]++
		}
	}

	rows := make([]Row, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, Row{Treatment: k.treatment, ParamCode: k.param, From: k.from, To: k.to, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Treatment != b.Treatment {
			return a.Treatment < b.Treatment
		}
		if a.ParamCode != b.ParamCode {
			return a.ParamCode < b.ParamCode
		}
		if a.From != b.From {
			return r.rank[a.From] < r.rank[b.From]
		}
		return r.rank[a.To] < r.rank[b.To]
	})
	return rows
}

func (r *Reporter) transition(records []dataset.MeasurementRecord, param string) (from, to dataset.RangeIndicator, ok bool) {
	var baseline *dataset.MeasurementRecord
	for i := range records {
		if records[i].ParamCode == param && records[i].Baseline {
			baseline = &records[i]
			break
		}
	}
	if baseline == nil {
		return "", "", false
	}

	worst := dataset.RangeMissing
	found := false
	for i := range records {
		m := &records[i]
		if m.ParamCode != param || m.Baseline {
			continue
		}
		if !m.CollectionDate.After(baseline.CollectionDate) {
			if !(m.CollectionDate.Equal(baseline.CollectionDate) && m.VisitNum > baseline.VisitNum) {
				continue
			}
		}
		found = true
		if r.rank[m.RangeFlag] < r.rank[worst] {
			worst = m.RangeFlag
		}
	}
	if !found {
		return "", "", false
	}
	return baseline.RangeFlag, worst, true
}

// Label renders a category for report output; the empty indicator prints
// as MISSING.
func Label(cat dataset.RangeIndicator) string {
	if cat == dataset.RangeMissing {
		return "MISSING"
	}
	return string(cat)
}
