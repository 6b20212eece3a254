package shift

import (
	"testing"
	"time"

	"github.com/clinforge-ai/platform/pkg/dataset"
)

func defaultReporter(t *testing.T) *Reporter {
	t.Helper()
	r, err := NewReporter([]dataset.RangeIndicator{dataset.RangeHigh, dataset.RangeLow, dataset.RangeNormal})
	if err != nil {
		t.Fatalf("NewReporter: %v", err)
	}
	return r
}

func shiftSubject(t *testing.T, ds *dataset.Dataset, id, arm string) {
	t.Helper()
	err := ds.AddSubject(&dataset.SubjectRecord{
		SubjectID:  id,
		StudyID:    "CF-301",
		ActualArm:  arm,
		PlannedArm: arm,
	})
	if err != nil {
		t.Fatalf("AddSubject: %v", err)
	}
}

func shiftRecord(id, param string, visit int, day int, baseline bool, flag dataset.RangeIndicator) dataset.MeasurementRecord {
	return dataset.MeasurementRecord{
		SubjectID:      id,
		StudyID:        "CF-301",
		ParamCode:      param,
		Value:          dataset.NumericValue(float64(visit)),
		VisitNum:       visit,
		CollectionDate: dataset.NewDate(2023, time.January, day),
		Baseline:       baseline,
		RangeFlag:      flag,
	}
}

func TestWorstPostBaselineCategoryWins(t *testing.T) {
	ds := dataset.New("CF-301")
	shiftSubject(t, ds, "S01", "ARM A")
	ds.AddMeasurement(shiftRecord("S01", "ALT", 1, 5, true, dataset.RangeNormal))
	ds.AddMeasurement(shiftRecord("S01", "ALT", 2, 15, false, dataset.RangeHigh))
	ds.AddMeasurement(shiftRecord("S01", "ALT", 3, 25, false, dataset.RangeLow))

	rows := defaultReporter(t).Build(ds)

	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d: %+v", len(rows), rows)
	}
	row := rows[0]
	if row.From != dataset.RangeNormal || row.To != dataset.RangeHigh {
		t.Fatalf("expected NORMAL to HIGH, got %s to %s", Label(row.From), Label(row.To))
	}
	if row.Treatment != "ARM A" || row.ParamCode != "ALT" || row.Count != 1 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestCustomSeverityOrder(t *testing.T) {
	r, err := NewReporter([]dataset.RangeIndicator{dataset.RangeLow, dataset.RangeHigh, dataset.RangeNormal})
	if err != nil {
		t.Fatalf("NewReporter: %v", err)
	}

	ds := dataset.New("CF-301")
	shiftSubject(t, ds, "S01", "ARM A")
	ds.AddMeasurement(shiftRecord("S01", "ALT", 1, 5, true, dataset.RangeNormal))
	ds.AddMeasurement(shiftRecord("S01", "ALT", 2, 15, false, dataset.RangeHigh))
	ds.AddMeasurement(shiftRecord("S01", "ALT", 3, 25, false, dataset.RangeLow))

	rows := r.Build(ds)
	if len(rows) != 1 || rows[0].To != dataset.RangeLow {
		t.Fatalf("expected LOW to win under custom order, got %+v", rows)
	}
}

func TestGroupsWithoutBaselineOrPostBaselineAreSkipped(t *testing.T) {
	ds := dataset.New("CF-301")
	shiftSubject(t, ds, "S01", "ARM A")
	// No baseline for ALT.
	ds.AddMeasurement(shiftRecord("S01", "ALT", 2, 15, false, dataset.RangeHigh))
	// Baseline but nothing after it for AST.
	ds.AddMeasurement(shiftRecord("S01", "AST", 1, 5, true, dataset.RangeNormal))

	if rows := defaultReporter(t).Build(ds); len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestMissingIndicatorIsLeastAbnormal(t *testing.T) {
	ds := dataset.New("CF-301")
	shiftSubject(t, ds, "S01", "ARM A")
	ds.AddMeasurement(shiftRecord("S01", "ALT", 1, 5, true, dataset.RangeNormal))
	missing := shiftRecord("S01", "ALT", 2, 15, false, dataset.RangeMissing)
	ds.AddMeasurement(missing)
	ds.AddMeasurement(shiftRecord("S01", "ALT", 3, 25, false, dataset.RangeNormal))

	rows := defaultReporter(t).Build(ds)
	if len(rows) != 1 || rows[0].To != dataset.RangeNormal {
		t.Fatalf("expected NORMAL to beat MISSING, got %+v", rows)
	}
}

func TestRowsAggregateByTreatmentGroup(t *testing.T) {
	ds := dataset.New("CF-301")
	shiftSubject(t, ds, "S01", "ARM A")
	shiftSubject(t, ds, "S02", "ARM A")
	shiftSubject(t, ds, "S03", "ARM B")
	for _, id := range []string{"S01", "S02", "S03"} {
		ds.AddMeasurement(shiftRecord(id, "ALT", 1, 5, true, dataset.RangeNormal))
		ds.AddMeasurement(shiftRecord(id, "ALT", 2, 15, false, dataset.RangeHigh))
	}

	rows := defaultReporter(t).Build(ds)
	if len(rows) != 2 {
		t.Fatalf("expected one row per arm, got %+v", rows)
	}
	if rows[0].Treatment != "ARM A" || rows[0].Count != 2 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Treatment != "ARM B" || rows[1].Count != 1 {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func TestSameDayHigherVisitCountsAsPostBaseline(t *testing.T) {
	ds := dataset.New("CF-301")
	shiftSubject(t, ds, "S01", "ARM A")
	ds.AddMeasurement(shiftRecord("S01", "ALT", 2, 5, true, dataset.RangeNormal))
	ds.AddMeasurement(shiftRecord("S01", "ALT", 3, 5, false, dataset.RangeHigh))
	// Same day, lower visit: pre-baseline, must not contribute.
	ds.AddMeasurement(shiftRecord("S01", "ALT", 1, 5, false, dataset.RangeLow))

	rows := defaultReporter(t).Build(ds)
	if len(rows) != 1 || rows[0].To != dataset.RangeHigh {
		t.Fatalf("expected same-day higher visit as the only post-baseline record, got %+v", rows)
	}
}

func TestNewReporterRejectsBadOrder(t *testing.T) {
	cases := [][]dataset.RangeIndicator{
		nil,
		{"EXTREME"},
		{dataset.RangeHigh, dataset.RangeHigh},
	}
	for _, order := range cases {
		if _, err := NewReporter(order); err == nil {
			t.Fatalf("expected error for order %v", order)
		}
	}
}

func TestLabel(t *testing.T) {
	if Label(dataset.RangeMissing) != "MISSING" {
		t.Fatalf("empty indicator should render as MISSING")
	}
	if Label(dataset.RangeHigh) != "HIGH" {
		t.Fatalf("unexpected label %q", Label(dataset.RangeHigh))
	}
}
