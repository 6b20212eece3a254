package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/clinforge-ai/platform/pkg/dataset"
	"github.com/clinforge-ai/platform/pkg/derive"
	"github.com/clinforge-ai/platform/pkg/validate"
)

// studyFixture builds a small two-subject study: S01 is dosed, randomized
// and compliant with an ALT series shifting from normal to high; S02 never
// received drug.
func studyFixture(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New("CF-301")

	compliance := 0.95
	err := ds.AddSubject(&dataset.SubjectRecord{
		SubjectID:         "S01",
		StudyID:           "CF-301",
		PlannedArm:        "ARM A",
		ActualArm:         "ARM A",
		ConsentDate:       dataset.NewDate(2023, time.January, 1),
		RandomizationDate: dataset.NewDate(2023, time.January, 5),
		FirstDoseDate:     dataset.NewDate(2023, time.January, 10),
		LastDoseDate:      dataset.NewDate(2023, time.March, 10),
		ComplianceRatio:   &compliance,
	})
	if err != nil {
		t.Fatalf("AddSubject: %v", err)
	}
	err = ds.AddSubject(&dataset.SubjectRecord{
		SubjectID:   "S02",
		StudyID:     "CF-301",
		PlannedArm:  "ARM B",
		ConsentDate: dataset.NewDate(2023, time.January, 1),
	})
	if err != nil {
		t.Fatalf("AddSubject: %v", err)
	}

	add := func(id string, visit, day int, value float64, flag dataset.RangeIndicator) {
		ds.AddMeasurement(dataset.MeasurementRecord{
			SubjectID:      id,
			StudyID:        "CF-301",
			ParamCode:      "ALT",
			Value:          dataset.NumericValue(value),
			VisitNum:       visit,
			CollectionDate: dataset.NewDate(2023, time.January, day),
			RangeFlag:      flag,
		})
	}
	add("S01", 1, 5, 20, dataset.RangeNormal)
	add("S01", 2, 15, 25, dataset.RangeNormal)
	add("S01", 3, 25, 70, dataset.RangeHigh)
	add("S02", 1, 5, 22, dataset.RangeNormal)

	return ds
}

func TestFullPipeline(t *testing.T) {
	eng, err := New(derive.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	input := studyFixture(t)
	snapshot := input.Clone()
	result := eng.Run(input)

	if !reflect.DeepEqual(input, snapshot) {
		t.Fatal("pipeline mutated its input dataset")
	}

	s01, _ := result.Derived.Subject("S01")
	for _, flag := range []string{dataset.FlagSafety, dataset.FlagITT, dataset.FlagPerProtocol} {
		if !s01.Flag(flag) {
			t.Fatalf("S01 should carry %s", flag)
		}
	}
	s02, _ := result.Derived.Subject("S02")
	if s02.Flag(dataset.FlagSafety) {
		t.Fatal("undosed subject must not carry the safety flag")
	}
	if !s02.Flag(dataset.FlagITT) {
		t.Fatal("planned arm assignment should grant intent-to-treat")
	}

	var postBaseline *dataset.MeasurementRecord
	for _, m := range result.Derived.MeasurementsFor("S01") {
		if m.VisitNum == 2 {
			rec := m
			postBaseline = &rec
		}
	}
	if postBaseline == nil || postBaseline.Change == nil {
		t.Fatal("post-baseline record missing derived change")
	}
	if *postBaseline.Change != 5 {
		t.Fatalf("expected change 5, got %g", *postBaseline.Change)
	}
	if postBaseline.PercentChange == nil || *postBaseline.PercentChange != 25 {
		t.Fatalf("expected percent-change 25, got %+v", postBaseline.PercentChange)
	}

	if !result.Report.Submittable() {
		t.Fatalf("clean study reported issues: %+v", result.Report.Issues)
	}

	if len(result.Shift) != 1 {
		t.Fatalf("expected one shift row, got %+v", result.Shift)
	}
	row := result.Shift[0]
	if row.From != dataset.RangeNormal || row.To != dataset.RangeHigh || row.Count != 1 {
		t.Fatalf("unexpected shift row: %+v", row)
	}
}

func TestRunCarriesLoadIssues(t *testing.T) {
	eng, err := New(derive.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	load := validate.Issue{
		Category: validate.CategoryStructural,
		Severity: validate.SeverityCritical,
		Message:  "row 3: unparseable date \"2023-13-40\"",
	}
	result := eng.Run(studyFixture(t), load)

	if result.Report.Submittable() {
		t.Fatal("structural load issue must block submittability")
	}
	found := false
	for _, issue := range result.Report.Issues {
		if issue.Category == validate.CategoryStructural && issue.Message == load.Message {
			found = true
		}
	}
	if !found {
		t.Fatalf("load issue missing from report: %+v", result.Report.Issues)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	eng, err := New(derive.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := eng.Run(studyFixture(t))
	second := eng.Run(studyFixture(t))

	if !reflect.DeepEqual(first.Derived, second.Derived) {
		t.Fatal("derived datasets differ across identical runs")
	}
	if !reflect.DeepEqual(first.Report.Issues, second.Report.Issues) {
		t.Fatal("reports differ across identical runs")
	}
	if !reflect.DeepEqual(first.Shift, second.Shift) {
		t.Fatal("shift rows differ across identical runs")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := derive.DefaultConfig()
	cfg.BaselineRule = "whenever"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected configuration error")
	}

	cfg = derive.DefaultConfig()
	cfg.ShiftSeverityOrder = []dataset.RangeIndicator{"EXTREME"}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected configuration error")
	}
}
