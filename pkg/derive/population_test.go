package derive

import (
	"testing"
	"time"

	"github.com/clinforge-ai/platform/pkg/dataset"
)

func TestSafetyFlagRequiresFirstDose(t *testing.T) {
	ds := dataset.New("CF-001")
	dosed := &dataset.SubjectRecord{
		SubjectID:     "S1",
		StudyID:       "CF-001",
		FirstDoseDate: dataset.NewDate(2023, time.January, 10),
	}
	undosed := &dataset.SubjectRecord{SubjectID: "S2", StudyID: "CF-001"}
	for _, s := range []*dataset.SubjectRecord{dosed, undosed} {
		if err := ds.AddSubject(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	out := DerivePopulationFlags(ds, DefaultConfig())

	s1, _ := out.Subject("S1")
	if !s1.Flag(dataset.FlagSafety) {
		t.Fatal("dosed subject must be in the safety population")
	}
	s2, _ := out.Subject("S2")
	if s2.Flag(dataset.FlagSafety) {
		t.Fatal("undosed subject must not be in the safety population")
	}
}

// An undosed but randomized, fully compliant subject computes to ITT=true,
// per-protocol=true, safety=false. The only declared invariant is
// per-protocol implies ITT, which holds, so no consistency violation may
// be raised for this combination.
func TestUndosedCompliantSubjectFlags(t *testing.T) {
	ds := dataset.New("CF-001")
	compliance := 1.0
	subject := &dataset.SubjectRecord{
		SubjectID:         "S2",
		StudyID:           "CF-001",
		RandomizationDate: dataset.NewDate(2023, time.January, 3),
		ComplianceRatio:   &compliance,
	}
	if err := ds.AddSubject(subject); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := DerivePopulationFlags(ds, DefaultConfig())
	s2, _ := out.Subject("S2")

	if s2.Flag(dataset.FlagSafety) {
		t.Fatal("expected safety=false without a first dose")
	}
	if !s2.Flag(dataset.FlagITT) {
		t.Fatal("expected ITT=true with a randomization date")
	}
	if !s2.Flag(dataset.FlagPerProtocol) {
		t.Fatal("expected per-protocol=true with full compliance and no deviation")
	}
}

func TestPerProtocolRequiresCompliance(t *testing.T) {
	cases := []struct {
		name       string
		compliance *float64
		deviation  bool
		want       bool
	}{
		{"above threshold", ptr(0.85), false, true},
		{"at threshold", ptr(0.8), false, true},
		{"below threshold", ptr(0.75), false, false},
		{"no compliance recorded", nil, false, false},
		{"major deviation", ptr(1.0), true, false},
	}

	for _, tc := range cases {
		ds := dataset.New("CF-001")
		subject := &dataset.SubjectRecord{
			SubjectID:         "S1",
			StudyID:           "CF-001",
			RandomizationDate: dataset.NewDate(2023, time.January, 3),
			ComplianceRatio:   tc.compliance,
			MajorDeviation:    tc.deviation,
		}
		if err := ds.AddSubject(subject); err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}

		out := DerivePopulationFlags(ds, DefaultConfig())
		s, _ := out.Subject("S1")
		if s.Flag(dataset.FlagPerProtocol) != tc.want {
			t.Fatalf("%s: per-protocol = %v, want %v", tc.name, s.Flag(dataset.FlagPerProtocol), tc.want)
		}
	}
}

func TestEfficacyFlagNeedsPostBaselineValue(t *testing.T) {
	ds := dataset.New("CF-001")
	withValue := &dataset.SubjectRecord{
		SubjectID:         "S1",
		StudyID:           "CF-001",
		RandomizationDate: dataset.NewDate(2023, time.January, 3),
		FirstDoseDate:     dataset.NewDate(2023, time.January, 10),
	}
	noMeasurements := &dataset.SubjectRecord{
		SubjectID:         "S2",
		StudyID:           "CF-001",
		RandomizationDate: dataset.NewDate(2023, time.January, 3),
		FirstDoseDate:     dataset.NewDate(2023, time.January, 10),
	}
	preDoseOnly := &dataset.SubjectRecord{
		SubjectID:         "S3",
		StudyID:           "CF-001",
		RandomizationDate: dataset.NewDate(2023, time.January, 3),
		FirstDoseDate:     dataset.NewDate(2023, time.January, 10),
	}
	for _, s := range []*dataset.SubjectRecord{withValue, noMeasurements, preDoseOnly} {
		if err := ds.AddSubject(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ds.AddMeasurement(dataset.MeasurementRecord{
		SubjectID: "S1", StudyID: "CF-001", ParamCode: "SYSBP",
		Value:          dataset.NumericValue(132),
		VisitNum:       2,
		CollectionDate: dataset.NewDate(2023, time.January, 20),
	})
	ds.AddMeasurement(dataset.MeasurementRecord{
		SubjectID: "S3", StudyID: "CF-001", ParamCode: "SYSBP",
		Value:          dataset.NumericValue(128),
		VisitNum:       1,
		CollectionDate: dataset.NewDate(2023, time.January, 5),
	})

	cfg := DefaultConfig()
	cfg.EfficacyParams = []string{"SYSBP"}
	out := DerivePopulationFlags(ds, cfg)

	s1, _ := out.Subject("S1")
	if !s1.Flag(dataset.FlagEfficacy) {
		t.Fatal("post-dose efficacy value must set efficacy=true")
	}
	s2, _ := out.Subject("S2")
	if s2.Flag(dataset.FlagEfficacy) {
		t.Fatal("subject without measurements must have efficacy=false")
	}
	s3, _ := out.Subject("S3")
	if s3.Flag(dataset.FlagEfficacy) {
		t.Fatal("pre-dose-only values must not set efficacy")
	}
}

func TestDeriveFlagsDoesNotMutateInput(t *testing.T) {
	ds := dataset.New("CF-001")
	subject := &dataset.SubjectRecord{
		SubjectID:     "S1",
		StudyID:       "CF-001",
		FirstDoseDate: dataset.NewDate(2023, time.January, 10),
	}
	if err := ds.AddSubject(subject); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = DerivePopulationFlags(ds, DefaultConfig())

	original, _ := ds.Subject("S1")
	if len(original.Flags) != 0 {
		t.Fatal("input dataset must stay untouched")
	}
}

func ptr(f float64) *float64 {
	return &f
}
