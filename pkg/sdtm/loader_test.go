package sdtm

import (
	"strings"
	"testing"
	"time"

	"github.com/clinforge-ai/platform/pkg/dataset"
	"github.com/clinforge-ai/platform/pkg/terminology"
	"github.com/clinforge-ai/platform/pkg/validate"
)

func TestParseCSV(t *testing.T) {
	payload := "usubjid, paramcd, aval\nS01, ALT, 25\nS02, AST,\n"
	rows, err := ParseCSV(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["USUBJID"] != "S01" || rows[0]["PARAMCD"] != "ALT" || rows[0]["AVAL"] != "25" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1]["AVAL"] != "" {
		t.Fatalf("expected empty AVAL, got %q", rows[1]["AVAL"])
	}
}

func TestParseCSVRejectsRaggedRows(t *testing.T) {
	payload := "USUBJID,PARAMCD\nS01,ALT,EXTRA\n"
	if _, err := ParseCSV(strings.NewReader(payload)); err == nil {
		t.Fatal("expected error for ragged row")
	}
}

func TestLoadSubjects(t *testing.T) {
	loader := NewLoader(terminology.DefaultCatalog())
	rows := []map[string]string{
		{
			"USUBJID": "S01",
			"STUDYID": "CF-301",
			"ARM":     "ARM A",
			"ACTARM":  "ARM B",
			"RFICDT":  "2023-01-01",
			"RANDDT":  "2023-01-05",
			"TRTSDT":  "2023-01-10",
			"TRTEDT":  "2023-03-10",
			"AGE":     "54",
			"SEX":     "F",
			"COMPLY":  "0.92",
			"DVMAJOR": "N",
		},
		{
			"USUBJID": "S02",
			"RFICDT":  "UNK",
			"TRTSDT":  "2023-02",
		},
	}

	subjects, issues := loader.Subjects("CF-301", rows)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
	if len(subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(subjects))
	}

	s := subjects[0]
	if s.TreatmentGroup() != "ARM B" {
		t.Fatalf("actual arm should win, got %q", s.TreatmentGroup())
	}
	if !s.FirstDoseDate.Equal(dataset.NewDate(2023, time.January, 10)) {
		t.Fatalf("unexpected first-dose date %s", s.FirstDoseDate)
	}
	if s.Demographics.Age == nil || *s.Demographics.Age != 54 {
		t.Fatalf("unexpected age: %+v", s.Demographics)
	}
	if s.ComplianceRatio == nil || *s.ComplianceRatio != 0.92 {
		t.Fatalf("unexpected compliance: %+v", s.ComplianceRatio)
	}
	if s.MajorDeviation {
		t.Fatal("DVMAJOR=N must not set the deviation flag")
	}

	if subjects[1].ConsentDate.Known() {
		t.Fatal("UNK consent date should be unknown, not an error")
	}
	if subjects[1].FirstDoseDate.Precision() != dataset.PrecisionMonth {
		t.Fatalf("expected month precision, got %v", subjects[1].FirstDoseDate.Precision())
	}
}

func TestMalformedSubjectRowExcluded(t *testing.T) {
	loader := NewLoader(terminology.DefaultCatalog())
	rows := []map[string]string{
		{"USUBJID": "S01", "TRTSDT": "2023-13-40"},
		{"USUBJID": "S02", "TRTSDT": "2023-01-10"},
	}

	subjects, issues := loader.Subjects("CF-301", rows)
	if len(subjects) != 1 || subjects[0].SubjectID != "S02" {
		t.Fatalf("bad row must be excluded without dropping the rest, got %+v", subjects)
	}
	if len(issues) != 1 {
		t.Fatalf("expected one structural issue, got %+v", issues)
	}
	issue := issues[0]
	if issue.Category != validate.CategoryStructural || issue.Severity != validate.SeverityCritical {
		t.Fatalf("unexpected issue classification: %+v", issue)
	}
	if issue.SubjectID != "S01" || issue.Variable != "TRTSDT" {
		t.Fatalf("issue misattributed: %+v", issue)
	}
}

func TestLoadMeasurements(t *testing.T) {
	loader := NewLoader(terminology.DefaultCatalog())
	rows := []map[string]string{
		{
			"USUBJID":  "S01",
			"PARAMCD":  "alt",
			"AVAL":     "25",
			"VISITNUM": "2",
			"VISIT":    "WEEK 1",
			"ADT":      "2023-01-15",
			"ANRLO":    "7",
			"ANRHI":    "56",
			"ANRIND":   "normal",
		},
		{
			"USUBJID":  "S01",
			"LBTESTCD": "AST",
			"LBORRES":  "TRACE",
			"VISITNUM": "3",
			"LBDT":     "2023-01-20",
			"LBNRIND":  "H",
		},
		{
			"USUBJID":  "S01",
			"PARAMCD":  "BILI",
			"VISITNUM": "4",
			"ADT":      "2023-01-25",
		},
	}

	measurements, issues := loader.Measurements("CF-301", rows)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
	if len(measurements) != 3 {
		t.Fatalf("expected 3 measurements, got %d", len(measurements))
	}

	alt := measurements[0]
	if alt.ParamCode != "ALT" {
		t.Fatalf("parameter codes normalize to upper case, got %q", alt.ParamCode)
	}
	if alt.ParamName != "Alanine Aminotransferase" {
		t.Fatalf("display name should come from the catalog, got %q", alt.ParamName)
	}
	if v, ok := alt.Value.Float(); !ok || v != 25 {
		t.Fatalf("unexpected value: %v", alt.Value)
	}
	if alt.RangeLow == nil || *alt.RangeLow != 7 || alt.RangeHigh == nil || *alt.RangeHigh != 56 {
		t.Fatalf("unexpected range bounds: %+v", alt)
	}
	if alt.RangeFlag != dataset.RangeNormal {
		t.Fatalf("unexpected range flag %q", alt.RangeFlag)
	}

	ast := measurements[1]
	if text, ok := ast.Value.Text(); !ok || text != "TRACE" {
		t.Fatalf("textual result lost: %v", ast.Value)
	}
	if ast.RangeFlag != dataset.RangeHigh {
		t.Fatalf("H should map to HIGH, got %q", ast.RangeFlag)
	}

	bili := measurements[2]
	if !bili.Value.IsMissing() {
		t.Fatalf("absent result columns must load as missing, got %v", bili.Value)
	}
	if bili.Value.MissingReason() == "" {
		t.Fatal("missing value must carry a reason")
	}
}

func TestMalformedMeasurementRowsExcluded(t *testing.T) {
	loader := NewLoader(terminology.DefaultCatalog())
	rows := []map[string]string{
		{"PARAMCD": "ALT", "VISITNUM": "1", "ADT": "2023-01-15"},
		{"USUBJID": "S01", "VISITNUM": "1", "ADT": "2023-01-15"},
		{"USUBJID": "S01", "PARAMCD": "ALT", "VISITNUM": "one", "ADT": "2023-01-15"},
		{"USUBJID": "S01", "PARAMCD": "ALT", "VISITNUM": "1", "ADT": "not-a-date"},
		{"USUBJID": "S01", "PARAMCD": "ALT", "VISITNUM": "1", "ADT": "2023-01-15", "AVAL": "25"},
	}

	measurements, issues := loader.Measurements("CF-301", rows)
	if len(measurements) != 1 {
		t.Fatalf("expected only the well-formed row, got %d", len(measurements))
	}
	if len(issues) != 4 {
		t.Fatalf("expected 4 structural issues, got %d: %+v", len(issues), issues)
	}
	for _, issue := range issues {
		if issue.Category != validate.CategoryStructural || issue.Severity != validate.SeverityCritical {
			t.Fatalf("unexpected issue classification: %+v", issue)
		}
	}
}

func TestBuildRoutesOrphans(t *testing.T) {
	loader := NewLoader(terminology.DefaultCatalog())
	subjectRows := []map[string]string{
		{"USUBJID": "S01", "TRTSDT": "2023-01-10"},
	}
	measurementRows := []map[string]string{
		{"USUBJID": "S01", "PARAMCD": "ALT", "VISITNUM": "1", "ADT": "2023-01-05", "AVAL": "20"},
		{"USUBJID": "S99", "PARAMCD": "ALT", "VISITNUM": "1", "ADT": "2023-01-05", "AVAL": "20"},
	}

	result := loader.Build("CF-301", subjectRows, measurementRows)
	if result.Dataset.SubjectCount() != 1 {
		t.Fatalf("expected 1 subject, got %d", result.Dataset.SubjectCount())
	}
	if len(result.Dataset.MeasurementsFor("S01")) != 1 {
		t.Fatalf("expected one owned measurement")
	}
	if len(result.Dataset.Orphans()) != 1 {
		t.Fatalf("unknown subject's measurement should be parked as orphan")
	}
}

func TestNormalizeRows(t *testing.T) {
	rows := NormalizeRows([]map[string]string{{" usubjid ": " S01 ", "ParamCd": "ALT"}})
	if rows[0]["USUBJID"] != "S01" || rows[0]["PARAMCD"] != "ALT" {
		t.Fatalf("unexpected normalization: %v", rows[0])
	}
}
