package sdtm

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/clinforge-ai/platform/pkg/dataset"
	"github.com/clinforge-ai/platform/pkg/terminology"
	"github.com/clinforge-ai/platform/pkg/validate"
)

// Loader maps raw SDTM-shaped rows into the in-memory dataset model. A
// malformed row is fatal to that row only: it is excluded and surfaced as
// a critical structural issue, so one bad record never prevents assessment
// of the rest of the dataset.
type Loader struct {
	catalog terminology.Catalog
}

func NewLoader(catalog terminology.Catalog) *Loader {
	return &Loader{catalog: catalog}
}

// Result is a loaded study plus the structural findings collected on the
// way in.
type Result struct {
	Dataset *dataset.Dataset
	Issues  []validate.Issue
}

// ParseCSV reads a delimited payload with a header row into generic
// records keyed by upper-cased column name.
func ParseCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToUpper(strings.TrimSpace(header[i]))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+2, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Build assembles a dataset from subject-level rows (DM/EX shape) and
// measurement rows (LB/VS shape).
func (l *Loader) Build(studyID string, subjectRows, measurementRows []map[string]string) *Result {
	result := &Result{Dataset: dataset.New(studyID)}

	subjects, issues := l.Subjects(studyID, subjectRows)
	result.Issues = append(result.Issues, issues...)
	for _, subject := range subjects {
		if err := result.Dataset.AddSubject(subject); err != nil {
			result.Issues = append(result.Issues, structural(subject.SubjectID, "USUBJID", err.Error()))
		}
	}

	measurements, issues := l.Measurements(studyID, measurementRows)
	result.Issues = append(result.Issues, issues...)
	for _, m := range measurements {
		result.Dataset.AddMeasurement(m)
	}

	return result
}

// Subjects maps subject-level rows into records, excluding malformed rows
// and reporting them.
func (l *Loader) Subjects(studyID string, rows []map[string]string) ([]*dataset.SubjectRecord, []validate.Issue) {
	result := &Result{}
	var subjects []*dataset.SubjectRecord
	for i, row := range rows {
		subject, ok := l.loadSubject(studyID, i, row, result)
		if !ok {
			continue
		}
		subjects = append(subjects, subject)
	}
	return subjects, result.Issues
}

// Measurements maps measurement rows into records, excluding malformed
// rows and reporting them.
func (l *Loader) Measurements(studyID string, rows []map[string]string) ([]dataset.MeasurementRecord, []validate.Issue) {
	result := &Result{}
	var measurements []dataset.MeasurementRecord
	for i, row := range rows {
		m, ok := l.loadMeasurement(studyID, i, row, result)
		if !ok {
			continue
		}
		measurements = append(measurements, m)
	}
	return measurements, result.Issues
}

// NormalizeRows upper-cases keys of generic record maps so lookups match
// the SDTM column convention regardless of submission casing.
func NormalizeRows(rows []map[string]string) []map[string]string {
	out := make([]map[string]string, len(rows))
	for i, row := range rows {
		normalized := make(map[string]string, len(row))
		for k, v := range row {
			normalized[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
		out[i] = normalized
	}
	return out
}

func (l *Loader) loadSubject(studyID string, idx int, row map[string]string, result *Result) (*dataset.SubjectRecord, bool) {
	subjectID := field(row, "USUBJID", "SUBJID")
	if subjectID == "" {
		result.Issues = append(result.Issues, structural("", "USUBJID",
			fmt.Sprintf("subject row %d has no subject identifier; record excluded", idx+1)))
		return nil, false
	}

	subject := &dataset.SubjectRecord{
		SubjectID:  subjectID,
		StudyID:    firstNonEmpty(field(row, "STUDYID"), studyID),
		PlannedArm: field(row, "ARM", "TRT01P"),
		ActualArm:  field(row, "ACTARM", "TRT01A"),
	}

	ok := true
	subject.ConsentDate = l.date(row, "RFICDT", subjectID, result, &ok)
	subject.RandomizationDate = l.date(row, "RANDDT", subjectID, result, &ok)
	subject.FirstDoseDate = l.date(row, "TRTSDT", subjectID, result, &ok)
	subject.LastDoseDate = l.date(row, "TRTEDT", subjectID, result, &ok)
	if !ok {
		return nil, false
	}

	if raw := field(row, "AGE"); raw != "" {
		if age, err := strconv.Atoi(raw); err == nil {
			subject.Demographics.Age = &age
		} else {
			result.Issues = append(result.Issues, structural(subjectID, "AGE",
				fmt.Sprintf("unparseable age %q", raw)))
		}
	}
	subject.Demographics.Sex = field(row, "SEX")
	subject.Demographics.Race = field(row, "RACE")

	if raw := field(row, "COMPLY", "COMPLIANCE"); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil {
			subject.ComplianceRatio = &ratio
		} else {
			result.Issues = append(result.Issues, structural(subjectID, "COMPLY",
				fmt.Sprintf("unparseable compliance ratio %q", raw)))
		}
	}
	subject.MajorDeviation = isYes(field(row, "DVMAJOR", "MAJORDEV"))

	return subject, true
}

func (l *Loader) loadMeasurement(studyID string, idx int, row map[string]string, result *Result) (dataset.MeasurementRecord, bool) {
	subjectID := field(row, "USUBJID", "SUBJID")
	paramCode := strings.ToUpper(field(row, "PARAMCD", "LBTESTCD", "VSTESTCD"))

	m := dataset.MeasurementRecord{
		SubjectID: subjectID,
		StudyID:   firstNonEmpty(field(row, "STUDYID"), studyID),
		ParamCode: paramCode,
		ParamName: field(row, "PARAM", "LBTEST", "VSTEST"),
		VisitID:   field(row, "VISIT"),
	}
	if m.ParamName == "" && paramCode != "" {
		if param, ok := l.catalog.Lookup(paramCode); ok {
			m.ParamName = param.Display
		}
	}

	if subjectID == "" {
		result.Issues = append(result.Issues, structural("", paramCode,
			fmt.Sprintf("measurement row %d has no subject identifier; record excluded", idx+1)))
		return m, false
	}
	if paramCode == "" {
		result.Issues = append(result.Issues, structural(subjectID, "PARAMCD",
			fmt.Sprintf("measurement row %d has no parameter code; record excluded", idx+1)))
		return m, false
	}

	if raw := field(row, "VISITNUM"); raw != "" {
		if num, err := strconv.Atoi(raw); err == nil {
			m.VisitNum = num
		} else {
			result.Issues = append(result.Issues, structural(subjectID, "VISITNUM",
				fmt.Sprintf("unparseable visit number %q for %s; record excluded", raw, paramCode)))
			return m, false
		}
	}

	collected, err := dataset.ParseDate(field(row, "ADT", "LBDT", "VSDT"))
	if err != nil {
		result.Issues = append(result.Issues, structural(subjectID, paramCode,
			fmt.Sprintf("%v; record excluded", err)))
		return m, false
	}
	m.CollectionDate = collected

	m.Value = parseValue(field(row, "AVAL", "LBSTRESN"), field(row, "AVALC", "LBORRES"))
	m.RangeLow = parseBound(row, "ANRLO")
	m.RangeHigh = parseBound(row, "ANRHI")
	m.RangeFlag = parseRangeFlag(field(row, "ANRIND", "LBNRIND"))

	return m, true
}

func (l *Loader) date(row map[string]string, col, subjectID string, result *Result, ok *bool) dataset.PartialDate {
	parsed, err := dataset.ParseDate(field(row, col))
	if err != nil {
		result.Issues = append(result.Issues, structural(subjectID, col,
			fmt.Sprintf("%v; record excluded", err)))
		*ok = false
	}
	return parsed
}

// parseValue prefers the numeric result column, falls back to the textual
// one, and keeps an explicit missing-with-reason value otherwise so that
// "missing" and "zero" can never be confused downstream.
func parseValue(numRaw, textRaw string) dataset.Value {
	if numRaw != "" {
		if num, err := strconv.ParseFloat(numRaw, 64); err == nil {
			return dataset.NumericValue(num)
		}
		return dataset.TextValue(numRaw)
	}
	if textRaw != "" {
		return dataset.TextValue(textRaw)
	}
	return dataset.MissingValue("not collected")
}

func parseBound(row map[string]string, col string) *float64 {
	raw := field(row, col)
	if raw == "" {
		return nil
	}
	if bound, err := strconv.ParseFloat(raw, 64); err == nil {
		return &bound
	}
	return nil
}

func parseRangeFlag(raw string) dataset.RangeIndicator {
	switch strings.ToUpper(raw) {
	case "NORMAL", "N":
		return dataset.RangeNormal
	case "HIGH", "H":
		return dataset.RangeHigh
	case "LOW", "L":
		return dataset.RangeLow
	default:
		return dataset.RangeMissing
	}
}

func structural(subjectID, variable, message string) validate.Issue {
	return validate.Issue{
		Category:  validate.CategoryStructural,
		Severity:  validate.SeverityCritical,
		SubjectID: subjectID,
		Variable:  variable,
		Message:   message,
	}
}

func field(row map[string]string, names ...string) string {
	for _, name := range names {
		if v, ok := row[name]; ok && v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isYes(raw string) bool {
	switch strings.ToUpper(raw) {
	case "Y", "YES", "1", "TRUE":
		return true
	default:
		return false
	}
}
