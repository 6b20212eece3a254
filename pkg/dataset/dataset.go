package dataset

import (
	"fmt"
	"sort"
)

// Dataset holds one study in memory: subject records plus the measurement
// collections they own. Measurements whose subject is unknown are parked as
// orphans so validation can report them; they never participate in
// derivation.
type Dataset struct {
	StudyID string

	subjects     map[string]*SubjectRecord
	measurements map[string][]MeasurementRecord
	orphans      []MeasurementRecord
}

func New(studyID string) *Dataset {
	return &Dataset{
		StudyID:      studyID,
		subjects:     make(map[string]*SubjectRecord),
		measurements: make(map[string][]MeasurementRecord),
	}
}

// AddSubject registers a subject record. Subject identifiers are unique
// within a study; re-adding an existing one is an error rather than a
// silent overwrite.
func (d *Dataset) AddSubject(s *SubjectRecord) error {
	if s == nil || s.SubjectID == "" {
		return fmt.Errorf("subject record requires a subject identifier")
	}
	if _, exists := d.subjects[s.SubjectID]; exists {
		return fmt.Errorf("subject %s already present", s.SubjectID)
	}
	d.subjects[s.SubjectID] = s
	return nil
}

// AddMeasurement routes a measurement to its owning subject, or to the
// orphan list when the subject does not exist yet.
func (d *Dataset) AddMeasurement(m MeasurementRecord) {
	if _, ok := d.subjects[m.SubjectID]; !ok {
		d.orphans = append(d.orphans, m)
		return
	}
	d.measurements[m.SubjectID] = append(d.measurements[m.SubjectID], m)
}

func (d *Dataset) Subject(id string) (*SubjectRecord, bool) {
	s, ok := d.subjects[id]
	return s, ok
}

// SubjectIDs returns all subject identifiers in sorted order. Every
// iteration over the dataset goes through this so outputs stay
// deterministic.
func (d *Dataset) SubjectIDs() []string {
	ids := make([]string, 0, len(d.subjects))
	for id := range d.subjects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Dataset) MeasurementsFor(subjectID string) []MeasurementRecord {
	return d.measurements[subjectID]
}

// SetMeasurements replaces a subject's measurement collection. Used by the
// derivers, which always operate on a clone.
func (d *Dataset) SetMeasurements(subjectID string, records []MeasurementRecord) {
	if _, ok := d.subjects[subjectID]; !ok {
		return
	}
	d.measurements[subjectID] = records
}

func (d *Dataset) Orphans() []MeasurementRecord {
	return d.orphans
}

func (d *Dataset) SubjectCount() int {
	return len(d.subjects)
}

func (d *Dataset) MeasurementCount() int {
	n := len(d.orphans)
	for _, records := range d.measurements {
		n += len(records)
	}
	return n
}

// ParamCodes returns the distinct parameter codes present for a subject,
// sorted.
func (d *Dataset) ParamCodes(subjectID string) []string {
	seen := make(map[string]struct{})
	for _, m := range d.measurements[subjectID] {
		seen[m.ParamCode] = struct{}{}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Clone deep-copies the dataset. Derivation produces a new dataset instead
// of mutating its input, so there is never a write-write race to guard.
func (d *Dataset) Clone() *Dataset {
	out := New(d.StudyID)
	for id, s := range d.subjects {
		out.subjects[id] = s.clone()
	}
	for id, records := range d.measurements {
		copied := make([]MeasurementRecord, len(records))
		for i, m := range records {
			copied[i] = m.clone()
		}
		out.measurements[id] = copied
	}
	if len(d.orphans) > 0 {
		out.orphans = make([]MeasurementRecord, len(d.orphans))
		for i, m := range d.orphans {
			out.orphans[i] = m.clone()
		}
	}
	return out
}
