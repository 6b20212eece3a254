package dataset

// RangeIndicator is the reference-range category of a lab or safety
// measurement relative to its normal bounds.
type RangeIndicator string

const (
	RangeNormal  RangeIndicator = "NORMAL"
	RangeHigh    RangeIndicator = "HIGH"
	RangeLow     RangeIndicator = "LOW"
	RangeMissing RangeIndicator = ""
)

// Population flag variable names attached to subject records.
const (
	FlagSafety      = "SAFFL"
	FlagITT         = "ITTFL"
	FlagPerProtocol = "PPROTFL"
	FlagEfficacy    = "EFFFL"
)

type Demographics struct {
	Age  *int   `json:"age,omitempty"`
	Sex  string `json:"sex,omitempty"`
	Race string `json:"race,omitempty"`
}

// SubjectRecord is one row of the subject-level dataset. Population flags
// are derived, never loaded.
type SubjectRecord struct {
	SubjectID  string
	StudyID    string
	PlannedArm string
	ActualArm  string

	ConsentDate       PartialDate
	RandomizationDate PartialDate
	FirstDoseDate     PartialDate
	LastDoseDate      PartialDate

	Demographics Demographics

	ComplianceRatio *float64
	MajorDeviation  bool

	Flags map[string]bool
}

func (s *SubjectRecord) Flag(name string) bool {
	if s.Flags == nil {
		return false
	}
	return s.Flags[name]
}

func (s *SubjectRecord) SetFlag(name string, value bool) {
	if s.Flags == nil {
		s.Flags = make(map[string]bool)
	}
	s.Flags[name] = value
}

// TreatmentGroup is the grouping key used by summary reporting: the actual
// arm when known, else the planned arm.
func (s *SubjectRecord) TreatmentGroup() string {
	if s.ActualArm != "" {
		return s.ActualArm
	}
	return s.PlannedArm
}

func (s *SubjectRecord) clone() *SubjectRecord {
	out := *s
	if s.Demographics.Age != nil {
		age := *s.Demographics.Age
		out.Demographics.Age = &age
	}
	if s.ComplianceRatio != nil {
		ratio := *s.ComplianceRatio
		out.ComplianceRatio = &ratio
	}
	if s.Flags != nil {
		out.Flags = make(map[string]bool, len(s.Flags))
		for k, v := range s.Flags {
			out.Flags[k] = v
		}
	}
	return &out
}

// MeasurementRecord is one subject × parameter × timepoint observation.
// Baseline, BaselineValue, Change, PercentChange and ZeroBaseline are
// derivation outputs; everything else is loaded.
type MeasurementRecord struct {
	SubjectID string
	StudyID   string

	ParamCode string
	ParamName string

	Value Value

	VisitID        string
	VisitNum       int
	CollectionDate PartialDate

	Baseline      bool
	BaselineValue *float64
	Change        *float64
	PercentChange *float64
	// ZeroBaseline marks percent-change as undefined because the baseline
	// value was exactly zero. Kept separate from a nil PercentChange so
	// reports can distinguish "no baseline" from "zero baseline".
	ZeroBaseline bool

	RangeLow  *float64
	RangeHigh *float64
	RangeFlag RangeIndicator
}

func (m MeasurementRecord) clone() MeasurementRecord {
	out := m
	if m.BaselineValue != nil {
		v := *m.BaselineValue
		out.BaselineValue = &v
	}
	if m.Change != nil {
		v := *m.Change
		out.Change = &v
	}
	if m.PercentChange != nil {
		v := *m.PercentChange
		out.PercentChange = &v
	}
	if m.RangeLow != nil {
		v := *m.RangeLow
		out.RangeLow = &v
	}
	if m.RangeHigh != nil {
		v := *m.RangeHigh
		out.RangeHigh = &v
	}
	return out
}
