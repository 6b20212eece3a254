package dataset

import (
	"fmt"
	"strings"
	"time"
)

// DatePrecision says how much of a partial ISO-8601 date is actually known.
type DatePrecision int

const (
	PrecisionNone DatePrecision = iota
	PrecisionYear
	PrecisionMonth
	PrecisionDay
	PrecisionTime
)

// PartialDate is a clinical collection date following the partial ISO-8601
// convention: full date-time, date-only, year-month, year-only, or an
// explicit unknown sentinel. Ordering truncates to midnight of the first
// day of the known period, which keeps comparisons deterministic for
// partial dates.
type PartialDate struct {
	t    time.Time
	prec DatePrecision
}

var unknownTokens = map[string]struct{}{
	"":        {},
	"UN":      {},
	"UNK":     {},
	"UNKNOWN": {},
}

var dateLayouts = []struct {
	layout string
	prec   DatePrecision
}{
	{time.RFC3339, PrecisionTime},
	{"2006-01-02T15:04:05", PrecisionTime},
	{"2006-01-02T15:04", PrecisionTime},
	{"2006-01-02", PrecisionDay},
	{"2006-01", PrecisionMonth},
	{"2006", PrecisionYear},
}

// ParseDate maps a raw date string into a PartialDate. Unknown sentinels
// ("", "UN", "UNK", "UNKNOWN") yield a known-false date without error;
// anything else that fails every layout is a structural error.
func ParseDate(raw string) (PartialDate, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(raw))
	if _, ok := unknownTokens[trimmed]; ok {
		return PartialDate{}, nil
	}

	for _, candidate := range dateLayouts {
		if parsed, err := time.Parse(candidate.layout, strings.TrimSpace(raw)); err == nil {
			return PartialDate{t: parsed.UTC(), prec: candidate.prec}, nil
		}
	}

	return PartialDate{}, fmt.Errorf("unparseable date %q", raw)
}

// NewDate builds a day-precision date. Used heavily by tests and loaders.
func NewDate(year int, month time.Month, day int) PartialDate {
	return PartialDate{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), prec: PrecisionDay}
}

func NewDateTime(t time.Time) PartialDate {
	return PartialDate{t: t.UTC(), prec: PrecisionTime}
}

func (d PartialDate) Known() bool {
	return d.prec != PrecisionNone
}

func (d PartialDate) Precision() DatePrecision {
	return d.prec
}

// Time returns the truncated representative instant. Only meaningful when
// Known reports true.
func (d PartialDate) Time() time.Time {
	return d.t
}

func (d PartialDate) Before(other PartialDate) bool {
	if !d.Known() || !other.Known() {
		return false
	}
	return d.t.Before(other.t)
}

func (d PartialDate) After(other PartialDate) bool {
	if !d.Known() || !other.Known() {
		return false
	}
	return d.t.After(other.t)
}

func (d PartialDate) OnOrBefore(other PartialDate) bool {
	if !d.Known() || !other.Known() {
		return false
	}
	return !d.t.After(other.t)
}

func (d PartialDate) OnOrAfter(other PartialDate) bool {
	if !d.Known() || !other.Known() {
		return false
	}
	return !d.t.Before(other.t)
}

func (d PartialDate) Equal(other PartialDate) bool {
	if d.prec != other.prec {
		return false
	}
	if !d.Known() {
		return true
	}
	return d.t.Equal(other.t)
}

func (d PartialDate) String() string {
	switch d.prec {
	case PrecisionTime:
		return d.t.Format("2006-01-02T15:04:05")
	case PrecisionDay:
		return d.t.Format("2006-01-02")
	case PrecisionMonth:
		return d.t.Format("2006-01")
	case PrecisionYear:
		return d.t.Format("2006")
	default:
		return "UNK"
	}
}
