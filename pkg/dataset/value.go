package dataset

import (
	"strconv"
)

// ValueKind discriminates the tagged union carried by a measurement. A
// missing value always carries a reason so downstream code can tell
// "not collected" apart from zero.
type ValueKind int

const (
	ValueMissing ValueKind = iota
	ValueNumeric
	ValueText
	ValueDate
)

type Value struct {
	kind          ValueKind
	num           float64
	text          string
	date          PartialDate
	missingReason string
}

func NumericValue(v float64) Value {
	return Value{kind: ValueNumeric, num: v}
}

func TextValue(s string) Value {
	return Value{kind: ValueText, text: s}
}

func DateValue(d PartialDate) Value {
	return Value{kind: ValueDate, date: d}
}

func MissingValue(reason string) Value {
	if reason == "" {
		reason = "not collected"
	}
	return Value{kind: ValueMissing, missingReason: reason}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsMissing() bool {
	return v.kind == ValueMissing
}

func (v Value) MissingReason() string {
	return v.missingReason
}

// Float returns the numeric payload; ok is false for any other kind.
func (v Value) Float() (float64, bool) {
	if v.kind != ValueNumeric {
		return 0, false
	}
	return v.num, true
}

func (v Value) Text() (string, bool) {
	if v.kind != ValueText {
		return "", false
	}
	return v.text, true
}

func (v Value) Date() (PartialDate, bool) {
	if v.kind != ValueDate {
		return PartialDate{}, false
	}
	return v.date, true
}

func (v Value) String() string {
	switch v.kind {
	case ValueNumeric:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case ValueText:
		return v.text
	case ValueDate:
		return v.date.String()
	default:
		return ""
	}
}
