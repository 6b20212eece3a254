package dataset

import (
	"encoding/json"
	"fmt"
)

// PartialDate round-trips as its partial ISO-8601 string form.
func (d PartialDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *PartialDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type valueJSON struct {
	Kind    string       `json:"kind"`
	Num     *float64     `json:"num,omitempty"`
	Text    *string      `json:"text,omitempty"`
	Date    *PartialDate `json:"date,omitempty"`
	Missing string       `json:"missing,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{}
	switch v.kind {
	case ValueNumeric:
		out.Kind = "numeric"
		num := v.num
		out.Num = &num
	case ValueText:
		out.Kind = "text"
		text := v.text
		out.Text = &text
	case ValueDate:
		out.Kind = "date"
		date := v.date
		out.Date = &date
	default:
		out.Kind = "missing"
		out.Missing = v.missingReason
	}
	return json.Marshal(out)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "numeric":
		if raw.Num == nil {
			return fmt.Errorf("numeric value without num field")
		}
		*v = NumericValue(*raw.Num)
	case "text":
		if raw.Text == nil {
			return fmt.Errorf("text value without text field")
		}
		*v = TextValue(*raw.Text)
	case "date":
		if raw.Date == nil {
			return fmt.Errorf("date value without date field")
		}
		*v = DateValue(*raw.Date)
	case "missing", "":
		*v = MissingValue(raw.Missing)
	default:
		return fmt.Errorf("unknown value kind %q", raw.Kind)
	}
	return nil
}
