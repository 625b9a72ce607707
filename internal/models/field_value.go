package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FieldValue is a custom field value tagged with the type of the field it
// belongs to. Only the member matching Type is meaningful.
type FieldValue struct {
	Type    FieldType
	Text    string
	Number  float64
	Date    time.Time
	Checked bool
}

func TextValue(s string) FieldValue { return FieldValue{Type: FieldTypeText, Text: s} }
func LinkValue(s string) FieldValue { return FieldValue{Type: FieldTypeLink, Text: s} }
func DropdownValue(s string) FieldValue { return FieldValue{Type: FieldTypeDropdown, Text: s} }
func NumberValue(n float64) FieldValue { return FieldValue{Type: FieldTypeNumber, Number: n} }
func DateValue(t time.Time) FieldValue { return FieldValue{Type: FieldTypeDate, Date: t} }
func CheckboxValue(b bool) FieldValue { return FieldValue{Type: FieldTypeCheckbox, Checked: b} }

// IsEmpty reports whether the value counts as missing for required-field
// checks. Zero numbers and unchecked boxes are values.
func (v FieldValue) IsEmpty() bool {
	switch v.Type {
	case FieldTypeText, FieldTypeLink, FieldTypeDropdown:
		return v.Text == ""
	case FieldTypeDate:
		return v.Date.IsZero()
	case FieldTypeNumber, FieldTypeCheckbox:
		return false
	default:
		return true
	}
}

// Raw returns the untagged value.
func (v FieldValue) Raw() any {
	switch v.Type {
	case FieldTypeNumber:
		return v.Number
	case FieldTypeDate:
		return v.Date
	case FieldTypeCheckbox:
		return v.Checked
	default:
		return v.Text
	}
}

type fieldValueJSON struct {
	Type  FieldType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(v.Raw())
	if err != nil {
		return nil, err
	}
	return json.Marshal(fieldValueJSON{Type: v.Type, Value: raw})
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var wire fieldValueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := FieldValue{Type: wire.Type}
	var err error
	switch wire.Type {
	case FieldTypeText, FieldTypeLink, FieldTypeDropdown:
		err = json.Unmarshal(wire.Value, &out.Text)
	case FieldTypeNumber:
		err = json.Unmarshal(wire.Value, &out.Number)
	case FieldTypeDate:
		err = json.Unmarshal(wire.Value, &out.Date)
	case FieldTypeCheckbox:
		err = json.Unmarshal(wire.Value, &out.Checked)
	default:
		return fmt.Errorf("unknown field type %q", wire.Type)
	}
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", wire.Type, err)
	}

	*v = out
	return nil
}

// FieldValues maps custom field ids to their values.
type FieldValues map[string]FieldValue

// Clone returns a copy that shares no map storage with fv.
func (fv FieldValues) Clone() FieldValues {
	if fv == nil {
		return FieldValues{}
	}
	out := make(FieldValues, len(fv))
	for k, v := range fv {
		out[k] = v
	}
	return out
}
