package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind variant tag of an InputValue
type ValueKind string

const (
	ValueNull    ValueKind = "NULL"
	ValueText    ValueKind = "TEXT"
	ValueNumber  ValueKind = "NUMBER"
	ValueBoolean ValueKind = "BOOLEAN"
	ValueDate    ValueKind = "DATE"
	ValueFiles   ValueKind = "FILES"
	ValueTable   ValueKind = "TABLE"
)

// InputValue typed view of InputInstance.value. The stored and wire form
// stays plain JSON; the variant is chosen by the input template type.
type InputValue struct {
	Kind   ValueKind
	Text   string
	Number float64
	Bool   bool
	Files  []string
	Table  json.RawMessage
}

func NullValue() InputValue                { return InputValue{Kind: ValueNull} }
func TextValue(s string) InputValue        { return InputValue{Kind: ValueText, Text: s} }
func NumberValue(f float64) InputValue     { return InputValue{Kind: ValueNumber, Number: f} }
func BooleanValue(b bool) InputValue       { return InputValue{Kind: ValueBoolean, Bool: b} }
func DateValue(s string) InputValue        { return InputValue{Kind: ValueDate, Text: s} }
func FilesValue(paths []string) InputValue { return InputValue{Kind: ValueFiles, Files: paths} }

// DecodeInputValue interprets raw JSON according to the input type.
// Number inputs accept a JSON number or a numeric string; any other string
// is kept as text so a bad entry is stored rather than rejected.
func DecodeInputValue(t InputType, raw []byte) (InputValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return NullValue(), nil
	}

	switch t {
	case InputNumber, InputAmount:
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return NumberValue(f), nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return InputValue{}, fmt.Errorf("%s value must be a number or string", t)
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return NumberValue(f), nil
		}
		return TextValue(s), nil

	case InputBoolean, InputCheckbox:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return BooleanValue(b), nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return BooleanValue(b), nil
			}
		}
		return InputValue{}, fmt.Errorf("%s value must be a boolean", t)

	case InputFile, InputMultipleFiles:
		var one string
		if err := json.Unmarshal(raw, &one); err == nil {
			return FilesValue([]string{one}), nil
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err != nil {
			return InputValue{}, fmt.Errorf("%s value must be a path or a list of paths", t)
		}
		if t == InputFile && len(many) > 1 {
			return InputValue{}, fmt.Errorf("%s accepts a single file", t)
		}
		return FilesValue(many), nil

	case InputDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return InputValue{}, fmt.Errorf("%s value must be a string", t)
		}
		if _, err := parseDate(s); err != nil {
			return InputValue{}, fmt.Errorf("%s value %q is not a date", t, s)
		}
		return DateValue(s), nil

	case InputTable:
		if !json.Valid(raw) {
			return InputValue{}, fmt.Errorf("%s value is not valid JSON", t)
		}
		return InputValue{Kind: ValueTable, Table: append(json.RawMessage(nil), raw...)}, nil

	default:
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return TextValue(s), nil
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return TextValue(strconv.FormatFloat(f, 'f', -1, 64)), nil
		}
		return InputValue{}, fmt.Errorf("%s value must be a string", t)
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// IsNull no value set
func (v InputValue) IsNull() bool {
	return v.Kind == "" || v.Kind == ValueNull
}

// Float numeric reading of the value, used by ordering comparisons.
func (v InputValue) Float() (float64, bool) {
	switch v.Kind {
	case ValueNumber:
		return v.Number, true
	case ValueText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String textual reading of the value, used by EQUALS fallback.
func (v InputValue) String() string {
	switch v.Kind {
	case ValueText, ValueDate:
		return v.Text
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueBoolean:
		return strconv.FormatBool(v.Bool)
	case ValueFiles:
		return strings.Join(v.Files, ",")
	case ValueTable:
		return string(v.Table)
	default:
		return ""
	}
}

// JSON storage encoding
func (v InputValue) JSON() (RawJSON, error) {
	var (
		b   []byte
		err error
	)
	switch v.Kind {
	case ValueText, ValueDate:
		b, err = json.Marshal(v.Text)
	case ValueNumber:
		b, err = json.Marshal(v.Number)
	case ValueBoolean:
		b, err = json.Marshal(v.Bool)
	case ValueFiles:
		b, err = json.Marshal(v.Files)
	case ValueTable:
		b = v.Table
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return RawJSON(b), nil
}
