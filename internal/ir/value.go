package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// IRValue is a sealed interface representing JSON values flowing between the
// downstream engine and the client.
// Only IRNull, IRString, IRInt, IRFloat, IRBool, IRArray and IRObject implement it.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value.
// Using an explicit type ensures all IRValues satisfy the sealed interface.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integral number.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a non-integral number (proportions, coverage ratios).
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to JSON bytes.
// A nil IRValue is written as null.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case IRFloat:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite number %v cannot be encoded", f)
		}
		return json.Marshal(f)
	case IRBool:
		return strconv.AppendBool(nil, bool(val)), nil
	case IRArray:
		return marshalIRArray(val)
	case IRObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

func marshalIRArray(arr IRArray) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalIRValue deserializes JSON into an IRValue.
// Integral numbers become IRInt, all other numbers IRFloat, null becomes IRNull.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// FromGo converts a decoded Go value (as produced by encoding/json with
// UseNumber, or by yaml.v3) into an IRValue.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case float64:
		return numberValue(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return IRInt(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return IRFloat(f), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// numberValue keeps integral floats as IRInt so that counts decoded through
// float64 paths render without a fractional part.
func numberValue(f float64) IRValue {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return IRInt(int64(f))
	}
	return IRFloat(f)
}

// Text renders a scalar value for delimited text output.
// Null renders as the empty string and reports false.
// Arrays and objects render as compact JSON.
func Text(v IRValue) (string, bool) {
	switch val := v.(type) {
	case nil, IRNull:
		return "", false
	case IRString:
		return string(val), true
	case IRInt:
		return strconv.FormatInt(int64(val), 10), true
	case IRFloat:
		return strconv.FormatFloat(float64(val), 'f', -1, 64), true
	case IRBool:
		return strconv.FormatBool(bool(val)), true
	default:
		b, err := MarshalIRValue(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value IRValue
}

// Record is an ordered list of named values.
// Order is significant: it is the column order of CSV output and the key
// order of JSON output.
type Record []Field

// Get returns the value stored under name, or nil.
func (r Record) Get(name string) IRValue {
	for _, f := range r {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// Has reports whether the record contains a field called name.
func (r Record) Has(name string) bool {
	for _, f := range r {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Names returns the field names in record order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// MarshalJSON writes the record as a JSON object preserving field order.
func (r Record) MarshalJSON() ([]byte, error) {
	return r.AppendJSON(nil)
}

// AppendJSON appends the JSON encoding of the record to buf.
func (r Record) AppendJSON(buf []byte) ([]byte, error) {
	buf = append(buf, '{')
	for i, f := range r {
		if i > 0 {
			buf = append(buf, ',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("field name %q: %w", f.Name, err)
		}
		buf = append(buf, name...)
		buf = append(buf, ':')
		val, err := MarshalIRValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}
