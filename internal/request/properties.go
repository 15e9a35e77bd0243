package request

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/lapis/internal/ir"
)

// Reserved request properties. Every other property is a metadata filter.
const (
	PropDataFormat           = "dataFormat"
	PropAccessKey            = "accessKey"
	PropMinProportion        = "minProportion"
	PropFields               = "fields"
	PropNucleotideMutations  = "nucleotideMutations"
	PropAminoAcidMutations   = "aminoAcidMutations"
	PropNucleotideInsertions = "nucleotideInsertions"
	PropAminoAcidInsertions  = "aminoAcidInsertions"
	PropOrderBy              = "orderBy"
	PropLimit                = "limit"
	PropOffset               = "offset"
	PropDownloadAsFile       = "downloadAsFile"
	PropDownloadFileBasename = "downloadFileBasename"
	PropCompression          = "compression"
	PropAdvancedQuery        = "advancedQuery"
)

var reserved = map[string]bool{
	PropDataFormat:           true,
	PropAccessKey:            true,
	PropMinProportion:        true,
	PropFields:               true,
	PropNucleotideMutations:  true,
	PropAminoAcidMutations:   true,
	PropNucleotideInsertions: true,
	PropAminoAcidInsertions:  true,
	PropOrderBy:              true,
	PropLimit:                true,
	PropOffset:               true,
	PropDownloadAsFile:       true,
	PropDownloadFileBasename: true,
	PropCompression:          true,
	PropAdvancedQuery:        true,
}

// IsReserved reports whether name is a reserved property rather than a
// metadata filter.
func IsReserved(name string) bool {
	return reserved[name]
}

// listProperties are reserved properties whose query-string form may be
// comma separated.
var listProperties = map[string]bool{
	PropFields:               true,
	PropNucleotideMutations:  true,
	PropAminoAcidMutations:   true,
	PropNucleotideInsertions: true,
	PropAminoAcidInsertions:  true,
	PropOrderBy:              true,
}

// Properties are the raw properties of one request, from either a JSON body
// or a query string.
type Properties map[string]ir.IRValue

// FromJSON decodes a POST body. The body must be a JSON object; an empty
// body is an empty request.
func FromJSON(body []byte) (Properties, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return Properties{}, nil
	}
	v, err := ir.UnmarshalIRValue(body)
	if err != nil {
		return nil, badRequest("", "invalid JSON body: %v", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, badRequest("", "request body must be a JSON object")
	}
	return Properties(obj), nil
}

// FromQuery converts a query string. Repeated keys become arrays. List
// properties are additionally split on commas, and the scalar typed
// properties are converted from their text form so that GET and POST
// requests parse identically.
func FromQuery(values url.Values) (Properties, error) {
	props := make(Properties, len(values))
	for key, vals := range values {
		switch {
		case listProperties[key]:
			var arr ir.IRArray
			for _, v := range vals {
				for _, part := range strings.Split(v, ",") {
					if part = strings.TrimSpace(part); part != "" {
						arr = append(arr, ir.IRString(part))
					}
				}
			}
			props[key] = arr
		case len(vals) == 1:
			v, err := queryScalar(key, vals[0])
			if err != nil {
				return nil, err
			}
			props[key] = v
		default:
			arr := make(ir.IRArray, len(vals))
			for i, v := range vals {
				arr[i] = ir.IRString(v)
			}
			props[key] = arr
		}
	}
	return props, nil
}

func queryScalar(key, raw string) (ir.IRValue, error) {
	switch key {
	case PropLimit, PropOffset:
		if raw == "" {
			return ir.IRNull{}, nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, badRequest(key, "'%s' is not an integer", raw)
		}
		return ir.IRInt(n), nil
	case PropMinProportion:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, badRequest(key, "'%s' is not a number", raw)
		}
		return ir.IRFloat(f), nil
	case PropDownloadAsFile:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, badRequest(key, "'%s' is not a boolean", raw)
		}
		return ir.IRBool(b), nil
	default:
		return ir.IRString(raw), nil
	}
}

// Generic returns the metadata filter properties coerced to lists of
// optional strings. A scalar becomes a one-element list, null becomes
// [null] and an array contributes one entry per element. Nested arrays and
// objects are rejected.
func (p Properties) Generic() (ir.SequenceFilters, error) {
	filters := make(ir.SequenceFilters)
	for key, v := range p {
		if IsReserved(key) {
			continue
		}
		values, err := filterValues(key, v)
		if err != nil {
			return nil, err
		}
		filters[key] = values
	}
	return filters, nil
}

func filterValues(key string, v ir.IRValue) ([]*string, error) {
	if arr, ok := v.(ir.IRArray); ok {
		values := make([]*string, 0, len(arr))
		for _, elem := range arr {
			s, err := filterScalar(key, elem)
			if err != nil {
				return nil, err
			}
			values = append(values, s)
		}
		return values, nil
	}
	s, err := filterScalar(key, v)
	if err != nil {
		return nil, err
	}
	return []*string{s}, nil
}

func filterScalar(key string, v ir.IRValue) (*string, error) {
	switch v.(type) {
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRArray, ir.IRObject:
		return nil, badRequest(key, "expected a string, number, boolean or null, got a nested %s", kindName(v))
	}
	s, _ := ir.Text(v)
	return &s, nil
}

func kindName(v ir.IRValue) string {
	switch v.(type) {
	case ir.IRArray:
		return "array"
	case ir.IRObject:
		return "object"
	case ir.IRString:
		return "string"
	case ir.IRInt, ir.IRFloat:
		return "number"
	case ir.IRBool:
		return "boolean"
	default:
		return "null"
	}
}

// stringList reads a list-of-strings property. A single string is a list
// of one; absent or null is an empty list.
func (p Properties) stringList(key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}
	switch val := v.(type) {
	case ir.IRNull:
		return nil, nil
	case ir.IRString:
		return []string{string(val)}, nil
	case ir.IRArray:
		out := make([]string, 0, len(val))
		for i, elem := range val {
			s, ok := elem.(ir.IRString)
			if !ok {
				return nil, badRequest(key, "element %d: expected a string, got %s", i, kindName(elem))
			}
			out = append(out, string(s))
		}
		return out, nil
	default:
		return nil, badRequest(key, "expected an array of strings, got %s", kindName(v))
	}
}

// optionalInt reads a non-negative integer property that may be absent or
// null.
func (p Properties) optionalInt(key string) (*int, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}
	var n int64
	switch val := v.(type) {
	case ir.IRNull:
		return nil, nil
	case ir.IRInt:
		n = int64(val)
	case ir.IRFloat:
		if float64(val) != float64(int64(val)) {
			return nil, badRequest(key, "expected an integer, got %v", float64(val))
		}
		n = int64(val)
	default:
		return nil, badRequest(key, "expected a number or null, got %s", kindName(v))
	}
	if n < 0 {
		return nil, badRequest(key, "must not be negative, got %d", n)
	}
	i := int(n)
	return &i, nil
}

func (p Properties) optionalString(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", nil
	}
	switch val := v.(type) {
	case ir.IRNull:
		return "", nil
	case ir.IRString:
		return string(val), nil
	default:
		return "", badRequest(key, "expected a string, got %s", kindName(v))
	}
}

func (p Properties) optionalBool(key string) (bool, error) {
	v, ok := p[key]
	if !ok {
		return false, nil
	}
	switch val := v.(type) {
	case ir.IRNull:
		return false, nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return false, badRequest(key, "expected a boolean, got %s", kindName(v))
	}
}

func (p Properties) optionalFloat(key string) (*float64, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}
	var f float64
	switch val := v.(type) {
	case ir.IRNull:
		return nil, nil
	case ir.IRInt:
		f = float64(val)
	case ir.IRFloat:
		f = float64(val)
	default:
		return nil, badRequest(key, "expected a number, got %s", kindName(v))
	}
	return &f, nil
}
