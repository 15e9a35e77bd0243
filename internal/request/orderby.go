package request

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/lapis/internal/ir"
)

// OrderByEntry is one unresolved order-by entry as the client sent it.
type OrderByEntry struct {
	Field string
	Order ir.Order
}

var randomPattern = regexp.MustCompile(`(?i)^random(?:\((-?\d+)\))?$`)

// ResolveOrderBy turns order-by entries into an OrderBySpec.
//
// A "random" or "random(<seed>)" entry selects random sampling and must be
// the only entry. Any other field is resolved case-insensitively against
// known; unknown fields are rejected with the list of known fields. The
// entry order is kept: the first field is the primary sort key.
func ResolveOrderBy(entries []OrderByEntry, known Resolver) (ir.OrderBySpec, error) {
	for _, e := range entries {
		m := randomPattern.FindStringSubmatch(strings.TrimSpace(e.Field))
		if m == nil {
			continue
		}
		if len(entries) > 1 {
			return nil, badRequest(PropOrderBy, "cannot mix 'random' with other orderBy fields")
		}
		if m[1] == "" {
			return ir.RandomOrder{}, nil
		}
		seed, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, badRequest(PropOrderBy, "invalid random seed '%s'", m[1])
		}
		return ir.RandomOrder{Seed: &seed}, nil
	}

	fields := make([]ir.OrderByField, 0, len(entries))
	for _, e := range entries {
		name, ok := known.Resolve(strings.TrimSpace(e.Field))
		if !ok {
			return nil, badRequest(PropOrderBy, "unknown field '%s', known values are [%s]",
				e.Field, strings.Join(known.Names(), ", "))
		}
		order := e.Order
		if order == "" {
			order = ir.Ascending
		}
		fields = append(fields, ir.OrderByField{Field: name, Order: order})
	}
	return ir.OrderByFields{Fields: fields}, nil
}

// orderByEntries reads the orderBy property. Accepted shapes:
//
//	"country"                            one ascending field
//	["country", {"field": "date", "type": "descending"}]
//	{"random": true} or {"random": 42}   random sampling, whole value or element
func (p Properties) orderByEntries() ([]OrderByEntry, error) {
	v, ok := p[PropOrderBy]
	if !ok {
		return nil, nil
	}
	switch val := v.(type) {
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		entries := make([]OrderByEntry, 0, len(val))
		for _, elem := range val {
			e, skip, err := orderByEntry(elem)
			if err != nil {
				return nil, err
			}
			if !skip {
				entries = append(entries, e)
			}
		}
		return entries, nil
	default:
		e, skip, err := orderByEntry(val)
		if err != nil || skip {
			return nil, err
		}
		return []OrderByEntry{e}, nil
	}
}

// orderByEntry parses one entry. skip is set for {"random": false}.
func orderByEntry(v ir.IRValue) (OrderByEntry, bool, error) {
	switch val := v.(type) {
	case ir.IRString:
		return OrderByEntry{Field: string(val), Order: ir.Ascending}, false, nil
	case ir.IRObject:
		if r, ok := val["random"]; ok {
			switch seed := r.(type) {
			case ir.IRBool:
				return OrderByEntry{Field: "random"}, !bool(seed), nil
			case ir.IRInt:
				return OrderByEntry{Field: "random(" + strconv.FormatInt(int64(seed), 10) + ")"}, false, nil
			default:
				return OrderByEntry{}, false, badRequest(PropOrderBy, "random must be a boolean or an integer seed")
			}
		}
		field, ok := val["field"].(ir.IRString)
		if !ok {
			return OrderByEntry{}, false, badRequest(PropOrderBy, "expected an object with a string 'field'")
		}
		order := ir.Ascending
		if t, present := val["type"]; present {
			ts, ok := t.(ir.IRString)
			if !ok || !ir.ValidOrders[ir.Order(strings.ToLower(string(ts)))] {
				return OrderByEntry{}, false, badRequest(PropOrderBy, "type must be 'ascending' or 'descending'")
			}
			order = ir.Order(strings.ToLower(string(ts)))
		}
		return OrderByEntry{Field: string(field), Order: order}, false, nil
	default:
		return OrderByEntry{}, false, badRequest(PropOrderBy, "expected a field name or an object, got %s", kindName(v))
	}
}
