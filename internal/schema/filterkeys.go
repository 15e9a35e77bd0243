package schema

// FilterKind says how a filter key applies to its metadata field.
type FilterKind int

const (
	// KindEquals matches the field value exactly ("country").
	KindEquals FilterKind = iota
	// KindFrom is the inclusive lower bound of a range ("dateFrom").
	KindFrom
	// KindTo is the inclusive upper bound of a range ("dateTo").
	KindTo
	// KindRegex matches the field against a regular expression ("country.regex").
	KindRegex
)

// FilterKey is a resolved generic filter key.
type FilterKey struct {
	Field MetadataField
	Kind  FilterKind
}

// Suffixes of derived filter keys.
const (
	SuffixFrom  = "From"
	SuffixTo    = "To"
	SuffixRegex = ".regex"
)

// buildFilterKeys derives the accepted filter keys from the metadata list.
// Plain field names take precedence over derived keys with the same spelling.
func buildFilterKeys(metadata []MetadataField) map[string]FilterKey {
	keys := make(map[string]FilterKey, len(metadata)*2)
	for _, f := range metadata {
		keys[fold(f.Name)] = FilterKey{Field: f, Kind: KindEquals}
	}

	add := func(name string, key FilterKey) {
		folded := fold(name)
		if _, taken := keys[folded]; !taken {
			keys[folded] = key
		}
	}
	for _, f := range metadata {
		switch f.Type {
		case TypeDate, TypeInt, TypeFloat:
			add(f.Name+SuffixFrom, FilterKey{Field: f, Kind: KindFrom})
			add(f.Name+SuffixTo, FilterKey{Field: f, Kind: KindTo})
		case TypeString, TypePangoLineage:
			add(f.Name+SuffixRegex, FilterKey{Field: f, Kind: KindRegex})
		case TypeBoolean:
		}
	}
	return keys
}

// FilterKey resolves a generic filter key case-insensitively.
// Unknown keys report false; callers forward them unchanged so the
// downstream engine can reject them.
func (s *Schema) FilterKey(key string) (FilterKey, bool) {
	k, ok := s.keys[fold(key)]
	return k, ok
}
