// Package schema describes the genome database served by the gateway:
// metadata fields and their types, the primary key, nucleotide segments and
// genes. It also provides the case-insensitive name resolution used wherever
// a client names a field, segment or gene.
package schema

import (
	"fmt"
	"strings"
)

// MetadataType is the type of a metadata column.
type MetadataType string

const (
	TypeString       MetadataType = "string"
	TypeInt          MetadataType = "int"
	TypeFloat        MetadataType = "float"
	TypeBoolean      MetadataType = "boolean"
	TypeDate         MetadataType = "date"
	TypePangoLineage MetadataType = "pango_lineage"
)

// ValidTypes defines the allowed metadata types.
var ValidTypes = map[MetadataType]bool{
	TypeString:       true,
	TypeInt:          true,
	TypeFloat:        true,
	TypeBoolean:      true,
	TypeDate:         true,
	TypePangoLineage: true,
}

// MetadataField is one metadata column.
type MetadataField struct {
	Name string       `json:"name" yaml:"name"`
	Type MetadataType `json:"type" yaml:"type"`
}

// Schema is the database description. Build it with New so the resolvers
// are populated.
type Schema struct {
	InstanceName        string
	PrimaryKey          string
	Metadata            []MetadataField
	Features            []string
	NucleotideSequences []string
	Genes               []string

	fields   *FieldResolver
	segments *FieldResolver
	genes    *FieldResolver
	byName   map[string]MetadataField
	keys     map[string]FilterKey
}

// New validates the description and builds the lookup tables.
// The returned Schema is read-only and safe for concurrent use.
func New(instanceName, primaryKey string, metadata []MetadataField, segments, genes []string) (*Schema, error) {
	if len(metadata) == 0 {
		return nil, fmt.Errorf("schema: at least one metadata field is required")
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("schema: at least one nucleotide sequence is required")
	}

	s := &Schema{
		InstanceName:        instanceName,
		PrimaryKey:          primaryKey,
		Metadata:            metadata,
		NucleotideSequences: segments,
		Genes:               genes,
		byName:              make(map[string]MetadataField, len(metadata)),
	}

	names := make([]string, 0, len(metadata))
	for i, f := range metadata {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("schema: metadata[%d]: name is required", i)
		}
		if !ValidTypes[f.Type] {
			return nil, fmt.Errorf("schema: metadata[%d]: invalid type %q for field %q", i, f.Type, f.Name)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate metadata field %q", f.Name)
		}
		s.byName[f.Name] = f
		names = append(names, f.Name)
	}
	if _, ok := s.byName[primaryKey]; !ok {
		return nil, fmt.Errorf("schema: primary key %q is not a metadata field", primaryKey)
	}

	var err error
	if s.fields, err = NewFieldResolver(names); err != nil {
		return nil, fmt.Errorf("schema: metadata: %w", err)
	}
	if s.segments, err = NewFieldResolver(segments); err != nil {
		return nil, fmt.Errorf("schema: nucleotide sequences: %w", err)
	}
	if s.genes, err = NewFieldResolver(genes); err != nil {
		return nil, fmt.Errorf("schema: genes: %w", err)
	}
	s.keys = buildFilterKeys(metadata)

	return s, nil
}

// Fields returns the metadata field resolver.
func (s *Schema) Fields() *FieldResolver { return s.fields }

// Segments returns the nucleotide segment resolver.
func (s *Schema) Segments() *FieldResolver { return s.segments }

// GeneNames returns the gene resolver.
func (s *Schema) GeneNames() *FieldResolver { return s.genes }

// Field returns the metadata field with the given canonical name.
func (s *Schema) Field(name string) (MetadataField, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// FieldNames returns all metadata field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Metadata))
	for i, f := range s.Metadata {
		names[i] = f.Name
	}
	return names
}

// IsMultiSegmented reports whether the genome has more than one segment.
// Single-segment genomes omit the segment name in mutation labels and FASTA
// headers.
func (s *Schema) IsMultiSegmented() bool {
	return len(s.NucleotideSequences) > 1
}

// DefaultSegment returns the only segment of a single-segment genome.
func (s *Schema) DefaultSegment() string {
	return s.NucleotideSequences[0]
}
