package request

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/lapis/internal/ir"
)

// Resolver resolves user-supplied names against a closed set of canonical
// names. *schema.FieldResolver implements it.
type Resolver interface {
	Resolve(name string) (string, bool)
	Names() []string
}

var (
	maybePattern = regexp.MustCompile(`(?i)^MAYBE\((.*)\)$`)

	nucleotideMutationPattern = regexp.MustCompile(
		`(?i)^(?:(?P<segment>[a-z0-9_-]+):)?(?P<from>[a-z])?(?P<position>\d+)(?P<symbol>[a-z.-])?$`)

	aminoAcidMutationPattern = regexp.MustCompile(
		`(?i)^(?P<gene>[a-z0-9_-]+):(?P<from>[a-z*])?(?P<position>\d+)(?P<symbol>[a-z.*-])?$`)

	nucleotideInsertionPattern = regexp.MustCompile(
		`(?i)^ins_(?:(?P<segment>[a-z0-9_-]+):)?(?P<position>\d+):(?P<symbols>(?:[a-z?]|\.\*)+)$`)

	aminoAcidInsertionPattern = regexp.MustCompile(
		`(?i)^ins_(?P<gene>[a-z0-9_-]+):(?P<position>\d+):(?P<symbols>(?:[a-z?*]|\.\*|\\\*)+)$`)
)

// unwrapMaybe strips one MAYBE(...) wrapper. Nesting is not supported; the
// inner text of MAYBE(MAYBE(123A)) fails the mutation pattern.
func unwrapMaybe(s string) (string, bool) {
	if m := maybePattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return s, false
}

// submatches returns the named capture groups of re in s, or nil when s does
// not match.
func submatches(re *regexp.Regexp, s string) map[string]string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	groups := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}
	return groups
}

func parsePosition(property, input, raw string) (int, error) {
	pos, err := strconv.Atoi(raw)
	if err != nil || pos <= 0 {
		return 0, badRequest(property, "invalid position in '%s'", input)
	}
	return pos, nil
}

func resolveName(property, kind, input, name string, known Resolver) (string, error) {
	canonical, ok := known.Resolve(name)
	if !ok {
		return "", badRequest(property, "unknown %s '%s' in '%s', known values are [%s]",
			kind, name, input, strings.Join(known.Names(), ", "))
	}
	return canonical, nil
}

// ParseNucleotideMutation parses "[segment:][from]position[to]", optionally
// wrapped in MAYBE(...). The segment is resolved case-insensitively against
// segments; symbols are upper-cased.
func ParseNucleotideMutation(s string, segments Resolver) (ir.NucleotideMutation, error) {
	const property = PropNucleotideMutations

	inner, maybe := unwrapMaybe(strings.TrimSpace(s))
	g := submatches(nucleotideMutationPattern, inner)
	if g == nil {
		return ir.NucleotideMutation{}, badRequest(property, "failed to parse nucleotide mutation '%s'", s)
	}

	m := ir.NucleotideMutation{
		Symbol: strings.ToUpper(g["symbol"]),
		Maybe:  maybe,
	}
	var err error
	if m.Position, err = parsePosition(property, s, g["position"]); err != nil {
		return ir.NucleotideMutation{}, err
	}
	if g["segment"] != "" {
		if m.SequenceName, err = resolveName(property, "segment", s, g["segment"], segments); err != nil {
			return ir.NucleotideMutation{}, err
		}
	}
	return m, nil
}

// ParseAminoAcidMutation parses "gene:[from]position[to]", optionally
// wrapped in MAYBE(...). The gene is required.
func ParseAminoAcidMutation(s string, genes Resolver) (ir.AminoAcidMutation, error) {
	const property = PropAminoAcidMutations

	inner, maybe := unwrapMaybe(strings.TrimSpace(s))
	g := submatches(aminoAcidMutationPattern, inner)
	if g == nil {
		return ir.AminoAcidMutation{}, badRequest(property, "failed to parse amino acid mutation '%s'", s)
	}

	m := ir.AminoAcidMutation{
		Symbol: strings.ToUpper(g["symbol"]),
		Maybe:  maybe,
	}
	var err error
	if m.Position, err = parsePosition(property, s, g["position"]); err != nil {
		return ir.AminoAcidMutation{}, err
	}
	if m.Gene, err = resolveName(property, "gene", s, g["gene"], genes); err != nil {
		return ir.AminoAcidMutation{}, err
	}
	return m, nil
}

// ParseNucleotideInsertion parses "ins_[segment:]position:symbols".
func ParseNucleotideInsertion(s string, segments Resolver) (ir.NucleotideInsertion, error) {
	const property = PropNucleotideInsertions

	in := strings.TrimSpace(s)
	g := submatches(nucleotideInsertionPattern, in)
	if g == nil {
		return ir.NucleotideInsertion{}, badRequest(property, "failed to parse nucleotide insertion '%s'", s)
	}

	ins := ir.NucleotideInsertion{Symbols: normalizeInsertion(g["symbols"], false)}
	var err error
	if ins.Position, err = parsePosition(property, s, g["position"]); err != nil {
		return ir.NucleotideInsertion{}, err
	}
	if g["segment"] != "" {
		if ins.SequenceName, err = resolveName(property, "segment", s, g["segment"], segments); err != nil {
			return ir.NucleotideInsertion{}, err
		}
	}
	return ins, nil
}

// ParseAminoAcidInsertion parses "ins_gene:position:symbols". A "*" is a
// stop codon and is escaped so it stays literal in the downstream regex.
func ParseAminoAcidInsertion(s string, genes Resolver) (ir.AminoAcidInsertion, error) {
	const property = PropAminoAcidInsertions

	in := strings.TrimSpace(s)
	g := submatches(aminoAcidInsertionPattern, in)
	if g == nil {
		return ir.AminoAcidInsertion{}, badRequest(property, "failed to parse amino acid insertion '%s'", s)
	}

	ins := ir.AminoAcidInsertion{Symbols: normalizeInsertion(g["symbols"], true)}
	var err error
	if ins.Position, err = parsePosition(property, s, g["position"]); err != nil {
		return ir.AminoAcidInsertion{}, err
	}
	if ins.Gene, err = resolveName(property, "gene", s, g["gene"], genes); err != nil {
		return ir.AminoAcidInsertion{}, err
	}
	return ins, nil
}

// normalizeInsertion upper-cases letters and rewrites every "?" to the ".*"
// wildcard. With stopCodons, a bare "*" becomes "\*"; an existing ".*" or
// "\*" token is kept as is.
func normalizeInsertion(symbols string, stopCodons bool) string {
	var b strings.Builder
	for i := 0; i < len(symbols); i++ {
		c := symbols[i]
		switch {
		case c == '.' && i+1 < len(symbols) && symbols[i+1] == '*':
			b.WriteString(".*")
			i++
		case c == '\\' && i+1 < len(symbols) && symbols[i+1] == '*':
			b.WriteString(`\*`)
			i++
		case c == '?':
			b.WriteString(".*")
		case c == '*' && stopCodons:
			b.WriteString(`\*`)
		default:
			b.WriteString(strings.ToUpper(string(c)))
		}
	}
	return b.String()
}
