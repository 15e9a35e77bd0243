package compiler

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/queryir"
	"github.com/roach88/lapis/internal/request"
)

// Advanced query grammar, case-insensitive keywords:
//
//	expr    := and { ("|" | "OR") and }
//	and     := unary { ("&" | "AND") unary }
//	unary   := ("!" | "NOT") unary | primary
//	primary := "(" expr ")"
//	         | "MAYBE" "(" expr ")"
//	         | "[" ["exactly-"] N "-of:" expr { "," expr } "]"
//	         | atom
//	atom    := mutation | insertion | key "=" value
//
// An atom is a nucleotide mutation, an amino acid mutation, a nucleotide or
// amino acid insertion, or a metadata filter whose key follows the same
// rules as a request property (country=Germany, dateFrom=2021-01-01,
// pangoLineage=B.1.1.7*). Values containing spaces are single-quoted.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokLParen
	tokRParen
	tokRBracket
	tokNOf
	tokComma
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind tokenKind
	text string
	pos  int // 1-based column
}

var nOfHeader = regexp.MustCompile(`(?i)^\[\s*(exactly-)?(\d+)-of:`)

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '[', ']', ',', '&', '|', '!':
		return true
	}
	return false
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		pos := i + 1
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", pos})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", pos})
			i++
		case c == ']':
			tokens = append(tokens, token{tokRBracket, "]", pos})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ",", pos})
			i++
		case c == '&':
			tokens = append(tokens, token{tokAnd, "&", pos})
			i++
		case c == '|':
			tokens = append(tokens, token{tokOr, "|", pos})
			i++
		case c == '!':
			tokens = append(tokens, token{tokNot, "!", pos})
			i++
		case c == '[':
			m := nOfHeader.FindString(input[i:])
			if m == "" {
				return nil, &CompileError{Field: request.PropAdvancedQuery, Pos: pos,
					Message: "expected '[n-of:' or '[exactly-n-of:'"}
			}
			tokens = append(tokens, token{tokNOf, m, pos})
			i += len(m)
		default:
			start := i
			var b strings.Builder
			for i < len(input) && !isDelimiter(input[i]) {
				if input[i] == '\'' {
					end := strings.IndexByte(input[i+1:], '\'')
					if end < 0 {
						return nil, &CompileError{Field: request.PropAdvancedQuery, Pos: i + 1,
							Message: "unterminated quoted value"}
					}
					b.WriteString(input[i+1 : i+1+end])
					i += end + 2
					continue
				}
				b.WriteByte(input[i])
				i++
			}
			tokens = append(tokens, keyword(token{tokWord, b.String(), start + 1}))
		}
	}
	return append(tokens, token{tokEOF, "", len(input) + 1}), nil
}

// keyword turns the word operators into their symbol tokens.
func keyword(t token) token {
	switch strings.ToUpper(t.text) {
	case "AND":
		t.kind = tokAnd
	case "OR":
		t.kind = tokOr
	case "NOT":
		t.kind = tokNot
	}
	return t
}

type parser struct {
	c      *Compiler
	tokens []token
	i      int
}

// ParseAdvancedQuery parses an advanced query expression into a filter.
func (c *Compiler) ParseAdvancedQuery(input string) (queryir.Filter, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{c: c, tokens: tokens}
	f, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected '%s'", t.text)
	}
	return f, nil
}

func (p *parser) peek() token { return p.tokens[p.i] }

func (p *parser) next() token {
	t := p.tokens[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) *CompileError {
	e := compileErr(request.PropAdvancedQuery, format, args...)
	e.Pos = t.pos
	return e
}

func (p *parser) expect(kind tokenKind, what string) error {
	t := p.next()
	if t.kind != kind {
		if t.kind == tokEOF {
			return p.errorf(t, "expected %s, got end of input", what)
		}
		return p.errorf(t, "expected %s, got '%s'", what, t.text)
	}
	return nil
}

func (p *parser) expr() (queryir.Filter, error) {
	first, err := p.and()
	if err != nil {
		return nil, err
	}
	children := []queryir.Filter{first}
	for p.peek().kind == tokOr {
		p.next()
		f, err := p.and()
		if err != nil {
			return nil, err
		}
		children = append(children, f)
	}
	if len(children) == 1 {
		return first, nil
	}
	return queryir.Or{Children: children}, nil
}

func (p *parser) and() (queryir.Filter, error) {
	first, err := p.unary()
	if err != nil {
		return nil, err
	}
	children := []queryir.Filter{first}
	for p.peek().kind == tokAnd {
		p.next()
		f, err := p.unary()
		if err != nil {
			return nil, err
		}
		children = append(children, f)
	}
	if len(children) == 1 {
		return first, nil
	}
	return queryir.And{Children: children}, nil
}

func (p *parser) unary() (queryir.Filter, error) {
	if p.peek().kind == tokNot {
		p.next()
		f, err := p.unary()
		if err != nil {
			return nil, err
		}
		return queryir.Not{Child: f}, nil
	}
	return p.primary()
}

func (p *parser) primary() (queryir.Filter, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		f, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return f, nil

	case tokNOf:
		m := nOfHeader.FindStringSubmatch(t.text)
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, p.errorf(t, "invalid count in '%s'", t.text)
		}
		var children []queryir.Filter
		for {
			f, err := p.expr()
			if err != nil {
				return nil, err
			}
			children = append(children, f)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
		if err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		return queryir.NOf{N: n, MatchExactly: m[1] != "", Children: children}, nil

	case tokWord:
		if strings.EqualFold(t.text, "MAYBE") && p.peek().kind == tokLParen {
			p.next()
			f, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return queryir.Maybe{Child: f}, nil
		}
		return p.atom(t)

	case tokEOF:
		return nil, p.errorf(t, "unexpected end of input")
	default:
		return nil, p.errorf(t, "unexpected '%s'", t.text)
	}
}

func (p *parser) atom(t token) (queryir.Filter, error) {
	s := p.c.schema

	if key, value, ok := strings.Cut(t.text, "="); ok {
		if key == "" {
			return nil, p.errorf(t, "missing field name in '%s'", t.text)
		}
		nodes, err := p.c.metadataFilters(ir.SequenceFilters{key: {&value}})
		if err != nil {
			var ce *CompileError
			if errors.As(err, &ce) {
				ce.Pos = t.pos
			}
			return nil, err
		}
		return nodes[0], nil
	}

	if strings.HasPrefix(strings.ToLower(t.text), "ins_") {
		if ins, err := request.ParseNucleotideInsertion(t.text, s.Segments()); err == nil {
			return queryir.InsertionContains{SequenceName: ins.SequenceName, Position: ins.Position, Value: ins.Symbols}, nil
		}
		if ins, err := request.ParseAminoAcidInsertion(t.text, s.GeneNames()); err == nil {
			return queryir.AminoAcidInsertionContains{SequenceName: ins.Gene, Position: ins.Position, Value: ins.Symbols}, nil
		}
		return nil, p.errorf(t, "'%s' is not a valid insertion", t.text)
	}

	if m, err := request.ParseNucleotideMutation(t.text, s.Segments()); err == nil {
		return nucleotideMutationFilter(m), nil
	}
	if m, err := request.ParseAminoAcidMutation(t.text, s.GeneNames()); err == nil {
		return aminoAcidMutationFilter(m), nil
	}
	return nil, p.errorf(t, "'%s' is neither a mutation, an insertion nor a metadata filter", t.text)
}
