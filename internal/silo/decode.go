package silo

import (
	"context"
	"iter"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/queryir"
)

// Decoder turns one parsed response line into a row.
type Decoder[T any] func(v *fastjson.Value) (T, error)

// Decode parses every line of lines with decode. A line that is not JSON
// or does not fit the row type yields a ParseError carrying the line, and
// iteration stops.
func Decode[T any](lines iter.Seq2[[]byte, error], decode Decoder[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		var p fastjson.Parser
		for line, err := range lines {
			if err != nil {
				yield(zero, err)
				return
			}
			v, err := p.ParseBytes(line)
			if err != nil {
				yield(zero, &ParseError{Line: string(line), Err: err})
				return
			}
			row, err := decode(v)
			if err != nil {
				yield(zero, &ParseError{Line: string(line), Err: err})
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Rows is a decoded engine answer.
type Rows[T any] struct {
	DataVersion string
	// Cached is set when the rows were served from a cache.
	Cached bool

	res    *Result
	decode Decoder[T]
}

// All yields the rows. It is single-pass for a streamed result.
func (r *Rows[T]) All() iter.Seq2[T, error] {
	return Decode(r.res.Lines(), r.decode)
}

// Close releases the underlying response.
func (r *Rows[T]) Close() error {
	return r.res.Close()
}

// Execute runs q on engine and decodes its rows with decode. The data
// version is known before any row is read.
func Execute[T any](ctx context.Context, engine Querier, q queryir.Query, decode Decoder[T]) (*Rows[T], error) {
	res, err := engine.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Rows[T]{DataVersion: res.DataVersion, Cached: res.Cached, res: res, decode: decode}, nil
}

// DecodeRecord keeps the engine's key order, which is the column order of
// tabular output.
func DecodeRecord(v *fastjson.Value) (ir.Record, error) {
	o, err := v.Object()
	if err != nil {
		return nil, errors.New("expected a JSON object")
	}
	rec := make(ir.Record, 0, o.Len())
	var visitErr error
	o.Visit(func(key []byte, v *fastjson.Value) {
		if visitErr != nil {
			return
		}
		val, err := irValue(v)
		if err != nil {
			visitErr = errors.Wrapf(err, "field %q", key)
			return
		}
		rec = append(rec, ir.Field{Name: string(key), Value: val})
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return rec, nil
}

func irValue(v *fastjson.Value) (ir.IRValue, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return ir.IRNull{}, nil
	case fastjson.TypeString:
		s, _ := v.StringBytes()
		return ir.IRString(s), nil
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return ir.IRInt(n), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return ir.IRFloat(f), nil
	case fastjson.TypeTrue:
		return ir.IRBool(true), nil
	case fastjson.TypeFalse:
		return ir.IRBool(false), nil
	case fastjson.TypeArray:
		items, _ := v.Array()
		arr := make(ir.IRArray, len(items))
		for i, item := range items {
			val, err := irValue(item)
			if err != nil {
				return nil, err
			}
			arr[i] = val
		}
		return arr, nil
	case fastjson.TypeObject:
		o, _ := v.Object()
		obj := make(ir.IRObject, o.Len())
		var visitErr error
		o.Visit(func(key []byte, v *fastjson.Value) {
			val, err := irValue(v)
			if err != nil {
				visitErr = err
				return
			}
			obj[string(key)] = val
		})
		return obj, visitErr
	default:
		return nil, errors.Errorf("unsupported JSON type %s", v.Type())
	}
}

// DecodeMutation reads a mutation proportion row. Every field except
// sequenceName is required; a null sequenceName is the single unnamed
// segment.
func DecodeMutation(v *fastjson.Value) (queryir.MutationData, error) {
	var m queryir.MutationData
	var err error
	if m.Mutation, err = requiredString(v, "mutation"); err != nil {
		return m, err
	}
	if m.MutationFrom, err = requiredString(v, "mutationFrom"); err != nil {
		return m, err
	}
	if m.MutationTo, err = requiredString(v, "mutationTo"); err != nil {
		return m, err
	}
	if m.Position, err = requiredInt(v, "position"); err != nil {
		return m, err
	}
	if m.Count, err = requiredInt(v, "count"); err != nil {
		return m, err
	}
	if m.Coverage, err = requiredInt(v, "coverage"); err != nil {
		return m, err
	}
	if m.Proportion, err = requiredFloat(v, "proportion"); err != nil {
		return m, err
	}
	m.SequenceName = optionalString(v, "sequenceName")
	return m, nil
}

// DecodeInsertion reads an insertion count row.
func DecodeInsertion(v *fastjson.Value) (queryir.InsertionData, error) {
	var ins queryir.InsertionData
	var err error
	if ins.Insertion, err = requiredString(v, "insertion"); err != nil {
		return ins, err
	}
	if ins.InsertedSymbols, err = requiredString(v, "insertedSymbols"); err != nil {
		return ins, err
	}
	if ins.Position, err = requiredInt(v, "position"); err != nil {
		return ins, err
	}
	if ins.Count, err = requiredInt(v, "count"); err != nil {
		return ins, err
	}
	ins.SequenceName = optionalString(v, "sequenceName")
	return ins, nil
}

func requiredString(v *fastjson.Value, key string) (string, error) {
	f := v.Get(key)
	if f == nil || f.Type() != fastjson.TypeString {
		return "", errors.Errorf("field %q: expected a string", key)
	}
	s, _ := f.StringBytes()
	return string(s), nil
}

func optionalString(v *fastjson.Value, key string) string {
	f := v.Get(key)
	if f == nil || f.Type() != fastjson.TypeString {
		return ""
	}
	s, _ := f.StringBytes()
	return string(s)
}

func requiredInt(v *fastjson.Value, key string) (int, error) {
	f := v.Get(key)
	if f == nil {
		return 0, errors.Errorf("field %q: missing", key)
	}
	n, err := f.Int()
	if err != nil {
		return 0, errors.Wrapf(err, "field %q", key)
	}
	return n, nil
}

func requiredFloat(v *fastjson.Value, key string) (float64, error) {
	f := v.Get(key)
	if f == nil {
		return 0, errors.Errorf("field %q: missing", key)
	}
	x, err := f.Float64()
	if err != nil {
		return 0, errors.Wrapf(err, "field %q", key)
	}
	return x, nil
}
