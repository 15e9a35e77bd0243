package server

import (
	"iter"
	"strconv"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/queryir"
)

// labeler renders mutation and insertion rows with their human label.
// Unsegmented rows (single-segment nucleotide genomes) carry no sequence
// name: A123T, ins_123:AT. Segmented rows name it: S:N501Y,
// ins_S:214:EPE.
type labeler struct {
	segmented bool
}

func (l labeler) prefix(sequenceName string) string {
	if !l.segmented {
		return ""
	}
	return sequenceName + ":"
}

func (l labeler) sequenceName(name string) ir.IRValue {
	if !l.segmented {
		return ir.IRNull{}
	}
	return ir.IRString(name)
}

func (l labeler) mutation(m queryir.MutationData) ir.Record {
	label := l.prefix(m.SequenceName) + m.MutationFrom + strconv.Itoa(m.Position) + m.MutationTo
	return ir.Record{
		{Name: "mutation", Value: ir.IRString(label)},
		{Name: "proportion", Value: ir.IRFloat(m.Proportion)},
		{Name: "count", Value: ir.IRInt(m.Count)},
		{Name: "coverage", Value: ir.IRInt(m.Coverage)},
		{Name: "sequenceName", Value: l.sequenceName(m.SequenceName)},
		{Name: "mutationFrom", Value: ir.IRString(m.MutationFrom)},
		{Name: "mutationTo", Value: ir.IRString(m.MutationTo)},
		{Name: "position", Value: ir.IRInt(m.Position)},
	}
}

func (l labeler) insertion(in queryir.InsertionData) ir.Record {
	label := "ins_" + l.prefix(in.SequenceName) + strconv.Itoa(in.Position) + ":" + in.InsertedSymbols
	return ir.Record{
		{Name: "insertion", Value: ir.IRString(label)},
		{Name: "count", Value: ir.IRInt(in.Count)},
		{Name: "insertedSymbols", Value: ir.IRString(in.InsertedSymbols)},
		{Name: "position", Value: ir.IRInt(in.Position)},
		{Name: "sequenceName", Value: l.sequenceName(in.SequenceName)},
	}
}

// project keeps the named fields in the given order.
func project(r ir.Record, fields []string) ir.Record {
	out := make(ir.Record, 0, len(fields))
	for _, name := range fields {
		if v := r.Get(name); v != nil {
			out = append(out, ir.Field{Name: name, Value: v})
		}
	}
	return out
}

// mapRows converts each row of seq with f. Errors pass through.
func mapRows[T any](seq iter.Seq2[T, error], f func(T) ir.Record) iter.Seq2[ir.Record, error] {
	return func(yield func(ir.Record, error) bool) {
		for v, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(f(v), nil) {
				return
			}
		}
	}
}
