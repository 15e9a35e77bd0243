package response

import (
	"bufio"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/roach88/lapis/internal/ir"
)

// encoder writes one format. begin receives the first record, or nil for
// an empty result.
type encoder interface {
	begin(first ir.Record) error
	record(r ir.Record) error
	end() error
}

func newEncoder(w *bufio.Writer, plan Plan, meta Meta) encoder {
	switch plan.Format {
	case NDJSON:
		return &ndjsonEncoder{w: w}
	case CSV:
		return &delimitedEncoder{w: w, sep: ',', headers: plan.Headers, columns: meta.Columns}
	case TSV:
		return &delimitedEncoder{w: w, sep: '\t', headers: plan.Headers, columns: meta.Columns}
	case FASTA:
		return &fastaEncoder{w: w, meta: meta}
	default:
		return &jsonEncoder{w: w, envelope: plan.Envelope, meta: meta}
	}
}

type jsonEncoder struct {
	w        *bufio.Writer
	envelope bool
	meta     Meta
	buf      []byte
	n        int
}

func (e *jsonEncoder) begin(ir.Record) error {
	if e.envelope {
		_, err := e.w.WriteString(`{"data":[`)
		return err
	}
	return e.w.WriteByte('[')
}

func (e *jsonEncoder) record(r ir.Record) error {
	e.buf = e.buf[:0]
	if e.n > 0 {
		e.buf = append(e.buf, ',')
	}
	e.n++
	var err error
	if e.buf, err = r.AppendJSON(e.buf); err != nil {
		return err
	}
	_, err = e.w.Write(e.buf)
	return err
}

type info struct {
	DataVersion string `json:"dataVersion"`
	RequestID   string `json:"requestId"`
	RequestInfo string `json:"requestInfo"`
	ReportTo    string `json:"reportTo"`
}

func (e *jsonEncoder) end() error {
	if !e.envelope {
		return e.w.WriteByte(']')
	}
	b, err := json.Marshal(info{
		DataVersion: e.meta.DataVersion,
		RequestID:   e.meta.RequestID,
		RequestInfo: e.meta.RequestInfo,
		ReportTo:    ReportTo,
	})
	if err != nil {
		return err
	}
	if _, err := e.w.WriteString(`],"info":`); err != nil {
		return err
	}
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	return e.w.WriteByte('}')
}

type ndjsonEncoder struct {
	w   *bufio.Writer
	buf []byte
}

func (e *ndjsonEncoder) begin(ir.Record) error { return nil }

func (e *ndjsonEncoder) record(r ir.Record) error {
	var err error
	if e.buf, err = r.AppendJSON(e.buf[:0]); err != nil {
		return err
	}
	e.buf = append(e.buf, '\n')
	_, err = e.w.Write(e.buf)
	return err
}

func (e *ndjsonEncoder) end() error { return nil }

// delimitedEncoder writes CSV or TSV. Rows end in "\n". Nulls are empty
// fields. Fields holding the separator, a quote or any control character
// are quoted.
type delimitedEncoder struct {
	w       *bufio.Writer
	sep     byte
	headers bool
	columns []string
}

func (e *delimitedEncoder) begin(first ir.Record) error {
	if len(e.columns) == 0 && first != nil {
		e.columns = first.Names()
	}
	if !e.headers || len(e.columns) == 0 {
		return nil
	}
	return e.row(e.columns)
}

func (e *delimitedEncoder) record(r ir.Record) error {
	fields := make([]string, len(e.columns))
	for i, c := range e.columns {
		fields[i], _ = ir.Text(r.Get(c))
	}
	return e.row(fields)
}

func (e *delimitedEncoder) end() error { return nil }

func (e *delimitedEncoder) row(fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := e.w.WriteByte(e.sep); err != nil {
				return err
			}
		}
		if err := e.field(f); err != nil {
			return err
		}
	}
	return e.w.WriteByte('\n')
}

func (e *delimitedEncoder) field(f string) error {
	if !e.needsQuotes(f) {
		_, err := e.w.WriteString(f)
		return err
	}
	if err := e.w.WriteByte('"'); err != nil {
		return err
	}
	if _, err := e.w.WriteString(strings.ReplaceAll(f, `"`, `""`)); err != nil {
		return err
	}
	return e.w.WriteByte('"')
}

func (e *delimitedEncoder) needsQuotes(f string) bool {
	for _, r := range f {
		if r == rune(e.sep) || r == '"' || unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// fastaEncoder writes one entry per present sequence column of a record.
type fastaEncoder struct {
	w    *bufio.Writer
	meta Meta
}

func (e *fastaEncoder) begin(ir.Record) error { return nil }

func (e *fastaEncoder) record(r ir.Record) error {
	key, _ := ir.Text(r.Get(e.meta.PrimaryKey))
	for _, col := range e.meta.Sequences {
		seq, ok := ir.Text(r.Get(col))
		if !ok {
			continue
		}
		if err := e.w.WriteByte('>'); err != nil {
			return err
		}
		if _, err := e.w.WriteString(key); err != nil {
			return err
		}
		if e.meta.LabelSegments {
			if err := e.w.WriteByte('|'); err != nil {
				return err
			}
			if _, err := e.w.WriteString(col); err != nil {
				return err
			}
		}
		if err := e.w.WriteByte('\n'); err != nil {
			return err
		}
		if _, err := e.w.WriteString(seq); err != nil {
			return err
		}
		if err := e.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

func (e *fastaEncoder) end() error { return nil }
