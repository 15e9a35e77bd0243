package response

import (
	"iter"
	"mime"
	"net/http"

	"github.com/roach88/lapis/internal/ir"
)

// DataVersionHeader carries the data version of every result.
const DataVersionHeader = "Lapis-Data-Version"

// ReportTo is the fixed info.reportTo text of enveloped responses.
const ReportTo = "Please report to https://github.com/GenSpectrum/LAPIS/issues in case you encounter any unexpected issues. " +
	"Please include the request ID and the requestInfo in your report."

// Meta is the per-response information that is not part of the rows.
type Meta struct {
	DataVersion string
	RequestID   string
	RequestInfo string

	// Columns is the CSV/TSV column order. Empty means the field order of
	// the first record.
	Columns []string

	// PrimaryKey and Sequences name the FASTA header and sequence columns.
	PrimaryKey string
	Sequences  []string
	// LabelSegments writes FASTA headers as >key|column.
	LabelSegments bool
}

// Stream writes rows to w as planned.
//
// The first row is pulled before anything is sent: if it fails, Stream
// returns that error and w is untouched, so the caller can still send an
// error response. Failures after that point are *AbortedError (a row failed)
// or *ClientDisconnectedError (a write failed); the response is then
// incomplete and the caller must abort it.
func Stream(w http.ResponseWriter, plan Plan, meta Meta, rows iter.Seq2[ir.Record, error]) error {
	next, stop := iter.Pull2(rows)
	defer stop()

	first, err, more := next()
	if more && err != nil {
		return err
	}

	setHeaders(w.Header(), plan, meta)
	w.WriteHeader(http.StatusOK)

	s := newSink(w, plan.Compression)
	enc := newEncoder(s.Writer, plan, meta)
	err = encode(enc, first, more, next)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func encode(enc encoder, rec ir.Record, more bool, next func() (ir.Record, error, bool)) error {
	if !more {
		rec = nil
	}
	if err := enc.begin(rec); err != nil {
		return err
	}
	n := 0
	for more {
		if err := enc.record(rec); err != nil {
			return err
		}
		n++
		var err error
		rec, err, more = next()
		if more && err != nil {
			return &AbortedError{Rows: n, Err: err}
		}
	}
	return enc.end()
}

func setHeaders(h http.Header, plan Plan, meta Meta) {
	h.Set("Content-Type", plan.ContentType())
	h.Set(DataVersionHeader, meta.DataVersion)
	h.Add("Vary", "Accept")
	h.Add("Vary", "Accept-Encoding")
	if plan.Compression != NoCompression && plan.CompressionSource == FromAcceptEncoding {
		h.Set("Content-Encoding", string(plan.Compression))
	}
	if plan.Filename != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": plan.Filename}))
	}
	h.Del("Content-Length")
}
