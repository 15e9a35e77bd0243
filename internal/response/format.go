// Package response serializes result rows onto the HTTP response.
//
// Negotiate picks the output format, compression and download name from
// the request properties and headers before anything is written. Stream
// then writes the rows incrementally in that format. Rows are never
// buffered in full.
package response

import (
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/lapis/internal/request"
)

// Format is an output format.
type Format int

const (
	JSON Format = iota
	NDJSON
	CSV
	TSV
	FASTA
)

var formatNames = map[Format]string{
	JSON:   "JSON",
	NDJSON: "NDJSON",
	CSV:    "CSV",
	TSV:    "TSV",
	FASTA:  "FASTA",
}

func (f Format) String() string {
	return formatNames[f]
}

// ContentType is the media type of the uncompressed format.
func (f Format) ContentType() string {
	switch f {
	case NDJSON:
		return "application/x-ndjson"
	case CSV:
		return "text/csv"
	case TSV:
		return "text/tab-separated-values"
	case FASTA:
		return "text/x-fasta"
	default:
		return "application/json"
	}
}

// Extension is the file extension of downloads.
func (f Format) Extension() string {
	switch f {
	case NDJSON:
		return "ndjson"
	case CSV:
		return "csv"
	case TSV:
		return "tsv"
	case FASTA:
		return "fasta"
	default:
		return "json"
	}
}

// Compression is an optional output codec.
type Compression string

const (
	NoCompression Compression = ""
	Gzip          Compression = request.CompressionGzip
	Zstd          Compression = request.CompressionZstd
)

func (c Compression) contentType() string {
	switch c {
	case Gzip:
		return "application/gzip"
	case Zstd:
		return "application/zstd"
	default:
		return ""
	}
}

func (c Compression) extension() string {
	switch c {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// CompressionSource says how compression was selected. It decides whether
// the codec is announced as Content-Encoding or as the content type.
type CompressionSource int

const (
	// FromProperty: the compression request property. The compressed
	// bytes are the payload and the content type is the codec's.
	FromProperty CompressionSource = iota
	// FromAcceptEncoding: HTTP content coding. The content type stays the
	// format's and Content-Encoding names the codec.
	FromAcceptEncoding
)

// Options describe what an endpoint can produce.
type Options struct {
	// Default is used when neither dataFormat nor Accept selects a format.
	Default Format
	// Allowed lists the formats of the endpoint; Default must be one.
	Allowed []Format
	// Envelope wraps non-download JSON as {"data": [...], "info": {...}}.
	Envelope bool
	// Basename names downloads when the request gives none.
	Basename string
}

// Plan is the negotiated shape of a response.
type Plan struct {
	Format            Format
	Headers           bool
	Envelope          bool
	Compression       Compression
	CompressionSource CompressionSource
	// Filename is set when the response is a download.
	Filename string
}

// ContentType is the value of the Content-Type header.
func (p Plan) ContentType() string {
	if p.Compression != NoCompression && p.CompressionSource == FromProperty {
		return p.Compression.contentType()
	}
	ct := p.Format.ContentType()
	if p.Format != JSON && p.Format != NDJSON {
		ct += "; charset=utf-8"
	}
	if (p.Format == CSV || p.Format == TSV) && !p.Headers {
		ct += "; headers=false"
	}
	return ct
}

// NotAcceptableError means no allowed format matches the Accept header.
type NotAcceptableError struct {
	Accept    string
	Supported []string
}

func (e *NotAcceptableError) Error() string {
	return fmt.Sprintf("cannot produce any of '%s', supported types are [%s]",
		e.Accept, strings.Join(e.Supported, ", "))
}

// Negotiate builds the response plan. The dataFormat property wins over
// the Accept header. The compression property wins over Accept-Encoding.
func Negotiate(r *http.Request, out request.Output, opts Options) (Plan, error) {
	plan := Plan{Format: opts.Default, Headers: true}

	if out.DataFormat != "" {
		f, headers, err := parseDataFormat(out.DataFormat, opts.Allowed)
		if err != nil {
			return Plan{}, err
		}
		plan.Format, plan.Headers = f, headers
	} else if accept := r.Header.Get("Accept"); accept != "" {
		f, headers, err := fromAccept(accept, opts)
		if err != nil {
			return Plan{}, err
		}
		plan.Format, plan.Headers = f, headers
	}

	if out.Compression != "" {
		plan.Compression = Compression(out.Compression)
		plan.CompressionSource = FromProperty
	} else if c := fromAcceptEncoding(r.Header.Get("Accept-Encoding")); c != NoCompression {
		plan.Compression = c
		plan.CompressionSource = FromAcceptEncoding
	}

	if out.DownloadAsFile {
		base := out.DownloadFileBasename
		if base == "" {
			base = opts.Basename
		}
		plan.Filename = base + "." + plan.Format.Extension()
		if plan.CompressionSource == FromProperty {
			plan.Filename += plan.Compression.extension()
		}
	}
	plan.Envelope = opts.Envelope && plan.Format == JSON && !out.DownloadAsFile
	return plan, nil
}

func parseDataFormat(s string, allowed []Format) (Format, bool, error) {
	var f Format
	headers := true
	switch strings.ToUpper(s) {
	case "JSON":
		f = JSON
	case "NDJSON":
		f = NDJSON
	case "CSV":
		f = CSV
	case "CSV-WITHOUT-HEADERS":
		f, headers = CSV, false
	case "TSV":
		f = TSV
	case "FASTA":
		f = FASTA
	default:
		return 0, false, &request.BadRequestError{
			Property: request.PropDataFormat,
			Message:  fmt.Sprintf("unknown data format '%s', known values are [%s]", s, strings.Join(formatList(allowed), ", ")),
		}
	}
	if !contains(allowed, f) {
		return 0, false, &request.BadRequestError{
			Property: request.PropDataFormat,
			Message:  fmt.Sprintf("data format '%s' is not supported here, known values are [%s]", s, strings.Join(formatList(allowed), ", ")),
		}
	}
	return f, headers, nil
}

func formatList(allowed []Format) []string {
	var out []string
	for _, f := range allowed {
		out = append(out, f.String())
		if f == CSV {
			out = append(out, "CSV-WITHOUT-HEADERS")
		}
	}
	return out
}

type mediaRange struct {
	typ     string
	headers bool
	q       float64
	order   int
}

// fromAccept picks the allowed format with the highest quality. Wildcards
// select the endpoint default.
func fromAccept(accept string, opts Options) (Format, bool, error) {
	var ranges []mediaRange
	for i, part := range strings.Split(accept, ",") {
		typ, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		mr := mediaRange{typ: typ, headers: params["headers"] != "false", q: 1, order: i}
		if q, ok := params["q"]; ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil {
				mr.q = v
			}
		}
		if mr.q > 0 {
			ranges = append(ranges, mr)
		}
	}
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].q > ranges[j].q })

	for _, mr := range ranges {
		switch mr.typ {
		case "*/*":
			return opts.Default, true, nil
		case "application/*":
			if opts.Default == JSON || opts.Default == NDJSON {
				return opts.Default, true, nil
			}
			if contains(opts.Allowed, JSON) {
				return JSON, true, nil
			}
			continue
		case "text/*":
			if opts.Default != JSON && opts.Default != NDJSON {
				return opts.Default, mr.headers, nil
			}
			if contains(opts.Allowed, CSV) {
				return CSV, mr.headers, nil
			}
			continue
		}
		for _, f := range opts.Allowed {
			if f.ContentType() == mr.typ {
				return f, mr.headers, nil
			}
		}
	}

	supported := make([]string, len(opts.Allowed))
	for i, f := range opts.Allowed {
		supported[i] = f.ContentType()
	}
	return 0, false, &NotAcceptableError{Accept: accept, Supported: supported}
}

// fromAcceptEncoding picks zstd or gzip in the client's preference order.
func fromAcceptEncoding(header string) Compression {
	best, bestQ := NoCompression, 0.0
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		var c Compression
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "zstd":
			c = Zstd
		case "gzip":
			c = Gzip
		default:
			continue
		}
		if q > bestQ {
			best, bestQ = c, q
		}
	}
	return best
}

func contains(formats []Format, f Format) bool {
	for _, x := range formats {
		if x == f {
			return true
		}
	}
	return false
}
