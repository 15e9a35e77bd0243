// Package silo is the HTTP client of the downstream sequence engine.
//
// A query is POSTed as JSON to /query. The engine answers with one JSON
// object per line and reports the snapshot it evaluated in the data-version
// response header. Result exposes the header right away and the body as a
// lazy, single-pass sequence of lines; typed decoding happens in Decode.
package silo

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/roach88/lapis/internal/queryir"
)

// DataVersionHeader is the engine's response header naming the data
// snapshot a response was computed from.
const DataVersionHeader = "data-version"

// maxLineBytes bounds one response line. Aligned sequences of large
// multi-segment genomes are the longest rows.
const maxLineBytes = 256 << 20

// Querier executes queries. Client talks to the engine directly; the cache
// wraps a Querier with the same contract.
type Querier interface {
	Query(ctx context.Context, q queryir.Query) (*Result, error)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout bounds each engine call including reading the body.
// Zero keeps the http.Client default of no timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Transport: c.http.Transport, Timeout: d}
		}
	}
}

// WithLogger sets the logger for engine calls.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// New returns a client for the engine at baseURL.
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the engine address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Query sends q to the engine. On success the caller owns the Result and
// must Close it; the data version is available before the body is read.
func (c *Client) Query(ctx context.Context, q queryir.Query) (*Result, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, errors.Wrap(err, "encoding query")
	}

	resp, err := c.do(ctx, http.MethodPost, "/query", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	return &Result{
		DataVersion: resp.Header.Get(DataVersionHeader),
		lines:       scanLines(resp.Body),
		closer:      resp.Body,
	}, nil
}

// Info is the engine's self-description.
type Info struct {
	DataVersion string
	SiloVersion string
}

// Info fetches the engine version and current data version.
func (c *Client) Info(ctx context.Context) (Info, error) {
	resp, err := c.do(ctx, http.MethodGet, "/info", nil, "")
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()

	var body struct {
		Version string `json:"version"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Info{}, errors.Wrap(err, "reading info response")
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Info{}, &ParseError{Line: string(raw), Err: err}
	}
	return Info{
		DataVersion: resp.Header.Get(DataVersionHeader),
		SiloVersion: body.Version,
	}, nil
}

// do issues one request and classifies failures. A returned response always
// has a 2xx status and an open body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrapf(err, "building request %s %s", method, url)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("silo call failed", "method", method, "url", url, "error", err)
		return nil, &ConnectError{URL: url, Err: errors.Wrapf(err, "%s %s", method, url)}
	}
	c.logger.Debug("silo call",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"data_version", resp.Header.Get(DataVersionHeader),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, classify(resp)
}

// classify turns a non-2xx response into UnavailableError or
// ResponseError. The engine's error body is {"error": title, "message": msg}.
func classify(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || (body.Error == "" && body.Message == "") {
		body.Error = http.StatusText(resp.StatusCode)
		body.Message = "could not parse silo error response: " + strings.TrimSpace(string(raw))
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return &UnavailableError{
			Message:    body.Message,
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}
	return &ResponseError{
		StatusCode: resp.StatusCode,
		Title:      body.Error,
		Message:    body.Message,
	}
}

// Result is one engine answer: its data version and its rows as raw JSON
// lines.
type Result struct {
	DataVersion string
	// Cached is set when the rows were served from the result cache.
	Cached bool

	lines  iter.Seq2[[]byte, error]
	closer io.Closer
	once   sync.Once
}

// NewResult wraps already materialized lines. Its Lines may be iterated
// any number of times.
func NewResult(dataVersion string, lines [][]byte) *Result {
	return &Result{
		DataVersion: dataVersion,
		lines: func(yield func([]byte, error) bool) {
			for _, l := range lines {
				if !yield(l, nil) {
					return
				}
			}
		},
	}
}

// Lines yields the non-empty response lines. For a streamed result it is
// single-pass and a yielded slice is only valid until the next iteration.
// The body is closed when iteration stops.
func (r *Result) Lines() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		defer r.Close()
		r.lines(yield)
	}
}

// Collect reads all lines into memory, copying them.
func (r *Result) Collect() ([][]byte, error) {
	var out [][]byte
	for line, err := range r.Lines() {
		if err != nil {
			return nil, err
		}
		out = append(out, bytes.Clone(line))
	}
	return out, nil
}

// Close releases the response body. It is safe to call more than once.
func (r *Result) Close() error {
	var err error
	r.once.Do(func() {
		if r.closer != nil {
			err = r.closer.Close()
		}
	})
	return err
}

func scanLines(body io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		sc := bufio.NewScanner(body)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			if !yield(line, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(nil, errors.Wrap(err, "reading silo response"))
		}
	}
}
