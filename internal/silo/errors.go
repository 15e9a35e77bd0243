package silo

import (
	"fmt"
)

// UnavailableError is a 503 from the engine, typically while it loads a
// new data version. RetryAfter is the raw Retry-After header, if any.
type UnavailableError struct {
	Message    string
	RetryAfter string
}

func (e *UnavailableError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("silo unavailable (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return "silo unavailable: " + e.Message
}

// ResponseError is any other non-2xx answer of the engine.
type ResponseError struct {
	StatusCode int
	Title      string
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("silo responded %d %s: %s", e.StatusCode, e.Title, e.Message)
}

// ClientError reports whether the engine rejected the query itself, as
// opposed to failing while evaluating it.
func (e *ResponseError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ConnectError is a transport failure: the engine could not be reached or
// the connection broke before a status line arrived.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("could not connect to silo at %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ParseError is a response line that is not valid for the expected row
// type. Line holds the offending line.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse silo response line %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
