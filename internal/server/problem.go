package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roach88/lapis/internal/compiler"
	"github.com/roach88/lapis/internal/request"
	"github.com/roach88/lapis/internal/response"
	"github.com/roach88/lapis/internal/silo"
)

// Problem is an RFC 7807 problem detail.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"requestId,omitempty"`

	retryAfter string
}

// problemFor classifies err. Each error kind maps to its own status so
// clients can tell their own mistakes from engine trouble.
func problemFor(err error) Problem {
	var (
		bad         *request.BadRequestError
		compile     *compiler.CompileError
		notAccept   *response.NotAcceptableError
		tooLarge    *http.MaxBytesError
		unavailable *silo.UnavailableError
		respErr     *silo.ResponseError
		connect     *silo.ConnectError
		parse       *silo.ParseError
	)
	switch {
	case errors.As(err, &bad):
		return newProblem(http.StatusBadRequest, bad.Error())
	case errors.As(err, &compile):
		return newProblem(http.StatusBadRequest, compile.Error())
	case errors.As(err, &notAccept):
		return newProblem(http.StatusNotAcceptable, notAccept.Error())
	case errors.As(err, &tooLarge):
		return newProblem(http.StatusRequestEntityTooLarge, tooLarge.Error())
	case errors.As(err, &unavailable):
		p := newProblem(http.StatusServiceUnavailable, "SILO is currently unavailable: "+unavailable.Message)
		p.retryAfter = unavailable.RetryAfter
		return p
	case errors.As(err, &respErr):
		status := http.StatusInternalServerError
		if respErr.ClientError() {
			status = http.StatusBadRequest
		}
		p := newProblem(status, respErr.Message)
		if respErr.Title != "" {
			p.Title = respErr.Title
		}
		return p
	case errors.As(err, &connect):
		return newProblem(http.StatusServiceUnavailable, "could not connect to SILO")
	case errors.As(err, &parse):
		return newProblem(http.StatusInternalServerError, "could not parse SILO response: "+parse.Err.Error())
	default:
		return newProblem(http.StatusInternalServerError, "unexpected error")
	}
}

func newProblem(status int, detail string) Problem {
	return Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

func writeProblem(w http.ResponseWriter, p Problem) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	h.Set("X-Content-Type-Options", "nosniff")
	if p.retryAfter != "" {
		h.Set("Retry-After", p.retryAfter)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
