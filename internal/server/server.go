// Package server is the HTTP surface of the gateway.
//
// Every query endpoint accepts GET with a query string and POST with a JSON
// (or form) body; both parse to the same typed request. A request is parsed,
// its response format negotiated, compiled to a downstream query, executed
// through the engine (usually the cache) and streamed back. Failures before
// the first byte become RFC 7807 problem responses. Failures after it abort
// the connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/net/netutil"

	"github.com/roach88/lapis/internal/compiler"
	"github.com/roach88/lapis/internal/request"
	"github.com/roach88/lapis/internal/response"
	"github.com/roach88/lapis/internal/schema"
	"github.com/roach88/lapis/internal/silo"
)

// RequestIDHeader echoes the request id on every response.
const RequestIDHeader = "X-Request-Id"

// maxBodyBytes bounds POST bodies. Long mutation lists are the largest
// legitimate requests.
const maxBodyBytes = 8 << 20

// IDGenerator issues request ids.
type IDGenerator interface {
	NewID() string
}

// UUIDv7IDs issues time-sortable UUIDv7 request ids. It is stateless and
// safe for concurrent use.
type UUIDv7IDs struct{}

func (UUIDv7IDs) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Catalog serves the engine's auxiliary endpoints. *silo.Client
// implements it.
type Catalog interface {
	Info(ctx context.Context) (silo.Info, error)
	LineageDefinition(ctx context.Context, column string) (silo.LineageDefinition, string, error)
}

// Config wires a Server.
type Config struct {
	Schema *schema.Schema
	// Engine executes queries, usually a *cache.Cache in front of a
	// *silo.Client.
	Engine  silo.Querier
	Catalog Catalog

	// Optional.
	IDs    IDGenerator
	Logger *slog.Logger
	Now    func() time.Time
}

// Server routes and handles gateway requests. It is safe for concurrent
// use once built.
type Server struct {
	schema   *schema.Schema
	parser   *request.Parser
	compiler *compiler.Compiler
	engine   silo.Querier
	catalog  Catalog
	ids      IDGenerator
	logger   *slog.Logger
	now      func() time.Time
	router   *httprouter.Router
}

// New builds a server from cfg.
func New(cfg Config) (*Server, error) {
	if cfg.Schema == nil || cfg.Engine == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("server: schema, engine and catalog are required")
	}
	parser, err := request.NewParser(cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	s := &Server{
		schema:   cfg.Schema,
		parser:   parser,
		compiler: compiler.New(cfg.Schema),
		engine:   cfg.Engine,
		catalog:  cfg.Catalog,
		ids:      cfg.IDs,
		logger:   cfg.Logger,
		now:      cfg.Now,
		router:   httprouter.New(),
	}
	if s.ids == nil {
		s.ids = UUIDv7IDs{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.query("/sample/aggregated", s.aggregated)
	s.query("/sample/details", s.details)
	s.query("/sample/nucleotideMutations", s.nucleotideMutations)
	s.query("/sample/aminoAcidMutations", s.aminoAcidMutations)
	s.query("/sample/nucleotideInsertions", s.nucleotideInsertions)
	s.query("/sample/aminoAcidInsertions", s.aminoAcidInsertions)
	s.query("/sample/alignedNucleotideSequences", s.nucleotideSequences(true))
	s.query("/sample/alignedNucleotideSequences/:segment", s.nucleotideSequences(true))
	s.query("/sample/unalignedNucleotideSequences", s.nucleotideSequences(false))
	s.query("/sample/unalignedNucleotideSequences/:segment", s.nucleotideSequences(false))
	s.query("/sample/alignedAminoAcidSequences/:gene", s.aminoAcidSequences)

	s.router.GET("/sample/info", s.wrap(s.info))
	s.router.GET("/sample/lineageDefinition/:column", s.wrap(s.lineageDefinition))

	s.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.wrap(func(http.ResponseWriter, *http.Request, httprouter.Params) error {
			return &statusError{status: http.StatusNotFound, detail: "no endpoint at " + r.URL.Path}
		})(w, r, nil)
	})
	s.router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.wrap(func(http.ResponseWriter, *http.Request, httprouter.Params) error {
			return &statusError{status: http.StatusMethodNotAllowed, detail: r.Method + " is not supported on " + r.URL.Path}
		})(w, r, nil)
	})
}

// query registers a query endpoint for GET and POST.
func (s *Server) query(path string, h handlerFunc) {
	s.router.GET(path, s.wrap(h))
	s.router.POST(path, s.wrap(h))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handlerFunc handles one request. A returned error has not been written
// to the client yet.
type handlerFunc func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error

// wrap assigns the request id, logs the request and turns errors into
// problem responses.
func (s *Server) wrap(h handlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		st := &requestState{ID: s.ids.NewID()}
		sw := &statusWriter{ResponseWriter: w}
		r = r.WithContext(withState(r.Context(), st))
		sw.Header().Set(RequestIDHeader, st.ID)

		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", st.ID,
				"status", sw.status,
				"duration", time.Since(start),
				"cached", st.Cached,
				"data_version", st.DataVersion,
			)
		}()

		err := h(sw, r, ps)
		if err == nil {
			return
		}

		var (
			gone    *response.ClientDisconnectedError
			aborted *response.AbortedError
			se      *statusError
		)
		switch {
		case errors.As(err, &gone):
			s.logger.Info("client disconnected while streaming", "request_id", st.ID, "error", gone.Err)
			panic(http.ErrAbortHandler)
		case errors.As(err, &aborted):
			s.logger.Error("response aborted", "request_id", st.ID, "rows", aborted.Rows, "error", aborted.Err)
			panic(http.ErrAbortHandler)
		case errors.As(err, &se):
			p := newProblem(se.status, se.detail)
			s.finishProblem(sw, r, st, p)
		default:
			p := problemFor(err)
			if p.Status >= http.StatusInternalServerError {
				s.logger.Error("request failed", "request_id", st.ID, "error", err)
			} else {
				s.logger.Debug("request rejected", "request_id", st.ID, "error", err)
			}
			s.finishProblem(sw, r, st, p)
		}
	}
}

func (s *Server) finishProblem(w http.ResponseWriter, r *http.Request, st *requestState, p Problem) {
	p.Instance = r.URL.Path
	p.RequestID = st.ID
	writeProblem(w, p)
}

// statusError is a routing failure with a fixed status.
type statusError struct {
	status int
	detail string
}

func (e *statusError) Error() string { return e.detail }

// ServeOptions tune Serve.
type ServeOptions struct {
	// MaxConnections caps concurrent connections; zero is unlimited.
	MaxConnections int
	// ShutdownTimeout bounds the graceful drain after ctx is done.
	ShutdownTimeout time.Duration
}

// Serve accepts connections on l until ctx is done, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, l net.Listener, opts ServeOptions) error {
	if opts.MaxConnections > 0 {
		l = netutil.LimitListener(l, opts.MaxConnections)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	hs := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(l) }()
	s.logger.Info("server listening", "addr", l.Addr().String(), "max_connections", opts.MaxConnections)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
