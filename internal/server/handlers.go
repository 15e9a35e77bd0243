package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/queryir"
	"github.com/roach88/lapis/internal/request"
	"github.com/roach88/lapis/internal/response"
	"github.com/roach88/lapis/internal/schema"
	"github.com/roach88/lapis/internal/silo"
)

func tableOptions(basename string) response.Options {
	return response.Options{
		Default:  response.JSON,
		Allowed:  []response.Format{response.JSON, response.NDJSON, response.CSV, response.TSV},
		Envelope: true,
		Basename: basename,
	}
}

func sequenceOptions(basename string) response.Options {
	return response.Options{
		Default:  response.FASTA,
		Allowed:  []response.Format{response.FASTA, response.JSON, response.NDJSON},
		Basename: basename,
	}
}

// properties reads the request properties from the query string (GET), a
// form body or a JSON body (POST).
func properties(w http.ResponseWriter, r *http.Request) (request.Properties, error) {
	if r.Method == http.MethodGet {
		return request.FromQuery(r.URL.Query())
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return nil, formError(err)
		}
		return request.FromQuery(r.PostForm)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, formError(err)
	}
	return request.FromJSON(body)
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return &request.BadRequestError{Message: "could not read request body: " + err.Error()}
}

// result streams rows of one executed query.
type result struct {
	plan    response.Plan
	meta    response.Meta
	rows    iter.Seq2[ir.Record, error]
	version string
	cached  bool
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, res result) error {
	st := stateFrom(r.Context())
	st.DataVersion = res.version
	st.Cached = res.cached

	res.meta.DataVersion = res.version
	res.meta.RequestID = st.ID
	res.meta.RequestInfo = s.requestInfo(r)
	return response.Stream(w, res.plan, res.meta, res.rows)
}

func (s *Server) requestInfo(r *http.Request) string {
	return fmt.Sprintf("%s on %s at %s", s.schema.InstanceName, r.Host, s.now().UTC().Format(time.RFC3339))
}

func (s *Server) aggregated(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	props, err := properties(w, r)
	if err != nil {
		return err
	}
	req, err := s.parser.ParseAggregated(props)
	if err != nil {
		return err
	}
	plan, err := response.Negotiate(r, req.Output, tableOptions("aggregated"))
	if err != nil {
		return err
	}
	q, err := s.compiler.Aggregated(req)
	if err != nil {
		return err
	}
	rows, err := silo.Execute(r.Context(), s.engine, q, silo.DecodeRecord)
	if err != nil {
		return err
	}
	defer rows.Close()

	return s.stream(w, r, result{
		plan:    plan,
		meta:    response.Meta{Columns: append(append([]string(nil), req.Fields...), request.CountField)},
		rows:    rows.All(),
		version: rows.DataVersion,
		cached:  rows.Cached,
	})
}

func (s *Server) details(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	props, err := properties(w, r)
	if err != nil {
		return err
	}
	req, err := s.parser.ParseDetails(props)
	if err != nil {
		return err
	}
	plan, err := response.Negotiate(r, req.Output, tableOptions("details"))
	if err != nil {
		return err
	}
	q, err := s.compiler.Details(req)
	if err != nil {
		return err
	}
	rows, err := silo.Execute(r.Context(), s.engine, q, silo.DecodeRecord)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns := req.Fields
	if len(columns) == 0 {
		columns = s.schema.FieldNames()
	}
	return s.stream(w, r, result{
		plan:    plan,
		meta:    response.Meta{Columns: columns},
		rows:    rows.All(),
		version: rows.DataVersion,
		cached:  rows.Cached,
	})
}

func (s *Server) nucleotideMutations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	return s.mutations(w, r, "nucleotideMutations", false)
}

func (s *Server) aminoAcidMutations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	return s.mutations(w, r, "aminoAcidMutations", true)
}

func (s *Server) mutations(w http.ResponseWriter, r *http.Request, basename string, aminoAcid bool) error {
	props, err := properties(w, r)
	if err != nil {
		return err
	}
	req, err := s.parser.ParseMutationProportions(props)
	if err != nil {
		return err
	}
	plan, err := response.Negotiate(r, req.Output, tableOptions(basename))
	if err != nil {
		return err
	}
	var q queryir.Query
	if aminoAcid {
		q, err = s.compiler.AminoAcidMutations(req)
	} else {
		q, err = s.compiler.NucleotideMutations(req)
	}
	if err != nil {
		return err
	}
	rows, err := silo.Execute(r.Context(), s.engine, q, silo.DecodeMutation)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns := req.Fields
	if len(columns) == 0 {
		columns = request.MutationFields
	}
	labels := labeler{segmented: aminoAcid || s.schema.IsMultiSegmented()}
	return s.stream(w, r, result{
		plan: plan,
		meta: response.Meta{Columns: columns},
		rows: mapRows(rows.All(), func(m queryir.MutationData) ir.Record {
			return project(labels.mutation(m), columns)
		}),
		version: rows.DataVersion,
		cached:  rows.Cached,
	})
}

func (s *Server) nucleotideInsertions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	return s.insertions(w, r, "nucleotideInsertions", false)
}

func (s *Server) aminoAcidInsertions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	return s.insertions(w, r, "aminoAcidInsertions", true)
}

func (s *Server) insertions(w http.ResponseWriter, r *http.Request, basename string, aminoAcid bool) error {
	props, err := properties(w, r)
	if err != nil {
		return err
	}
	req, err := s.parser.ParseInsertions(props)
	if err != nil {
		return err
	}
	plan, err := response.Negotiate(r, req.Output, tableOptions(basename))
	if err != nil {
		return err
	}
	var q queryir.Query
	if aminoAcid {
		q, err = s.compiler.AminoAcidInsertions(req.SequenceFiltersRequest)
	} else {
		q, err = s.compiler.NucleotideInsertions(req.SequenceFiltersRequest)
	}
	if err != nil {
		return err
	}
	rows, err := silo.Execute(r.Context(), s.engine, q, silo.DecodeInsertion)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns := req.Fields
	if len(columns) == 0 {
		columns = request.InsertionFields
	}
	labels := labeler{segmented: aminoAcid || s.schema.IsMultiSegmented()}
	return s.stream(w, r, result{
		plan: plan,
		meta: response.Meta{Columns: columns},
		rows: mapRows(rows.All(), func(in queryir.InsertionData) ir.Record {
			return project(labels.insertion(in), columns)
		}),
		version: rows.DataVersion,
		cached:  rows.Cached,
	})
}

func (s *Server) nucleotideSequences(aligned bool) handlerFunc {
	basename := "unalignedNucleotideSequences"
	if aligned {
		basename = "alignedNucleotideSequences"
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
		props, err := properties(w, r)
		if err != nil {
			return err
		}
		req, err := s.parser.ParseSequences(props)
		if err != nil {
			return err
		}
		plan, err := response.Negotiate(r, req.Output, sequenceOptions(basename))
		if err != nil {
			return err
		}
		segment := ps.ByName("segment")
		q, names, err := s.compiler.NucleotideSequences(req, segment, aligned)
		if err != nil {
			return err
		}
		rows, err := silo.Execute(r.Context(), s.engine, q, silo.DecodeRecord)
		if err != nil {
			return err
		}
		defer rows.Close()

		return s.stream(w, r, result{
			plan: plan,
			meta: response.Meta{
				PrimaryKey:    s.schema.PrimaryKey,
				Sequences:     names,
				LabelSegments: s.schema.IsMultiSegmented() && segment == "",
			},
			rows:    rows.All(),
			version: rows.DataVersion,
			cached:  rows.Cached,
		})
	}
}

func (s *Server) aminoAcidSequences(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	props, err := properties(w, r)
	if err != nil {
		return err
	}
	req, err := s.parser.ParseSequences(props)
	if err != nil {
		return err
	}
	plan, err := response.Negotiate(r, req.Output, sequenceOptions("alignedAminoAcidSequences"))
	if err != nil {
		return err
	}
	q, gene, err := s.compiler.AminoAcidSequences(req, ps.ByName("gene"))
	if err != nil {
		return err
	}
	rows, err := silo.Execute(r.Context(), s.engine, q, silo.DecodeRecord)
	if err != nil {
		return err
	}
	defer rows.Close()

	return s.stream(w, r, result{
		plan:    plan,
		meta:    response.Meta{PrimaryKey: s.schema.PrimaryKey, Sequences: []string{gene}},
		rows:    rows.All(),
		version: rows.DataVersion,
		cached:  rows.Cached,
	})
}

type infoBody struct {
	DataVersion  string `json:"dataVersion"`
	SiloVersion  string `json:"siloVersion"`
	LapisVersion string `json:"lapisVersion"`
}

func (s *Server) info(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	info, err := s.catalog.Info(r.Context())
	if err != nil {
		return err
	}
	stateFrom(r.Context()).DataVersion = info.DataVersion

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(response.DataVersionHeader, info.DataVersion)
	_ = json.NewEncoder(w).Encode(infoBody{
		DataVersion:  info.DataVersion,
		SiloVersion:  info.SiloVersion,
		LapisVersion: ir.LapisVersion,
	})
	return nil
}

// lineageDefinition serves the lineage tree of a lineage column as YAML,
// or as JSON when the client prefers it.
func (s *Server) lineageDefinition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) error {
	column, ok := s.schema.Fields().Resolve(ps.ByName("column"))
	if !ok {
		return &request.BadRequestError{Message: fmt.Sprintf("unknown field '%s'", ps.ByName("column"))}
	}
	if f, _ := s.schema.Field(column); f.Type != schema.TypePangoLineage {
		return &request.BadRequestError{Message: fmt.Sprintf("field '%s' is not a lineage field", column)}
	}

	def, version, err := s.catalog.LineageDefinition(r.Context(), column)
	if err != nil {
		return err
	}
	stateFrom(r.Context()).DataVersion = version

	var body []byte
	contentType := "application/yaml"
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		contentType = "application/json"
		body, err = json.Marshal(def)
	} else {
		body, err = yaml.Marshal(def)
	}
	if err != nil {
		return fmt.Errorf("encoding lineage definition: %w", err)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set(response.DataVersionHeader, version)
	_, _ = w.Write(body)
	return nil
}
