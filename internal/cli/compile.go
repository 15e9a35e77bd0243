package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lapis/internal/cache"
	"github.com/roach88/lapis/internal/compiler"
	"github.com/roach88/lapis/internal/config"
	"github.com/roach88/lapis/internal/request"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Query string // URL query string, as a GET request would send it
	Input string // JSON body file, "-" for stdin
}

// CompileResult is the downstream query a request compiles to.
type CompileResult struct {
	Endpoint  string          `json:"endpoint"`
	Query     json.RawMessage `json:"query"`
	CacheKey  string          `json:"cacheKey"`
	Cacheable bool            `json:"cacheable"`
}

func (r CompileResult) writeText(w io.Writer) error {
	var pretty strings.Builder
	enc := json.NewEncoder(&pretty)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.Query); err != nil {
		return err
	}
	cacheable := "no"
	if r.Cacheable {
		cacheable = "yes"
	}
	_, err := fmt.Fprintf(w, "%s\ncache key: %s\ncacheable: %s\n", pretty.String(), r.CacheKey, cacheable)
	return err
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <endpoint>",
		Short: "Show the SILO query a request compiles to",
		Long: `Parse and compile a request offline and print the SILO query.

The request is given either as a URL query string (--query) or as a JSON
body (--input). Nothing is sent to SILO. Known endpoints:
  ` + strings.Join(compiler.Endpoints, "\n  ") + `

Example:
  lapis compile aggregated --query 'country=Switzerland&fields=date'
  lapis compile nucleotideMutations --input request.json
  echo '{"limit": 10}' | lapis compile details --input -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "request as a URL query string")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", `request as a JSON file ("-" for stdin)`)
	cmd.MarkFlagsMutuallyExclusive("query", "input")

	return cmd
}

func runCompile(opts *CompileOptions, endpoint string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config, config.Overrides{})
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConfig, "loading config", err)
	}
	s, err := cfg.BuildSchema()
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeSchema, "building schema", err)
	}
	parser, err := request.NewParser(s)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeSchema, "building schema", err)
	}

	props, err := readProperties(opts, cmd.InOrStdin())
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeInput, "reading request", err)
	}
	formatter.VerboseLog("Compiling %s request with %d properties", endpoint, len(props))

	q, err := compiler.New(s).Endpoint(parser, endpoint, props)
	if err != nil {
		var badRequest *request.BadRequestError
		var compileErr *compiler.CompileError
		if errors.As(err, &badRequest) || errors.As(err, &compileErr) {
			return fail(formatter, ExitCommandError, ErrCodeBadRequest, "invalid request", err)
		}
		return fail(formatter, ExitCommandError, ErrCodeGeneric, "compiling request", err)
	}

	raw, err := json.Marshal(q)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, "encoding query", err)
	}
	key, err := cache.Key(q)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, "computing cache key", err)
	}

	return formatter.Success(CompileResult{
		Endpoint:  endpoint,
		Query:     raw,
		CacheKey:  key,
		Cacheable: q.CacheEligible(),
	})
}

// readProperties reads the request from --query, --input or, when
// neither is set, treats it as empty.
func readProperties(opts *CompileOptions, stdin io.Reader) (request.Properties, error) {
	switch {
	case opts.Query != "":
		values, err := url.ParseQuery(strings.TrimPrefix(opts.Query, "?"))
		if err != nil {
			return nil, err
		}
		return request.FromQuery(values)
	case opts.Input == "-":
		body, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		return request.FromJSON(body)
	case opts.Input != "":
		body, err := os.ReadFile(opts.Input)
		if err != nil {
			return nil, err
		}
		return request.FromJSON(body)
	default:
		return request.FromQuery(url.Values{})
	}
}
