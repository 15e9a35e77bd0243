package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lapis/internal/config"
)

// ValidationResult summarizes a valid configuration.
type ValidationResult struct {
	Valid          bool     `json:"valid"`
	InstanceName   string   `json:"instanceName"`
	PrimaryKey     string   `json:"primaryKey"`
	MetadataFields int      `json:"metadataFields"`
	Segments       []string `json:"segments"`
	Genes          []string `json:"genes"`
	Features       []string `json:"features,omitempty"`
	CacheBackend   string   `json:"cacheBackend"`
}

func (r ValidationResult) writeText(w io.Writer) error {
	fmt.Fprintf(w, "✓ Config valid for %s\n\n", r.InstanceName)
	fmt.Fprintf(w, "  primary key: %s\n", r.PrimaryKey)
	fmt.Fprintf(w, "  metadata:    %d field(s)\n", r.MetadataFields)
	fmt.Fprintf(w, "  segments:    %s\n", strings.Join(r.Segments, ", "))
	fmt.Fprintf(w, "  genes:       %s\n", strings.Join(r.Genes, ", "))
	if len(r.Features) > 0 {
		fmt.Fprintf(w, "  features:    %s\n", strings.Join(r.Features, ", "))
	}
	_, err := fmt.Fprintf(w, "  cache:       %s\n", r.CacheBackend)
	return err
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Validate the configuration file without starting the gateway.

Checks the file against the config schema, applies defaults and builds
the database schema it describes. Nothing is sent to SILO.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Validating %s", opts.Config)
	cfg, err := config.Load(opts.Config, config.Overrides{})
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConfig, "invalid config", err)
	}
	s, err := cfg.BuildSchema()
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeSchema, "invalid database schema", err)
	}

	return formatter.Success(ValidationResult{
		Valid:          true,
		InstanceName:   s.InstanceName,
		PrimaryKey:     s.PrimaryKey,
		MetadataFields: len(s.Metadata),
		Segments:       s.NucleotideSequences,
		Genes:          s.Genes,
		Features:       s.Features,
		CacheBackend:   cfg.Cache.Backend,
	})
}
