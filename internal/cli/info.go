package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lapis/internal/config"
	"github.com/roach88/lapis/internal/ir"
	"github.com/roach88/lapis/internal/silo"
)

// InfoResult describes the SILO instance behind the gateway.
type InfoResult struct {
	SiloURL      string `json:"siloUrl"`
	DataVersion  string `json:"dataVersion"`
	SiloVersion  string `json:"siloVersion"`
	LapisVersion string `json:"lapisVersion"`
}

func (r InfoResult) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "SILO:          %s\nSILO version:  %s\nData version:  %s\nLAPIS version: %s\n",
		r.SiloURL, r.SiloVersion, r.DataVersion, r.LapisVersion)
	return err
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	var siloURL string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the SILO version and current data version",
		Long: `Ask the configured SILO instance for its version and the version of
the data it currently serves. Useful to check connectivity before serving.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(rootOpts, siloURL, cmd)
		},
	}

	cmd.Flags().StringVar(&siloURL, "silo-url", "", "SILO base URL (overrides silo.url)")

	return cmd
}

func runInfo(opts *RootOptions, siloURL string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config, config.Overrides{SiloURL: siloURL})
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConfig, "loading config", err)
	}

	client := silo.New(cfg.Silo.URL,
		silo.WithTimeout(cfg.SiloTimeout()),
		silo.WithLogger(newLogger(cmd.ErrOrStderr(), opts.Format, opts.Verbose)),
	)
	formatter.VerboseLog("Querying %s/info", client.BaseURL())

	info, err := client.Info(cmd.Context())
	if err != nil {
		return fail(formatter, ExitFailure, ErrCodeUnavailable, "asking SILO", err)
	}

	return formatter.Success(InfoResult{
		SiloURL:      client.BaseURL(),
		DataVersion:  info.DataVersion,
		SiloVersion:  info.SiloVersion,
		LapisVersion: ir.LapisVersion,
	})
}
