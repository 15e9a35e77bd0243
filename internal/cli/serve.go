package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/lapis/internal/config"
	"github.com/roach88/lapis/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	SiloURL string

	// Listener replaces listening on the configured address (for testing).
	Listener net.Listener
	// IDs overrides request id generation (for testing). If nil,
	// request ids are UUIDv7.
	IDs server.IDGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}
	return newServeCommand(opts)
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the query gateway",
		Long: `Run the HTTP query gateway in front of SILO.

The gateway reads its database schema and SILO location from the config
file, opens the configured result cache and serves the /sample endpoints
until interrupted. In-flight requests are drained on SIGINT or SIGTERM.

Example:
  lapis serve -c lapis.yaml
  lapis serve -c lapis.yaml --addr :8080 --silo-url http://silo:8081`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.SiloURL, "silo-url", "", "SILO base URL (overrides silo.url)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Format, opts.Verbose)

	cfg, err := config.Load(opts.Config, config.Overrides{Addr: opts.Addr, SiloURL: opts.SiloURL})
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeConfig, "loading config", err)
	}
	logger.Info("config loaded", "path", opts.Config, "instance", cfg.InstanceName, "silo", cfg.Silo.URL, "cache", cfg.Cache.Backend)

	a, err := newApp(cfg, logger, opts.IDs)
	if err != nil {
		if errors.Is(err, errSchema) {
			return fail(formatter, ExitCommandError, ErrCodeSchema, "building schema", err)
		}
		return fail(formatter, ExitCommandError, ErrCodeCache, "starting gateway", err)
	}
	defer a.close()

	// Use the command's context if set (tests cancel it to stop the server).
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a.pruneStale(ctx)

	l := opts.Listener
	if l == nil {
		l, err = net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			return fail(formatter, ExitCommandError, ErrCodeGeneric, fmt.Sprintf("listening on %s", cfg.Server.Addr), err)
		}
	}
	formatter.VerboseLog("Serving %s on %s", cfg.InstanceName, l.Addr())

	err = a.server.Serve(ctx, l, server.ServeOptions{
		MaxConnections:  cfg.Server.MaxConnections,
		ShutdownTimeout: cfg.ShutdownTimeout(),
	})
	if err != nil {
		return fail(formatter, ExitFailure, ErrCodeGeneric, "server error", err)
	}
	return nil
}
