// Package cmd implements the repogen command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"repogen/config"
	"repogen/graph"
	"repogen/logging"
	"repogen/manifest"
	"repogen/planner"
	"repogen/project"
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// exitCode is 2 for bad input (manifest, cycle, project spec, empty brief)
// and 1 otherwise.
func exitCode(err error) int {
	switch {
	case errors.Is(err, graph.ErrCycle),
		errors.Is(err, manifest.ErrEmptyPath),
		errors.Is(err, manifest.ErrDuplicatePath),
		errors.Is(err, manifest.ErrInvalidPath),
		errors.Is(err, project.ErrInvalid),
		errors.Is(err, project.ErrEmptySlug),
		errors.Is(err, planner.ErrEmptyBrief):
		return 2
	}
	return 1
}

func asExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return &ExitError{Code: exitCode(err), Message: err.Error()}
}

// cli holds global flags and the state loaded from them before any subcommand runs.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string
	provider   string
	stderr     io.Writer

	cfg      config.Config
	logger   zerolog.Logger
	closeLog logging.Closer
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "repogen",
		Short: "Generate a project tree file by file in dependency order",
		Long: `repogen turns a project description into a repository. A manifest lists the
files to produce and the files each one depends on; repogen orders them so every
file is generated after its dependencies and feeds the files already written
into the prompt of the next one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", config.DefaultPath, "path to config.json")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log format: console or json (overrides config)")
	root.PersistentFlags().StringVar(&c.provider, "provider", "", "llm provider (overrides config llm.provider)")

	root.AddCommand(newDraftCmd(c))
	root.AddCommand(newImproveCmd(c))
	root.AddCommand(newPlanCmd(c))
	root.AddCommand(newOrderCmd(c))
	root.AddCommand(newGenerateCmd(c))
	root.AddCommand(newSchemaCmd(c))
	root.AddCommand(newServeCmd(c))
	root.AddCommand(newMCPCmd(c))
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	if c.provider != "" {
		cfg.LLM.Provider = c.provider
		if err := cfg.Validate(); err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}
	}

	stderr := c.stderr
	if stderr == nil {
		stderr = cmd.ErrOrStderr()
	}
	logger, closeLog, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	c.cfg, c.logger, c.closeLog = cfg, logger, closeLog
	cmd.SetContext(logger.WithContext(cmd.Context()))
	return nil
}

func (c *cli) close() {
	if c.closeLog != nil {
		_ = c.closeLog()
	}
}

// Execute runs the command line and returns an *ExitError on failure.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	defer c.close()
	return run(ctx, newRootCmd(c), os.Args[1:])
}

func run(ctx context.Context, root *cobra.Command, args []string) error {
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return asExitError(err)
	}
	return nil
}

// printf writes to the command's stdout, ignoring write errors.
func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
