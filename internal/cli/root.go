// Package cli implements the relgraph command line tool.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	envFiles  []string
	logLevel  string
	logFormat string

	cfg *Config
	log *slog.Logger
}

// NewRootCommand returns a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "relgraph",
		Short: "Inspect relationship schemas and replay relationship operations",
		Long: `relgraph resolves the relationship definitions of a schema file and
replays JSON lines of relationship operations against an in-memory graph,
printing the change notifications and the resulting relationship objects.

Configuration is read from the environment (RELGRAPH_*), after loading
the given env files or ./.env.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	flags := root.PersistentFlags()
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "env files to load (default .env)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides RELGRAPH_LOG_LEVEL")
	flags.StringVar(&a.logFormat, "log-format", "", "log format (text, json); overrides RELGRAPH_LOG_FORMAT")

	root.AddCommand(
		newSchemaCmd(a),
		newReplayCmd(a),
		newSnapshotCmd(a),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(a.envFiles...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	log, err := NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}
