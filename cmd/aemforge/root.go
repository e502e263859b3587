package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spboyer/aemforge/internal/projectconfig"
	"github.com/spboyer/aemforge/internal/utils"
	"github.com/spboyer/aemforge/internal/webapi"
	"github.com/spf13/cobra"
)

var version = "dev"

// app carries the state shared by every command of one invocation.
type app struct {
	dir     string
	debug   bool
	logFile string

	cfg       *projectconfig.ProjectConfig
	logCloser io.Closer
}

// config loads the project configuration on first use.
func (a *app) config() (*projectconfig.ProjectConfig, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := projectconfig.Load(a.dir)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	logFile := cfg.Logging.File
	if a.logFile != "" {
		logFile = utils.ResolvePath(a.logFile, a.dir)
	}
	closer, err := utils.ConfigureLogging(utils.LogOptions{
		Debug:      a.debug,
		File:       logFile,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.logCloser = closer
	if cfg.Path != "" {
		slog.Debug("Loaded project config", "path", cfg.Path)
	}
	return nil
}

func (a *app) teardown() error {
	if a.logCloser == nil {
		return nil
	}
	return a.logCloser.Close()
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "aemforge",
		Short: "aemforge - generate AEM components from natural-language descriptions",
		Long: `aemforge turns a description (and optionally a design image) of an Adobe
Experience Manager component into a Sling Model, HTL template, dialog,
metadata and clientlibs, then scores the result against AEM best practices.

Generation runs through four stages: requirement analysis, image analysis,
component generation and validation. Jobs can be run from the CLI or
through the HTTP and JSON-RPC servers.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Write JSON logs to a rotating file instead of stderr")
	cmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "Project directory (where .aemforge.yaml is looked up)")

	cmd.AddCommand(newGenerateCommand(a))
	cmd.AddCommand(newStatusCommand(a))
	cmd.AddCommand(newResultCommand(a))
	cmd.AddCommand(newScoreCommand(a))
	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newRPCCommand(a))
	cmd.AddCommand(newCacheCommand(a))

	return cmd
}

func execute() error {
	webapi.Version = version
	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(context.Background())
}
