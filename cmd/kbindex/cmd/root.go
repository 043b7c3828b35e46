// Package cmd provides the CLI commands for kbindex.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mwestra/kbindex/internal/config"
	"github.com/mwestra/kbindex/internal/engine"
	"github.com/mwestra/kbindex/internal/generation"
	"github.com/mwestra/kbindex/internal/logging"
	"github.com/mwestra/kbindex/internal/session"
	"github.com/mwestra/kbindex/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the kbindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kbindex",
		Short: "Keep knowledge-base indexes in step with their source folders",
		Long: `kbindex manages the pipeline between a folder of raw documents, the
searchable index built from it, and the metadata that says whether the
two still agree. It decides when a folder must be rescanned or an index
rebuilt, runs the indexing engine, and reports live progress.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("kbindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default: ~/.kbindex/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging to ~/.kbindex/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Info("debug logging enabled",
			"log_file", logging.DefaultLogPath(), "version", version.Version)
	}
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// resolveConfigPath honors the --config flag.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// lockDir is where cross-process generation locks live.
func lockDir() string {
	return filepath.Join(config.HomeDir(), "locks")
}

// engineFactory builds per-type engine adapters from the config.
func engineFactory(logger *slog.Logger) session.EngineFactory {
	return func(it config.IndexTypeConfig) generation.GenerateFunc {
		if it.Engine.Command == "" {
			name := it.Name
			return func(ctx context.Context, emit func(line string)) error {
				return fmt.Errorf("index type %q has no engine command configured", name)
			}
		}
		return engine.GenerateFunc(engine.Command{
			Path: it.Engine.Command,
			Args: it.Engine.Args,
			Dir:  it.Engine.Dir,
		}, it.DataDir, it.StoragePath, logger)
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
