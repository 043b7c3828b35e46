package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mwestra/kbindex/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Creates ~/.kbindex/config.yaml with one example index type. Edit the
data_dir, storage_path and engine sections to match your setup, then
run 'kbindex status' to verify.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			cfg := config.Default()
			home := config.HomeDir()
			cfg.IndexTypes = []config.IndexTypeConfig{{
				Name:        "docs",
				DataDir:     filepath.Join(home, "data", "docs"),
				StoragePath: filepath.Join(home, "storage", "docs.idx"),
				Engine: config.EngineConfig{
					Command: "kb-engine",
					Args:    []string{"--input", "{data_dir}", "--output", "{storage_path}"},
				},
			}}

			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Edit the index_types section, then run 'kbindex status docs'.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}
