package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwestra/kbindex/internal/config"
	"github.com/mwestra/kbindex/internal/daemon"
	"github.com/mwestra/kbindex/internal/ui"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <index-type>",
		Short: "Clear a failed generation state",
		Long: `Returns an index type from the error state back to ready so a new
generation run can start. The failed state lives in the daemon, so this
command requires 'kbindex serve' to be running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}

			client, err := daemon.Dial(cfg.Server.SocketPath)
			if err != nil {
				return fmt.Errorf("no daemon at %s (start one with 'kbindex serve'): %w",
					cfg.Server.SocketPath, err)
			}
			defer func() { _ = client.Close() }()

			snap, err := client.Reset(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", args[0])
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSnapshot(snap, ui.GetStyles(false)))
			return nil
		},
	}
}
