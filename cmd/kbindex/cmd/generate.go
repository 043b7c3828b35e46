package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mwestra/kbindex/internal/config"
	"github.com/mwestra/kbindex/internal/generation"
	"github.com/mwestra/kbindex/internal/session"
	"github.com/mwestra/kbindex/internal/ui"
)

func newGenerateCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "generate <index-type>",
		Short: "Run the indexing engine for an index type",
		Long: `Runs the configured engine to rebuild the storage artifact from the
data folder, showing live progress. Only one run per index type may be
active at a time, across all kbindex processes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], plain)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Line-per-event output instead of the live view")
	return cmd
}

func runGenerate(cmd *cobra.Command, indexType string, plain bool) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	logger := slog.Default()
	sess := session.New("cli", cfg, store, lockDir(), engineFactory(logger), logger, nil)
	defer sess.Close()

	ctx := cmd.Context()
	if err := sess.SetIndexType(ctx, indexType); err != nil {
		return err
	}
	mgr, err := sess.Manager()
	if err != nil {
		return err
	}
	runner, err := sess.Runner()
	if err != nil {
		return err
	}

	// Subscribe before starting so the first events are not missed.
	sub := mgr.Broadcaster().Subscribe()
	defer mgr.Broadcaster().Unsubscribe(sub)

	if err := runner.Start(ctx); err != nil {
		return err
	}

	if plain || !ui.StdoutIsTTY() {
		if err := followPlain(cmd, mgr, sub); err != nil {
			return err
		}
	} else {
		if err := ui.RunProgress(indexType, mgr.Snapshot(), sub.Events()); err != nil {
			runner.Stop()
			return err
		}
	}

	if err := runner.Wait(); err != nil {
		return err
	}

	// The artifact changed; refresh the record right away.
	sess.Invalidate(indexType)
	if _, err := sess.Status(ctx); err != nil {
		logger.Warn("post-generation status refresh failed", "error", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", indexType)
	return nil
}

// followPlain prints one line per event until the run settles.
func followPlain(cmd *cobra.Command, mgr *generation.Manager, sub *generation.Subscriber) error {
	styles := ui.PlainStyles()
	for ev := range sub.Events() {
		snap := generation.Snapshot{
			State:       generation.State(ev.State),
			Progress:    ev.Progress,
			Stage:       ev.Stage,
			Message:     ev.Message,
			ErrorSource: generation.State(ev.ErrorSource),
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSnapshot(snap, styles))

		if snap.State == generation.StateError {
			return nil
		}
		if snap.State == generation.StateReady && snap.Stage == generation.StageCompleted {
			return nil
		}
	}
	// Channel closed without a terminal event; report where things
	// stand instead of guessing.
	fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSnapshot(mgr.Snapshot(), styles))
	return nil
}
