package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mwestra/kbindex/internal/config"
	"github.com/mwestra/kbindex/internal/session"
	"github.com/mwestra/kbindex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [index-type]",
		Short: "Report data/storage/metadata health for an index type",
		Long: `Compares the data folder, the storage artifact and the metadata record
for an index type. When the record is out of date the folder is
rescanned and the record refreshed; when the artifact is out of date it
is reported stale so you know to run 'kbindex generate'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}

			var types []string
			switch {
			case all:
				types = cfg.TypeNames()
			case len(args) == 1:
				types = []string{args[0]}
			default:
				return fmt.Errorf("name an index type or pass --all")
			}
			if len(types) == 0 {
				return fmt.Errorf("no index types configured (edit %s)", resolveConfigPath())
			}

			results, err := gatherStatus(cmd.Context(), cfg, types)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if len(results) == 1 && !all {
					return enc.Encode(results[0])
				}
				return enc.Encode(results)
			}

			styles := ui.GetStyles(false)
			for i, data := range results {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprint(cmd.OutOrStdout(), ui.RenderStatus(data, styles))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Report every configured index type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of styled text")
	return cmd
}

// gatherStatus queries the named types concurrently, one short-lived
// session per type, and returns results in name order.
func gatherStatus(ctx context.Context, cfg *config.Config, types []string) ([]session.StatusData, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	logger := slog.Default()
	var mu sync.Mutex
	results := make([]session.StatusData, 0, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for _, typ := range types {
		g.Go(func() error {
			sess := session.New("cli:"+typ, cfg, store, lockDir(), nil, logger, nil)
			defer sess.Close()

			if err := sess.SetIndexType(gctx, typ); err != nil {
				return err
			}
			data, err := sess.Status(gctx)
			if err != nil {
				return fmt.Errorf("status of %q: %w", typ, err)
			}

			mu.Lock()
			results = append(results, data)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].IndexType < results[j].IndexType
	})
	return results, nil
}
