package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwestra/kbindex/internal/config"
	"github.com/mwestra/kbindex/internal/daemon"
	"github.com/mwestra/kbindex/internal/metadata"
	"github.com/mwestra/kbindex/internal/session"
	"github.com/mwestra/kbindex/internal/watcher"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the kbindex daemon",
		Long: `Serves status, generation and event streaming over a Unix socket and
watches each index type's data folder so metadata is invalidated the
moment source documents change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	registry := session.NewRegistry(cfg, store, lockDir(), engineFactory(logger), logger, nil)
	defer registry.Close()

	if cfg.Watch.Enabled && len(cfg.IndexTypes) > 0 {
		w, err := startWatcher(cfg, registry, logger)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
	}

	server := daemon.NewServer(cfg.Server.SocketPath, registry, logger)
	if err := server.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("daemon stopped")
	return nil
}

// openStore opens the SQLite record store wrapped in the LRU read
// cache.
func openStore(cfg *config.Config) (metadata.Store, error) {
	inner, err := metadata.OpenSQLite(cfg.Metadata.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Metadata.CacheSize == 0 {
		return inner, nil
	}
	cached, err := metadata.NewCachedStore(inner, cfg.Metadata.CacheSize)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return cached, nil
}

// startWatcher wires data-folder changes to session invalidation.
func startWatcher(cfg *config.Config, registry *session.Registry, logger *slog.Logger) (*watcher.Watcher, error) {
	window, err := cfg.DebounceWindow()
	if err != nil {
		return nil, err
	}
	w, err := watcher.New(window, logger)
	if err != nil {
		return nil, err
	}

	for _, it := range cfg.IndexTypes {
		if err := w.Watch(it.Name, it.DataDir); err != nil {
			logger.Warn("cannot watch data folder, staleness falls back to scanning",
				"index_type", it.Name, "error", err)
		}
	}

	go func() {
		for batch := range w.Changes() {
			types := make(map[string]int)
			for _, c := range batch {
				types[c.IndexType]++
			}
			for typ, n := range types {
				logger.Debug("data folder changed, invalidating",
					"index_type", typ, "changes", n)
				registry.Invalidate(typ)
			}
		}
	}()
	return w, nil
}
