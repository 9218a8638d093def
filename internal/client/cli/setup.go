package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/mindnote/internal/client/changes"
	"github.com/dmitrijs2005/mindnote/internal/client/client"
	"github.com/dmitrijs2005/mindnote/internal/client/config"
	"github.com/dmitrijs2005/mindnote/internal/client/media"
	"github.com/dmitrijs2005/mindnote/internal/client/repository"
	"github.com/dmitrijs2005/mindnote/internal/client/services"
	"github.com/dmitrijs2005/mindnote/internal/client/storage"
	"github.com/dmitrijs2005/mindnote/internal/client/tui"
	"github.com/dmitrijs2005/mindnote/internal/client/watch"
	"github.com/dmitrijs2005/mindnote/internal/logging"
)

// StateDBName is the SQLite file holding sync state and cached credentials.
const StateDBName = "state.db"

// Setup builds the client from cfg and starts its background workers: the
// file watcher, the change listener and auto sync. They stop when ctx is
// cancelled; the returned func releases the rest.
func Setup(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	logger := logging.NewConsoleZerologLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	repos, err := client.InitDatabase(ctx, filepath.Join(cfg.DataDir, StateDBName))
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, nil, err
	}

	store := storage.NewFileStore(cfg.DataDir, logger)
	repo, err := repository.Open(ctx, store, repos.Outbox, logger)
	if err != nil {
		repos.Close()
		return nil, nil, err
	}

	ms, err := media.New(cfg.DataDir, 0, logger)
	if err != nil {
		repos.Close()
		return nil, nil, err
	}
	if n, err := ms.GarbageCollect(ctx, media.Referenced(repo.Snapshot())); err != nil {
		logger.Warn(ctx, "media cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "removed unreferenced media", "files", n)
	}

	apiClient, err := client.NewMindNoteClientService(cfg.ServerEndpointAddr)
	if err != nil {
		repos.Close()
		return nil, nil, err
	}

	auth := services.NewAuthService(apiClient, repos.DB, logger)
	syncSvc := services.NewSyncService(apiClient, repo, repos, cfg.SyncPolicy, logger)

	app := NewApp(Deps{
		Config: cfg,
		Auth:   auth,
		Sync:   syncSvc,
		Repo:   repo,
		Media:  ms,
		Logger: logger,
	})
	app.tui = func(ctx context.Context) error {
		return tui.New(repo, app.View(), logger).Run(ctx)
	}

	go func() {
		w := watch.New(store.PrimaryPath(), repo.Reload, logger)
		if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.Warn(ctx, "file watcher stopped", "error", err)
		}
	}()

	if cfg.ChangesURL != "" {
		token := func() string {
			access, _ := apiClient.Tokens()
			return access
		}
		l := changes.New(cfg.ChangesURL, token, func(ctx context.Context, ev changes.Event) {
			logger.Debug(ctx, "remote change", "version", ev.Version)
			syncSvc.Request(ctx)
		}, logger)
		go func() { _ = l.Run(ctx) }()
	}

	syncSvc.StartAutoSync(ctx, cfg.AutoSyncInterval)

	cleanup := func() {
		ms.Wait()
		if err := repos.Close(); err != nil {
			logger.Warn(context.Background(), "closing state db failed", "error", err)
		}
	}
	return app, cleanup, nil
}
