// Package server initializes and runs the MindNote sync server: the gRPC
// endpoint, the HTTP gateway with its change feed, and background upkeep.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/dmitrijs2005/mindnote/internal/server/config"
	"github.com/dmitrijs2005/mindnote/internal/server/gateway"
	"github.com/dmitrijs2005/mindnote/internal/server/notify"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mindnote/internal/server/services"

	gs "github.com/dmitrijs2005/mindnote/internal/server/grpc"
)

const tokenPurgeInterval = time.Hour

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config           *config.Config
	logger           logging.Logger
	db               *sql.DB
	hub              *notify.Hub
	userService      *services.UserService
	workspaceService *services.WorkspaceService
	mediaService     *services.MediaService
}

// NewApp opens the database, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONSlogLogger(os.Stdout, logging.ParseLevel(c.LogLevel))

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	hub := notify.NewHub(notify.DefaultBuffer, logger)

	return &App{
		config:           c,
		logger:           logger,
		db:               db,
		hub:              hub,
		userService:      services.NewUserService(db, rm, c),
		workspaceService: services.NewWorkspaceService(db, rm, hub, logger),
		mediaService:     services.NewMediaService(db, rm, c),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService,
		app.workspaceService, app.mediaService, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startGateway(ctx context.Context, cancelFunc context.CancelFunc) {
	g := gateway.New(app.config.EndpointAddrHTTP, app.logger, app.workspaceService, app.hub, app.config.SecretKey)

	if err := g.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP gateway failed", "error", err)
		cancelFunc()
	}
}

// purgeTokens drops expired refresh tokens periodically.
func (app *App) purgeTokens(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.userService.PurgeExpiredTokens(ctx)
			if err != nil {
				app.logger.Warn(ctx, "token purge failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired refresh tokens purged", "count", n)
			}
		}
	}
}

// Run starts every component and blocks until ctx is cancelled, a signal
// arrives or a server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGateway(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeTokens(ctx, tokenPurgeInterval)
	}()

	<-ctx.Done()
	app.hub.Close()
	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
