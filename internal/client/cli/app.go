package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/client/config"
	"github.com/dmitrijs2005/mindnote/internal/client/media"
	"github.com/dmitrijs2005/mindnote/internal/client/repository"
	"github.com/dmitrijs2005/mindnote/internal/client/services"
	"github.com/dmitrijs2005/mindnote/internal/client/viewmodel"
	"github.com/dmitrijs2005/mindnote/internal/logging"
)

type Mode string

const (
	ModeGuest    Mode = "guest"
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

var ErrNotLoggedIn = errors.New("not logged in, use 'login' first")

// Syncer is the part of services.SyncService the CLI drives.
type Syncer interface {
	Sync(ctx context.Context) (*services.Report, error)
	AfterLogin(ctx context.Context, sess *services.Session) (*services.Report, error)
	QueueUpload(ctx context.Context, workspaceID, itemID, localPath string) error
}

// Deps are the collaborators of App. In and Out default to the process
// stdin and stdout.
type Deps struct {
	Config *config.Config
	Auth   services.AuthService
	Sync   Syncer
	Repo   *repository.Repository
	Media  *media.Store
	Logger logging.Logger
	In     io.Reader
	Out    io.Writer
	// TUI starts the full-screen browser and blocks until it exits.
	TUI func(ctx context.Context) error
}

type App struct {
	config *config.Config
	auth   services.AuthService
	sync   Syncer
	repo   *repository.Repository
	view   *viewmodel.ViewModel
	media  *media.Store
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer
	tui    func(ctx context.Context) error

	mu       sync.RWMutex
	userName string
	mode     Mode
	// listed is the drawer as printed by the last ls, so "open 3" works.
	listed []string
}

func NewApp(d Deps) *App {
	if d.In == nil {
		d.In = os.Stdin
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	return &App{
		config: d.Config,
		auth:   d.Auth,
		sync:   d.Sync,
		repo:   d.Repo,
		view:   viewmodel.New(d.Repo),
		media:  d.Media,
		logger: d.Logger.With("module", "cli"),
		reader: bufio.NewReader(d.In),
		out:    d.Out,
		tui:    d.TUI,
		mode:   ModeGuest,
	}
}

// View exposes the selection state so the TUI can share it.
func (a *App) View() *viewmodel.ViewModel { return a.view }

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		a.logger.Info(ctx, "connectivity mode changed", "mode", string(mode))
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userName != ""
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

func (a *App) getStatus() string {
	a.mu.RLock()
	s := string(a.mode)
	if a.userName != "" {
		s = a.userName + " " + s
	}
	a.mu.RUnlock()
	if ws, ok := a.view.Current(); ok {
		s += " | " + ws.Name
	}
	return s
}

// Run prints a greeting, starts the connectivity watcher and blocks in the
// REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.auth.Close(ctx)

	a.printf("Welcome to MindNote (type 'help' for commands)\n")
	if last, err := a.auth.CurrentUser(ctx); err == nil && last != "" {
		a.printf("Last signed in as %s; type 'login' to continue syncing.\n", last)
	}

	interval := 3 * time.Second
	if a.config != nil && a.config.OnlineCheckInterval > 0 {
		interval = a.config.OnlineCheckInterval
	}
	go a.StartOnlineStatusWatcher(ctx, interval)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader), a.out)
}

// StartOnlineStatusWatcher pings the server while a user is signed in and
// flips between online and offline mode.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !a.isLoggedIn() {
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.auth.Ping(pctx)
			cancel()

			if err != nil {
				if a.Mode() == ModeOnline {
					a.setMode(ctx, ModeOffline)
				}
			} else if a.Mode() != ModeOnline {
				a.setMode(ctx, ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
