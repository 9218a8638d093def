package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/mindnote/internal/codec"
)

// Sync pushes local edits and pulls remote ones.
func (a *App) Sync(ctx context.Context, _ []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	rep, err := a.sync.Sync(ctx)
	if err != nil {
		return err
	}
	a.printReport(rep)
	return nil
}

// Export writes every workspace to path in the given format.
func (a *App) Export(_ context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: export <json|yaml|md> <path>")
	}
	exp, err := codec.ExporterFor(args[0])
	if err != nil {
		return err
	}
	path := args[1]
	if filepath.Ext(path) == "" {
		path += exp.Extension()
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	list := a.repo.List()
	if err := exp.Export(f, list); err != nil {
		f.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.printf("Exported %d workspace(s) to %s.\n", len(list), path)
	return nil
}

// Import adds the workspaces from a JSON or YAML export that are not on
// this device yet.
func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: import <json|yaml> <path>")
	}
	imp, err := codec.ImporterFor(args[0])
	if err != nil {
		return err
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	list, err := imp.Import(f)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	n, err := a.repo.Import(ctx, list)
	if err != nil {
		return err
	}
	a.printf("Imported %d of %d workspace(s).\n", n, len(list))
	return nil
}

// TUI hands the terminal to the full-screen browser.
func (a *App) TUI(ctx context.Context, _ []string) error {
	if a.tui == nil {
		return errors.New("full-screen mode is not available")
	}
	return a.tui(ctx)
}
