package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/dustin/go-humanize"
)

var ErrNoWorkspace = errors.New("no workspace open, use 'open' or 'new' first")

func (a *App) current() (models.Workspace, error) {
	ws, ok := a.view.Current()
	if !ok {
		return models.Workspace{}, ErrNoWorkspace
	}
	return ws, nil
}

// List prints the drawer: favorites first, then by last access. An optional
// argument filters by name or content.
func (a *App) List(_ context.Context, args []string) error {
	list := a.view.Filter(strings.Join(args, " "))

	a.mu.Lock()
	a.listed = a.listed[:0]
	for _, ws := range list {
		a.listed = append(a.listed, ws.ID)
	}
	a.mu.Unlock()

	if len(list) == 0 {
		a.printf("No workspaces.\n")
		return nil
	}
	cur := a.view.CurrentID()
	for i, ws := range list {
		marker := " "
		if ws.ID == cur {
			marker = ">"
		}
		star := " "
		if ws.IsFavorite {
			star = "*"
		}
		indent := ""
		if ws.ParentID != "" {
			indent = "  "
		}
		a.printf("%s%3d %s %s%s  (%d items, %s)\n", marker, i+1, star, indent, ws.Name,
			len(ws.Items), humanize.Time(time.UnixMilli(ws.LastAccessed)))
	}
	return nil
}

// resolve finds a workspace by the number printed by ls, by id, or by name.
func (a *App) resolve(ref string) (models.Workspace, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		a.mu.RLock()
		listed := append([]string(nil), a.listed...)
		a.mu.RUnlock()
		if n >= 1 && n <= len(listed) {
			return a.repo.Get(listed[n-1])
		}
	}
	if ws, err := a.repo.Get(ref); err == nil {
		return ws, nil
	}
	return a.repo.GetByName(ref)
}

// Open selects a workspace and shows it. "open .." goes to the parent.
func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: open <n|id|name|..>")
	}
	ref := strings.Join(args, " ")
	var ws models.Workspace
	var err error
	if ref == ".." {
		cur, cerr := a.current()
		if cerr != nil {
			return cerr
		}
		if cur.ParentID == "" {
			a.view.Clear()
			return nil
		}
		ws, err = a.repo.Get(cur.ParentID)
	} else {
		ws, err = a.resolve(ref)
	}
	if err != nil {
		return err
	}
	if _, err := a.view.Select(ctx, ws.ID); err != nil {
		return err
	}
	return a.Show(ctx, nil)
}

// New creates a top-level workspace and opens it.
func (a *App) New(ctx context.Context, args []string) error {
	name := strings.Join(args, " ")
	if name == "" {
		var err error
		if name, err = getSimpleText(a.reader, "Workspace name", a.out); err != nil {
			return err
		}
	}
	ws, err := a.repo.Create(ctx, name, "")
	if err != nil {
		return err
	}
	if _, err := a.view.Select(ctx, ws.ID); err != nil {
		return err
	}
	a.printf("Created %q.\n", ws.Name)
	return nil
}

// Sub creates a workspace nested in the open one and links it there.
func (a *App) Sub(ctx context.Context, args []string) error {
	parent, err := a.current()
	if err != nil {
		return err
	}
	name := strings.Join(args, " ")
	if name == "" {
		return errors.New("usage: sub <name>")
	}
	child, err := a.repo.CreateSubWorkspace(ctx, parent.ID, name)
	if err != nil {
		return err
	}
	a.printf("Created %q inside %q.\n", child.Name, parent.Name)
	return nil
}

func (a *App) Rename(ctx context.Context, args []string) error {
	ws, err := a.current()
	if err != nil {
		return err
	}
	name := strings.Join(args, " ")
	if name == "" {
		return errors.New("usage: rename <name>")
	}
	renamed, err := a.repo.Rename(ctx, ws.ID, name)
	if err != nil {
		return err
	}
	a.printf("Renamed %q to %q.\n", ws.Name, renamed.Name)
	return nil
}

// Favorite toggles the favorite flag of the open workspace.
func (a *App) Favorite(ctx context.Context, _ []string) error {
	ws, err := a.current()
	if err != nil {
		return err
	}
	updated, err := a.repo.SetFavorite(ctx, ws.ID, !ws.IsFavorite)
	if err != nil {
		return err
	}
	if updated.IsFavorite {
		a.printf("%q added to favorites.\n", updated.Name)
	} else {
		a.printf("%q removed from favorites.\n", updated.Name)
	}
	return nil
}

// Remove deletes the open workspace and everything nested in it after a
// confirmation.
func (a *App) Remove(ctx context.Context, _ []string) error {
	ws, err := a.current()
	if err != nil {
		return err
	}
	nested := len(models.Descendants(a.repo.Snapshot(), ws.ID))
	prompt := fmt.Sprintf("Delete %q", ws.Name)
	if nested > 0 {
		prompt += fmt.Sprintf(" and %d nested workspace(s)", nested)
	}
	if !GetConfirm(a.reader, prompt+"?", a.out) {
		a.printf("Cancelled.\n")
		return nil
	}
	removed, err := a.repo.Delete(ctx, ws.ID)
	if err != nil {
		return err
	}
	a.view.Clear()
	a.printf("Deleted %d workspace(s).\n", len(removed))
	return nil
}
