// Package tui is the full-screen workspace browser: a drawer of workspaces
// on the left and the open workspace's content on the right.
package tui

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mindnote/internal/client/viewmodel"
	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Store is the repository surface the browser edits through.
type Store interface {
	viewmodel.Source
	SetFavorite(ctx context.Context, id string, favorite bool) (models.Workspace, error)
	ToggleCheckbox(ctx context.Context, workspaceID, itemID string) (bool, error)
	RemoveItem(ctx context.Context, workspaceID, itemID string) error
	Delete(ctx context.Context, id string) ([]string, error)
}

const statusHelp = "[::b]Tab[::-] switch  [::b]Enter[::-] open  [::b]Space[::-] toggle  " +
	"[::b]f[::-] favorite  [::b]d[::-] delete  [::b]Backspace[::-] parent  [::b]q[::-] quit"

type Browser struct {
	app     *tview.Application
	pages   *tview.Pages
	drawer  *tview.List
	content *tview.List
	status  *tview.TextView

	store  Store
	view   *viewmodel.ViewModel
	logger logging.Logger
	ctx    context.Context

	drawerIDs   []string
	focusDrawer bool

	// confirm asks before destructive actions; tests replace it.
	confirm func(message string, onYes func())
}

func New(store Store, view *viewmodel.ViewModel, logger logging.Logger) *Browser {
	if view == nil {
		view = viewmodel.New(store)
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	b := &Browser{
		app:         tview.NewApplication(),
		pages:       tview.NewPages(),
		drawer:      tview.NewList().ShowSecondaryText(false),
		content:     tview.NewList().ShowSecondaryText(false),
		status:      tview.NewTextView().SetDynamicColors(true),
		store:       store,
		view:        view,
		logger:      logger.With("module", "tui"),
		ctx:         context.Background(),
		focusDrawer: true,
	}
	b.confirm = b.showConfirm

	b.drawer.SetBorder(true).SetTitle("Workspaces")
	b.content.SetBorder(true).SetTitle("Content")

	cols := tview.NewFlex().
		AddItem(b.drawer, 0, 1, true).
		AddItem(b.content, 0, 3, false)
	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(cols, 0, 1, true).
		AddItem(b.status, 1, 0, false)
	b.pages.AddPage("main", main, true, true)

	b.app.SetRoot(b.pages, true)
	b.app.SetInputCapture(b.handleKey)
	b.refresh()
	return b
}

// SetScreen makes the browser draw to s instead of the terminal.
func (b *Browser) SetScreen(s tcell.Screen) *Browser {
	b.app.SetScreen(s)
	return b
}

// Run blocks until the user quits or ctx is cancelled. Repository changes,
// including those pulled by sync, are redrawn as they arrive.
func (b *Browser) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.ctx = ctx

	changes, unsubscribe := b.view.Changes()
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				b.app.Stop()
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				b.app.QueueUpdateDraw(b.refresh)
			}
		}
	}()

	b.setFocus(b.focusDrawer)
	return b.app.Run()
}

// refresh redraws both panes from the repository. The drawer cursor
// follows the highlighted workspace when the order changes.
func (b *Browser) refresh() {
	list := b.view.Workspaces()

	drawerPos := b.drawer.GetCurrentItem()
	highlighted := b.view.CurrentID()
	if drawerPos >= 0 && drawerPos < len(b.drawerIDs) {
		highlighted = b.drawerIDs[drawerPos]
	}
	drawerPos = min(drawerPos, len(list)-1)
	b.drawer.Clear()
	b.drawerIDs = b.drawerIDs[:0]
	for i, ws := range list {
		label := ws.Name
		if ws.IsFavorite {
			label = "★ " + label
		}
		if ws.ParentID != "" {
			label = "  " + label
		}
		b.drawer.AddItem(label, "", 0, nil)
		b.drawerIDs = append(b.drawerIDs, ws.ID)
		if ws.ID == highlighted {
			drawerPos = i
		}
	}
	if drawerPos >= 0 && drawerPos < len(list) {
		b.drawer.SetCurrentItem(drawerPos)
	}

	contentPos := b.content.GetCurrentItem()
	b.content.Clear()
	ws, ok := b.view.Current()
	if !ok {
		b.content.SetTitle("Content")
	} else {
		b.content.SetTitle(ws.Name)
		for _, it := range ws.Items {
			b.content.AddItem(viewmodel.RenderItem(it), "", 0, nil)
		}
		if contentPos >= 0 && contentPos < len(ws.Items) {
			b.content.SetCurrentItem(contentPos)
		}
	}
	b.status.SetText(statusHelp)
}

func (b *Browser) setFocus(drawer bool) {
	b.focusDrawer = drawer
	if drawer {
		b.app.SetFocus(b.drawer)
	} else {
		b.app.SetFocus(b.content)
	}
}

func (b *Browser) showError(err error) {
	b.logger.Warn(b.ctx, "tui action failed", "error", err)
	b.status.SetText(fmt.Sprintf("[red]%v", err))
}

// open selects the workspace and moves focus to its content.
func (b *Browser) open(id string) {
	if _, err := b.view.Select(b.ctx, id); err != nil {
		b.showError(err)
		return
	}
	b.content.SetCurrentItem(0)
	b.refresh()
	b.setFocus(false)
}

func (b *Browser) selectedItem() (models.Workspace, models.Item, bool) {
	ws, ok := b.view.Current()
	if !ok {
		return ws, nil, false
	}
	i := b.content.GetCurrentItem()
	if i < 0 || i >= len(ws.Items) {
		return ws, nil, false
	}
	return ws, ws.Items[i], true
}

func (b *Browser) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if b.pages.HasPage("confirm") {
		return event
	}

	switch event.Key() {
	case tcell.KeyTab:
		b.setFocus(!b.focusDrawer)
		return nil
	case tcell.KeyEnter:
		b.activate()
		return nil
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if ws, ok := b.view.Current(); ok && ws.ParentID != "" {
			b.open(ws.ParentID)
		}
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q':
			b.app.Stop()
			return nil
		case ' ':
			b.toggle()
			return nil
		case 'f':
			b.favorite()
			return nil
		case 'd':
			b.delete()
			return nil
		}
	}
	return event
}

// activate opens the drawer entry, or follows a sub-workspace link in the
// content pane.
func (b *Browser) activate() {
	if b.focusDrawer {
		i := b.drawer.GetCurrentItem()
		if i >= 0 && i < len(b.drawerIDs) {
			b.open(b.drawerIDs[i])
		}
		return
	}
	_, it, ok := b.selectedItem()
	if !ok {
		return
	}
	if link, ok := it.(models.SubWorkspaceLink); ok {
		b.open(link.WorkspaceID)
	}
}

func (b *Browser) toggle() {
	if b.focusDrawer {
		return
	}
	ws, it, ok := b.selectedItem()
	if !ok {
		return
	}
	if _, ok := it.(models.CheckboxItem); !ok {
		return
	}
	if _, err := b.store.ToggleCheckbox(b.ctx, ws.ID, it.ItemID()); err != nil {
		b.showError(err)
		return
	}
	b.refresh()
}

func (b *Browser) favorite() {
	id := b.view.CurrentID()
	if b.focusDrawer {
		if i := b.drawer.GetCurrentItem(); i >= 0 && i < len(b.drawerIDs) {
			id = b.drawerIDs[i]
		}
	}
	ws, err := b.store.Get(id)
	if err != nil {
		return
	}
	if _, err := b.store.SetFavorite(b.ctx, ws.ID, !ws.IsFavorite); err != nil {
		b.showError(err)
		return
	}
	b.refresh()
}

// delete removes the selected content item, or the highlighted workspace
// when the drawer has focus. Both ask first.
func (b *Browser) delete() {
	if b.focusDrawer {
		i := b.drawer.GetCurrentItem()
		if i < 0 || i >= len(b.drawerIDs) {
			return
		}
		ws, err := b.store.Get(b.drawerIDs[i])
		if err != nil {
			return
		}
		b.confirm(fmt.Sprintf("Delete workspace %q and everything inside it?", ws.Name), func() {
			if _, err := b.store.Delete(b.ctx, ws.ID); err != nil {
				b.showError(err)
			}
			b.refresh()
		})
		return
	}

	ws, it, ok := b.selectedItem()
	if !ok {
		return
	}
	b.confirm("Delete this item?", func() {
		if err := b.store.RemoveItem(b.ctx, ws.ID, it.ItemID()); err != nil {
			b.showError(err)
		}
		b.refresh()
	})
}

func (b *Browser) showConfirm(message string, onYes func()) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			b.pages.RemovePage("confirm")
			b.setFocus(b.focusDrawer)
			if label == "Delete" {
				onYes()
			}
		})
	b.pages.AddPage("confirm", modal, true, true)
	b.app.SetFocus(modal)
}
