package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/mindnote/internal/client/media"
	"github.com/dmitrijs2005/mindnote/internal/client/viewmodel"
	"github.com/dmitrijs2005/mindnote/internal/filex"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/dmitrijs2005/mindnote/internal/richtext"
)

// itemIndex parses a 1-based item number as printed by show.
func itemIndex(ws models.Workspace, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(ws.Items) {
		return 0, fmt.Errorf("no item %q, the workspace has %d", arg, len(ws.Items))
	}
	return n - 1, nil
}

func (a *App) add(ctx context.Context, it models.Item) (models.Workspace, models.Item, error) {
	ws, err := a.current()
	if err != nil {
		return ws, nil, err
	}
	added, err := a.repo.AddItem(ctx, ws.ID, it)
	return ws, added, err
}

func (a *App) lineArg(args []string, usage string) (string, error) {
	text := strings.Join(args, " ")
	if text == "" {
		return "", errors.New(usage)
	}
	return richtext.FromPlain(text), nil
}

// AddText appends a text block. Without arguments it reads lines until an
// empty one.
func (a *App) AddText(ctx context.Context, args []string) error {
	if _, err := a.current(); err != nil {
		return err
	}
	text := strings.Join(args, " ")
	if text == "" {
		var err error
		if text, err = GetMultiline(a.reader, "Text", a.out); err != nil {
			return err
		}
	}
	if text == "" {
		return errors.New("empty text")
	}
	_, _, err := a.add(ctx, models.TextItem{Text: richtext.FromPlain(text)})
	return err
}

func (a *App) AddCheckbox(ctx context.Context, args []string) error {
	text, err := a.lineArg(args, "usage: check <text>")
	if err != nil {
		return err
	}
	_, _, err = a.add(ctx, models.CheckboxItem{Text: text})
	return err
}

func (a *App) AddNumbered(ctx context.Context, args []string) error {
	text, err := a.lineArg(args, "usage: num <text>")
	if err != nil {
		return err
	}
	_, _, err = a.add(ctx, models.NumberedListItem{Text: text})
	return err
}

func (a *App) AddBullet(ctx context.Context, args []string) error {
	text, err := a.lineArg(args, "usage: bullet <text>")
	if err != nil {
		return err
	}
	_, _, err = a.add(ctx, models.BulletListItem{Text: text})
	return err
}

// Toggle flips checkbox n.
func (a *App) Toggle(ctx context.Context, args []string) error {
	ws, err := a.current()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: toggle <n>")
	}
	i, err := itemIndex(ws, args[0])
	if err != nil {
		return err
	}
	checked, err := a.repo.ToggleCheckbox(ctx, ws.ID, ws.Items[i].ItemID())
	if err != nil {
		return err
	}
	state := "unchecked"
	if checked {
		state = "checked"
	}
	a.printf("Item %d %s.\n", i+1, state)
	return nil
}

// importMedia copies path into the media store, adds the item built by mk
// and queues the copy for upload.
func (a *App) importMedia(ctx context.Context, args []string, usage string, mk func(ref media.Ref) models.Item) error {
	if _, err := a.current(); err != nil {
		return err
	}
	path := strings.Join(args, " ")
	if path == "" {
		return errors.New(usage)
	}
	ref, err := a.media.Import(ctx, path)
	if err != nil {
		return err
	}
	ws, added, err := a.add(ctx, mk(ref))
	if err != nil {
		_ = a.media.Remove(ref.URI)
		return err
	}
	local, err := filex.PathFromURI(ref.URI)
	if err != nil {
		return err
	}
	if err := a.sync.QueueUpload(ctx, ws.ID, added.ItemID(), local); err != nil {
		a.logger.Warn(ctx, "queue upload failed", "item", added.ItemID(), "error", err)
	}
	return nil
}

func (a *App) AddImage(ctx context.Context, args []string) error {
	return a.importMedia(ctx, args, "usage: image <path>", func(ref media.Ref) models.Item {
		if !ref.IsImage {
			a.printf("%s is not a decodable image; it will show as a placeholder.\n", ref.Name)
		}
		return models.ImageItem{ImageURI: ref.URI, Width: ref.Width, Height: ref.Height}
	})
}

func (a *App) AddFile(ctx context.Context, args []string) error {
	return a.importMedia(ctx, args, "usage: file <path>", func(ref media.Ref) models.Item {
		return models.FileItem{FileName: ref.Name, FileURI: ref.URI, FileSize: ref.Size}
	})
}

// DeleteItem removes item n.
func (a *App) DeleteItem(ctx context.Context, args []string) error {
	ws, err := a.current()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("usage: del <n>")
	}
	i, err := itemIndex(ws, args[0])
	if err != nil {
		return err
	}
	return a.repo.RemoveItem(ctx, ws.ID, ws.Items[i].ItemID())
}

// MoveItem moves item from to position to.
func (a *App) MoveItem(ctx context.Context, args []string) error {
	ws, err := a.current()
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return errors.New("usage: mv <from> <to>")
	}
	from, err := itemIndex(ws, args[0])
	if err != nil {
		return err
	}
	to, err := itemIndex(ws, args[1])
	if err != nil {
		return err
	}
	return a.repo.MoveItem(ctx, ws.ID, from, to)
}

// Show prints the open workspace with numbered items.
func (a *App) Show(_ context.Context, _ []string) error {
	ws, err := a.current()
	if err != nil {
		return err
	}
	star := ""
	if ws.IsFavorite {
		star = " *"
	}
	a.printf("== %s%s ==\n", ws.Name, star)
	if len(ws.Items) == 0 {
		a.printf("(empty)\n")
	}
	for i, it := range ws.Items {
		a.printf("%3d  %s\n", i+1, viewmodel.RenderItem(it))
	}
	return nil
}
