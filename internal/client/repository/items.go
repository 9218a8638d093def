package repository

import (
	"context"

	"github.com/dmitrijs2005/mindnote/internal/models"
)

// AddItem appends it to the workspace and returns it with its id.
func (r *Repository) AddItem(ctx context.Context, workspaceID string, it models.Item) (models.Item, error) {
	var added models.Item
	_, err := r.edit(ctx, workspaceID, func(ws *models.Workspace) error {
		var err error
		added, err = ws.AddItem(it)
		ws.RenumberLists()
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// InsertItem places it at position at.
func (r *Repository) InsertItem(ctx context.Context, workspaceID string, at int, it models.Item) (models.Item, error) {
	var added models.Item
	_, err := r.edit(ctx, workspaceID, func(ws *models.Workspace) error {
		var err error
		added, err = ws.InsertItem(at, it)
		ws.RenumberLists()
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UpdateItem replaces the item with the same id.
func (r *Repository) UpdateItem(ctx context.Context, workspaceID string, it models.Item) error {
	_, err := r.edit(ctx, workspaceID, func(ws *models.Workspace) error {
		if err := ws.UpdateItem(it); err != nil {
			return err
		}
		ws.RenumberLists()
		return nil
	})
	return err
}

// RemoveItem deletes one item. Removing a sub-workspace link keeps the
// linked workspace; it becomes top-level if it was nested here.
func (r *Repository) RemoveItem(ctx context.Context, workspaceID, itemID string) error {
	return r.mutate(ctx, func(list []models.Workspace) ([]models.Workspace, []change, error) {
		i := models.Find(list, workspaceID)
		if i < 0 {
			return nil, nil, models.ErrWorkspaceMissing
		}
		removed, err := list[i].RemoveItem(itemID)
		if err != nil {
			return nil, nil, err
		}
		list[i].RenumberLists()
		now := r.now()
		list[i].MarkUpdated(now)
		changes := []change{{id: workspaceID, base: list[i].Version}}

		if l, ok := removed.(models.SubWorkspaceLink); ok {
			if j := models.Find(list, l.WorkspaceID); j >= 0 && list[j].ParentID == workspaceID {
				list[j].ParentID = ""
				list[j].MarkUpdated(now)
				changes = append(changes, change{id: list[j].ID, base: list[j].Version})
			}
		}
		return list, changes, nil
	})
}

// MoveItem reorders items inside one workspace.
func (r *Repository) MoveItem(ctx context.Context, workspaceID string, from, to int) error {
	_, err := r.edit(ctx, workspaceID, func(ws *models.Workspace) error {
		if err := ws.MoveItem(from, to); err != nil {
			return err
		}
		ws.RenumberLists()
		return nil
	})
	return err
}

// ToggleCheckbox flips the checked state of a checkbox item.
func (r *Repository) ToggleCheckbox(ctx context.Context, workspaceID, itemID string) (bool, error) {
	var checked bool
	_, err := r.edit(ctx, workspaceID, func(ws *models.Workspace) error {
		it, err := ws.Item(itemID)
		if err != nil {
			return err
		}
		cb, ok := it.(models.CheckboxItem)
		if !ok {
			return models.ErrKindMismatch
		}
		cb.IsChecked = !cb.IsChecked
		checked = cb.IsChecked
		return ws.UpdateItem(cb)
	})
	return checked, err
}
