// Package repository keeps the workspace list in memory and writes it
// through to a storage.Store on every mutation. It is the single source of
// truth for the CLI, the TUI and the sync service.
package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/client/storage"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/dmitrijs2005/mindnote/internal/models"
)

// ChangeRecorder receives local edits so they can be pushed on next sync.
type ChangeRecorder interface {
	MarkDirty(ctx context.Context, workspaceID string, baseVersion int64) error
	MarkDeleted(ctx context.Context, workspaceID string, baseVersion int64) error
}

type nopRecorder struct{}

func (nopRecorder) MarkDirty(context.Context, string, int64) error   { return nil }
func (nopRecorder) MarkDeleted(context.Context, string, int64) error { return nil }

type change struct {
	id      string
	base    int64
	deleted bool
}

// Repository is safe for concurrent use.
type Repository struct {
	mu      sync.RWMutex
	list    []models.Workspace
	store   storage.Store
	changes ChangeRecorder
	logger  logging.Logger
	now     func() time.Time
	// gen counts committed states; guarded by mu.
	gen uint64

	subMu     sync.Mutex
	subs      map[int]chan []models.Workspace
	nextSub   int
	published uint64
}

// Open loads the list from store. changes may be nil when nothing tracks edits.
func Open(ctx context.Context, store storage.Store, changes ChangeRecorder, logger logging.Logger) (*Repository, error) {
	if changes == nil {
		changes = nopRecorder{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	r := &Repository{
		store:   store,
		changes: changes,
		logger:  logger.With("module", "repository"),
		now:     time.Now,
		subs:    map[int]chan []models.Workspace{},
	}
	list, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workspaces: %w", err)
	}
	r.list = list
	return r, nil
}

func cloneList(list []models.Workspace) []models.Workspace {
	out := make([]models.Workspace, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}

// List returns all workspaces in drawer order.
func (r *Repository) List() []models.Workspace {
	r.mu.RLock()
	out := cloneList(r.list)
	r.mu.RUnlock()
	models.SortForDrawer(out)
	return out
}

// Snapshot returns all workspaces in storage order.
func (r *Repository) Snapshot() []models.Workspace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneList(r.list)
}

func (r *Repository) Get(id string) (models.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := models.Find(r.list, id); i >= 0 {
		return r.list[i].Clone(), nil
	}
	return models.Workspace{}, models.ErrWorkspaceMissing
}

// GetByName returns the first workspace whose name matches case-insensitively.
func (r *Repository) GetByName(name string) (models.Workspace, error) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ws := range r.list {
		if strings.EqualFold(ws.Name, name) {
			return ws.Clone(), nil
		}
	}
	return models.Workspace{}, models.ErrWorkspaceMissing
}

// mutate applies fn to a copy of the list, persists the result and only then
// swaps it in. On any error the in-memory state is left untouched.
func (r *Repository) mutate(ctx context.Context, fn func(list []models.Workspace) ([]models.Workspace, []change, error)) error {
	r.mu.Lock()
	next, changes, err := fn(cloneList(r.list))
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if err := r.store.Save(ctx, next); err != nil {
		r.mu.Unlock()
		r.logger.Error(ctx, "saving workspaces failed", "error", err)
		return fmt.Errorf("save workspaces: %w", err)
	}
	r.list = next
	r.gen++
	gen := r.gen
	snapshot := cloneList(next)
	r.mu.Unlock()

	for _, c := range changes {
		var err error
		if c.deleted {
			err = r.changes.MarkDeleted(ctx, c.id, c.base)
		} else {
			err = r.changes.MarkDirty(ctx, c.id, c.base)
		}
		if err != nil {
			r.logger.Warn(ctx, "recording change failed", "workspace", c.id, "error", err)
		}
	}

	r.publish(snapshot, gen)
	return nil
}

// edit runs fn on one workspace and records it as changed.
func (r *Repository) edit(ctx context.Context, id string, fn func(ws *models.Workspace) error) (models.Workspace, error) {
	var result models.Workspace
	err := r.mutate(ctx, func(list []models.Workspace) ([]models.Workspace, []change, error) {
		i := models.Find(list, id)
		if i < 0 {
			return nil, nil, models.ErrWorkspaceMissing
		}
		if err := fn(&list[i]); err != nil {
			return nil, nil, err
		}
		if err := list[i].Validate(); err != nil {
			return nil, nil, err
		}
		list[i].MarkUpdated(r.now())
		result = list[i].Clone()
		return list, []change{{id: id, base: list[i].Version}}, nil
	})
	return result, err
}

// Create adds a new top-level workspace.
func (r *Repository) Create(ctx context.Context, name, iconURI string) (models.Workspace, error) {
	ws, err := models.NewWorkspace(name, iconURI, r.now())
	if err != nil {
		return models.Workspace{}, err
	}
	err = r.mutate(ctx, func(list []models.Workspace) ([]models.Workspace, []change, error) {
		return append(list, ws), []change{{id: ws.ID}}, nil
	})
	if err != nil {
		return models.Workspace{}, err
	}
	return ws.Clone(), nil
}

// CreateSubWorkspace creates a workspace nested under parentID and appends
// a link to it at the end of the parent.
func (r *Repository) CreateSubWorkspace(ctx context.Context, parentID, name string) (models.Workspace, error) {
	child, err := models.NewWorkspace(name, "", r.now())
	if err != nil {
		return models.Workspace{}, err
	}
	child.ParentID = parentID

	err = r.mutate(ctx, func(list []models.Workspace) ([]models.Workspace, []change, error) {
		i := models.Find(list, parentID)
		if i < 0 {
			return nil, nil, models.ErrWorkspaceMissing
		}
		if _, err := list[i].AddItem(models.SubWorkspaceLink{WorkspaceID: child.ID, DisplayName: child.Name}); err != nil {
			return nil, nil, err
		}
		list[i].MarkUpdated(r.now())
		changes := []change{{id: parentID, base: list[i].Version}, {id: child.ID}}
		return append(list, child), changes, nil
	})
	if err != nil {
		return models.Workspace{}, err
	}
	return child.Clone(), nil
}

// Replace swaps the stored workspace for ws (matched by id), keeping the
// synced version.
func (r *Repository) Replace(ctx context.Context, ws models.Workspace) (models.Workspace, error) {
	return r.edit(ctx, ws.ID, func(cur *models.Workspace) error {
		version := cur.Version
		*cur = ws.Clone()
		cur.Version = version
		return nil
	})
}

// Rename changes the name and the display name of every link to it.
func (r *Repository) Rename(ctx context.Context, id, name string) (models.Workspace, error) {
	name = strings.TrimSpace(name)
	var result models.Workspace
	err := r.mutate(ctx, func(list []models.Workspace) ([]models.Workspace, []change, error) {
		i := models.Find(list, id)
		if i < 0 {
			return nil, nil, models.ErrWorkspaceMissing
		}
		list[i].Name = name
		if err := list[i].Validate(); err != nil {
			return nil, nil, err
		}
		now := r.now()
		list[i].MarkUpdated(now)
		changes := []change{{id: id, base: list[i].Version}}

		for j := range list {
			touched := false
			for k, it := range list[j].Items {
				if l, ok := it.(models.SubWorkspaceLink); ok && l.WorkspaceID == id {
					l.DisplayName = name
					list[j].Items[k] = l
					touched = true
				}
			}
			if touched && j != i {
				list[j].MarkUpdated(now)
				changes = append(changes, change{id: list[j].ID, base: list[j].Version})
			}
		}
		result = list[i].Clone()
		return list, changes, nil
	})
	return result, err
}

func (r *Repository) SetIcon(ctx context.Context, id, iconURI string) (models.Workspace, error) {
	return r.edit(ctx, id, func(ws *models.Workspace) error {
		ws.IconURI = iconURI
		return nil
	})
}

func (r *Repository) SetFavorite(ctx context.Context, id string, favorite bool) (models.Workspace, error) {
	return r.edit(ctx, id, func(ws *models.Workspace) error {
		ws.IsFavorite = favorite
		return nil
	})
}

// Touch records that the workspace was opened. It does not count as an
// edit and is not queued for sync.
func (r *Repository) Touch(ctx context.Context, id string) error {
	return r.mutate(ctx, func(list []models.Workspace) ([]models.Workspace, []change, error) {
		i := models.Find(list, id)
		if i < 0 {
			return nil, nil, models.ErrWorkspaceMissing
		}
		list[i].Touch(r.now())
		return list, nil, nil
	})
}

// Delete removes the workspace and all workspaces nested under it, then
// strips links to them from the survivors. It returns the removed ids.
func (r *Repository) Delete(ctx context.Context, id string) ([]string, error) {
	var removed []string
	err := r.mutate(ctx, func(list []models.Workspace) ([]models.Workspace, []change, error) {
		if models.Find(list, id) < 0 {
			return nil, nil, models.ErrWorkspaceMissing
		}
		removed = append([]string{id}, models.Descendants(list, id)...)
		gone := make(map[string]bool, len(removed))
		for _, rid := range removed {
			gone[rid] = true
		}

		var changes []change
		kept := make([]models.Workspace, 0, len(list))
		for _, ws := range list {
			if gone[ws.ID] {
				changes = append(changes, change{id: ws.ID, base: ws.Version, deleted: true})
				continue
			}
			kept = append(kept, ws)
		}
		now := r.now()
		for _, i := range models.StripLinksTo(kept, gone) {
			kept[i].MarkUpdated(now)
			changes = append(changes, change{id: kept[i].ID, base: kept[i].Version})
		}
		return kept, changes, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Reload replaces the in-memory list with what is on disk, for edits made
// by another process.
func (r *Repository) Reload(ctx context.Context) error {
	list, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.list = list
	r.gen++
	gen := r.gen
	snapshot := cloneList(list)
	r.mu.Unlock()
	r.publish(snapshot, gen)
	return nil
}

// ApplyRemote merges workspaces received from the server. Tombstones remove
// the local copy and its links. Nothing is queued for sync.
func (r *Repository) ApplyRemote(ctx context.Context, remote []models.Workspace) error {
	if len(remote) == 0 {
		return nil
	}
	return r.mutate(ctx, func(list []models.Workspace) ([]models.Workspace, []change, error) {
		gone := map[string]bool{}
		for _, ws := range remote {
			i := models.Find(list, ws.ID)
			switch {
			case ws.Deleted:
				gone[ws.ID] = true
			case i >= 0:
				list[i] = ws.Clone()
			default:
				list = append(list, ws.Clone())
			}
		}
		if len(gone) > 0 {
			kept := list[:0]
			for _, ws := range list {
				if !gone[ws.ID] {
					kept = append(kept, ws)
				}
			}
			list = kept
			models.StripLinksTo(list, gone)
		}
		return list, nil, nil
	})
}

// AckVersions stores server-assigned versions without touching content.
func (r *Repository) AckVersions(ctx context.Context, versions map[string]int64) error {
	if len(versions) == 0 {
		return nil
	}
	return r.mutate(ctx, func(list []models.Workspace) ([]models.Workspace, []change, error) {
		for i := range list {
			if v, ok := versions[list[i].ID]; ok {
				list[i].Version = v
			}
		}
		return list, nil, nil
	})
}

// MarkAllDirty queues every workspace for upload. Used after a guest
// session logs in for the first time.
func (r *Repository) MarkAllDirty(ctx context.Context) error {
	for _, ws := range r.Snapshot() {
		if err := r.changes.MarkDirty(ctx, ws.ID, ws.Version); err != nil {
			return fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
	}
	return nil
}

// Reset replaces every workspace with list without queueing anything. Used
// when another account signs in on this device.
func (r *Repository) Reset(ctx context.Context, list []models.Workspace) error {
	return r.mutate(ctx, func([]models.Workspace) ([]models.Workspace, []change, error) {
		return cloneList(list), nil, nil
	})
}

// Import adds the workspaces from list whose ids are not present yet, as
// unsynced local data. It returns how many were added.
func (r *Repository) Import(ctx context.Context, list []models.Workspace) (int, error) {
	added := 0
	err := r.mutate(ctx, func(cur []models.Workspace) ([]models.Workspace, []change, error) {
		var changes []change
		now := r.now()
		for _, ws := range list {
			if models.Find(cur, ws.ID) >= 0 {
				continue
			}
			ws = ws.Clone()
			if err := ws.Validate(); err != nil {
				return nil, nil, fmt.Errorf("workspace %q: %w", ws.Name, err)
			}
			ws.Version = 0
			ws.Deleted = false
			ws.MarkUpdated(now)
			cur = append(cur, ws)
			changes = append(changes, change{id: ws.ID})
		}
		added = len(changes)
		return cur, changes, nil
	})
	return added, err
}
