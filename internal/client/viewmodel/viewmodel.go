// Package viewmodel holds UI state on top of the workspace repository:
// the drawer list and the currently opened workspace.
package viewmodel

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/dmitrijs2005/mindnote/internal/richtext"
)

// Source is the subset of the repository the view model reads.
type Source interface {
	List() []models.Workspace
	Get(id string) (models.Workspace, error)
	Touch(ctx context.Context, id string) error
	Subscribe() (<-chan []models.Workspace, func())
}

type ViewModel struct {
	src Source

	mu      sync.RWMutex
	current string
}

func New(src Source) *ViewModel {
	return &ViewModel{src: src}
}

// Workspaces returns the drawer list.
func (v *ViewModel) Workspaces() []models.Workspace {
	return v.src.List()
}

// Changes streams drawer snapshots until cancel is called.
func (v *ViewModel) Changes() (<-chan []models.Workspace, func()) {
	return v.src.Subscribe()
}

// Current returns the selected workspace. ok is false when nothing is
// selected or the selection was deleted meanwhile.
func (v *ViewModel) Current() (models.Workspace, bool) {
	v.mu.RLock()
	id := v.current
	v.mu.RUnlock()
	if id == "" {
		return models.Workspace{}, false
	}
	ws, err := v.src.Get(id)
	if err != nil {
		v.mu.Lock()
		if v.current == id {
			v.current = ""
		}
		v.mu.Unlock()
		return models.Workspace{}, false
	}
	return ws, true
}

func (v *ViewModel) CurrentID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Select opens the workspace and records the access.
func (v *ViewModel) Select(ctx context.Context, id string) (models.Workspace, error) {
	if err := v.src.Touch(ctx, id); err != nil {
		return models.Workspace{}, err
	}
	ws, err := v.src.Get(id)
	if err != nil {
		return models.Workspace{}, err
	}
	v.mu.Lock()
	v.current = id
	v.mu.Unlock()
	return ws, nil
}

// Clear drops the selection.
func (v *ViewModel) Clear() {
	v.mu.Lock()
	v.current = ""
	v.mu.Unlock()
}

// Filter returns drawer entries whose name or any item text contains query,
// case-insensitively. An empty query returns everything.
func (v *ViewModel) Filter(query string) []models.Workspace {
	list := v.src.List()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return list
	}
	out := list[:0]
	for _, ws := range list {
		if matches(ws, q) {
			out = append(out, ws)
		}
	}
	return out
}

func matches(ws models.Workspace, q string) bool {
	if strings.Contains(strings.ToLower(ws.Name), q) {
		return true
	}
	for _, it := range ws.Items {
		var text string
		switch v := it.(type) {
		case models.TextItem:
			text = richtext.PlainText(v.Text)
		case models.FileItem:
			text = v.FileName
		case models.SubWorkspaceLink:
			text = v.DisplayName
		default:
			text = models.ItemText(it)
		}
		if strings.Contains(strings.ToLower(text), q) {
			return true
		}
	}
	return false
}
