package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/mindnote/internal/common"
)

// MaxNameLength bounds workspace names in runes.
const MaxNameLength = 64

var (
	ErrEmptyName        = fmt.Errorf("%w: empty workspace name", common.ErrorValidation)
	ErrNameTooLong      = fmt.Errorf("%w: workspace name too long", common.ErrorValidation)
	ErrDuplicateItem    = fmt.Errorf("%w: duplicate item id", common.ErrorValidation)
	ErrKindMismatch     = fmt.Errorf("%w: item kind mismatch", common.ErrorValidation)
	ErrIndexOutOfRange  = fmt.Errorf("%w: index out of range", common.ErrorValidation)
	ErrSelfLink         = fmt.Errorf("%w: workspace cannot link to itself", common.ErrorValidation)
	ErrItemNotFound     = fmt.Errorf("item %w", common.ErrorNotFound)
	ErrWorkspaceMissing = fmt.Errorf("workspace %w", common.ErrorNotFound)
)

// Workspace is a named page of content items. Nesting is expressed twice:
// the parent holds a SubWorkspaceLink and the child records ParentID.
//
// Version, Deleted and UpdatedAt are sync bookkeeping. Version is assigned
// by the server; UpdatedAt and LastAccessed are Unix milliseconds.
type Workspace struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	IconURI      string `json:"iconUri,omitempty" yaml:"iconUri,omitempty"`
	IsFavorite   bool   `json:"isFavorite" yaml:"isFavorite"`
	LastAccessed int64  `json:"lastAccessed" yaml:"lastAccessed"`
	ParentID     string `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Items        Items  `json:"items" yaml:"items"`
	Version      int64  `json:"version,omitempty" yaml:"version,omitempty"`
	Deleted      bool   `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	UpdatedAt    int64  `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// NewWorkspace returns a validated empty workspace.
func NewWorkspace(name, iconURI string, now time.Time) (Workspace, error) {
	ws := Workspace{
		ID:           NewID(),
		Name:         strings.TrimSpace(name),
		IconURI:      iconURI,
		LastAccessed: now.UnixMilli(),
		UpdatedAt:    now.UnixMilli(),
		Items:        Items{},
	}
	return ws, ws.Validate()
}

// Validate checks the name and that item ids are unique.
func (w Workspace) Validate() error {
	name := strings.TrimSpace(w.Name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	seen := make(map[string]struct{}, len(w.Items))
	for _, it := range w.Items {
		if _, ok := seen[it.ItemID()]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, it.ItemID())
		}
		seen[it.ItemID()] = struct{}{}
		if l, ok := it.(SubWorkspaceLink); ok && l.WorkspaceID == w.ID {
			return ErrSelfLink
		}
	}
	return nil
}

// Clone returns a copy whose item slice can be modified independently.
func (w Workspace) Clone() Workspace {
	w.Items = append(Items(nil), w.Items...)
	if w.Items == nil {
		w.Items = Items{}
	}
	return w
}

func (w Workspace) indexOf(id string) int {
	for i, it := range w.Items {
		if it.ItemID() == id {
			return i
		}
	}
	return -1
}

// Item returns the item with the given id.
func (w Workspace) Item(id string) (Item, error) {
	if i := w.indexOf(id); i >= 0 {
		return w.Items[i], nil
	}
	return nil, ErrItemNotFound
}

// AddItem appends it, assigning an id when missing.
func (w *Workspace) AddItem(it Item) (Item, error) {
	return w.InsertItem(len(w.Items), it)
}

// InsertItem places it at position at (0..len).
func (w *Workspace) InsertItem(at int, it Item) (Item, error) {
	if at < 0 || at > len(w.Items) {
		return nil, ErrIndexOutOfRange
	}
	it = EnsureID(it)
	if w.indexOf(it.ItemID()) >= 0 {
		return nil, ErrDuplicateItem
	}
	if l, ok := it.(SubWorkspaceLink); ok && l.WorkspaceID == w.ID {
		return nil, ErrSelfLink
	}
	items := make(Items, 0, len(w.Items)+1)
	items = append(items, w.Items[:at]...)
	items = append(items, it)
	items = append(items, w.Items[at:]...)
	w.Items = items
	return it, nil
}

// UpdateItem replaces the item with the same id. The kind cannot change.
func (w *Workspace) UpdateItem(it Item) error {
	i := w.indexOf(it.ItemID())
	if i < 0 {
		return ErrItemNotFound
	}
	if w.Items[i].Kind() != it.Kind() {
		return ErrKindMismatch
	}
	w.Items[i] = it
	return nil
}

// RemoveItem deletes the item with the given id and returns it.
func (w *Workspace) RemoveItem(id string) (Item, error) {
	i := w.indexOf(id)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	removed := w.Items[i]
	w.Items = append(w.Items[:i:i], w.Items[i+1:]...)
	return removed, nil
}

// MoveItem moves the item at index from so that it ends up at index to.
func (w *Workspace) MoveItem(from, to int) error {
	n := len(w.Items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}
	it := w.Items[from]
	rest := append(w.Items[:from:from], w.Items[from+1:]...)
	items := make(Items, 0, n)
	items = append(items, rest[:to]...)
	items = append(items, it)
	items = append(items, rest[to:]...)
	w.Items = items
	return nil
}

// Links returns the sub-workspace links in item order.
func (w Workspace) Links() []SubWorkspaceLink {
	var out []SubWorkspaceLink
	for _, it := range w.Items {
		if l, ok := it.(SubWorkspaceLink); ok {
			out = append(out, l)
		}
	}
	return out
}

// Touch records an access at now.
func (w *Workspace) Touch(now time.Time) {
	w.LastAccessed = now.UnixMilli()
}

// MarkUpdated bumps UpdatedAt to now.
func (w *Workspace) MarkUpdated(now time.Time) {
	w.UpdatedAt = now.UnixMilli()
}

// RenumberLists rewrites NumberedListItem numbers so every consecutive run
// counts 1, 2, 3... Any other item ends a run.
func (w *Workspace) RenumberLists() {
	n := 0
	for i, it := range w.Items {
		nl, ok := it.(NumberedListItem)
		if !ok {
			n = 0
			continue
		}
		n++
		nl.Number = n
		w.Items[i] = nl
	}
}

// IsNotFound reports whether err is one of the not-found errors above.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
