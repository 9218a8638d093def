package models

import (
	"encoding/json"
	"fmt"

	domain "github.com/dmitrijs2005/mindnote/internal/models"
)

// Workspace is a stored workspace row. Items keeps the tagged JSON array
// exactly as the client codec writes it (jsonb column).
type Workspace struct {
	ID           string
	UserID       string
	Name         string
	IconURI      string
	IsFavorite   bool
	LastAccessed int64
	ParentID     string
	Items        []byte
	Version      int64
	Deleted      bool
	UpdatedAt    int64
}

// FromDomain converts a domain workspace for storage under userID.
func FromDomain(userID string, ws domain.Workspace) (*Workspace, error) {
	items := ws.Items
	if items == nil {
		items = domain.Items{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return &Workspace{
		ID:           ws.ID,
		UserID:       userID,
		Name:         ws.Name,
		IconURI:      ws.IconURI,
		IsFavorite:   ws.IsFavorite,
		LastAccessed: ws.LastAccessed,
		ParentID:     ws.ParentID,
		Items:        raw,
		Version:      ws.Version,
		Deleted:      ws.Deleted,
		UpdatedAt:    ws.UpdatedAt,
	}, nil
}

// ToDomain decodes the row back into a domain workspace.
func (w *Workspace) ToDomain() (domain.Workspace, error) {
	items := domain.Items{}
	if len(w.Items) > 0 {
		if err := json.Unmarshal(w.Items, &items); err != nil {
			return domain.Workspace{}, fmt.Errorf("decode items of %s: %w", w.ID, err)
		}
	}
	return domain.Workspace{
		ID:           w.ID,
		Name:         w.Name,
		IconURI:      w.IconURI,
		IsFavorite:   w.IsFavorite,
		LastAccessed: w.LastAccessed,
		ParentID:     w.ParentID,
		Items:        items,
		Version:      w.Version,
		Deleted:      w.Deleted,
		UpdatedAt:    w.UpdatedAt,
	}, nil
}
