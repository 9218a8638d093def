package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/models"
)

// legacyWorkspace is the shape written by older builds: either a flat
// workspace, or a tree where nested workspaces sit under "children".
type legacyWorkspace struct {
	models.Workspace
	Children []legacyWorkspace `json:"children,omitempty"`
}

// Decode parses any supported document version into a flat list.
//
// Schema 1 is a bare JSON array of workspaces, possibly nested through
// "children". Schema 2 is the envelope written by Save.
func Decode(data []byte) ([]models.Workspace, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", common.ErrCorrupt)
	}

	var legacy []legacyWorkspace
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrCorrupt, err)
		}
	case '{':
		var doc struct {
			Schema     int               `json:"schema"`
			Workspaces []legacyWorkspace `json:"workspaces"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrCorrupt, err)
		}
		if doc.Schema > SchemaVersion {
			return nil, fmt.Errorf("%w: unsupported schema %d", common.ErrCorrupt, doc.Schema)
		}
		legacy = doc.Workspaces
	default:
		return nil, fmt.Errorf("%w: unexpected document start %q", common.ErrCorrupt, trimmed[0])
	}

	out := make([]models.Workspace, 0, len(legacy))
	seen := map[string]bool{}
	for _, lw := range legacy {
		flatten(lw, "", &out, seen)
	}
	return out, nil
}

func flatten(lw legacyWorkspace, parentID string, out *[]models.Workspace, seen map[string]bool) {
	ws := lw.Workspace
	if ws.ID == "" {
		ws.ID = models.NewID()
	}
	if seen[ws.ID] {
		return
	}
	seen[ws.ID] = true

	if ws.ParentID == "" {
		ws.ParentID = parentID
	}
	if ws.Items == nil {
		ws.Items = models.Items{}
	}

	linked := map[string]bool{}
	for _, l := range ws.Links() {
		linked[l.WorkspaceID] = true
	}
	children := make([]legacyWorkspace, 0, len(lw.Children))
	for _, c := range lw.Children {
		if c.ID == "" {
			c.ID = models.NewID()
		}
		if !linked[c.ID] {
			ws.Items = append(ws.Items, models.SubWorkspaceLink{
				ID:          models.NewID(),
				WorkspaceID: c.ID,
				DisplayName: c.Name,
			})
		}
		children = append(children, c)
	}

	*out = append(*out, ws)
	for _, c := range children {
		flatten(c, ws.ID, out, seen)
	}
}
