package api

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/mindnote/internal/models"
)

// WorkspaceDoc is the wire form of a workspace. Items keeps the tagged
// item array as raw JSON.
type WorkspaceDoc struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	IconURI      string          `json:"icon_uri,omitempty"`
	IsFavorite   bool            `json:"is_favorite,omitempty"`
	LastAccessed int64           `json:"last_accessed,omitempty"`
	ParentID     string          `json:"parent_id,omitempty"`
	Items        json.RawMessage `json:"items,omitempty"`
	Version      int64           `json:"version"`
	Deleted      bool            `json:"deleted,omitempty"`
	UpdatedAt    int64           `json:"updated_at,omitempty"`
}

// ConflictDoc pairs a rejected client copy with the server copy.
type ConflictDoc struct {
	Local  *WorkspaceDoc `json:"local"`
	Server *WorkspaceDoc `json:"server"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type GetSaltRequest struct {
	Username string `json:"username"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username          string `json:"username"`
	VerifierCandidate []byte `json:"verifier_candidate"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutResponse struct{}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type SyncRequest struct {
	Workspaces   []*WorkspaceDoc `json:"workspaces"`
	SinceVersion int64           `json:"since_version"`
}

type SyncResponse struct {
	Processed  []*WorkspaceDoc `json:"processed"`
	Updated    []*WorkspaceDoc `json:"updated"`
	Conflicts  []*ConflictDoc  `json:"conflicts"`
	MaxVersion int64           `json:"max_version"`
}

type CompareRequest struct {
	Workspaces []*WorkspaceDoc `json:"workspaces"`
}

type CompareResponse struct {
	New        []*WorkspaceDoc `json:"new"`
	Conflicts  []*ConflictDoc  `json:"conflicts"`
	ServerOnly []*WorkspaceDoc `json:"server_only"`
}

type ResolveRequest struct {
	Workspaces []*WorkspaceDoc `json:"workspaces"`
	// Decisions maps a conflicting workspace id to "local" or "server".
	Decisions map[string]string `json:"decisions"`
}

type ResolveResponse struct {
	Workspaces []*WorkspaceDoc `json:"workspaces"`
	MaxVersion int64           `json:"max_version"`
}

type ListWorkspacesRequest struct{}

type ListWorkspacesResponse struct {
	Workspaces []*WorkspaceDoc `json:"workspaces"`
}

type PresignUploadRequest struct {
	WorkspaceID string `json:"workspace_id"`
	ItemID      string `json:"item_id"`
}

type PresignUploadResponse struct {
	URL string `json:"url"`
}

type MarkUploadedRequest struct {
	ItemID string `json:"item_id"`
}

type MarkUploadedResponse struct{}

type PresignDownloadRequest struct {
	ItemID string `json:"item_id"`
}

type PresignDownloadResponse struct {
	URL string `json:"url"`
}

// FromWorkspace converts a domain workspace to its wire form.
func FromWorkspace(ws models.Workspace) (*WorkspaceDoc, error) {
	items := ws.Items
	if items == nil {
		items = models.Items{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items of %s: %w", ws.ID, err)
	}
	return &WorkspaceDoc{
		ID:           ws.ID,
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

// ToWorkspace converts the wire form back to a domain workspace.
func (d *WorkspaceDoc) ToWorkspace() (models.Workspace, error) {
	items := models.Items{}
	if len(d.Items) > 0 {
		if err := json.Unmarshal(d.Items, &items); err != nil {
			return models.Workspace{}, fmt.Errorf("decode items of %s: %w", d.ID, err)
		}
	}
	return models.Workspace{
		ID:           d.ID,
		Name:         d.Name,
		IconURI:      d.IconURI,
		IsFavorite:   d.IsFavorite,
		LastAccessed: d.LastAccessed,
		ParentID:     d.ParentID,
		Items:        items,
		Version:      d.Version,
		Deleted:      d.Deleted,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

// FromWorkspaces converts a list for the wire.
func FromWorkspaces(list []models.Workspace) ([]*WorkspaceDoc, error) {
	out := make([]*WorkspaceDoc, 0, len(list))
	for _, ws := range list {
		d, err := FromWorkspace(ws)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ToWorkspaces converts a wire list. Nil entries are skipped.
func ToWorkspaces(docs []*WorkspaceDoc) ([]models.Workspace, error) {
	out := make([]models.Workspace, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		ws, err := d.ToWorkspace()
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, nil
}
