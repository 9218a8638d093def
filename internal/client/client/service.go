package client

import (
	"context"

	"github.com/dmitrijs2005/mindnote/internal/models"
)

// Conflict is a workspace the server refused because it changed there too.
type Conflict struct {
	Local  models.Workspace
	Server models.Workspace
}

// SyncResult is the decoded answer of a Sync call.
type SyncResult struct {
	// Processed holds the pushed workspaces with their new versions.
	Processed []models.Workspace
	// Updated holds server changes made since the requested version.
	Updated    []models.Workspace
	Conflicts  []Conflict
	MaxVersion int64
}

// Comparison classifies local workspaces against the server copy.
type Comparison struct {
	New        []models.Workspace
	Conflicts  []Conflict
	ServerOnly []models.Workspace
}

// Client is the transport-agnostic contract the client services use.
type Client interface {
	Close() error

	Register(ctx context.Context, username string, salt []byte, verifier []byte) error
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) error
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error

	// Tokens returns the current access and refresh tokens.
	Tokens() (string, string)
	SetTokens(access, refresh string)

	Sync(ctx context.Context, pending []models.Workspace, sinceVersion int64) (*SyncResult, error)
	Compare(ctx context.Context, local []models.Workspace) (*Comparison, error)
	Resolve(ctx context.Context, local []models.Workspace, decisions map[string]string) ([]models.Workspace, int64, error)

	PresignUpload(ctx context.Context, workspaceID, itemID string) (string, error)
	MarkUploaded(ctx context.Context, itemID string) error
	PresignDownload(ctx context.Context, itemID string) (string, error)
}
