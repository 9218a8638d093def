// Package models defines the client's sync bookkeeping records. Workspace
// content itself lives in the shared internal/models package.
package models

import "time"

// Upload statuses.
const (
	UploadPending   = "pending"
	UploadCompleted = "completed"
)

// Change is a local edit waiting to be pushed.
type Change struct {
	WorkspaceID string
	// BaseVersion is the server version the edit was made on top of.
	BaseVersion int64
	Deleted     bool
	ChangedAt   time.Time
}

// Upload is a media file that must reach object storage before the item
// pointing to it is useful on other devices.
type Upload struct {
	ItemID      string
	WorkspaceID string
	LocalPath   string
	Status      string
}

// UploadTask pairs a pending upload with its presigned URL.
type UploadTask struct {
	Upload
	URL string
}
