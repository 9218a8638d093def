// Package models defines server-side data models persisted in the database.
package models

// Upload states of a File.
const (
	UploadPending   = "pending"
	UploadCompleted = "completed"
)

// File is the server record of a media item (image or attachment) whose
// bytes live in object storage.
type File struct {
	// ItemID is the content item the media belongs to.
	ItemID string
	// UserID is the owner of the file.
	UserID string
	// WorkspaceID is the workspace holding the item.
	WorkspaceID string
	// StorageKey is the object-storage key of the blob.
	StorageKey string
	// UploadStatus is UploadPending until the client confirms the PUT.
	UploadStatus string
	// Version is the user's sync version at registration time.
	Version int64
}
