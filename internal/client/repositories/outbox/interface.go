// Package outbox records which workspaces were edited locally and still need
// to be pushed to the server.
package outbox

import (
	"context"

	"github.com/dmitrijs2005/mindnote/internal/client/models"
)

// Repository is backed by the local SQLite database.
type Repository interface {
	// MarkDirty queues a workspace for upload. The base version of an
	// already queued entry is kept.
	MarkDirty(ctx context.Context, workspaceID string, baseVersion int64) error

	// MarkDeleted queues a tombstone.
	MarkDeleted(ctx context.Context, workspaceID string, baseVersion int64) error

	// Pending lists queued changes, oldest first.
	Pending(ctx context.Context) ([]models.Change, error)

	// Ack removes changes the server accepted. An entry edited again after
	// it was read by Pending stays queued with its base moved to the
	// version the server assigned.
	Ack(ctx context.Context, acked []models.Change, versions map[string]int64) error

	// Clear drops the whole queue.
	Clear(ctx context.Context) error
}
