// Package uploads tracks media files that still have to be sent to object
// storage.
package uploads

import (
	"context"

	"github.com/dmitrijs2005/mindnote/internal/client/models"
)

// Repository describes the upload queue.
type Repository interface {
	// Enqueue stores u as pending. Re-enqueueing an item replaces its row.
	Enqueue(ctx context.Context, u models.Upload) error

	// Pending returns uploads that have not completed yet.
	Pending(ctx context.Context) ([]models.Upload, error)

	// MarkDone marks the upload for itemID as completed.
	MarkDone(ctx context.Context, itemID string) error

	// Clear drops the queue.
	Clear(ctx context.Context) error
}
