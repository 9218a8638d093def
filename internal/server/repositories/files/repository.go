package files

import (
	"context"

	"github.com/dmitrijs2005/mindnote/internal/server/models"
)

type Repository interface {
	CreateOrUpdate(ctx context.Context, file *models.File) error
	GetByItemID(ctx context.Context, userID, itemID string) (*models.File, error)
	MarkUploaded(ctx context.Context, userID, itemID string) error
}
