package workspaces

import (
	"context"

	"github.com/dmitrijs2005/mindnote/internal/server/models"
)

type Repository interface {
	CreateOrUpdate(ctx context.Context, ws *models.Workspace) error
	Get(ctx context.Context, userID, id string) (*models.Workspace, error)
	SelectUpdated(ctx context.Context, userID string, minVersion int64) ([]*models.Workspace, error)
	ListActive(ctx context.Context, userID string) ([]*models.Workspace, error)
}
