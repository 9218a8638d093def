package users

import (
	"context"

	"github.com/dmitrijs2005/mindnote/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	// IncrementCurrentVersion bumps and returns the user's sync counter.
	IncrementCurrentVersion(ctx context.Context, userID string) (int64, error)
	CurrentVersion(ctx context.Context, userID string) (int64, error)
	LockForSync(ctx context.Context, userID string) (int64, error)
}
