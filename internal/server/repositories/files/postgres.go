// Package files stores the server records of uploaded media.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/dbx"
	"github.com/dmitrijs2005/mindnote/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateOrUpdate upserts a file record by item_id. Re-registering an item
// resets it to pending with a new storage key. Returns ErrVersionConflict
// when the item belongs to another user.
func (r *PostgresRepository) CreateOrUpdate(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (item_id, user_id, workspace_id, storage_key, upload_status, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id)
		DO UPDATE SET
			workspace_id = EXCLUDED.workspace_id,
			storage_key = EXCLUDED.storage_key,
			upload_status = EXCLUDED.upload_status,
			version = EXCLUDED.version
			WHERE files.user_id = EXCLUDED.user_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		file.ItemID, file.UserID, file.WorkspaceID, file.StorageKey, file.UploadStatus, file.Version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// GetByItemID returns the user's file record for itemID, or
// common.ErrorNotFound.
func (r *PostgresRepository) GetByItemID(ctx context.Context, userID, itemID string) (*models.File, error) {
	query := `SELECT item_id, user_id, workspace_id, storage_key, upload_status, version FROM files
		WHERE user_id = $1 AND item_id = $2`

	f := &models.File{}
	err := r.db.QueryRowContext(ctx, query, userID, itemID).
		Scan(&f.ItemID, &f.UserID, &f.WorkspaceID, &f.StorageKey, &f.UploadStatus, &f.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// MarkUploaded sets upload_status to completed. Exactly one row must be affected.
func (r *PostgresRepository) MarkUploaded(ctx context.Context, userID, itemID string) error {
	query := `UPDATE files SET upload_status = $1 WHERE user_id = $2 AND item_id = $3`
	result, err := r.db.ExecContext(ctx, query, models.UploadCompleted, userID, itemID)
	if err != nil {
		return fmt.Errorf("failed to mark uploaded: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch ra {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
}
