package uploads

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mindnote/internal/client/models"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, u models.Upload) error {
	query := `INSERT INTO uploads (item_id, workspace_id, local_path, status)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(item_id) DO UPDATE SET
				workspace_id = excluded.workspace_id,
				local_path = excluded.local_path,
				status = excluded.status`
	_, err := r.db.ExecContext(ctx, query, u.ItemID, u.WorkspaceID, u.LocalPath, models.UploadPending)
	if err != nil {
		return fmt.Errorf("failed to enqueue upload: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]models.Upload, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, workspace_id, local_path, status FROM uploads WHERE status = ? ORDER BY item_id`,
		models.UploadPending)
	if err != nil {
		return nil, fmt.Errorf("error selecting uploads: %w", err)
	}
	defer rows.Close()

	var result []models.Upload
	for rows.Next() {
		var u models.Upload
		if err := rows.Scan(&u.ItemID, &u.WorkspaceID, &u.LocalPath, &u.Status); err != nil {
			return nil, fmt.Errorf("error scanning upload: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uploads: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) MarkDone(ctx context.Context, itemID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE uploads SET status = ? WHERE item_id = ?`, models.UploadCompleted, itemID)
	if err != nil {
		return fmt.Errorf("failed to update upload: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM uploads`); err != nil {
		return fmt.Errorf("failed to clear uploads: %w", err)
	}
	return nil
}
