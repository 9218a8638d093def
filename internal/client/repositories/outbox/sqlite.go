package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/client/models"
	"github.com/dmitrijs2005/mindnote/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) upsert(ctx context.Context, id string, base int64, deleted bool) error {
	query := `INSERT INTO outbox (workspace_id, base_version, deleted, changed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(workspace_id) DO UPDATE SET
				deleted = excluded.deleted,
				changed_at = excluded.changed_at`
	_, err := r.db.ExecContext(ctx, query, id, base, deleted, r.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to queue workspace %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkDirty(ctx context.Context, workspaceID string, baseVersion int64) error {
	return r.upsert(ctx, workspaceID, baseVersion, false)
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, workspaceID string, baseVersion int64) error {
	return r.upsert(ctx, workspaceID, baseVersion, true)
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]models.Change, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT workspace_id, base_version, deleted, changed_at FROM outbox ORDER BY changed_at, workspace_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select outbox: %w", err)
	}
	defer rows.Close()

	var result []models.Change
	for rows.Next() {
		var c models.Change
		var changed int64
		if err := rows.Scan(&c.WorkspaceID, &c.BaseVersion, &c.Deleted, &changed); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		c.ChangedAt = time.Unix(0, changed)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Ack(ctx context.Context, acked []models.Change, versions map[string]int64) error {
	for _, c := range acked {
		changed := c.ChangedAt.UnixNano()
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM outbox WHERE workspace_id = ? AND changed_at <= ?`, c.WorkspaceID, changed); err != nil {
			return fmt.Errorf("failed to ack %s: %w", c.WorkspaceID, err)
		}
		v, ok := versions[c.WorkspaceID]
		if !ok {
			continue
		}
		if _, err := r.db.ExecContext(ctx,
			`UPDATE outbox SET base_version = ? WHERE workspace_id = ?`, v, c.WorkspaceID); err != nil {
			return fmt.Errorf("failed to rebase %s: %w", c.WorkspaceID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM outbox`); err != nil {
		return fmt.Errorf("failed to clear outbox: %w", err)
	}
	return nil
}
