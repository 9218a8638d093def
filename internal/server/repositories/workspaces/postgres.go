// Package workspaces provides the PostgreSQL-backed repository for synced
// workspaces. Each row carries the user's sync version at its last write.
package workspaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/dbx"
	"github.com/dmitrijs2005/mindnote/internal/server/models"
)

// PostgresRepository implements workspace storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const columns = `id, user_id, name, icon_uri, is_favorite, last_accessed, parent_id, items, version, deleted, updated_at`

// CreateOrUpdate upserts a workspace by ID. A row with the same id owned by
// another user is left alone and ErrVersionConflict is returned.
func (r *PostgresRepository) CreateOrUpdate(ctx context.Context, ws *models.Workspace) error {
	query := `
		INSERT INTO workspaces (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			icon_uri = EXCLUDED.icon_uri,
			is_favorite = EXCLUDED.is_favorite,
			last_accessed = EXCLUDED.last_accessed,
			parent_id = EXCLUDED.parent_id,
			items = EXCLUDED.items,
			version = EXCLUDED.version,
			deleted = EXCLUDED.deleted,
			updated_at = EXCLUDED.updated_at
			WHERE workspaces.user_id = EXCLUDED.user_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		ws.ID, ws.UserID, ws.Name, ws.IconURI, ws.IsFavorite, ws.LastAccessed, ws.ParentID,
		ws.Items, ws.Version, ws.Deleted, ws.UpdatedAt)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(s scanner) (*models.Workspace, error) {
	var ws models.Workspace
	err := s.Scan(&ws.ID, &ws.UserID, &ws.Name, &ws.IconURI, &ws.IsFavorite, &ws.LastAccessed,
		&ws.ParentID, &ws.Items, &ws.Version, &ws.Deleted, &ws.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// Get returns one workspace of userID, tombstones included.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Workspace, error) {
	query := `SELECT ` + columns + ` FROM workspaces WHERE user_id = $1 AND id = $2`

	ws, err := scanWorkspace(r.db.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ws, nil
}

func (r *PostgresRepository) selectMany(ctx context.Context, query string, args ...any) ([]*models.Workspace, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select workspaces: %w", err)
	}
	defer rows.Close()

	var result []*models.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SelectUpdated returns all workspaces for userID with version > minVersion,
// tombstones included, oldest change first.
func (r *PostgresRepository) SelectUpdated(ctx context.Context, userID string, minVersion int64) ([]*models.Workspace, error) {
	query := `SELECT ` + columns + ` FROM workspaces
		WHERE user_id = $1 AND version > $2
		ORDER BY version`
	return r.selectMany(ctx, query, userID, minVersion)
}

// ListActive returns the user's live workspaces ordered by name.
func (r *PostgresRepository) ListActive(ctx context.Context, userID string) ([]*models.Workspace, error) {
	query := `SELECT ` + columns + ` FROM workspaces
		WHERE user_id = $1 AND NOT deleted
		ORDER BY lower(name), id`
	return r.selectMany(ctx, query, userID)
}
