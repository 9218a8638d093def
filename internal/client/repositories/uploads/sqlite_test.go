package uploads

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/mindnote/internal/client/migrations"
	"github.com/dmitrijs2005/mindnote/internal/client/models"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func TestEnqueueAndPending(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, models.Upload{ItemID: "i2", WorkspaceID: "w", LocalPath: "/m/2.png"}))
	require.NoError(t, r.Enqueue(ctx, models.Upload{ItemID: "i1", WorkspaceID: "w", LocalPath: "/m/1.png"}))
	require.NoError(t, r.Enqueue(ctx, models.Upload{ItemID: "i1", WorkspaceID: "w", LocalPath: "/m/1b.png"}))

	got, err := r.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Upload{
		{ItemID: "i1", WorkspaceID: "w", LocalPath: "/m/1b.png", Status: models.UploadPending},
		{ItemID: "i2", WorkspaceID: "w", LocalPath: "/m/2.png", Status: models.UploadPending},
	}, got)
}

func TestMarkDone(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, models.Upload{ItemID: "i1", WorkspaceID: "w", LocalPath: "/m/1.png"}))
	require.NoError(t, r.MarkDone(ctx, "i1"))

	got, err := r.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.ErrorIs(t, r.MarkDone(ctx, "missing"), common.ErrorNotFound)

	require.NoError(t, r.Enqueue(ctx, models.Upload{ItemID: "i2", WorkspaceID: "w", LocalPath: "/m/2.png"}))
	require.NoError(t, r.Clear(ctx))
	got, err = r.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	require.ErrorContains(t, r.Enqueue(ctx, models.Upload{ItemID: "i"}), "failed to enqueue upload")
	_, err := r.Pending(ctx)
	require.ErrorContains(t, err, "error selecting uploads")
	require.ErrorContains(t, r.MarkDone(ctx, "i"), "failed to update upload")
}
