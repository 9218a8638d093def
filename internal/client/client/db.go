package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/mindnote/internal/client/migrations"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/uploads"

	_ "modernc.org/sqlite"
)

// Repositories bundles the sync-state stores over one SQLite database.
type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
	Outbox   outbox.Repository
	Uploads  uploads.Repository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrations.Up(ctx, db)
}

// OpenDatabase opens the SQLite file at dsn and migrates it.
func OpenDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dsn, err)
	}
	return db, nil
}

func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := OpenDatabase(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Outbox:   outbox.NewSQLiteRepository(db),
		Uploads:  uploads.NewSQLiteRepository(db),
	}, nil
}
