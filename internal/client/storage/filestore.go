// Package storage persists the workspace list as a JSON document in the
// application data directory, keeping the previous version as a backup.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/dmitrijs2005/mindnote/internal/models"
)

const (
	PrimaryFile = "workspaces.json"
	BackupFile  = "workspaces_backup.json"

	// SchemaVersion is written into every saved document.
	SchemaVersion = 2
)

// Store loads and saves the full workspace list.
type Store interface {
	Load(ctx context.Context) ([]models.Workspace, error)
	Save(ctx context.Context, list []models.Workspace) error
}

type document struct {
	Schema     int                `json:"schema"`
	SavedAt    int64              `json:"saved_at"`
	Workspaces []models.Workspace `json:"workspaces"`
}

// FileStore is a Store over two files in dir.
type FileStore struct {
	dir    string
	logger logging.Logger
	now    func() time.Time
}

func NewFileStore(dir string, logger logging.Logger) *FileStore {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &FileStore{dir: dir, logger: logger.With("module", "filestore"), now: time.Now}
}

// PrimaryPath is the file watched for external edits.
func (s *FileStore) PrimaryPath() string { return filepath.Join(s.dir, PrimaryFile) }

func (s *FileStore) backupPath() string { return filepath.Join(s.dir, BackupFile) }

// Load reads the primary file and falls back to the backup when the primary
// is unreadable. A fresh install (no files) yields an empty list.
func (s *FileStore) Load(ctx context.Context) ([]models.Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list, primaryErr := s.readFile(s.PrimaryPath())
	if primaryErr == nil {
		return list, nil
	}

	primaryMissing := errors.Is(primaryErr, fs.ErrNotExist)
	if !primaryMissing {
		s.logger.Warn(ctx, "primary workspace file unreadable, trying backup", "error", primaryErr)
	}

	list, backupErr := s.readFile(s.backupPath())
	switch {
	case backupErr == nil:
		if primaryMissing {
			s.logger.Warn(ctx, "primary workspace file missing, restored from backup")
		}
		return list, nil
	case primaryMissing && errors.Is(backupErr, fs.ErrNotExist):
		return []models.Workspace{}, nil
	case errors.Is(backupErr, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %v", common.ErrCorrupt, primaryErr)
	default:
		s.logger.Error(ctx, "backup workspace file unreadable", "error", backupErr)
		return nil, fmt.Errorf("%w: primary: %v; backup: %v", common.ErrCorrupt, primaryErr, backupErr)
	}
}

func (s *FileStore) readFile(path string) ([]models.Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Save writes list to a temp file, syncs it, moves the current primary to
// the backup slot and renames the temp file into place. A crash at any
// point leaves either the old or the new list readable.
func (s *FileStore) Save(ctx context.Context, list []models.Workspace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if list == nil {
		list = []models.Workspace{}
	}

	data, err := json.MarshalIndent(document{
		Schema:     SchemaVersion,
		SavedAt:    s.now().UnixMilli(),
		Workspaces: list,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workspaces: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.dir, err)
	}

	tmp := s.PrimaryPath() + ".tmp"
	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	// A corrupt primary must not replace a good backup.
	if _, err := s.readFile(s.PrimaryPath()); err == nil {
		if err := os.Rename(s.PrimaryPath(), s.backupPath()); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rotate backup: %w", err)
		}
	}

	if err := os.Rename(tmp, s.PrimaryPath()); err != nil {
		return fmt.Errorf("replace workspace file: %w", err)
	}

	syncDir(s.dir)
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}

// syncDir flushes the rename to disk. Not every platform supports fsync on
// directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
