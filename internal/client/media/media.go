// Package media copies user-picked images and files into the app data
// directory and probes image dimensions.
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmitrijs2005/mindnote/internal/filex"
	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DirName          = "media"
	DefaultCacheSize = 128
)

var (
	ErrNotImage     = errors.New("not a decodable image")
	ErrOutsideStore = errors.New("uri is outside the media directory")
)

// Size is an image's pixel dimensions. The zero value is the placeholder
// for images that cannot be decoded.
type Size struct {
	Width  int
	Height int
}

// Ref describes an imported file.
type Ref struct {
	URI     string
	Name    string
	Size    int64
	IsImage bool
	Width   int
	Height  int
}

type Store struct {
	dir    string
	cache  *lru.Cache[string, Size]
	logger logging.Logger
	wg     sync.WaitGroup
}

// New creates <dataDir>/media if needed. cacheSize <= 0 means DefaultCacheSize.
func New(dataDir string, cacheSize int, logger logging.Logger) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	dir, err := filex.EnsureSubDir(dataDir, DirName)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, Size](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("probe cache: %w", err)
	}
	return &Store{dir: dir, cache: cache, logger: logger.With("module", "media")}, nil
}

func (s *Store) Dir() string { return s.dir }

// Import copies srcPath into the store under a fresh name, keeping the
// extension.
func (s *Store) Import(ctx context.Context, srcPath string) (Ref, error) {
	ext := strings.ToLower(filepath.Ext(srcPath))
	dst := filepath.Join(s.dir, uuid.NewString()+ext)

	n, err := filex.CopyFile(ctx, srcPath, dst)
	if err != nil {
		return Ref{}, fmt.Errorf("import %s: %w", filepath.Base(srcPath), err)
	}

	ref := Ref{
		URI:  filex.FileURI(dst),
		Name: filepath.Base(srcPath),
		Size: n,
	}
	if size, err := s.Probe(ref.URI); err == nil {
		ref.IsImage = true
		ref.Width, ref.Height = size.Width, size.Height
	}
	return ref, nil
}

// ImportAsync runs Import on its own goroutine and reports through done.
func (s *Store) ImportAsync(ctx context.Context, srcPath string, done func(Ref, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ref, err := s.Import(ctx, srcPath)
		if err != nil {
			s.logger.Warn(ctx, "background import failed", "path", srcPath, "error", err)
		}
		if done != nil {
			done(ref, err)
		}
	}()
}

// Wait blocks until background imports finish.
func (s *Store) Wait() { s.wg.Wait() }

// Probe returns the pixel size of the image at uri. Failures are cached as
// well, so a broken image is read only once.
func (s *Store) Probe(uri string) (Size, error) {
	if size, ok := s.cache.Get(uri); ok {
		if size == (Size{}) {
			return size, ErrNotImage
		}
		return size, nil
	}

	path, err := filex.PathFromURI(uri)
	if err != nil {
		return Size{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Size{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		s.cache.Add(uri, Size{})
		return Size{}, ErrNotImage
	}
	size := Size{Width: cfg.Width, Height: cfg.Height}
	s.cache.Add(uri, size)
	return size, nil
}

func (s *Store) owned(uri string) (string, error) {
	path, err := filex.PathFromURI(uri)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return "", fmt.Errorf("%w: %s", ErrOutsideStore, uri)
	}
	return path, nil
}

// Remove deletes a file previously returned by Import. Missing files are
// not an error.
func (s *Store) Remove(uri string) error {
	path, err := s.owned(uri)
	if err != nil {
		return err
	}
	s.cache.Remove(uri)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove media: %w", err)
	}
	return nil
}

// GarbageCollect removes files in the store whose URI is not in referenced
// and returns how many were removed.
func (s *Store) GarbageCollect(ctx context.Context, referenced map[string]bool) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read media dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() {
			continue
		}
		uri := filex.FileURI(filepath.Join(s.dir, e.Name()))
		if referenced[uri] {
			continue
		}
		if err := s.Remove(uri); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info(ctx, "media garbage collected", "removed", removed)
	}
	return removed, nil
}

// Referenced collects every media URI used by list: icons, images and files.
func Referenced(list []models.Workspace) map[string]bool {
	out := map[string]bool{}
	for _, ws := range list {
		if ws.IconURI != "" {
			out[ws.IconURI] = true
		}
		for _, it := range ws.Items {
			switch v := it.(type) {
			case models.ImageItem:
				out[v.ImageURI] = true
			case models.FileItem:
				out[v.FileURI] = true
			}
		}
	}
	return out
}
