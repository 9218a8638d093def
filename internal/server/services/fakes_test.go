package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/dbx"
	"github.com/dmitrijs2005/mindnote/internal/server/models"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/files"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/users"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/workspaces"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type fakeUsersRepo struct {
	mu       sync.Mutex
	byName   map[string]*models.User
	versions map[string]int64

	createErr error
	getErr    error
	lockErr   error
	incErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byName: map[string]*models.User{}, versions: map[string]int64{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byName[u.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	c := *u
	c.ID = "id-" + u.UserName
	f.byName[u.UserName] = &c
	return &c, nil
}

func (f *fakeUsersRepo) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) IncrementCurrentVersion(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return 0, f.incErr
	}
	f.versions[userID]++
	return f.versions[userID], nil
}

func (f *fakeUsersRepo) CurrentVersion(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versions[userID], nil
}

func (f *fakeUsersRepo) LockForSync(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return 0, f.lockErr
	}
	return f.versions[userID], nil
}

type fakeRefreshRepo struct {
	mu      sync.Mutex
	tokens  map[string]*models.RefreshToken
	now     func() time.Time
	findErr error
	delErr  error

	createErr error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]*models.RefreshToken{}, now: time.Now}
}

func (f *fakeRefreshRepo) Create(_ context.Context, userID, token string, validity time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: f.now().Add(validity)}
	return nil
}

func (f *fakeRefreshRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, t := range f.tokens {
		if t.Expires.Before(f.now()) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, nil
}

type fakeWorkspacesRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Workspace

	upsertErr error
}

func newFakeWorkspacesRepo() *fakeWorkspacesRepo {
	return &fakeWorkspacesRepo{rows: map[string]*models.Workspace{}}
}

func (f *fakeWorkspacesRepo) CreateOrUpdate(_ context.Context, ws *models.Workspace) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if old, ok := f.rows[ws.ID]; ok && old.UserID != ws.UserID {
		return common.ErrVersionConflict
	}
	c := *ws
	f.rows[ws.ID] = &c
	return nil
}

func (f *fakeWorkspacesRepo) Get(_ context.Context, userID, id string) (*models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.UserID != userID {
		return nil, common.ErrorNotFound
	}
	c := *r
	return &c, nil
}

func (f *fakeWorkspacesRepo) SelectUpdated(_ context.Context, userID string, minVersion int64) ([]*models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Workspace
	for _, r := range f.rows {
		if r.UserID == userID && r.Version > minVersion {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (f *fakeWorkspacesRepo) ListActive(_ context.Context, userID string) ([]*models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Workspace
	for _, r := range f.rows {
		if r.UserID == userID && !r.Deleted {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type fakeFilesRepo struct {
	mu    sync.Mutex
	files map[string]*models.File

	upsertErr error
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{files: map[string]*models.File{}}
}

func (f *fakeFilesRepo) CreateOrUpdate(_ context.Context, file *models.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	c := *file
	f.files[file.ItemID] = &c
	return nil
}

func (f *fakeFilesRepo) GetByItemID(_ context.Context, userID, itemID string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[itemID]
	if !ok || file.UserID != userID {
		return nil, common.ErrorNotFound
	}
	c := *file
	return &c, nil
}

func (f *fakeFilesRepo) MarkUploaded(_ context.Context, userID, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[itemID]
	if !ok || file.UserID != userID {
		return common.ErrorNotFound
	}
	file.UploadStatus = models.UploadCompleted
	return nil
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	r  *fakeRefreshRepo
	ws *fakeWorkspacesRepo
	f  *fakeFilesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u:  newFakeUsersRepo(),
		r:  newFakeRefreshRepo(),
		ws: newFakeWorkspacesRepo(),
		f:  newFakeFilesRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository { return m.r }
func (m *fakeRepoManager) Workspaces(db dbx.DBTX) workspaces.Repository       { return m.ws }
func (m *fakeRepoManager) Files(db dbx.DBTX) files.Repository                 { return m.f }

type recordingNotifier struct {
	mu     sync.Mutex
	events []int64
}

func (n *recordingNotifier) Publish(_ string, version int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, version)
}
