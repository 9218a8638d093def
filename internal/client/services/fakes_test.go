package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/dmitrijs2005/mindnote/internal/client/client"
	"github.com/dmitrijs2005/mindnote/internal/client/migrations"
	clientmodels "github.com/dmitrijs2005/mindnote/internal/client/models"
	"github.com/dmitrijs2005/mindnote/internal/models"
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

// fakeClient implements client.Client with a small in-memory server: it
// keeps versioned workspaces and applies the same conflict rule as the
// real one.
type fakeClient struct {
	mu sync.Mutex

	CloseErr    error
	RegisterErr error
	GetSaltRet  []byte
	GetSaltErr  error
	LoginErr    error
	LogoutErr   error
	PingErr     error
	SyncErr     error
	PresignErr  error
	MarkErr     error
	UploadURL   string

	LastRegisterUser string
	LastRegisterSalt []byte
	LastRegisterKey  []byte
	LastLoginUser    string
	LastLoginKey     []byte
	LogoutCalls      int
	SyncCalls        int
	LastSyncPending  []models.Workspace
	LastSince        int64
	Marked           []string
	LastDecisions    map[string]string

	access, refresh string
	onRefresh       func(a, r string)

	server  map[string]models.Workspace
	version int64

	// syncHook runs at the start of Sync, outside the lock.
	syncHook func()
}

func newFakeClient() *fakeClient {
	return &fakeClient{server: map[string]models.Workspace{}}
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Close() error { return f.CloseErr }

func (f *fakeClient) Register(_ context.Context, username string, salt []byte, key []byte) error {
	f.LastRegisterUser = username
	f.LastRegisterSalt = append([]byte(nil), salt...)
	f.LastRegisterKey = append([]byte(nil), key...)
	return f.RegisterErr
}

func (f *fakeClient) GetSalt(context.Context, string) ([]byte, error) {
	return append([]byte(nil), f.GetSaltRet...), f.GetSaltErr
}

func (f *fakeClient) Login(_ context.Context, username string, key []byte) error {
	f.LastLoginUser = username
	f.LastLoginKey = append([]byte(nil), key...)
	if f.LoginErr != nil {
		return f.LoginErr
	}
	f.SetTokens("A-"+username, "R-"+username)
	return nil
}

func (f *fakeClient) Logout(context.Context) error {
	f.LogoutCalls++
	f.SetTokens("", "")
	return f.LogoutErr
}

func (f *fakeClient) Ping(context.Context) error { return f.PingErr }

func (f *fakeClient) Tokens() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access, f.refresh
}

func (f *fakeClient) SetTokens(a, r string) {
	f.mu.Lock()
	f.access, f.refresh = a, r
	f.mu.Unlock()
}

func (f *fakeClient) OnRefresh(fn func(a, r string)) { f.onRefresh = fn }

// put stores ws on the fake server with a fresh version.
func (f *fakeClient) put(ws models.Workspace) models.Workspace {
	f.version++
	ws.Version = f.version
	if ws.Items == nil {
		ws.Items = models.Items{}
	}
	f.server[ws.ID] = ws.Clone()
	return ws
}

func (f *fakeClient) Sync(_ context.Context, pending []models.Workspace, since int64) (*client.SyncResult, error) {
	if f.syncHook != nil {
		f.syncHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SyncCalls++
	f.LastSyncPending = pending
	f.LastSince = since
	if f.SyncErr != nil {
		return nil, f.SyncErr
	}

	res := &client.SyncResult{}
	done := map[string]bool{}
	for _, ws := range pending {
		if cur, ok := f.server[ws.ID]; ok && cur.Version > ws.Version {
			res.Conflicts = append(res.Conflicts, client.Conflict{Local: ws, Server: cur.Clone()})
			continue
		}
		if ws.Deleted {
			ws.Items = models.Items{}
		}
		res.Processed = append(res.Processed, f.put(ws))
		done[ws.ID] = true
	}
	for id, ws := range f.server {
		if ws.Version > since && !done[id] {
			res.Updated = append(res.Updated, ws.Clone())
		}
	}
	res.MaxVersion = f.version
	return res, nil
}

func (f *fakeClient) Compare(_ context.Context, local []models.Workspace) (*client.Comparison, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmp := &client.Comparison{}
	seen := map[string]bool{}
	for _, ws := range local {
		seen[ws.ID] = true
		cur, ok := f.server[ws.ID]
		switch {
		case !ok:
			cmp.New = append(cmp.New, ws)
		case cur.Name != ws.Name:
			cmp.Conflicts = append(cmp.Conflicts, client.Conflict{Local: ws, Server: cur.Clone()})
		}
	}
	for id, ws := range f.server {
		if !seen[id] && !ws.Deleted {
			cmp.ServerOnly = append(cmp.ServerOnly, ws.Clone())
		}
	}
	return cmp, nil
}

func (f *fakeClient) Resolve(_ context.Context, local []models.Workspace, decisions map[string]string) ([]models.Workspace, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastDecisions = decisions
	for _, ws := range local {
		_, exists := f.server[ws.ID]
		if !exists || decisions[ws.ID] == "local" {
			f.put(ws)
		}
	}
	var out []models.Workspace
	for _, ws := range f.server {
		if !ws.Deleted {
			out = append(out, ws.Clone())
		}
	}
	return out, f.version, nil
}

func (f *fakeClient) PresignUpload(_ context.Context, _, itemID string) (string, error) {
	if f.PresignErr != nil {
		return "", f.PresignErr
	}
	return f.UploadURL + "/" + itemID, nil
}

func (f *fakeClient) MarkUploaded(_ context.Context, itemID string) error {
	f.Marked = append(f.Marked, itemID)
	return f.MarkErr
}

func (f *fakeClient) PresignDownload(_ context.Context, itemID string) (string, error) {
	return f.UploadURL + "/" + itemID, nil
}

func uploadFor(itemID string) clientmodels.Upload {
	return clientmodels.Upload{ItemID: itemID, WorkspaceID: "w", LocalPath: "/m/" + itemID}
}
