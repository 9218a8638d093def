package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/client/client"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/mindnote/internal/client/repository"
	"github.com/dmitrijs2005/mindnote/internal/client/storage"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncFixture struct {
	svc   *SyncService
	fc    *fakeClient
	repo  *repository.Repository
	repos *client.Repositories
}

func newSyncFixture(t *testing.T, policy string) *syncFixture {
	t.Helper()
	db := setupDB(t)
	repos := &client.Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Outbox:   outbox.NewSQLiteRepository(db),
		Uploads:  uploads.NewSQLiteRepository(db),
	}
	repo, err := repository.Open(context.Background(), storage.NewFileStore(t.TempDir(), nil), repos.Outbox, nil)
	require.NoError(t, err)

	fc := newFakeClient()
	fc.SetTokens("A", "R")
	return &syncFixture{
		svc:   NewSyncService(fc, repo, repos, policy, nil),
		fc:    fc,
		repo:  repo,
		repos: repos,
	}
}

func (f *syncFixture) pending(t *testing.T) int {
	t.Helper()
	p, err := f.repos.Outbox.Pending(context.Background())
	require.NoError(t, err)
	return len(p)
}

func (f *syncFixture) lastVersion(t *testing.T) int64 {
	t.Helper()
	v, err := metadata.GetInt64(context.Background(), f.repos.Metadata, metadata.KeyLastVersion)
	require.NoError(t, err)
	return v
}

func TestNewSyncService_DefaultsPolicy(t *testing.T) {
	f := newSyncFixture(t, "")
	assert.Equal(t, common.PolicyServerWins, f.svc.Policy())
}

func TestSync_PushesLocalChanges(t *testing.T) {
	f := newSyncFixture(t, common.PolicyServerWins)
	ctx := context.Background()

	ws, err := f.repo.Create(ctx, "Ideas", "")
	require.NoError(t, err)
	require.Equal(t, 1, f.pending(t))

	rep, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Pushed)
	assert.Equal(t, int64(1), rep.Version)

	got, err := f.repo.Get(ws.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "Ideas", f.fc.server[ws.ID].Name)
	assert.Zero(t, f.pending(t))
	assert.Equal(t, int64(1), f.lastVersion(t))

	_, err = f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.fc.LastSince)
	assert.Empty(t, f.fc.LastSyncPending)
}

func TestSync_PullsRemoteChangesAndTombstones(t *testing.T) {
	f := newSyncFixture(t, common.PolicyServerWins)
	ctx := context.Background()

	f.fc.put(models.Workspace{ID: "remote", Name: "From phone"})
	rep, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Pulled)

	got, err := f.repo.Get("remote")
	require.NoError(t, err)
	assert.Equal(t, "From phone", got.Name)
	assert.Zero(t, f.pending(t), "remote changes are not queued for push")

	f.fc.put(models.Workspace{ID: "remote", Deleted: true})
	_, err = f.svc.Sync(ctx)
	require.NoError(t, err)
	_, err = f.repo.Get("remote")
	require.ErrorIs(t, err, models.ErrWorkspaceMissing)
}

func TestSync_PushesLocalDelete(t *testing.T) {
	f := newSyncFixture(t, common.PolicyServerWins)
	ctx := context.Background()

	ws, _ := f.repo.Create(ctx, "Doomed", "")
	_, err := f.svc.Sync(ctx)
	require.NoError(t, err)

	_, err = f.repo.Delete(ctx, ws.ID)
	require.NoError(t, err)
	_, err = f.svc.Sync(ctx)
	require.NoError(t, err)

	assert.True(t, f.fc.server[ws.ID].Deleted)
	require.Len(t, f.fc.LastSyncPending, 1)
	assert.Equal(t, int64(1), f.fc.LastSyncPending[0].Version)
	assert.Zero(t, f.pending(t))
}

func conflictSetup(t *testing.T, policy string) (*syncFixture, models.Workspace) {
	t.Helper()
	f := newSyncFixture(t, policy)
	ctx := context.Background()

	ws, _ := f.repo.Create(ctx, "Original", "")
	_, err := f.svc.Sync(ctx)
	require.NoError(t, err)

	remote := f.fc.server[ws.ID]
	remote.Name = "Server"
	f.fc.put(remote)

	_, err = f.repo.Rename(ctx, ws.ID, "Local")
	require.NoError(t, err)
	return f, ws
}

func TestSync_ServerWinsConflict(t *testing.T) {
	f, ws := conflictSetup(t, common.PolicyServerWins)

	rep, err := f.svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Conflicts)
	assert.Equal(t, 2, f.fc.SyncCalls, "server-wins needs no second round trip")

	got, _ := f.repo.Get(ws.ID)
	assert.Equal(t, "Server", got.Name)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "Server", f.fc.server[ws.ID].Name)
	assert.Zero(t, f.pending(t))
}

func TestSync_LocalWinsConflict(t *testing.T) {
	f, ws := conflictSetup(t, common.PolicyLocalWins)

	rep, err := f.svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Conflicts)
	assert.Equal(t, 1, rep.Pushed)

	got, _ := f.repo.Get(ws.ID)
	assert.Equal(t, "Local", got.Name)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, "Local", f.fc.server[ws.ID].Name)
	assert.Equal(t, int64(3), f.lastVersion(t))
	assert.Zero(t, f.pending(t))
}

func TestSync_ErrorKeepsState(t *testing.T) {
	f := newSyncFixture(t, common.PolicyServerWins)
	ctx := context.Background()

	_, _ = f.repo.Create(ctx, "A", "")
	f.fc.SyncErr = client.ErrUnavailable

	_, err := f.svc.Sync(ctx)
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, 1, f.pending(t))
	assert.Zero(t, f.lastVersion(t))
}

func TestSync_UploadsQueuedMedia(t *testing.T) {
	f := newSyncFixture(t, common.PolicyServerWins)
	ctx := context.Background()
	f.fc.UploadURL = "https://s3"

	var sent []string
	orig := uploadFunc
	t.Cleanup(func() { uploadFunc = orig })
	uploadFunc = func(_ context.Context, url, path string) error {
		if path == "/bad" {
			return errors.New("io")
		}
		sent = append(sent, url+"|"+path)
		return nil
	}

	require.NoError(t, f.svc.QueueUpload(ctx, "w", "i1", "/media/a.png"))
	require.NoError(t, f.svc.QueueUpload(ctx, "w", "i2", "/bad"))

	rep, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Uploaded)
	assert.Equal(t, []string{"https://s3/i1|/media/a.png"}, sent)
	assert.Equal(t, []string{"i1"}, f.fc.Marked)

	left, err := f.repos.Uploads.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "i2", left[0].ItemID)
}

func TestMergeGuest(t *testing.T) {
	for _, tc := range []struct {
		policy   string
		decision string
		want     string
	}{
		{common.PolicyServerWins, "server", "Server copy"},
		{common.PolicyLocalWins, "local", "Guest copy"},
	} {
		t.Run(tc.policy, func(t *testing.T) {
			f := newSyncFixture(t, tc.policy)
			ctx := context.Background()

			shared, _ := f.repo.Create(ctx, "Guest copy", "")
			fresh, _ := f.repo.Create(ctx, "Only here", "")
			f.fc.put(models.Workspace{ID: shared.ID, Name: "Server copy"})
			f.fc.put(models.Workspace{ID: "srv", Name: "Only there"})

			rep, err := f.svc.MergeGuest(ctx, tc.policy)
			require.NoError(t, err)
			assert.Equal(t, 1, rep.New)
			assert.Equal(t, 1, rep.Conflicts)
			assert.Equal(t, 1, rep.ServerOnly)
			assert.Equal(t, map[string]string{shared.ID: tc.decision}, f.fc.LastDecisions)

			got, err := f.repo.Get(shared.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Name)
			_, err = f.repo.Get(fresh.ID)
			require.NoError(t, err)
			_, err = f.repo.Get("srv")
			require.NoError(t, err)

			assert.Zero(t, f.pending(t))
			assert.Equal(t, rep.Version, f.lastVersion(t))
		})
	}
}

func TestAfterLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("guest data is merged", func(t *testing.T) {
		f := newSyncFixture(t, common.PolicyServerWins)
		ws, _ := f.repo.Create(ctx, "Guest", "")

		_, err := f.svc.AfterLogin(ctx, &Session{Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "Guest", f.fc.server[ws.ID].Name)
		assert.NotNil(t, f.fc.LastDecisions)
	})

	t.Run("another account's data is dropped", func(t *testing.T) {
		f := newSyncFixture(t, common.PolicyServerWins)
		_, _ = f.repo.Create(ctx, "Alice's", "")
		require.NoError(t, f.repos.Uploads.Enqueue(ctx, uploadFor("i")))
		f.fc.put(models.Workspace{ID: "b", Name: "Bob's"})

		_, err := f.svc.AfterLogin(ctx, &Session{Username: "bob", Previous: "alice"})
		require.NoError(t, err)

		list := f.repo.List()
		require.Len(t, list, 1)
		assert.Equal(t, "Bob's", list[0].Name)
		assert.Len(t, f.fc.server, 1)
		left, _ := f.repos.Uploads.Pending(ctx)
		assert.Empty(t, left)
	})

	t.Run("same account just syncs", func(t *testing.T) {
		f := newSyncFixture(t, common.PolicyServerWins)
		_, _ = f.repo.Create(ctx, "Mine", "")

		_, err := f.svc.AfterLogin(ctx, &Session{Username: "alice", Previous: "alice"})
		require.NoError(t, err)
		assert.Nil(t, f.fc.LastDecisions)
		assert.Len(t, f.fc.server, 1)
	})
}

func TestTrySync_SkipsWhileInFlight(t *testing.T) {
	f := newSyncFixture(t, common.PolicyServerWins)

	f.svc.mu.Lock()
	_, ran, err := f.svc.TrySync(context.Background())
	f.svc.mu.Unlock()
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Zero(t, f.fc.SyncCalls)

	_, ran, err = f.svc.TrySync(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRequest_RunsAgainWhenAskedDuringRun(t *testing.T) {
	f := newSyncFixture(t, common.PolicyServerWins)
	ctx := context.Background()

	var hooked atomic.Bool
	f.fc.syncHook = func() {
		if hooked.CompareAndSwap(false, true) {
			assert.True(t, f.svc.Running())
			f.svc.Request(ctx)
		}
	}

	f.svc.Request(ctx)
	assert.Equal(t, 2, f.fc.SyncCalls)
	assert.False(t, f.svc.Running())
}

func TestStartAutoSync(t *testing.T) {
	f := newSyncFixture(t, common.PolicyServerWins)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.svc.StartAutoSync(ctx, 0)
	f.svc.StartAutoSync(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		f.fc.mu.Lock()
		defer f.fc.mu.Unlock()
		return f.fc.SyncCalls >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBackgroundSync_SkippedWhenSignedOut(t *testing.T) {
	f := newSyncFixture(t, common.PolicyServerWins)
	f.fc.SetTokens("", "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.svc.Request(ctx)
	f.svc.StartAutoSync(ctx, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	f.fc.mu.Lock()
	defer f.fc.mu.Unlock()
	assert.Zero(t, f.fc.SyncCalls)
}
