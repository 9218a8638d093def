package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/client/client"
	clientmodels "github.com/dmitrijs2005/mindnote/internal/client/models"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/mindnote/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/dmitrijs2005/mindnote/internal/netx"
)

// WorkspaceStore is the part of the local repository the sync service needs.
type WorkspaceStore interface {
	Snapshot() []models.Workspace
	Get(id string) (models.Workspace, error)
	ApplyRemote(ctx context.Context, remote []models.Workspace) error
	AckVersions(ctx context.Context, versions map[string]int64) error
	Reset(ctx context.Context, list []models.Workspace) error
}

// Report summarises one sync run.
type Report struct {
	Pushed    int
	Pulled    int
	Conflicts int
	Uploaded  int
	Version   int64
}

// MergeReport summarises a guest merge.
type MergeReport struct {
	New        int
	Conflicts  int
	ServerOnly int
	Version    int64
}

// uploadFunc is a seam for tests.
var uploadFunc = netx.UploadToS3PresignedURL

type SyncService struct {
	client   client.Client
	ws       WorkspaceStore
	meta     metadata.Repository
	outbox   outbox.Repository
	uploads  uploads.Repository
	policy   string
	logger   logging.Logger
	mu       sync.Mutex
	again    atomic.Bool
	inFlight atomic.Bool
}

func NewSyncService(c client.Client, ws WorkspaceStore, repos *client.Repositories, policy string, logger logging.Logger) *SyncService {
	if logger == nil {
		logger = logging.Nop{}
	}
	if policy != common.PolicyLocalWins {
		policy = common.PolicyServerWins
	}
	return &SyncService{
		client:  c,
		ws:      ws,
		meta:    repos.Metadata,
		outbox:  repos.Outbox,
		uploads: repos.Uploads,
		policy:  policy,
		logger:  logger.With("module", "sync"),
	}
}

func (s *SyncService) Policy() string { return s.policy }

// Sync runs one full round trip, waiting for a run already in flight.
func (s *SyncService) Sync(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx)
}

// TrySync runs a sync unless one is in flight, in which case it returns
// (nil, false, nil).
func (s *SyncService) TrySync(ctx context.Context) (*Report, bool, error) {
	if !s.mu.TryLock() {
		return nil, false, nil
	}
	defer s.mu.Unlock()
	rep, err := s.run(ctx)
	return rep, true, err
}

// Request asks for a sync. When one is already running another round is
// scheduled right after it instead of being dropped.
func (s *SyncService) Request(ctx context.Context) {
	if !s.signedIn() {
		return
	}
	if !s.mu.TryLock() {
		s.again.Store(true)
		return
	}
	defer s.mu.Unlock()
	for {
		if _, err := s.run(ctx); err != nil {
			s.logger.Warn(ctx, "requested sync failed", "error", err)
		}
		if !s.again.Swap(false) || ctx.Err() != nil {
			return
		}
	}
}

// signedIn reports whether the client holds a session. Background syncs
// are skipped for guests.
func (s *SyncService) signedIn() bool {
	_, refresh := s.client.Tokens()
	return refresh != ""
}

// StartAutoSync syncs every interval until ctx is done. Ticks that arrive
// while a run is still in flight, or while nobody is signed in, are skipped.
func (s *SyncService) StartAutoSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.signedIn() {
					continue
				}
				rep, ran, err := s.TrySync(ctx)
				switch {
				case !ran:
					s.logger.Debug(ctx, "auto sync skipped, run in flight")
				case err != nil:
					s.logger.Warn(ctx, "auto sync failed", "error", err)
				default:
					s.logger.Debug(ctx, "auto sync done", "pushed", rep.Pushed, "pulled", rep.Pulled, "version", rep.Version)
				}
			}
		}
	}()
}

func (s *SyncService) run(ctx context.Context) (*Report, error) {
	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	changes, err := s.outbox.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	since, err := metadata.GetInt64(ctx, s.meta, metadata.KeyLastVersion)
	if err != nil {
		return nil, err
	}

	docs, byID := s.buildDocs(changes)
	res, err := s.client.Sync(ctx, docs, since)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	rep := &Report{Pushed: len(res.Processed), Conflicts: len(res.Conflicts)}
	maxVersion := res.MaxVersion
	if err := s.ack(ctx, byID, res.Processed); err != nil {
		return nil, err
	}

	skip := map[string]bool{}
	var incoming []models.Workspace

	if len(res.Conflicts) > 0 {
		switch s.policy {
		case common.PolicyLocalWins:
			retry := make([]models.Workspace, 0, len(res.Conflicts))
			for _, c := range res.Conflicts {
				local := c.Local
				local.Version = c.Server.Version
				retry = append(retry, local)
				skip[c.Local.ID] = true
			}
			res2, err := s.client.Sync(ctx, retry, res.MaxVersion)
			if err != nil {
				return nil, fmt.Errorf("re-push conflicts: %w", err)
			}
			if err := s.ack(ctx, byID, res2.Processed); err != nil {
				return nil, err
			}
			rep.Pushed += len(res2.Processed)
			for _, c := range res2.Conflicts {
				s.logger.Warn(ctx, "conflict persists, retrying next run", "workspace", c.Local.ID)
			}
			incoming = append(incoming, res2.Updated...)
			maxVersion = max(maxVersion, res2.MaxVersion)
		default:
			acked := make([]clientmodels.Change, 0, len(res.Conflicts))
			versions := map[string]int64{}
			for _, c := range res.Conflicts {
				if ch, ok := byID[c.Server.ID]; ok {
					acked = append(acked, ch)
				}
				versions[c.Server.ID] = c.Server.Version
				incoming = append(incoming, c.Server)
				skip[c.Server.ID] = true
			}
			if err := s.outbox.Ack(ctx, acked, versions); err != nil {
				return nil, err
			}
		}
	}

	for _, ws := range res.Updated {
		if !skip[ws.ID] {
			incoming = append(incoming, ws)
		}
	}

	applied, err := s.applyIncoming(ctx, incoming)
	if err != nil {
		return nil, err
	}
	rep.Pulled = applied

	if err := metadata.SetInt64(ctx, s.meta, metadata.KeyLastVersion, maxVersion); err != nil {
		return nil, err
	}
	rep.Version = maxVersion

	rep.Uploaded = s.uploadPending(ctx)

	s.logger.Info(ctx, "sync done", "pushed", rep.Pushed, "pulled", rep.Pulled,
		"conflicts", rep.Conflicts, "uploaded", rep.Uploaded, "version", rep.Version)
	return rep, nil
}

// buildDocs turns outbox entries into wire docs carrying their base version.
func (s *SyncService) buildDocs(changes []clientmodels.Change) ([]models.Workspace, map[string]clientmodels.Change) {
	docs := make([]models.Workspace, 0, len(changes))
	byID := make(map[string]clientmodels.Change, len(changes))
	for _, ch := range changes {
		byID[ch.WorkspaceID] = ch
		ws, err := s.ws.Get(ch.WorkspaceID)
		if ch.Deleted || err != nil {
			docs = append(docs, models.Workspace{
				ID:        ch.WorkspaceID,
				Version:   ch.BaseVersion,
				Deleted:   true,
				Items:     models.Items{},
				UpdatedAt: ch.ChangedAt.UnixMilli(),
			})
			continue
		}
		ws.Version = ch.BaseVersion
		docs = append(docs, ws)
	}
	return docs, byID
}

func (s *SyncService) ack(ctx context.Context, byID map[string]clientmodels.Change, processed []models.Workspace) error {
	if len(processed) == 0 {
		return nil
	}
	versions := make(map[string]int64, len(processed))
	acked := make([]clientmodels.Change, 0, len(processed))
	for _, ws := range processed {
		versions[ws.ID] = ws.Version
		if ch, ok := byID[ws.ID]; ok {
			acked = append(acked, ch)
		}
	}
	if err := s.outbox.Ack(ctx, acked, versions); err != nil {
		return fmt.Errorf("ack outbox: %w", err)
	}
	if err := s.ws.AckVersions(ctx, versions); err != nil {
		return fmt.Errorf("ack versions: %w", err)
	}
	return nil
}

// applyIncoming stores remote changes, leaving out workspaces edited locally
// while the sync was running. Those conflict on the next run.
func (s *SyncService) applyIncoming(ctx context.Context, incoming []models.Workspace) (int, error) {
	if len(incoming) == 0 {
		return 0, nil
	}
	still, err := s.outbox.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("read outbox: %w", err)
	}
	dirty := make(map[string]bool, len(still))
	for _, ch := range still {
		dirty[ch.WorkspaceID] = true
	}

	apply := make([]models.Workspace, 0, len(incoming))
	for _, ws := range incoming {
		if dirty[ws.ID] {
			continue
		}
		apply = append(apply, ws)
	}
	if err := s.ws.ApplyRemote(ctx, apply); err != nil {
		return 0, fmt.Errorf("apply remote: %w", err)
	}
	return len(apply), nil
}

// QueueUpload schedules a media file for upload on the next sync.
func (s *SyncService) QueueUpload(ctx context.Context, workspaceID, itemID, localPath string) error {
	return s.uploads.Enqueue(ctx, clientmodels.Upload{ItemID: itemID, WorkspaceID: workspaceID, LocalPath: localPath})
}

// uploadPending sends queued media. Failures are logged and retried on the
// next run.
func (s *SyncService) uploadPending(ctx context.Context) int {
	pending, err := s.uploads.Pending(ctx)
	if err != nil {
		s.logger.Warn(ctx, "reading upload queue failed", "error", err)
		return 0
	}

	done := 0
	for _, u := range pending {
		if err := s.upload(ctx, u); err != nil {
			s.logger.Warn(ctx, "upload failed", "item", u.ItemID, "error", err)
			continue
		}
		done++
	}
	return done
}

func (s *SyncService) upload(ctx context.Context, u clientmodels.Upload) error {
	url, err := s.client.PresignUpload(ctx, u.WorkspaceID, u.ItemID)
	if err != nil {
		return fmt.Errorf("presign: %w", err)
	}
	if err := uploadFunc(ctx, url, u.LocalPath); err != nil {
		return err
	}
	if err := s.client.MarkUploaded(ctx, u.ItemID); err != nil {
		return fmt.Errorf("mark uploaded: %w", err)
	}
	return s.uploads.MarkDone(ctx, u.ItemID)
}

// MergeGuest uploads workspaces created before the first login. Conflicting
// workspaces are decided by policy; the local list is then replaced by the
// account's full list.
func (s *SyncService) MergeGuest(ctx context.Context, policy string) (*MergeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local := s.ws.Snapshot()
	cmp, err := s.client.Compare(ctx, local)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}

	decision := "server"
	if policy == common.PolicyLocalWins {
		decision = "local"
	}
	decisions := make(map[string]string, len(cmp.Conflicts))
	for _, c := range cmp.Conflicts {
		decisions[c.Local.ID] = decision
	}

	list, version, err := s.client.Resolve(ctx, local, decisions)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	if err := s.ws.Reset(ctx, list); err != nil {
		return nil, err
	}
	if err := s.outbox.Clear(ctx); err != nil {
		return nil, err
	}
	if err := metadata.SetInt64(ctx, s.meta, metadata.KeyLastVersion, version); err != nil {
		return nil, err
	}

	rep := &MergeReport{New: len(cmp.New), Conflicts: len(cmp.Conflicts), ServerOnly: len(cmp.ServerOnly), Version: version}
	s.logger.Info(ctx, "guest data merged", "new", rep.New, "conflicts", rep.Conflicts, "server_only", rep.ServerOnly)
	return rep, nil
}

// SwitchAccount forgets everything that belonged to the previous account.
func (s *SyncService) SwitchAccount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Join(
		s.outbox.Clear(ctx),
		s.uploads.Clear(ctx),
		s.meta.Delete(ctx, metadata.KeyLastVersion),
		s.ws.Reset(ctx, nil),
	)
}

// AfterLogin brings local data in line with the account that just signed in:
// guest data is merged, another account's data is dropped, and a regular
// sync follows.
func (s *SyncService) AfterLogin(ctx context.Context, sess *Session) (*Report, error) {
	switch {
	case sess.Previous == "" && len(s.ws.Snapshot()) > 0:
		if _, err := s.MergeGuest(ctx, s.policy); err != nil {
			return nil, err
		}
	case sess.Previous != "" && sess.Previous != sess.Username:
		if err := s.SwitchAccount(ctx); err != nil {
			return nil, err
		}
	}
	return s.Sync(ctx)
}

// Running reports whether a sync is in progress.
func (s *SyncService) Running() bool { return s.inFlight.Load() }
