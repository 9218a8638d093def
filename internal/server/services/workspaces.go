package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/dbx"
	"github.com/dmitrijs2005/mindnote/internal/logging"
	domain "github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/dmitrijs2005/mindnote/internal/server/models"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/repomanager"
)

// Guest-merge decisions accepted by Resolve.
const (
	DecisionLocal  = "local"
	DecisionServer = "server"
)

// Notifier is told about every committed change of a user's data.
type Notifier interface {
	Publish(userID string, version int64)
}

// Conflict pairs a rejected client copy with the server copy that beat it.
type Conflict struct {
	Local  domain.Workspace
	Server domain.Workspace
}

// SyncResult is the outcome of one Sync call.
type SyncResult struct {
	// Processed are the accepted client docs with their new versions.
	Processed []domain.Workspace
	// Updated are server docs changed since the client's last sync and not
	// part of Processed. Tombstones are included.
	Updated    []domain.Workspace
	Conflicts  []Conflict
	MaxVersion int64
}

// Comparison classifies a guest's local workspaces against the account.
type Comparison struct {
	New        []domain.Workspace
	Conflicts  []Conflict
	ServerOnly []domain.Workspace
}

// Node is a workspace with its nested workspaces resolved.
type Node struct {
	Workspace domain.Workspace
	Children  []*Node
}

type WorkspaceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    Notifier
	logger      logging.Logger
}

func NewWorkspaceService(db *sql.DB, m repomanager.RepositoryManager, notifier Notifier, logger logging.Logger) *WorkspaceService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &WorkspaceService{db: db, repomanager: m, notifier: notifier, logger: logger.With("module", "workspaces")}
}

func validateDoc(ws domain.Workspace) error {
	if ws.ID == "" {
		return fmt.Errorf("%w: workspace id is required", common.ErrorValidation)
	}
	if ws.Deleted {
		return nil
	}
	return ws.Validate()
}

func (s *WorkspaceService) publish(userID string, version int64) {
	if s.notifier != nil {
		s.notifier.Publish(userID, version)
	}
}

// Sync applies the client's pending docs and returns what changed on the
// server since sinceVersion. A pending doc's Version is the server version
// it was based on; when the stored copy is newer the doc is reported as a
// conflict and not written. All writes share one transaction.
func (s *WorkspaceService) Sync(ctx context.Context, userID string, pending []domain.Workspace, sinceVersion int64) (*SyncResult, error) {
	for _, doc := range pending {
		if err := validateDoc(doc); err != nil {
			return nil, err
		}
	}

	res := &SyncResult{}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userRepo := s.repomanager.Users(tx)
		wsRepo := s.repomanager.Workspaces(tx)

		current, err := userRepo.LockForSync(ctx, userID)
		if err != nil {
			return err
		}

		processed := map[string]bool{}
		for _, doc := range pending {
			existing, err := wsRepo.Get(ctx, userID, doc.ID)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			if existing != nil && existing.Version > doc.Version {
				server, err := existing.ToDomain()
				if err != nil {
					return err
				}
				res.Conflicts = append(res.Conflicts, Conflict{Local: doc, Server: server})
				continue
			}

			version, err := userRepo.IncrementCurrentVersion(ctx, userID)
			if err != nil {
				return err
			}
			current = version

			doc.Version = version
			if doc.Deleted {
				doc.Items = domain.Items{}
			}
			row, err := models.FromDomain(userID, doc)
			if err != nil {
				return err
			}
			if err := wsRepo.CreateOrUpdate(ctx, row); err != nil {
				return fmt.Errorf("workspace %s: %w", doc.ID, err)
			}
			res.Processed = append(res.Processed, doc)
			processed[doc.ID] = true
		}

		updated, err := wsRepo.SelectUpdated(ctx, userID, sinceVersion)
		if err != nil {
			return err
		}
		for _, row := range updated {
			if processed[row.ID] {
				continue
			}
			ws, err := row.ToDomain()
			if err != nil {
				return err
			}
			res.Updated = append(res.Updated, ws)
		}
		res.MaxVersion = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sync failed: %w", err)
	}

	if len(res.Processed) > 0 {
		s.publish(userID, res.MaxVersion)
	}
	s.logger.Debug(ctx, "sync done", "user", userID, "processed", len(res.Processed),
		"updated", len(res.Updated), "conflicts", len(res.Conflicts), "version", res.MaxVersion)
	return res, nil
}

func (s *WorkspaceService) listActive(ctx context.Context, db dbx.DBTX, userID string) ([]domain.Workspace, error) {
	rows, err := s.repomanager.Workspaces(db).ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Workspace, 0, len(rows))
	for _, row := range rows {
		ws, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, nil
}

// sameContent compares the user-visible parts of two workspaces.
func sameContent(a, b domain.Workspace) bool {
	if a.Name != b.Name || a.IconURI != b.IconURI || a.IsFavorite != b.IsFavorite || a.ParentID != b.ParentID {
		return false
	}
	ai, errA := json.Marshal(a.Items)
	bi, errB := json.Marshal(b.Items)
	return errA == nil && errB == nil && bytes.Equal(ai, bi)
}

// Compare classifies local (guest) workspaces against the user's account.
func (s *WorkspaceService) Compare(ctx context.Context, userID string, local []domain.Workspace) (*Comparison, error) {
	server, err := s.listActive(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	byID := make(map[string]domain.Workspace, len(server))
	for _, ws := range server {
		byID[ws.ID] = ws
	}

	cmp := &Comparison{}
	seen := map[string]bool{}
	for _, ws := range local {
		seen[ws.ID] = true
		srv, ok := byID[ws.ID]
		switch {
		case !ok:
			cmp.New = append(cmp.New, ws)
		case !sameContent(ws, srv):
			cmp.Conflicts = append(cmp.Conflicts, Conflict{Local: ws, Server: srv})
		}
	}
	for _, ws := range server {
		if !seen[ws.ID] {
			cmp.ServerOnly = append(cmp.ServerOnly, ws)
		}
	}
	return cmp, nil
}

// Resolve merges guest workspaces into the account. Docs unknown to the
// server are inserted. Docs present on both sides are overwritten only when
// decisions maps their id to DecisionLocal. It returns the account's full
// list and the resulting max version.
func (s *WorkspaceService) Resolve(ctx context.Context, userID string, local []domain.Workspace, decisions map[string]string) ([]domain.Workspace, int64, error) {
	for _, ws := range local {
		if err := validateDoc(ws); err != nil {
			return nil, 0, err
		}
	}

	var (
		list    []domain.Workspace
		version int64
		written int
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		userRepo := s.repomanager.Users(tx)
		wsRepo := s.repomanager.Workspaces(tx)

		current, err := userRepo.LockForSync(ctx, userID)
		if err != nil {
			return err
		}

		for _, ws := range local {
			existing, err := wsRepo.Get(ctx, userID, ws.ID)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			if existing != nil && !existing.Deleted && decisions[ws.ID] != DecisionLocal {
				continue
			}

			v, err := userRepo.IncrementCurrentVersion(ctx, userID)
			if err != nil {
				return err
			}
			current = v
			ws.Version = v
			ws.Deleted = false
			row, err := models.FromDomain(userID, ws)
			if err != nil {
				return err
			}
			if err := wsRepo.CreateOrUpdate(ctx, row); err != nil {
				return fmt.Errorf("workspace %s: %w", ws.ID, err)
			}
			written++
		}

		list, err = s.listActive(ctx, tx, userID)
		version = current
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("resolve failed: %w", err)
	}
	if written > 0 {
		s.publish(userID, version)
	}
	return list, version, nil
}

// List returns the user's live workspaces.
func (s *WorkspaceService) List(ctx context.Context, userID string) ([]domain.Workspace, error) {
	return s.listActive(ctx, s.db, userID)
}

// Get returns one live workspace. Tombstones are reported as not found.
func (s *WorkspaceService) Get(ctx context.Context, userID, id string) (domain.Workspace, error) {
	row, err := s.repomanager.Workspaces(s.db).Get(ctx, userID, id)
	if err != nil {
		return domain.Workspace{}, err
	}
	if row.Deleted {
		return domain.Workspace{}, common.ErrorNotFound
	}
	return row.ToDomain()
}

// FullStructure returns the workspace with every nested workspace resolved
// recursively. A workspace reachable twice appears once; cycles are cut.
func (s *WorkspaceService) FullStructure(ctx context.Context, userID, id string) (*Node, error) {
	list, err := s.listActive(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	i := domain.Find(list, id)
	if i < 0 {
		return nil, common.ErrorNotFound
	}

	seen := map[string]bool{}
	var build func(ws domain.Workspace) *Node
	build = func(ws domain.Workspace) *Node {
		seen[ws.ID] = true
		n := &Node{Workspace: ws}
		for _, c := range domain.Children(list, ws.ID) {
			if seen[c.ID] {
				continue
			}
			n.Children = append(n.Children, build(c))
		}
		return n
	}
	return build(list[i]), nil
}

// Flatten returns the node and all its descendants in depth-first order.
func (n *Node) Flatten() []domain.Workspace {
	out := []domain.Workspace{n.Workspace}
	for _, c := range n.Children {
		out = append(out, c.Flatten()...)
	}
	return out
}
