package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/api"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      api.MindNoteClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	onRefresh    func(access, refresh string)

	// refreshMu serialises token rotation so that concurrent calls do not
	// spend the same refresh token twice.
	refreshMu sync.Mutex
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) Tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) SetTokens(access, refresh string) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = access, refresh
	s.mu.Unlock()
}

// OnRefresh registers fn to be called after tokens were rotated.
func (s *GRPCClient) OnRefresh(fn func(access, refresh string)) {
	s.mu.Lock()
	s.onRefresh = fn
	s.mu.Unlock()
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

// refresh rotates the tokens unless another call already did it since used
// was sent.
func (s *GRPCClient) refresh(ctx context.Context, used string) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	access, refresh := s.Tokens()
	if access != used {
		return access, nil
	}
	if refresh == "" {
		return "", common.ErrRefreshTokenExpired
	}

	resp, err := s.client.RefreshToken(ctx, &api.RefreshTokenRequest{RefreshToken: refresh})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	cb := s.onRefresh
	s.mu.Unlock()

	if cb != nil {
		cb(resp.AccessToken, resp.RefreshToken)
	}
	return resp.AccessToken, nil
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if api.PublicMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	access, _ := s.Tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if err == nil || !isTokenExpired(err) {
		return err
	}

	fresh, rerr := s.refresh(ctx, access)
	if rerr != nil {
		return err
	}
	return invoker(withAccessToken(ctx, fresh), method, req, reply, cc, opts...)
}

func NewMindNoteClientService(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewMindNoteClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Register(ctx context.Context, userName string, salt []byte, verifier []byte) error {
	_, err := s.client.Register(ctx, &api.RegisterRequest{Username: userName, Salt: salt, Verifier: verifier})
	return s.mapError(err)
}

func (s *GRPCClient) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	resp, err := s.client.GetSalt(ctx, &api.GetSaltRequest{Username: userName})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Salt, nil
}

func (s *GRPCClient) Login(ctx context.Context, userName string, verifier []byte) error {
	resp, err := s.client.Login(ctx, &api.LoginRequest{Username: userName, VerifierCandidate: verifier})
	if err != nil {
		return s.mapError(err)
	}
	s.SetTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}

// Logout revokes the refresh token on the server and forgets both tokens
// locally, even when the server cannot be reached.
func (s *GRPCClient) Logout(ctx context.Context) error {
	_, refresh := s.Tokens()
	s.SetTokens("", "")
	if refresh == "" {
		return nil
	}
	_, err := s.client.Logout(ctx, &api.LogoutRequest{RefreshToken: refresh})
	return s.mapError(err)
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func toConflicts(docs []*api.ConflictDoc) ([]Conflict, error) {
	out := make([]Conflict, 0, len(docs))
	for _, c := range docs {
		if c == nil || c.Local == nil || c.Server == nil {
			continue
		}
		local, err := c.Local.ToWorkspace()
		if err != nil {
			return nil, err
		}
		server, err := c.Server.ToWorkspace()
		if err != nil {
			return nil, err
		}
		out = append(out, Conflict{Local: local, Server: server})
	}
	return out, nil
}

func (s *GRPCClient) Sync(ctx context.Context, pending []models.Workspace, sinceVersion int64) (*SyncResult, error) {
	docs, err := api.FromWorkspaces(pending)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Sync(ctx, &api.SyncRequest{Workspaces: docs, SinceVersion: sinceVersion})
	if err != nil {
		return nil, s.mapError(err)
	}

	res := &SyncResult{MaxVersion: resp.MaxVersion}
	if res.Processed, err = api.ToWorkspaces(resp.Processed); err != nil {
		return nil, err
	}
	if res.Updated, err = api.ToWorkspaces(resp.Updated); err != nil {
		return nil, err
	}
	if res.Conflicts, err = toConflicts(resp.Conflicts); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *GRPCClient) Compare(ctx context.Context, local []models.Workspace) (*Comparison, error) {
	docs, err := api.FromWorkspaces(local)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Compare(ctx, &api.CompareRequest{Workspaces: docs})
	if err != nil {
		return nil, s.mapError(err)
	}

	cmp := &Comparison{}
	if cmp.New, err = api.ToWorkspaces(resp.New); err != nil {
		return nil, err
	}
	if cmp.ServerOnly, err = api.ToWorkspaces(resp.ServerOnly); err != nil {
		return nil, err
	}
	if cmp.Conflicts, err = toConflicts(resp.Conflicts); err != nil {
		return nil, err
	}
	return cmp, nil
}

func (s *GRPCClient) Resolve(ctx context.Context, local []models.Workspace, decisions map[string]string) ([]models.Workspace, int64, error) {
	docs, err := api.FromWorkspaces(local)
	if err != nil {
		return nil, 0, err
	}

	resp, err := s.client.Resolve(ctx, &api.ResolveRequest{Workspaces: docs, Decisions: decisions})
	if err != nil {
		return nil, 0, s.mapError(err)
	}

	list, err := api.ToWorkspaces(resp.Workspaces)
	if err != nil {
		return nil, 0, err
	}
	return list, resp.MaxVersion, nil
}

func (s *GRPCClient) PresignUpload(ctx context.Context, workspaceID, itemID string) (string, error) {
	resp, err := s.client.PresignUpload(ctx, &api.PresignUploadRequest{WorkspaceID: workspaceID, ItemID: itemID})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.URL, nil
}

func (s *GRPCClient) MarkUploaded(ctx context.Context, itemID string) error {
	_, err := s.client.MarkUploaded(ctx, &api.MarkUploadedRequest{ItemID: itemID})
	return s.mapError(err)
}

func (s *GRPCClient) PresignDownload(ctx context.Context, itemID string) (string, error) {
	resp, err := s.client.PresignDownload(ctx, &api.PresignDownloadRequest{ItemID: itemID})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.URL, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.Aborted:
		return ErrConflict
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrorNotFound, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", common.ErrorAlreadyExists, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrorValidation, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
