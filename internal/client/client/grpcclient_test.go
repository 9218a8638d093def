package client

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/mindnote/internal/api"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// fakeAPI records requests and returns preset responses. Methods a test
// does not set up fall through to the nil embedded interface and panic.
type fakeAPI struct {
	api.MindNoteClient

	lastRefresh  *api.RefreshTokenRequest
	lastGetSalt  *api.GetSaltRequest
	lastLogin    *api.LoginRequest
	lastRegister *api.RegisterRequest
	lastLogout   *api.LogoutRequest
	lastSync     *api.SyncRequest
	lastCompare  *api.CompareRequest
	lastResolve  *api.ResolveRequest
	lastPresign  *api.PresignUploadRequest
	lastMark     *api.MarkUploadedRequest
	lastDownload *api.PresignDownloadRequest

	refreshCalls int
	refreshResp  *api.RefreshTokenResponse
	refreshErr   error
	pingResp     *api.PingResponse
	pingErr      error
	saltResp     *api.GetSaltResponse
	saltErr      error
	loginResp    *api.LoginResponse
	loginErr     error
	registerErr  error
	logoutErr    error
	syncResp     *api.SyncResponse
	syncErr      error
	compareResp  *api.CompareResponse
	resolveResp  *api.ResolveResponse
	urlResp      string
	urlErr       error
	markErr      error
}

func (f *fakeAPI) RefreshToken(_ context.Context, in *api.RefreshTokenRequest, _ ...grpc.CallOption) (*api.RefreshTokenResponse, error) {
	f.refreshCalls++
	f.lastRefresh = in
	return f.refreshResp, f.refreshErr
}

func (f *fakeAPI) Ping(context.Context, *api.PingRequest, ...grpc.CallOption) (*api.PingResponse, error) {
	return f.pingResp, f.pingErr
}

func (f *fakeAPI) GetSalt(_ context.Context, in *api.GetSaltRequest, _ ...grpc.CallOption) (*api.GetSaltResponse, error) {
	f.lastGetSalt = in
	return f.saltResp, f.saltErr
}

func (f *fakeAPI) Login(_ context.Context, in *api.LoginRequest, _ ...grpc.CallOption) (*api.LoginResponse, error) {
	f.lastLogin = in
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Register(_ context.Context, in *api.RegisterRequest, _ ...grpc.CallOption) (*api.RegisterResponse, error) {
	f.lastRegister = in
	return &api.RegisterResponse{}, f.registerErr
}

func (f *fakeAPI) Logout(_ context.Context, in *api.LogoutRequest, _ ...grpc.CallOption) (*api.LogoutResponse, error) {
	f.lastLogout = in
	return &api.LogoutResponse{}, f.logoutErr
}

func (f *fakeAPI) Sync(_ context.Context, in *api.SyncRequest, _ ...grpc.CallOption) (*api.SyncResponse, error) {
	f.lastSync = in
	return f.syncResp, f.syncErr
}

func (f *fakeAPI) Compare(_ context.Context, in *api.CompareRequest, _ ...grpc.CallOption) (*api.CompareResponse, error) {
	f.lastCompare = in
	return f.compareResp, nil
}

func (f *fakeAPI) Resolve(_ context.Context, in *api.ResolveRequest, _ ...grpc.CallOption) (*api.ResolveResponse, error) {
	f.lastResolve = in
	return f.resolveResp, nil
}

func (f *fakeAPI) PresignUpload(_ context.Context, in *api.PresignUploadRequest, _ ...grpc.CallOption) (*api.PresignUploadResponse, error) {
	f.lastPresign = in
	return &api.PresignUploadResponse{URL: f.urlResp}, f.urlErr
}

func (f *fakeAPI) MarkUploaded(_ context.Context, in *api.MarkUploadedRequest, _ ...grpc.CallOption) (*api.MarkUploadedResponse, error) {
	f.lastMark = in
	return &api.MarkUploadedResponse{}, f.markErr
}

func (f *fakeAPI) PresignDownload(_ context.Context, in *api.PresignDownloadRequest, _ ...grpc.CallOption) (*api.PresignDownloadResponse, error) {
	f.lastDownload = in
	return &api.PresignDownloadResponse{URL: f.urlResp}, f.urlErr
}

func tokenOf(t *testing.T, ctx context.Context) string {
	t.Helper()
	md, _ := metadata.FromOutgoingContext(ctx)
	toks := md.Get(common.AccessTokenHeaderName)
	require.Len(t, toks, 1)
	return toks[0]
}

var syncMethod = api.FullMethod(api.MethodSync)

func TestInterceptor_RefreshesTokenOnExpiredAndRetries(t *testing.T) {
	f := &fakeAPI{refreshResp: &api.RefreshTokenResponse{AccessToken: "A2", RefreshToken: "R2"}}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	var persisted []string
	c.OnRefresh(func(a, r string) { persisted = []string{a, r} })

	callCount := 0
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		callCount++
		if callCount == 1 {
			require.Equal(t, "A1", tokenOf(t, ctx))
			return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		require.Equal(t, "A2", tokenOf(t, ctx))
		return nil
	}

	require.NoError(t, c.accessTokenInterceptor(context.Background(), syncMethod, nil, nil, nil, invoker))
	assert.Equal(t, 2, callCount)
	a, r := c.Tokens()
	assert.Equal(t, "A2", a)
	assert.Equal(t, "R2", r)
	assert.Equal(t, "R1", f.lastRefresh.RefreshToken)
	assert.Equal(t, []string{"A2", "R2"}, persisted)
}

func TestInterceptor_SkipsRefreshWhenAnotherCallRotated(t *testing.T) {
	f := &fakeAPI{}
	c := &GRPCClient{client: f, accessToken: "A2", refreshToken: "R2"}

	fresh, err := c.refresh(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "A2", fresh)
	assert.Zero(t, f.refreshCalls)
}

func TestInterceptor_NoRefreshIfNoRefreshToken(t *testing.T) {
	f := &fakeAPI{}
	c := &GRPCClient{client: f, accessToken: "A1"}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	err := c.accessTokenInterceptor(context.Background(), syncMethod, nil, nil, nil, invoker)
	require.Error(t, err)
	assert.Zero(t, f.refreshCalls)
}

func TestInterceptor_RefreshFailureReturnsOriginalError(t *testing.T) {
	f := &fakeAPI{refreshErr: status.Error(codes.Unauthenticated, "refresh token expired")}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	err := c.accessTokenInterceptor(context.Background(), syncMethod, nil, nil, nil, invoker)
	require.True(t, isTokenExpired(err))
}

func TestInterceptor_IgnoresOtherErrors(t *testing.T) {
	f := &fakeAPI{}
	c := &GRPCClient{client: f, accessToken: "X", refreshToken: "R"}
	for _, e := range []error{status.Error(codes.Internal, "boom"), status.Error(codes.Unauthenticated, "invalid token")} {
		invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			return e
		}
		require.Error(t, c.accessTokenInterceptor(context.Background(), syncMethod, nil, nil, nil, invoker))
	}
	assert.Zero(t, f.refreshCalls)
}

func TestInterceptor_PublicMethodsCarryNoToken(t *testing.T) {
	c := &GRPCClient{accessToken: "X"}
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		assert.Empty(t, md.Get(common.AccessTokenHeaderName))
		return nil
	}
	require.NoError(t, c.accessTokenInterceptor(context.Background(), api.FullMethod(api.MethodLogin), nil, nil, nil, invoker))
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	assert.Nil(t, c.mapError(nil))
	assert.Equal(t, ErrUnauthorized, c.mapError(status.Error(codes.Unauthenticated, "x")))
	assert.Equal(t, ErrUnauthorized, c.mapError(status.Error(codes.PermissionDenied, "x")))
	assert.Equal(t, ErrUnavailable, c.mapError(status.Error(codes.Unavailable, "x")))
	assert.Equal(t, ErrUnavailable, c.mapError(status.Error(codes.DeadlineExceeded, "x")))
	assert.Equal(t, ErrConflict, c.mapError(status.Error(codes.Aborted, "x")))
	assert.ErrorIs(t, c.mapError(status.Error(codes.NotFound, "x")), common.ErrorNotFound)
	assert.ErrorIs(t, c.mapError(status.Error(codes.AlreadyExists, "x")), common.ErrorAlreadyExists)
	assert.ErrorIs(t, c.mapError(status.Error(codes.InvalidArgument, "x")), common.ErrorValidation)
	assert.ErrorContains(t, c.mapError(errors.New("plain")), "rpc error:")
}

func TestPing(t *testing.T) {
	c := &GRPCClient{client: &fakeAPI{pingResp: &api.PingResponse{Status: "OK"}}}
	require.NoError(t, c.Ping(context.Background()))

	c = &GRPCClient{client: &fakeAPI{pingResp: &api.PingResponse{Status: "NOT_OK"}}}
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)

	c = &GRPCClient{client: &fakeAPI{pingErr: status.Error(codes.Unavailable, "down")}}
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestGetSalt(t *testing.T) {
	f := &fakeAPI{saltResp: &api.GetSaltResponse{Salt: []byte{1, 2, 3}}}
	c := &GRPCClient{client: f}
	salt, err := c.GetSalt(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, salt)
	assert.Equal(t, "u", f.lastGetSalt.Username)

	c = &GRPCClient{client: &fakeAPI{saltErr: status.Error(codes.NotFound, "x")}}
	_, err = c.GetSalt(context.Background(), "u")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLoginAndLogout(t *testing.T) {
	f := &fakeAPI{loginResp: &api.LoginResponse{AccessToken: "A", RefreshToken: "R"}}
	c := &GRPCClient{client: f}

	require.NoError(t, c.Login(context.Background(), "u", []byte{9}))
	a, r := c.Tokens()
	assert.Equal(t, "A", a)
	assert.Equal(t, "R", r)
	assert.Equal(t, []byte{9}, f.lastLogin.VerifierCandidate)

	f.logoutErr = status.Error(codes.Unavailable, "x")
	require.ErrorIs(t, c.Logout(context.Background()), ErrUnavailable)
	assert.Equal(t, "R", f.lastLogout.RefreshToken)
	a, r = c.Tokens()
	assert.Empty(t, a)
	assert.Empty(t, r)

	f.lastLogout = nil
	require.NoError(t, c.Logout(context.Background()))
	assert.Nil(t, f.lastLogout)
}

func TestRegister_MapsError(t *testing.T) {
	f := &fakeAPI{registerErr: status.Error(codes.AlreadyExists, "taken")}
	c := &GRPCClient{client: f}
	err := c.Register(context.Background(), "u", []byte{1}, []byte{2})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Equal(t, &api.RegisterRequest{Username: "u", Salt: []byte{1}, Verifier: []byte{2}}, f.lastRegister)
}

func doc(t *testing.T, ws models.Workspace) *api.WorkspaceDoc {
	t.Helper()
	d, err := api.FromWorkspace(ws)
	require.NoError(t, err)
	return d
}

func TestSync_MapsRequestAndResponse(t *testing.T) {
	local := models.Workspace{ID: "w1", Name: "Local", Version: 1, Items: models.Items{models.TextItem{ID: "t", Text: "hi"}}}
	server := models.Workspace{ID: "w1", Name: "Server", Version: 3}
	f := &fakeAPI{syncResp: &api.SyncResponse{
		Processed:  []*api.WorkspaceDoc{doc(t, models.Workspace{ID: "w2", Name: "P", Version: 5})},
		Updated:    []*api.WorkspaceDoc{doc(t, models.Workspace{ID: "w3", Name: "U", Version: 4})},
		Conflicts:  []*api.ConflictDoc{{Local: doc(t, local), Server: doc(t, server)}, {Local: doc(t, local)}},
		MaxVersion: 42,
	}}
	c := &GRPCClient{client: f}

	res, err := c.Sync(context.Background(), []models.Workspace{local}, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), f.lastSync.SinceVersion)
	require.Len(t, f.lastSync.Workspaces, 1)
	assert.Equal(t, "w1", f.lastSync.Workspaces[0].ID)

	assert.Equal(t, int64(42), res.MaxVersion)
	require.Len(t, res.Processed, 1)
	assert.Equal(t, int64(5), res.Processed[0].Version)
	require.Len(t, res.Updated, 1)
	assert.Equal(t, "U", res.Updated[0].Name)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "Server", res.Conflicts[0].Server.Name)
	assert.Equal(t, "hi", res.Conflicts[0].Local.Items[0].(models.TextItem).Text)
}

func TestSync_MapsError(t *testing.T) {
	c := &GRPCClient{client: &fakeAPI{syncErr: status.Error(codes.Aborted, "x")}}
	_, err := c.Sync(context.Background(), nil, 0)
	require.ErrorIs(t, err, ErrConflict)
}

func TestCompareAndResolve(t *testing.T) {
	f := &fakeAPI{
		compareResp: &api.CompareResponse{
			New:        []*api.WorkspaceDoc{doc(t, models.Workspace{ID: "n"})},
			ServerOnly: []*api.WorkspaceDoc{doc(t, models.Workspace{ID: "s"})},
			Conflicts:  []*api.ConflictDoc{{Local: doc(t, models.Workspace{ID: "c", Name: "L"}), Server: doc(t, models.Workspace{ID: "c", Name: "S"})}},
		},
		resolveResp: &api.ResolveResponse{Workspaces: []*api.WorkspaceDoc{doc(t, models.Workspace{ID: "c", Name: "L", Version: 9})}, MaxVersion: 9},
	}
	c := &GRPCClient{client: f}
	local := []models.Workspace{{ID: "n"}, {ID: "c", Name: "L"}}

	cmp, err := c.Compare(context.Background(), local)
	require.NoError(t, err)
	assert.Len(t, f.lastCompare.Workspaces, 2)
	assert.Equal(t, "n", cmp.New[0].ID)
	assert.Equal(t, "s", cmp.ServerOnly[0].ID)
	assert.Equal(t, "S", cmp.Conflicts[0].Server.Name)

	list, v, err := c.Resolve(context.Background(), local, map[string]string{"c": "local"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)
	assert.Equal(t, "L", list[0].Name)
	assert.Equal(t, map[string]string{"c": "local"}, f.lastResolve.Decisions)
}

func TestMediaCalls(t *testing.T) {
	f := &fakeAPI{urlResp: "https://s3/obj"}
	c := &GRPCClient{client: f}
	ctx := context.Background()

	u, err := c.PresignUpload(ctx, "w1", "i1")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/obj", u)
	assert.Equal(t, &api.PresignUploadRequest{WorkspaceID: "w1", ItemID: "i1"}, f.lastPresign)

	require.NoError(t, c.MarkUploaded(ctx, "i1"))
	assert.Equal(t, "i1", f.lastMark.ItemID)

	u, err = c.PresignDownload(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/obj", u)

	f.urlErr = status.Error(codes.NotFound, "file upload not found")
	_, err = c.PresignDownload(ctx, "i1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	f.markErr = status.Error(codes.PermissionDenied, "x")
	require.ErrorIs(t, c.MarkUploaded(ctx, "i1"), ErrUnauthorized)
}
