package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mindnote.v1.MindNote"

// Method names.
const (
	MethodRegister        = "Register"
	MethodGetSalt         = "GetSalt"
	MethodLogin           = "Login"
	MethodRefreshToken    = "RefreshToken"
	MethodLogout          = "Logout"
	MethodPing            = "Ping"
	MethodSync            = "Sync"
	MethodCompare         = "Compare"
	MethodResolve         = "Resolve"
	MethodListWorkspaces  = "ListWorkspaces"
	MethodPresignUpload   = "PresignUpload"
	MethodMarkUploaded    = "MarkUploaded"
	MethodPresignDownload = "PresignDownload"
)

// FullMethod returns the "/service/method" path used on the wire.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// PublicMethods lists the full method names callable without an access token.
var PublicMethods = map[string]bool{
	FullMethod(MethodRegister):     true,
	FullMethod(MethodGetSalt):      true,
	FullMethod(MethodLogin):        true,
	FullMethod(MethodRefreshToken): true,
	FullMethod(MethodLogout):       true,
	FullMethod(MethodPing):         true,
}

// MindNoteServer is implemented by the sync server.
type MindNoteServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Sync(context.Context, *SyncRequest) (*SyncResponse, error)
	Compare(context.Context, *CompareRequest) (*CompareResponse, error)
	Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error)
	ListWorkspaces(context.Context, *ListWorkspacesRequest) (*ListWorkspacesResponse, error)
	PresignUpload(context.Context, *PresignUploadRequest) (*PresignUploadResponse, error)
	MarkUploaded(context.Context, *MarkUploadedRequest) (*MarkUploadedResponse, error)
	PresignDownload(context.Context, *PresignDownloadRequest) (*PresignDownloadResponse, error)
}

// UnimplementedMindNoteServer answers every call with codes.Unimplemented.
// Embed it to stay source compatible when methods are added.
type UnimplementedMindNoteServer struct{}

func unimplemented(name string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", name)
}

func (UnimplementedMindNoteServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, unimplemented(MethodRegister)
}
func (UnimplementedMindNoteServer) GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error) {
	return nil, unimplemented(MethodGetSalt)
}
func (UnimplementedMindNoteServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, unimplemented(MethodLogin)
}
func (UnimplementedMindNoteServer) RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error) {
	return nil, unimplemented(MethodRefreshToken)
}
func (UnimplementedMindNoteServer) Logout(context.Context, *LogoutRequest) (*LogoutResponse, error) {
	return nil, unimplemented(MethodLogout)
}
func (UnimplementedMindNoteServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, unimplemented(MethodPing)
}
func (UnimplementedMindNoteServer) Sync(context.Context, *SyncRequest) (*SyncResponse, error) {
	return nil, unimplemented(MethodSync)
}
func (UnimplementedMindNoteServer) Compare(context.Context, *CompareRequest) (*CompareResponse, error) {
	return nil, unimplemented(MethodCompare)
}
func (UnimplementedMindNoteServer) Resolve(context.Context, *ResolveRequest) (*ResolveResponse, error) {
	return nil, unimplemented(MethodResolve)
}
func (UnimplementedMindNoteServer) ListWorkspaces(context.Context, *ListWorkspacesRequest) (*ListWorkspacesResponse, error) {
	return nil, unimplemented(MethodListWorkspaces)
}
func (UnimplementedMindNoteServer) PresignUpload(context.Context, *PresignUploadRequest) (*PresignUploadResponse, error) {
	return nil, unimplemented(MethodPresignUpload)
}
func (UnimplementedMindNoteServer) MarkUploaded(context.Context, *MarkUploadedRequest) (*MarkUploadedResponse, error) {
	return nil, unimplemented(MethodMarkUploaded)
}
func (UnimplementedMindNoteServer) PresignDownload(context.Context, *PresignDownloadRequest) (*PresignDownloadResponse, error) {
	return nil, unimplemented(MethodPresignDownload)
}

// unary builds the descriptor of one unary method. The request is decoded
// into a fresh Req and passed through the server's interceptor chain.
func unary[Req any, Resp any](name string, call func(MindNoteServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MindNoteServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MindNoteServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the MindNote service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MindNoteServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, MindNoteServer.Register),
		unary(MethodGetSalt, MindNoteServer.GetSalt),
		unary(MethodLogin, MindNoteServer.Login),
		unary(MethodRefreshToken, MindNoteServer.RefreshToken),
		unary(MethodLogout, MindNoteServer.Logout),
		unary(MethodPing, MindNoteServer.Ping),
		unary(MethodSync, MindNoteServer.Sync),
		unary(MethodCompare, MindNoteServer.Compare),
		unary(MethodResolve, MindNoteServer.Resolve),
		unary(MethodListWorkspaces, MindNoteServer.ListWorkspaces),
		unary(MethodPresignUpload, MindNoteServer.PresignUpload),
		unary(MethodMarkUploaded, MindNoteServer.MarkUploaded),
		unary(MethodPresignDownload, MindNoteServer.PresignDownload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mindnote/v1/mindnote",
}

// RegisterMindNoteServer attaches srv to s.
func RegisterMindNoteServer(s grpc.ServiceRegistrar, srv MindNoteServer) {
	s.RegisterService(&ServiceDesc, srv)
}
