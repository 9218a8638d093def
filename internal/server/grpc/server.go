// Package grpc exposes the MindNote sync service over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/mindnote/internal/api"
	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/dmitrijs2005/mindnote/internal/models"
	srvmodels "github.com/dmitrijs2005/mindnote/internal/server/models"
	"github.com/dmitrijs2005/mindnote/internal/server/services"
	"google.golang.org/grpc"
)

type userSvc interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (*srvmodels.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifierCandidate []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type workspaceSvc interface {
	Sync(ctx context.Context, userID string, pending []models.Workspace, sinceVersion int64) (*services.SyncResult, error)
	Compare(ctx context.Context, userID string, local []models.Workspace) (*services.Comparison, error)
	Resolve(ctx context.Context, userID string, local []models.Workspace, decisions map[string]string) ([]models.Workspace, int64, error)
	List(ctx context.Context, userID string) ([]models.Workspace, error)
}

type mediaSvc interface {
	PresignUpload(ctx context.Context, userID, workspaceID, itemID string) (string, error)
	MarkUploaded(ctx context.Context, userID, itemID string) error
	PresignDownload(ctx context.Context, userID, itemID string) (string, error)
}

type GRPCServer struct {
	api.UnimplementedMindNoteServer
	address    string
	users      userSvc
	workspaces workspaceSvc
	media      mediaSvc
	logger     logging.Logger
	jwtSecret  []byte
}

func NewGRPCServer(a string, l logging.Logger, us *services.UserService, ws *services.WorkspaceService, ms *services.MediaService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		users:      us,
		workspaces: ws,
		media:      ms,
		jwtSecret:  []byte(secretKey),
	}
}

// newServer builds the grpc.Server with interceptors and the service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	api.RegisterMindNoteServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
