package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/mindnote/internal/api"
	"github.com/dmitrijs2005/mindnote/internal/common"
	"github.com/dmitrijs2005/mindnote/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.Aborted, common.ErrVersionConflict.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) userID(ctx context.Context) (string, error) {
	id, ok := userIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthorized")
	}
	return id, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {

	s.logger.Info(ctx, "Registration request", "username", req.Username)

	result, err := s.users.Register(ctx, req.Username, req.Salt, req.Verifier)
	if err != nil {
		s.logger.Error(ctx, "registration failed", "error", err)
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "username", req.Username, "user", result.ID)
	return &api.RegisterResponse{UserID: result.ID}, nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *api.GetSaltRequest) (*api.GetSaltResponse, error) {
	result, err := s.users.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.GetSaltResponse{Salt: result}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	tokens, err := s.users.Login(ctx, req.Username, req.VerifierCandidate)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.LoginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *api.RefreshTokenRequest) (*api.RefreshTokenResponse, error) {
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.RefreshTokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.LogoutRequest) (*api.LogoutResponse, error) {
	if err := s.users.Logout(ctx, req.RefreshToken); err != nil {
		return nil, toStatus(err)
	}
	return &api.LogoutResponse{}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func conflictDocs(in []services.Conflict) ([]*api.ConflictDoc, error) {
	out := make([]*api.ConflictDoc, 0, len(in))
	for _, c := range in {
		local, err := api.FromWorkspace(c.Local)
		if err != nil {
			return nil, err
		}
		server, err := api.FromWorkspace(c.Server)
		if err != nil {
			return nil, err
		}
		out = append(out, &api.ConflictDoc{Local: local, Server: server})
	}
	return out, nil
}

func (s *GRPCServer) Sync(ctx context.Context, req *api.SyncRequest) (*api.SyncResponse, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := api.ToWorkspaces(req.Workspaces)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.workspaces.Sync(ctx, userID, pending, req.SinceVersion)
	if err != nil {
		s.logger.Error(ctx, "sync failed", "user", userID, "error", err)
		return nil, toStatus(err)
	}

	resp := &api.SyncResponse{MaxVersion: res.MaxVersion}
	if resp.Processed, err = api.FromWorkspaces(res.Processed); err != nil {
		return nil, toStatus(err)
	}
	if resp.Updated, err = api.FromWorkspaces(res.Updated); err != nil {
		return nil, toStatus(err)
	}
	if resp.Conflicts, err = conflictDocs(res.Conflicts); err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *GRPCServer) Compare(ctx context.Context, req *api.CompareRequest) (*api.CompareResponse, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	local, err := api.ToWorkspaces(req.Workspaces)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	cmp, err := s.workspaces.Compare(ctx, userID, local)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &api.CompareResponse{}
	if resp.New, err = api.FromWorkspaces(cmp.New); err != nil {
		return nil, toStatus(err)
	}
	if resp.ServerOnly, err = api.FromWorkspaces(cmp.ServerOnly); err != nil {
		return nil, toStatus(err)
	}
	if resp.Conflicts, err = conflictDocs(cmp.Conflicts); err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *GRPCServer) Resolve(ctx context.Context, req *api.ResolveRequest) (*api.ResolveResponse, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	local, err := api.ToWorkspaces(req.Workspaces)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	for id, d := range req.Decisions {
		if d != services.DecisionLocal && d != services.DecisionServer {
			return nil, status.Errorf(codes.InvalidArgument, "bad decision %q for %s", d, id)
		}
	}

	list, version, err := s.workspaces.Resolve(ctx, userID, local, req.Decisions)
	if err != nil {
		return nil, toStatus(err)
	}
	docs, err := api.FromWorkspaces(list)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.ResolveResponse{Workspaces: docs, MaxVersion: version}, nil
}

func (s *GRPCServer) ListWorkspaces(ctx context.Context, req *api.ListWorkspacesRequest) (*api.ListWorkspacesResponse, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.workspaces.List(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	docs, err := api.FromWorkspaces(list)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.ListWorkspacesResponse{Workspaces: docs}, nil
}

func (s *GRPCServer) PresignUpload(ctx context.Context, req *api.PresignUploadRequest) (*api.PresignUploadResponse, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.media.PresignUpload(ctx, userID, req.WorkspaceID, req.ItemID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.PresignUploadResponse{URL: url}, nil
}

func (s *GRPCServer) MarkUploaded(ctx context.Context, req *api.MarkUploadedRequest) (*api.MarkUploadedResponse, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.media.MarkUploaded(ctx, userID, req.ItemID); err != nil {
		return nil, toStatus(err)
	}
	return &api.MarkUploadedResponse{}, nil
}

func (s *GRPCServer) PresignDownload(ctx context.Context, req *api.PresignDownloadRequest) (*api.PresignDownloadResponse, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.media.PresignDownload(ctx, userID, req.ItemID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.PresignDownloadResponse{URL: url}, nil
}
