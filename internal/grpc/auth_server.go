package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"intelligencePlatform/internal/auth"
	"intelligencePlatform/internal/service"
	"intelligencePlatform/models"
)

const authServiceName = "intelligence.auth.v1.AuthService"

const (
	methodRegister       = "/" + authServiceName + "/Register"
	methodLogin          = "/" + authServiceName + "/Login"
	methodLogout         = "/" + authServiceName + "/Logout"
	methodExists         = "/" + authServiceName + "/Exists"
	methodMe             = "/" + authServiceName + "/Me"
	methodChangePassword = "/" + authServiceName + "/ChangePassword"
)

// AuthServiceServer is the server API for the account service.
type AuthServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Exists(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Me(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: authServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(methodRegister, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AuthServiceServer).Register(ctx, req)
		})},
		{MethodName: "Login", Handler: unaryHandler(methodLogin, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AuthServiceServer).Login(ctx, req)
		})},
		{MethodName: "Logout", Handler: unaryHandler(methodLogout, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AuthServiceServer).Logout(ctx, req)
		})},
		{MethodName: "Exists", Handler: unaryHandler(methodExists, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AuthServiceServer).Exists(ctx, req)
		})},
		{MethodName: "Me", Handler: unaryHandler(methodMe, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AuthServiceServer).Me(ctx, req)
		})},
		{MethodName: "ChangePassword", Handler: unaryHandler(methodChangePassword, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AuthServiceServer).ChangePassword(ctx, req)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "intelligence/auth/v1/auth.proto",
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&authServiceDesc, srv)
}

// AuthServer implements AuthServiceServer on top of the account service.
type AuthServer struct {
	Svc    *service.AuthService
	Users  auth.UserLookup
	Issuer *auth.TokenIssuer
}

// Register creates an account. Only an admin may create another admin.
func (s *AuthServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	role := str(req, "role")
	if role == models.RoleAdmin {
		if _, err := auth.RequireAdmin(ctx, s.Users); err != nil {
			return nil, err
		}
	}
	return resultResponse(s.Svc.Register(ctx, str(req, "username"), str(req, "password"), role), nil)
}

// Login checks credentials and, on success, returns a session token and the user's role.
func (s *AuthServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, sess := s.Svc.Login(ctx, str(req, "username"), str(req, "password"))
	if !res.Success {
		return resultResponse(res, nil)
	}
	token, sess, err := s.Issuer.Issue(sess.Username, sess.Role)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "issue token: %v", err)
	}
	return resultResponse(res, map[string]any{
		"token":      token,
		"role":       sess.Role,
		"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout revokes the caller's token. It succeeds for anonymous callers too.
func (s *AuthServer) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sess := auth.SessionFrom(ctx)
	s.Issuer.Revoke(sess)
	res, _ := s.Svc.Logout(sess)
	return resultResponse(res, nil)
}

func (s *AuthServer) Exists(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := str(req, "username")
	if username == "" {
		return nil, status.Error(codes.InvalidArgument, "username is required")
	}
	return newResponse(map[string]any{"exists": s.Svc.Exists(ctx, username)})
}

// Me returns the caller's stored profile.
func (s *AuthServer) Me(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sess, err := auth.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.Users.GetByUsername(ctx, sess.Username)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get user: %v", err)
	}
	if u == nil {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	return newResponse(map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"role":     u.Role,
	})
}

// ChangePassword replaces the caller's password after re-checking the current one.
func (s *AuthServer) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := auth.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	return resultResponse(s.Svc.ChangeOwnPassword(ctx, sess.Username, str(req, "current_password"), str(req, "new_password")), nil)
}
