package grpcserver

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"intelligencePlatform/internal/auth"
	"intelligencePlatform/internal/service"
)

const adminServiceName = "intelligence.auth.v1.AdminService"

const (
	methodListUsers         = "/" + adminServiceName + "/ListUsers"
	methodUpdateRole        = "/" + adminServiceName + "/UpdateRole"
	methodDeleteUser        = "/" + adminServiceName + "/DeleteUser"
	methodMigrateLegacyFile = "/" + adminServiceName + "/MigrateLegacyFile"
)

// AdminServiceServer is the server API for user administration.
type AdminServiceServer interface {
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MigrateLegacyFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListUsers", Handler: unaryHandler(methodListUsers, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AdminServiceServer).ListUsers(ctx, req)
		})},
		{MethodName: "UpdateRole", Handler: unaryHandler(methodUpdateRole, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AdminServiceServer).UpdateRole(ctx, req)
		})},
		{MethodName: "DeleteUser", Handler: unaryHandler(methodDeleteUser, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AdminServiceServer).DeleteUser(ctx, req)
		})},
		{MethodName: "MigrateLegacyFile", Handler: unaryHandler(methodMigrateLegacyFile, func(srv any, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AdminServiceServer).MigrateLegacyFile(ctx, req)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "intelligence/auth/v1/admin.proto",
}

// RegisterAdminServiceServer registers srv on s.
func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

// AdminServer implements AdminServiceServer. Every method requires an admin session.
type AdminServer struct {
	Svc   *service.AuthService
	Users auth.UserLookup
	// LegacyFile is migrated when a request does not name a path.
	LegacyFile string
}

func (s *AdminServer) ListUsers(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireAdmin(ctx, s.Users); err != nil {
		return nil, err
	}
	users, err := s.Svc.ListUsers(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list users: %v", err)
	}
	out := make([]any, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]any{
			"id":       u.ID,
			"username": u.Username,
			"role":     u.Role,
		})
	}
	return newResponse(map[string]any{"users": out})
}

func (s *AdminServer) UpdateRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireAdmin(ctx, s.Users); err != nil {
		return nil, err
	}
	return resultResponse(s.Svc.ChangeRole(ctx, str(req, "username"), str(req, "role")), nil)
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *AdminServer) DeleteUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := auth.RequireAdmin(ctx, s.Users)
	if err != nil {
		return nil, err
	}
	username := str(req, "username")
	if username == "" {
		return nil, status.Error(codes.InvalidArgument, "username is required")
	}
	if username == sess.Username {
		return nil, status.Error(codes.FailedPrecondition, "cannot delete the calling account")
	}
	return resultResponse(s.Svc.DeleteUser(ctx, username), nil)
}

// MigrateLegacyFile imports the flat users file named by "path", or LegacyFile.
func (s *AdminServer) MigrateLegacyFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireAdmin(ctx, s.Users); err != nil {
		return nil, err
	}
	path := str(req, "path")
	if path == "" {
		path = s.LegacyFile
	}
	n, err := s.Svc.MigrateLegacyFile(ctx, path)
	if err != nil {
		return resultResponse(service.Result{Message: fmt.Sprintf("Migration error: %v", err)}, map[string]any{"migrated": n})
	}
	return resultResponse(service.Result{Success: true, Message: fmt.Sprintf("Migrated %d users.", n)}, map[string]any{"migrated": n})
}
