package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"intelligencePlatform/models"
)

// UserLookup is the slice of the credential store the admin check needs.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that extracts and validates
// a Bearer session token from incoming metadata and injects the Session into the context.
// Methods listed in public run without a token; they still see the session when a valid
// token is sent, and the anonymous session otherwise.
func NewUnaryAuthInterceptor(issuer *TokenIssuer, public ...string) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(public))
	for _, m := range public {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		s, err := ParseFromMD(ctx, issuer)
		if _, ok := allow[info.FullMethod]; ok {
			if err != nil {
				s = Anonymous()
			}
			return handler(WithSession(ctx, s), req)
		}
		if err != nil {
			if errors.Is(err, errMissingToken) {
				return nil, status.Error(codes.Unauthenticated, "login required")
			}
			return nil, status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		return handler(WithSession(ctx, s), req)
	}
}

// RequireSession ensures an authenticated session is present in context.
func RequireSession(ctx context.Context) (Session, error) {
	s := SessionFrom(ctx)
	if !s.Authenticated {
		return Session{}, status.Error(codes.Unauthenticated, "login required")
	}
	return s, nil
}

// RequireAdmin ensures the caller's session carries the admin role AND that the stored
// user still has role 'admin'. This catches tokens issued before a demotion.
func RequireAdmin(ctx context.Context, users UserLookup) (Session, error) {
	s, err := RequireSession(ctx)
	if err != nil {
		return Session{}, err
	}
	if s.Role != models.RoleAdmin {
		return Session{}, status.Error(codes.PermissionDenied, "only admin can perform this action")
	}
	if users == nil {
		return Session{}, status.Error(codes.Internal, "users repository not configured")
	}
	u, err := users.GetByUsername(ctx, s.Username)
	if err != nil {
		return Session{}, status.Errorf(codes.Internal, "get user: %v", err)
	}
	if u == nil || strings.TrimSpace(u.Role) != models.RoleAdmin {
		return Session{}, status.Error(codes.PermissionDenied, "only admin can perform this action")
	}
	return s, nil
}
