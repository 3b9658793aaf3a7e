package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"intelligencePlatform/internal/testutil"
	"intelligencePlatform/models"
	"intelligencePlatform/repository"
)

func TestRequireSession(t *testing.T) {
	_, err := RequireSession(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := WithSession(context.Background(), Session{Authenticated: true, Username: "bob", Role: "user"})
	s, err := RequireSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", s.Username)
}

func TestRequireAdmin_WithDBRoleCheck(t *testing.T) {
	d := testutil.OpenInMemoryDB(t, "authadmin")
	users := repository.NewUserRepository(d, zap.NewNop())
	ctx := context.Background()
	if _, err := users.Create(ctx, "alice", "h", models.RoleUser); err != nil {
		t.Fatalf("create alice: %v", err)
	}

	// Plain user session is rejected before touching the store.
	userCtx := WithSession(ctx, Session{Authenticated: true, Username: "alice", Role: models.RoleUser})
	_, err := RequireAdmin(userCtx, users)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	// Session claims admin but the stored role says otherwise.
	spoofed := WithSession(ctx, Session{Authenticated: true, Username: "alice", Role: models.RoleAdmin})
	_, err = RequireAdmin(spoofed, users)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	require.NoError(t, users.UpdateRole(ctx, "alice", models.RoleAdmin))
	_, err = RequireAdmin(spoofed, users)
	assert.NoError(t, err)

	_, err = RequireAdmin(ctx, users)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUnaryAuthInterceptor(t *testing.T) {
	issuer := newTestIssuer(t)
	interceptor := NewUnaryAuthInterceptor(issuer, "/public")

	call := func(ctx context.Context, method string) (Session, error) {
		var seen Session
		_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, func(ctx context.Context, req any) (any, error) {
			seen = SessionFrom(ctx)
			return nil, nil
		})
		return seen, err
	}

	tok, _, err := issuer.Issue("bob", "analyst")
	require.NoError(t, err)
	withToken := testutil.CtxWithBearer(context.Background(), tok)
	badToken := testutil.CtxWithBearer(context.Background(), "garbage")

	// Public method, no token: anonymous session.
	s, err := call(context.Background(), "/public")
	require.NoError(t, err)
	assert.False(t, s.Authenticated)

	// Public method, bad token: still anonymous, not rejected.
	s, err = call(badToken, "/public")
	require.NoError(t, err)
	assert.False(t, s.Authenticated)

	// Public method with a valid token sees the session.
	s, err = call(withToken, "/public")
	require.NoError(t, err)
	assert.Equal(t, "bob", s.Username)

	// Protected method needs a token.
	_, err = call(context.Background(), "/svc/Op")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = call(badToken, "/svc/Op")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	s, err = call(withToken, "/svc/Op")
	require.NoError(t, err)
	assert.Equal(t, "analyst", s.Role)

	// Wrong scheme is rejected.
	basic := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic "+tok))
	_, err = call(basic, "/svc/Op")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
