package auth

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelligencePlatform/internal/testutil"
)

const testSecret = "test-secret"

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	i, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	return i
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenIssuer(testSecret, 0)
	assert.Error(t, err)
}

func TestIssueAndParse_RoundTrip(t *testing.T) {
	i := newTestIssuer(t)

	tok, issued, err := i.Issue("bob", "analyst")
	require.NoError(t, err)
	assert.True(t, issued.Authenticated)
	assert.NotEmpty(t, issued.TokenID)

	s, err := i.Parse(tok)
	require.NoError(t, err)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "bob", s.Username)
	assert.Equal(t, "analyst", s.Role)
	assert.Equal(t, issued.TokenID, s.TokenID)
	assert.WithinDuration(t, issued.ExpiresAt, s.ExpiresAt, time.Second)
}

func TestIssue_DistinctTokenIDs(t *testing.T) {
	i := newTestIssuer(t)
	_, a, err := i.Issue("bob", "user")
	require.NoError(t, err)
	_, b, err := i.Issue("bob", "user")
	require.NoError(t, err)
	assert.NotEqual(t, a.TokenID, b.TokenID)
}

func TestParse_Rejects(t *testing.T) {
	i := newTestIssuer(t)

	t.Run("wrong secret", func(t *testing.T) {
		tok := testutil.GenerateJWTHS256(t, "other", "bob", "user", time.Hour)
		_, err := i.Parse(tok)
		assert.Error(t, err)
	})
	t.Run("missing expiry", func(t *testing.T) {
		tok := testutil.GenerateJWTHS256(t, testSecret, "bob", "user", 0)
		_, err := i.Parse(tok)
		assert.Error(t, err)
	})
	t.Run("expired", func(t *testing.T) {
		tok := testutil.GenerateJWTHS256(t, testSecret, "bob", "user", -time.Minute)
		_, err := i.Parse(tok)
		assert.Error(t, err)
	})
	t.Run("empty claims", func(t *testing.T) {
		tok := testutil.GenerateJWTHS256(t, testSecret, "", "", time.Hour)
		_, err := i.Parse(tok)
		assert.Error(t, err)
	})
	t.Run("unexpected signing method", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
			"username": "bob", "role": "user", "jti": "x", "exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = i.Parse(tok)
		assert.Error(t, err)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := i.Parse("not-a-token")
		assert.Error(t, err)
	})
}

func TestRevoke(t *testing.T) {
	i := newTestIssuer(t)
	tok, s, err := i.Issue("bob", "user")
	require.NoError(t, err)

	i.Revoke(s)
	_, err = i.Parse(tok)
	assert.ErrorIs(t, err, errRevoked)

	// Other tokens for the same user stay valid.
	other, _, err := i.Issue("bob", "user")
	require.NoError(t, err)
	_, err = i.Parse(other)
	assert.NoError(t, err)

	// Revoking an anonymous session is a no-op.
	i.Revoke(Anonymous())
}

func TestRevoke_PurgesExpiredEntries(t *testing.T) {
	i := newTestIssuer(t)
	now := time.Now()
	i.now = func() time.Time { return now }

	_, s, err := i.Issue("bob", "user")
	require.NoError(t, err)
	i.Revoke(s)
	require.Len(t, i.revoked, 1)

	i.now = func() time.Time { return now.Add(2 * time.Hour) }
	i.Revoke(Session{TokenID: "later", ExpiresAt: now.Add(3 * time.Hour)})
	assert.Len(t, i.revoked, 1)
	_, stillThere := i.revoked["later"]
	assert.True(t, stillThere)
}

func TestParseFromMD(t *testing.T) {
	i := newTestIssuer(t)
	tok, _, err := i.Issue("alice", "user")
	require.NoError(t, err)

	s, err := ParseFromMD(testutil.CtxWithBearer(context.Background(), tok), i)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username)

	_, err = ParseFromMD(context.Background(), i)
	assert.ErrorIs(t, err, errMissingToken)
}

func TestSessionContext(t *testing.T) {
	assert.Equal(t, Anonymous(), SessionFrom(context.Background()))

	want := Session{Authenticated: true, Username: "bob", Role: "admin"}
	got := SessionFrom(WithSession(context.Background(), want))
	assert.Equal(t, want, got)
}
