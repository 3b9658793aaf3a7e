package hasher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) (*BcryptHasher, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	h, err := New(bcrypt.MinCost, zap.New(core))
	require.NoError(t, err)
	return h, logs
}

func TestNew_RejectsCostOutOfRange(t *testing.T) {
	_, err := New(bcrypt.MinCost-1, nil)
	assert.Error(t, err)
	_, err = New(bcrypt.MaxCost+1, nil)
	assert.Error(t, err)

	h, err := New(bcrypt.MinCost, nil)
	require.NoError(t, err)
	assert.NotNil(t, h.logger)
}

func TestHash_SaltedAndVerifiable(t *testing.T) {
	h, _ := newTestHasher(t)

	first, err := h.Hash("SecurePass123!")
	require.NoError(t, err)
	second, err := h.Hash("SecurePass123!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "each hash must carry its own salt")
	assert.NotContains(t, first, "SecurePass123!")
	assert.True(t, h.Verify("SecurePass123!", first))
	assert.True(t, h.Verify("SecurePass123!", second))

	cost, err := bcrypt.Cost([]byte(first))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestHash_RejectsOverlongPassword(t *testing.T) {
	h, _ := newTestHasher(t)
	_, err := h.Hash(strings.Repeat("a", 73))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	h, logs := newTestHasher(t)
	good, err := h.Hash("password")
	require.NoError(t, err)

	tests := []struct {
		name         string
		plaintext    string
		hash         string
		expected     bool
		expectLogged bool
	}{
		{name: "match", plaintext: "password", hash: good, expected: true},
		{name: "wrong password", plaintext: "wrong", hash: good, expected: false},
		{name: "empty hash", plaintext: "password", hash: "", expected: false, expectLogged: true},
		{name: "not a bcrypt hash", plaintext: "password", hash: "plaintext-password", expected: false, expectLogged: true},
		{name: "truncated hash", plaintext: "password", hash: good[:20], expected: false, expectLogged: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := logs.Len()
			assert.Equal(t, tt.expected, h.Verify(tt.plaintext, tt.hash))
			assert.Equal(t, tt.expectLogged, logs.Len() > before)
		})
	}
}
