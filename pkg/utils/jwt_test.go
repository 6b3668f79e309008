package utils

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret-key-at-least-32-chars-long"
	testIssuer = "cryptolearn-test"
)

func newTestCodec(t *testing.T) (*TokenCodec, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	codec, err := NewTokenCodec(testSecret, testIssuer, logger)
	require.NoError(t, err)
	return codec, &buf
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewTokenCodec_ShortSecret(t *testing.T) {
	codec, err := NewTokenCodec("short", testIssuer, nil)

	assert.Nil(t, codec)
	assert.ErrorIs(t, err, ErrSecretTooShort)
}

// =============================================================================
// Issue / Decode Tests
// =============================================================================

func TestIssueAndDecode(t *testing.T) {
	codec, _ := newTestCodec(t)
	before := time.Now().Add(-time.Second)

	token, err := codec.Issue("alice", 42, 15*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, codec.Validate(token))

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, uint(42), claims.UserID)
	assert.True(t, claims.IssuedAt.After(before))
	assert.WithinDuration(t, claims.IssuedAt.Add(15*time.Minute), claims.ExpiresAt, time.Second)
}

func TestDecode_ExpiredTokenStillDecodes(t *testing.T) {
	codec, _ := newTestCodec(t)

	token, err := codec.Issue("bob", 7, -time.Minute)
	require.NoError(t, err)

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
}

func TestDecode_Rejects(t *testing.T) {
	codec, _ := newTestCodec(t)
	other, err := NewTokenCodec(strings.Repeat("x", 40), testIssuer, nil)
	require.NoError(t, err)

	foreign, err := other.Issue("mallory", 1, time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"malformed":     "not.a.jwt",
		"empty":         "",
		"wrong signing": foreign,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(token)
			assert.ErrorIs(t, err, ErrTokenDecode)
		})
	}
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate_FailureClasses(t *testing.T) {
	codec, _ := newTestCodec(t)

	expired, err := codec.Issue("alice", 1, -time.Minute)
	require.NoError(t, err)

	other, err := NewTokenCodec(strings.Repeat("y", 40), testIssuer, nil)
	require.NoError(t, err)
	wrongKey, err := other.Issue("alice", 1, time.Minute)
	require.NoError(t, err)

	hs256 := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	wrongAlg, err := hs256.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{name: "empty", token: "", reason: "reason=empty"},
		{name: "malformed", token: "abc.def", reason: "reason=malformed"},
		{name: "signature", token: wrongKey, reason: "reason=signature"},
		{name: "expired", token: expired, reason: "reason=expired"},
		{name: "unsupported algorithm", token: wrongAlg, reason: "reason=unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, buf := newTestCodec(t)

			assert.False(t, codec.Validate(tt.token))
			assert.Contains(t, buf.String(), tt.reason)
		})
	}
}

func TestValidate_WrongIssuer(t *testing.T) {
	codec, buf := newTestCodec(t)
	other, err := NewTokenCodec(testSecret, "someone-else", nil)
	require.NoError(t, err)

	token, err := other.Issue("alice", 1, time.Minute)
	require.NoError(t, err)

	assert.False(t, codec.Validate(token))
	assert.Contains(t, buf.String(), "reason=unsupported")
}

func TestOpaqueTokens(t *testing.T) {
	a, b := NewOpaqueToken(), NewOpaqueToken()

	assert.NotEqual(t, a, b)
	assert.Len(t, HashToken(a), 64)
	assert.Equal(t, HashToken(a), HashToken(a))
	assert.NotEqual(t, HashToken(a), HashToken(b))
}
