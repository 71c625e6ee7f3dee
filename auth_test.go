package main

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	jwtSecret = []byte(strings.Repeat("k", 64))
	jwtTTL = 24 * time.Hour
	os.Exit(m.Run())
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := hashPassword("password123")
	require.NoError(t, err)
	require.NotEqual(t, "password123", hash)

	require.True(t, comparePassword(hash, "password123"))
	require.False(t, comparePassword(hash, "password124"))
	require.False(t, comparePassword(hash, ""))
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	h1, err := hashPassword("password123")
	require.NoError(t, err)
	h2, err := hashPassword("password123")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
	require.True(t, comparePassword(h1, "password123"))
	require.True(t, comparePassword(h2, "password123"))
}

func TestComparePassword_MalformedHash(t *testing.T) {
	// attacker-controlled stored values must not panic or match
	require.False(t, comparePassword("", "password123"))
	require.False(t, comparePassword("not-a-bcrypt-hash", "password123"))
}

func TestMintValidate_RoundTrip(t *testing.T) {
	now := time.Now()
	token, err := mintToken("alice", now)
	require.NoError(t, err)

	claims, err := validateToken(token, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, claims.IssuedAt.Add(jwtTTL), claims.ExpiresAt.Time)
}

func TestValidateToken_Expired(t *testing.T) {
	now := time.Now()
	token, err := mintToken("alice", now)
	require.NoError(t, err)

	// still valid just inside the TTL
	_, err = validateToken(token, now.Add(jwtTTL-time.Second))
	require.NoError(t, err)

	// expired exactly at the TTL boundary and beyond
	_, err = validateToken(token, now.Add(jwtTTL))
	require.ErrorIs(t, err, ErrTokenExpired)
	_, err = validateToken(token, now.Add(jwtTTL+time.Hour))
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateToken_ZeroTTL(t *testing.T) {
	old := jwtTTL
	jwtTTL = 0
	defer func() { jwtTTL = old }()

	now := time.Now()
	token, err := mintToken("alice", now)
	require.NoError(t, err)

	_, err = validateToken(token, now.Add(time.Millisecond))
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateToken_WrongKey(t *testing.T) {
	token, err := mintToken("alice", time.Now())
	require.NoError(t, err)

	old := jwtSecret
	jwtSecret = []byte(strings.Repeat("x", 64))
	defer func() { jwtSecret = old }()

	_, err = validateToken(token, time.Now())
	require.ErrorIs(t, err, ErrTokenSignature)
}

func TestValidateToken_Tampered(t *testing.T) {
	now := time.Now()
	token, err := mintToken("alice", now)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	for i, part := range parts {
		mutated := flipChar(part)
		tampered := strings.Join(replaceAt(parts, i, mutated), ".")
		_, err := validateToken(tampered, now)
		require.Error(t, err, "tampering with part %d must not validate", i)
		require.True(t, errors.Is(err, ErrTokenSignature) || errors.Is(err, ErrTokenMalformed),
			"got %v for part %d", err, i)
	}
}

func TestValidateToken_Malformed(t *testing.T) {
	for _, tc := range []string{"", "garbage", "a.b", "not.a.jwt", "...."} {
		_, err := validateToken(tc, time.Now())
		require.ErrorIs(t, err, ErrTokenMalformed, "input %q", tc)
	}
}

func flipChar(s string) string {
	b := []byte(s)
	if b[0] == 'A' {
		b[0] = 'B'
	} else {
		b[0] = 'A'
	}
	return string(b)
}

func replaceAt(parts []string, i int, v string) []string {
	out := make([]string, len(parts))
	copy(out, parts)
	out[i] = v
	return out
}
