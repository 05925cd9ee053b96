package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Username: "alice"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", id.Username)

	_, ok = FromContext(WithIdentity(context.Background(), Identity{}))
	assert.False(t, ok, "anonymous identity is not an identity")
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"abc":            "abc",
		"Bearer abc":     "abc",
		"bearer abc":     "abc",
		"BEARER   abc  ": "abc",
		"  abc ":         "abc",
		"Bearer":         "",
		"Bearer ":        "",
		"bearer":         "",
		"  BEARER  ":     "",
		"Bearerabc":      "Bearerabc",
		"":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, BearerToken(in), in)
	}
}

func TestLoadDevToken(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "dev-user-token")
	require.NoError(t, os.WriteFile(good, []byte("  TOKEN\n"), 0o600))
	token, err := LoadDevToken(good)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN", token)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = LoadDevToken(empty)
	assert.Error(t, err)

	_, err = LoadDevToken(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDev(t *testing.T) {
	_, err := NewDev("", "alice")
	assert.Error(t, err)
	_, err = NewDev("tok", "")
	assert.Error(t, err)

	dev, err := NewDev("tok", "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok", dev.Token())

	id, err := dev.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, Identity{Username: "alice"}, id)

	_, err = dev.Authenticate(context.Background(), "Bearer tok")
	assert.NoError(t, err)

	_, err = dev.Authenticate(context.Background(), "other")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = dev.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = dev.Authenticate(context.Background(), "Bearer ")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
