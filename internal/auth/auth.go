// Package auth resolves a request credential into the identity of the caller.
//
// The file service only consumes a username and the caller's linked external
// identity ids. Remote asks a session service, JWT verifies a locally
// signed token and Dev accepts one token read from a file. Cached memoizes
// a slow Authenticator for a bounded time.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrMissingCredentials is returned when a request carries no credential.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidCredentials is returned when the credential is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnavailable is returned when the credential cannot be checked.
	ErrUnavailable = errors.New("authentication service unavailable")
)

// Identity is an authenticated caller.
type Identity struct {
	Username  string   `json:"username"`
	LinkedIDs []string `json:"linked_ids,omitempty"`
}

// Authenticator validates a raw Authorization header value.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (Identity, error)
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity stores the caller in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the caller stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.Username != ""
}

// BearerToken strips an optional "Bearer " scheme from a header value. A
// scheme with no token yields "".
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// LoadDevToken reads a development token from a file.
func LoadDevToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read dev token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("dev token file %s is empty", path)
	}
	return token, nil
}
