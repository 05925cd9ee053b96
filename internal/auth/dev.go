package auth

import (
	"context"
	"crypto/subtle"
	"errors"
)

// Dev accepts a single token read from a local file, for running the
// service without a session service.
type Dev struct {
	token string
	user  Identity
}

// NewDev creates a dev authenticator for token acting as username.
func NewDev(token, username string) (*Dev, error) {
	if token == "" {
		return nil, errors.New("dev token is required")
	}
	if username == "" {
		return nil, errors.New("dev user is required")
	}
	return &Dev{token: token, user: Identity{Username: username}}, nil
}

// Token is the credential injected into requests that carry none.
func (d *Dev) Token() string {
	return d.token
}

func (d *Dev) Authenticate(_ context.Context, credential string) (Identity, error) {
	token := BearerToken(credential)
	if token == "" {
		return Identity{}, ErrMissingCredentials
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(d.token)) != 1 {
		return Identity{}, ErrInvalidCredentials
	}
	return d.user, nil
}
