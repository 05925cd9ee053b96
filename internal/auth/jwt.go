package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by locally issued tokens.
type Claims struct {
	jwt.RegisteredClaims
	Username  string   `json:"username"`
	LinkedIDs []string `json:"linked_ids,omitempty"`
}

// JWT verifies HMAC signed tokens.
type JWT struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWT creates a verifier. An empty issuer accepts any issuer.
func NewJWT(secret []byte, issuer string) (*JWT, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &JWT{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Issue signs a token for id, for tooling and tests.
func (j *JWT) Issue(id Identity, ttl time.Duration) (string, error) {
	now := j.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:  id.Username,
		LinkedIDs: id.LinkedIDs,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Authenticate accepts the token with or without a Bearer scheme.
func (j *JWT) Authenticate(ctx context.Context, credential string) (Identity, error) {
	token := BearerToken(credential)
	if token == "" {
		return Identity{}, ErrMissingCredentials
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	if username == "" {
		return Identity{}, fmt.Errorf("%w: token has no username", ErrInvalidCredentials)
	}
	return Identity{Username: username, LinkedIDs: claims.LinkedIDs}, nil
}
