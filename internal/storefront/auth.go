package storefront

import (
	"context"
	"errors"
	"strings"
)

// ErrNoToken is returned by a TokenProvider that has no credential to offer.
var ErrNoToken = errors.New("storefront: no auth token")

// TokenProvider supplies the customer bearer token for authenticated calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

type tokenKey struct{}

// WithToken stores a per-request customer token on ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token stored by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// ContextToken reads the token the gateway's auth middleware put on the
// request context.
type ContextToken struct{}

func (ContextToken) Token(ctx context.Context) (string, error) {
	if token, ok := TokenFromContext(ctx); ok {
		return token, nil
	}
	return "", ErrNoToken
}
