package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the bearer token for an outbound request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Static is a TokenSource backed by a token passed on the command line or
// through the environment.
type Static string

// Token implements TokenSource.
func (s Static) Token(_ context.Context) (string, error) {
	return usable(string(s))
}

// Chain tries each source in turn and returns the first usable token.
type Chain []TokenSource

// Token implements TokenSource.
func (c Chain) Token(ctx context.Context) (string, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		tok, err := src.Token(ctx)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, ErrNotAuthenticated) {
			return "", err
		}
	}
	return "", ErrNotAuthenticated
}

// usable rejects empty tokens and JWTs whose exp claim has passed. The
// signature is not checked here; the backend does that.
func usable(tok string) (string, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", ErrNotAuthenticated
	}
	if strings.Count(tok, ".") != 2 {
		return tok, nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		// opaque token that happens to contain two dots
		return tok, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return tok, nil
	}
	if time.Now().After(exp.Time) {
		return "", ErrNotAuthenticated
	}
	return tok, nil
}
