// Package tokenstore persists the bearer token, the only durable client state.
package tokenstore

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Store holds at most one bearer token. Load returns "" with a nil error when
// no token is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Watcher is implemented by stores that can signal changes made elsewhere
// (another process, another store handle). The channel is closed when ctx ends.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// TokenExpiry reads the exp claim of a JWT without verifying it.
// Opaque tokens report ok=false.
func TokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
