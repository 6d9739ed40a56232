// ABOUTME: Authenticated identity produced by the request authenticator
// ABOUTME: Provides WithIdentity/FromContext for propagating the verdict via context

package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verdict of a successful authentication.
type Identity struct {
	Authenticated bool
	Anonymous     bool
	// AppID is the calling application (the channel or emulator app), when known.
	AppID  string
	Issuer string
	Claims jwt.MapClaims
}

// AnonymousIdentity is returned when authentication is disabled.
func AnonymousIdentity() *Identity {
	return &Identity{Authenticated: true, Anonymous: true}
}

// Claim returns a string claim or "".
func (i *Identity) Claim(name string) string {
	if i == nil || i.Claims == nil {
		return ""
	}
	s, _ := i.Claims[name].(string)
	return s
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
