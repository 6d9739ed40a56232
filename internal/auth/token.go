// ABOUTME: JWT verification for channel- and emulator-signed bearer tokens
// ABOUTME: Uses RS256 keys from an OpenID key provider and cloud-specific issuers

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// clockSkew tolerated on exp/nbf/iat.
const clockSkew = 5 * time.Minute

// allowedMethods are the signing algorithms channels use.
var allowedMethods = []string{"RS256", "RS384", "RS512"}

// KeyProvider resolves a verification key by key id.
type KeyProvider interface {
	Key(ctx context.Context, kid string) (any, error)
}

// verifyToken checks signature, algorithm and time claims, plus the issuer
// and audience when given, and returns the token claims.
func verifyToken(ctx context.Context, keys KeyProvider, tokenString string, issuers []string, audience string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(allowedMethods),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: kid header", ErrMissingClaim)
		}
		return keys.Key(ctx, kid)
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	iss, _ := claims["iss"].(string)
	if len(issuers) > 0 && !containsString(issuers, iss) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, iss)
	}
	return claims, nil
}

// emulatorAppID returns the calling app id from an emulator token: appid for
// v1 tokens, azp for v2 tokens.
func emulatorAppID(claims jwt.MapClaims) (string, error) {
	ver, _ := claims["ver"].(string)
	switch ver {
	case "", "1.0":
		appID, _ := claims["appid"].(string)
		if appID == "" {
			return "", fmt.Errorf("%w: appid", ErrMissingClaim)
		}
		return appID, nil
	case "2.0":
		azp, _ := claims["azp"].(string)
		if azp == "" {
			return "", fmt.Errorf("%w: azp", ErrMissingClaim)
		}
		return azp, nil
	default:
		return "", fmt.Errorf("%w: unknown version %q", ErrInvalidToken, ver)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
