// ABOUTME: Request authenticator producing an identity verdict for each inbound activity
// ABOUTME: Routes bearer tokens to channel or emulator validation based on the resolved cloud

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/credentials"
)

// ErrAuthentication is matched by every authentication failure.
var ErrAuthentication = errors.New("unauthorized")

// AuthenticationError describes why a request was rejected.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unauthorized: %s: %v", e.Reason, e.Err)
	}
	return "unauthorized: " + e.Reason
}

// Unwrap returns the underlying cause.
func (e *AuthenticationError) Unwrap() error { return e.Err }

// Is makes every AuthenticationError match ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

func rejected(reason string, err error) error {
	return &AuthenticationError{Reason: reason, Err: err}
}

// Authenticator turns an Authorization header and activity into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, authHeader string, act *activity.Activity) (*Identity, error)
}

// JWTAuthenticator validates channel and emulator JWTs.
type JWTAuthenticator struct {
	creds        *credentials.Resolver
	channelKeys  KeyProvider
	emulatorKeys KeyProvider
	logger       *slog.Logger
}

// NewJWTAuthenticator creates an authenticator that fetches keys from the
// resolver's OpenID metadata endpoints.
func NewJWTAuthenticator(creds *credentials.Resolver, logger *slog.Logger) *JWTAuthenticator {
	return NewJWTAuthenticatorWithKeys(creds,
		NewOpenIDKeyProvider(creds.ChannelOpenIDMetadataURL(), nil),
		NewOpenIDKeyProvider(creds.EmulatorOpenIDMetadataURL(), nil),
		logger,
	)
}

// NewJWTAuthenticatorWithKeys creates an authenticator with explicit key providers.
func NewJWTAuthenticatorWithKeys(creds *credentials.Resolver, channelKeys, emulatorKeys KeyProvider, logger *slog.Logger) *JWTAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTAuthenticator{
		creds:        creds,
		channelKeys:  channelKeys,
		emulatorKeys: emulatorKeys,
		logger:       logger.With("component", "auth"),
	}
}

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, authHeader string, act *activity.Activity) (*Identity, error) {
	disabled := a.creds.IsAuthenticationDisabled()

	if strings.TrimSpace(authHeader) == "" {
		if disabled {
			return AnonymousIdentity(), nil
		}
		return nil, a.fail(act, rejected("missing authorization header", nil))
	}
	if disabled && act != nil && act.ChannelID == activity.ChannelEmulator {
		return AnonymousIdentity(), nil
	}

	token, errMsg := extractBearerToken(authHeader)
	if errMsg != "" {
		return nil, a.fail(act, rejected(errMsg, nil))
	}

	iss := unverifiedIssuer(token)
	if isEmulatorIssuer(iss, a.creds.TenantID()) {
		id, err := a.authenticateEmulator(ctx, token)
		if err != nil {
			return nil, a.fail(act, err)
		}
		return id, nil
	}

	id, err := a.authenticateChannel(ctx, token, act)
	if err != nil {
		return nil, a.fail(act, err)
	}
	return id, nil
}

func (a *JWTAuthenticator) authenticateChannel(ctx context.Context, token string, act *activity.Activity) (*Identity, error) {
	appID := a.creds.AppID()
	if appID == "" {
		return nil, rejected("channel token presented but no app id is configured", nil)
	}

	claims, err := verifyToken(ctx, a.channelKeys, token, []string{a.creds.ChannelTokenIssuer()}, appID)
	if err != nil {
		return nil, rejected("channel token", err)
	}

	if act != nil {
		serviceURL, _ := claims["serviceurl"].(string)
		if serviceURL == "" {
			return nil, rejected("channel token", fmt.Errorf("%w: serviceurl", ErrMissingClaim))
		}
		if serviceURL != act.ServiceURL {
			return nil, rejected("serviceurl claim does not match activity", nil)
		}
	}

	iss, _ := claims["iss"].(string)
	return &Identity{
		Authenticated: true,
		AppID:         appID,
		Issuer:        iss,
		Claims:        claims,
	}, nil
}

func (a *JWTAuthenticator) authenticateEmulator(ctx context.Context, token string) (*Identity, error) {
	claims, err := verifyToken(ctx, a.emulatorKeys, token, nil, "")
	if err != nil {
		return nil, rejected("emulator token", err)
	}

	appID, err := emulatorAppID(claims)
	if err != nil {
		return nil, rejected("emulator token", err)
	}
	if appID != a.creds.AppID() {
		return nil, rejected(fmt.Sprintf("emulator token issued for app %q", appID), nil)
	}

	iss, _ := claims["iss"].(string)
	return &Identity{
		Authenticated: true,
		AppID:         appID,
		Issuer:        iss,
		Claims:        claims,
	}, nil
}

func (a *JWTAuthenticator) fail(act *activity.Activity, err error) error {
	attrs := []any{"error", err}
	if act != nil {
		attrs = append(attrs, "channel_id", act.ChannelID, "service_url", act.ServiceURL)
	}
	a.logger.Warn("auth failure", attrs...)
	return err
}
