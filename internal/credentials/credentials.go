// ABOUTME: Application identity and cloud resolution for gateway and token-service calls
// ABOUTME: Derives issuers, OpenID metadata, OAuth endpoints and scopes for public or sovereign clouds

package credentials

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Environment variables consulted when settings leave a value unset.
const (
	EnvChannelService = "ChannelService"
	EnvOpenIDMetadata = "BotOpenIdMetadata"
)

// GovernmentChannelService selects the US government cloud.
const GovernmentChannelService = "https://botframework.azure.us"

// Public cloud endpoints.
const (
	OAuthEndpoint             = "https://api.botframework.com"
	ChannelTokenIssuer        = "https://api.botframework.com"
	ChannelOpenIDMetadataURL  = "https://login.botframework.com/v1/.well-known/openidconfiguration"
	EmulatorOpenIDMetadataURL = "https://login.microsoftonline.com/botframework.com/v2.0/.well-known/openid-configuration"
	LoginEndpoint             = "https://login.microsoftonline.com"
	DefaultChannelAuthTenant  = "botframework.com"
	ToChannelOAuthScope       = "https://api.botframework.com/.default"
)

// Government cloud endpoints.
const (
	GovOAuthEndpoint             = "https://api.botframework.azure.us"
	GovChannelTokenIssuer        = "https://api.botframework.us"
	GovChannelOpenIDMetadataURL  = "https://login.botframework.azure.us/v1/.well-known/openidconfiguration"
	GovEmulatorOpenIDMetadataURL = "https://login.microsoftonline.us/cab8a31a-1906-4287-a0d8-4eef66b95f6e/v2.0/.well-known/openid-configuration"
	GovLoginEndpoint             = "https://login.microsoftonline.us"
	GovDefaultChannelAuthTenant  = "MicrosoftServices.onmicrosoft.com"
	GovToChannelOAuthScope       = "https://api.botframework.us/.default"
)

// Settings configure the application identity. Zero values fall back to the
// public cloud and to process environment where noted.
type Settings struct {
	AppID       string
	AppPassword string
	TenantID    string

	// ChannelService selects the cloud; empty reads $ChannelService.
	ChannelService string
	// OAuthEndpoint overrides the token-service base URL.
	OAuthEndpoint string
	// OpenIDMetadata overrides the channel OpenID metadata URL; empty reads $BotOpenIdMetadata.
	OpenIDMetadata string
}

// Resolver exposes the resolved identity and cloud. It is read-only after
// construction and safe for concurrent use.
type Resolver struct {
	settings Settings
}

// NewResolver resolves settings, filling unset cloud selectors from the environment.
func NewResolver(settings Settings) *Resolver {
	if settings.ChannelService == "" {
		settings.ChannelService = os.Getenv(EnvChannelService)
	}
	if settings.OpenIDMetadata == "" {
		settings.OpenIDMetadata = os.Getenv(EnvOpenIDMetadata)
	}
	settings.AppID = strings.TrimSpace(settings.AppID)
	settings.TenantID = strings.TrimSpace(settings.TenantID)
	return &Resolver{settings: settings}
}

// AppID returns the bot's application id, or "" when none is configured.
func (r *Resolver) AppID() string { return r.settings.AppID }

// TenantID returns the configured tenant, or "" for the default channel tenant.
func (r *Resolver) TenantID() string { return r.settings.TenantID }

// ChannelService returns the resolved channel-service selector.
func (r *Resolver) ChannelService() string { return r.settings.ChannelService }

// IsAuthenticationDisabled reports whether no application identity is configured.
func (r *Resolver) IsAuthenticationDisabled() bool {
	return r.settings.AppID == ""
}

// IsGovernment reports whether the sovereign (US government) cloud is selected.
func (r *Resolver) IsGovernment() bool {
	return strings.EqualFold(strings.TrimRight(r.settings.ChannelService, "/"), GovernmentChannelService)
}

// OAuthEndpoint returns the token-service base URL for this cloud.
func (r *Resolver) OAuthEndpoint() string {
	if r.settings.OAuthEndpoint != "" {
		return r.settings.OAuthEndpoint
	}
	if r.IsGovernment() {
		return GovOAuthEndpoint
	}
	return OAuthEndpoint
}

// ChannelTokenIssuer returns the issuer expected on channel-signed tokens.
func (r *Resolver) ChannelTokenIssuer() string {
	if r.IsGovernment() {
		return GovChannelTokenIssuer
	}
	return ChannelTokenIssuer
}

// ChannelOpenIDMetadataURL returns where channel signing keys are published.
func (r *Resolver) ChannelOpenIDMetadataURL() string {
	if r.settings.OpenIDMetadata != "" {
		return r.settings.OpenIDMetadata
	}
	if r.IsGovernment() {
		return GovChannelOpenIDMetadataURL
	}
	return ChannelOpenIDMetadataURL
}

// EmulatorOpenIDMetadataURL returns where emulator signing keys are published.
func (r *Resolver) EmulatorOpenIDMetadataURL() string {
	if r.IsGovernment() {
		return GovEmulatorOpenIDMetadataURL
	}
	return EmulatorOpenIDMetadataURL
}

// OAuthScope returns the scope requested for bot-to-channel tokens.
func (r *Resolver) OAuthScope() string {
	if r.IsGovernment() {
		return GovToChannelOAuthScope
	}
	return ToChannelOAuthScope
}

// LoginEndpoint returns the identity provider host for this cloud.
func (r *Resolver) LoginEndpoint() string {
	if r.IsGovernment() {
		return GovLoginEndpoint
	}
	return LoginEndpoint
}

// TokenURL returns the login endpoint used to mint bot-to-channel tokens.
func (r *Resolver) TokenURL() string {
	tenant := DefaultChannelAuthTenant
	if r.IsGovernment() {
		tenant = GovDefaultChannelAuthTenant
	}
	if r.settings.TenantID != "" {
		tenant = r.settings.TenantID
	}
	return r.LoginEndpoint() + "/" + tenant + "/oauth2/v2.0/token"
}

// HTTPClient returns a client for outbound gateway and token-service calls.
// With an identity configured every request carries a client-credentials
// bearer token; otherwise requests are sent anonymously.
func (r *Resolver) HTTPClient(ctx context.Context) *http.Client {
	if r.IsAuthenticationDisabled() {
		return &http.Client{Timeout: 30 * time.Second}
	}
	cfg := &clientcredentials.Config{
		ClientID:     r.settings.AppID,
		ClientSecret: r.settings.AppPassword,
		TokenURL:     r.TokenURL(),
		Scopes:       []string{r.OAuthScope()},
	}
	client := cfg.Client(ctx)
	client.Timeout = 30 * time.Second
	return client
}
