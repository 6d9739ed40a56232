// ABOUTME: Records returned by the token-exchange service
// ABOUTME: Token responses, per-connection token status, and sign-in resources

package usertoken

// TokenResponse is a user token for one connection.
type TokenResponse struct {
	ChannelID      string `json:"channelId,omitempty"`
	ConnectionName string `json:"connectionName"`
	Token          string `json:"token"`
	Expiration     string `json:"expiration,omitempty"`
}

// TokenStatus reports whether a user holds a token for a connection.
type TokenStatus struct {
	ChannelID                  string `json:"channelId,omitempty"`
	ConnectionName             string `json:"connectionName"`
	HasToken                   bool   `json:"hasToken"`
	ServiceProviderDisplayName string `json:"serviceProviderDisplayName,omitempty"`
}

// TokenExchangeResource describes how a channel may exchange a token silently.
type TokenExchangeResource struct {
	ID         string `json:"id,omitempty"`
	URI        string `json:"uri,omitempty"`
	ProviderID string `json:"providerId,omitempty"`
}

// SignInResource is a sign-in link plus optional token-exchange details.
type SignInResource struct {
	SignInLink            string                 `json:"signInLink"`
	TokenExchangeResource *TokenExchangeResource `json:"tokenExchangeResource,omitempty"`
}

type aadResourceURLs struct {
	ResourceURLs []string `json:"resourceUrls"`
}
