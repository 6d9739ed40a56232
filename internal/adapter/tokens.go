// ABOUTME: Token broker for user sign-in against the token-exchange service
// ABOUTME: Applies the emulator switch so local emulators can stand in for the cloud service

package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/metrics"
	"github.com/2389/coven-adapter/internal/turn"
	"github.com/2389/coven-adapter/internal/usertoken"
)

// signInState is encoded into sign-in links and handed back by the token
// service when the user completes sign-in.
type signInState struct {
	ConnectionName string                          `json:"ConnectionName"`
	Conversation   *activity.ConversationReference `json:"Conversation"`
	RelatesTo      *activity.ConversationReference `json:"RelatesTo,omitempty"`
	MsAppID        string                          `json:"MsAppId"`
}

// IsEmulatingOAuthCards reports whether token calls go to the emulator.
func (a *Adapter) IsEmulatingOAuthCards() bool {
	return a.emulatingOAuthCards.Load()
}

// checkEmulatingOAuthCards turns emulation on for an unauthenticated bot
// talking to the emulator. It never turns emulation off.
func (a *Adapter) checkEmulatingOAuthCards(tc *turn.Context) {
	act := tc.Activity()
	if !a.emulatingOAuthCards.Load() && act.ChannelID == activity.ChannelEmulator && a.creds.AppID() == "" {
		a.emulatingOAuthCards.Store(true)
		a.logger.Info("emulating oauth cards", "service_url", act.ServiceURL)
	}
}

// tokenClient applies the emulator switch and returns the client to use.
func (a *Adapter) tokenClient(tc *turn.Context) usertoken.Client {
	a.checkEmulatingOAuthCards(tc)
	return a.tokens.Client(a.oauthAPIURL(tc.Activity().ServiceURL))
}

func (a *Adapter) oauthAPIURL(serviceURL string) string {
	if a.emulatingOAuthCards.Load() {
		return serviceURL
	}
	return a.creds.OAuthEndpoint()
}

func resolveUser(act *activity.Activity, userID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	if id := act.FromID(); id != "" {
		return id, nil
	}
	return "", ErrMissingUser
}

func recordToken(op string, err error) {
	metrics.TokenOperations.WithLabelValues(op, metrics.Outcome(err)).Inc()
}

// GetUserToken returns the sender's token for connectionName. A nil token
// with a nil error means the user has not signed in.
func (a *Adapter) GetUserToken(ctx context.Context, tc *turn.Context, connectionName, magicCode string) (*usertoken.TokenResponse, error) {
	act := tc.Activity()
	userID, err := resolveUser(act, "")
	if err != nil {
		return nil, err
	}
	if connectionName == "" {
		return nil, ErrMissingConnection
	}

	tok, err := a.tokenClient(tc).GetUserToken(ctx, userID, connectionName, act.ChannelID, magicCode)
	recordToken("get_user_token", err)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// SignOutUser revokes a user's token. An empty connectionName signs out of
// every connection; an empty userID means the sender.
func (a *Adapter) SignOutUser(ctx context.Context, tc *turn.Context, connectionName, userID string) error {
	act := tc.Activity()
	userID, err := resolveUser(act, userID)
	if err != nil {
		return err
	}

	err = a.tokenClient(tc).SignOut(ctx, userID, connectionName, act.ChannelID)
	recordToken("sign_out", err)
	return err
}

// GetSignInLink returns a link the sender can follow to sign in to connectionName.
func (a *Adapter) GetSignInLink(ctx context.Context, tc *turn.Context, connectionName string) (string, error) {
	return a.GetSignInLinkForUser(ctx, tc, connectionName, "", "")
}

// GetSignInLinkForUser is GetSignInLink with an explicit user, which must be
// the sender, and a page to land on after sign-in.
func (a *Adapter) GetSignInLinkForUser(ctx context.Context, tc *turn.Context, connectionName, userID, finalRedirect string) (string, error) {
	state, err := a.signInState(tc, connectionName, userID)
	if err != nil {
		return "", err
	}

	link, err := a.tokenClient(tc).GetSignInURL(ctx, state, finalRedirect)
	recordToken("get_sign_in_link", err)
	if err != nil {
		return "", err
	}
	return link, nil
}

// GetSignInResource returns a sign-in link plus any token-exchange resource
// the channel can use for single sign-on.
func (a *Adapter) GetSignInResource(ctx context.Context, tc *turn.Context, connectionName, userID, finalRedirect string) (*usertoken.SignInResource, error) {
	state, err := a.signInState(tc, connectionName, userID)
	if err != nil {
		return nil, err
	}

	res, err := a.tokenClient(tc).GetSignInResource(ctx, state, finalRedirect)
	recordToken("get_sign_in_resource", err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (a *Adapter) signInState(tc *turn.Context, connectionName, userID string) (string, error) {
	act := tc.Activity()
	if connectionName == "" {
		return "", ErrMissingConnection
	}
	if _, err := resolveUser(act, userID); err != nil {
		return "", err
	}
	if userID != "" && userID != act.FromID() {
		return "", ErrUserMismatch
	}

	data, err := json.Marshal(signInState{
		ConnectionName: connectionName,
		Conversation:   activity.GetConversationReference(act),
		RelatesTo:      act.RelatesTo,
		MsAppID:        a.creds.AppID(),
	})
	if err != nil {
		return "", fmt.Errorf("encode sign-in state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// GetTokenStatus lists which connections a user holds tokens for. includeFilter
// is a comma-separated allow-list of connection names.
func (a *Adapter) GetTokenStatus(ctx context.Context, tc *turn.Context, userID, includeFilter string) ([]usertoken.TokenStatus, error) {
	act := tc.Activity()
	userID, err := resolveUser(act, userID)
	if err != nil {
		return nil, err
	}

	statuses, err := a.tokenClient(tc).GetTokenStatus(ctx, userID, act.ChannelID, includeFilter)
	recordToken("get_token_status", err)
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

// GetAadTokens returns the sender's tokens for each resource URL.
func (a *Adapter) GetAadTokens(ctx context.Context, tc *turn.Context, connectionName string, resourceURLs []string) (map[string]usertoken.TokenResponse, error) {
	act := tc.Activity()
	userID, err := resolveUser(act, "")
	if err != nil {
		return nil, err
	}
	if connectionName == "" {
		return nil, ErrMissingConnection
	}

	tokens, err := a.tokenClient(tc).GetAadTokens(ctx, userID, connectionName, act.ChannelID, resourceURLs)
	recordToken("get_aad_tokens", err)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// EmulateOAuthCards switches emulation on or off and tells the emulator at
// serviceURL to fake (or stop faking) OAuth cards.
func (a *Adapter) EmulateOAuthCards(ctx context.Context, serviceURL string, emulate bool) error {
	a.emulatingOAuthCards.Store(emulate)
	err := a.tokens.Client(a.oauthAPIURL(serviceURL)).EmulateOAuthCards(ctx, emulate)
	recordToken("emulate_oauth_cards", err)
	return err
}
