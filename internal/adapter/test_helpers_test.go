// ABOUTME: Shared fakes for adapter tests: authenticator, gateway and token-service clients
// ABOUTME: A harness wires them into an Adapter and records every outbound call in order

package adapter

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/auth"
	"github.com/2389/coven-adapter/internal/connector"
	"github.com/2389/coven-adapter/internal/credentials"
	"github.com/2389/coven-adapter/internal/turn"
	"github.com/2389/coven-adapter/internal/usertoken"
)

const (
	testServiceURL = "https://smba.example/"
	testConvID     = "conv-1"
)

// fakeAuth returns a fixed verdict and counts calls.
type fakeAuth struct {
	calls int
	err   error
}

func (f *fakeAuth) Authenticate(_ context.Context, _ string, _ *activity.Activity) (*auth.Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &auth.Identity{Authenticated: true, AppID: "channel-app"}, nil
}

// fakeConnector implements connector.Client and logs calls to the harness.
type fakeConnector struct {
	serviceURL string
	events     *[]string

	sent         []*activity.Activity
	createParams *connector.ConversationParameters
	createResp   *connector.ConversationResourceResponse
	createEmpty  bool
	members      []activity.ChannelAccount
	err          error
	nextID       int
}

func (f *fakeConnector) log(format string, args ...any) {
	*f.events = append(*f.events, fmt.Sprintf(format, args...))
}

func (f *fakeConnector) respond(a *activity.Activity) (*activity.ResourceResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, a)
	f.nextID++
	return &activity.ResourceResponse{ID: fmt.Sprintf("out-%d", f.nextID)}, nil
}

func (f *fakeConnector) CreateConversation(_ context.Context, params *connector.ConversationParameters) (*connector.ConversationResourceResponse, error) {
	f.log("create")
	f.createParams = params
	if f.err != nil {
		return nil, f.err
	}
	if f.createEmpty {
		return nil, nil
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return &connector.ConversationResourceResponse{ID: "new-conv"}, nil
}

func (f *fakeConnector) SendToConversation(_ context.Context, conversationID string, a *activity.Activity) (*activity.ResourceResponse, error) {
	f.log("send:%s:%s", conversationID, a.Type)
	return f.respond(a)
}

func (f *fakeConnector) ReplyToActivity(_ context.Context, conversationID, activityID string, a *activity.Activity) (*activity.ResourceResponse, error) {
	f.log("reply:%s:%s:%s", conversationID, activityID, a.Type)
	return f.respond(a)
}

func (f *fakeConnector) UpdateActivity(_ context.Context, conversationID, activityID string, a *activity.Activity) (*activity.ResourceResponse, error) {
	f.log("update:%s:%s", conversationID, activityID)
	if f.err != nil {
		return nil, f.err
	}
	return &activity.ResourceResponse{ID: activityID}, nil
}

func (f *fakeConnector) DeleteActivity(_ context.Context, conversationID, activityID string) error {
	f.log("delete:%s:%s", conversationID, activityID)
	return f.err
}

func (f *fakeConnector) GetConversationMembers(_ context.Context, conversationID string) ([]activity.ChannelAccount, error) {
	f.log("members:%s", conversationID)
	return f.members, f.err
}

func (f *fakeConnector) GetActivityMembers(_ context.Context, conversationID, activityID string) ([]activity.ChannelAccount, error) {
	f.log("activity-members:%s:%s", conversationID, activityID)
	return f.members, f.err
}

func (f *fakeConnector) DeleteConversationMember(_ context.Context, conversationID, memberID string) error {
	f.log("delete-member:%s:%s", conversationID, memberID)
	return f.err
}

func (f *fakeConnector) GetConversations(_ context.Context, continuationToken string) (*connector.ConversationsResult, error) {
	f.log("conversations:%s", continuationToken)
	return &connector.ConversationsResult{Conversations: []connector.ConversationMembers{{ID: testConvID}}}, f.err
}

// fakeTokens implements usertoken.Client.
type fakeTokens struct {
	baseURL string
	calls   []string

	token    *usertoken.TokenResponse
	statuses []usertoken.TokenStatus
	aad      map[string]usertoken.TokenResponse
	link     string
	state    string
	redirect string
	emulate  *bool
	err      error
}

func (f *fakeTokens) GetUserToken(_ context.Context, userID, connectionName, channelID, magicCode string) (*usertoken.TokenResponse, error) {
	f.calls = append(f.calls, strings.Join([]string{"get", userID, connectionName, channelID, magicCode}, ":"))
	return f.token, f.err
}

func (f *fakeTokens) SignOut(_ context.Context, userID, connectionName, channelID string) error {
	f.calls = append(f.calls, strings.Join([]string{"signout", userID, connectionName, channelID}, ":"))
	return f.err
}

func (f *fakeTokens) GetSignInURL(_ context.Context, state, finalRedirect string) (string, error) {
	f.calls = append(f.calls, "signin-url")
	f.state, f.redirect = state, finalRedirect
	return f.link, f.err
}

func (f *fakeTokens) GetSignInResource(_ context.Context, state, finalRedirect string) (*usertoken.SignInResource, error) {
	f.calls = append(f.calls, "signin-resource")
	f.state, f.redirect = state, finalRedirect
	if f.err != nil {
		return nil, f.err
	}
	return &usertoken.SignInResource{SignInLink: f.link}, nil
}

func (f *fakeTokens) GetTokenStatus(_ context.Context, userID, channelID, include string) ([]usertoken.TokenStatus, error) {
	f.calls = append(f.calls, strings.Join([]string{"status", userID, channelID, include}, ":"))
	return f.statuses, f.err
}

func (f *fakeTokens) GetAadTokens(_ context.Context, userID, connectionName, channelID string, resourceURLs []string) (map[string]usertoken.TokenResponse, error) {
	f.calls = append(f.calls, strings.Join([]string{"aad", userID, connectionName, channelID, strings.Join(resourceURLs, ",")}, ":"))
	return f.aad, f.err
}

func (f *fakeTokens) EmulateOAuthCards(_ context.Context, emulate bool) error {
	f.calls = append(f.calls, "emulate")
	f.emulate = &emulate
	return f.err
}

// recordedResponse implements WebResponse.
type recordedResponse struct {
	status int
	body   any
	sends  int
	ends   int
}

func (r *recordedResponse) Status(code int) { r.status = code }
func (r *recordedResponse) Send(body any)   { r.body = body; r.sends++ }
func (r *recordedResponse) End()            { r.ends++ }

type harness struct {
	adapter    *Adapter
	auth       *fakeAuth
	connectors map[string]*fakeConnector
	tokens     map[string]*fakeTokens
	events     []string
	sleeps     []time.Duration
}

func newHarness(t *testing.T, appID string) *harness {
	t.Helper()
	t.Setenv(credentials.EnvChannelService, "")

	h := &harness{
		auth:       &fakeAuth{},
		connectors: make(map[string]*fakeConnector),
		tokens:     make(map[string]*fakeTokens),
	}

	creds := credentials.NewResolver(credentials.Settings{AppID: appID, AppPassword: "secret"})
	h.adapter = New(creds, Options{
		Authenticator: h.auth,
		Connectors: connector.NewFactoryFunc(func(serviceURL string) connector.Client {
			c := &fakeConnector{serviceURL: serviceURL, events: &h.events}
			h.connectors[serviceURL] = c
			return c
		}),
		Tokens: usertoken.NewFactoryFunc(func(baseURL string) usertoken.Client {
			c := &fakeTokens{baseURL: baseURL}
			h.tokens[baseURL] = c
			return c
		}),
	}, nil)
	h.adapter.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		h.events = append(h.events, fmt.Sprintf("sleep:%s", d))
		return nil
	}
	return h
}

// gateway returns the fake client for serviceURL, creating it if needed.
func (h *harness) gateway(serviceURL string) *fakeConnector {
	return h.adapter.connectors.Client(serviceURL).(*fakeConnector)
}

func inboundActivity(typ string) *activity.Activity {
	return &activity.Activity{
		Type:         typ,
		ID:           "act-1",
		ChannelID:    activity.ChannelMSTeams,
		ServiceURL:   testServiceURL,
		From:         &activity.ChannelAccount{ID: "user-1", Name: "User"},
		Recipient:    &activity.ChannelAccount{ID: "bot-1", Name: "Bot"},
		Conversation: &activity.ConversationAccount{ID: testConvID},
		Text:         "hi",
	}
}

func inboundBody(typ string) string {
	return `{"type":"` + typ + `","id":"act-1","channelId":"msteams","serviceUrl":"` + testServiceURL + `",` +
		`"from":{"id":"user-1"},"recipient":{"id":"bot-1"},"conversation":{"id":"` + testConvID + `"},` +
		`"timestamp":"2026-03-01T10:00:00.000Z","text":"hi"}`
}

func (h *harness) turnContext(act *activity.Activity) *turn.Context {
	return h.adapter.createContext(act, auth.AnonymousIdentity())
}
