// ABOUTME: Tests for the reference echo bot
// ABOUTME: Uses a recording turn adapter and a fake token broker

package bot

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/turn"
	"github.com/2389/coven-adapter/internal/usertoken"
)

type recordingAdapter struct {
	sent []*activity.Activity
}

func (r *recordingAdapter) SendActivities(_ context.Context, _ *turn.Context, acts []*activity.Activity) ([]*activity.ResourceResponse, error) {
	r.sent = append(r.sent, acts...)
	out := make([]*activity.ResourceResponse, len(acts))
	for i := range acts {
		out[i] = &activity.ResourceResponse{}
	}
	return out, nil
}

func (r *recordingAdapter) UpdateActivity(context.Context, *turn.Context, *activity.Activity) (*activity.ResourceResponse, error) {
	return &activity.ResourceResponse{}, nil
}

func (r *recordingAdapter) DeleteActivity(context.Context, *turn.Context, *activity.ConversationReference) error {
	return nil
}

func (r *recordingAdapter) texts() []string {
	var out []string
	for _, a := range r.sent {
		if a.Type == activity.TypeMessage {
			out = append(out, a.Text)
		}
	}
	return out
}

type fakeBroker struct {
	token  *usertoken.TokenResponse
	link   string
	err    error
	codes  []string
	signed []string
}

func (f *fakeBroker) GetUserToken(_ context.Context, _ *turn.Context, connectionName, magicCode string) (*usertoken.TokenResponse, error) {
	f.codes = append(f.codes, connectionName+":"+magicCode)
	return f.token, f.err
}

func (f *fakeBroker) GetSignInLink(_ context.Context, _ *turn.Context, connectionName string) (string, error) {
	return f.link, f.err
}

func (f *fakeBroker) SignOutUser(_ context.Context, _ *turn.Context, connectionName, _ string) error {
	f.signed = append(f.signed, connectionName)
	return f.err
}

func message(text string) *activity.Activity {
	return &activity.Activity{
		Type:         activity.TypeMessage,
		Text:         text,
		ChannelID:    activity.ChannelMSTeams,
		ServiceURL:   "https://smba.example/",
		From:         &activity.ChannelAccount{ID: "user-1"},
		Recipient:    &activity.ChannelAccount{ID: "bot-1"},
		Conversation: &activity.ConversationAccount{ID: "conv-1"},
	}
}

func runTurn(t *testing.T, b *Echo, act *activity.Activity) (*recordingAdapter, *turn.Context, error) {
	t.Helper()
	rec := &recordingAdapter{}
	tc := turn.NewContext(rec, act)
	return rec, tc, b.OnTurn(context.Background(), tc)
}

func TestEcho_Message(t *testing.T) {
	b := NewEcho(&fakeBroker{}, "", nil)
	rec, tc, err := runTurn(t, b, message(" hello "))
	require.NoError(t, err)

	require.Len(t, rec.sent, 2)
	assert.Equal(t, activity.TypeTyping, rec.sent[0].Type)
	assert.Equal(t, "Echo: **hello**", rec.sent[1].Text)
	assert.Equal(t, "user-1", rec.sent[1].Recipient.ID, "replies are addressed from the turn")
	assert.True(t, tc.Responded())
}

func TestEcho_LoginWithoutConnection(t *testing.T) {
	broker := &fakeBroker{}
	rec, _, err := runTurn(t, NewEcho(broker, "", nil), message("login"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Sign-in is not configured for this bot."}, rec.texts())
	assert.Empty(t, broker.codes)
}

func TestEcho_LoginSendsLink(t *testing.T) {
	broker := &fakeBroker{link: "https://signin.example/abc"}
	rec, _, err := runTurn(t, NewEcho(broker, "github", nil), message("LOGIN"))
	require.NoError(t, err)

	require.Len(t, rec.texts(), 1)
	assert.Contains(t, rec.texts()[0], "https://signin.example/abc")
	assert.Equal(t, []string{"github:"}, broker.codes)
}

func TestEcho_LoginAlreadySignedIn(t *testing.T) {
	broker := &fakeBroker{token: &usertoken.TokenResponse{Token: "t"}}
	rec, _, err := runTurn(t, NewEcho(broker, "github", nil), message("login"))
	require.NoError(t, err)
	assert.Equal(t, []string{"You are already signed in."}, rec.texts())
}

func TestEcho_MagicCode(t *testing.T) {
	broker := &fakeBroker{}
	b := NewEcho(broker, "github", nil)

	rec, _, err := runTurn(t, b, message("123456"))
	require.NoError(t, err)
	assert.Contains(t, rec.texts()[0], "did not work")

	broker.token = &usertoken.TokenResponse{Token: "t"}
	rec, _, err = runTurn(t, b, message("123456"))
	require.NoError(t, err)
	assert.Equal(t, []string{"You are now signed in."}, rec.texts())
	assert.Equal(t, []string{"github:123456", "github:123456"}, broker.codes)
}

func TestEcho_MagicCodeWithoutConnectionIsEchoed(t *testing.T) {
	rec, _, err := runTurn(t, NewEcho(&fakeBroker{}, "", nil), message("123456"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Echo: **123456**"}, rec.texts())
}

func TestEcho_Logout(t *testing.T) {
	broker := &fakeBroker{}
	rec, _, err := runTurn(t, NewEcho(broker, "github", nil), message("logout"))
	require.NoError(t, err)
	assert.Equal(t, []string{"github"}, broker.signed)
	assert.Equal(t, []string{"You have been signed out."}, rec.texts())
}

func TestEcho_BrokerError(t *testing.T) {
	boom := errors.New("token service down")
	_, _, err := runTurn(t, NewEcho(&fakeBroker{err: boom}, "github", nil), message("login"))
	assert.ErrorIs(t, err, boom)
}

func TestEcho_WelcomesNewMembers(t *testing.T) {
	act := message("")
	act.Type = activity.TypeConversationUpdate
	act.MembersAdded = []activity.ChannelAccount{{ID: "bot-1"}, {ID: "user-2", Name: "Ada"}, {ID: "user-3"}}

	rec, _, err := runTurn(t, NewEcho(&fakeBroker{}, "", nil), act)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Welcome, Ada! Say anything and I will echo it back.",
		"Welcome, there! Say anything and I will echo it back.",
	}, rec.texts())
}

func TestEcho_VerifyStateInvoke(t *testing.T) {
	act := message("")
	act.Type = activity.TypeInvoke
	act.Name = InvokeVerifyState
	act.Value = map[string]any{"state": "654321"}

	broker := &fakeBroker{token: &usertoken.TokenResponse{Token: "t"}}
	rec, _, err := runTurn(t, NewEcho(broker, "github", nil), act)
	require.NoError(t, err)

	require.Len(t, rec.sent, 1)
	assert.Equal(t, activity.TypeInvokeResponse, rec.sent[0].Type)
	resp, ok := activity.AsInvokeResponse(rec.sent[0].Value)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []string{"github:654321"}, broker.codes)
}

func TestEcho_UnknownInvokeIsUnanswered(t *testing.T) {
	act := message("")
	act.Type = activity.TypeInvoke
	act.Name = "composeExtension/query"

	rec, _, err := runTurn(t, NewEcho(&fakeBroker{}, "github", nil), act)
	require.NoError(t, err)
	assert.Empty(t, rec.sent)
}

func TestNotify(t *testing.T) {
	rec := &recordingAdapter{}
	tc := turn.NewContext(rec, message(""))
	require.NoError(t, Notify("ping")(context.Background(), tc))
	assert.Equal(t, []string{"ping"}, rec.texts())
}
