// ABOUTME: Tests for conversation reference capture and application
// ABOUTME: Verifies role swapping, reply targeting, and continuation events

package activity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inbound() *Activity {
	return &Activity{
		Type:         TypeMessage,
		ID:           "in-1",
		ChannelID:    ChannelMSTeams,
		ServiceURL:   "https://smba.example.net/",
		Locale:       "en-US",
		From:         &ChannelAccount{ID: "user-1", Name: "Ada"},
		Recipient:    &ChannelAccount{ID: "bot-1", Name: "bot"},
		Conversation: &ConversationAccount{ID: "conv-1", TenantID: "t-1"},
	}
}

func TestGetConversationReference(t *testing.T) {
	ref := GetConversationReference(inbound())

	assert.Equal(t, "in-1", ref.ActivityID)
	assert.Equal(t, "user-1", ref.User.ID)
	assert.Equal(t, "bot-1", ref.Bot.ID)
	assert.Equal(t, "conv-1", ref.Conversation.ID)
	assert.Equal(t, "t-1", ref.Conversation.TenantID)
	assert.Equal(t, ChannelMSTeams, ref.ChannelID)
	assert.Equal(t, "https://smba.example.net/", ref.ServiceURL)
}

func TestGetConversationReference_IsASnapshot(t *testing.T) {
	a := inbound()
	ref := GetConversationReference(a)
	a.From.ID = "changed"
	a.Conversation.ID = "changed"

	assert.Equal(t, "user-1", ref.User.ID)
	assert.Equal(t, "conv-1", ref.Conversation.ID)

	data, err := json.Marshal(ref)
	require.NoError(t, err)
	var back ConversationReference
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *ref.User, *back.User)
	assert.Equal(t, ref.ServiceURL, back.ServiceURL)
}

func TestApplyConversationReference_Outgoing(t *testing.T) {
	ref := GetConversationReference(inbound())
	out := ApplyConversationReference(NewMessage("hi"), ref, false)

	assert.Equal(t, "bot-1", out.From.ID)
	assert.Equal(t, "user-1", out.Recipient.ID)
	assert.Equal(t, "in-1", out.ReplyToID)
	assert.Equal(t, "conv-1", out.ConversationID())
	assert.Equal(t, ref.ServiceURL, out.ServiceURL)
	assert.Equal(t, "en-US", out.Locale)
}

func TestApplyConversationReference_KeepsExplicitReplyTarget(t *testing.T) {
	ref := GetConversationReference(inbound())
	msg := NewMessage("hi")
	msg.ReplyToID = "other"
	out := ApplyConversationReference(msg, ref, false)
	assert.Equal(t, "other", out.ReplyToID)
}

func TestApplyConversationReference_Incoming(t *testing.T) {
	ref := GetConversationReference(inbound())
	in := ApplyConversationReference(&Activity{Type: TypeEvent}, ref, true)

	assert.Equal(t, "user-1", in.From.ID)
	assert.Equal(t, "bot-1", in.Recipient.ID)
	assert.Equal(t, "in-1", in.ID)
	assert.Empty(t, in.ReplyToID)
}

func TestGetContinuationActivity(t *testing.T) {
	ref := GetConversationReference(inbound())
	a := GetContinuationActivity(ref)

	assert.Equal(t, TypeEvent, a.Type)
	assert.Equal(t, EventContinueConversation, a.Name)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, ref.ActivityID, a.ID)
	assert.Equal(t, "user-1", a.From.ID)
	assert.Equal(t, "conv-1", a.ConversationID())
	assert.Same(t, ref, a.RelatesTo)
}

func TestAsInvokeResponse(t *testing.T) {
	resp, ok := AsInvokeResponse(&InvokeResponse{Status: 201, Body: map[string]any{"ok": true}})
	require.True(t, ok)
	assert.Equal(t, 201, resp.Status)

	resp, ok = AsInvokeResponse(map[string]any{"status": float64(202), "body": "x"})
	require.True(t, ok)
	assert.Equal(t, 202, resp.Status)
	assert.Equal(t, "x", resp.Body)

	_, ok = AsInvokeResponse(nil)
	assert.False(t, ok)
	_, ok = AsInvokeResponse("nope")
	assert.False(t, ok)
}

func TestAsInvokeResponse_InvalidStatus(t *testing.T) {
	values := []any{
		&InvokeResponse{Body: map[string]any{"ok": true}},
		InvokeResponse{Status: 42},
		&InvokeResponse{Status: 1000},
		map[string]any{"body": "x"},
		map[string]any{"status": float64(0)},
		(*InvokeResponse)(nil),
	}
	for _, v := range values {
		_, ok := AsInvokeResponse(v)
		assert.False(t, ok, "value %#v", v)
	}
}
