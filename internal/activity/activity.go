// ABOUTME: Canonical wire model for activities exchanged with channel gateways
// ABOUTME: Defines Activity, accounts, conversation records and activity type constants

package activity

import (
	"time"
)

// Type is the activity type discriminator carried in the "type" field.
type Type = string

// Activity types understood by the adapter. Unknown types pass through untouched.
const (
	TypeMessage               Type = "message"
	TypeContactRelationUpdate Type = "contactRelationUpdate"
	TypeConversationUpdate    Type = "conversationUpdate"
	TypeTyping                Type = "typing"
	TypeEndOfConversation     Type = "endOfConversation"
	TypeEvent                 Type = "event"
	TypeInvoke                Type = "invoke"
	TypeInvokeResponse        Type = "invokeResponse"
	TypeDeleteUserData        Type = "deleteUserData"
	TypeMessageUpdate         Type = "messageUpdate"
	TypeMessageDelete         Type = "messageDelete"
	TypeInstallationUpdate    Type = "installationUpdate"
	TypeMessageReaction       Type = "messageReaction"
	TypeSuggestion            Type = "suggestion"
	TypeTrace                 Type = "trace"
	TypeHandoff               Type = "handoff"
	TypeDelay                 Type = "delay"
)

// Well-known channel identifiers.
const (
	ChannelEmulator   = "emulator"
	ChannelMSTeams    = "msteams"
	ChannelDirectLine = "directline"
	ChannelWebChat    = "webchat"
)

// ChannelAccount identifies a user or bot on a channel.
type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
	Role        string `json:"role,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to.
type ConversationAccount struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
	AADObjectID      string `json:"aadObjectId,omitempty"`
	Role             string `json:"role,omitempty"`
}

// Attachment is carried opaquely; card formatting is the caller's business.
type Attachment struct {
	ContentType  string `json:"contentType"`
	ContentURL   string `json:"contentUrl,omitempty"`
	Content      any    `json:"content,omitempty"`
	Name         string `json:"name,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Activity is a single wire message between a bot and a channel.
type Activity struct {
	Type           Type                   `json:"type"`
	ID             string                 `json:"id,omitempty"`
	Timestamp      *time.Time             `json:"timestamp,omitempty"`
	LocalTimestamp *time.Time             `json:"localTimestamp,omitempty"`
	LocalTimezone  string                 `json:"localTimezone,omitempty"`
	Expiration     *time.Time             `json:"expiration,omitempty"`
	ServiceURL     string                 `json:"serviceUrl,omitempty"`
	ChannelID      string                 `json:"channelId,omitempty"`
	From           *ChannelAccount        `json:"from,omitempty"`
	Conversation   *ConversationAccount   `json:"conversation,omitempty"`
	Recipient      *ChannelAccount        `json:"recipient,omitempty"`
	TextFormat     string                 `json:"textFormat,omitempty"`
	Text           string                 `json:"text,omitempty"`
	Speak          string                 `json:"speak,omitempty"`
	InputHint      string                 `json:"inputHint,omitempty"`
	Summary        string                 `json:"summary,omitempty"`
	Locale         string                 `json:"locale,omitempty"`
	Attachments    []Attachment           `json:"attachments,omitempty"`
	Entities       []map[string]any       `json:"entities,omitempty"`
	ChannelData    any                    `json:"channelData,omitempty"`
	Action         string                 `json:"action,omitempty"`
	ReplyToID      string                 `json:"replyToId,omitempty"`
	Label          string                 `json:"label,omitempty"`
	ValueType      string                 `json:"valueType,omitempty"`
	Value          any                    `json:"value,omitempty"`
	Name           string                 `json:"name,omitempty"`
	RelatesTo      *ConversationReference `json:"relatesTo,omitempty"`
	Code           string                 `json:"code,omitempty"`
	Importance     string                 `json:"importance,omitempty"`
	DeliveryMode   string                 `json:"deliveryMode,omitempty"`
	MembersAdded   []ChannelAccount       `json:"membersAdded,omitempty"`
	MembersRemoved []ChannelAccount       `json:"membersRemoved,omitempty"`
	CallerID       string                 `json:"callerId,omitempty"`
}

// ResourceResponse is returned by the gateway for sent or updated activities.
// An empty ID is the "nothing was sent" response used for control activities.
type ResourceResponse struct {
	ID string `json:"id,omitempty"`
}

// NewMessage returns a message activity carrying text.
func NewMessage(text string) *Activity {
	return &Activity{Type: TypeMessage, Text: text}
}

// NewTrace returns a trace activity; traces only reach debugging channels.
func NewTrace(name string, value any, valueType, label string) *Activity {
	return &Activity{
		Type:      TypeTrace,
		Name:      name,
		Value:     value,
		ValueType: valueType,
		Label:     label,
	}
}

// NewDelay returns a pacing activity that suspends dispatch for ms milliseconds.
func NewDelay(ms int) *Activity {
	return &Activity{Type: TypeDelay, Value: ms}
}

// IsControl reports whether the activity is handled by the adapter itself
// rather than dispatched to the gateway.
func (a *Activity) IsControl() bool {
	return a.Type == TypeDelay || a.Type == TypeInvokeResponse
}

// ConversationID returns the conversation id or "" when no conversation is set.
func (a *Activity) ConversationID() string {
	if a == nil || a.Conversation == nil {
		return ""
	}
	return a.Conversation.ID
}

// FromID returns the sender id or "" when no sender is set.
func (a *Activity) FromID() string {
	if a == nil || a.From == nil {
		return ""
	}
	return a.From.ID
}

// Clone returns a shallow copy with independently mutable account records.
func (a *Activity) Clone() *Activity {
	if a == nil {
		return nil
	}
	c := *a
	if a.From != nil {
		from := *a.From
		c.From = &from
	}
	if a.Recipient != nil {
		rcpt := *a.Recipient
		c.Recipient = &rcpt
	}
	if a.Conversation != nil {
		conv := *a.Conversation
		c.Conversation = &conv
	}
	return &c
}
