// ABOUTME: Conversation references: durable snapshots used to resume conversations later
// ABOUTME: Converts inbound activities to references and references back to addressed activities

package activity

import (
	"github.com/google/uuid"
)

// Event names used for synthetic proactive activities.
const (
	EventContinueConversation = "continueConversation"
	EventCreateConversation   = "createConversation"
)

// ConversationReference captures enough addressing to reach a conversation again.
// It is a plain snapshot: safe to serialize, no expiry is enforced.
type ConversationReference struct {
	ActivityID   string               `json:"activityId,omitempty"`
	User         *ChannelAccount      `json:"user,omitempty"`
	Bot          *ChannelAccount      `json:"bot,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	ChannelID    string               `json:"channelId,omitempty"`
	Locale       string               `json:"locale,omitempty"`
	ServiceURL   string               `json:"serviceUrl"`
}

// GetConversationReference snapshots the addressing of an inbound activity.
func GetConversationReference(a *Activity) *ConversationReference {
	ref := &ConversationReference{
		ActivityID: a.ID,
		ChannelID:  a.ChannelID,
		Locale:     a.Locale,
		ServiceURL: a.ServiceURL,
	}
	if a.From != nil {
		user := *a.From
		ref.User = &user
	}
	if a.Recipient != nil {
		bot := *a.Recipient
		ref.Bot = &bot
	}
	if a.Conversation != nil {
		conv := *a.Conversation
		ref.Conversation = &conv
	}
	return ref
}

// ApplyConversationReference addresses a using ref. For outgoing activities the
// bot becomes the sender, the user the recipient, and the referenced activity
// the reply target. For incoming activities the roles are reversed and no
// reply target is set.
func ApplyConversationReference(a *Activity, ref *ConversationReference, isIncoming bool) *Activity {
	a.ChannelID = ref.ChannelID
	a.ServiceURL = ref.ServiceURL
	if ref.Locale != "" && a.Locale == "" {
		a.Locale = ref.Locale
	}
	if ref.Conversation != nil {
		conv := *ref.Conversation
		a.Conversation = &conv
	}

	if isIncoming {
		a.From = cloneAccount(ref.User)
		a.Recipient = cloneAccount(ref.Bot)
		if ref.ActivityID != "" {
			a.ID = ref.ActivityID
		}
		return a
	}

	a.From = cloneAccount(ref.Bot)
	a.Recipient = cloneAccount(ref.User)
	if ref.ActivityID != "" && a.Type != TypeConversationUpdate && a.ReplyToID == "" {
		a.ReplyToID = ref.ActivityID
	}
	return a
}

// GetContinuationActivity builds the synthetic event used to re-enter a
// conversation from a stored reference.
func GetContinuationActivity(ref *ConversationReference) *Activity {
	a := ApplyConversationReference(&Activity{
		Type: TypeEvent,
		Name: EventContinueConversation,
	}, ref, true)
	a.ID = uuid.New().String()
	a.RelatesTo = ref
	return a
}

func cloneAccount(acct *ChannelAccount) *ChannelAccount {
	if acct == nil {
		return nil
	}
	c := *acct
	return &c
}
