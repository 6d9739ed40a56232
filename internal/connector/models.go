// ABOUTME: Request and response records of the gateway conversation API
// ABOUTME: Mirrors the REST v3 JSON shapes used for creating and listing conversations

package connector

import (
	"github.com/2389/coven-adapter/internal/activity"
)

// ConversationParameters describes a conversation to create.
type ConversationParameters struct {
	IsGroup     bool                       `json:"isGroup"`
	Bot         *activity.ChannelAccount   `json:"bot,omitempty"`
	Members     []*activity.ChannelAccount `json:"members,omitempty"`
	TopicName   string                     `json:"topicName,omitempty"`
	TenantID    string                     `json:"tenantId,omitempty"`
	Activity    *activity.Activity         `json:"activity,omitempty"`
	ChannelData any                        `json:"channelData,omitempty"`
}

// ConversationResourceResponse is returned by CreateConversation. ServiceURL
// is set when the gateway wants follow-up traffic sent elsewhere.
type ConversationResourceResponse struct {
	ActivityID string `json:"activityId,omitempty"`
	ServiceURL string `json:"serviceUrl,omitempty"`
	ID         string `json:"id"`
}

// ConversationMembers is one conversation and its members.
type ConversationMembers struct {
	ID      string                    `json:"id"`
	Members []activity.ChannelAccount `json:"members,omitempty"`
}

// ConversationsResult is one page of GetConversations.
type ConversationsResult struct {
	ContinuationToken string                `json:"continuationToken,omitempty"`
	Conversations     []ConversationMembers `json:"conversations"`
}
