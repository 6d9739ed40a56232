// ABOUTME: Conversation roster and listing calls against the turn's gateway
// ABOUTME: Thin pass-throughs that validate addressing before reaching the connector

package adapter

import (
	"context"
	"fmt"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/connector"
	"github.com/2389/coven-adapter/internal/turn"
)

// GetConversationMembers lists the members of the turn's conversation.
func (a *Adapter) GetConversationMembers(ctx context.Context, tc *turn.Context) ([]activity.ChannelAccount, error) {
	act := tc.Activity()
	if err := requireAddress(act.ServiceURL, act.ConversationID()); err != nil {
		return nil, err
	}
	return a.connectorFor(tc, act.ServiceURL).GetConversationMembers(ctx, act.ConversationID())
}

// GetActivityMembers lists the members addressed by one activity. An empty
// activityID means the turn's own activity.
func (a *Adapter) GetActivityMembers(ctx context.Context, tc *turn.Context, activityID string) ([]activity.ChannelAccount, error) {
	act := tc.Activity()
	if activityID == "" {
		activityID = act.ID
	}
	if err := requireAddress(act.ServiceURL, act.ConversationID()); err != nil {
		return nil, err
	}
	if activityID == "" {
		return nil, fmt.Errorf("%w: missing activity id", ErrInvalidActivity)
	}
	return a.connectorFor(tc, act.ServiceURL).GetActivityMembers(ctx, act.ConversationID(), activityID)
}

// DeleteConversationMember removes a member from the turn's conversation.
func (a *Adapter) DeleteConversationMember(ctx context.Context, tc *turn.Context, memberID string) error {
	act := tc.Activity()
	if err := requireAddress(act.ServiceURL, act.ConversationID()); err != nil {
		return err
	}
	if memberID == "" {
		return fmt.Errorf("%w: missing member id", ErrInvalidActivity)
	}
	return a.connectorFor(tc, act.ServiceURL).DeleteConversationMember(ctx, act.ConversationID(), memberID)
}

// GetConversations lists conversations the bot takes part in on serviceURL.
func (a *Adapter) GetConversations(ctx context.Context, serviceURL, continuationToken string) (*connector.ConversationsResult, error) {
	if serviceURL == "" {
		return nil, ErrMissingServiceURL
	}
	return a.connectors.Client(serviceURL).GetConversations(ctx, continuationToken)
}
