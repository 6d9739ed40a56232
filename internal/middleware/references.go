// ABOUTME: Middleware that stores each conversation's latest reference
// ABOUTME: Lets the notify endpoint reach conversations the bot has already seen

package middleware

import (
	"context"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/references"
	"github.com/2389/coven-adapter/internal/turn"
)

// CaptureReferences returns middleware that records the inbound activity's
// conversation reference in registry before the turn runs. Synthetic
// proactive events are skipped since they were built from a stored reference.
func CaptureReferences(registry *references.Registry) turn.Middleware {
	return turn.MiddlewareFunc(func(ctx context.Context, tc *turn.Context, next turn.Next) error {
		act := tc.Activity()
		if !isProactive(act) {
			registry.Put(activity.GetConversationReference(act))
		}
		return next(ctx)
	})
}

func isProactive(a *activity.Activity) bool {
	return a.Type == activity.TypeEvent &&
		(a.Name == activity.EventContinueConversation || a.Name == activity.EventCreateConversation)
}
