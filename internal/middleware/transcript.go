// ABOUTME: Middleware that mirrors each turn's traffic into the live transcript feed
// ABOUTME: Publishes the inbound activity and every non-control activity the bot sends successfully

package middleware

import (
	"context"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/references"
	"github.com/2389/coven-adapter/internal/transcript"
	"github.com/2389/coven-adapter/internal/turn"
)

// Transcript returns middleware that publishes turn traffic to b. Synthetic
// proactive events are not published but what the bot sends during them is.
func Transcript(b *transcript.Broadcaster) turn.Middleware {
	return turn.MiddlewareFunc(func(ctx context.Context, tc *turn.Context, next turn.Next) error {
		act := tc.Activity()
		key := references.Key(activity.GetConversationReference(act))
		if key == "" {
			return next(ctx)
		}

		if !isProactive(act) {
			b.Publish(&transcript.Entry{
				ConversationKey: key,
				Direction:       transcript.DirectionInbound,
				Activity:        act,
			})
		}

		tc.OnSendActivities(func(ctx context.Context, tc *turn.Context, acts []*activity.Activity, next func(context.Context) ([]*activity.ResourceResponse, error)) ([]*activity.ResourceResponse, error) {
			responses, err := next(ctx)
			if err != nil {
				return responses, err
			}
			for i, a := range acts {
				if a.IsControl() {
					continue
				}
				out := a.Clone()
				if i < len(responses) && responses[i] != nil && responses[i].ID != "" {
					out.ID = responses[i].ID
				}
				b.Publish(&transcript.Entry{
					ConversationKey: key,
					Direction:       transcript.DirectionOutbound,
					Activity:        out,
				})
			}
			return responses, nil
		})

		return next(ctx)
	})
}
