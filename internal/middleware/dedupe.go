// ABOUTME: Middleware that drops activities the gateway redelivers
// ABOUTME: Keys on channel, conversation and activity id; invokes always run and failed turns are forgotten

package middleware

import (
	"context"
	"log/slog"

	"github.com/2389/coven-adapter/internal/activity"
	"github.com/2389/coven-adapter/internal/dedupe"
	"github.com/2389/coven-adapter/internal/metrics"
	"github.com/2389/coven-adapter/internal/turn"
)

// Dedupe short-circuits turns whose activity was already handled.
type Dedupe struct {
	cache  *dedupe.Cache
	logger *slog.Logger
}

// NewDedupe creates the middleware over cache. Pass nil logger for default.
func NewDedupe(cache *dedupe.Cache, logger *slog.Logger) *Dedupe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dedupe{cache: cache, logger: logger.With("component", "dedupe")}
}

// activityKey returns "" for activities that cannot be deduplicated. Invokes
// are never deduplicated: the caller waits on their response, and a skipped
// turn would answer a retry with 501 instead of the original response.
func activityKey(a *activity.Activity) string {
	if a.Type == activity.TypeInvoke || a.ID == "" || a.ConversationID() == "" {
		return ""
	}
	return a.ChannelID + "|" + a.ConversationID() + "|" + a.ID
}

// OnTurn implements turn.Middleware.
func (d *Dedupe) OnTurn(ctx context.Context, tc *turn.Context, next turn.Next) error {
	act := tc.Activity()
	key := activityKey(act)
	if key == "" {
		return next(ctx)
	}

	if d.cache.Remember(key) {
		metrics.DuplicateActivities.Inc()
		d.logger.Debug("dropping redelivered activity",
			"activity_id", act.ID,
			"conversation_id", act.ConversationID(),
			"channel_id", act.ChannelID,
		)
		return nil
	}

	if err := next(ctx); err != nil {
		d.cache.Forget(key)
		return err
	}
	return nil
}
